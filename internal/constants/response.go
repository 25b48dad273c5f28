package constants

// Standard Response Field Keys
const (
	ResponseFieldSuccess = "success"
	ResponseFieldMessage = "message"
	ResponseFieldData    = "data"
)

// Response Format Functions

// BuildErrorResponse produces the {success:false, message} error body.
// Internal error details never go into the body; they belong in the logs.
func BuildErrorResponse(message string) map[string]any {
	return map[string]any{
		ResponseFieldSuccess: false,
		ResponseFieldMessage: message,
	}
}

// BuildSuccessResponse produces a {success:true, message} confirmation body.
func BuildSuccessResponse(message string) map[string]any {
	return map[string]any{
		ResponseFieldSuccess: true,
		ResponseFieldMessage: message,
	}
}

// BuildDataResponse wraps a payload in the standard success envelope.
func BuildDataResponse(data any) map[string]any {
	return map[string]any{
		ResponseFieldSuccess: true,
		ResponseFieldData:    data,
	}
}

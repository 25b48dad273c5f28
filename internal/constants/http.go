package constants

// HTTP Header Names
const (
	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
	HeaderUserAgent     = "User-Agent"
	HeaderXRequestID    = "X-Request-ID"
)

// Authorization scheme for access tokens
const (
	BearerScheme = "Bearer"
)

// Common HTTP Error Messages
const (
	MsgUnauthorized  = "missing or invalid authorization"
	MsgBadRequest    = "invalid request"
	MsgInternalError = "internal server error"
)

// HTTP Success Messages
const (
	MsgLogoutSuccess = "logout successful"
)

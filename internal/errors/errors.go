package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError represents a domain-specific error with a code and message
type DomainError struct {
	Code    string
	Message string
	Err     error // underlying error for wrapping
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is and errors.As
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches two domain errors by code so wrapped instances still compare
// equal to their predefined sentinel.
func (e *DomainError) Is(target error) bool {
	var domainErr *DomainError
	if errors.As(target, &domainErr) {
		return e.Code == domainErr.Code
	}
	return false
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with domain error context
func WrapError(domainErr *DomainError, err error) *DomainError {
	return &DomainError{
		Code:    domainErr.Code,
		Message: domainErr.Message,
		Err:     err,
	}
}

// Predefined domain errors
var (
	// Registration and credentials. Invalid credentials deliberately does not
	// distinguish an unknown email from a wrong password.
	ErrEmailExists        = NewDomainError("EMAIL_EXISTS", "email already exists")
	ErrInvalidCredentials = NewDomainError("INVALID_CREDENTIALS", "invalid email or password")
	ErrAccountDeactivated = NewDomainError("ACCOUNT_DEACTIVATED", "account deactivated")

	// Token lifecycle
	ErrInvalidToken        = NewDomainError("INVALID_TOKEN", "invalid or expired token")
	ErrTokenExpired        = NewDomainError("TOKEN_EXPIRED", "refresh token has expired")
	ErrInvalidRefreshToken = NewDomainError("INVALID_REFRESH_TOKEN", "invalid refresh token")
	ErrUserInactive        = NewDomainError("USER_NOT_FOUND_OR_INACTIVE", "user not found or inactive")

	// Authorization
	ErrUnauthorized = NewDomainError("UNAUTHORIZED", "missing or invalid authorization")

	// Validation
	ErrInvalidInput = NewDomainError("INVALID_INPUT", "invalid input")

	// System errors
	ErrInternal = NewDomainError("INTERNAL_ERROR", "internal server error")
)

// IsDomainError checks if an error is a domain error
func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}

// GetDomainError extracts the domain error from an error
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// ToHTTPStatus maps domain errors to HTTP status codes.
// This should only be used in the handler/presentation layer.
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErrorToHTTPStatus(domainErr)
	}

	return http.StatusInternalServerError
}

// domainErrorToHTTPStatus maps specific domain errors to HTTP status codes.
// Failures of the public auth operations surface as 400 so the response never
// confirms whether a credential or token ever existed.
func domainErrorToHTTPStatus(err *DomainError) int {
	switch err.Code {
	case "EMAIL_EXISTS", "INVALID_CREDENTIALS", "ACCOUNT_DEACTIVATED",
		"INVALID_REFRESH_TOKEN", "TOKEN_EXPIRED", "USER_NOT_FOUND_OR_INACTIVE",
		"INVALID_INPUT":
		return http.StatusBadRequest

	case "UNAUTHORIZED", "INVALID_TOKEN":
		return http.StatusUnauthorized

	default:
		return http.StatusInternalServerError
	}
}

// GetErrorMessage safely extracts a user-facing error message. Wrapped
// infrastructure details stay out of the response body.
func GetErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}

	return "internal server error"
}

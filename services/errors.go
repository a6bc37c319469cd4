package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeUnauthorized       ErrorType = "unauthorized"
	ErrorTypeInvalidToken       ErrorType = "invalid_token"
	ErrorTypeForbidden          ErrorType = "forbidden"
	ErrorTypeRegistrationFailed ErrorType = "registration_failed"
	ErrorTypeValidation         ErrorType = "validation"
	ErrorTypeInternal           ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Client-facing messages. They never say which check failed.
const (
	MsgInvalidCredentials = "Invalid authentication credentials"
	MsgInvalidToken       = "Invalid token"
	MsgUserNotActive      = "User is not active"
	MsgRegistrationFailed = "User registration failed, likely an account with this username or email is already taken"
)

// Domain error variables. Compare with errors.Is; never mutate them.

var (
	// Authentication Errors
	ErrUnauthorized = NewDomainError(ErrorTypeUnauthorized, MsgInvalidCredentials, nil)
	ErrInvalidToken = NewDomainError(ErrorTypeInvalidToken, MsgInvalidToken, nil)

	// Permission Errors
	ErrForbidden = NewDomainError(ErrorTypeForbidden, MsgUserNotActive, nil)

	// Registration Errors
	ErrRegistrationFailed = NewDomainError(ErrorTypeRegistrationFailed, MsgRegistrationFailed, nil)
)

// Error type checking helper functions

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnauthorized
}

// IsInvalidTokenError checks if an error is an invalid token error
func IsInvalidTokenError(err error) bool {
	return GetErrorType(err) == ErrorTypeInvalidToken
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return GetErrorType(err) == ErrorTypeForbidden
}

// IsRegistrationFailedError checks if an error is a registration failure
func IsRegistrationFailedError(err error) bool {
	return GetErrorType(err) == ErrorTypeRegistrationFailed
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeInternal
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// unauthorized returns a fresh unauthorized error carrying cause for logs only
func unauthorized(cause error) error {
	return NewDomainError(ErrorTypeUnauthorized, MsgInvalidCredentials, cause)
}

// invalidToken returns a fresh invalid token error carrying cause for logs only
func invalidToken(cause error) error {
	return NewDomainError(ErrorTypeInvalidToken, MsgInvalidToken, cause)
}

// registrationFailed returns a fresh registration error carrying cause for logs only
func registrationFailed(cause error) error {
	return NewDomainError(ErrorTypeRegistrationFailed, MsgRegistrationFailed, cause)
}

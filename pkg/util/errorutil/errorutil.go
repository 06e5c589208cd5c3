package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the service layer and the HTTP transport.
const (
	CodeValidation         = "VALIDATION_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodePermissionDenied   = "PERMISSION_DENIED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeConflict           = "CONFLICT"
	CodeCreateFailed       = "CREATE_FAILED"
	CodeUploadFailed       = "UPLOAD_FAILED"
	CodeStreamFailed       = "STREAM_FAILED"
	CodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

// NewPermissionDenied is returned when the store's access rules reject a read or write.
func NewPermissionDenied(message string, err error) error {
	return &DomainError{
		Code:       CodePermissionDenied,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
		Err:        err,
	}
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewCreateFailed is the generic creation failure; the ticket must be assumed absent.
func NewCreateFailed(err error) error {
	return &DomainError{
		Code:       CodeCreateFailed,
		Message:    "failed to create ticket",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewUploadFailed(err error) error {
	return &DomainError{
		Code:       CodeUploadFailed,
		Message:    "failed to upload asset",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewStreamFailed(err error) error {
	return &DomainError{
		Code:       CodeStreamFailed,
		Message:    "ticket subscription failed",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewBackendUnavailable(message string, err error) error {
	return &DomainError{
		Code:       CodeBackendUnavailable,
		Message:    message,
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// CodeOf returns the domain code carried by err, or an empty string.
func CodeOf(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsCode reports whether err carries the given domain code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

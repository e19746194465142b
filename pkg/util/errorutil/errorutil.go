package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes rendered to UI clients.
const (
	CodeValidation           = "VALIDATION_FAILED"
	CodeAuth                 = "AUTH_ERROR"
	CodeConfig               = "CONFIG_ERROR"
	CodeConflict             = "CONFLICT"
	CodeNetwork              = "NETWORK_ERROR"
	CodeBackend              = "BACKEND_ERROR"
	CodeConfirmationRequired = "CONFIRMATION_REQUIRED"
	CodeNotFound             = "NOT_FOUND"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeInternal             = "INTERNAL_ERROR"
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

// NewValidationError reports input rejected before any backend call.
func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

// NewFieldError is a validation error bound to a single input field.
func NewFieldError(field, message string) error {
	return NewValidationError(message, map[string]any{"field": field})
}

// NewAuthError reports a failed profile or permission resolution.
func NewAuthError(message string, err error) error {
	return &DomainError{Code: CodeAuth, Message: message, HTTPStatus: http.StatusUnauthorized, Err: err}
}

// NewConfigError reports missing tenant configuration, such as an absent company id.
func NewConfigError(message string) error {
	return NewDomainError(CodeConfig, message, http.StatusUnprocessableEntity, nil)
}

// NewNetworkError wraps a request that never produced a response.
func NewNetworkError(err error) error {
	return &DomainError{
		Code:       CodeNetwork,
		Message:    "unable to reach the server, please try again",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewBackendError carries a non-2xx backend response. 4xx statuses are passed through,
// anything else is reported as a bad gateway.
func NewBackendError(message string, upstreamStatus int) error {
	status := http.StatusBadGateway
	if upstreamStatus >= 400 && upstreamStatus < 500 {
		status = upstreamStatus
	}
	return NewDomainError(CodeBackend, message, status, map[string]any{"upstream_status": upstreamStatus})
}

// NewConfirmationRequired is returned when a destructive action was not confirmed.
func NewConfirmationRequired(action string) error {
	return NewDomainError(CodeConfirmationRequired, action+" requires confirmation", http.StatusPreconditionRequired, map[string]any{"action": action})
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

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
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

// HasCode reports whether err is a DomainError carrying code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

func MapError(err error) error {
	return ToDomainError(err)
}

package shared

import (
	"errors"
	"net/http"
)

// AppError is the error type every service returns across the API boundary.
// StatusCode drives the HTTP mapping, Kind the client-side branching.
type AppError struct {
	StatusCode int         `json:"code"`
	Kind       string      `json:"kind"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Err        error       `json:"-"`
}

const (
	KindValidation     = "validation_error"
	KindConflict       = "conflict_error"
	KindAuthentication = "authentication_error"
	KindNotFound       = "not_found_error"
	KindIllegalState   = "illegal_state_error"
	KindForbidden      = "forbidden_error"
	KindRateLimited    = "rate_limited"
	KindInternal       = "internal_error"
)

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// NewValidationError carries a field -> message map so the caller can
// re-prompt. It never accompanies a state change.
func NewValidationError(fields map[string]string) *AppError {
	return &AppError{
		StatusCode: http.StatusBadRequest,
		Kind:       KindValidation,
		Message:    "Validation failed",
		Data:       fields,
	}
}

func NewFieldError(field, message string) *AppError {
	return NewValidationError(map[string]string{field: message})
}

func NewConflictError(message string) *AppError {
	return &AppError{StatusCode: http.StatusConflict, Kind: KindConflict, Message: message}
}

// NewAuthenticationError deliberately uses one fixed message so a caller
// cannot tell whether the identifier or the secret was wrong.
func NewAuthenticationError() *AppError {
	return &AppError{
		StatusCode: http.StatusUnauthorized,
		Kind:       KindAuthentication,
		Message:    "Invalid identifier or password",
	}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{StatusCode: http.StatusNotFound, Kind: KindNotFound, Message: message}
}

// NewIllegalStateError marks a programmer error (e.g. upgrading a session
// that is not a guest). It is surfaced, logged at error level and never
// silently ignored.
func NewIllegalStateError(message string) *AppError {
	return &AppError{StatusCode: http.StatusInternalServerError, Kind: KindIllegalState, Message: message}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{StatusCode: http.StatusForbidden, Kind: KindForbidden, Message: message}
}

func NewRateLimitedError(message string) *AppError {
	return &AppError{StatusCode: http.StatusTooManyRequests, Kind: KindRateLimited, Message: message}
}

func NewInternalError(err error, message string) *AppError {
	return &AppError{StatusCode: http.StatusInternalServerError, Kind: KindInternal, Message: message, Err: err}
}

func NewBadRequestError(err error, message string) *AppError {
	return &AppError{StatusCode: http.StatusBadRequest, Kind: KindValidation, Message: message, Err: err}
}

func NewUnauthorizedError(err error, message string) *AppError {
	return &AppError{StatusCode: http.StatusUnauthorized, Kind: KindAuthentication, Message: message, Err: err}
}

func IsKind(err error, kind string) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Kind == kind
}

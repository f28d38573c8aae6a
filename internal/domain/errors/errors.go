package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeInternal       = "INTERNAL_ERROR"
	CodePersistence    = "PERSISTENCE_ERROR"
	CodeRemoteFetch    = "REMOTE_FETCH_ERROR"
	CodeRemoteTransfer = "REMOTE_TRANSFER_ERROR"
	CodeAuthMissing    = "AUTH_MISSING"
)

// Sentinels for errors.Is matching. AppError.Is compares codes only.
var (
	ErrValidation     = AppError{Code: CodeValidation}
	ErrNotFound       = AppError{Code: CodeNotFound}
	ErrPersistence    = AppError{Code: CodePersistence}
	ErrRemoteFetch    = AppError{Code: CodeRemoteFetch}
	ErrRemoteTransfer = AppError{Code: CodeRemoteTransfer}
	ErrAuthMissing    = AppError{Code: CodeAuthMissing}
)

// AppError is a custom error type for application errors
type AppError struct {
	Code    string
	Message string
	// StatusCode follows HTTP status semantics. For remote errors it carries the
	// status reported by the remote API, 0 when no response was received.
	StatusCode int
	Err        error
	Details    map[string]interface{}
}

// Error returns a string representation of the error
func (e AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is implements the errors.Is interface
func (e AppError) Is(target error) bool {
	if target, ok := target.(AppError); ok {
		return target.Code == e.Code
	}
	return false
}

// Unwrap returns the underlying error
func (e AppError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to the error
func (e AppError) WithDetails(details map[string]interface{}) AppError {
	e.Details = details
	return e
}

// WithDetail adds a single detail to the error
func (e AppError) WithDetail(key string, value interface{}) AppError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	e.Details = details
	return e
}

// As extracts an AppError from an error chain.
func As(err error) (AppError, bool) {
	var appErr AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return AppError{}, false
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// NewValidationError creates a new validation error
func NewValidationError(message string) AppError {
	return AppError{
		Code:       CodeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) AppError {
	return AppError{
		Code:       CodeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(message string) AppError {
	return AppError{
		Code:       CodeConflict,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) AppError {
	return AppError{
		Code:       CodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewPersistenceError reports a local store read or write failure.
func NewPersistenceError(message string, err error) AppError {
	return AppError{
		Code:       CodePersistence,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewRemoteFetchError reports a failed transaction fetch. Decode failures use
// statusCode 0 and wrap the decoding error.
func NewRemoteFetchError(statusCode int, message string, err error) AppError {
	return AppError{
		Code:       CodeRemoteFetch,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// NewRemoteTransferError reports a rejected or failed transfer.
func NewRemoteTransferError(statusCode int, message string, err error) AppError {
	return AppError{
		Code:       CodeRemoteTransfer,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// NewAuthMissingError reports that no credential was available, so no remote
// call was attempted.
func NewAuthMissingError(message string) AppError {
	return AppError{
		Code:       CodeAuthMissing,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

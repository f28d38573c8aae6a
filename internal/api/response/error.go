package response

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hirosato/pocketbank/backend/internal/domain/errors"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success          bool             `json:"success"`
	Error            string           `json:"error"`
	ErrorDescription ErrorDescription `json:"error_description"`
	Metadata         ResponseMetadata `json:"metadata"`
}

// ErrorDescription represents the error details
type ErrorDescription struct {
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// StatusFor maps an application error to the status of the local API.
// Remote failures are reported as 502 with the upstream status in the details.
func StatusFor(appErr errors.AppError) int {
	switch appErr.Code {
	case errors.CodeRemoteFetch, errors.CodeRemoteTransfer:
		return http.StatusBadGateway
	}
	if appErr.StatusCode < 400 || appErr.StatusCode > 599 {
		return http.StatusInternalServerError
	}
	return appErr.StatusCode
}

// Error writes err as an error envelope
func Error(w http.ResponseWriter, err error, requestID string) {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.NewInternalError("An unexpected error occurred", err)
	}

	details := appErr.Details
	if appErr.Code == errors.CodeRemoteFetch || appErr.Code == errors.CodeRemoteTransfer {
		details = make(map[string]interface{}, len(appErr.Details)+1)
		for k, v := range appErr.Details {
			details[k] = v
		}
		details["remoteStatus"] = appErr.StatusCode
	}

	resp := ErrorResponse{
		Success: false,
		Error:   appErr.Code,
		ErrorDescription: ErrorDescription{
			Message: appErr.Message,
			Details: details,
		},
		Metadata: newMetadata(requestID),
	}
	WriteJSON(w, StatusFor(appErr), resp)
}

// ValidationError writes a 400 error envelope
func ValidationError(w http.ResponseWriter, message string, requestID string) {
	Error(w, errors.NewValidationError(message), requestID)
}

// NotFound writes a 404 error envelope
func NotFound(w http.ResponseWriter, message string, requestID string) {
	Error(w, errors.NewNotFoundError(message), requestID)
}

// MethodNotAllowed writes a 405 error envelope
func MethodNotAllowed(w http.ResponseWriter, requestID string) {
	Error(w, errors.AppError{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "Method not allowed",
		StatusCode: http.StatusMethodNotAllowed,
	}, requestID)
}

func newMetadata(requestID string) ResponseMetadata {
	return ResponseMetadata{
		Version:   "1.0",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: requestID,
	}
}

func writeFallback(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            errors.CodeInternal,
		ErrorDescription: ErrorDescription{Message: "Failed to marshal response"},
	})
}

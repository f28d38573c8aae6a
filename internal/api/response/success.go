package response

import (
	"encoding/json"
	"net/http"
)

// SuccessResponse represents a success response
type SuccessResponse struct {
	Success    bool             `json:"success"`
	Data       interface{}      `json:"data"`
	Metadata   ResponseMetadata `json:"metadata"`
	Pagination *Pagination      `json:"pagination,omitempty"`
}

// ResponseMetadata represents the metadata for responses
type ResponseMetadata struct {
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"requestId,omitempty"`
}

// Pagination represents pagination information
type Pagination struct {
	Total   int `json:"total"`
	PerPage int `json:"perPage,omitempty"`
}

// DefaultHeaders returns the default headers for all responses
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type":                 "application/json",
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Content-Type,X-Request-Id",
		"Access-Control-Allow-Methods": "OPTIONS,GET,POST,DELETE",
	}
}

// Success writes data in the success envelope
func Success(w http.ResponseWriter, data interface{}, statusCode int, requestID string) {
	WriteJSON(w, statusCode, SuccessResponse{
		Success:  true,
		Data:     data,
		Metadata: newMetadata(requestID),
	})
}

// SuccessWithPagination writes data with pagination information
func SuccessWithPagination(w http.ResponseWriter, data interface{}, pagination *Pagination, statusCode int, requestID string) {
	WriteJSON(w, statusCode, SuccessResponse{
		Success:    true,
		Data:       data,
		Metadata:   newMetadata(requestID),
		Pagination: pagination,
	})
}

// OK writes a standard OK (200) response
func OK(w http.ResponseWriter, data interface{}, requestID string) {
	Success(w, data, http.StatusOK, requestID)
}

// Accepted writes a standard Accepted (202) response
func Accepted(w http.ResponseWriter, data interface{}, requestID string) {
	Success(w, data, http.StatusAccepted, requestID)
}

// WriteJSON writes a JSON response directly to an http.ResponseWriter
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		writeFallback(w)
		return
	}

	for key, value := range DefaultHeaders() {
		w.Header().Set(key, value)
	}
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}

// WriteNoContent writes a No Content (204) response to the provided writer
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Package handlers implements the HTTP surface over the orchestrator and its
// supporting services.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/upb/inference-gateway/services"
)

// ErrorResponse is the common error response structure
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SuccessResponse is the common success response structure
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError writes an error JSON response
func respondError(w http.ResponseWriter, statusCode int, err string, message string) {
	respondJSON(w, statusCode, ErrorResponse{
		Error:   err,
		Message: message,
	})
}

// respondDomainError maps a domain error to its HTTP status
func respondDomainError(w http.ResponseWriter, err error) {
	errType := services.GetErrorType(err)

	status := http.StatusInternalServerError
	switch errType {
	case services.ErrorTypeValidation:
		status = http.StatusBadRequest
	case services.ErrorTypeTimeout:
		status = http.StatusGatewayTimeout
	case services.ErrorTypeProvider, services.ErrorTypeExhausted:
		status = http.StatusBadGateway
	}

	name := string(errType)
	if name == "" {
		name = "internal"
	}

	respondJSON(w, status, ErrorResponse{
		Error:   name,
		Message: err.Error(),
		Details: services.GetErrorDetails(err),
	})
}

package api

import (
	"encoding/json"
	"net/http"
)

// Error codes returned in the JSON error body.
const (
	CodeTenantNotFound       = "TENANT_NOT_FOUND"
	CodeTenantSuspended      = "TENANT_SUSPENDED"
	CodeMissingTenantContext = "MISSING_TENANT_CONTEXT"
	CodeCrossTenantAccess    = "CROSS_TENANT_ACCESS"
	CodeInvalidAPIKey        = "INVALID_API_KEY"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeInternal             = "INTERNAL_ERROR"
)

var errorMessages = map[string]string{
	CodeTenantNotFound:       "Tenant not found",
	CodeTenantSuspended:      "This store has been suspended",
	CodeMissingTenantContext: "Tenant context is required for this request",
	CodeCrossTenantAccess:    "Access to this tenant is not permitted",
	CodeInvalidAPIKey:        "Invalid or inactive API key",
	CodeUnauthorized:         "Authentication required",
	CodeInternal:             "An internal error occurred",
}

// ErrorResponse is the body of every error this service writes.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: errorMessages[code],
		Code:    code,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

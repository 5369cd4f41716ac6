package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Machine-readable error codes carried in the error envelope.
const (
	codeAuthRequired       = "AUTH_REQUIRED"
	codeAdminRequired      = "ADMIN_REQUIRED"
	codeSuperAdminRequired = "SUPER_ADMIN_REQUIRED"
	codeInvalidToken       = "INVALID_TOKEN"
	codeInvalidCredentials = "INVALID_CREDENTIALS"
	codeValidationFailed   = "VALIDATION_FAILED"
	codeRateLimited        = "RATE_LIMITED"
	codeBadRequest         = "BAD_REQUEST"
	codeNotFound           = "NOT_FOUND"
	codeConflict           = "CONFLICT"
	codeInternal           = "INTERNAL"
)

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeData wraps a successful payload in the {success,data} envelope.
func writeData(w http.ResponseWriter, code int, v any) {
	writeJSON(w, code, map[string]any{"success": true, "data": v})
}

// writeError wraps a failure in the {success:false,error:{...}} envelope.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   errorBody{Message: message, Code: code},
	})
}

// writeValidationError includes itemized details alongside the message.
func writeValidationError(w http.ResponseWriter, message string, details any) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"success": false,
		"error":   errorBody{Message: message, Code: codeValidationFailed, Details: details},
	})
}

// decodeJSON parses a request body strictly; unknown fields are rejected.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed", codeBadRequest)
}

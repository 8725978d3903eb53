package httputil

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the machine-readable part of an error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorEnvelope wraps every error response.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes the standard error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorEnvelope{Error: ErrorBody{Code: code, Message: message}})
}

// WriteBadRequest writes a 400 with the given code.
func WriteBadRequest(w http.ResponseWriter, code, message string) {
	WriteError(w, http.StatusBadRequest, code, message)
}

// WriteUnauthorized writes a 401 with the given code.
func WriteUnauthorized(w http.ResponseWriter, code, message string) {
	WriteError(w, http.StatusUnauthorized, code, message)
}

// WriteForbidden writes a 403 with the given code.
func WriteForbidden(w http.ResponseWriter, code, message string) {
	WriteError(w, http.StatusForbidden, code, message)
}

// WriteConflict writes a 409 with the given code.
func WriteConflict(w http.ResponseWriter, code, message string) {
	WriteError(w, http.StatusConflict, code, message)
}

// WriteInternalError writes a 500. The underlying error is never sent to
// the client; log it at the call site.
func WriteInternalError(w http.ResponseWriter, code string) {
	WriteError(w, http.StatusInternalServerError, code, "Internal server error")
}

// WriteServiceUnavailable writes a 503 with the given code.
func WriteServiceUnavailable(w http.ResponseWriter, code, message string) {
	WriteError(w, http.StatusServiceUnavailable, code, message)
}

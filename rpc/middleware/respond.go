package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
)

// ErrorBody is the JSON shape of every API error.
type ErrorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes an ErrorBody. The request id is taken from the response
// header set by RequestID.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		message = http.StatusText(status)
	}
	WriteJSON(w, status, ErrorBody{
		Error:     message,
		Code:      code,
		RequestID: w.Header().Get(RequestIDHeader),
	})
}

func writeAuthError(w http.ResponseWriter, status int, err error) {
	WriteError(w, status, "Unauthenticated", err.Error())
}

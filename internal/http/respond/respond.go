// Package respond writes the JSON envelopes shared by every HTTP handler.
package respond

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the structured failure payload returned to callers.
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// JSON encodes payload with the given status.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Error writes an ErrorBody.
func Error(w http.ResponseWriter, status int, msg, details string) {
	JSON(w, status, ErrorBody{Error: msg, Details: details})
}

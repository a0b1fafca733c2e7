package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// errorResponse is the body of every non-2xx response: a stable
// snake_case code for programmatic handling and a human-readable
// message.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteJSON encodes data as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Encoding failures here mean the client is gone; nothing to do.
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an errorResponse with the given status, code, and
// message.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorResponse{Error: code, Message: message})
}

// ParseJSON decodes the request body into v. The request must carry an
// application/json Content-Type, and bodies with fields the target
// struct does not declare are rejected so client typos fail loudly
// instead of being dropped.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("Content-Type must be application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("request body is not valid JSON: %v", err)
	}
	return nil
}

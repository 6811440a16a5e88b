// Package httpx holds JSON response helpers shared by handlers.
package httpx

import (
	"encoding/json"
	"net/http"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// ValidationResponse is the body of a 400 carrying per-field messages.
type ValidationResponse struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			// avoid writing partial JSON
			http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func JSONError(w http.ResponseWriter, status int, msg string, details any) {
	JSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// ValidationError writes {"error":"validation_error","fields":{...}} with 400.
func ValidationError(w http.ResponseWriter, fields map[string][]string) {
	JSON(w, http.StatusBadRequest, ValidationResponse{Error: "validation_error", Fields: fields})
}

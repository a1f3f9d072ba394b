package web

import (
	"encoding/json"
	"net/http"
)

// errorBody is the wire shape for every non-2xx JSON response.
type errorBody struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorBody{
		StatusCode: code,
		Error:      http.StatusText(code),
		Message:    message,
	})
}

package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/vetora/vetora/pkg/api"
)

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response body failed", "error", err)
	}
}

// WriteError writes the public form of apiErr as {error, code, details}
// with the error's HTTP status. Rate limit errors also carry Retry-After.
func WriteError(w http.ResponseWriter, apiErr *api.APIError) {
	pub := apiErr.Public()
	if secs := pub.RetryAfterSeconds(); secs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	status := pub.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, pub)
}

// Package json provides HTTP response writing helpers.
package json

import (
	"encoding/json"
	"net/http"

	"github.com/pawmart/pawfront/internal/log"
)

// Write writes a JSON response with the given status code.
// Logs encoding failures instead of returning them; by the time encoding
// runs the status line is already on the wire.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.LogErrorWithFields("json", "Failed to encode response", map[string]any{
			"error": err.Error(),
		})
	}
}

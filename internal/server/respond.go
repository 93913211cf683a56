// ABOUTME: JSON request decoding and response helpers for the HTTP API
// ABOUTME: Maps store and validation errors onto status codes with {"detail": ...} bodies

package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/2389/trowel/internal/store"
)

// maxBodyBytes bounds request bodies; material images are inline base64.
const maxBodyBytes = 8 << 20

// Response details shared by several handlers.
const (
	detailUnavailable = "Database not reachable"
	detailInternal    = "Internal server error"
	detailBadJSON     = "Invalid JSON body"
)

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sendJSONError writes a {"detail": message} error body.
func sendJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"detail": message})
}

// sendValidationError writes 422 with a per-field message map.
func sendValidationError(w http.ResponseWriter, err error) {
	var fields validation.Errors
	if errors.As(err, &fields) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": fields})
		return
	}
	sendJSONError(w, http.StatusUnprocessableEntity, err.Error())
}

// decodeJSON reads a JSON body into dst, answering 422 itself on failure.
// Returns false when the handler should stop.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			sendJSONError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		case errors.Is(err, io.EOF):
			sendJSONError(w, http.StatusUnprocessableEntity, "Request body is required")
		default:
			sendJSONError(w, http.StatusUnprocessableEntity, detailBadJSON)
		}
		return false
	}
	return true
}

// sendStoreError maps a store failure that the handler did not expect to a
// response: outages become 503, anything else a generic 500.
func sendStoreError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	if errors.Is(err, store.ErrUnavailable) {
		logger.Error("store unavailable", "op", op, "error", err)
		sendJSONError(w, http.StatusServiceUnavailable, detailUnavailable)
		return
	}
	logger.Error("store operation failed", "op", op, "error", err)
	sendJSONError(w, http.StatusInternalServerError, detailInternal)
}

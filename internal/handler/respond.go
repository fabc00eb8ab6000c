// Package handler serves the notification JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/herald/internal/gateway"
	"github.com/dukerupert/herald/internal/model"
	"github.com/dukerupert/herald/internal/notify"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrTemplateNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidRecipient),
		errors.Is(err, model.ErrInvalidRequest),
		errors.Is(err, notify.ErrInvalidPreferences),
		errors.Is(err, notify.ErrInvalidTemplate),
		errors.Is(err, gateway.ErrInvalidToken):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError responds with the status for err. Server errors are logged
// and their details withheld from the client.
func writeError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(op, "error", err)
		writeMessage(w, status, "internal error")
		return
	}
	writeMessage(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func queryTime(r *http.Request, key string) (time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}

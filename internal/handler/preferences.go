package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/herald/internal/auth"
	"github.com/dukerupert/herald/internal/model"
	"github.com/dukerupert/herald/internal/notify"
)

type PreferencesHandler struct {
	svc    *notify.Service
	logger *slog.Logger
}

func NewPreferencesHandler(svc *notify.Service, logger *slog.Logger) *PreferencesHandler {
	return &PreferencesHandler{svc: svc, logger: logger}
}

// Get handles GET /api/preferences
func (h *PreferencesHandler) Get(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.svc.GetPreferences(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "get preferences", err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// Update handles PUT /api/preferences. The body replaces the caller's
// preferences.
func (h *PreferencesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var prefs model.Preferences
	if !decodeJSON(w, r, &prefs) {
		return
	}
	prefs.UserID = auth.UserID(r.Context())

	saved, err := h.svc.UpdatePreferences(r.Context(), prefs)
	if err != nil {
		writeError(w, h.logger, "update preferences", err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

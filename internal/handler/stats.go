package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/herald/internal/auth"
	"github.com/dukerupert/herald/internal/notify"
)

type StatsHandler struct {
	svc    *notify.Service
	logger *slog.Logger
}

func NewStatsHandler(svc *notify.Service, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{svc: svc, logger: logger}
}

// Stats handles GET /api/stats. Callers see their own analytics; admins
// may pass scope=all or user_id to look across users.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	from, err := queryTime(r, "from")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid from")
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid to")
		return
	}

	userID := auth.UserID(r.Context())
	q := r.URL.Query()
	if q.Get("scope") == "all" || q.Get("user_id") != "" {
		if !auth.IsAdmin(r.Context()) {
			writeMessage(w, http.StatusForbidden, "admin role required")
			return
		}
		userID = q.Get("user_id")
	}

	a, err := h.svc.Stats(r.Context(), userID, from, to)
	if err != nil {
		writeError(w, h.logger, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

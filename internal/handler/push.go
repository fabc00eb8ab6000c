package handler

import (
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/herald/internal/auth"
	"github.com/dukerupert/herald/internal/gateway"
	"github.com/dukerupert/herald/internal/model"
	"github.com/dukerupert/herald/internal/notify"
)

type PushHandler struct {
	svc      *notify.Service
	vapidKey string
	logger   *slog.Logger
}

func NewPushHandler(svc *notify.Service, vapidKey string, logger *slog.Logger) *PushHandler {
	return &PushHandler{svc: svc, vapidKey: vapidKey, logger: logger}
}

// registerRequest carries a device credential. Token is the browser's
// subscription object for web, or the hex device token for native apps.
type registerRequest struct {
	DeviceID    string            `json:"device_id"`
	Platform    model.Platform    `json:"platform"`
	Environment model.Environment `json:"environment"`
	Token       json.RawMessage   `json:"token"`
}

// RegisterToken handles POST /api/push/tokens
func (h *PushHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DeviceID == "" || len(req.Token) == 0 {
		writeMessage(w, http.StatusBadRequest, "device_id and token are required")
		return
	}
	if !req.Platform.Valid() {
		writeMessage(w, http.StatusBadRequest, "platform must be ios, android, or web")
		return
	}

	raw := []byte(req.Token)
	if req.Platform != model.PlatformWeb {
		var s string
		if err := json.Unmarshal(req.Token, &s); err != nil {
			writeMessage(w, http.StatusBadRequest, "token must be a hex string")
			return
		}
		b, err := hex.DecodeString(s)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "token must be a hex string")
			return
		}
		raw = b
	}

	token, err := h.svc.RegisterPushToken(r.Context(), gateway.TokenRegistration{
		UserID:      auth.UserID(r.Context()),
		DeviceID:    req.DeviceID,
		Platform:    req.Platform,
		Environment: req.Environment,
		Raw:         raw,
	})
	if err != nil {
		writeError(w, h.logger, "register push token", err)
		return
	}
	writeJSON(w, http.StatusCreated, token)
}

// UnregisterDevice handles DELETE /api/push/devices/{device_id}
func (h *PushHandler) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	_, err := h.svc.UnregisterDevice(r.Context(), auth.UserID(r.Context()), r.PathValue("device_id"))
	if err != nil {
		writeError(w, h.logger, "unregister device", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.vapidKey == "" {
		writeMessage(w, http.StatusServiceUnavailable, "push is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.vapidKey})
}

package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/herald/internal/auth"
	"github.com/dukerupert/herald/internal/model"
	"github.com/dukerupert/herald/internal/notify"
)

type NotificationHandler struct {
	svc    *notify.Service
	logger *slog.Logger
}

func NewNotificationHandler(svc *notify.Service, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

type recipientFailure struct {
	UserID string `json:"user_id"`
	Error  string `json:"error"`
}

type sendResponse struct {
	Sent   []model.Notification `json:"sent"`
	Failed []recipientFailure   `json:"failed"`
}

func newSendResponse(res *notify.SendResult) sendResponse {
	out := sendResponse{Sent: res.Sent, Failed: []recipientFailure{}}
	if out.Sent == nil {
		out.Sent = []model.Notification{}
	}
	for _, f := range res.Failed {
		out.Failed = append(out.Failed, recipientFailure{UserID: f.UserID, Error: f.Err.Error()})
	}
	return out
}

// Send handles POST /api/notifications/send
func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req notify.SendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Send(r.Context(), req)
	h.writeSendResult(w, res, err)
}

// SendTemplated handles POST /api/notifications/send-templated
func (h *NotificationHandler) SendTemplated(w http.ResponseWriter, r *http.Request) {
	var req notify.TemplatedRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.SendTemplated(r.Context(), req)
	h.writeSendResult(w, res, err)
}

// writeSendResult answers 201 when every recipient succeeded, 207 on
// partial failure, and an error status when nothing was sent.
func (h *NotificationHandler) writeSendResult(w http.ResponseWriter, res *notify.SendResult, err error) {
	if err != nil && res == nil {
		writeError(w, h.logger, "send notification", err)
		return
	}
	body := newSendResponse(res)
	switch {
	case err != nil:
		h.logger.Error("send notification", "error", err)
		writeJSON(w, http.StatusInternalServerError, body)
	case len(res.Failed) > 0:
		writeJSON(w, http.StatusMultiStatus, body)
	default:
		writeJSON(w, http.StatusCreated, body)
	}
}

// List handles GET /api/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid page")
		return
	}
	limit, err := queryInt(r, "limit", model.DefaultPageLimit)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid limit")
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.Fetch(r.Context(), auth.UserID(r.Context()), page, limit, filter)
	if err != nil {
		writeError(w, h.logger, "fetch notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// UnreadCount handles GET /api/notifications/unread-count
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.UnreadCount(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "unread count", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

// Get handles GET /api/notifications/{id}
func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	n, ok := h.owned(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// Delete handles DELETE /api/notifications/{id}
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	n, ok := h.owned(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), n.ID); err != nil {
		writeError(w, h.logger, "delete notification", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAll handles DELETE /api/notifications
func (h *NotificationHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.DeleteAll(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "delete notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": count})
}

// MarkRead handles POST /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	n, ok := h.owned(w, r)
	if !ok {
		return
	}
	if err := h.svc.MarkAsRead(r.Context(), n.ID); err != nil {
		writeError(w, h.logger, "mark as read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.MarkAllAsRead(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "mark all as read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": count})
}

// Opened handles POST /api/notifications/{id}/opened
func (h *NotificationHandler) Opened(w http.ResponseWriter, r *http.Request) {
	n, ok := h.owned(w, r)
	if !ok {
		return
	}
	if err := h.svc.TrackOpened(r.Context(), n.ID); err != nil {
		writeError(w, h.logger, "track opened", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Dismissed handles POST /api/notifications/{id}/dismissed
func (h *NotificationHandler) Dismissed(w http.ResponseWriter, r *http.Request) {
	n, ok := h.owned(w, r)
	if !ok {
		return
	}
	if err := h.svc.TrackDismissed(r.Context(), n.ID); err != nil {
		writeError(w, h.logger, "track dismissed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type actionRequest struct {
	ActionID     string  `json:"action_id"`
	ResponseText *string `json:"response_text,omitempty"`
}

// Action handles POST /api/notifications/{id}/actions
func (h *NotificationHandler) Action(w http.ResponseWriter, r *http.Request) {
	n, ok := h.owned(w, r)
	if !ok {
		return
	}
	var req actionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ActionID == "" {
		writeMessage(w, http.StatusBadRequest, "action_id is required")
		return
	}

	result, err := h.svc.TrackAction(r.Context(), n.ID, req.ActionID, req.ResponseText)
	if err != nil {
		writeError(w, h.logger, "track action", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// owned loads the path's notification, answering 404 when it is missing or
// belongs to another user.
func (h *NotificationHandler) owned(w http.ResponseWriter, r *http.Request) (*model.Notification, bool) {
	n, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, "get notification", err)
		return nil, false
	}
	if n == nil || n.UserID != auth.UserID(r.Context()) {
		writeMessage(w, http.StatusNotFound, "notification not found")
		return nil, false
	}
	return n, true
}

// parseFilter reads type, channel, and priority lists (comma separated),
// read=true|false, and RFC 3339 from/to bounds.
func parseFilter(r *http.Request) (*model.Filter, error) {
	q := r.URL.Query()
	var f model.Filter
	var set bool

	for _, t := range splitQuery(q.Get("type")) {
		if !model.Type(t).Valid() {
			return nil, errInvalidQuery("type", t)
		}
		f.Types = append(f.Types, model.Type(t))
		set = true
	}
	for _, c := range splitQuery(q.Get("channel")) {
		if !model.Channel(c).Valid() {
			return nil, errInvalidQuery("channel", c)
		}
		f.Channels = append(f.Channels, model.Channel(c))
		set = true
	}
	for _, p := range splitQuery(q.Get("priority")) {
		if !model.Priority(p).Valid() {
			return nil, errInvalidQuery("priority", p)
		}
		f.Priorities = append(f.Priorities, model.Priority(p))
		set = true
	}
	switch v := q.Get("read"); v {
	case "":
	case "true", "false":
		read := v == "true"
		f.Read = &read
		set = true
	default:
		return nil, errInvalidQuery("read", v)
	}

	for key, dst := range map[string]**time.Time{"from": &f.DateFrom, "to": &f.DateTo} {
		t, err := queryTime(r, key)
		if err != nil {
			return nil, errInvalidQuery(key, q.Get(key))
		}
		if !t.IsZero() {
			*dst = &t
			set = true
		}
	}

	if !set {
		return nil, nil
	}
	return &f, nil
}

func splitQuery(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func errInvalidQuery(key, value string) error {
	return fmt.Errorf("invalid %s %q", key, value)
}

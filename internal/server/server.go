// Package server wires the HTTP routes.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/herald/internal/handler"
	"github.com/dukerupert/herald/internal/middleware"
	"github.com/dukerupert/herald/internal/notify"
	ws "github.com/dukerupert/herald/internal/websocket"
)

// sendLimit caps send requests per user per minute.
const sendLimit = 60

type Config struct {
	VAPIDPublicKey string
	// WebSocketOrigins lists cross-origin hosts allowed to open /ws.
	WebSocketOrigins []string
}

type Server struct {
	hub           *ws.Hub
	notificationH *handler.NotificationHandler
	preferencesH  *handler.PreferencesHandler
	pushH         *handler.PushHandler
	statsH        *handler.StatsHandler
	templateH     *handler.TemplateHandler
	rateLimiter   *middleware.RateLimiter
	wsOrigins     []string
	logger        *slog.Logger
}

func New(svc *notify.Service, hub *ws.Hub, cfg Config, logger *slog.Logger) *Server {
	return &Server{
		hub:           hub,
		notificationH: handler.NewNotificationHandler(svc, logger.With("component", "notification")),
		preferencesH:  handler.NewPreferencesHandler(svc, logger.With("component", "preferences")),
		pushH:         handler.NewPushHandler(svc, cfg.VAPIDPublicKey, logger.With("component", "push_handler")),
		statsH:        handler.NewStatsHandler(svc, logger.With("component", "stats")),
		templateH:     handler.NewTemplateHandler(svc, logger.With("component", "template")),
		rateLimiter:   middleware.NewRateLimiter(),
		wsOrigins:     cfg.WebSocketOrigins,
		logger:        logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Everything else needs a caller identity.
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)
	outerMux.Handle("/", middleware.RequireUser(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.ByUser, sendLimit, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(h).ServeHTTP(w, r)
	}
}

func adminOnly(h http.HandlerFunc) http.Handler {
	return middleware.RequireAdmin(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Notifications
	mux.HandleFunc("POST /api/notifications/send", s.rateLimitedHandler(s.notificationH.Send))
	mux.HandleFunc("POST /api/notifications/send-templated", s.rateLimitedHandler(s.notificationH.SendTemplated))
	mux.HandleFunc("GET /api/notifications", s.notificationH.List)
	mux.HandleFunc("DELETE /api/notifications", s.notificationH.DeleteAll)
	mux.HandleFunc("GET /api/notifications/unread-count", s.notificationH.UnreadCount)
	mux.HandleFunc("POST /api/notifications/read-all", s.notificationH.MarkAllRead)
	mux.HandleFunc("GET /api/notifications/{id}", s.notificationH.Get)
	mux.HandleFunc("DELETE /api/notifications/{id}", s.notificationH.Delete)
	mux.HandleFunc("POST /api/notifications/{id}/read", s.notificationH.MarkRead)
	mux.HandleFunc("POST /api/notifications/{id}/opened", s.notificationH.Opened)
	mux.HandleFunc("POST /api/notifications/{id}/dismissed", s.notificationH.Dismissed)
	mux.HandleFunc("POST /api/notifications/{id}/actions", s.notificationH.Action)

	// Preferences
	mux.HandleFunc("GET /api/preferences", s.preferencesH.Get)
	mux.HandleFunc("PUT /api/preferences", s.preferencesH.Update)

	// Push devices
	mux.HandleFunc("POST /api/push/tokens", s.pushH.RegisterToken)
	mux.HandleFunc("DELETE /api/push/devices/{device_id}", s.pushH.UnregisterDevice)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)

	mux.HandleFunc("GET /api/stats", s.statsH.Stats)

	// Templates; writes are admin only
	mux.HandleFunc("GET /api/templates", s.templateH.List)
	mux.HandleFunc("GET /api/templates/{type}", s.templateH.Get)
	mux.Handle("PUT /api/templates/{type}", adminOnly(s.templateH.Put))
	mux.Handle("DELETE /api/templates/{type}", adminOnly(s.templateH.Delete))

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket"), s.wsOrigins))
}

package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/herald/internal/auth"
)

// HandleWebSocket upgrades the caller's connection and streams their
// updates until it closes. originPatterns restricts cross-origin clients;
// empty allows only same-origin.
func HandleWebSocket(hub *Hub, logger *slog.Logger, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		if userID == "" {
			http.Error(w, "missing user", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			logger.Warn("websocket accept", "user_id", userID, "error", err)
			return
		}

		client := NewClient(hub, conn, userID)
		client.Run(r.Context())
	}
}

package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/herald/internal/auth"
)

// Identity headers set by the upstream gateway after it authenticates the
// caller.
const (
	UserIDHeader = "X-User-ID"
	RoleHeader   = "X-User-Role"
)

// RequireUser populates AuthContext from the identity headers and rejects
// requests without a user id.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing "+UserIDHeader+" header")
			return
		}

		ac := auth.AuthContext{
			UserID: userID,
			Role:   strings.TrimSpace(r.Header.Get(RoleHeader)),
		}
		ctx := auth.WithAuth(r.Context(), ac)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin checks that the authenticated user has the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

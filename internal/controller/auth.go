// internal/controller/auth.go
package controller

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const userIDKey contextKey = "user_id"

// RequireAuth validates the shared bearer token and picks up the
// caller identity from the X-User-ID header set by the auth layer in
// front of this service. Authentication itself is owned externally;
// this middleware only enforces the contract at the boundary.
func RequireAuth(apiToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if token == "" || token == header || token != apiToken {
				writeError(w, http.StatusUnauthorized, "missing or invalid auth token")
				return
			}

			uid := r.Header.Get("X-User-ID")
			if uid == "" {
				writeError(w, http.StatusUnauthorized, "missing user identity")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, uid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func userID(r *http.Request) string {
	uid, _ := r.Context().Value(userIDKey).(string)
	return uid
}

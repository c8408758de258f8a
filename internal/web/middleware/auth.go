// Package middleware holds HTTP middleware for the datasheet API.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
)

type contextKey string

const userIDKey contextKey = "user_id"

// UserAuth resolves the authenticated numeric user id for each request.
//
// Identity and session handling live in an upstream layer; this middleware
// reads the id that layer forwards in the X-User-ID header and rejects
// requests without one. Every core operation is scoped to this id.
func UserAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-User-ID")
		if raw == "" {
			slog.Warn("auth: missing user id",
				"path", r.URL.Path,
				"method", r.Method,
				"remote_addr", r.RemoteAddr,
			)
			http.Error(w, `{"error":"missing user identity","code":"AUTH_MISSING_USER"}`, http.StatusUnauthorized)
			return
		}

		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			slog.Warn("auth: invalid user id",
				"path", r.URL.Path,
				"method", r.Method,
				"remote_addr", r.RemoteAddr,
			)
			http.Error(w, `{"error":"invalid user identity","code":"AUTH_INVALID_USER"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the authenticated user id from the request context.
// Zero means UserAuth did not run, which is a routing bug.
func UserID(ctx context.Context) int64 {
	id, _ := ctx.Value(userIDKey).(int64)
	return id
}

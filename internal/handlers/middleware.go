package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/sand/restaurant-orders-app/backend/internal/apperr"
)

type contextKey string

const userIDContextKey contextKey = "user_id"

// requireAuth wraps a handler with bearer-token authentication and places the
// authenticated user id in the request context.
func (h *HTTPHandler) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			h.writeError(w, apperr.Unauthorized("Authentication token is missing from request headers."))
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			h.writeError(w, apperr.Unauthorized("Authentication token is missing from request headers."))
			return
		}

		userID, err := h.authService.ParseToken(token)
		if err != nil {
			h.writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), userIDContextKey, userID)
		next(w, r.WithContext(ctx))
	}
}

// userIDFromContext returns the authenticated user id placed by requireAuth.
func userIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	return userID, ok && userID != ""
}

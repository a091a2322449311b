package handler

import (
	"context"
	"net/http"
	"strings"

	"hackhub/backend/internal/pkg/auth"
	"hackhub/backend/internal/pkg/httputils"
)

type contextKey string

const userIDKey contextKey = "userID"

// RequireAuth rejects requests without a valid bearer token and stashes the
// resolved user id on the request context.
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			httputils.ResponseError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := auth.ValidateToken(token)
		if err != nil {
			httputils.ResponseError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next(w, r.WithContext(ctx))
	}
}

func requestUserID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

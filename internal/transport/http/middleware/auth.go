package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/nomance-app/nomance/internal/service"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// Auth resolves the caller from the bearer token. Requests without an
// Authorization header run as the guest user; a malformed or expired token
// is rejected.
func Auth(jwtSecret string, guestID uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := guestID

			if header := r.Header.Get("Authorization"); header != "" {
				tokenStr, ok := strings.CutPrefix(header, "Bearer ")
				if !ok {
					unauthorized(w, "Missing or invalid token")
					return
				}
				id, err := service.ParseToken(tokenStr, []byte(jwtSecret))
				if err != nil {
					unauthorized(w, "Invalid or expired token")
					return
				}
				userID = id
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"` + message + `"}}`))
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(UserIDKey).(uuid.UUID)
	return id
}

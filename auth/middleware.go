package auth

import (
	"context"
	"dm-relay/domain/chat"
	"dm-relay/errors"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const UserIDKey contextKey = "user_id"

const (
	cookieName = "token"
	queryParam = "token"
)

func WithUserID(ctx context.Context, user chat.UserID) context.Context {
	return context.WithValue(ctx, UserIDKey, user)
}

// UserIDFromContext returns the verified user injected by Middleware.
func UserIDFromContext(ctx context.Context) (chat.UserID, bool) {
	user, ok := ctx.Value(UserIDKey).(chat.UserID)
	return user, ok && user != ""
}

// Middleware rejects requests without a valid token with 401 and injects
// the verified user into the request context otherwise.
// The token is looked up in the cookie, the Authorization header, then the query.
func (v *TokenVerifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			unauthorized(w)
			return
		}
		user, err := v.ValidateToken(token)
		if err != nil {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), user)))
	})
}

func extractToken(r *http.Request) string {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get(queryParam)
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    errors.CodeUnauthorized,
		"message": errors.ErrUnauthenticated.Error(),
	})
}

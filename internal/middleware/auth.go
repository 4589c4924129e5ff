package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pliu/chatterbox/internal/auth"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// TokenValidator is satisfied by *auth.Issuer.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// RequireToken rejects requests without a valid session token. The token is
// read from "Authorization: Bearer <token>", or from the token query
// parameter for websocket handshakes, which cannot carry custom headers from
// a browser.
func RequireToken(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := tokens.Validate(token)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// UserID returns the authenticated user id stored by RequireToken.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}

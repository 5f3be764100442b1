package middlewares

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/oauth"

	"github.com/astracat/catform/httpx"
	"github.com/astracat/catform/log"
)

type userIDKey struct{}

// Authenticated guards the authoring surface: requests must carry a valid
// bearer token whose user_id claim resolves an account.
func Authenticated(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return chi.Chain(oauth.Authorize(secret, nil), resolveUser).Handler(next)
	}
}

func resolveUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(oauth.ClaimsContext).(map[string]string)
		if !ok {
			httpx.LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, "auth.claims")
			return
		}

		userID := claims["user_id"]
		if userID == "" {
			httpx.LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, "auth.claims.user_id")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the authenticated account id, or "" on unauthenticated
// requests.
func UserID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey{}).(string)
	return id
}

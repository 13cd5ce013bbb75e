package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/halcyonlabs/vaultgate/internal/server/service"
	"github.com/halcyonlabs/vaultgate/pkg/httpx"
	"github.com/halcyonlabs/vaultgate/pkg/slogx"
)

// SessionMiddleware resolves the bearer session token and injects the
// session's username into the request context. Unknown and expired tokens
// both surface as the same 401; the distinction is logged only. The token
// itself is never logged.
func SessionMiddleware(sessions *service.SessionService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			token, ok := bearerToken(r)
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized,
					"invalid_token", "Missing or malformed Authorization header")
				return
			}

			session, err := sessions.Validate(ctx, token)
			if err != nil {
				switch {
				case errors.Is(err, service.ErrSessionExpired):
					log.Warn("session rejected", "reason", "expired")
				case errors.Is(err, service.ErrSessionNotFound):
					log.Warn("session rejected", "reason", "unknown")
				default:
					log.Error("session lookup failed", "err", err)
					httpx.WriteError(w, http.StatusInternalServerError,
						"server_error", "Internal server error")
					return
				}
				httpx.WriteError(w, http.StatusUnauthorized,
					"invalid_token", "Invalid or expired session token")
				return
			}

			ctx = httpx.ContextWithUsername(ctx, session.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(auth, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

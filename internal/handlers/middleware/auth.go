package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/reelplatform/reelauth/internal/handlers/render"
	"github.com/reelplatform/reelauth/internal/handlers/userctx"
	"github.com/reelplatform/reelauth/internal/models"
)

const bearerScheme = "Bearer"

type authorizer interface {
	// Verify an access token and return the principal it carries
	Authorize(ctx context.Context, rawAccess string) (models.Principal, error)
}

// AuthMiddleware guards handlers with bearer access token authentication.
// Every denial is the same generic 401, no reason leaks to the caller.
func AuthMiddleware(a authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			principal, err := a.Authorize(r.Context(), raw)
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := userctx.New(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) || token == "" {
		return "", false
	}
	return token, true
}

package server

import (
	"context"
	"errors"
	"net/http"

	"gcs/internal/auth"
	"gcs/internal/models"
)

type authContextKey struct{}

func contextWithPrincipal(ctx context.Context, principal *models.Principal) context.Context {
	return context.WithValue(ctx, authContextKey{}, principal)
}

func principalFromContext(ctx context.Context) *models.Principal {
	if ctx == nil {
		return nil
	}
	principal, _ := ctx.Value(authContextKey{}).(*models.Principal)
	return principal
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || s.auth == nil {
			next.ServeHTTP(w, r)
			return
		}

		principal, err := s.auth.Principal(r)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				w.Header().Set("WWW-Authenticate", `Basic realm="gcs"`)
			}
			s.writeErrorReq(w, r, http.StatusUnauthorized, makeAPIError(http.StatusUnauthorized, "unauthorized", ErrCodeUnauthorized, err))
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithPrincipal(r.Context(), principal)))
	})
}

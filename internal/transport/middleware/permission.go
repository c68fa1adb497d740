package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/frahmantamala/santega-authz/internal"
	"github.com/frahmantamala/santega-authz/internal/affiliation"
	"github.com/frahmantamala/santega-authz/internal/auth"
	"github.com/frahmantamala/santega-authz/internal/authz"
	"github.com/frahmantamala/santega-authz/internal/establishment"
	"github.com/frahmantamala/santega-authz/pkg/logger"
)

// SessionSource hands out the caller's session, signing them in on first use.
type SessionSource interface {
	SignIn(ctx context.Context, identity affiliation.ProfessionalIdentity) (*establishment.Session, error)
}

// RequirePermission lets the request through when the caller's active
// establishment grants any of perms. Callers with no active establishment
// are denied.
func RequirePermission(sessions SessionSource, perms ...authz.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				writeAppError(w, auth.ErrInvalidToken)
				return
			}

			// A directory failure still yields a session; its context grants nothing.
			s, _ := sessions.SignIn(r.Context(), identity)
			if s == nil {
				writeAppError(w, internal.ErrNoSession)
				return
			}

			ctx := s.Resolver.Context()
			if !ctx.HasAny(perms...) {
				logger.From(r.Context()).Warn("access denied: missing permission",
					"professional_id", internal.ProfessionalIDFromContext(r.Context()),
					"required_permissions", perms,
					"state", ctx.State().String())
				writeAppError(w, internal.ErrInsufficientPermission)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeAppError(w http.ResponseWriter, appErr *internal.AppError) {
	status, body := appErr.ToHTTPResponse()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

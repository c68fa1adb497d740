package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/santega-authz/internal"
	"github.com/frahmantamala/santega-authz/internal/transport"
	"github.com/frahmantamala/santega-authz/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Validator TokenValidator
	Sessions  SessionCloser

	// Forward, when set, lets downstream clients reuse the caller's token.
	Forward func(ctx context.Context, token string) context.Context
}

func NewHandler(validator TokenValidator, sessions SessionCloser, lg *slog.Logger) *Handler {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Validator:   validator,
		Sessions:    sessions,
	}
}

// Logout drops the caller's session. Later requests with a valid token start
// a new one.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, ErrInvalidToken)
		return
	}

	closed := false
	if h.Sessions != nil {
		closed = h.Sessions.SignOut(identity.ID)
	}
	logger.From(r.Context()).Info("professional logged out", "had_session", closed)

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.Logger.Warn("auth middleware: missing authorization token", "path", r.URL.Path)
			h.WriteAppError(w, ErrInvalidToken)
			return
		}

		claims, err := h.Validator.ValidateToken(token)
		if err != nil {
			h.Logger.Warn("token validation failed", "error", err, "path", r.URL.Path)
			if errors.Is(err, ErrTokenExpired) {
				h.WriteAppError(w, ErrTokenExpired)
				return
			}
			h.WriteAppError(w, ErrInvalidToken)
			return
		}

		identity := claims.Identity()
		ctx := ContextWithIdentity(r.Context(), identity)
		ctx = context.WithValue(ctx, contextTokenKey, token)
		if claims.ExpiresAt != nil {
			ctx = internal.ContextWithSessionExpiry(ctx, claims.ExpiresAt.Time)
		}
		if h.Forward != nil {
			ctx = h.Forward(ctx, token)
		}
		ctx = logger.With(ctx, "professional_id", identity.ID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

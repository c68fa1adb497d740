package auth

import (
	"context"
	"strings"

	"github.com/frahmantamala/santega-authz/internal"
	"github.com/frahmantamala/santega-authz/internal/affiliation"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is what the hosted auth service puts in its access tokens. Only the
// subject is required; email and name are informational.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// Identity maps the token claims to the signed-in professional.
func (c *Claims) Identity() affiliation.ProfessionalIdentity {
	return affiliation.ProfessionalIdentity{
		ID:          strings.TrimSpace(c.Subject),
		Email:       c.Email,
		DisplayName: c.Name,
	}
}

// TokenValidator checks a bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// SessionCloser drops a professional's session on logout.
type SessionCloser interface {
	SignOut(professionalID string) bool
}

var (
	ErrInvalidToken = internal.ErrInvalidToken
	ErrTokenExpired = internal.ErrTokenExpired
)

type ctxKey string

const (
	contextIdentityKey ctxKey = "identity"
	contextTokenKey    ctxKey = "token"
)

func ContextWithIdentity(ctx context.Context, identity affiliation.ProfessionalIdentity) context.Context {
	ctx = context.WithValue(ctx, contextIdentityKey, identity)
	return internal.ContextWithProfessionalID(ctx, identity.ID)
}

func IdentityFromContext(ctx context.Context) (affiliation.ProfessionalIdentity, bool) {
	if ctx == nil {
		return affiliation.ProfessionalIdentity{}, false
	}
	identity, ok := ctx.Value(contextIdentityKey).(affiliation.ProfessionalIdentity)
	return identity, ok
}

// TokenFromContext returns the raw bearer token the request was authenticated
// with.
func TokenFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	token, _ := ctx.Value(contextTokenKey).(string)
	return token
}

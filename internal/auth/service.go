package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTValidator validates HS256 access tokens issued by the hosted auth
// service. Token issuance lives there, not here.
type JWTValidator struct {
	secret []byte
	issuer string
	leeway time.Duration
}

type ValidatorOption func(*JWTValidator)

// WithIssuer rejects tokens whose iss claim differs.
func WithIssuer(issuer string) ValidatorOption {
	return func(v *JWTValidator) { v.issuer = strings.TrimSpace(issuer) }
}

// WithLeeway tolerates clock skew on exp/nbf/iat.
func WithLeeway(d time.Duration) ValidatorOption {
	return func(v *JWTValidator) { v.leeway = d }
}

func NewJWTValidator(secret string, opts ...ValidatorOption) *JWTValidator {
	v := &JWTValidator{secret: []byte(secret)}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateToken verifies the signature and registered claims. Expired tokens
// yield ErrTokenExpired; anything else wrong yields ErrInvalidToken.
func (v *JWTValidator) ValidateToken(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrInvalidToken
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}
	if v.leeway > 0 {
		parserOpts = append(parserOpts, jwt.WithLeeway(v.leeway))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired.WithCause(err)
		}
		return nil, ErrInvalidToken.WithCause(err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken.WithCause(errors.New("missing subject"))
	}
	return claims, nil
}

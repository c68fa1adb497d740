package internal

import (
	"context"
	"time"
)

type professionalKey struct{}

type sessionExpiryKey struct{}

// ContextWithProfessionalID records the signed-in professional for code that
// only needs the id, such as log fields.
func ContextWithProfessionalID(ctx context.Context, professionalID string) context.Context {
	return context.WithValue(ctx, professionalKey{}, professionalID)
}

func ProfessionalIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(professionalKey{}).(string)
	return id
}

// ContextWithSessionExpiry records when the caller's credentials stop being
// valid. Sessions created or touched with this context are evicted after it.
func ContextWithSessionExpiry(ctx context.Context, expiresAt time.Time) context.Context {
	return context.WithValue(ctx, sessionExpiryKey{}, expiresAt)
}

func SessionExpiryFromContext(ctx context.Context) (time.Time, bool) {
	if ctx == nil {
		return time.Time{}, false
	}
	t, ok := ctx.Value(sessionExpiryKey{}).(time.Time)
	return t, ok && !t.IsZero()
}

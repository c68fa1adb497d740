package directory

import (
	"context"
	"errors"

	"github.com/frahmantamala/santega-authz/internal"
	"github.com/frahmantamala/santega-authz/internal/affiliation"
)

// Client fetches the affiliation list of one professional. Zero affiliations
// is a valid empty list; ErrNotFound means the professional is unknown.
type Client interface {
	FetchAffiliations(ctx context.Context, professionalID string) ([]affiliation.Affiliation, error)
}

var (
	ErrNotFound     = internal.ErrDirectoryNotFound
	ErrUnauthorized = internal.ErrDirectoryUnauthorized
	ErrUnavailable  = internal.ErrDirectoryUnavailable
)

type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindUnauthorized
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// KindOf classifies err into one of the directory failure kinds.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	default:
		return KindUnknown
	}
}

// Retryable is true only for transient failures.
func Retryable(err error) bool {
	return KindOf(err) == KindUnavailable
}

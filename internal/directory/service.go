package directory

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/santega-authz/internal/affiliation"
	affiliationDatamodel "github.com/frahmantamala/santega-authz/internal/core/datamodel/affiliation"
	"github.com/frahmantamala/santega-authz/internal/obs"
)

const DefaultTimeout = 10 * time.Second

// RepositoryAPI is a raw row source. Implementations return ErrNotFound when
// the professional has no record and may return ErrUnauthorized or
// ErrUnavailable; any other error is treated as transient.
type RepositoryAPI interface {
	GetAffiliations(ctx context.Context, professionalID string) ([]*affiliationDatamodel.ProfessionalAffiliation, error)
}

type Service struct {
	repo    RepositoryAPI
	backend string
	timeout time.Duration
	logger  *slog.Logger
}

type Option func(*Service)

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithBackend sets the label used in logs and metrics.
func WithBackend(name string) Option {
	return func(s *Service) {
		s.backend = name
	}
}

func NewService(repo RepositoryAPI, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		backend: "postgres",
		timeout: DefaultTimeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) FetchAffiliations(ctx context.Context, professionalID string) ([]affiliation.Affiliation, error) {
	start := time.Now()
	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.repo.GetAffiliations(fetchCtx, professionalID)
	if err != nil {
		err = s.classify(ctx, err)
		outcome := KindOf(err).String()
		if errors.Is(err, context.Canceled) {
			outcome = "canceled"
		}
		obs.ObserveDirectoryFetch(s.backend, outcome, time.Since(start))
		s.logger.Warn("directory fetch failed",
			"professional_id", professionalID,
			"backend", s.backend,
			"kind", outcome,
			"error", err)
		return nil, err
	}

	list := make([]affiliation.Affiliation, 0, len(rows))
	for _, row := range rows {
		a, err := affiliation.FromDataModel(row)
		if err != nil {
			obs.DirectoryInvalidRows.Inc()
			s.logger.Warn("skipping invalid affiliation row",
				"professional_id", professionalID,
				"error", err)
			continue
		}
		if a.ProfessionalID != professionalID {
			s.logger.Warn("skipping affiliation of another professional",
				"professional_id", professionalID,
				"affiliation_id", a.ID)
			continue
		}
		list = append(list, a)
	}

	obs.ObserveDirectoryFetch(s.backend, "ok", time.Since(start))
	s.logger.Debug("directory fetch complete",
		"professional_id", professionalID,
		"backend", s.backend,
		"count", len(list))
	return affiliation.SortByID(list), nil
}

func (s *Service) classify(parent context.Context, err error) error {
	if errors.Is(parent.Err(), context.Canceled) {
		return context.Canceled
	}
	if KindOf(err) != KindUnknown {
		return err
	}
	return ErrUnavailable.WithCause(err)
}

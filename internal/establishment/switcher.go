package establishment

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/santega-authz/internal"
	"github.com/frahmantamala/santega-authz/internal/core/events"
	"github.com/frahmantamala/santega-authz/internal/obs"
	"github.com/frahmantamala/santega-authz/internal/preference"
)

var ErrPreferenceNotPersisted = internal.ErrPreferenceNotPersisted

// SwitchController changes the working establishment and remembers the
// choice for later sessions.
type SwitchController struct {
	resolver  *Resolver
	prefs     preference.Store
	logger    *slog.Logger
	publisher Publisher
}

func NewSwitchController(resolver *Resolver, prefs preference.Store, opts ...Option) *SwitchController {
	o := buildOptions(opts)
	return &SwitchController{
		resolver:  resolver,
		prefs:     prefs,
		logger:    o.logger,
		publisher: o.publisher,
	}
}

// SwitchTo activates affiliationID. Switching to the affiliation that is
// already active returns the current context and writes nothing.
//
// When the preference write fails the switch still holds: the new context is
// returned together with an error wrapping ErrPreferenceNotPersisted.
func (s *SwitchController) SwitchTo(ctx context.Context, affiliationID string) (*Context, error) {
	professionalID := s.resolver.identity.ID
	prev := s.resolver.Context().Active()

	next, changed, err := s.resolver.selectAffiliation(affiliationID)
	if err != nil {
		obs.SwitchTotal.WithLabelValues(switchOutcome(err)).Inc()
		s.logger.Info("establishment switch rejected",
			"professional_id", professionalID,
			"affiliation_id", affiliationID,
			"error", err)
		return nil, err
	}
	if !changed {
		obs.SwitchTotal.WithLabelValues("unchanged").Inc()
		return next, nil
	}

	fromID := ""
	if prev != nil {
		fromID = prev.ID
	}
	establishmentID := next.active.EstablishmentID

	if s.prefs == nil {
		obs.SwitchTotal.WithLabelValues("ok").Inc()
		s.publish(ctx, events.NewSwitchedEvent(professionalID, fromID, affiliationID, establishmentID, false))
		return next, nil
	}

	if werr := s.prefs.Set(ctx, professionalID, affiliationID); werr != nil {
		obs.SwitchTotal.WithLabelValues("preference_failed").Inc()
		s.logger.Warn("active establishment switched but preference not saved",
			"professional_id", professionalID,
			"affiliation_id", affiliationID,
			"error", werr)
		s.publish(ctx, events.NewSwitchedEvent(professionalID, fromID, affiliationID, establishmentID, false))
		s.publish(ctx, events.NewPreferenceFailedEvent(professionalID, affiliationID, werr.Error()))
		return next, ErrPreferenceNotPersisted.WithCause(werr)
	}

	obs.SwitchTotal.WithLabelValues("ok").Inc()
	s.logger.Info("active establishment switched",
		"professional_id", professionalID,
		"from_affiliation_id", fromID,
		"to_affiliation_id", affiliationID,
		"establishment_id", establishmentID)
	s.publish(ctx, events.NewSwitchedEvent(professionalID, fromID, affiliationID, establishmentID, true))
	return next, nil
}

func (s *SwitchController) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

func switchOutcome(err error) string {
	switch {
	case errors.Is(err, ErrNotAffiliated):
		return "not_affiliated"
	case errors.Is(err, ErrNotActive):
		return "not_active"
	case errors.Is(err, ErrSessionClosed):
		return "session_closed"
	default:
		return "error"
	}
}

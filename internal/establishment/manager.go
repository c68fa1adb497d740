package establishment

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/frahmantamala/santega-authz/internal"
	"github.com/frahmantamala/santega-authz/internal/affiliation"
	"github.com/frahmantamala/santega-authz/internal/directory"
	"github.com/frahmantamala/santega-authz/internal/obs"
	"github.com/frahmantamala/santega-authz/internal/preference"
)

var ErrNoSession = internal.ErrNoSession

// Session is everything one signed-in professional owns. Nothing in it is
// shared with another professional.
type Session struct {
	Identity affiliation.ProfessionalIdentity
	Resolver *Resolver
	Switcher *SwitchController

	ready   chan struct{}
	initErr error

	// guarded by Manager.mu
	lastSeen  time.Time
	expiresAt time.Time
}

// Manager keeps one session per signed-in professional.
type Manager struct {
	client  directory.Client
	prefs   preference.Store
	opts    []Option
	logger  *slog.Logger
	now     func() time.Time
	idleTTL time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(client directory.Client, prefs preference.Store, opts ...Option) *Manager {
	o := buildOptions(opts)
	return &Manager{
		client:   client,
		prefs:    prefs,
		opts:     opts,
		logger:   o.logger,
		now:      o.now,
		idleTTL:  o.idleTTL,
		sessions: make(map[string]*Session),
	}
}

// SignIn returns the professional's session, creating it and running the
// first directory fetch if needed. Concurrent callers for the same
// professional wait for that first fetch. A directory failure still leaves a
// usable session in StateError and is returned alongside it. A sign-in
// cancelled by its own caller leaves nothing behind and returns a nil
// session; callers still waiting on it start over with their own context.
//
// Every call counts as activity for the idle sweep, and an expiry found in
// ctx (see internal.ContextWithSessionExpiry) extends the session's lifetime.
func (m *Manager) SignIn(ctx context.Context, identity affiliation.ProfessionalIdentity) (*Session, error) {
	for {
		m.mu.Lock()
		s, ok := m.sessions[identity.ID]
		if ok {
			m.touchLocked(ctx, s)
			m.mu.Unlock()
			select {
			case <-s.ready:
				if errors.Is(s.initErr, context.Canceled) {
					if ctx.Err() == nil {
						continue
					}
					return nil, ctx.Err()
				}
				return s, s.initErr
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resolver := NewResolver(identity, m.client, m.prefs, m.opts...)
		s = &Session{
			Identity: identity,
			Resolver: resolver,
			Switcher: NewSwitchController(resolver, m.prefs, m.opts...),
			ready:    make(chan struct{}),
		}
		m.touchLocked(ctx, s)
		m.sessions[identity.ID] = s
		obs.ActiveSessions.Set(float64(len(m.sessions)))
		m.mu.Unlock()

		return m.start(ctx, s)
	}
}

func (m *Manager) start(ctx context.Context, s *Session) (*Session, error) {
	_, err := s.Resolver.Refresh(ctx)
	switch {
	case errors.Is(err, ErrSuperseded):
		err = nil
	case errors.Is(err, context.Canceled):
		m.drop(s.Identity.ID, s)
	}
	s.initErr = err
	close(s.ready)

	if errors.Is(err, context.Canceled) {
		return nil, err
	}
	m.logger.Info("professional signed in",
		"professional_id", s.Identity.ID,
		"state", s.Resolver.Context().State().String())
	return s, err
}

func (m *Manager) touchLocked(ctx context.Context, s *Session) {
	s.lastSeen = m.now()
	if exp, ok := internal.SessionExpiryFromContext(ctx); ok && exp.After(s.expiresAt) {
		s.expiresAt = exp
	}
}

// Sweep signs out every session whose token expiry has passed or that has
// been idle longer than the idle TTL. Sessions still on their first fetch
// are left alone. It returns how many were removed.
func (m *Manager) Sweep() int {
	now := m.now()

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		select {
		case <-s.ready:
		default:
			continue
		}
		if m.expiredLocked(s, now) {
			delete(m.sessions, id)
			expired = append(expired, s)
		}
	}
	if len(expired) > 0 {
		obs.ActiveSessions.Set(float64(len(m.sessions)))
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Resolver.Close()
		m.logger.Info("session expired", "professional_id", s.Identity.ID)
	}
	return len(expired)
}

func (m *Manager) expiredLocked(s *Session, now time.Time) bool {
	if !s.expiresAt.IsZero() && !now.Before(s.expiresAt) {
		return true
	}
	return m.idleTTL > 0 && now.Sub(s.lastSeen) > m.idleTTL
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// SignOut closes the session. Any in-flight fetch is cancelled and its result
// discarded.
func (m *Manager) SignOut(professionalID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[professionalID]
	if ok {
		delete(m.sessions, professionalID)
		obs.ActiveSessions.Set(float64(len(m.sessions)))
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.Resolver.Close()
	m.logger.Info("professional signed out", "professional_id", professionalID)
	return true
}

func (m *Manager) Get(professionalID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[professionalID]
	return s, ok
}

// Context returns the professional's resolved context, or ErrNoSession.
func (m *Manager) Context(professionalID string) (*Context, error) {
	s, ok := m.Get(professionalID)
	if !ok {
		return nil, ErrNoSession
	}
	return s.Resolver.Context(), nil
}

// OnDirectoryChanged refreshes the professional's resolver if they are signed
// in. Changes for professionals without a session are ignored.
func (m *Manager) OnDirectoryChanged(ctx context.Context, professionalID string) {
	s, ok := m.Get(professionalID)
	if !ok {
		return
	}
	if _, err := s.Resolver.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Warn("refresh after directory change failed",
			"professional_id", professionalID,
			"error", err)
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close signs everyone out.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	obs.ActiveSessions.Set(0)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Resolver.Close()
	}
}

func (m *Manager) drop(professionalID string, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[professionalID]; ok && cur == s {
		delete(m.sessions, professionalID)
		obs.ActiveSessions.Set(float64(len(m.sessions)))
	}
	s.Resolver.Close()
}

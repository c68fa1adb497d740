package establishment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frahmantamala/santega-authz/internal"
	"github.com/frahmantamala/santega-authz/internal/affiliation"
	"github.com/frahmantamala/santega-authz/internal/authz"
	"github.com/frahmantamala/santega-authz/internal/core/events"
	"github.com/frahmantamala/santega-authz/internal/directory"
	"github.com/frahmantamala/santega-authz/internal/obs"
	"github.com/frahmantamala/santega-authz/internal/preference"
)

var (
	ErrNotAffiliated = internal.ErrNotAffiliated
	ErrNotActive     = internal.ErrNotActive
	ErrSessionClosed = internal.ErrSessionClosed

	// ErrSuperseded is returned by a Refresh whose result lost to a newer one.
	ErrSuperseded = fmt.Errorf("refresh superseded: %w", context.Canceled)
)

// Publisher is satisfied by *events.EventBus.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Option func(*options)

type options struct {
	logger    *slog.Logger
	publisher Publisher
	now       func() time.Time
	idleTTL   time.Duration
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithPublisher(p Publisher) Option {
	return func(o *options) { o.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIdleTTL makes Manager.Sweep sign out sessions unused for longer than d.
// Zero disables idle eviction.
func WithIdleTTL(d time.Duration) Option {
	return func(o *options) { o.idleTTL = d }
}

func buildOptions(opts []Option) options {
	o := options{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Resolver owns the authorization context of one professional. Reads are
// lock-free; transitions are serialized and publish a fresh Context.
type Resolver struct {
	identity affiliation.ProfessionalIdentity
	client   directory.Client
	prefs    preference.Store
	opts     options

	current atomic.Pointer[Context]

	mu          sync.Mutex
	lastGood    *Context
	candidate   string
	prefLoaded  bool
	generation  uint64
	version     uint64
	cancelFetch context.CancelFunc
	subs        map[uint64]*Subscription
	nextSubID   uint64
	closed      bool
}

func NewResolver(identity affiliation.ProfessionalIdentity, client directory.Client, prefs preference.Store, opts ...Option) *Resolver {
	r := &Resolver{
		identity: identity,
		client:   client,
		prefs:    prefs,
		opts:     buildOptions(opts),
		subs:     make(map[uint64]*Subscription),
	}
	r.current.Store(&Context{
		professionalID: identity.ID,
		state:          StateUninitialized,
		lastGoodState:  StateUninitialized,
	})
	return r
}

func (r *Resolver) Identity() affiliation.ProfessionalIdentity {
	return r.identity
}

// Context never blocks and never returns nil.
func (r *Resolver) Context() *Context {
	return r.current.Load()
}

func (r *Resolver) Has(p authz.Permission) bool {
	return r.Context().Has(p)
}

func (r *Resolver) Affiliations() []affiliation.Affiliation {
	return r.Context().Affiliations()
}

// Refresh fetches the affiliation list and re-evaluates from scratch. A newer
// Refresh or Close cancels this one; its result is then dropped and
// ErrSuperseded or ErrSessionClosed is returned. Directory failures move the
// resolver to StateError and are returned unchanged; they are not retried.
func (r *Resolver) Refresh(ctx context.Context) (*Context, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return r.Context(), ErrSessionClosed
	}
	if r.cancelFetch != nil {
		r.cancelFetch()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	r.generation++
	gen := r.generation
	r.cancelFetch = cancel
	loadPref := !r.prefLoaded && r.prefs != nil
	r.mu.Unlock()
	defer cancel()

	list, err := r.client.FetchAffiliations(fetchCtx, r.identity.ID)

	var (
		pref    string
		hasPref bool
		prefOK  bool
	)
	if err == nil && loadPref {
		p, ok, perr := r.prefs.Get(fetchCtx, r.identity.ID)
		if perr != nil {
			r.opts.logger.Warn("failed to read active establishment preference",
				"professional_id", r.identity.ID,
				"error", perr)
		} else {
			pref, hasPref, prefOK = p, ok, true
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return r.Context(), ErrSessionClosed
	}
	if gen != r.generation {
		r.opts.logger.Debug("dropping superseded directory result",
			"professional_id", r.identity.ID,
			"generation", gen)
		return r.Context(), ErrSuperseded
	}
	r.cancelFetch = nil

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return r.Context(), err
		}
		r.version++
		next := failed(r.identity.ID, r.lastGood, err, r.version, r.opts.now())
		r.publishLocked(ctx, next)
		return next, err
	}

	if prefOK {
		r.prefLoaded = true
		if hasPref && r.candidate == "" {
			r.candidate = pref
		}
	}

	r.version++
	next := evaluate(r.identity.ID, list, r.candidate, r.version, r.opts.now())
	if a := next.active; a != nil {
		r.candidate = a.ID
	} else {
		r.candidate = ""
	}
	r.lastGood = next
	r.publishLocked(ctx, next)
	return next, nil
}

// Select makes id the working affiliation. It fails with ErrNotAffiliated or
// ErrNotActive and then leaves the context untouched.
func (r *Resolver) Select(id string) (*Context, error) {
	c, _, err := r.selectAffiliation(id)
	return c, err
}

func (r *Resolver) selectAffiliation(id string) (*Context, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false, ErrSessionClosed
	}
	cur := r.Context()
	a, ok := affiliation.Find(cur.affiliations, id)
	if !ok {
		return nil, false, ErrNotAffiliated
	}
	if !a.IsActive() {
		return nil, false, ErrNotActive
	}
	if cur.active != nil && cur.active.ID == id {
		return cur, false, nil
	}

	r.candidate = id
	r.version++
	next := evaluate(r.identity.ID, cur.affiliations, id, r.version, r.opts.now())
	r.lastGood = next
	if cur.state == StateError {
		next = failed(r.identity.ID, next, cur.err, r.version, next.resolvedAt)
	}
	r.publishLocked(context.Background(), next)
	return next, true, nil
}

// Close cancels any in-flight fetch and ends every subscription. Late results
// are dropped. The last context stays readable.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if r.cancelFetch != nil {
		r.cancelFetch()
		r.cancelFetch = nil
	}
	for id, s := range r.subs {
		delete(r.subs, id)
		close(s.ch)
	}
}

func (r *Resolver) publishLocked(ctx context.Context, next *Context) {
	prev := r.current.Swap(next)
	if prev.State() != next.State() {
		obs.StateTransitions.WithLabelValues(next.State().String()).Inc()
		r.opts.logger.Info("establishment context changed",
			"professional_id", r.identity.ID,
			"from", prev.State().String(),
			"to", next.State().String(),
			"version", next.Version())
	}
	for _, s := range r.subs {
		s.deliver(next)
	}
	if r.opts.publisher != nil {
		activeID := ""
		if next.active != nil {
			activeID = next.active.ID
		}
		event := events.NewContextChangedEvent(r.identity.ID, next.State().String(), activeID, next.Version())
		if err := r.opts.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
			r.opts.logger.Warn("failed to publish context change",
				"professional_id", r.identity.ID,
				"error", err)
		}
	}
}

// Subscription receives every published context, latest wins: a slow reader
// skips intermediate values but always sees the newest one.
type Subscription struct {
	C  <-chan *Context
	ch chan *Context
	id uint64
	r  *Resolver
}

// Subscribe pushes the current context right away, then every change.
func (r *Resolver) Subscribe() *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan *Context, 1)
	s := &Subscription{C: ch, ch: ch, r: r}
	if r.closed {
		close(ch)
		return s
	}
	r.nextSubID++
	s.id = r.nextSubID
	r.subs[s.id] = s
	s.deliver(r.Context())
	return s
}

func (s *Subscription) deliver(c *Context) {
	select {
	case s.ch <- c:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- c:
	default:
	}
}

// Close stops delivery and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if _, ok := s.r.subs[s.id]; !ok {
		return
	}
	delete(s.r.subs, s.id)
	close(s.ch)
}

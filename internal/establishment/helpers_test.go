package establishment_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/frahmantamala/santega-authz/internal/affiliation"
	"github.com/frahmantamala/santega-authz/internal/authz"
	"github.com/frahmantamala/santega-authz/internal/core/events"
	"github.com/frahmantamala/santega-authz/internal/directory"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func aff(id, name string, role authz.Role, status affiliation.Status, perms ...authz.Permission) affiliation.Affiliation {
	return affiliation.Affiliation{
		ID:                id,
		ProfessionalID:    "pro-1",
		EstablishmentID:   "est-" + id,
		EstablishmentName: name,
		EstablishmentType: affiliation.EstablishmentHospital,
		Role:              role,
		Permissions:       authz.NewSet(perms...),
		Status:            status,
	}
}

// FakeDirectory implements directory.Client. Hooks run one per call before
// the list is read, so a test can hold a fetch open.
type FakeDirectory struct {
	mu         sync.Mutex
	lists      map[string][]affiliation.Affiliation
	shouldFail bool
	failError  error
	hooks      []func(ctx context.Context) error
	calls      int
}

var _ directory.Client = (*FakeDirectory)(nil)

func NewFakeDirectory() *FakeDirectory {
	return &FakeDirectory{lists: make(map[string][]affiliation.Affiliation)}
}

func (f *FakeDirectory) FetchAffiliations(ctx context.Context, professionalID string) ([]affiliation.Affiliation, error) {
	f.mu.Lock()
	f.calls++
	var hook func(context.Context) error
	if len(f.hooks) > 0 {
		hook = f.hooks[0]
		f.hooks = f.hooks[1:]
	}
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shouldFail {
		return nil, f.failError
	}
	list, ok := f.lists[professionalID]
	if !ok {
		return nil, directory.ErrNotFound
	}
	out := make([]affiliation.Affiliation, len(list))
	copy(out, list)
	return out, nil
}

func (f *FakeDirectory) Set(professionalID string, list ...affiliation.Affiliation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[professionalID] = list
}

func (f *FakeDirectory) SetShouldFail(shouldFail bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shouldFail = shouldFail
	f.failError = err
}

// Hold makes the next fetch wait for release. When honourCancel is false the
// fetch ignores cancellation, like a slow backend that answers anyway.
func (f *FakeDirectory) Hold(honourCancel bool) (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.hooks = append(f.hooks, func(ctx context.Context) error {
		if !honourCancel {
			<-gate
			return nil
		}
		select {
		case <-gate:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (f *FakeDirectory) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// MockPreferenceStore implements preference.Store and counts writes.
type MockPreferenceStore struct {
	mu         sync.Mutex
	values     map[string]string
	writes     int
	shouldFail bool
	failError  error
	readFail   bool
}

func NewMockPreferenceStore() *MockPreferenceStore {
	return &MockPreferenceStore{values: make(map[string]string)}
}

func (m *MockPreferenceStore) Get(_ context.Context, professionalID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readFail {
		return "", false, errors.New("preference store offline")
	}
	v, ok := m.values[professionalID]
	return v, ok, nil
}

func (m *MockPreferenceStore) Set(_ context.Context, professionalID, affiliationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFail {
		return m.failError
	}
	m.writes++
	m.values[professionalID] = affiliationID
	return nil
}

func (m *MockPreferenceStore) SetShouldFail(shouldFail bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFail = shouldFail
	m.failError = err
}

func (m *MockPreferenceStore) SetReadFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readFail = fail
}

func (m *MockPreferenceStore) Value(professionalID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[professionalID]
	return v, ok
}

func (m *MockPreferenceStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// RecordingPublisher keeps every published event in order.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *RecordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *RecordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

func (p *RecordingPublisher) Last(eventType string) events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].EventType() == eventType {
			return p.events[i]
		}
	}
	return nil
}

package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"resume-agent/internal/resume"
	"resume-agent/internal/shared/metrics"
	"resume-agent/internal/shared/telemetry"
)

// ErrNotFound indicates an unknown or expired session id.
var ErrNotFound = fmt.Errorf("session %w", resume.ErrNotFound)

// Factory builds the empty session stored for a new id.
type Factory func() *resume.Session

// Info describes a registered session.
type Info struct {
	ID        string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the registry's time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator overrides how session ids are minted.
func WithIDGenerator(newID func() string) Option {
	return func(r *Registry) {
		if newID != nil {
			r.newID = newID
		}
	}
}

type entry struct {
	session *resume.Session
	info    Info
	refs    int
}

// Registry maps session ids to sessions and expires them after a fixed TTL
// from creation. Sessions held through Acquire are never swept.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry

	ttl     time.Duration
	factory Factory
	now     func() time.Time
	newID   func() string
}

// NewRegistry constructs a registry creating sessions with factory.
func NewRegistry(factory Factory, ttl time.Duration, opts ...Option) *Registry {
	if factory == nil {
		factory = func() *resume.Session { return resume.NewSession(nil, nil) }
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	r := &Registry{
		entries: make(map[string]*entry),
		ttl:     ttl,
		factory: factory,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Create registers a new empty session.
func (r *Registry) Create() Info {
	session := r.factory()
	now := r.now().UTC()

	r.mu.Lock()
	id := r.newID()
	if _, taken := r.entries[id]; taken {
		id = uuid.NewString()
	}
	info := Info{ID: id, CreatedAt: now, ExpiresAt: now.Add(r.ttl)}
	r.entries[id] = &entry{session: session, info: info}
	active := len(r.entries)
	r.mu.Unlock()

	metrics.IncSessionCreated()
	metrics.SetSessionsActive(active)
	return info
}

// Get returns the session for id. Expired sessions are reported as not found
// even before they are swept.
func (r *Registry) Get(id string) (*resume.Session, Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(id)
	if err != nil {
		return nil, Info{}, err
	}
	return e.session, e.info, nil
}

// Acquire returns the session for id and pins it against expiry until the
// returned release func is called. Release is safe to call more than once.
func (r *Registry) Acquire(id string) (*resume.Session, Info, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(id)
	if err != nil {
		return nil, Info{}, func() {}, err
	}
	e.refs++
	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			e.refs--
			r.mu.Unlock()
		})
	}
	return e.session, e.info, release, nil
}

// Delete removes id. Holders of an acquired session keep using it until they
// release it.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	_, ok := r.entries[id]
	delete(r.entries, id)
	active := len(r.entries)
	r.mu.Unlock()
	if ok {
		metrics.SetSessionsActive(active)
	}
	return ok
}

// Sweep removes expired sessions that are not in use and returns how many
// were removed.
func (r *Registry) Sweep() int {
	now := r.now()
	r.mu.Lock()
	removed := 0
	for id, e := range r.entries {
		if e.refs > 0 || now.Before(e.info.ExpiresAt) {
			continue
		}
		delete(r.entries, id)
		removed++
	}
	active := len(r.entries)
	r.mu.Unlock()

	metrics.SetSessionsActive(active)
	if removed > 0 {
		metrics.IncSessionsExpired(removed)
		telemetry.Info("session.sweep", map[string]any{
			"expired": removed,
			"active":  active,
		})
	}
	return removed
}

// Run sweeps every interval until ctx is done, then sweeps once more.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Sweep()
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Len returns the number of registered sessions, including expired ones not
// yet swept.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) lookup(id string) (*entry, error) {
	e, ok := r.entries[id]
	if !ok || !r.now().Before(e.info.ExpiresAt) {
		return nil, ErrNotFound
	}
	return e, nil
}

package session

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"

	"hll/contentbot/internal/catalog"
	"hll/contentbot/internal/domain"
	"hll/contentbot/internal/navigation"
)

// Session pairs one navigation machine with its activity timestamps. All
// machine access goes through Do, which serializes actions on this key while
// leaving other keys untouched.
type Session struct {
	Key     domain.SessionKey
	Machine *navigation.Machine

	mu           sync.Mutex
	createdAt    time.Time
	lastActiveAt time.Time
}

// Do runs fn with exclusive access to the machine and refreshes the activity
// timestamp. A second action arriving while one is in flight is rejected with
// ErrSessionBusy instead of racing the path mutation.
func (s *Session) Do(now time.Time, fn func(*navigation.Machine) error) error {
	if !s.mu.TryLock() {
		return domain.ErrSessionBusy
	}
	defer s.mu.Unlock()

	s.lastActiveAt = now
	return fn(s.Machine)
}

// Registry is the only mutable shared structure in the system: a concurrent
// map from session key to live session. Distinct keys proceed without
// contention; the registry lock only guards the map itself.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionKey]*Session
	store    *catalog.Store
	clock    clock.Clock
}

func NewRegistry(store *catalog.Store, clk clock.Clock) *Registry {
	if clk == nil {
		clk = clock.New()
	}
	return &Registry{
		sessions: make(map[domain.SessionKey]*Session),
		store:    store,
		clock:    clk,
	}
}

// GetOrCreate returns the session for key, creating it at the root menu of
// kind when absent. Idempotent.
func (r *Registry) GetOrCreate(key domain.SessionKey, kind domain.CatalogKind) *Session {
	r.mu.RLock()
	s, ok := r.sessions[key]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[key]; ok {
		return s
	}

	now := r.clock.Now()
	s = &Session{
		Key:          key,
		Machine:      navigation.New(r.store, kind, key),
		createdAt:    now,
		lastActiveAt: now,
	}
	r.sessions[key] = s
	log.Debugf("Created session %s for catalog %s", key, kind)
	return s
}

func (r *Registry) Get(key domain.SessionKey) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[key]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

func (r *Registry) Remove(key domain.SessionKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, key)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Now exposes the registry clock so callers time actions consistently.
func (r *Registry) Now() time.Time {
	return r.clock.Now()
}

// SweepExpired closes and removes every session idle for longer than
// idleTimeout. A session whose lock is held is mid-action and therefore not
// idle; it is skipped. Returns the number removed, for logging only.
func (r *Registry) SweepExpired(idleTimeout time.Duration) int {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, s := range r.sessions {
		if !s.mu.TryLock() {
			continue
		}
		expired := now.Sub(s.lastActiveAt) > idleTimeout
		if expired {
			s.Machine.Close()
		}
		s.mu.Unlock()

		if expired {
			delete(r.sessions, key)
			removed++
		}
	}

	if removed > 0 {
		log.Infof("🧹 Swept %d expired sessions, %d remain", removed, len(r.sessions))
	}
	return removed
}

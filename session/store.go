package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rustlet-web/rustlet/config"
)

// Store keeps all live sessions, keyed by their unpredictable ids. A
// background sweep evicts sessions idle for longer than the configured
// timeout; eviction and access serialize through the session's own lock plus
// the store map lock, so an access racing an eviction either sees the session
// already gone or finds it alive and refreshed.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	timeout       time.Duration
	sweepInterval time.Duration
	onEvict       func(id string)

	done chan struct{}
	wg   sync.WaitGroup
}

func NewStore(cfg config.Session) *Store {
	sweep := cfg.SweepInterval
	if sweep <= 0 {
		sweep = 10 * time.Second
	}

	return &Store{
		sessions:      make(map[string]*Session),
		timeout:       cfg.Timeout,
		sweepInterval: sweep,
		done:          make(chan struct{}),
	}
}

// OnEvict installs a callback invoked (outside any lock) for every session
// removed by the sweep. Must be set before Start.
func (s *Store) OnEvict(cb func(id string)) {
	s.onEvict = cb
}

// Start launches the background eviction sweep.
func (s *Store) Start() {
	s.wg.Add(1)
	go s.sweeper()
}

// Stop halts the sweep. Live sessions stay usable.
func (s *Store) Stop() {
	close(s.done)
	s.wg.Wait()
}

// GetOrCreate resolves the session for the given cookie id. A missing,
// expired or foreign id yields a brand-new session under a fresh id; created
// reports that, so the caller knows to issue a Set-Cookie.
func (s *Store) GetOrCreate(id string) (session *Session, created bool) {
	if len(id) > 0 {
		if session = s.lookup(id); session != nil {
			session.Touch()
			return session, false
		}
	}

	return s.create(), true
}

func (s *Store) lookup(id string) *Session {
	s.mu.RLock()
	session := s.sessions[id]
	s.mu.RUnlock()

	if session == nil || session.Gone() {
		return nil
	}

	if session.expired(time.Now(), s.timeout) {
		s.evict(session)
		return nil
	}

	return session
}

func (s *Store) create() *Session {
	// ids must be unpredictable; a random UUID gives 122 bits of entropy,
	// making collisions effectively impossible
	session := newSession(uuid.NewString(), time.Now())
	session.store = s

	s.mu.Lock()
	s.sessions[session.id] = session
	s.mu.Unlock()

	return session
}

// Invalidate drops the whole session explicitly. Session.Invalidate is the
// handler-facing shorthand for the same thing.
func (s *Store) Invalidate(session *Session) {
	s.evict(session)
}

func (s *Store) evict(session *Session) {
	session.markGone()

	s.mu.Lock()
	delete(s.sessions, session.id)
	s.mu.Unlock()
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) sweeper() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.done:
			return
		}
	}
}

// Sweep scans all sessions once and evicts the expired ones.
func (s *Store) Sweep() {
	if s.timeout <= 0 {
		return
	}

	now := time.Now()

	s.mu.RLock()
	var expired []*Session
	for _, session := range s.sessions {
		if session.expired(now, s.timeout) {
			expired = append(expired, session)
		}
	}
	s.mu.RUnlock()

	for _, session := range expired {
		s.evict(session)

		if s.onEvict != nil {
			s.onEvict(session.id)
		}
	}
}

// Package session implements the server-side per-client key/value state,
// correlated via a cookie and evicted by a background sweep once idle for
// longer than the configured timeout.
package session

import (
	"sync"
	"sync/atomic"
	"time"
)

// Session is a per-client mapping from string keys to opaque values. All
// access goes through the session's own lock: mutation is exclusive, reads
// may run concurrently with each other.
type Session struct {
	id    string
	store *Store

	mu   sync.RWMutex
	data map[string][]byte
	gone bool

	// lastAccess is unix nanoseconds, kept outside the lock so that
	// concurrent readers can refresh the idle clock.
	lastAccess atomic.Int64
}

func newSession(id string, now time.Time) *Session {
	s := &Session{
		id:   id,
		data: make(map[string][]byte),
	}
	s.lastAccess.Store(now.UnixNano())

	return s
}

// ID returns the stable session id carried by the session cookie.
func (s *Session) ID() string {
	return s.id
}

// Read returns the value stored under key, refreshing the idle clock.
func (s *Session) Read(key string) ([]byte, bool) {
	s.Touch()

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, found := s.data[key]
	return value, found
}

// ReadString is Read for textual values.
func (s *Session) ReadString(key string) (string, bool) {
	value, found := s.Read(key)
	return string(value), found
}

// Write stores value under key, refreshing the idle clock.
func (s *Session) Write(key string, value []byte) {
	s.Touch()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
}

// WriteString is Write for textual values.
func (s *Session) WriteString(key, value string) {
	s.Write(key, []byte(value))
}

// Delete removes a single key, refreshing the idle clock.
func (s *Session) Delete(key string) {
	s.Touch()

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
}

// Len returns the number of stored keys.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Invalidate drops the whole session from its store. The cookie the client
// still holds now points at nothing, so its next request gets a fresh session
// and a new Set-Cookie.
func (s *Session) Invalidate() {
	s.store.evict(s)
}

// Touch refreshes the idle clock.
func (s *Session) Touch() {
	s.lastAccess.Store(time.Now().UnixNano())
}

func (s *Session) expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(time.Unix(0, s.lastAccess.Load())) > timeout
}

func (s *Session) markGone() {
	s.mu.Lock()
	s.gone = true
	s.mu.Unlock()
}

// Gone reports whether the session was evicted or invalidated. An access that
// observes a gone session must ask the store for a fresh one.
func (s *Session) Gone() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gone
}

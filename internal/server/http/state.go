package http

import (
	"net"
	"sync/atomic"
	"time"
)

// connState is the sweep-visible footprint of one connection. The serving
// goroutine updates it, the sweep goroutine reads it and may close the
// underlying socket, which surfaces as a read error on the serving side.
type connState struct {
	conn net.Conn
	// lastActivity is the unix-nano timestamp of the last byte received.
	lastActivity atomic.Int64
	// served counts requests whose head completed parsing. While it is zero
	// the connection is still waiting for its first request and falls under
	// RequestTimeout.
	served atomic.Uint64
	// async reports an outstanding handoff. A pending connection is exempt
	// from the sweep; its deadline, if any, is enforced by the serving
	// goroutine itself.
	async  atomic.Bool
	closed atomic.Bool
}

func newConnState(conn net.Conn) *connState {
	s := &connState{conn: conn}
	s.touch()

	return s
}

func (s *connState) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

func (s *connState) idleFor(now time.Time) time.Duration {
	return time.Duration(now.UnixNano() - s.lastActivity.Load())
}

func (s *connState) awaitingFirstRequest() bool {
	return s.served.Load() == 0
}

func (s *connState) markServed() {
	s.served.Add(1)
}

func (s *connState) markAsync() {
	s.async.Store(true)
}

func (s *connState) clearAsync() {
	s.async.Store(false)
}

func (s *connState) asyncPending() bool {
	return s.async.Load()
}

// close shuts the socket down at most once, reporting whether this call was
// the one that did it. Keeps the sweep from counting a dead connection twice.
func (s *connState) close() bool {
	if !s.closed.CompareAndSwap(false, true) {
		return false
	}

	_ = s.conn.Close()
	return true
}

package stats

import (
	"sync/atomic"
	"time"
)

// counters is one set of atomically updated counters. The engine updates them
// from any worker; they are read (and, for the window set, reset) only by the
// aggregator's timer.
type counters struct {
	requests  atomic.Uint64
	connects  atomic.Uint64
	idleDisc  atomic.Uint64
	rtimeouts atomic.Uint64
	latCount  atomic.Uint64
	latSum    atomic.Int64 // nanoseconds
	latMax    atomic.Int64 // nanoseconds
}

func (c *counters) observe(latency time.Duration) {
	c.requests.Add(1)
	c.latCount.Add(1)
	c.latSum.Add(int64(latency))

	for {
		max := c.latMax.Load()
		if int64(latency) <= max || c.latMax.CompareAndSwap(max, int64(latency)) {
			return
		}
	}
}

// Snapshot is a consistent-enough copy of one counter set.
type Snapshot struct {
	Requests  uint64
	Conns     int64
	Connects  uint64
	IdleDisc  uint64
	RTimeouts uint64
	LatCount  uint64
	LatSum    time.Duration
	LatMax    time.Duration
	Elapsed   time.Duration
}

// QPS is the request rate over the snapshot's elapsed time.
func (s Snapshot) QPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}

	return float64(s.Requests) / s.Elapsed.Seconds()
}

// AvgLat is the mean request latency of the snapshot.
func (s Snapshot) AvgLat() time.Duration {
	if s.LatCount == 0 {
		return 0
	}

	return s.LatSum / time.Duration(s.LatCount)
}

// Recorder tracks both the cumulative-since-start and the windowed-since-last-
// flush counter sets.
type Recorder struct {
	total   counters
	window  counters
	conns   atomic.Int64
	started time.Time
	flushed time.Time
}

func NewRecorder() *Recorder {
	now := time.Now()
	return &Recorder{started: now, flushed: now}
}

// OnConnect counts a new connection.
func (r *Recorder) OnConnect() {
	r.conns.Add(1)
	r.total.connects.Add(1)
	r.window.connects.Add(1)
}

// OnDisconnect counts a closed connection.
func (r *Recorder) OnDisconnect() {
	r.conns.Add(-1)
}

// OnIdleDisconnect counts a connection evicted by the idle sweep.
func (r *Recorder) OnIdleDisconnect() {
	r.total.idleDisc.Add(1)
	r.window.idleDisc.Add(1)
}

// OnRequestTimeout counts a connection that never produced a first request.
func (r *Recorder) OnRequestTimeout() {
	r.total.rtimeouts.Add(1)
	r.window.rtimeouts.Add(1)
}

// OnRequest counts a served request and its processing latency.
func (r *Recorder) OnRequest(latency time.Duration) {
	r.total.observe(latency)
	r.window.observe(latency)
}

// Conns returns the number of currently open connections.
func (r *Recorder) Conns() int64 {
	return r.conns.Load()
}

// Total snapshots the cumulative counters without resetting anything.
func (r *Recorder) Total() Snapshot {
	return Snapshot{
		Requests:  r.total.requests.Load(),
		Conns:     r.conns.Load(),
		Connects:  r.total.connects.Load(),
		IdleDisc:  r.total.idleDisc.Load(),
		RTimeouts: r.total.rtimeouts.Load(),
		LatCount:  r.total.latCount.Load(),
		LatSum:    time.Duration(r.total.latSum.Load()),
		LatMax:    time.Duration(r.total.latMax.Load()),
		Elapsed:   time.Since(r.started),
	}
}

// Flush snapshots the window counters and resets them, starting a new window.
// Only the aggregator's timer may call it.
func (r *Recorder) Flush() Snapshot {
	now := time.Now()
	s := Snapshot{
		Requests:  r.window.requests.Swap(0),
		Conns:     r.conns.Load(),
		Connects:  r.window.connects.Swap(0),
		IdleDisc:  r.window.idleDisc.Swap(0),
		RTimeouts: r.window.rtimeouts.Swap(0),
		LatCount:  r.window.latCount.Swap(0),
		LatSum:    time.Duration(r.window.latSum.Swap(0)),
		LatMax:    time.Duration(r.window.latMax.Swap(0)),
		Elapsed:   now.Sub(r.flushed),
	}
	r.flushed = now

	return s
}

package logging

import (
	"sync"
	"sync/atomic"
)

// Queue is a bounded FIFO of log entries shared by all worker threads. Enqueue
// never blocks: when the queue is full the entry is dropped and counted. The
// single consumer empties it on a fixed interval.
type Queue struct {
	mu       sync.Mutex
	entries  []Entry
	head     int
	length   int
	dropped  atomic.Uint64
	capacity int
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}

	return &Queue{
		entries:  make([]Entry, capacity),
		capacity: capacity,
	}
}

// Enqueue attempts a non-blocking push. It reports whether the entry was
// accepted; a false return means the entry was dropped on the floor.
func (q *Queue) Enqueue(e Entry) bool {
	q.mu.Lock()

	if q.length == q.capacity {
		q.mu.Unlock()
		q.dropped.Add(1)
		return false
	}

	q.entries[(q.head+q.length)%q.capacity] = e
	q.length++
	q.mu.Unlock()
	return true
}

// Drain moves all currently queued entries into dst in FIFO order and
// empties the queue.
func (q *Queue) Drain(dst []Entry) []Entry {
	q.mu.Lock()

	for q.length > 0 {
		dst = append(dst, q.entries[q.head])
		q.entries[q.head] = nil
		q.head = (q.head + 1) % q.capacity
		q.length--
	}

	q.head = 0
	q.mu.Unlock()
	return dst
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.length
}

// Dropped returns the cumulative number of dropped entries.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

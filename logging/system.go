package logging

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rustlet-web/rustlet/config"
)

// System owns the three log sinks (main, request, stats) and the queue
// decoupling them from request processing. All components log through an
// explicitly passed *System; there is no process-wide default.
type System struct {
	main    *Sink
	request *Sink
	stats   *Sink
	queue   *Queue

	flushInterval time.Duration
	flushMu       sync.Mutex
	buff          []byte
	drainBuff     []Entry

	done chan struct{}
	wg   sync.WaitGroup
}

// New constructs the logging system and starts its consumer. Until Started is
// called, the main log additionally mirrors to stderr.
func New(cfg config.Logs, root string) (*System, error) {
	s := &System{
		queue:         NewQueue(cfg.QueueCapacity),
		flushInterval: cfg.FlushInterval,
		done:          make(chan struct{}),
	}

	if s.flushInterval <= 0 {
		s.flushInterval = 100 * time.Millisecond
	}

	var err error
	if s.main, err = NewSink(cfg.Main, root); err != nil {
		return nil, err
	}
	if s.request, err = NewSink(cfg.Request, root); err != nil {
		return nil, err
	}
	if s.stats, err = NewSink(cfg.Stats, root); err != nil {
		return nil, err
	}

	s.main.Mirror(os.Stderr)

	s.wg.Add(1)
	go s.consume()

	return s, nil
}

// Info enqueues an informational MainEvent.
func (s *System) Info(format string, args ...any) {
	s.event(LevelInfo, format, args...)
}

// Warn enqueues a warning MainEvent.
func (s *System) Warn(format string, args ...any) {
	s.event(LevelWarn, format, args...)
}

// Error enqueues an error MainEvent.
func (s *System) Error(format string, args ...any) {
	s.event(LevelError, format, args...)
}

func (s *System) event(level Level, format string, args ...any) {
	s.queue.Enqueue(MainEvent{
		Time:    time.Now(),
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	})
}

// Request enqueues a completed-request event.
func (s *System) Request(e RequestEvent) {
	s.queue.Enqueue(e)
}

// Stats enqueues a statistics snapshot block.
func (s *System) Stats(block string) {
	s.queue.Enqueue(StatsSnapshot{Time: time.Now(), Block: block})
}

// Queue exposes the underlying queue, mainly for accounting.
func (s *System) Queue() *Queue {
	return s.queue
}

// Started marks the end of the startup phase: the main log stops mirroring to
// the console and becomes file-only.
func (s *System) Started() {
	s.flush()

	// under flushMu, the consumer may be touching the mirror otherwise
	s.flushMu.Lock()
	s.main.Unmirror()
	s.flushMu.Unlock()
}

func (s *System) consume() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.flush()
		case <-s.done:
			s.flush()
			return
		}
	}
}

// flush drains all queued entries and writes each to its sink. Mostly runs on
// the consumer goroutine; Started and Close may call it from outside.
func (s *System) flush() {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.drainBuff = s.queue.Drain(s.drainBuff[:0])

	for _, entry := range s.drainBuff {
		s.buff = entry.Render(s.buff[:0])

		var err error
		switch entry.Stream() {
		case StreamRequest:
			err = s.request.Write(s.buff)
		case StreamStats:
			err = s.stats.Write(s.buff)
		default:
			err = s.main.Write(s.buff)
		}

		if err != nil {
			fmt.Fprintf(os.Stderr, "logging: %s\n", err)
		}
	}
}

// Close stops the consumer, flushes whatever is still queued and closes the
// sinks.
func (s *System) Close() error {
	close(s.done)
	s.wg.Wait()

	for _, sink := range []*Sink{s.main, s.request, s.stats} {
		if err := sink.Close(); err != nil {
			return err
		}
	}

	return nil
}

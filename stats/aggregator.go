package stats

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rustlet-web/rustlet/logging"
)

const separator = "----------------------------------------" +
	"----------------------------------------"

const header = "KIND       REQUESTS     CONNS  CONNECTS       QPS" +
	" IDLE_DISC  RTIMEOUT    AVG_LAT    MAX_LAT"

// Aggregator periodically snapshots the recorder and feeds the stats log. One
// block per interval: a header, the cumulative line and the last-window line.
type Aggregator struct {
	recorder *Recorder
	log      *logging.System
	interval time.Duration
	done     chan struct{}
	wg       sync.WaitGroup
}

func NewAggregator(recorder *Recorder, log *logging.System, interval time.Duration) *Aggregator {
	return &Aggregator{
		recorder: recorder,
		log:      log,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the flush timer. A non-positive interval disables the
// aggregator entirely.
func (a *Aggregator) Start() {
	if a.interval <= 0 {
		return
	}

	a.wg.Add(1)
	go a.run()
}

func (a *Aggregator) run() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.flush()
		case <-a.done:
			return
		}
	}
}

func (a *Aggregator) flush() {
	total := a.recorder.Total()
	window := a.recorder.Flush()

	var sb strings.Builder
	sb.WriteString(separator)
	sb.WriteByte('\n')
	sb.WriteString(time.Now().Format("2006-01-02 15:04:05.000"))
	sb.WriteByte('\n')
	sb.WriteString(header)
	sb.WriteByte('\n')
	writeLine(&sb, "TOTAL", total)
	writeLine(&sb, "WINDOW", window)

	a.log.Stats(sb.String())
}

func writeLine(sb *strings.Builder, kind string, s Snapshot) {
	fmt.Fprintf(sb, "%-8s %10d %9d %9d %9.2f %9d %9d %8.3fms %8.3fms\n",
		kind,
		s.Requests,
		s.Conns,
		s.Connects,
		s.QPS(),
		s.IdleDisc,
		s.RTimeouts,
		millis(s.AvgLat()),
		millis(s.LatMax),
	)
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// Stop halts the timer. Pending snapshots already queued stay queued.
func (a *Aggregator) Stop() {
	if a.interval <= 0 {
		return
	}

	close(a.done)
	a.wg.Wait()
}

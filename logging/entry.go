package logging

import (
	"strconv"
	"time"

	"github.com/rustlet-web/rustlet/http/method"
)

// Stream identifies which sink an entry belongs to.
type Stream uint8

const (
	StreamMain Stream = iota
	StreamRequest
	StreamStats
)

// Level of a main log event.
type Level uint8

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

const stampLayout = "2006-01-02 15:04:05.000"

// Entry is a single immutable log record. Entries are constructed on the
// request path and enqueued by value; rendering happens on the consumer side.
type Entry interface {
	Stream() Stream
	// Render appends the formatted log line (including trailing newline) to dst.
	Render(dst []byte) []byte
}

// MainEvent is a structured timestamped line of the main log.
type MainEvent struct {
	Time    time.Time
	Level   Level
	Message string
}

func (MainEvent) Stream() Stream {
	return StreamMain
}

func (e MainEvent) Render(dst []byte) []byte {
	dst = e.Time.AppendFormat(dst, stampLayout)
	dst = append(dst, ' ', '[')
	dst = append(dst, e.Level.String()...)
	dst = append(dst, ']', ':', ' ')
	dst = append(dst, e.Message...)
	return append(dst, '\n')
}

// RequestEvent is one completed request, rendered as
// |method|uri|query|User-Agent|Referer|proc_time.
type RequestEvent struct {
	Time      time.Time
	Method    method.Method
	URI       string
	Query     string
	UserAgent string
	Referer   string
	ProcTime  time.Duration
}

func (RequestEvent) Stream() Stream {
	return StreamRequest
}

func (e RequestEvent) Render(dst []byte) []byte {
	dst = e.Time.AppendFormat(dst, stampLayout)
	dst = append(dst, ' ')
	dst = appendField(dst, e.Method.String())
	dst = appendField(dst, e.URI)
	dst = appendField(dst, e.Query)
	dst = appendField(dst, e.UserAgent)
	dst = appendField(dst, e.Referer)
	dst = append(dst, '|')
	dst = strconv.AppendFloat(dst, float64(e.ProcTime.Microseconds())/1000, 'f', 3, 64)
	dst = append(dst, "ms"...)
	return append(dst, '\n')
}

func appendField(dst []byte, field string) []byte {
	dst = append(dst, '|')
	return append(dst, field...)
}

// StatsSnapshot is a pre-rendered statistics block.
type StatsSnapshot struct {
	Time  time.Time
	Block string
}

func (StatsSnapshot) Stream() Stream {
	return StreamStats
}

func (e StatsSnapshot) Render(dst []byte) []byte {
	return append(dst, e.Block...)
}

package config

import (
	"time"
)

type (
	Server struct {
		// BindAddress is the listen address in host:port form. A bare ":8080"
		// binds to 0.0.0.0.
		BindAddress string
		// ThreadPoolSize is the number of workers executing rustlets. Parsed
		// requests are submitted to the pool; connections never bypass it.
		ThreadPoolSize int
		// RootDir is the server working directory. Relative log locations
		// resolve against it.
		RootDir string
		// WebRoot is the directory page documents (*.rsp) are served from.
		WebRoot string
	}

	NET struct {
		// ReadBufferSize is the size of the per-connection socket read buffer.
		ReadBufferSize int
		// IdleTimeout limits how long a keep-alive connection may sit between
		// requests before the sweep closes it (counted as IDLE_DISC).
		IdleTimeout time.Duration
		// RequestTimeout limits how long a fresh connection may wait before
		// sending its first request (counted as RTIMEOUT).
		RequestTimeout time.Duration
		// AsyncTimeout is the supervisory limit for connections detached via
		// async handoff. Zero disables the limit.
		AsyncTimeout time.Duration
		// SweepInterval controls how often the timeout sweep runs.
		SweepInterval time.Duration
	}

	HTTP struct {
		// MaxRequestLineSize limits method+URI+query+protocol together.
		MaxRequestLineSize int
		// MaxHeaders limits the number of header fields per request.
		MaxHeaders int
		// MaxHeadersSpace limits the memory occupied by header keys and values.
		MaxHeadersSpace int
		// MaxBodySize limits the request body length.
		MaxBodySize int
		// ResponseBuffSize is the initial response serialization buffer size.
		ResponseBuffSize int
	}

	Session struct {
		// Timeout is the idle lifetime of a session; the sweep evicts sessions
		// untouched for longer.
		Timeout time.Duration
		// SweepInterval controls how often the eviction sweep runs.
		SweepInterval time.Duration
		// CookieName carries the session id between requests.
		CookieName string
	}

	Log struct {
		// Location is the path of the active log file. Relative paths resolve
		// against Server.RootDir. Empty disables the stream.
		Location string
		// MaxSize rotates the file once it grows to this many bytes.
		MaxSize int64
		// MaxAge rotates the file once it has been open this long.
		MaxAge time.Duration
	}

	Logs struct {
		Main    Log
		Request Log
		Stats   Log
		// QueueCapacity bounds the async log queue; entries above it are
		// dropped, never blocked on.
		QueueCapacity int
		// FlushInterval is how often the consumer drains the queue.
		FlushInterval time.Duration
	}

	Stats struct {
		// Frequency is the interval between statistics snapshots. Zero
		// disables the aggregator.
		Frequency time.Duration
	}

	TLS struct {
		CertPath string
		KeyPath  string
	}
)

// Config holds the resolved configuration of the whole container.
//
// Always modify defaults (returned via Default()) instead of constructing the
// struct manually, otherwise zero limits will reject everything.
type Config struct {
	Server  Server
	NET     NET
	HTTP    HTTP
	Session Session
	Logs    Logs
	Stats   Stats
	TLS     TLS
}

// Default returns a well-balanced default configuration.
func Default() *Config {
	return &Config{
		Server: Server{
			BindAddress:    "0.0.0.0:8080",
			ThreadPoolSize: 8,
			RootDir:        ".",
			WebRoot:        "www",
		},
		NET: NET{
			ReadBufferSize: 4 * 1024,
			IdleTimeout:    2 * time.Minute,
			RequestTimeout: 30 * time.Second,
			AsyncTimeout:   1 * time.Minute,
			SweepInterval:  1 * time.Second,
		},
		HTTP: HTTP{
			MaxRequestLineSize: 8 * 1024,
			MaxHeaders:         50,
			MaxHeadersSpace:    16 * 1024,
			MaxBodySize:        8 * 1024 * 1024,
			ResponseBuffSize:   2 * 1024,
		},
		Session: Session{
			Timeout:       30 * time.Minute,
			SweepInterval: 10 * time.Second,
			CookieName:    "rustletsessionid",
		},
		Logs: Logs{
			Main:          Log{Location: "logs/main.log", MaxSize: 10 * 1024 * 1024, MaxAge: 24 * time.Hour},
			Request:       Log{Location: "logs/request.log", MaxSize: 10 * 1024 * 1024, MaxAge: 24 * time.Hour},
			Stats:         Log{Location: "logs/stats.log", MaxSize: 10 * 1024 * 1024, MaxAge: 24 * time.Hour},
			QueueCapacity: 100_000,
			FlushInterval: 100 * time.Millisecond,
		},
		Stats: Stats{
			Frequency: 10 * time.Second,
		},
	}
}

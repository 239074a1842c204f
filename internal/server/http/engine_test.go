package http

import (
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rustlet-web/rustlet/config"
	"github.com/rustlet-web/rustlet/http"
	"github.com/rustlet-web/rustlet/logging"
	"github.com/rustlet-web/rustlet/router"
	"github.com/rustlet-web/rustlet/session"
	"github.com/rustlet-web/rustlet/stats"
)

func newTestEngine(t *testing.T, tune func(*config.Config)) (*Engine, *router.Registry, *stats.Recorder) {
	t.Helper()

	cfg := config.Default()
	cfg.Server.RootDir = t.TempDir()
	cfg.Server.ThreadPoolSize = 2
	cfg.Logs.Main.Location = ""
	cfg.Logs.Request.Location = ""
	cfg.Logs.Stats.Location = ""
	if tune != nil {
		tune(cfg)
	}

	log, err := logging.New(cfg.Logs, cfg.Server.RootDir)
	require.NoError(t, err)
	log.Started()
	t.Cleanup(func() { _ = log.Close() })

	sessions := session.NewStore(cfg.Session)
	registry := router.New(log)
	rec := stats.NewRecorder()

	engine := NewEngine(cfg, registry, sessions, log, rec)
	engine.Start()
	t.Cleanup(engine.Stop)

	return engine, registry, rec
}

// roundTrip sends one raw request over a pipe served by the engine and reads
// until the engine closes the connection.
func roundTrip(t *testing.T, engine *Engine, raw string) string {
	t.Helper()

	server, client := net.Pipe()
	go engine.HandleConn(server)

	_, err := client.Write([]byte(raw))
	require.NoError(t, err)

	response, err := io.ReadAll(client)
	require.NoError(t, err)
	_ = client.Close()

	return string(response)
}

func TestEngineServe(t *testing.T) {
	engine, registry, _ := newTestEngine(t, nil)
	require.NoError(t, registry.Register("echo", func(r *http.Request) error {
		r.Respond().WriteString(r.Query)
		return nil
	}))
	require.NoError(t, registry.Map("/echo", "echo"))

	t.Run("dispatches and responds", func(t *testing.T) {
		response := roundTrip(t, engine,
			"GET /echo?a=1 HTTP/1.1\r\nHost: t\r\nConnection: close\r\n\r\n")

		require.Contains(t, response, "HTTP/1.1 200 OK\r\n")
		require.True(t, strings.HasSuffix(response, "\r\n\r\na=1"), response)
	})

	t.Run("first response carries the session cookie", func(t *testing.T) {
		response := roundTrip(t, engine,
			"GET /echo HTTP/1.1\r\nConnection: close\r\n\r\n")

		require.Contains(t, response, "Set-Cookie: rustletsessionid=")
		require.Contains(t, response, "HttpOnly")
	})

	t.Run("known session gets no new cookie", func(t *testing.T) {
		response := roundTrip(t, engine,
			"GET /echo HTTP/1.1\r\nConnection: close\r\n\r\n")
		id := extractSessionID(t, response)

		response = roundTrip(t, engine,
			"GET /echo HTTP/1.1\r\nCookie: rustletsessionid="+id+"\r\nConnection: close\r\n\r\n")
		require.NotContains(t, response, "Set-Cookie")
	})

	t.Run("unmapped path yields 404", func(t *testing.T) {
		response := roundTrip(t, engine,
			"GET /nowhere HTTP/1.1\r\nConnection: close\r\n\r\n")

		require.Contains(t, response, "HTTP/1.1 404 Not Found\r\n")
	})

	t.Run("malformed request yields an error response", func(t *testing.T) {
		response := roundTrip(t, engine, "BREW /pot HTTP/1.1\r\n\r\n")

		require.Contains(t, response, "HTTP/1.1 501 ")
	})

	t.Run("keep-alive serves several requests", func(t *testing.T) {
		server, client := net.Pipe()
		go engine.HandleConn(server)

		_, err := client.Write([]byte("GET /echo?n=first HTTP/1.1\r\n\r\n"))
		require.NoError(t, err)
		first := readResponse(t, client)
		require.Contains(t, first, "n=first")

		_, err = client.Write([]byte("GET /echo?n=second HTTP/1.1\r\nConnection: close\r\n\r\n"))
		require.NoError(t, err)

		rest, err := io.ReadAll(client)
		require.NoError(t, err)
		require.Contains(t, string(rest), "n=second")
		_ = client.Close()
	})
}

func TestEngineBody(t *testing.T) {
	engine, registry, _ := newTestEngine(t, nil)
	require.NoError(t, registry.Register("reverse", func(r *http.Request) error {
		body := r.Body
		reversed := make([]byte, len(body))
		for i, b := range body {
			reversed[len(body)-1-i] = b
		}

		_, _ = r.Respond().Write(reversed)
		return nil
	}))
	require.NoError(t, registry.Map("/reverse", "reverse"))

	response := roundTrip(t, engine,
		"POST /reverse HTTP/1.1\r\nContent-Length: 5\r\nConnection: close\r\n\r\nhello")
	require.True(t, strings.HasSuffix(response, "olleh"), response)
}

func TestEngineAsync(t *testing.T) {
	engine, registry, _ := newTestEngine(t, func(cfg *config.Config) {
		cfg.NET.AsyncTimeout = time.Second
	})
	require.NoError(t, registry.Register("later", func(r *http.Request) error {
		actx := r.Async()

		go func() {
			time.Sleep(20 * time.Millisecond)
			actx.Respond().WriteString("eventually")
			_ = actx.Complete()
		}()

		return nil
	}))
	require.NoError(t, registry.Map("/later", "later"))

	response := roundTrip(t, engine,
		"GET /later HTTP/1.1\r\nConnection: close\r\n\r\n")
	require.Contains(t, response, "HTTP/1.1 200 OK\r\n")
	require.True(t, strings.HasSuffix(response, "eventually"), response)
}

func TestEngineAsyncTimeout(t *testing.T) {
	engine, registry, _ := newTestEngine(t, func(cfg *config.Config) {
		cfg.NET.AsyncTimeout = 30 * time.Millisecond
	})
	require.NoError(t, registry.Register("never", func(r *http.Request) error {
		r.Async() // deliberately never completed
		return nil
	}))
	require.NoError(t, registry.Map("/never", "never"))

	response := roundTrip(t, engine, "GET /never HTTP/1.1\r\n\r\n")
	require.Contains(t, response, "HTTP/1.1 408 ")
}

func TestEngineAsyncPendingSurvivesSweep(t *testing.T) {
	engine, registry, rec := newTestEngine(t, func(cfg *config.Config) {
		cfg.NET.AsyncTimeout = 0 // no supervisory limit
		cfg.NET.RequestTimeout = 30 * time.Millisecond
		cfg.NET.IdleTimeout = 30 * time.Millisecond
		cfg.NET.SweepInterval = 5 * time.Millisecond
	})
	require.NoError(t, registry.Register("slow", func(r *http.Request) error {
		actx := r.Async()

		go func() {
			// several sweep intervals past both timeouts
			time.Sleep(150 * time.Millisecond)
			actx.Respond().WriteString("made it")
			_ = actx.Complete()
		}()

		return nil
	}))
	require.NoError(t, registry.Map("/slow", "slow"))

	response := roundTrip(t, engine,
		"GET /slow HTTP/1.1\r\nConnection: close\r\n\r\n")
	require.Contains(t, response, "HTTP/1.1 200 OK\r\n")
	require.True(t, strings.HasSuffix(response, "made it"), response)

	total := rec.Total()
	require.Zero(t, total.RTimeouts)
	require.Zero(t, total.IdleDisc)
}

func TestEngineSessionInvalidate(t *testing.T) {
	engine, registry, _ := newTestEngine(t, nil)
	require.NoError(t, registry.Register("logout", func(r *http.Request) error {
		r.Session.Invalidate()
		r.Respond().WriteString("bye")
		return nil
	}))
	require.NoError(t, registry.Map("/logout", "logout"))

	response := roundTrip(t, engine,
		"GET /logout HTTP/1.1\r\nConnection: close\r\n\r\n")
	first := extractSessionID(t, response)

	// the invalidated id is dead, so presenting it mints a fresh session
	response = roundTrip(t, engine,
		"GET /logout HTTP/1.1\r\nCookie: rustletsessionid="+first+"\r\nConnection: close\r\n\r\n")
	require.Contains(t, response, "Set-Cookie: rustletsessionid=")
	require.NotEqual(t, first, extractSessionID(t, response))
}

// The request log consumer may render an event long after the keep-alive
// connection moved on to its next request, so the event must not alias the
// parser's reusable buffers.
func TestEngineRequestLogOutlivesRequest(t *testing.T) {
	cfg := config.Default()
	cfg.Server.RootDir = t.TempDir()
	cfg.Server.ThreadPoolSize = 2
	cfg.Logs.Main.Location = ""
	cfg.Logs.Request.Location = ""
	cfg.Logs.Stats.Location = ""
	cfg.Logs.FlushInterval = time.Hour // keep events queued for inspection

	log, err := logging.New(cfg.Logs, cfg.Server.RootDir)
	require.NoError(t, err)
	log.Started()
	t.Cleanup(func() { _ = log.Close() })

	registry := router.New(log)
	require.NoError(t, registry.Register("ok", func(r *http.Request) error {
		return nil
	}))
	require.NoError(t, registry.Map("/*", "ok"))

	engine := NewEngine(cfg, registry, session.NewStore(cfg.Session), log, stats.NewRecorder())
	engine.Start()
	t.Cleanup(engine.Stop)

	server, client := net.Pipe()
	go engine.HandleConn(server)

	_, err = client.Write([]byte(
		"GET /first?q=hello HTTP/1.1\r\nUser-Agent: agent-one\r\n\r\n"))
	require.NoError(t, err)
	readResponse(t, client)

	_, err = client.Write([]byte(
		"GET /second-much-longer-path?q=world HTTP/1.1\r\nUser-Agent: agent-two\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)
	_, _ = io.ReadAll(client)
	_ = client.Close()

	var events []logging.RequestEvent
	require.Eventually(t, func() bool {
		for _, entry := range log.Queue().Drain(nil) {
			if e, ok := entry.(logging.RequestEvent); ok {
				events = append(events, e)
			}
		}

		return len(events) == 2
	}, time.Second, 10*time.Millisecond)

	require.Equal(t, "/first", events[0].URI)
	require.Equal(t, "q=hello", events[0].Query)
	require.Equal(t, "agent-one", events[0].UserAgent)
	require.Equal(t, "/second-much-longer-path", events[1].URI)
	require.Equal(t, "q=world", events[1].Query)
	require.Equal(t, "agent-two", events[1].UserAgent)
}

func TestEngineSweep(t *testing.T) {
	t.Run("first request timeout", func(t *testing.T) {
		engine, _, rec := newTestEngine(t, func(cfg *config.Config) {
			cfg.NET.RequestTimeout = 20 * time.Millisecond
			cfg.NET.SweepInterval = 5 * time.Millisecond
		})

		server, client := net.Pipe()
		go engine.HandleConn(server)

		// send nothing; the sweep should cut the connection off
		buff := make([]byte, 1)
		_ = client.SetReadDeadline(time.Now().Add(time.Second))
		_, err := client.Read(buff)
		require.Error(t, err)
		_ = client.Close()

		require.Eventually(t, func() bool {
			return rec.Total().RTimeouts == 1
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("idle keep-alive disconnect", func(t *testing.T) {
		engine, registry, rec := newTestEngine(t, func(cfg *config.Config) {
			cfg.NET.IdleTimeout = 30 * time.Millisecond
			cfg.NET.SweepInterval = 5 * time.Millisecond
		})
		require.NoError(t, registry.Register("ok", func(r *http.Request) error {
			return nil
		}))
		require.NoError(t, registry.Map("/ok", "ok"))

		server, client := net.Pipe()
		go engine.HandleConn(server)

		_, err := client.Write([]byte("GET /ok HTTP/1.1\r\n\r\n"))
		require.NoError(t, err)
		readResponse(t, client)

		// idle now; the sweep should disconnect us
		buff := make([]byte, 1)
		_ = client.SetReadDeadline(time.Now().Add(time.Second))
		_, err = client.Read(buff)
		require.Error(t, err)
		_ = client.Close()

		require.Eventually(t, func() bool {
			return rec.Total().IdleDisc == 1
		}, time.Second, 10*time.Millisecond)
	})
}

func TestEngineStats(t *testing.T) {
	engine, registry, rec := newTestEngine(t, nil)
	require.NoError(t, registry.Register("ok", func(r *http.Request) error {
		return nil
	}))
	require.NoError(t, registry.Map("/ok", "ok"))

	roundTrip(t, engine, "GET /ok HTTP/1.1\r\nConnection: close\r\n\r\n")

	require.Eventually(t, func() bool {
		total := rec.Total()
		return total.Requests == 1 && total.Connects == 1 && rec.Conns() == 0
	}, time.Second, 10*time.Millisecond)
}

// readResponse reads a single response off a keep-alive connection, using the
// Content-Length header to find its end.
func readResponse(t *testing.T, conn net.Conn) string {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	buff := make([]byte, 4096)
	var response []byte

	for {
		n, err := conn.Read(buff)
		require.NoError(t, err)
		response = append(response, buff[:n]...)

		head, body, found := strings.Cut(string(response), "\r\n\r\n")
		if !found {
			continue
		}

		length := contentLengthOf(t, head)
		if len(body) >= length {
			return string(response)
		}
	}
}

func contentLengthOf(t *testing.T, head string) int {
	t.Helper()

	for _, line := range strings.Split(head, "\r\n") {
		if name, value, found := strings.Cut(line, ":"); found &&
			strings.EqualFold(name, "Content-Length") {
			length := 0
			for _, char := range strings.TrimSpace(value) {
				length = length*10 + int(char-'0')
			}

			return length
		}
	}

	return 0
}

func extractSessionID(t *testing.T, response string) string {
	t.Helper()

	_, after, found := strings.Cut(response, "rustletsessionid=")
	require.True(t, found)
	id, _, _ := strings.Cut(after, ";")

	return id
}

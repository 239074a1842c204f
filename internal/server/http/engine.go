package http

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rustlet-web/rustlet/config"
	"github.com/rustlet-web/rustlet/http"
	"github.com/rustlet-web/rustlet/http/cookie"
	"github.com/rustlet-web/rustlet/http/status"
	"github.com/rustlet-web/rustlet/internal/server/tcp"
	"github.com/rustlet-web/rustlet/internal/transport"
	"github.com/rustlet-web/rustlet/internal/transport/http1"
	"github.com/rustlet-web/rustlet/logging"
	"github.com/rustlet-web/rustlet/session"
	"github.com/rustlet-web/rustlet/stats"
)

// Dispatcher resolves a parsed request to a rustlet and runs it. The returned
// error, if any, becomes the error response.
type Dispatcher interface {
	Dispatch(request *http.Request) error
}

// Engine drives connections: it parses requests off the wire, pushes them
// through the worker pool and flushes responses back. Each connection is
// served by the goroutine the acceptor spawned for it; that goroutine stays
// the sole writer of its socket, so responses can never interleave.
type Engine struct {
	cfg        *config.Config
	dispatcher Dispatcher
	sessions   *session.Store
	log        *logging.System
	rec        *stats.Recorder
	pool       *Pool

	mu    sync.Mutex
	conns map[*connState]struct{}

	done chan struct{}
	wg   sync.WaitGroup
}

func NewEngine(
	cfg *config.Config,
	dispatcher Dispatcher,
	sessions *session.Store,
	log *logging.System,
	rec *stats.Recorder,
) *Engine {
	return &Engine{
		cfg:        cfg,
		dispatcher: dispatcher,
		sessions:   sessions,
		log:        log,
		rec:        rec,
		pool:       NewPool(cfg.Server.ThreadPoolSize),
		conns:      map[*connState]struct{}{},
		done:       make(chan struct{}),
	}
}

// Start launches the timeout sweep. The worker pool is running already.
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.sweepLoop()
}

// Stop terminates the sweep and the worker pool, waiting for in-flight
// handlers to finish.
func (e *Engine) Stop() {
	close(e.done)
	e.wg.Wait()
	e.pool.Stop()
}

// HandleConn serves a single connection until it is closed by either side.
// Passed as the acceptor callback.
func (e *Engine) HandleConn(conn net.Conn) {
	e.rec.OnConnect()
	state := e.register(conn)

	defer func() {
		e.unregister(state)
		e.rec.OnDisconnect()
		_ = conn.Close()
	}()

	client := tcp.NewClient(conn, e.cfg.NET.ReadBufferSize)
	request := http.NewRequest(conn.RemoteAddr())
	parser := http1.NewParser(request, e.cfg.HTTP)
	body := http1.NewBody(client, e.cfg.HTTP.MaxBodySize)
	serializer := http1.NewSerializer(e.cfg.HTTP.ResponseBuffSize)

	for {
		data, err := client.Read()
		if err != nil {
			return
		}

		state.touch()

		reqState, extra, err := parser.Parse(data)
		switch reqState {
		case transport.Pending:
			continue
		case transport.HeadersCompleted:
		default:
			e.respondError(client, serializer, request, err)
			return
		}

		// the first request has arrived; from here on the sweep judges the
		// connection by the idle timeout, not the first-request one
		state.markServed()
		client.Unread(extra)

		request.Body, err = body.Collect(parser.ContentLength(), parser.Chunked())
		if err != nil {
			e.respondError(client, serializer, request, err)
			return
		}

		sessionCreated := e.resolveSession(request)

		dispatchErr := e.runOnPool(request)

		if actx := request.AsyncContext(); actx != nil && dispatchErr == nil {
			if !e.awaitAsync(state, actx) {
				e.respondError(client, serializer, request, status.ErrRequestTimeout)
				e.log.Warn("async handoff timed out: %s %s", request.Method, request.Path)
				return
			}
		}

		response := request.Respond()
		if dispatchErr != nil {
			response.Clear().Error(dispatchErr)
		}

		if sessionCreated {
			response.SetCookie(cookie.Build(e.cfg.Session.CookieName, request.Session.ID()).
				Path("/").
				HttpOnly(true).
				Cookie())
		}

		procTime := time.Since(request.Started)
		e.rec.OnRequest(procTime)

		// the event may sit in the queue until the next flush, while the
		// request strings alias parser buffers the next message overwrites
		e.log.Request(logging.RequestEvent{
			Time:      request.Started,
			Method:    request.Method,
			URI:       strings.Clone(request.Path),
			Query:     strings.Clone(request.Query),
			UserAgent: strings.Clone(request.Header("user-agent")),
			Referer:   strings.Clone(request.Header("referer")),
			ProcTime:  procTime,
		})

		err = serializer.Write(request, response.Reveal(), client)
		request.Reset()

		if err != nil {
			return
		}
	}
}

// runOnPool executes dispatch on a pool worker, blocking the connection
// goroutine until it returns. The channel close publishes the error value.
func (e *Engine) runOnPool(request *http.Request) error {
	var dispatchErr error
	done := make(chan struct{})

	e.pool.Submit(func() {
		defer close(done)
		dispatchErr = e.dispatcher.Dispatch(request)
	})

	<-done
	return dispatchErr
}

// awaitAsync parks the connection until the detached holder completes the
// request. The connection is marked pending for the whole wait, which exempts
// it from the sweep even when no async timeout is configured. Returns false
// if the timeout fired first; the response buffer may still be owned by the
// holder then and must not be touched.
func (e *Engine) awaitAsync(state *connState, actx *http.AsyncContext) bool {
	state.markAsync()
	defer state.clearAsync()

	timeout := e.cfg.NET.AsyncTimeout
	if timeout <= 0 {
		<-actx.Done()
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-actx.Done():
		return true
	case <-timer.C:
		return false
	}
}

// respondError flushes an error response built apart from the request's own
// builder and gives up on the connection.
func (e *Engine) respondError(
	client tcp.Client, serializer *http1.Serializer, request *http.Request, err error,
) {
	fields := http.NewResponse().Error(err).Reveal()
	_ = serializer.Write(request, fields, client)
}

// resolveSession attaches the session named by the request cookie, minting a
// fresh one when the cookie is absent, unknown or expired. Reports whether a
// new session was created and hence a Set-Cookie is due.
func (e *Engine) resolveSession(request *http.Request) (created bool) {
	id := request.Cookie(e.cfg.Session.CookieName)
	request.Session, created = e.sessions.GetOrCreate(id)

	return created
}

func (e *Engine) register(conn net.Conn) *connState {
	state := newConnState(conn)

	e.mu.Lock()
	e.conns[state] = struct{}{}
	e.mu.Unlock()

	return state
}

func (e *Engine) unregister(state *connState) {
	e.mu.Lock()
	delete(e.conns, state)
	e.mu.Unlock()
}

func (e *Engine) sweepLoop() {
	defer e.wg.Done()

	interval := e.cfg.NET.SweepInterval
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.sweep(time.Now())
		case <-e.done:
			return
		}
	}
}

// sweep closes connections that overstayed their welcome. Closing the socket
// is enough: the serving goroutine wakes up with a read error and tears the
// rest down. Async-pending connections are left alone, their deadline is
// enforced by the serving goroutine itself.
func (e *Engine) sweep(now time.Time) {
	e.mu.Lock()
	states := make([]*connState, 0, len(e.conns))
	for state := range e.conns {
		states = append(states, state)
	}
	e.mu.Unlock()

	for _, state := range states {
		if state.asyncPending() {
			continue
		}

		idle := state.idleFor(now)

		switch {
		case state.awaitingFirstRequest():
			if t := e.cfg.NET.RequestTimeout; t > 0 && idle > t {
				if state.close() {
					e.rec.OnRequestTimeout()
				}
			}
		default:
			if t := e.cfg.NET.IdleTimeout; t > 0 && idle > t {
				if state.close() {
					e.rec.OnIdleDisconnect()
				}
			}
		}
	}
}

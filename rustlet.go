package rustlet

import (
	"net"
	"path/filepath"
	"sync/atomic"

	json "github.com/json-iterator/go"

	"github.com/rustlet-web/rustlet/config"
	"github.com/rustlet-web/rustlet/http/status"
	"github.com/rustlet-web/rustlet/internal/address"
	httpserver "github.com/rustlet-web/rustlet/internal/server/http"
	"github.com/rustlet-web/rustlet/internal/server/tcp"
	"github.com/rustlet-web/rustlet/logging"
	"github.com/rustlet-web/rustlet/router"
	"github.com/rustlet-web/rustlet/rsp"
	"github.com/rustlet-web/rustlet/session"
	"github.com/rustlet-web/rustlet/stats"
)

type listenerFactory func(network, addr string) (net.Listener, error)

type listener struct {
	addr    string
	factory listenerFactory
}

// Container is the embeddable request-serving engine. Rustlets and mappings
// are declared on it up front; Serve then owns the calling goroutine until
// Stop or GracefulStop is called from elsewhere.
type Container struct {
	cfg       *config.Config
	hooks     hooks
	rustlets  []pendingRustlet
	mappings  []pendingMapping
	listeners []listener
	errCh     chan error
}

type hooks struct {
	OnStart, OnStop func()
}

type pendingRustlet struct {
	name string
	fn   router.Rustlet
}

type pendingMapping struct {
	pattern string
	name    string
}

// New returns a container with the default configuration.
func New() *Container {
	return &Container{
		cfg:   config.Default(),
		errCh: make(chan error),
	}
}

// Tune replaces the configuration wholesale. Pass something derived from
// config.Default() or config.Load(), never a hand-built struct.
func (c *Container) Tune(cfg *config.Config) *Container {
	c.cfg = cfg
	return c
}

// Rustlet registers a named handler closure. The name alone is not routable:
// bind it with Map or embed it in a page document.
func (c *Container) Rustlet(name string, fn router.Rustlet) *Container {
	c.rustlets = append(c.rustlets, pendingRustlet{name: name, fn: fn})
	return c
}

// Map binds a URI pattern to a registered rustlet name. Patterns ending in
// '*' match by prefix, longest prefix first.
func (c *Container) Map(pattern, name string) *Container {
	c.mappings = append(c.mappings, pendingMapping{pattern: pattern, name: name})
	return c
}

// NotifyOnStart calls the callback once all listeners are up.
func (c *Container) NotifyOnStart(cb func()) *Container {
	c.hooks.OnStart = cb
	return c
}

// NotifyOnStop calls the callback after the last connection is gone.
func (c *Container) NotifyOnStop(cb func()) *Container {
	c.hooks.OnStop = cb
	return c
}

// HTTPS adds a TLS listener on addr, using the certificate configured in the
// TLS section.
func (c *Container) HTTPS(addr string) *Container {
	c.listeners = append(c.listeners, listener{
		addr: addr,
		factory: func(network, laddr string) (net.Listener, error) {
			return tlsListener(c.cfg.TLS.CertPath, c.cfg.TLS.KeyPath)(network, laddr)
		},
	})

	return c
}

// AutoHTTPS adds a TLS listener on addr with certificates obtained via ACME,
// falling back to a self-signed certificate for localhost addresses.
func (c *Container) AutoHTTPS(addr string, domains ...string) *Container {
	c.listeners = append(c.listeners, listener{
		addr:    addr,
		factory: autoTLSListener(address.IsLocalhost(addr), domains...),
	})

	return c
}

// Serve brings the whole container up and blocks until it is stopped. The
// plain listener comes from Server.BindAddress; HTTPS listeners declared via
// HTTPS/AutoHTTPS are started next to it.
func (c *Container) Serve() error {
	cfg := c.cfg

	log, err := logging.New(cfg.Logs, cfg.Server.RootDir)
	if err != nil {
		return err
	}
	defer log.Close()

	if raw, err := json.MarshalIndent(cfg, "", "  "); err == nil {
		log.Info("starting with configuration:\n%s", raw)
	}

	registry := router.New(log)
	for _, r := range c.rustlets {
		if err := registry.Register(r.name, r.fn); err != nil {
			return err
		}
	}
	for _, m := range c.mappings {
		if err := registry.Map(m.pattern, m.name); err != nil {
			return err
		}
	}

	webRoot := cfg.Server.WebRoot
	if !filepath.IsAbs(webRoot) {
		webRoot = filepath.Join(cfg.Server.RootDir, webRoot)
	}

	pages, err := rsp.NewInterpreter(webRoot, registry, log)
	if err != nil {
		return err
	}
	defer pages.Close()
	registry.AttachPages(pages)

	sessions := session.NewStore(cfg.Session)
	sessions.Start()
	defer sessions.Stop()

	rec := stats.NewRecorder()
	aggregator := stats.NewAggregator(rec, log, cfg.Stats.Frequency)
	aggregator.Start()
	defer aggregator.Stop()

	engine := httpserver.NewEngine(cfg, registry, sessions, log, rec)
	engine.Start()
	defer engine.Stop()

	servers, err := c.buildServers(engine)
	if err != nil {
		return err
	}

	return c.run(servers, log)
}

func (c *Container) buildServers(engine *httpserver.Engine) ([]*tcp.Server, error) {
	all := append([]listener{
		{addr: address.Normalize(c.cfg.Server.BindAddress), factory: net.Listen},
	}, c.listeners...)

	servers := make([]*tcp.Server, len(all))

	for i, l := range all {
		sock, err := l.factory("tcp", address.Normalize(l.addr))
		if err != nil {
			return nil, err
		}

		servers[i] = tcp.NewServer(sock, engine.HandleConn)
	}

	return servers, nil
}

func (c *Container) run(servers []*tcp.Server, log *logging.System) error {
	var failSilently atomic.Bool

	for _, server := range servers {
		go func(server *tcp.Server) {
			err := server.Start()

			if failSilently.Swap(true) {
				return
			}

			c.errCh <- err
		}(server)
	}

	log.Info("listening on %s", address.Normalize(c.cfg.Server.BindAddress))
	log.Started()
	callIfNotNil(c.hooks.OnStart)

	err := <-c.errCh
	if err == status.ErrGracefulShutdown {
		// stop accepting, let live connections run their course
		tcp.PauseAll(servers)
	}

	tcp.StopAll(servers)
	callIfNotNil(c.hooks.OnStop)
	log.Info("container stopped")

	return err
}

// GracefulStop stops accepting new connections, but keeps serving old ones.
//
// NOTE: the call is not blocking; the server keeps working for a while after
// it returns.
func (c *Container) GracefulStop() {
	c.errCh <- status.ErrGracefulShutdown
}

// Stop stops the whole container immediately.
//
// NOTE: the call is not blocking; the server keeps working for a while after
// it returns.
func (c *Container) Stop() {
	c.errCh <- status.ErrShutdown
}

func callIfNotNil(f func()) {
	if f != nil {
		f()
	}
}

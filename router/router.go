package router

import (
	"errors"
	"sort"
	"strings"

	"github.com/rustlet-web/rustlet/http"
	"github.com/rustlet-web/rustlet/http/status"
	"github.com/rustlet-web/rustlet/logging"
	"github.com/rustlet-web/rustlet/rsp"
)

// Rustlet is a request handler closure. It writes its output through
// request.Respond() and returns an error only for failures the engine should
// translate into an error response.
type Rustlet func(request *http.Request) error

var (
	ErrDuplicateRustlet = errors.New("a rustlet under this name is already registered")
	ErrDuplicateMapping = errors.New("this pattern is already mapped")
	ErrNoSuchRustlet    = errors.New("mapping refers to an unregistered rustlet")
)

type prefixMapping struct {
	prefix string
	name   string
}

// Registry binds URI patterns to named rustlets and dispatches requests.
// Registration happens before the container starts and is not synchronized;
// dispatch afterwards is read-only and safe from any worker.
type Registry struct {
	rustlets map[string]Rustlet
	exact    map[string]string
	prefixes []prefixMapping
	pages    *rsp.Interpreter
	log      *logging.System
}

func New(log *logging.System) *Registry {
	return &Registry{
		rustlets: map[string]Rustlet{},
		exact:    map[string]string{},
		log:      log,
	}
}

// AttachPages wires the page document interpreter in. Without it, *.rsp paths
// resolve like any other unmapped path.
func (r *Registry) AttachPages(pages *rsp.Interpreter) {
	r.pages = pages
}

// Register stores a rustlet under a name. The name is an independent
// namespace: it only becomes reachable once mapped or embedded in a page.
func (r *Registry) Register(name string, fn Rustlet) error {
	if _, occupied := r.rustlets[name]; occupied {
		return ErrDuplicateRustlet
	}

	r.rustlets[name] = fn
	return nil
}

// Map binds a URI pattern to a registered rustlet name. A pattern ending in
// '*' matches every path it prefixes; longer prefixes win over shorter ones.
func (r *Registry) Map(pattern, name string) error {
	if _, known := r.rustlets[name]; !known {
		return ErrNoSuchRustlet
	}

	if prefix, wildcard := strings.CutSuffix(pattern, "*"); wildcard {
		for _, mapping := range r.prefixes {
			if mapping.prefix == prefix {
				return ErrDuplicateMapping
			}
		}

		r.prefixes = append(r.prefixes, prefixMapping{prefix: prefix, name: name})
		sort.SliceStable(r.prefixes, func(i, j int) bool {
			return len(r.prefixes[i].prefix) > len(r.prefixes[j].prefix)
		})

		return nil
	}

	if _, occupied := r.exact[pattern]; occupied {
		return ErrDuplicateMapping
	}

	r.exact[pattern] = name
	return nil
}

// Dispatch resolves the request path and runs the matched rustlet. Panics
// inside handlers are contained here and become error responses instead of
// taking the worker down.
func (r *Registry) Dispatch(request *http.Request) (err error) {
	defer func() {
		if p := recover(); p != nil {
			if r.log != nil {
				r.log.Error("rustlet panic on %s: %v", request.Path, p)
			}

			err = status.ErrHandlerFault
		}
	}()

	if name, found := r.exact[request.Path]; found {
		return r.Invoke(name, request)
	}

	for _, mapping := range r.prefixes {
		if strings.HasPrefix(request.Path, mapping.prefix) {
			return r.Invoke(mapping.name, request)
		}
	}

	if r.pages != nil {
		if strings.HasSuffix(request.Path, ".rsp") {
			return r.pages.Serve(request)
		}

		return r.pages.ServeFile(request)
	}

	return status.ErrNotFound
}

// Invoke runs a rustlet by name against the given request. Used by page
// documents; all invocations within one page share the request.
func (r *Registry) Invoke(name string, request *http.Request) error {
	fn, found := r.rustlets[name]
	if !found {
		return status.ErrUnknownRustlet
	}

	return fn(request)
}

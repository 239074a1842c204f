package http

import (
	"net"
	"time"

	"github.com/rustlet-web/rustlet/http/cookie"
	"github.com/rustlet-web/rustlet/http/method"
	"github.com/rustlet-web/rustlet/kv"
	"github.com/rustlet-web/rustlet/session"
)

// Request is the per-request context handed to rustlets. It is owned
// exclusively by the worker currently processing it, except when detached via
// the async handoff. The engine re-uses one instance per connection across
// keep-alive requests.
type Request struct {
	// Method is the parsed request method.
	Method method.Method
	// Path is the decoded request path, query excluded.
	Path string
	// Query is the raw, undecoded query string.
	Query string
	// Proto is the protocol as sent, e.g. "HTTP/1.1".
	Proto string
	// Headers holds all header fields in wire order; duplicates are kept.
	Headers *kv.Storage
	// Body holds the full request body.
	Body []byte
	// Remote is the peer address.
	Remote net.Addr
	// Started is the timestamp the request line was parsed at. Processing
	// time in the request log is measured from it.
	Started time.Time
	// Session is resolved by the engine before dispatch and never nil there.
	Session *session.Session

	params    *kv.Storage
	hasParams bool
	jar       cookie.Jar
	response  *Response
	async     *AsyncContext
}

func NewRequest(remote net.Addr) *Request {
	return &Request{
		Headers:  kv.NewPrealloc(10),
		Remote:   remote,
		params:   kv.New(),
		response: NewResponse(),
	}
}

// Respond returns the response builder of this request.
func (r *Request) Respond() *Response {
	return r.response
}

// Params returns the parsed query parameters. Parsing is done lazily, at most
// once per request.
func (r *Request) Params() (*kv.Storage, error) {
	if !r.hasParams {
		if err := parseQuery(r.params, r.Query); err != nil {
			return nil, err
		}

		r.hasParams = true
	}

	return r.params, nil
}

// Param returns a single decoded query parameter, or an empty string if it is
// absent or the query is malformed.
func (r *Request) Param(key string) string {
	params, err := r.Params()
	if err != nil {
		return ""
	}

	return params.Value(key)
}

// Header returns the first value of the named header field.
func (r *Request) Header(key string) string {
	return r.Headers.Value(key)
}

// Cookies returns the parsed request cookie jar.
func (r *Request) Cookies() (cookie.Jar, error) {
	if r.jar == nil {
		r.jar = cookie.NewJarPrealloc(4)

		for value := range r.Headers.Values("cookie") {
			if err := cookie.Parse(r.jar, value); err != nil {
				return nil, err
			}
		}
	}

	return r.jar, nil
}

// Cookie returns a single request cookie value, or an empty string.
func (r *Request) Cookie(name string) string {
	jar, err := r.Cookies()
	if err != nil {
		return ""
	}

	return jar.Value(name)
}

// Async detaches response completion from the current worker. The connection
// is marked pending and no response is sent until the returned context is
// completed, exactly once, by whatever thread ends up owning it.
func (r *Request) Async() *AsyncContext {
	if r.async == nil {
		r.async = newAsyncContext(r)
	}

	return r.async
}

// AsyncContext returns the pending handoff, or nil for synchronous requests.
func (r *Request) AsyncContext() *AsyncContext {
	return r.async
}

// Reset prepares the request for the next message on the same connection.
func (r *Request) Reset() {
	r.Method = method.Unknown
	r.Path = ""
	r.Query = ""
	r.Proto = ""
	r.Headers.Clear()
	r.Body = r.Body[:0]
	r.Started = time.Time{}
	r.Session = nil
	r.params.Clear()
	r.hasParams = false
	r.jar = nil
	r.response.Clear()
	r.async = nil
}

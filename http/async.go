package http

import (
	"sync/atomic"

	"github.com/rustlet-web/rustlet/http/status"
)

// AsyncContext is the explicit ownership transfer of a request away from its
// worker. The rustlet obtains it via Request.Async, hands it to whatever
// goroutine will finish the work, and that goroutine calls Complete exactly
// once. The engine keeps the connection pending (exempt from the idle sweep)
// until then and only flushes the buffered response on completion.
type AsyncContext struct {
	request   *Request
	completed atomic.Bool
	done      chan struct{}
}

func newAsyncContext(request *Request) *AsyncContext {
	return &AsyncContext{
		request: request,
		done:    make(chan struct{}),
	}
}

// Request returns the detached request. The holder of the context is its sole
// owner until Complete.
func (c *AsyncContext) Request() *Request {
	return c.request
}

// Respond returns the response builder of the detached request.
func (c *AsyncContext) Respond() *Response {
	return c.request.Respond()
}

// Complete hands the request back to the engine, which resumes the normal
// flush path on the original connection. A second call is rejected with
// ErrProtocolMisuse and causes no second flush.
func (c *AsyncContext) Complete() error {
	if !c.completed.CompareAndSwap(false, true) {
		return status.ErrProtocolMisuse
	}

	close(c.done)
	return nil
}

// Done is closed once the context has been completed.
func (c *AsyncContext) Done() <-chan struct{} {
	return c.done
}

// Completed reports whether Complete has already been called.
func (c *AsyncContext) Completed() bool {
	return c.completed.Load()
}

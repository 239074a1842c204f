package status

type HTTPError struct {
	Message string
	Code    Code
}

func NewError(code Code, message string) error {
	return HTTPError{
		Code:    code,
		Message: message,
	}
}

func (h HTTPError) Error() string {
	return h.Message
}

var (
	ErrCloseConnection  = NewError(CloseConnection, "actively closing the connection")
	ErrShutdown         = NewError(CloseConnection, "server is shutting down")
	ErrGracefulShutdown = NewError(CloseConnection, "graceful shutdown")

	ErrBadRequest           = NewError(BadRequest, "bad request")
	ErrTooLongRequestLine   = NewError(BadRequest, "request line is too long")
	ErrURLDecoding          = NewError(BadRequest, "invalid urlencoded sequence")
	ErrBadChunk             = NewError(BadRequest, "malformed chunk-encoded data")
	ErrNotFound             = NewError(NotFound, "not found")
	ErrInternalServerError  = NewError(InternalServerError, "internal server error")
	ErrMethodNotImplemented = NewError(NotImplemented, "request method is not supported")
	ErrBodyTooLarge         = NewError(RequestEntityTooLarge, "request body is too large")
	ErrTooManyHeaders       = NewError(HeaderFieldsTooLarge, "too many headers")
	ErrHeaderFieldsTooLarge = NewError(HeaderFieldsTooLarge, "too large headers section")
	ErrURITooLong           = NewError(RequestURITooLong, "request URI too long")
	ErrUnsupportedProtocol  = NewError(HTTPVersionNotSupported, "HTTP version not supported")
	ErrRequestTimeout       = NewError(RequestTimeout, "request timeout")

	// ErrMalformedDocument is reported for page documents with broken tag syntax,
	// e.g. an opened invocation tag with no closing token before end of input.
	ErrMalformedDocument = NewError(BadRequest, "malformed page document")
	// ErrUnknownRustlet is reported when a page document invokes a rustlet
	// that was never registered.
	ErrUnknownRustlet = NewError(InternalServerError, "page document references an unregistered rustlet")
	// ErrHandlerFault is the client-facing outcome of a panic recovered at
	// the dispatch boundary.
	ErrHandlerFault = NewError(InternalServerError, "handler fault")
	// ErrProtocolMisuse is reported when the async handoff contract is
	// violated, e.g. a context is completed twice.
	ErrProtocolMisuse = NewError(InternalServerError, "async handoff contract violated")
)

package transport

// RequestState is the outcome of feeding a chunk of the stream into the parser.
type RequestState uint8

const (
	// Pending means the message head is still incomplete and more data is wanted.
	Pending RequestState = iota + 1
	// HeadersCompleted means the whole head is parsed; everything past it is
	// returned as extra and belongs to the body or the next request.
	HeadersCompleted
	// Error means the stream is malformed beyond recovery and the connection
	// must be closed after an error response.
	Error
)

// Writer abstracts the serializer's output, normally a tcp client.
type Writer interface {
	Write([]byte) error
}

package http1

import (
	"io"

	"github.com/indigo-web/chunkedbody"

	"github.com/rustlet-web/rustlet/http/status"
	"github.com/rustlet-web/rustlet/internal/server/tcp"
)

// Body collects request bodies off the wire into a reusable buffer. Rustlets
// always see the body in full, so there is no streaming interface; both plain
// and chunked transfers end up as one contiguous slice.
type Body struct {
	client  tcp.Client
	chunked *chunkedbody.Parser
	buff    []byte
	maxSize int
}

func NewBody(client tcp.Client, maxSize int) *Body {
	return &Body{
		client:  client,
		chunked: chunkedbody.NewParser(chunkedbody.DefaultSettings()),
		maxSize: maxSize,
	}
}

// Collect reads the whole body as announced by the parsed head, leaving any
// excess bytes unread for the next message. The returned slice is valid until
// the next call.
func (b *Body) Collect(contentLength int, chunked bool) ([]byte, error) {
	b.buff = b.buff[:0]

	if chunked {
		return b.collectChunked()
	}

	if contentLength == 0 {
		return nil, nil
	}

	if contentLength > b.maxSize {
		return nil, status.ErrBodyTooLarge
	}

	for left := contentLength; left > 0; {
		data, err := b.client.Read()
		if err != nil {
			return nil, err
		}

		if len(data) >= left {
			b.buff = append(b.buff, data[:left]...)
			b.client.Unread(data[left:])

			return b.buff, nil
		}

		b.buff = append(b.buff, data...)
		left -= len(data)
	}

	return b.buff, nil
}

func (b *Body) collectChunked() ([]byte, error) {
	for {
		data, err := b.client.Read()
		if err != nil {
			return nil, err
		}

		chunk, extra, err := b.chunked.Parse(data, false)
		switch err {
		case nil, io.EOF:
		default:
			return nil, status.ErrBadChunk
		}

		if len(b.buff)+len(chunk) > b.maxSize {
			return nil, status.ErrBodyTooLarge
		}

		b.buff = append(b.buff, chunk...)
		b.client.Unread(extra)

		if err == io.EOF {
			return b.buff, nil
		}
	}
}

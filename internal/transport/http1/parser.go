package http1

import (
	"bytes"
	"fmt"
	"time"

	"github.com/indigo-web/utils/buffer"
	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"

	"github.com/rustlet-web/rustlet/config"
	"github.com/rustlet-web/rustlet/http"
	"github.com/rustlet-web/rustlet/http/method"
	"github.com/rustlet-web/rustlet/http/status"
	"github.com/rustlet-web/rustlet/internal/transport"
)

type parserState uint8

const (
	eMethod parserState = iota + 1
	ePath
	eHeaderKey
	eHeaderValue
	eHeaderValueCRLFCR
)

// Parser is a stream-based http/1 request head parser. It fills the request
// object by pointer and consumes arbitrary slices of the stream, returning
// transport.Pending until the head is complete. Parsed strings alias the
// internal buffers, so they stay valid only until the next message begins.
// The body is processed separately, see Body.
type Parser struct {
	request       *http.Request
	startLineBuff *buffer.Buffer[byte]
	headersBuff   *buffer.Buffer[byte]
	headerKey     string
	maxHeaders    int
	headersSeen   int
	contentLength int
	chunked       bool
	state         parserState
}

func NewParser(request *http.Request, cfg config.HTTP) *Parser {
	return &Parser{
		request:       request,
		startLineBuff: buffer.NewBuffer[byte](min(256, cfg.MaxRequestLineSize), cfg.MaxRequestLineSize),
		headersBuff:   buffer.NewBuffer[byte](min(1024, cfg.MaxHeadersSpace), cfg.MaxHeadersSpace),
		maxHeaders:    cfg.MaxHeaders,
		state:         eMethod,
	}
}

// ContentLength reports the Content-Length of the lastly completed head.
func (p *Parser) ContentLength() int {
	return p.contentLength
}

// Chunked reports whether the lastly completed head announced a chunked body.
func (p *Parser) Chunked() bool {
	return p.chunked
}

func (p *Parser) Parse(data []byte) (state transport.RequestState, extra []byte, err error) {
	request := p.request

	switch p.state {
	case eMethod:
		goto method
	case ePath:
		goto path
	case eHeaderKey:
		goto headerKey
	case eHeaderValue:
		goto headerValue
	case eHeaderValueCRLFCR:
		goto headerValueCRLFCR
	default:
		panic(fmt.Sprintf("BUG: unexpected parser state: %v", p.state))
	}

method:
	{
		sp := bytes.IndexByte(data, ' ')
		if sp == -1 {
			if !p.startLineBuff.Append(data) {
				return transport.Error, nil, status.ErrTooLongRequestLine
			}

			return transport.Pending, nil, nil
		}

		if !p.startLineBuff.Append(data[:sp]) {
			return transport.Error, nil, status.ErrTooLongRequestLine
		}

		methodValue := p.startLineBuff.Finish()
		if len(methodValue) == 0 {
			return transport.Error, nil, status.ErrBadRequest
		}

		request.Method = method.Parse(uf.B2S(methodValue))
		if request.Method == method.Unknown {
			return transport.Error, nil, status.ErrMethodNotImplemented
		}

		request.Started = time.Now()
		p.contentLength = 0
		p.chunked = false
		data = data[sp+1:]
		p.state = ePath
		goto path
	}

path:
	{
		lf := bytes.IndexByte(data, '\n')
		if lf == -1 {
			if !p.startLineBuff.Append(data) {
				return transport.Error, nil, status.ErrURITooLong
			}

			return transport.Pending, nil, nil
		}

		if !p.startLineBuff.Append(data[:lf]) {
			return transport.Error, nil, status.ErrURITooLong
		}

		pathAndProto := p.startLineBuff.Finish()
		sp := bytes.LastIndexByte(pathAndProto, ' ')
		if sp == -1 {
			return transport.Error, nil, status.ErrBadRequest
		}

		reqPath, reqProto := pathAndProto[:sp], pathAndProto[sp+1:]
		if len(reqProto) > 0 && reqProto[len(reqProto)-1] == '\r' {
			reqProto = reqProto[:len(reqProto)-1]
		}

		if query := bytes.IndexByte(reqPath, '?'); query != -1 {
			request.Query = uf.B2S(reqPath[query+1:])
			reqPath = reqPath[:query]
		}

		if len(reqPath) == 0 {
			return transport.Error, nil, status.ErrBadRequest
		}

		reqPath, err = decodePath(reqPath)
		if err != nil {
			return transport.Error, nil, err
		}

		request.Path = uf.B2S(reqPath)

		switch uf.B2S(reqProto) {
		case "HTTP/1.1":
			request.Proto = "HTTP/1.1"
		case "HTTP/1.0":
			request.Proto = "HTTP/1.0"
		default:
			return transport.Error, nil, status.ErrUnsupportedProtocol
		}

		data = data[lf+1:]
		p.state = eHeaderKey
		goto headerKey
	}

headerKey:
	{
		if len(data) == 0 {
			return transport.Pending, nil, nil
		}

		switch data[0] {
		case '\n':
			p.reset()

			return transport.HeadersCompleted, data[1:], nil
		case '\r':
			data = data[1:]
			p.state = eHeaderValueCRLFCR
			goto headerValueCRLFCR
		}

		colon := bytes.IndexByte(data, ':')
		if colon == -1 {
			if !p.headersBuff.Append(data) {
				return transport.Error, nil, status.ErrHeaderFieldsTooLarge
			}

			return transport.Pending, nil, nil
		}

		if !p.headersBuff.Append(data[:colon]) {
			return transport.Error, nil, status.ErrHeaderFieldsTooLarge
		}

		p.headerKey = uf.B2S(p.headersBuff.Finish())
		data = data[colon+1:]

		if p.headersSeen++; p.headersSeen > p.maxHeaders {
			return transport.Error, nil, status.ErrTooManyHeaders
		}

		p.state = eHeaderValue
		goto headerValue
	}

headerValue:
	{
		lf := bytes.IndexByte(data, '\n')
		if lf == -1 {
			if !p.headersBuff.Append(data) {
				return transport.Error, nil, status.ErrHeaderFieldsTooLarge
			}

			return transport.Pending, nil, nil
		}

		if !p.headersBuff.Append(data[:lf]) {
			return transport.Error, nil, status.ErrHeaderFieldsTooLarge
		}

		value := uf.B2S(trimSpacesCR(p.headersBuff.Finish()))
		request.Headers.Add(p.headerKey, value)

		switch {
		case strcomp.EqualFold(p.headerKey, "content-length"):
			p.contentLength, err = parseContentLength(value)
			if err != nil {
				return transport.Error, nil, err
			}
		case strcomp.EqualFold(p.headerKey, "transfer-encoding"):
			p.chunked = hasChunkedToken(value)
		}

		data = data[lf+1:]
		p.state = eHeaderKey
		goto headerKey
	}

headerValueCRLFCR:
	if len(data) == 0 {
		return transport.Pending, nil, nil
	}

	if data[0] == '\n' {
		p.reset()

		return transport.HeadersCompleted, data[1:], nil
	}

	return transport.Error, nil, status.ErrBadRequest
}

// reset prepares the parser for the next message head. The lastly parsed
// content length and chunked flag survive until that head's method is parsed.
func (p *Parser) reset() {
	p.headersSeen = 0
	p.startLineBuff.Clear()
	p.headersBuff.Clear()
	p.state = eMethod
}

// decodePath resolves %XX escapes in-place. Unlike query components, '+' is
// a literal inside a path.
func decodePath(src []byte) ([]byte, error) {
	percent := bytes.IndexByte(src, '%')
	if percent == -1 {
		return src, nil
	}

	dst := src[:percent]

	for i := percent; i < len(src); i++ {
		if src[i] != '%' {
			dst = append(dst, src[i])
			continue
		}

		if i+2 >= len(src) {
			return nil, status.ErrURLDecoding
		}

		hi, okHi := unhex(src[i+1])
		lo, okLo := unhex(src[i+2])
		if !okHi || !okLo {
			return nil, status.ErrURLDecoding
		}

		dst = append(dst, hi<<4|lo)
		i += 2
	}

	return dst, nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

func parseContentLength(value string) (length int, err error) {
	// 18 digits is the most that cannot overflow an int64
	if len(value) == 0 || len(value) > 18 {
		return 0, status.ErrBadRequest
	}

	for _, char := range []byte(value) {
		if char < '0' || char > '9' {
			return 0, status.ErrBadRequest
		}

		length = length*10 + int(char-'0')
	}

	return length, nil
}

func hasChunkedToken(value string) bool {
	for len(value) > 0 {
		var token string

		if comma := bytes.IndexByte(uf.S2B(value), ','); comma != -1 {
			token, value = value[:comma], value[comma+1:]
		} else {
			token, value = value, ""
		}

		if strcomp.EqualFold(trimToken(token), "chunked") {
			return true
		}
	}

	return false
}

func trimToken(token string) string {
	for len(token) > 0 && token[0] == ' ' {
		token = token[1:]
	}

	for len(token) > 0 && token[len(token)-1] == ' ' {
		token = token[:len(token)-1]
	}

	return token
}

func trimSpacesCR(b []byte) []byte {
	for len(b) > 0 && b[len(b)-1] == '\r' {
		b = b[:len(b)-1]
	}

	for i, char := range b {
		if char != ' ' {
			return b[i:]
		}
	}

	return b[:0]
}

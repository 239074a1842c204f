package http1

import (
	"strconv"

	"github.com/indigo-web/utils/strcomp"

	"github.com/rustlet-web/rustlet/http"
	"github.com/rustlet-web/rustlet/http/cookie"
	"github.com/rustlet-web/rustlet/http/method"
	"github.com/rustlet-web/rustlet/http/status"
	"github.com/rustlet-web/rustlet/internal/transport"
)

const (
	contentType   = "Content-Type: "
	contentLength = "Content-Length: "
	setCookie     = "Set-Cookie: "
)

// Serializer renders responses into a single reusable buffer and hands it to
// the writer in one call. One instance belongs to exactly one connection.
type Serializer struct {
	buff []byte
}

func NewSerializer(buffSize int) *Serializer {
	return &Serializer{
		buff: make([]byte, 0, buffSize),
	}
}

// Write serializes the response and sends it. status.ErrCloseConnection is
// returned when the connection must not be reused afterwards.
func (s *Serializer) Write(
	request *http.Request, fields *http.Fields, writer transport.Writer,
) error {
	defer s.clear()

	keepAlive := isKeepAlive(request)

	s.renderResponseLine(fields)
	s.renderHeaders(fields, keepAlive)
	s.renderContentLength(len(fields.Body))
	s.crlf()

	if request.Method != method.HEAD {
		// HEAD responses mirror GET ones, minus the body, Content-Length included
		s.buff = append(s.buff, fields.Body...)
	}

	if err := writer.Write(s.buff); err != nil {
		return status.ErrCloseConnection
	}

	if !keepAlive {
		return status.ErrCloseConnection
	}

	return nil
}

func (s *Serializer) renderResponseLine(fields *http.Fields) {
	s.buff = append(s.buff, "HTTP/1.1"...)
	s.sp()
	s.buff = strconv.AppendInt(s.buff, int64(fields.Code), 10)
	s.sp()

	if len(fields.Status) > 0 {
		s.buff = append(s.buff, fields.Status...)
	} else {
		s.buff = append(s.buff, status.Text(fields.Code)...)
	}

	s.crlf()
}

func (s *Serializer) renderHeaders(fields *http.Fields, keepAlive bool) {
	for key, value := range fields.Headers.Pairs() {
		s.renderHeader(key, value)
	}

	s.renderKnownHeader(contentType, fields.ContentType)

	for _, c := range fields.Cookies {
		s.renderKnownHeader(setCookie, cookie.Render(c))
	}

	if keepAlive {
		s.buff = append(s.buff, "Connection: keep-alive\r\n"...)
	} else {
		s.buff = append(s.buff, "Connection: close\r\n"...)
	}
}

func (s *Serializer) renderHeader(key, value string) {
	s.buff = append(s.buff, key...)
	s.buff = append(s.buff, ':', ' ')
	s.buff = append(s.buff, value...)
	s.crlf()
}

func (s *Serializer) renderKnownHeader(key, value string) {
	s.buff = append(s.buff, key...)
	s.buff = append(s.buff, value...)
	s.crlf()
}

func (s *Serializer) renderContentLength(length int) {
	s.buff = append(s.buff, contentLength...)
	s.buff = strconv.AppendInt(s.buff, int64(length), 10)
	s.crlf()
}

func (s *Serializer) sp() {
	s.buff = append(s.buff, ' ')
}

func (s *Serializer) crlf() {
	s.buff = append(s.buff, '\r', '\n')
}

func (s *Serializer) clear() {
	s.buff = s.buff[:0]
}

// isKeepAlive resolves connection persistence the http/1 way: 1.1 defaults to
// keep-alive unless the client said close, 1.0 defaults to close unless the
// client asked to keep it.
func isKeepAlive(request *http.Request) bool {
	connection := request.Headers.Value("connection")

	switch request.Proto {
	case "HTTP/1.0":
		return strcomp.EqualFold(connection, "keep-alive")
	default:
		return !strcomp.EqualFold(connection, "close")
	}
}

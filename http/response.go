package http

import (
	json "github.com/json-iterator/go"

	"github.com/rustlet-web/rustlet/http/cookie"
	"github.com/rustlet-web/rustlet/http/status"
	"github.com/rustlet-web/rustlet/kv"
)

const defaultContentType = "text/html"

// Fields is the raw content of a response, exposed to the serializer.
type Fields struct {
	Code        status.Code
	Status      status.Status
	ContentType string
	Headers     *kv.Storage
	Cookies     []cookie.Cookie
	Body        []byte
}

// Response is a chainable response builder. Body writes append, mirroring
// how rustlets produce output incrementally; everything else replaces.
type Response struct {
	fields Fields
}

func NewResponse() *Response {
	return &Response{
		fields: Fields{
			Code:        status.OK,
			ContentType: defaultContentType,
			Headers:     kv.NewPrealloc(4),
		},
	}
}

// Code sets the response status code.
func (r *Response) Code(code status.Code) *Response {
	r.fields.Code = code
	return r
}

// Status overrides the reason phrase. Rarely needed: unknown codes fall back
// to the numeric code alone.
func (r *Response) Status(text status.Status) *Response {
	r.fields.Status = text
	return r
}

// ContentType sets the Content-Type header value.
func (r *Response) ContentType(value string) *Response {
	r.fields.ContentType = value
	return r
}

// Header adds a response header field. Setting the same key twice emits it
// twice.
func (r *Response) Header(key, value string) *Response {
	r.fields.Headers.Add(key, value)
	return r
}

// SetCookie schedules a Set-Cookie header.
func (r *Response) SetCookie(c cookie.Cookie) *Response {
	r.fields.Cookies = append(r.fields.Cookies, c)
	return r
}

// Redirect replies with 302 Found pointing at target.
func (r *Response) Redirect(target string) *Response {
	r.fields.Code = status.Found
	r.fields.Headers.Set("Location", target)
	return r
}

// WriteString appends text to the response body.
func (r *Response) WriteString(text string) *Response {
	r.fields.Body = append(r.fields.Body, text...)
	return r
}

// Write appends raw bytes to the response body. It implements io.Writer and
// never fails.
func (r *Response) Write(b []byte) (n int, err error) {
	r.fields.Body = append(r.fields.Body, b...)
	return len(b), nil
}

// JSON marshals model, appends it to the body and flips the content type.
func (r *Response) JSON(model any) (*Response, error) {
	raw, err := json.Marshal(model)
	if err != nil {
		return r, err
	}

	r.fields.Body = append(r.fields.Body, raw...)
	return r.ContentType("application/json"), nil
}

// Error replies with the code carried by err, if any, otherwise with 500.
// The error message becomes the body, so it must not leak internals.
func (r *Response) Error(err error) *Response {
	if http, ok := err.(status.HTTPError); ok && http.Code != status.CloseConnection {
		return r.Code(http.Code).WriteString(http.Message)
	}

	return r.Code(status.InternalServerError).
		WriteString(string(status.Text(status.InternalServerError)))
}

// Reveal exposes the raw fields for serialization.
func (r *Response) Reveal() *Fields {
	return &r.fields
}

// BodyLen returns the current body length.
func (r *Response) BodyLen() int {
	return len(r.fields.Body)
}

// Clear resets the builder for reuse, keeping allocations.
func (r *Response) Clear() *Response {
	r.fields.Code = status.OK
	r.fields.Status = ""
	r.fields.ContentType = defaultContentType
	r.fields.Headers.Clear()
	r.fields.Cookies = r.fields.Cookies[:0]
	r.fields.Body = r.fields.Body[:0]
	return r
}

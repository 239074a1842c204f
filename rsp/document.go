package rsp

import (
	"bytes"

	"github.com/rustlet-web/rustlet/http/status"
)

// tag delimiters of an embedded rustlet call, e.g. <@=header>.
var (
	tagOpen  = []byte("<@=")
	tagClose = byte('>')
)

// Segment is one piece of a parsed page document: either a literal to be
// emitted verbatim, or the name of a rustlet to invoke in its place.
type Segment struct {
	Literal string
	Invoke  string
}

// Document is a parsed page: an alternating sequence of literals and rustlet
// invocations, in source order. Parsed once, rendered many times.
type Document struct {
	segments []Segment
}

// ParseDocument splits page source into segments. An unterminated or empty
// tag makes the whole document malformed; there is no partial recovery, as a
// half-rendered page is worse than an error page.
func ParseDocument(src []byte) (*Document, error) {
	doc := new(Document)

	for len(src) > 0 {
		open := bytes.Index(src, tagOpen)
		if open == -1 {
			doc.segments = append(doc.segments, Segment{Literal: string(src)})
			break
		}

		if open > 0 {
			doc.segments = append(doc.segments, Segment{Literal: string(src[:open])})
		}

		src = src[open+len(tagOpen):]

		end := bytes.IndexByte(src, tagClose)
		if end == -1 {
			return nil, status.ErrMalformedDocument
		}

		name := string(src[:end])
		if len(name) == 0 || bytes.ContainsAny(src[:end], " \t\r\n") {
			return nil, status.ErrMalformedDocument
		}

		doc.segments = append(doc.segments, Segment{Invoke: name})
		src = src[end+1:]
	}

	return doc, nil
}

// Segments exposes the parsed sequence.
func (d *Document) Segments() []Segment {
	return d.segments
}

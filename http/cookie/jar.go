package cookie

import (
	"errors"
	"strings"

	"github.com/rustlet-web/rustlet/kv"
)

// Jar is a key-value storage for request cookies. Pairs consist of plain
// strings, not cookie.Cookie, as attributes are never sent by user-agents.
type Jar = *kv.Storage

func NewJar() Jar {
	return kv.New()
}

func NewJarPrealloc(n int) Jar {
	return kv.NewPrealloc(n)
}

var ErrBadCookie = errors.New("cookie has a malformed syntax")

// Parse parses a Cookie header value received from a user-agent into the jar.
// It is not applicable for Set-Cookie values.
func Parse(jar Jar, data string) (err error) {
	for len(data) > 0 {
		eq := strings.IndexByte(data, '=')
		if eq == -1 {
			break
		}

		key := strings.TrimSpace(data[:eq])
		data = data[eq+1:]

		if len(key) == 0 {
			return ErrBadCookie
		}

		var value string

		if cs := strings.IndexByte(data, ';'); cs != -1 {
			value, data = data[:cs], stripSpace(data[cs+1:])
		} else {
			value, data = data, ""
		}

		jar.Add(key, value)
	}

	if len(data) != 0 {
		return ErrBadCookie
	}

	return nil
}

func stripSpace(str string) string {
	if len(str) > 0 && str[0] == ' ' {
		return str[1:]
	}

	return str
}

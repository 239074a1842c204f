package cookie

import (
	"strconv"
	"strings"
	"time"
)

type Cookie struct {
	Name    string
	Value   string
	Path    string
	Domain  string
	Expires time.Time
	// MaxAge defines a delta in seconds, when the cookie should be dropped.
	// Zero is treated as a zero-value and ignored; -1 is the conventional
	// way to request an immediate drop.
	MaxAge   int
	SameSite SameSite
	Secure   bool
	HttpOnly bool
}

func New(name, value string) Cookie {
	return Cookie{Name: name, Value: value}
}

type Builder struct {
	cookie Cookie
}

// Build is a chainable constructor for cookies. A preferred way of instantiation.
func Build(name, value string) Builder {
	return Builder{New(name, value)}
}

func (b Builder) Path(path string) Builder {
	b.cookie.Path = path
	return b
}

func (b Builder) Domain(domain string) Builder {
	b.cookie.Domain = domain
	return b
}

func (b Builder) Expires(expires time.Time) Builder {
	b.cookie.Expires = expires
	return b
}

func (b Builder) MaxAge(maxAge int) Builder {
	b.cookie.MaxAge = maxAge
	return b
}

func (b Builder) SameSite(sameSite SameSite) Builder {
	b.cookie.SameSite = sameSite
	return b
}

func (b Builder) Secure(secure bool) Builder {
	b.cookie.Secure = secure
	return b
}

func (b Builder) HttpOnly(httpOnly bool) Builder {
	b.cookie.HttpOnly = httpOnly
	return b
}

// Cookie returns the built cookie instance.
func (b Builder) Cookie() Cookie {
	return b.cookie
}

type SameSite = string

const (
	SameSiteLax    SameSite = "Lax"
	SameSiteStrict SameSite = "Strict"
	SameSiteNone   SameSite = "None"
)

// Render serializes the cookie into a Set-Cookie header value.
func Render(c Cookie) string {
	var sb strings.Builder
	sb.WriteString(c.Name)
	sb.WriteByte('=')
	sb.WriteString(c.Value)

	if len(c.Path) > 0 {
		sb.WriteString("; Path=")
		sb.WriteString(c.Path)
	}

	if len(c.Domain) > 0 {
		sb.WriteString("; Domain=")
		sb.WriteString(c.Domain)
	}

	if !c.Expires.IsZero() {
		sb.WriteString("; Expires=")
		sb.WriteString(c.Expires.UTC().Format(time.RFC1123))
	}

	if c.MaxAge != 0 {
		maxAge := c.MaxAge
		if maxAge < 0 {
			maxAge = 0
		}

		sb.WriteString("; Max-Age=")
		sb.WriteString(strconv.Itoa(maxAge))
	}

	if len(c.SameSite) > 0 {
		sb.WriteString("; SameSite=")
		sb.WriteString(c.SameSite)
	}

	if c.Secure {
		sb.WriteString("; Secure")
	}

	if c.HttpOnly {
		sb.WriteString("; HttpOnly")
	}

	return sb.String()
}

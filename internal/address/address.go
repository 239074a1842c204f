package address

import (
	"net"
	"strings"
)

const DefaultHost = "0.0.0.0"

// Normalize completes a bind address that consists of a port alone, e.g.
// ":8080" becomes "0.0.0.0:8080".
func Normalize(addr string) string {
	if len(Host(addr)) == 0 {
		return DefaultHost + addr
	}

	return addr
}

// Host returns the host part of a host:port address, which may be empty.
func Host(addr string) string {
	colon := strings.LastIndexByte(addr, ':')
	if colon != -1 {
		return addr[:colon]
	}

	return addr
}

func IsLocalhost(addr string) bool {
	return strings.EqualFold(Host(addr), "localhost")
}

func IsIP(addr string) bool {
	return net.ParseIP(Host(addr)) != nil
}

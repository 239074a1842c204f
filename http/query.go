package http

import (
	"strings"

	"github.com/rustlet-web/rustlet/http/status"
	"github.com/rustlet-web/rustlet/kv"
)

// parseQuery splits a raw query string into decoded key-value pairs. Pair
// order is preserved; keys without '=' get empty values.
func parseQuery(into *kv.Storage, raw string) error {
	for len(raw) > 0 {
		var pair string

		if amp := strings.IndexByte(raw, '&'); amp != -1 {
			pair, raw = raw[:amp], raw[amp+1:]
		} else {
			pair, raw = raw, ""
		}

		if len(pair) == 0 {
			continue
		}

		key, value := pair, ""
		if eq := strings.IndexByte(pair, '='); eq != -1 {
			key, value = pair[:eq], pair[eq+1:]
		}

		decodedKey, err := decodeComponent(key)
		if err != nil {
			return err
		}

		decodedValue, err := decodeComponent(value)
		if err != nil {
			return err
		}

		into.Add(decodedKey, decodedValue)
	}

	return nil
}

// decodeComponent resolves %XX escapes and '+' spaces. The undecoded string
// is returned as-is when it contains neither, avoiding a copy.
func decodeComponent(str string) (string, error) {
	if strings.IndexByte(str, '%') == -1 && strings.IndexByte(str, '+') == -1 {
		return str, nil
	}

	decoded := make([]byte, 0, len(str))

	for i := 0; i < len(str); i++ {
		switch str[i] {
		case '%':
			if i+2 >= len(str) {
				return "", status.ErrURLDecoding
			}

			hi, okHi := unhex(str[i+1])
			lo, okLo := unhex(str[i+2])
			if !okHi || !okLo {
				return "", status.ErrURLDecoding
			}

			decoded = append(decoded, hi<<4|lo)
			i += 2
		case '+':
			decoded = append(decoded, ' ')
		default:
			decoded = append(decoded, str[i])
		}
	}

	return string(decoded), nil
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

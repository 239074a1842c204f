package kv

import (
	"iter"
	"strings"
)

type Pair struct {
	Key, Value string
}

// Storage is an ordered associative structure for (string, string) pairs. Lookup is
// case-insensitive and linear, which beats a map on the small collections it is used
// for (request headers, query parameters, response headers). Duplicate keys are
// allowed and insertion order is preserved.
type Storage struct {
	pairs []Pair
}

func New() *Storage {
	return new(Storage)
}

// NewPrealloc returns a Storage with pre-allocated room for n pairs.
func NewPrealloc(n int) *Storage {
	return &Storage{
		pairs: make([]Pair, 0, n),
	}
}

// Add appends a new pair, keeping any pairs with the same key.
func (s *Storage) Add(key, value string) *Storage {
	s.pairs = append(s.pairs, Pair{Key: key, Value: value})
	return s
}

// Set replaces all pairs with the given key by a single one.
func (s *Storage) Set(key, value string) *Storage {
	s.Delete(key)
	return s.Add(key, value)
}

// Delete removes all pairs with the given key.
func (s *Storage) Delete(key string) *Storage {
	kept := s.pairs[:0]

	for _, pair := range s.pairs {
		if !strings.EqualFold(key, pair.Key) {
			kept = append(kept, pair)
		}
	}

	s.pairs = kept
	return s
}

// Value returns the first value corresponding to the key, otherwise an empty string.
func (s *Storage) Value(key string) string {
	return s.ValueOr(key, "")
}

// ValueOr returns either the first value corresponding to the key or the fallback.
func (s *Storage) ValueOr(key, or string) string {
	value, found := s.Get(key)
	if !found {
		return or
	}

	return value
}

// Get returns the first value and a bool indicating whether it was found at all.
func (s *Storage) Get(key string) (value string, found bool) {
	for _, pair := range s.pairs {
		if strings.EqualFold(key, pair.Key) {
			return pair.Value, true
		}
	}

	return "", false
}

// Values iterates over all values stored under the key.
func (s *Storage) Values(key string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, pair := range s.pairs {
			if strings.EqualFold(key, pair.Key) {
				if !yield(pair.Value) {
					return
				}
			}
		}
	}
}

// Pairs iterates over all pairs in insertion order.
func (s *Storage) Pairs() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, pair := range s.pairs {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

// Has indicates whether there is at least one entry under the key.
func (s *Storage) Has(key string) bool {
	_, found := s.Get(key)
	return found
}

// Len returns the number of stored pairs.
func (s *Storage) Len() int {
	return len(s.pairs)
}

func (s *Storage) Empty() bool {
	return s.Len() == 0
}

// Expose exposes the underlying pairs slice.
func (s *Storage) Expose() []Pair {
	return s.pairs
}

// Clone makes a deep copy which stays valid after the original is cleared.
func (s *Storage) Clone() *Storage {
	pairs := make([]Pair, len(s.pairs))
	copy(pairs, s.pairs)

	return &Storage{pairs: pairs}
}

// Clear removes all the entries, keeping the allocated space for further use.
func (s *Storage) Clear() *Storage {
	s.pairs = s.pairs[:0]
	return s
}

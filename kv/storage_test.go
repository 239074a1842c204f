package kv

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStorage(t *testing.T) {
	getHeaders := func() *Storage {
		return New().
			Add("Foo", "bar").
			Add("Hello", "World").
			Add("Lorem", "ipsum").
			Add("hello", "Pavlo")
	}

	t.Run("get is case-insensitive", func(t *testing.T) {
		kv := getHeaders()
		require.Equal(t, "World", kv.Value("HELLO"))
		require.Equal(t, "bar", kv.Value("foo"))
		require.False(t, kv.Has("nonexistent"))
	})

	t.Run("values preserves duplicates in order", func(t *testing.T) {
		kv := getHeaders()
		require.Equal(t, []string{"World", "Pavlo"}, slices.Collect(kv.Values("hello")))
	})

	t.Run("delete", func(t *testing.T) {
		kv := getHeaders().Delete("HELLO")

		want := []Pair{
			{"Foo", "bar"},
			{"Lorem", "ipsum"},
		}

		require.Equal(t, want, kv.Expose())
	})

	t.Run("set replaces all occurrences", func(t *testing.T) {
		kv := getHeaders().Set("HELLO", "no more Pavlo")

		require.Equal(t, 3, kv.Len())
		require.Equal(t, "no more Pavlo", kv.Value("hello"))
		require.Equal(t, []string{"no more Pavlo"}, slices.Collect(kv.Values("hello")))
	})

	t.Run("pairs keeps insertion order", func(t *testing.T) {
		kv := getHeaders()
		var keys []string
		for key := range kv.Pairs() {
			keys = append(keys, key)
		}

		require.Equal(t, []string{"Foo", "Hello", "Lorem", "hello"}, keys)
	})

	t.Run("clone is independent", func(t *testing.T) {
		kv := getHeaders()
		clone := kv.Clone()
		kv.Clear()

		require.True(t, kv.Empty())
		require.Equal(t, 4, clone.Len())
	})
}

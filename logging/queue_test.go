package logging

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueue(t *testing.T) {
	entry := func(i int) Entry {
		return MainEvent{Time: time.Now(), Message: fmt.Sprintf("entry %d", i)}
	}

	t.Run("never exceeds capacity", func(t *testing.T) {
		q := NewQueue(3)

		for i := 0; i < 3; i++ {
			require.True(t, q.Enqueue(entry(i)))
		}

		require.False(t, q.Enqueue(entry(3)))
		require.False(t, q.Enqueue(entry(4)))
		require.Equal(t, 3, q.Len())
		require.Equal(t, uint64(2), q.Dropped())
	})

	t.Run("drains in FIFO order", func(t *testing.T) {
		q := NewQueue(8)
		for i := 0; i < 5; i++ {
			q.Enqueue(entry(i))
		}

		drained := q.Drain(nil)
		require.Len(t, drained, 5)
		for i, e := range drained {
			require.Equal(t, fmt.Sprintf("entry %d", i), e.(MainEvent).Message)
		}

		require.Equal(t, 0, q.Len())
	})

	t.Run("usable again after drain", func(t *testing.T) {
		q := NewQueue(2)
		q.Enqueue(entry(0))
		q.Enqueue(entry(1))
		require.False(t, q.Enqueue(entry(2)))

		q.Drain(nil)
		require.True(t, q.Enqueue(entry(3)))
		require.Equal(t, "entry 3", q.Drain(nil)[0].(MainEvent).Message)
	})

	t.Run("wraps around", func(t *testing.T) {
		q := NewQueue(4)
		for round := 0; round < 3; round++ {
			for i := 0; i < 3; i++ {
				require.True(t, q.Enqueue(entry(round*3+i)))
			}

			drained := q.Drain(nil)
			require.Len(t, drained, 3)
			require.Equal(t, fmt.Sprintf("entry %d", round*3), drained[0].(MainEvent).Message)
		}
	})
}

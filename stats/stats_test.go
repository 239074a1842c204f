package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	t.Run("window resets, total accumulates", func(t *testing.T) {
		r := NewRecorder()
		r.OnConnect()
		r.OnRequest(10 * time.Millisecond)
		r.OnRequest(30 * time.Millisecond)

		window := r.Flush()
		require.Equal(t, uint64(2), window.Requests)
		require.Equal(t, uint64(1), window.Connects)
		require.Equal(t, 20*time.Millisecond, window.AvgLat())
		require.Equal(t, 30*time.Millisecond, window.LatMax)

		r.OnRequest(5 * time.Millisecond)

		window = r.Flush()
		require.Equal(t, uint64(1), window.Requests)
		require.Equal(t, uint64(0), window.Connects)
		require.Equal(t, 5*time.Millisecond, window.LatMax)

		total := r.Total()
		require.Equal(t, uint64(3), total.Requests)
		require.Equal(t, uint64(1), total.Connects)
		require.Equal(t, 30*time.Millisecond, total.LatMax)
	})

	t.Run("connection gauge", func(t *testing.T) {
		r := NewRecorder()
		r.OnConnect()
		r.OnConnect()
		r.OnDisconnect()

		require.Equal(t, int64(1), r.Conns())
	})

	t.Run("timeout counters", func(t *testing.T) {
		r := NewRecorder()
		r.OnIdleDisconnect()
		r.OnRequestTimeout()
		r.OnRequestTimeout()

		total := r.Total()
		require.Equal(t, uint64(1), total.IdleDisc)
		require.Equal(t, uint64(2), total.RTimeouts)
	})

	t.Run("concurrent updates", func(t *testing.T) {
		r := NewRecorder()

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 1000; j++ {
					r.OnRequest(time.Millisecond)
				}
			}()
		}
		wg.Wait()

		require.Equal(t, uint64(8000), r.Total().Requests)
	})
}

func TestSnapshotMath(t *testing.T) {
	s := Snapshot{Requests: 100, Elapsed: 10 * time.Second}
	require.InDelta(t, 10.0, s.QPS(), 0.001)

	require.Zero(t, Snapshot{}.QPS())
	require.Zero(t, Snapshot{}.AvgLat())
}

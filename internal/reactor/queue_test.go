package reactor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *ActionQueue {
	t.Helper()
	s := NewLoopbackSocket()
	require.NoError(t, s.Init())
	t.Cleanup(func() { _ = s.Close() })
	return NewActionQueue(s)
}

func TestActionQueue_FIFO(t *testing.T) {
	q := newTestQueue(t)

	var got []int
	for i := 0; i < 10; i++ {
		i := i
		require.NoError(t, q.Enqueue(func() { got = append(got, i) }))
	}
	assert.Equal(t, 10, q.Len())
	assert.True(t, q.Socket().DataRemaining())

	assert.Equal(t, 10, q.DrainAndRun())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
	assert.Equal(t, 0, q.Len())
	assert.False(t, q.Socket().DataRemaining(), "drain should discard wake bytes")
}

func TestActionQueue_PushDoesNotWake(t *testing.T) {
	q := newTestQueue(t)

	q.Push(func() {})
	q.Push(nil)
	assert.Equal(t, 1, q.Len())
	assert.False(t, q.Socket().DataRemaining())
}

func TestActionQueue_ActionMayEnqueue(t *testing.T) {
	q := newTestQueue(t)

	var order []string
	require.NoError(t, q.Enqueue(func() {
		order = append(order, "first")
		_ = q.Enqueue(func() { order = append(order, "nested") })
	}))
	require.NoError(t, q.Enqueue(func() { order = append(order, "second") }))

	assert.Equal(t, 3, q.DrainAndRun())
	assert.Equal(t, []string{"first", "second", "nested"}, order)
}

func TestActionQueue_ConcurrentProducerKeepsOrder(t *testing.T) {
	q := newTestQueue(t)

	const total = 2000
	var (
		mu  sync.Mutex
		got []int
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < total; i++ {
			i := i
			_ = q.Enqueue(func() {
				mu.Lock()
				got = append(got, i)
				mu.Unlock()
			})
		}
	}()

	ran := 0
	for ran < total {
		ran += q.DrainAndRun()
	}
	<-done
	ran += q.DrainAndRun()

	require.Equal(t, total, ran)
	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		require.Equal(t, i, v, "action %d ran out of order", i)
	}
}

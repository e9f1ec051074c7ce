package track

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stridelog/stridelog/internal/source"
)

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()

	q.Enqueue(event{kind: eventReading, reading: source.Reading{Cumulative: 1}})
	q.Enqueue(event{kind: eventReading, reading: source.Reading{Cumulative: 2}})
	q.Enqueue(event{kind: eventFlushTick})

	e, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, int64(1), e.reading.Cumulative)

	e, ok = q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, int64(2), e.reading.Cumulative)

	e, ok = q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, eventFlushTick, e.kind)

	_, ok = q.TryDequeue()
	assert.False(t, ok, "empty queue")
}

func TestEventQueue_EnqueueAfterClose(t *testing.T) {
	q := newEventQueue()
	q.Close()

	assert.False(t, q.Enqueue(event{kind: eventFlushTick}))
	assert.True(t, q.Closed())
}

func TestEventQueue_CloseIdempotent(t *testing.T) {
	q := newEventQueue()
	q.Close()
	q.Close() // must not panic
}

func TestEventQueue_CloseWakesWaiters(t *testing.T) {
	q := newEventQueue()

	done := make(chan struct{})
	go func() {
		<-q.Wait()
		close(done)
	}()

	q.Close()
	<-done
}

func TestEventQueue_DrainsAfterClose(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(event{kind: eventStaleTick})
	q.Close()

	// Events enqueued before Close remain dequeuable.
	e, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, eventStaleTick, e.kind)
}

func TestEventQueue_ConcurrentEnqueue(t *testing.T) {
	q := newEventQueue()
	const goroutines = 50
	const perGoroutine = 20

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				q.Enqueue(event{kind: eventFlushTick})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines*perGoroutine, q.Len())
}

package voice

import (
	"context"
	"sync"
	"time"
)

// queue is an unbounded FIFO. Push never blocks; Pop waits on a signal
// channel with a timeout instead of polling.
type queue[T any] struct {
	mu     sync.Mutex
	items  []T
	signal chan struct{}
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{signal: make(chan struct{}, 1)}
}

func (q *queue[T]) Push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Pop returns the oldest item, waiting up to timeout for one to arrive.
// ok is false on timeout or when ctx is done.
func (q *queue[T]) Pop(ctx context.Context, timeout time.Duration) (v T, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if v, ok = q.tryPop(); ok {
			return v, true
		}
		select {
		case <-q.signal:
		case <-timer.C:
			return v, false
		case <-ctx.Done():
			return v, false
		}
	}
}

func (q *queue[T]) tryPop() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return v, false
	}
	v = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	return v, true
}

func (q *queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain removes and returns everything queued.
func (q *queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

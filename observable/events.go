package observable

import (
	"context"
	"sync"
)

// Events is a single-slot queue of one-shot signals (navigation, toasts). Each
// event is received by exactly one reader; an unread event is replaced by a newer
// one instead of piling up and being replayed later.
type Events[T any] struct {
	mu sync.Mutex
	ch chan T
}

func NewEvents[T any]() *Events[T] {
	return &Events[T]{ch: make(chan T, 1)}
}

// Emit never blocks.
func (e *Events[T]) Emit(v T) {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case e.ch <- v:
	default:
		select {
		case <-e.ch:
		default:
		}
		e.ch <- v
	}
}

func (e *Events[T]) C() <-chan T {
	return e.ch
}

// Next waits for the next event or for ctx to end.
func (e *Events[T]) Next(ctx context.Context) (T, bool) {
	select {
	case v := <-e.ch:
		return v, true
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}

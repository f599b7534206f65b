package observable

import (
	"context"
	"sync"
)

// Value is a hot, always-available piece of state. Watchers receive the current
// value on subscribe and then the latest value, never out of order; a slow
// watcher may miss intermediate values.
type Value[T any] struct {
	mu   sync.Mutex
	v    T
	subs map[*Subscription[T]]struct{}
}

func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{v: initial, subs: make(map[*Subscription[T]]struct{})}
}

func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.v
}

func (v *Value[T]) Set(x T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.setLocked(x)
}

// Update applies fn atomically and returns the stored result.
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	next := fn(v.v)
	v.setLocked(next)
	return next
}

func (v *Value[T]) setLocked(x T) {
	v.v = x
	for sub := range v.subs {
		sub.offer(x)
	}
}

// Watch subscribes to changes until ctx is done or the subscription is closed.
func (v *Value[T]) Watch(ctx context.Context) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	sub := newSubscription[T](cancel)

	v.mu.Lock()
	sub.offer(v.v)
	v.subs[sub] = struct{}{}
	v.mu.Unlock()

	go func() {
		<-ctx.Done()
		v.mu.Lock()
		delete(v.subs, sub)
		v.mu.Unlock()
		sub.terminate(nil)
	}()
	return sub
}

// Stream exposes the value as an infinite cold stream.
func (v *Value[T]) Stream() Stream[T] {
	return NewStream(func(ctx context.Context, emit func(T) bool) error {
		sub := v.Watch(ctx)
		defer sub.Close()
		for x := range sub.C() {
			if !emit(x) {
				return nil
			}
		}
		return nil
	})
}

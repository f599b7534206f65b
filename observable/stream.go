// Package observable holds the push-based primitives the feed core is built on:
// cold restartable streams, hot state values, one-shot event queues and a
// ref-counted multicast hub.
package observable

import (
	"context"
	"errors"
	"sync"
)

// ErrEmpty is returned by First when a stream ends without emitting.
var ErrEmpty = errors.New("observable: stream completed without a value")

// Producer pushes values through emit until ctx is done or it fails. emit
// reports false once nobody is listening any more; the producer should return then.
type Producer[T any] func(ctx context.Context, emit func(T) bool) error

// Stream is a cold sequence: every Subscribe runs its own producer, so a stream
// can be subscribed again after it failed or was released.
type Stream[T any] struct {
	produce Producer[T]
}

func NewStream[T any](p Producer[T]) Stream[T] {
	return Stream[T]{produce: p}
}

// Subscribe starts the producer on its own goroutine. The subscription ends when
// ctx is cancelled, Close is called or the producer returns.
func (s Stream[T]) Subscribe(ctx context.Context) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	sub := newSubscription[T](cancel)
	go func() {
		err := s.produce(ctx, func(v T) bool {
			if ctx.Err() != nil {
				return false
			}
			return sub.offer(v)
		})
		if ctx.Err() != nil {
			// released by the subscriber, not a failure
			err = nil
		}
		sub.terminate(err)
	}()
	return sub
}

// First subscribes, waits for the first value and releases the subscription.
func (s Stream[T]) First(ctx context.Context) (T, error) {
	sub := s.Subscribe(ctx)
	defer sub.Close()

	var zero T
	select {
	case v, ok := <-sub.C():
		if !ok {
			if err := sub.Err(); err != nil {
				return zero, err
			}
			return zero, ErrEmpty
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Map derives a stream whose values are fn applied to the values of s.
func Map[T, R any](s Stream[T], fn func(T) R) Stream[R] {
	return NewStream(func(ctx context.Context, emit func(R) bool) error {
		sub := s.Subscribe(ctx)
		defer sub.Close()
		for v := range sub.C() {
			if !emit(fn(v)) {
				return nil
			}
		}
		return sub.Err()
	})
}

// MapErr rewrites the terminal error of s, leaving values untouched.
func MapErr[T any](s Stream[T], fn func(error) error) Stream[T] {
	return NewStream(func(ctx context.Context, emit func(T) bool) error {
		sub := s.Subscribe(ctx)
		defer sub.Close()
		for v := range sub.C() {
			if !emit(v) {
				return nil
			}
		}
		if err := sub.Err(); err != nil {
			return fn(err)
		}
		return nil
	})
}

// Subscription is one observer's view of a stream. Values are conflated: at most
// one undelivered value is kept and a newer value replaces it, so a slow reader
// always sees the latest snapshot and never a reordered one.
type Subscription[T any] struct {
	ch     chan T
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	err    error
}

func newSubscription[T any](cancel context.CancelFunc) *Subscription[T] {
	return &Subscription[T]{
		ch:     make(chan T, 1),
		cancel: cancel,
	}
}

// C delivers values. It is closed when the subscription ends; check Err afterwards.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Err returns the terminal error, nil for a normal end or a release.
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription[T]) Close() {
	s.cancel()
}

func (s *Subscription[T]) offer(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- v:
	default:
		select {
		case <-s.ch:
		default:
		}
		s.ch <- v
	}
	return true
}

func (s *Subscription[T]) terminate(err error) {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.err = err
		close(s.ch)
	}
	s.mu.Unlock()
	s.cancel()
}

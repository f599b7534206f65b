package observable

import (
	"context"
	"sync"
)

// Shared multicasts one upstream subscription to any number of subscribers.
// The upstream starts with the first subscriber, the latest value is replayed to
// late subscribers, and the upstream is released as soon as the last subscriber
// leaves. An upstream failure ends every current subscriber with that error; the
// next Subscribe starts a fresh upstream.
type Shared[T any] struct {
	source Stream[T]
	onIdle func()

	mu        sync.Mutex
	upstream  *Subscription[T]
	subs      map[*Subscription[T]]struct{}
	latest    T
	hasLatest bool
}

// NewShared wraps source. onIdle, when non-nil, runs each time the hub drops its
// upstream because nobody is subscribed any more or the upstream ended.
func NewShared[T any](source Stream[T], onIdle func()) *Shared[T] {
	return &Shared[T]{
		source: source,
		onIdle: onIdle,
		subs:   make(map[*Subscription[T]]struct{}),
	}
}

func (s *Shared[T]) Subscribe(ctx context.Context) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	sub := newSubscription[T](cancel)

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	if s.hasLatest {
		sub.offer(s.latest)
	}
	if s.upstream == nil {
		// upstream lifetime is owned by the hub, not by the first subscriber
		up := s.source.Subscribe(context.Background())
		s.upstream = up
		go s.pump(up)
	}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.remove(sub)
	}()
	return sub
}

// Stream exposes the hub as a Stream so callers can treat it like any other source.
func (s *Shared[T]) Stream() Stream[T] {
	return NewStream(func(ctx context.Context, emit func(T) bool) error {
		sub := s.Subscribe(ctx)
		defer sub.Close()
		for v := range sub.C() {
			if !emit(v) {
				return nil
			}
		}
		return sub.Err()
	})
}

// Subscribers returns the number of attached subscribers.
func (s *Shared[T]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Active reports whether an upstream subscription is currently held.
func (s *Shared[T]) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upstream != nil
}

func (s *Shared[T]) pump(up *Subscription[T]) {
	for v := range up.C() {
		s.mu.Lock()
		if s.upstream != up {
			s.mu.Unlock()
			return
		}
		s.latest = v
		s.hasLatest = true
		for sub := range s.subs {
			sub.offer(v)
		}
		s.mu.Unlock()
	}

	err := up.Err()
	s.mu.Lock()
	if s.upstream != up {
		s.mu.Unlock()
		return
	}
	ended := s.subs
	s.subs = make(map[*Subscription[T]]struct{})
	s.resetLocked()
	s.mu.Unlock()

	for sub := range ended {
		sub.terminate(err)
	}
	if s.onIdle != nil {
		s.onIdle()
	}
}

func (s *Shared[T]) remove(sub *Subscription[T]) {
	s.mu.Lock()
	if _, ok := s.subs[sub]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.subs, sub)
	idle := len(s.subs) == 0 && s.upstream != nil
	if idle {
		s.upstream.Close()
		s.resetLocked()
	}
	s.mu.Unlock()

	sub.terminate(nil)
	if idle && s.onIdle != nil {
		s.onIdle()
	}
}

func (s *Shared[T]) resetLocked() {
	var zero T
	s.upstream = nil
	s.latest = zero
	s.hasLatest = false
}

// Package viewmodel holds one state-holder per screen. Each exposes observable
// state and one-shot events, forwards intents to the repository or the adapters,
// and runs its asynchronous work inside its own Scope.
package viewmodel

import (
	"context"
	"sync"

	"github.com/cppla/hexfeed/models"
	"github.com/cppla/hexfeed/observable"
)

// PostStore is what the state-holders need from the repository.
type PostStore interface {
	Feed() observable.Stream[[]models.Post]
	Post(id string) observable.Stream[*models.Post]
	SubmitPost(ctx context.Context, post models.Post) error
	SubmitComment(ctx context.Context, postID string, comment models.Comment) error
	DeletePost(ctx context.Context, id string) error
	DeleteComment(ctx context.Context, postID, commentID string) error
}

// Scope owns the goroutines of one state-holder: short tasks started with Go and
// long-lived watchers started with Watch. Closing it cancels their context;
// work in flight is not guaranteed to finish.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	tasks  sync.WaitGroup
	all    sync.WaitGroup
}

func NewScope(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel}
}

func (s *Scope) Context() context.Context {
	return s.ctx
}

// Go runs the task fn on a new goroutine. It reports false, without running fn,
// once the scope is closed.
func (s *Scope) Go(fn func(ctx context.Context)) bool {
	return s.start(fn, true)
}

// Watch runs fn on a new goroutine that lives until the scope closes.
func (s *Scope) Watch(fn func(ctx context.Context)) bool {
	return s.start(fn, false)
}

func (s *Scope) start(fn func(ctx context.Context), task bool) bool {
	s.mu.Lock()
	if s.closed || s.ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	s.all.Add(1)
	if task {
		s.tasks.Add(1)
	}
	s.mu.Unlock()

	go func() {
		defer s.all.Done()
		if task {
			defer s.tasks.Done()
		}
		fn(s.ctx)
	}()
	return true
}

// Wait blocks until every task started so far has returned. Watchers are not waited for.
func (s *Scope) Wait() {
	s.tasks.Wait()
}

func (s *Scope) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.all.Wait()
}

package repository

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"github.com/cppla/hexfeed/models"
	"github.com/cppla/hexfeed/observable"
)

// fakeGateway serves streams from values the test controls and records writes
// through testify's mock.
type fakeGateway struct {
	mock.Mock

	feed     *observable.Value[[]models.Post]
	feedFail chan error
	feedSubs atomic.Int32
	feedLive atomic.Int32

	mu       sync.Mutex
	post     map[string]*observable.Value[*models.Post]
	postSubs map[string]int
	postLive map[string]int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		feed:     observable.NewValue[[]models.Post](nil),
		feedFail: make(chan error, 1),
		post:     make(map[string]*observable.Value[*models.Post]),
		postSubs: make(map[string]int),
		postLive: make(map[string]int),
	}
}

func (f *fakeGateway) ObservePosts() observable.Stream[[]models.Post] {
	return observable.NewStream(func(ctx context.Context, emit func([]models.Post) bool) error {
		f.feedSubs.Add(1)
		f.feedLive.Add(1)
		defer f.feedLive.Add(-1)

		sub := f.feed.Watch(ctx)
		defer sub.Close()
		for {
			select {
			case v, ok := <-sub.C():
				if !ok {
					return nil
				}
				if !emit(v) {
					return nil
				}
			case err := <-f.feedFail:
				return err
			}
		}
	})
}

func (f *fakeGateway) postValue(id string) *observable.Value[*models.Post] {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.post[id]
	if !ok {
		v = observable.NewValue[*models.Post](nil)
		f.post[id] = v
	}
	return v
}

func (f *fakeGateway) postCounts(id string) (subs, live int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.postSubs[id], f.postLive[id]
}

func (f *fakeGateway) ObservePost(id string) observable.Stream[*models.Post] {
	return observable.NewStream(func(ctx context.Context, emit func(*models.Post) bool) error {
		f.mu.Lock()
		f.postSubs[id]++
		f.postLive[id]++
		f.mu.Unlock()
		defer func() {
			f.mu.Lock()
			f.postLive[id]--
			f.mu.Unlock()
		}()

		sub := f.postValue(id).Watch(ctx)
		defer sub.Close()
		for v := range sub.C() {
			if !emit(v) {
				return nil
			}
		}
		return nil
	})
}

func (f *fakeGateway) CreatePost(ctx context.Context, post models.Post) error {
	return f.Called(ctx, post).Error(0)
}

func (f *fakeGateway) CreateComment(ctx context.Context, postID string, comment models.Comment) error {
	return f.Called(ctx, postID, comment).Error(0)
}

func (f *fakeGateway) DeletePost(ctx context.Context, id string) error {
	return f.Called(ctx, id).Error(0)
}

func (f *fakeGateway) DeleteComment(ctx context.Context, postID, commentID string) error {
	return f.Called(ctx, postID, commentID).Error(0)
}

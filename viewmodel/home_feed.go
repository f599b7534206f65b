package viewmodel

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/cppla/hexfeed/models"
	"github.com/cppla/hexfeed/observable"
	"github.com/cppla/hexfeed/utils"
)

// HomeFeed is the state-holder of the feed list.
type HomeFeed struct {
	store  PostStore
	logger *zap.Logger
	scope  *Scope

	posts       *observable.Value[[]models.Post]
	streamError *observable.Value[string]

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewHomeFeed(parent context.Context, store PostStore, logger *zap.Logger) *HomeFeed {
	h := &HomeFeed{
		store:       store,
		logger:      utils.OrNop(logger),
		scope:       NewScope(parent),
		posts:       observable.NewValue[[]models.Post](nil),
		streamError: observable.NewValue(""),
	}
	h.Refresh()
	return h
}

func (h *HomeFeed) Posts() *observable.Value[[]models.Post] { return h.posts }

// StreamError holds the message of the last feed failure, "" while the feed is live.
func (h *HomeFeed) StreamError() *observable.Value[string] { return h.streamError }

// Refresh drops the current feed subscription and subscribes again. It is the
// way to recover after a stream failure.
func (h *HomeFeed) Refresh() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
	}
	ctx, cancel := context.WithCancel(h.scope.Context())
	h.cancel = cancel

	h.scope.Watch(func(context.Context) {
		sub := h.store.Feed().Subscribe(ctx)
		defer sub.Close()
		for posts := range sub.C() {
			h.posts.Set(posts)
			h.streamError.Set("")
		}
		if err := sub.Err(); err != nil {
			h.logger.Debug("feed stream ended", zap.Error(err))
			h.streamError.Set(models.Message(err, "Unable to load posts"))
		}
	})
}

func (h *HomeFeed) Close() { h.scope.Close() }

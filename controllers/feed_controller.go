package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/hexfeed/utils"
	"github.com/cppla/hexfeed/viewmodel"
)

// FeedController serves the home feed.
type FeedController struct {
	base   context.Context
	store  viewmodel.PostStore
	logger *zap.Logger
}

func NewFeedController(base context.Context, store viewmodel.PostStore, logger *zap.Logger) *FeedController {
	return &FeedController{base: base, store: store, logger: utils.OrNop(logger)}
}

// ListFeed returns the current feed snapshot, newest first.
func (f *FeedController) ListFeed(ctx *gin.Context) {
	posts, err := f.store.Feed().First(ctx.Request.Context())
	if err != nil {
		f.logger.Warn("feed snapshot failed", zap.Error(err))
		utils.ErrorFrom(ctx, err, "Unable to load posts")
		return
	}
	utils.Success(ctx, gin.H{"items": posts})
}

// StreamFeed pushes a "feed" event with the full list after every change and an
// "error" event when the feed fails, after which the response ends and the
// client is expected to reconnect.
func (f *FeedController) StreamFeed(ctx *gin.Context) {
	reqCtx, cancel := requestContext(f.base, ctx)
	defer cancel()

	home := viewmodel.NewHomeFeed(reqCtx, f.store, f.logger)
	defer home.Close()
	posts := home.Posts().Watch(reqCtx)
	defer posts.Close()
	failures := home.StreamError().Watch(reqCtx)
	defer failures.Close()

	prepareStream(ctx)
	ctx.Status(http.StatusOK)
	ctx.Stream(func(w io.Writer) bool {
		select {
		case list, ok := <-posts.C():
			if !ok {
				return false
			}
			if list != nil {
				ctx.SSEvent("feed", list)
			}
			return true
		case msg, ok := <-failures.C():
			if !ok {
				return false
			}
			if msg == "" {
				return true
			}
			ctx.SSEvent("error", gin.H{"message": msg})
			return false
		case <-reqCtx.Done():
			return false
		}
	})
}

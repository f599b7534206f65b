package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/hexfeed/gateway"
	"github.com/cppla/hexfeed/identity"
	"github.com/cppla/hexfeed/models"
	"github.com/cppla/hexfeed/storage"
	"github.com/cppla/hexfeed/utils"
	"github.com/cppla/hexfeed/viewmodel"
)

// PostController manages posts and their comments.
type PostController struct {
	base     context.Context
	store    viewmodel.PostStore
	uploader storage.Uploader
	provider identity.Provider
	clock    utils.Clock
	logger   *zap.Logger
}

// NewPostController creates a new PostController instance.
func NewPostController(base context.Context, store viewmodel.PostStore, uploader storage.Uploader, provider identity.Provider, clock utils.Clock, logger *zap.Logger) *PostController {
	return &PostController{
		base:     base,
		store:    store,
		uploader: uploader,
		provider: provider,
		clock:    clock,
		logger:   utils.OrNop(logger),
	}
}

// GetPost returns one post with its comments.
func (p *PostController) GetPost(ctx *gin.Context) {
	post, err := p.store.Post(param(ctx, "id")).First(ctx.Request.Context())
	if err != nil {
		utils.ErrorFrom(ctx, err, "Unable to load post")
		return
	}
	if post == nil {
		utils.Error(ctx, http.StatusNotFound, 40420, "post not found")
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// StreamPost pushes a "post" event after every change of the post or its
// comments. The payload is null while the post does not exist.
func (p *PostController) StreamPost(ctx *gin.Context) {
	reqCtx, cancel := requestContext(p.base, ctx)
	defer cancel()

	sub := p.store.Post(param(ctx, "id")).Subscribe(reqCtx)
	defer sub.Close()

	prepareStream(ctx)
	ctx.Status(http.StatusOK)
	ctx.Stream(func(w io.Writer) bool {
		select {
		case post, ok := <-sub.C():
			if !ok {
				if err := sub.Err(); err != nil {
					ctx.SSEvent("error", gin.H{"message": models.Message(err, "Unable to load post")})
				}
				return false
			}
			ctx.SSEvent("post", post)
			return true
		case <-reqCtx.Done():
			return false
		}
	})
}

// CreatePost publishes a post from a multipart form with the fields title,
// description and an optional photo file.
func (p *PostController) CreatePost(ctx *gin.Context) {
	compose := viewmodel.NewCompose(ctx.Request.Context(), p.store, p.uploader, p.provider, p.clock, p.logger)
	defer compose.Close()

	compose.OnTitleChanged(ctx.PostForm("title"))
	compose.OnDescriptionChanged(ctx.PostForm("description"))
	if fh, err := ctx.FormFile("photo"); err == nil {
		compose.OnMediaSelected(storage.MultipartMedia{Header: fh}, fh.Header.Get("Content-Type"))
	} else if !errors.Is(err, http.ErrMissingFile) {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid multipart form")
		return
	}

	if err := compose.Submit(); err != nil {
		utils.ErrorFrom(ctx, err, "Unable to save post")
		return
	}
	compose.Wait()

	if err := compose.SaveError(); err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			utils.Error(ctx, http.StatusRequestEntityTooLarge, 41300, err.Error())
			return
		}
		utils.ErrorFrom(ctx, err, compose.SaveErrorMessage().Get())
		return
	}
	utils.Success(ctx, gin.H{"id": compose.Draft().Get().ID})
}

// CreateComment adds a comment to the post.
func (p *PostController) CreateComment(ctx *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	postID := param(ctx, "id")
	add := viewmodel.NewAddComment(ctx.Request.Context(), postID, p.store, p.provider, p.clock, p.logger)
	defer add.Close()

	add.OnCommentChanged(req.Text)
	if err := add.Submit(); err != nil {
		utils.ErrorFrom(ctx, err, "Unable to save comment")
		return
	}
	add.Wait()

	if err := add.SaveError(); err != nil {
		if errors.Is(err, gateway.ErrPostNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40420, "post not found")
			return
		}
		utils.ErrorFrom(ctx, err, add.ErrorMessage().Get())
		return
	}
	utils.Success(ctx, gin.H{"text": strings.TrimSpace(add.Text().Get())})
}

// DeletePost removes the post if the signed-in user wrote it.
func (p *PostController) DeletePost(ctx *gin.Context) {
	detail, ok := p.loadDetail(ctx)
	if !ok {
		return
	}
	defer detail.Close()

	detail.DeletePost()
	p.respondDetailEvent(ctx, detail)
}

// DeleteComment removes one comment if the signed-in user wrote it.
func (p *PostController) DeleteComment(ctx *gin.Context) {
	detail, ok := p.loadDetail(ctx)
	if !ok {
		return
	}
	defer detail.Close()

	commentID := param(ctx, "commentId")
	var target *models.Comment
	for _, c := range detail.Post().Get().Comments {
		if c.ID == commentID {
			c := c
			target = &c
			break
		}
	}
	if target == nil {
		utils.Error(ctx, http.StatusNotFound, 40421, "comment not found")
		return
	}

	detail.DeleteComment(*target)
	p.respondDetailEvent(ctx, detail)
}

func (p *PostController) loadDetail(ctx *gin.Context) (*viewmodel.PostDetail, bool) {
	detail := viewmodel.NewPostDetail(ctx.Request.Context(), param(ctx, "id"), p.store, p.provider, p.logger)
	if err := detail.Ready(ctx.Request.Context()); err != nil {
		detail.Close()
		utils.ErrorFrom(ctx, err, "Unable to load post")
		return nil, false
	}
	if msg := detail.StreamError().Get(); msg != "" {
		detail.Close()
		utils.Error(ctx, http.StatusBadGateway, 50220, msg)
		return nil, false
	}
	if detail.Post().Get() == nil {
		detail.Close()
		utils.Error(ctx, http.StatusNotFound, 40420, "post not found")
		return nil, false
	}
	return detail, true
}

func (p *PostController) respondDetailEvent(ctx *gin.Context, detail *viewmodel.PostDetail) {
	ev, ok := detail.Events().Next(ctx.Request.Context())
	if !ok {
		utils.Error(ctx, http.StatusServiceUnavailable, 50300, "request cancelled")
		return
	}
	switch ev.Kind {
	case viewmodel.EventPostDeleted:
		utils.Success(ctx, gin.H{"deleted": "post"})
	case viewmodel.EventCommentDeleted:
		utils.Success(ctx, gin.H{"deleted": "comment", "comment_id": ev.CommentID})
	default:
		utils.ErrorFrom(ctx, ev.Err, ev.Message)
	}
}

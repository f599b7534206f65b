package viewmodel

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/cppla/hexfeed/identity"
	"github.com/cppla/hexfeed/models"
	"github.com/cppla/hexfeed/observable"
	"github.com/cppla/hexfeed/utils"
)

// DetailEventKind distinguishes the one-shot outcomes of the post detail screen.
type DetailEventKind int

const (
	EventError DetailEventKind = iota
	EventPostDeleted
	EventCommentDeleted
)

// DetailEvent is emitted once per delete request.
type DetailEvent struct {
	Kind      DetailEventKind
	Message   string
	Err       error
	CommentID string
}

// CanDelete reports whether uid may delete an entity written by author.
// An empty uid means nobody is signed in.
func CanDelete(author *models.User, uid string) bool {
	return uid != "" && author != nil && author.ID == uid
}

// PostDetail is the state-holder of one post with its comments. Ownership is
// checked against the identity current when a delete is requested, never
// against the one seen when the screen was rendered.
type PostDetail struct {
	postID   string
	store    PostStore
	provider identity.Provider
	logger   *zap.Logger
	scope    *Scope

	post        *observable.Value[*models.Post]
	streamError *observable.Value[string]
	events      *observable.Events[DetailEvent]

	ready     chan struct{}
	readyOnce sync.Once
}

func NewPostDetail(parent context.Context, postID string, store PostStore, provider identity.Provider, logger *zap.Logger) *PostDetail {
	d := &PostDetail{
		postID:      postID,
		store:       store,
		provider:    provider,
		logger:      utils.OrNop(logger),
		scope:       NewScope(parent),
		post:        observable.NewValue[*models.Post](nil),
		streamError: observable.NewValue(""),
		events:      observable.NewEvents[DetailEvent](),
		ready:       make(chan struct{}),
	}
	d.scope.Watch(func(ctx context.Context) {
		defer d.markReady()
		sub := store.Post(postID).Subscribe(ctx)
		defer sub.Close()
		for p := range sub.C() {
			d.post.Set(p)
			d.markReady()
		}
		if err := sub.Err(); err != nil {
			d.streamError.Set(models.Message(err, "Unable to load post"))
		}
	})
	return d
}

func (d *PostDetail) markReady() {
	d.readyOnce.Do(func() { close(d.ready) })
}

// Ready waits for the first snapshot of the post, or for the stream to end.
func (d *PostDetail) Ready(ctx context.Context) error {
	select {
	case <-d.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *PostDetail) Post() *observable.Value[*models.Post]  { return d.post }
func (d *PostDetail) StreamError() *observable.Value[string] { return d.streamError }
func (d *PostDetail) Events() *observable.Events[DetailEvent] { return d.events }

// CanDeletePost decides the delete affordance for the post as currently rendered.
func (d *PostDetail) CanDeletePost() bool {
	p := d.post.Get()
	if p == nil {
		return false
	}
	return CanDelete(p.Author, identity.CurrentUID(d.provider))
}

func (d *PostDetail) CanDeleteComment(c models.Comment) bool {
	return CanDelete(c.Author, identity.CurrentUID(d.provider))
}

// DeletePost removes the post if the current identity wrote it. The outcome is
// reported through Events: EventPostDeleted, or EventError.
func (d *PostDetail) DeletePost() {
	p := d.post.Get()
	var author *models.User
	if p != nil {
		author = p.Author
	}
	if !CanDelete(author, identity.CurrentUID(d.provider)) {
		d.denied("Only the author can delete this post")
		return
	}
	d.run(func(ctx context.Context) {
		if err := d.store.DeletePost(ctx, d.postID); err != nil {
			d.failed(err, "Unable to delete post")
			return
		}
		d.events.Emit(DetailEvent{Kind: EventPostDeleted})
	})
}

// DeleteComment removes comment if the current identity wrote it.
func (d *PostDetail) DeleteComment(comment models.Comment) {
	if !CanDelete(comment.Author, identity.CurrentUID(d.provider)) {
		d.denied("Only the author can delete this comment")
		return
	}
	d.run(func(ctx context.Context) {
		if err := d.store.DeleteComment(ctx, d.postID, comment.ID); err != nil {
			d.failed(err, "Unable to delete comment")
			return
		}
		d.events.Emit(DetailEvent{Kind: EventCommentDeleted, CommentID: comment.ID})
	})
}

func (d *PostDetail) run(fn func(ctx context.Context)) {
	if !d.scope.Go(fn) {
		d.failed(context.Canceled, "Screen closed")
	}
}

func (d *PostDetail) denied(msg string) {
	d.events.Emit(DetailEvent{Kind: EventError, Message: msg, Err: &models.AuthorizationError{Message: msg}})
}

func (d *PostDetail) failed(err error, fallback string) {
	d.logger.Debug("delete failed", zap.String("post_id", d.postID), zap.Error(err))
	d.events.Emit(DetailEvent{Kind: EventError, Message: models.Message(err, fallback), Err: err})
}

// Wait blocks until the delete requests issued so far have finished.
func (d *PostDetail) Wait() { d.scope.Wait() }

func (d *PostDetail) Close() { d.scope.Close() }

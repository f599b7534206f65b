// Package repository turns the gateway's live queries into shared, ordered
// streams and forwards mutations to it.
package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/cppla/hexfeed/gateway"
	"github.com/cppla/hexfeed/models"
	"github.com/cppla/hexfeed/observable"
	"github.com/cppla/hexfeed/utils"
)

// PostRepository is the single source of truth for posts and comments. Every
// distinct stream (the feed, or one post) holds at most one gateway subscription
// no matter how many observers it has; the subscription is dropped when the last
// observer leaves. Snapshots handed out are shared between observers and must be
// treated as read-only.
type PostRepository struct {
	gateway gateway.Gateway
	logger  *zap.Logger

	mu    sync.Mutex
	feed  *observable.Shared[[]models.Post]
	posts map[string]*observable.Shared[*models.Post]

	writes singleflight.Group
}

func NewPostRepository(gw gateway.Gateway, logger *zap.Logger) *PostRepository {
	r := &PostRepository{
		gateway: gw,
		logger:  utils.OrNop(logger),
		posts:   make(map[string]*observable.Shared[*models.Post]),
	}
	feed := observable.MapErr(observable.Map(gw.ObservePosts(), SortFeed), streamError("feed"))
	r.feed = observable.NewShared(logged(r.logger, "feed", feed), nil)
	return r
}

// Feed emits the full post list, newest first, on subscribe and after every change.
// Posts with equal timestamps are ordered by id ascending.
func (r *PostRepository) Feed() observable.Stream[[]models.Post] {
	return observable.NewStream(func(ctx context.Context, emit func([]models.Post) bool) error {
		r.mu.Lock()
		sub := r.feed.Subscribe(ctx)
		r.mu.Unlock()
		return forward(sub, emit)
	})
}

// Post emits the post with id, or nil while it does not exist.
func (r *PostRepository) Post(id string) observable.Stream[*models.Post] {
	return observable.NewStream(func(ctx context.Context, emit func(*models.Post) bool) error {
		r.mu.Lock()
		hub, ok := r.posts[id]
		if !ok {
			hub = r.newPostHub(id)
			r.posts[id] = hub
		}
		sub := hub.Subscribe(ctx)
		r.mu.Unlock()
		return forward(sub, emit)
	})
}

func (r *PostRepository) newPostHub(id string) *observable.Shared[*models.Post] {
	name := "post:" + id
	src := observable.MapErr(observable.Map(r.gateway.ObservePost(id), sortComments), streamError(name))

	var hub *observable.Shared[*models.Post]
	hub = observable.NewShared(logged(r.logger, name, src), func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		// a new observer may have attached between the hub going idle and this callback
		if r.posts[id] == hub && hub.Subscribers() == 0 && !hub.Active() {
			delete(r.posts, id)
		}
	})
	return hub
}

// ActivePostStreams returns the number of single-post streams currently tracked.
func (r *PostRepository) ActivePostStreams() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.posts)
}

// SubmitPost creates the post, or overwrites the post with the same id.
// Concurrent submissions of the same id and payload share one gateway write.
func (r *PostRepository) SubmitPost(ctx context.Context, post models.Post) error {
	return r.coalesce(ctx, "post:"+post.ID+":"+fingerprint(post), "create post", func(ctx context.Context) error {
		return r.gateway.CreatePost(ctx, post)
	}, zap.String("post_id", post.ID))
}

// SubmitComment creates the comment under postID. Gateway errors such as
// gateway.ErrPostNotFound stay reachable through errors.Is.
func (r *PostRepository) SubmitComment(ctx context.Context, postID string, comment models.Comment) error {
	key := "comment:" + postID + ":" + comment.ID + ":" + fingerprint(comment)
	return r.coalesce(ctx, key, "create comment", func(ctx context.Context) error {
		return r.gateway.CreateComment(ctx, postID, comment)
	}, zap.String("post_id", postID), zap.String("comment_id", comment.ID))
}

// DeletePost forwards the removal. It performs no ownership check.
func (r *PostRepository) DeletePost(ctx context.Context, id string) error {
	return r.coalesce(ctx, "delete-post:"+id, "delete post", func(ctx context.Context) error {
		return r.gateway.DeletePost(ctx, id)
	}, zap.String("post_id", id))
}

// DeleteComment forwards the removal. It performs no ownership check.
func (r *PostRepository) DeleteComment(ctx context.Context, postID, commentID string) error {
	return r.coalesce(ctx, "delete-comment:"+postID+":"+commentID, "delete comment", func(ctx context.Context) error {
		return r.gateway.DeleteComment(ctx, postID, commentID)
	}, zap.String("post_id", postID), zap.String("comment_id", commentID))
}

// coalesce runs write once per key at a time. Callers joining a running write
// share its result; each caller still stops waiting when its own ctx ends.
func (r *PostRepository) coalesce(ctx context.Context, key, op string, write func(context.Context) error, fields ...zap.Field) error {
	detached := context.WithoutCancel(ctx)
	ch := r.writes.DoChan(key, func() (interface{}, error) {
		return nil, write(detached)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			r.logger.Warn(op+" failed", append(fields, zap.Error(res.Err))...)
			return &models.PersistenceError{Op: op, Err: res.Err}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// logged wraps a source with debug logs for its lifecycle and a warning on failure.
func logged[T any](logger *zap.Logger, name string, src observable.Stream[T]) observable.Stream[T] {
	return observable.NewStream(func(ctx context.Context, emit func(T) bool) error {
		logger.Debug("stream started", zap.String("stream", name))
		err := forward(src.Subscribe(ctx), emit)
		if err != nil && ctx.Err() == nil {
			logger.Warn("stream failed", zap.String("stream", name), zap.Error(err))
			return err
		}
		logger.Debug("stream stopped", zap.String("stream", name))
		return err
	})
}

func forward[T any](sub *observable.Subscription[T], emit func(T) bool) error {
	defer sub.Close()
	for v := range sub.C() {
		if !emit(v) {
			return nil
		}
	}
	return sub.Err()
}

func streamError(name string) func(error) error {
	return func(err error) error {
		return &models.StreamError{Stream: name, Err: err}
	}
}

// SortFeed returns the posts newest first, equal timestamps by id ascending.
// The input slice is left untouched.
func SortFeed(posts []models.Post) []models.Post {
	out := make([]models.Post, len(posts))
	copy(out, posts)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortComments(p *models.Post) *models.Post {
	if p == nil || len(p.Comments) < 2 {
		return p
	}
	out := *p
	out.Comments = make([]models.Comment, len(p.Comments))
	copy(out.Comments, p.Comments)
	gateway.SortComments(out.Comments)
	return &out
}

func fingerprint(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

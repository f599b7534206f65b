package gateway

import (
	"context"
	"sort"
	"sync"

	"github.com/cppla/hexfeed/models"
	"github.com/cppla/hexfeed/observable"
)

// MemoryGateway keeps everything in process. It backs the memory store mode and tests.
type MemoryGateway struct {
	notifier Notifier

	mu       sync.RWMutex
	posts    map[string]models.Post
	comments map[string]map[string]models.Comment
}

func NewMemoryGateway(notifier Notifier) *MemoryGateway {
	if notifier == nil {
		notifier = NewLocalNotifier()
	}
	return &MemoryGateway{
		notifier: notifier,
		posts:    make(map[string]models.Post),
		comments: make(map[string]map[string]models.Comment),
	}
}

func (g *MemoryGateway) ObservePosts() observable.Stream[[]models.Post] {
	return liveQuery(g.notifier, anyChange, func(context.Context) ([]models.Post, error) {
		return g.snapshot(), nil
	})
}

func (g *MemoryGateway) ObservePost(id string) observable.Stream[*models.Post] {
	return liveQuery(g.notifier, changeFor(id), func(context.Context) (*models.Post, error) {
		return g.load(id), nil
	})
}

func (g *MemoryGateway) snapshot() []models.Post {
	g.mu.RLock()
	defer g.mu.RUnlock()
	posts := make([]models.Post, 0, len(g.posts))
	for _, p := range g.posts {
		posts = append(posts, p.Clone())
	}
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].Timestamp != posts[j].Timestamp {
			return posts[i].Timestamp > posts[j].Timestamp
		}
		return posts[i].ID < posts[j].ID
	})
	return posts
}

func (g *MemoryGateway) load(id string) *models.Post {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.posts[id]
	if !ok {
		return nil
	}
	out := p.Clone()
	out.Comments = make([]models.Comment, 0, len(g.comments[id]))
	for _, c := range g.comments[id] {
		out.Comments = append(out.Comments, c.Clone())
	}
	SortComments(out.Comments)
	return &out
}

func (g *MemoryGateway) CreatePost(ctx context.Context, post models.Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := post.Clone()
	stored.Comments = nil
	g.mu.Lock()
	g.posts[post.ID] = stored
	g.mu.Unlock()
	return g.notifier.Publish(ctx, Change{Kind: PostSaved, PostID: post.ID})
}

func (g *MemoryGateway) CreateComment(ctx context.Context, postID string, comment models.Comment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	if _, ok := g.posts[postID]; !ok {
		g.mu.Unlock()
		return ErrPostNotFound
	}
	if g.comments[postID] == nil {
		g.comments[postID] = make(map[string]models.Comment)
	}
	g.comments[postID][comment.ID] = comment.Clone()
	g.mu.Unlock()
	return g.notifier.Publish(ctx, Change{Kind: CommentSaved, PostID: postID})
}

func (g *MemoryGateway) DeletePost(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	delete(g.posts, id)
	delete(g.comments, id)
	g.mu.Unlock()
	return g.notifier.Publish(ctx, Change{Kind: PostDeleted, PostID: id})
}

func (g *MemoryGateway) DeleteComment(ctx context.Context, postID, commentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	delete(g.comments[postID], commentID)
	g.mu.Unlock()
	return g.notifier.Publish(ctx, Change{Kind: CommentDeleted, PostID: postID})
}

// Exists reports whether a post with id is stored.
func (g *MemoryGateway) Exists(_ context.Context, id string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.posts[id]
	return ok, nil
}

// Package gateway is the remote data store for posts and comments. Reads are live
// queries: every subscription emits the current snapshot and a fresh one after
// each change published through a Notifier.
package gateway

import (
	"context"
	"errors"
	"sort"

	"github.com/cppla/hexfeed/models"
	"github.com/cppla/hexfeed/observable"
)

var (
	// ErrPostNotFound is returned when a comment targets a post that does not exist.
	ErrPostNotFound = errors.New("post not found")
	// ErrNotifierClosed ends a live query whose change feed went away underneath it.
	ErrNotifierClosed = errors.New("change feed closed")
)

// Gateway is implemented by every post store.
type Gateway interface {
	ObservePosts() observable.Stream[[]models.Post]
	ObservePost(id string) observable.Stream[*models.Post]
	CreatePost(ctx context.Context, post models.Post) error
	CreateComment(ctx context.Context, postID string, comment models.Comment) error
	// DeletePost removes the post and every comment under it.
	DeletePost(ctx context.Context, id string) error
	DeleteComment(ctx context.Context, postID, commentID string) error
}

// SortComments orders comments oldest first, equal timestamps by id.
func SortComments(comments []models.Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		if comments[i].Timestamp != comments[j].Timestamp {
			return comments[i].Timestamp < comments[j].Timestamp
		}
		return comments[i].ID < comments[j].ID
	})
}

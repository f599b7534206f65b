package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/hexfeed/models"
)

func newTestGormGateway(t *testing.T) *GormGateway {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection so every query sees the same in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(Tables()...))
	return NewGormGateway(db, NewLocalNotifier(), nil)
}

func samplePost(id string, ts int64, authorID string) models.Post {
	return models.Post{
		ID:          id,
		Title:       gofakeit.Sentence(4),
		Description: strPtr(gofakeit.Paragraph(1, 2, 8, " ")),
		Timestamp:   ts,
		Author:      &models.User{ID: authorID, Firstname: gofakeit.FirstName()},
	}
}

func TestGormGateway_CreatePostRoundTrip(t *testing.T) {
	g := newTestGormGateway(t)
	ctx := context.Background()

	post := samplePost("p1", 1000, "u1")
	post.PhotoURL = strPtr("/static/uploads/posts/p1/x.jpg")
	require.NoError(t, g.CreatePost(ctx, post))

	got, err := g.ObservePost("p1").First(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, post.Title, got.Title)
	assert.Equal(t, *post.Description, *got.Description)
	assert.Equal(t, *post.PhotoURL, *got.PhotoURL)
	assert.Equal(t, int64(1000), got.Timestamp)
	assert.Equal(t, "u1", got.AuthorID())
	assert.Empty(t, got.Comments)
}

func TestGormGateway_CreatePostOverwritesSameID(t *testing.T) {
	g := newTestGormGateway(t)
	ctx := context.Background()

	first := samplePost("p1", 1000, "u1")
	require.NoError(t, g.CreatePost(ctx, first))
	second := first
	second.Title = "rewritten"
	require.NoError(t, g.CreatePost(ctx, second))

	posts, err := g.ObservePosts().First(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "rewritten", posts[0].Title)
}

func TestGormGateway_MissingPostIsNil(t *testing.T) {
	g := newTestGormGateway(t)

	got, err := g.ObservePost("nope").First(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGormGateway_CommentsAscending(t *testing.T) {
	g := newTestGormGateway(t)
	ctx := context.Background()
	require.NoError(t, g.CreatePost(ctx, samplePost("p1", 1000, "u1")))

	require.NoError(t, g.CreateComment(ctx, "p1", models.Comment{ID: "c3", Text: "late", Timestamp: 30}))
	require.NoError(t, g.CreateComment(ctx, "p1", models.Comment{ID: "c1", Text: "early", Timestamp: 10}))
	require.NoError(t, g.CreateComment(ctx, "p1", models.Comment{ID: "c2", Text: "middle", Timestamp: 20}))

	got, err := g.ObservePost("p1").First(ctx)
	require.NoError(t, err)
	require.Len(t, got.Comments, 3)
	assert.Equal(t, []string{"c1", "c2", "c3"}, []string{got.Comments[0].ID, got.Comments[1].ID, got.Comments[2].ID})
}

func TestGormGateway_CommentOnMissingPost(t *testing.T) {
	g := newTestGormGateway(t)

	err := g.CreateComment(context.Background(), "ghost", models.Comment{ID: "c1", Text: "hi", Timestamp: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPostNotFound))
}

func TestGormGateway_DeletePostCascades(t *testing.T) {
	g := newTestGormGateway(t)
	ctx := context.Background()
	require.NoError(t, g.CreatePost(ctx, samplePost("p1", 1000, "u1")))
	require.NoError(t, g.CreateComment(ctx, "p1", models.Comment{ID: "c1", Text: "hi", Timestamp: 1}))

	require.NoError(t, g.DeletePost(ctx, "p1"))

	var count int64
	require.NoError(t, g.db.Model(&CommentRecord{}).Where("post_id = ?", "p1").Count(&count).Error)
	assert.Zero(t, count)
	exists, err := g.Exists(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGormGateway_LiveFeedFollowsWrites(t *testing.T) {
	g := newTestGormGateway(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := g.ObservePosts().Subscribe(ctx)
	defer sub.Close()
	assert.Empty(t, next(t, sub))

	require.NoError(t, g.CreatePost(ctx, samplePost("p1", 1000, "u1")))
	posts := nextMatching(t, sub, func(p []models.Post) bool { return len(p) == 1 })
	assert.Equal(t, "p1", posts[0].ID)

	require.NoError(t, g.DeletePost(ctx, "p1"))
	nextMatching(t, sub, func(p []models.Post) bool { return len(p) == 0 })
}

func TestGormGateway_LivePostFollowsComments(t *testing.T) {
	g := newTestGormGateway(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, g.CreatePost(ctx, samplePost("p1", 1000, "u1")))

	sub := g.ObservePost("p1").Subscribe(ctx)
	defer sub.Close()
	require.NotNil(t, next(t, sub))

	require.NoError(t, g.CreateComment(ctx, "p1", models.Comment{ID: "c1", Text: "hi", Timestamp: 5}))
	got := nextMatching(t, sub, func(p *models.Post) bool { return p != nil && len(p.Comments) == 1 })
	assert.Equal(t, "hi", got.Comments[0].Text)

	require.NoError(t, g.DeleteComment(ctx, "p1", "c1"))
	nextMatching(t, sub, func(p *models.Post) bool { return p != nil && len(p.Comments) == 0 })

	require.NoError(t, g.DeletePost(ctx, "p1"))
	nextMatching(t, sub, func(p *models.Post) bool { return p == nil })
}

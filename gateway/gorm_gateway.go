package gateway

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/hexfeed/models"
	"github.com/cppla/hexfeed/observable"
	"github.com/cppla/hexfeed/utils"
)

// GormGateway stores posts and comments in SQL tables and drives live queries
// from a Notifier.
type GormGateway struct {
	db       *gorm.DB
	notifier Notifier
	logger   *zap.Logger
}

func NewGormGateway(db *gorm.DB, notifier Notifier, logger *zap.Logger) *GormGateway {
	return &GormGateway{db: db, notifier: notifier, logger: utils.OrNop(logger)}
}

func (g *GormGateway) ObservePosts() observable.Stream[[]models.Post] {
	return liveQuery(g.notifier, anyChange, g.listPosts)
}

func (g *GormGateway) ObservePost(id string) observable.Stream[*models.Post] {
	return liveQuery(g.notifier, changeFor(id), func(ctx context.Context) (*models.Post, error) {
		return g.loadPost(ctx, id)
	})
}

func (g *GormGateway) listPosts(ctx context.Context) ([]models.Post, error) {
	var rows []PostRecord
	if err := g.db.WithContext(ctx).Order("timestamp DESC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	posts := make([]models.Post, 0, len(rows))
	for _, r := range rows {
		posts = append(posts, r.toModel())
	}
	return posts, nil
}

func (g *GormGateway) loadPost(ctx context.Context, id string) (*models.Post, error) {
	var row PostRecord
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load post %s: %w", id, err)
	}

	var rows []CommentRecord
	if err := g.db.WithContext(ctx).Where("post_id = ?", id).Order("timestamp ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load comments of %s: %w", id, err)
	}
	post := row.toModel()
	post.Comments = make([]models.Comment, 0, len(rows))
	for _, r := range rows {
		post.Comments = append(post.Comments, r.toModel())
	}
	return &post, nil
}

// CreatePost inserts the post or overwrites the row with the same id. Existing
// comments are kept.
func (g *GormGateway) CreatePost(ctx context.Context, post models.Post) error {
	rec := toPostRecord(post)
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save post %s: %w", post.ID, err)
	}
	g.publish(ctx, Change{Kind: PostSaved, PostID: post.ID})
	return nil
}

func (g *GormGateway) CreateComment(ctx context.Context, postID string, comment models.Comment) error {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&PostRecord{}).Where("id = ?", postID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrPostNotFound
		}
		rec := toCommentRecord(postID, comment)
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	})
	if err != nil {
		return fmt.Errorf("save comment %s on %s: %w", comment.ID, postID, err)
	}
	g.publish(ctx, Change{Kind: CommentSaved, PostID: postID})
	return nil
}

// DeletePost removes the post and its comments in one transaction. Deleting a
// missing post succeeds.
func (g *GormGateway) DeletePost(ctx context.Context, id string) error {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&CommentRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&PostRecord{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete post %s: %w", id, err)
	}
	g.publish(ctx, Change{Kind: PostDeleted, PostID: id})
	return nil
}

func (g *GormGateway) DeleteComment(ctx context.Context, postID, commentID string) error {
	err := g.db.WithContext(ctx).Where("post_id = ? AND id = ?", postID, commentID).Delete(&CommentRecord{}).Error
	if err != nil {
		return fmt.Errorf("delete comment %s on %s: %w", commentID, postID, err)
	}
	g.publish(ctx, Change{Kind: CommentDeleted, PostID: postID})
	return nil
}

// publish is best effort: the write already succeeded, a lost notification only
// delays observers until the next change.
func (g *GormGateway) publish(ctx context.Context, change Change) {
	if err := g.notifier.Publish(ctx, change); err != nil {
		g.logger.Warn("publish change failed",
			zap.String("kind", string(change.Kind)),
			zap.String("post_id", change.PostID),
			zap.Error(err))
	}
}

// Exists reports whether a post with id is stored.
func (g *GormGateway) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := g.db.WithContext(ctx).Model(&PostRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

package gateway

import (
	"github.com/cppla/hexfeed/models"
)

// PostRecord is the posts table row. The author snapshot is flattened into columns.
type PostRecord struct {
	ID              string  `gorm:"primaryKey;size:64"`
	Title           string  `gorm:"size:255;not null"`
	Description     *string `gorm:"type:text"`
	PhotoURL        *string `gorm:"size:1024"`
	Timestamp       int64   `gorm:"index;not null"`
	AuthorID        string  `gorm:"size:128;index"`
	AuthorFirstname string  `gorm:"size:255"`
	AuthorLastname  string  `gorm:"size:255"`
}

func (PostRecord) TableName() string { return "posts" }

// CommentRecord is the comments table row, keyed by post id and comment id.
type CommentRecord struct {
	PostID          string `gorm:"primaryKey;size:64"`
	ID              string `gorm:"primaryKey;size:64"`
	Text            string `gorm:"type:text;not null"`
	Timestamp       int64  `gorm:"index;not null"`
	AuthorID        string `gorm:"size:128;index"`
	AuthorFirstname string `gorm:"size:255"`
	AuthorLastname  string `gorm:"size:255"`
}

func (CommentRecord) TableName() string { return "comments" }

// Tables lists the models the GORM gateway needs migrated.
func Tables() []interface{} {
	return []interface{}{&PostRecord{}, &CommentRecord{}}
}

func toPostRecord(p models.Post) PostRecord {
	rec := PostRecord{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		PhotoURL:    p.PhotoURL,
		Timestamp:   p.Timestamp,
	}
	if p.Author != nil {
		rec.AuthorID = p.Author.ID
		rec.AuthorFirstname = p.Author.Firstname
		rec.AuthorLastname = p.Author.Lastname
	}
	return rec
}

func (r PostRecord) toModel() models.Post {
	p := models.Post{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		PhotoURL:    r.PhotoURL,
		Timestamp:   r.Timestamp,
	}
	if r.AuthorID != "" || r.AuthorFirstname != "" {
		p.Author = &models.User{ID: r.AuthorID, Firstname: r.AuthorFirstname, Lastname: r.AuthorLastname}
	}
	return p
}

func toCommentRecord(postID string, c models.Comment) CommentRecord {
	rec := CommentRecord{
		PostID:    postID,
		ID:        c.ID,
		Text:      c.Text,
		Timestamp: c.Timestamp,
	}
	if c.Author != nil {
		rec.AuthorID = c.Author.ID
		rec.AuthorFirstname = c.Author.Firstname
		rec.AuthorLastname = c.Author.Lastname
	}
	return rec
}

func (r CommentRecord) toModel() models.Comment {
	c := models.Comment{ID: r.ID, Text: r.Text, Timestamp: r.Timestamp}
	if r.AuthorID != "" || r.AuthorFirstname != "" {
		c.Author = &models.User{ID: r.AuthorID, Firstname: r.AuthorFirstname, Lastname: r.AuthorLastname}
	}
	return c
}

package models

// Comment is a reply nested under exactly one post.
type Comment struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	Author    *User  `json:"author"`
}

// AuthorID returns the author's id, or "" when the comment has no author.
func (c Comment) AuthorID() string {
	if c.Author == nil {
		return ""
	}
	return c.Author.ID
}

func (c Comment) Clone() Comment {
	out := c
	if c.Author != nil {
		a := *c.Author
		out.Author = &a
	}
	return out
}

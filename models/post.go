package models

import "strings"

// Post is an immutable snapshot of a feed entry. The id is assigned by the
// composing client and never changes; a post is never edited in place.
type Post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	PhotoURL    *string   `json:"photo_url"`
	Timestamp   int64     `json:"timestamp"` // unix milliseconds, captured at submit time
	Author      *User     `json:"author"`
	Comments    []Comment `json:"comments,omitempty"`
}

// Submittable reports whether the post carries the fields required to be persisted.
func (p Post) Submittable() bool {
	return strings.TrimSpace(p.Title) != ""
}

// AuthorID returns the author's id, or "" when the post has no author.
func (p Post) AuthorID() string {
	if p.Author == nil {
		return ""
	}
	return p.Author.ID
}

// Clone returns a deep copy so snapshots handed to observers never share
// mutable state with the store that produced them.
func (p Post) Clone() Post {
	out := p
	if p.Description != nil {
		d := *p.Description
		out.Description = &d
	}
	if p.PhotoURL != nil {
		u := *p.PhotoURL
		out.PhotoURL = &u
	}
	if p.Author != nil {
		a := *p.Author
		out.Author = &a
	}
	if p.Comments != nil {
		out.Comments = make([]Comment, len(p.Comments))
		for i, c := range p.Comments {
			out.Comments[i] = c.Clone()
		}
	}
	return out
}

package models

import "strings"

// User is the denormalized author snapshot stored inside every post and comment.
// It is copied at creation time, so later profile changes never rewrite authorship.
type User struct {
	ID        string `json:"id"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

// Identity is the authenticated account as reported by the identity provider.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// AuthorName picks the display name, then the email local-part, then "User".
func (i Identity) AuthorName() string {
	if name := strings.TrimSpace(i.DisplayName); name != "" {
		return name
	}
	if at := strings.Index(i.Email, "@"); at > 0 {
		return i.Email[:at]
	} else if i.Email != "" && at < 0 {
		return i.Email
	}
	return "User"
}

// Author builds the snapshot embedded into new posts and comments.
func (i Identity) Author() User {
	return User{ID: i.UID, Firstname: i.AuthorName()}
}

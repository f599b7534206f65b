package models

import "time"

// Account is a locally registered identity with its bcrypt password hash.
type Account struct {
	UID          string    `gorm:"primaryKey;size:64" json:"uid"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	DisplayName  string    `gorm:"size:255" json:"display_name"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity returns the public view of the account.
func (a Account) Identity() Identity {
	return Identity{UID: a.UID, Email: a.Email, DisplayName: a.DisplayName}
}

package domain

import "time"

// User represents an account in the system
type User struct {
	ID           int64     `json:"id,string"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// NewUser holds the fields needed to create an account. PasswordHash is
// already hashed by the caller.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
}

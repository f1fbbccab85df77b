package model

import "github.com/google/uuid"

// User is a connected chat participant. The id is stable for the lifetime of
// the connection; the username is display-only and not unique.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Room     string `json:"room,omitempty"`
}

// NewUser allocates a user record with a fresh id for a new connection.
func NewUser(username string) *User {
	return &User{
		ID:       uuid.New().String(),
		Username: username,
	}
}

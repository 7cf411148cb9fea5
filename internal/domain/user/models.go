package user

import (
	"errors"
	"time"
)

var ErrUserNotFound = errors.New("user not found")

// User is an authenticated principal. The id is the subject issued by
// the identity provider, so there is no local signup flow: the first
// authenticated request creates the row.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type UpsertUserParams struct {
	ID    string // Identity provider subject
	Email string
	Name  string
}

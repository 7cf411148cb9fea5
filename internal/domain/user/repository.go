package user

import "context"

// Repository defines the interface for user data access
type Repository interface {
	Upsert(ctx context.Context, params UpsertUserParams) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
}

package account

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for account data access. Writes go
// through the sync store, which batches them with transaction rows; this
// interface covers the read side.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Account, error)
}

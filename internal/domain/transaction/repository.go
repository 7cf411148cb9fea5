package transaction

import (
	"context"
	"time"
)

// Repository defines the interface for transaction data access. Writes go
// through the sync store; this interface covers the read side.
type Repository interface {
	ListByOwner(ctx context.Context, ownerID string, filter ListFilter) ([]*Transaction, error)
	CountByOwner(ctx context.Context, ownerID string) (int64, error)
	SummarizeByCategory(ctx context.Context, ownerID string, from, to time.Time) ([]CategorySummary, error)
	SumTotals(ctx context.Context, ownerID string, from, to time.Time) (*Totals, error)
}

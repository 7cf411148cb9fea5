package syncer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"moneta/internal/domain/account"
	"moneta/internal/domain/transaction"
)

// RowError reports one record that could not be written. The sync
// continues past it: the row's savepoint is rolled back and the rest of
// the batch still commits.
type RowError struct {
	Op  string // "account", "merchant" or "transaction"
	Key string // derived row id or natural key
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("failed to upsert %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Store opens one atomic unit per sync run.
type Store interface {
	Begin(ctx context.Context, ownerID string) (Unit, error)
}

// Unit is a single database transaction covering a whole sync run. Row
// upserts are individually savepointed, so a constraint failure surfaces
// as *RowError and leaves the unit usable for the remaining rows.
//
// UpsertMerchant consults the caller-owned cache before touching the
// database; the cache lives for one sync run and is never shared.
type Unit interface {
	UpsertAccount(ctx context.Context, params account.UpsertAccountParams) error
	UpsertMerchant(ctx context.Context, cache map[string]uuid.UUID, name string) (uuid.UUID, error)
	UpsertTransaction(ctx context.Context, params transaction.UpsertTransactionParams) error
	WipeOwner(ctx context.Context) error
	DeleteCredentials(ctx context.Context) error
	Commit() error
	Rollback() error
}

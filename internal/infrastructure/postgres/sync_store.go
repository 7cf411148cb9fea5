package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"moneta/internal/domain/account"
	"moneta/internal/domain/ident"
	"moneta/internal/domain/syncer"
	"moneta/internal/domain/transaction"
)

// SyncStore implements syncer.Store for PostgreSQL
type SyncStore struct {
	db *DB
}

// NewSyncStore creates a new PostgreSQL sync store
func NewSyncStore(db *DB) *SyncStore {
	return &SyncStore{db: db}
}

var _ syncer.Store = (*SyncStore)(nil)

// Begin opens the transaction that backs one sync run.
func (s *SyncStore) Begin(ctx context.Context, ownerID string) (syncer.Unit, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin sync unit: %w", err)
	}
	return &SyncUnit{tx: tx, ownerID: ownerID}, nil
}

// SyncUnit implements syncer.Unit on a single *sql.Tx. Every row write
// runs inside its own savepoint: constraint violations roll back just
// that row and come back as *syncer.RowError, anything else poisons the
// unit and aborts the run.
type SyncUnit struct {
	tx      *sql.Tx
	ownerID string
	seq     int
}

var _ syncer.Unit = (*SyncUnit)(nil)

// UpsertAccount writes one account row keyed by its derived id.
func (u *SyncUnit) UpsertAccount(ctx context.Context, params account.UpsertAccountParams) error {
	return u.withSavepoint(ctx, "account", params.ID.String(), func() error {
		_, err := u.tx.ExecContext(ctx, `
			INSERT INTO accounts (id, owner_id, item_id, external_id, name, official_name, type, subtype, mask,
			                      currency, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				official_name = EXCLUDED.official_name,
				type = EXCLUDED.type,
				subtype = EXCLUDED.subtype,
				mask = EXCLUDED.mask,
				currency = EXCLUDED.currency,
				updated_at = now()`,
			params.ID, params.OwnerID, params.ItemID, params.ExternalID, params.Name, params.OfficialName,
			params.Type, params.Subtype, params.Mask, params.Currency,
		)
		return err
	})
}

// UpsertMerchant resolves the merchant id for a display name, hitting the
// database only on cache misses. The first display name seen for a
// normalized name wins; later spellings do not overwrite it.
func (u *SyncUnit) UpsertMerchant(ctx context.Context, cache map[string]uuid.UUID, name string) (uuid.UUID, error) {
	normalized := ident.NormalizeMerchant(name)
	if id, ok := cache[normalized]; ok {
		return id, nil
	}

	var id uuid.UUID
	err := u.withSavepoint(ctx, "merchant", normalized, func() error {
		return u.tx.QueryRowContext(ctx, `
			INSERT INTO merchants (id, name, normalized_name)
			VALUES ($1, $2, $3)
			ON CONFLICT (normalized_name) DO UPDATE SET name = merchants.name
			RETURNING id`,
			ident.ForMerchant(name), name, normalized,
		).Scan(&id)
	})
	if err != nil {
		return uuid.Nil, err
	}

	cache[normalized] = id
	return id, nil
}

// UpsertTransaction writes one transaction row keyed by its derived id.
func (u *SyncUnit) UpsertTransaction(ctx context.Context, params transaction.UpsertTransactionParams) error {
	return u.withSavepoint(ctx, "transaction", params.ID.String(), func() error {
		_, err := u.tx.ExecContext(ctx, `
			INSERT INTO transactions (id, account_id, owner_id, merchant_id, amount, currency, date, authorized_at, name, category, pending, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
			ON CONFLICT (id) DO UPDATE SET
				account_id = EXCLUDED.account_id,
				merchant_id = EXCLUDED.merchant_id,
				amount = EXCLUDED.amount,
				currency = EXCLUDED.currency,
				date = EXCLUDED.date,
				authorized_at = EXCLUDED.authorized_at,
				name = EXCLUDED.name,
				category = EXCLUDED.category,
				pending = EXCLUDED.pending,
				updated_at = now()`,
			params.ID, params.AccountID, params.OwnerID, params.MerchantID, params.Amount,
			params.Currency, params.Date, params.AuthorizedAt, params.Name, params.Category, params.Pending,
		)
		return err
	})
}

// WipeOwner removes the owner's imported data so a seed or reset starts
// from a clean slate. Merchants are shared across owners and stay.
func (u *SyncUnit) WipeOwner(ctx context.Context) error {
	if _, err := u.tx.ExecContext(ctx, `DELETE FROM transactions WHERE owner_id = $1`, u.ownerID); err != nil {
		return fmt.Errorf("failed to wipe transactions: %w", err)
	}
	if _, err := u.tx.ExecContext(ctx, `DELETE FROM accounts WHERE owner_id = $1`, u.ownerID); err != nil {
		return fmt.Errorf("failed to wipe accounts: %w", err)
	}
	return nil
}

// DeleteCredentials unlinks all of the owner's aggregator items.
func (u *SyncUnit) DeleteCredentials(ctx context.Context) error {
	if _, err := u.tx.ExecContext(ctx, `DELETE FROM credentials WHERE owner_id = $1`, u.ownerID); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}

func (u *SyncUnit) Commit() error {
	return u.tx.Commit()
}

func (u *SyncUnit) Rollback() error {
	return u.tx.Rollback()
}

func (u *SyncUnit) withSavepoint(ctx context.Context, op, key string, fn func() error) error {
	u.seq++
	sp := fmt.Sprintf("sp%d", u.seq)

	if _, err := u.tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}

	if err := fn(); err != nil {
		if !isRowConstraintErr(err) {
			return err
		}
		if _, rbErr := u.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
			return fmt.Errorf("failed to roll back savepoint: %w", rbErr)
		}
		return &syncer.RowError{Op: op, Key: key, Err: err}
	}

	if _, err := u.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

// isRowConstraintErr reports whether err is scoped to the offending row:
// class 22 (data exception) and class 23 (integrity constraint violation)
// mean the row was bad, not the connection or the unit.
func isRowConstraintErr(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code.Class() {
	case "22", "23":
		return true
	}
	return false
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"moneta/internal/domain/account"
)

// AccountRepository implements the account.Repository interface for
// PostgreSQL. Balances are never stored: reads compute them from the
// transaction ledger.
type AccountRepository struct {
	db *DB
}

// NewAccountRepository creates a new PostgreSQL account repository
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

var _ account.Repository = (*AccountRepository)(nil)

const accountColumns = `
	a.id, a.owner_id, a.item_id, a.external_id, a.name, a.official_name,
	a.type, a.subtype, a.mask,
	COALESCE(t.balance, 0), a.currency, a.created_at, a.updated_at`

const accountBalanceJoin = `
	LEFT JOIN (
		SELECT account_id, SUM(amount) AS balance
		FROM transactions
		GROUP BY account_id
	) t ON t.account_id = a.id`

// GetByID retrieves an account by its derived id.
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	query := `SELECT` + accountColumns + `
		FROM accounts a` + accountBalanceJoin + `
		WHERE a.id = $1`

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

// ListByOwner retrieves all of the owner's accounts.
func (r *AccountRepository) ListByOwner(ctx context.Context, ownerID string) ([]*account.Account, error) {
	query := `SELECT` + accountColumns + `
		FROM accounts a` + accountBalanceJoin + `
		WHERE a.owner_id = $1
		ORDER BY a.name, a.id`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}
	return accounts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*account.Account, error) {
	var acc account.Account
	err := row.Scan(
		&acc.ID, &acc.OwnerID, &acc.ItemID, &acc.ExternalID, &acc.Name, &acc.OfficialName,
		&acc.Type, &acc.Subtype, &acc.Mask,
		&acc.Balance, &acc.Currency, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

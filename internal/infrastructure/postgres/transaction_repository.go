package postgres

import (
	"context"
	"fmt"
	"time"

	"moneta/internal/domain/transaction"
)

// TransactionRepository implements the transaction.Repository interface
// for PostgreSQL. Writes go through the sync store; this is the read
// side.
type TransactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new PostgreSQL transaction repository
func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

var _ transaction.Repository = (*TransactionRepository)(nil)

// ListByOwner retrieves the owner's transactions, newest first, joined
// with the merchant display name.
func (r *TransactionRepository) ListByOwner(ctx context.Context, ownerID string, filter transaction.ListFilter) ([]*transaction.Transaction, error) {
	query := `
		SELECT t.id, t.account_id, t.owner_id, t.merchant_id, m.name,
		       t.amount, t.currency, t.date, t.authorized_at, t.name,
		       t.category, t.pending, t.created_at, t.updated_at
		FROM transactions t
		LEFT JOIN merchants m ON m.id = t.merchant_id
		WHERE t.owner_id = $1
	`
	args := []any{ownerID}

	if filter.AccountID != nil {
		args = append(args, *filter.AccountID)
		query += fmt.Sprintf(" AND t.account_id = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND t.date >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND t.date <= $%d", len(args))
	}

	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY t.date DESC, t.id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*transaction.Transaction
	for rows.Next() {
		var t transaction.Transaction
		err := rows.Scan(
			&t.ID, &t.AccountID, &t.OwnerID, &t.MerchantID, &t.Merchant,
			&t.Amount, &t.Currency, &t.Date, &t.AuthorizedAt, &t.Name,
			&t.Category, &t.Pending, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}
	return txns, nil
}

// CountByOwner returns the owner's total transaction count.
func (r *TransactionRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE owner_id = $1`, ownerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// SummarizeByCategory aggregates net totals per category over a window.
// Pending rows are included; they carry real amounts.
func (r *TransactionRepository) SummarizeByCategory(ctx context.Context, ownerID string, from, to time.Time) ([]transaction.CategorySummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT COALESCE(category, 'Uncategorized'), SUM(amount), COUNT(*)
		FROM transactions
		WHERE owner_id = $1 AND date >= $2 AND date <= $3
		GROUP BY COALESCE(category, 'Uncategorized')
		ORDER BY SUM(amount)`,
		ownerID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize categories: %w", err)
	}
	defer rows.Close()

	var summaries []transaction.CategorySummary
	for rows.Next() {
		var s transaction.CategorySummary
		if err := rows.Scan(&s.Category, &s.Total, &s.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read category summaries: %w", err)
	}
	return summaries, nil
}

// SumTotals returns the window's income and spending sums. Income is
// the positive side, spending the negative side, under the local sign
// convention.
func (r *TransactionRepository) SumTotals(ctx context.Context, ownerID string, from, to time.Time) (*transaction.Totals, error) {
	var totals transaction.Totals
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount) FILTER (WHERE amount > 0), 0),
		       COALESCE(SUM(amount) FILTER (WHERE amount < 0), 0)
		FROM transactions
		WHERE owner_id = $1 AND date >= $2 AND date <= $3`,
		ownerID, from, to,
	).Scan(&totals.Income, &totals.Spending)
	if err != nil {
		return nil, fmt.Errorf("failed to sum totals: %w", err)
	}
	return &totals, nil
}

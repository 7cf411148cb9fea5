package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"moneta/internal/domain/credential"
)

// CredentialRepository implements the credential.Repository interface
// for PostgreSQL. The token column name comes from schema negotiation at
// startup, so the same binary serves deployments that predate the
// column rename.
type CredentialRepository struct {
	db     *DB
	schema *CredentialSchema
}

// NewCredentialRepository creates a new PostgreSQL credential repository
func NewCredentialRepository(db *DB, schema *CredentialSchema) *CredentialRepository {
	return &CredentialRepository{db: db, schema: schema}
}

var _ credential.Repository = (*CredentialRepository)(nil)

// Upsert links an item or rotates its token blob in place.
func (r *CredentialRepository) Upsert(ctx context.Context, params credential.UpsertCredentialParams) (*credential.LinkedCredential, error) {
	query := fmt.Sprintf(`
		INSERT INTO credentials (owner_id, item_id, institution, %[1]s)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id, item_id) DO UPDATE SET
			institution = EXCLUDED.institution,
			%[1]s = EXCLUDED.%[1]s,
			updated_at = now()
		RETURNING owner_id, item_id, institution, %[1]s, created_at, updated_at
	`, r.schema.TokenColumn)

	var c credential.LinkedCredential
	err := r.db.QueryRowContext(ctx, query,
		params.OwnerID, params.ItemID, params.Institution, params.TokenBlob,
	).Scan(&c.OwnerID, &c.ItemID, &c.Institution, &c.TokenBlob, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert credential: %w", err)
	}
	return &c, nil
}

// ListByOwner retrieves all linked credentials for an owner.
func (r *CredentialRepository) ListByOwner(ctx context.Context, ownerID string) ([]*credential.LinkedCredential, error) {
	query := fmt.Sprintf(`
		SELECT owner_id, item_id, institution, %s, created_at, updated_at
		FROM credentials
		WHERE owner_id = $1
		ORDER BY created_at
	`, r.schema.TokenColumn)

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	return scanCredentials(rows)
}

// ListAll retrieves every linked credential. Used by offline key
// rotation and the scheduled sync.
func (r *CredentialRepository) ListAll(ctx context.Context) ([]*credential.LinkedCredential, error) {
	query := fmt.Sprintf(`
		SELECT owner_id, item_id, institution, %s, created_at, updated_at
		FROM credentials
		ORDER BY owner_id, created_at
	`, r.schema.TokenColumn)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	return scanCredentials(rows)
}

// UpdateTokenBlob replaces one credential's stored blob, used when
// re-encrypting under a new key.
func (r *CredentialRepository) UpdateTokenBlob(ctx context.Context, ownerID, itemID, blob string) error {
	query := fmt.Sprintf(`
		UPDATE credentials
		SET %s = $3, updated_at = now()
		WHERE owner_id = $1 AND item_id = $2
	`, r.schema.TokenColumn)

	result, err := r.db.ExecContext(ctx, query, ownerID, itemID, blob)
	if err != nil {
		return fmt.Errorf("failed to update token blob: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return credential.ErrCredentialNotFound
	}
	return nil
}

func scanCredentials(rows *sql.Rows) ([]*credential.LinkedCredential, error) {
	var creds []*credential.LinkedCredential
	for rows.Next() {
		var c credential.LinkedCredential
		if err := rows.Scan(&c.OwnerID, &c.ItemID, &c.Institution, &c.TokenBlob, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		creds = append(creds, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	return creds, nil
}

package postgres

import (
	"context"
	"fmt"

	"moneta/internal/domain/notification"
)

// DeviceRepository implements the notification.Repository interface for
// PostgreSQL.
type DeviceRepository struct {
	db *DB
}

// NewDeviceRepository creates a new PostgreSQL device token repository
func NewDeviceRepository(db *DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

var _ notification.Repository = (*DeviceRepository)(nil)

// UpsertDeviceToken registers a token, reassigning and reactivating it
// if it was registered before.
func (r *DeviceRepository) UpsertDeviceToken(ctx context.Context, params notification.RegisterDeviceParams) (*notification.DeviceToken, error) {
	query := `
		INSERT INTO device_tokens (token, owner_id, platform, active)
		VALUES ($1, $2, $3, true)
		ON CONFLICT (token) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			platform = EXCLUDED.platform,
			active = true,
			updated_at = now()
		RETURNING token, owner_id, platform, active, created_at, updated_at
	`

	var t notification.DeviceToken
	err := r.db.QueryRowContext(ctx, query, params.Token, params.OwnerID, params.Platform).Scan(
		&t.Token, &t.OwnerID, &t.Platform, &t.Active, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert device token: %w", err)
	}
	return &t, nil
}

// ListActiveByOwner retrieves the owner's active device tokens.
func (r *DeviceRepository) ListActiveByOwner(ctx context.Context, ownerID string) ([]*notification.DeviceToken, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT token, owner_id, platform, active, created_at, updated_at
		FROM device_tokens
		WHERE owner_id = $1 AND active = true
		ORDER BY created_at`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*notification.DeviceToken
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.Token, &t.OwnerID, &t.Platform, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read device tokens: %w", err)
	}
	return tokens, nil
}

// DeactivateToken marks a token inactive. Missing tokens are a no-op;
// the messenger reports invalid tokens it may never have stored.
func (r *DeviceRepository) DeactivateToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE device_tokens SET active = false, updated_at = now() WHERE token = $1`,
		token,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate device token: %w", err)
	}
	return nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
)

const (
	tokenColumnCurrent = "token_ciphertext"
	tokenColumnLegacy  = "access_token_encrypted"
)

// CredentialSchema describes which on-disk column holds the encrypted
// access token. Deployments that predate the column rename still run
// with the legacy name.
type CredentialSchema struct {
	TokenColumn string
}

// NegotiateCredentialSchema probes information_schema once at startup and
// returns the descriptor the credential repository is built with, so no
// query path ever re-inspects the catalog.
func NegotiateCredentialSchema(ctx context.Context, db *DB) (*CredentialSchema, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = 'credentials'`)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect credentials schema: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column name: %w", err)
		}
		columns[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read credentials schema: %w", err)
	}

	switch {
	case columns[tokenColumnCurrent]:
		return &CredentialSchema{TokenColumn: tokenColumnCurrent}, nil
	case columns[tokenColumnLegacy]:
		return &CredentialSchema{TokenColumn: tokenColumnLegacy}, nil
	default:
		return nil, errors.New("credentials table has no recognized token column")
	}
}

package postgres

import (
	"context"
	"fmt"
)

// schemaDDL is idempotent: every statement is IF NOT EXISTS, so Migrate
// can run on every startup. Existing deployments that predate the
// token_ciphertext column keep their legacy credentials table; see
// NegotiateCredentialSchema.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS credentials (
	owner_id         TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	item_id          TEXT NOT NULL,
	institution      TEXT,
	token_ciphertext TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (owner_id, item_id)
);

CREATE TABLE IF NOT EXISTS merchants (
	id              UUID PRIMARY KEY,
	name            TEXT NOT NULL,
	normalized_name TEXT NOT NULL UNIQUE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS accounts (
	id                UUID PRIMARY KEY,
	owner_id          TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	item_id           TEXT NOT NULL,
	external_id       TEXT NOT NULL,
	name              TEXT NOT NULL,
	official_name     TEXT,
	type              TEXT NOT NULL,
	subtype           TEXT NOT NULL DEFAULT '',
	mask              TEXT,
	currency          TEXT NOT NULL DEFAULT 'USD',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS transactions (
	id            UUID PRIMARY KEY,
	account_id    UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	owner_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	merchant_id   UUID REFERENCES merchants(id),
	amount        NUMERIC(18,2) NOT NULL,
	currency      TEXT NOT NULL DEFAULT 'USD',
	date          DATE NOT NULL,
	authorized_at DATE,
	name          TEXT NOT NULL,
	category      TEXT,
	pending       BOOLEAN NOT NULL DEFAULT false,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS device_tokens (
	token      TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	platform   TEXT NOT NULL,
	active     BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_accounts_owner ON accounts(owner_id);
CREATE INDEX IF NOT EXISTS idx_transactions_owner_date ON transactions(owner_id, date DESC);
CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id);
CREATE INDEX IF NOT EXISTS idx_credentials_owner ON credentials(owner_id);
CREATE INDEX IF NOT EXISTS idx_device_tokens_owner ON device_tokens(owner_id);
`

// Migrate applies the schema.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

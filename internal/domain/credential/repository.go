package credential

import "context"

// Repository defines the interface for credential data access. ListAll
// and UpdateTokenBlob exist for offline key rotation; everything else is
// scoped to one owner.
type Repository interface {
	Upsert(ctx context.Context, params UpsertCredentialParams) (*LinkedCredential, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*LinkedCredential, error)
	ListAll(ctx context.Context) ([]*LinkedCredential, error)
	UpdateTokenBlob(ctx context.Context, ownerID, itemID, blob string) error
}

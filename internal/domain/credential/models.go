package credential

import (
	"errors"
	"time"
)

var ErrCredentialNotFound = errors.New("credential not found")

// LinkedCredential binds one aggregator item to its owner. The access
// token is held as a vault blob and only decrypted for the duration of a
// sync. Relinking the same item rotates the blob in place.
type LinkedCredential struct {
	OwnerID     string    `json:"-"`
	ItemID      string    `json:"itemId"`
	Institution *string   `json:"institution,omitempty"`
	TokenBlob   string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type UpsertCredentialParams struct {
	OwnerID     string
	ItemID      string
	Institution *string
	TokenBlob   string
}

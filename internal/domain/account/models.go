package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrForbidden       = errors.New("access forbidden")
)

// Account is a bank or card account imported from the aggregator. The id
// is derived from the linked item and the provider's account id, so
// re-imports always land on the same row.
type Account struct {
	ID             uuid.UUID       `json:"id"`
	OwnerID        string          `json:"-"`
	ItemID         string          `json:"itemId"`
	ExternalID     string          `json:"-"` // Provider's account id
	Name           string          `json:"name"`
	OfficialName   *string         `json:"officialName,omitempty"`
	Type           string          `json:"type"`    // "depository", "credit", ...
	Subtype        string          `json:"subtype"` // "checking", "savings", ...
	Mask           *string         `json:"mask,omitempty"`
	Balance        decimal.Decimal `json:"balance"` // Sum of the account's local transactions
	DisplayBalance string          `json:"displayBalance,omitempty"`
	Currency       string          `json:"currency"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// UpsertAccountParams is used for syncing accounts from the aggregator
type UpsertAccountParams struct {
	ID           uuid.UUID
	OwnerID      string
	ItemID       string
	ExternalID   string
	Name         string
	OfficialName *string
	Type         string
	Subtype      string
	Mask         *string
	Currency     string
}

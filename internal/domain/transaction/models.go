package transaction

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrTransactionNotFound = errors.New("transaction not found")

// Transaction is one ledger entry. Amounts use the local convention:
// positive is money coming in, negative is money going out. The
// aggregator reports the opposite, and the sync negates on the way in.
type Transaction struct {
	ID           uuid.UUID       `json:"id"`
	AccountID    uuid.UUID       `json:"accountId"`
	OwnerID      string          `json:"-"`
	MerchantID   uuid.NullUUID   `json:"-"`
	Merchant     *string         `json:"merchant,omitempty"` // Display name joined from the merchant row
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Date         time.Time       `json:"date"`
	AuthorizedAt *time.Time      `json:"authorizedAt,omitempty"`
	Name         string          `json:"name"`
	Category     *string         `json:"category,omitempty"`
	Pending      bool            `json:"pending"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// UpsertTransactionParams is used for syncing transactions from the aggregator
type UpsertTransactionParams struct {
	ID           uuid.UUID
	AccountID    uuid.UUID
	OwnerID      string
	MerchantID   uuid.NullUUID
	Amount       decimal.Decimal
	Currency     string
	Date         time.Time
	AuthorizedAt *time.Time
	Name         string
	Category     *string
	Pending      bool
}

// ListFilter narrows a transaction listing
type ListFilter struct {
	AccountID *uuid.UUID
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// CategorySummary aggregates one category's net total over a window
type CategorySummary struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// Totals carries the window-wide income and spending sums. Spending is
// negative or zero.
type Totals struct {
	Income   decimal.Decimal `json:"income"`
	Spending decimal.Decimal `json:"spending"`
}

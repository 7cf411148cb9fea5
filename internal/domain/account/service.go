package account

import (
	"context"
	"errors"

	"github.com/Rhymond/go-money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service contains the business logic for account reads
type Service struct {
	repo Repository
}

// NewService creates a new account service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListAccounts retrieves all accounts belonging to the owner
func (s *Service) ListAccounts(ctx context.Context, ownerID string) ([]*Account, error) {
	if ownerID == "" {
		return nil, errors.New("valid owner id is required")
	}
	accounts, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, acct := range accounts {
		acct.DisplayBalance = formatBalance(acct.Balance, acct.Currency)
	}
	return accounts, nil
}

// formatBalance renders a balance in the account's own currency, using
// the currency's minor-unit exponent and display template.
func formatBalance(d decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		cur = money.GetCurrency(money.USD)
	}
	minor := d.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}

// GetAccount retrieves an account by ID and verifies ownership
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID, ownerID string) (*Account, error) {
	acct, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if acct.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return acct, nil
}

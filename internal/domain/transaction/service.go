package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Service contains the business logic for transaction reads and the
// spending summary.
type Service struct {
	repo     Repository
	currency string
}

// NewService creates a new transaction service. currency is the display
// currency for summary totals.
func NewService(repo Repository, currency string) *Service {
	if currency == "" {
		currency = money.USD
	}
	return &Service{repo: repo, currency: currency}
}

// ListTransactions retrieves transactions for the owner, newest first.
func (s *Service) ListTransactions(ctx context.Context, ownerID string, filter ListFilter) ([]*Transaction, error) {
	if ownerID == "" {
		return nil, errors.New("valid owner id is required")
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.ListByOwner(ctx, ownerID, filter)
}

// CountTransactions returns the owner's total transaction count.
func (s *Service) CountTransactions(ctx context.Context, ownerID string) (int64, error) {
	if ownerID == "" {
		return 0, errors.New("valid owner id is required")
	}
	return s.repo.CountByOwner(ctx, ownerID)
}

// Summary is the spending breakdown for a window, with display-ready
// totals formatted in the service currency.
type Summary struct {
	From       time.Time         `json:"from"`
	To         time.Time         `json:"to"`
	Income     decimal.Decimal   `json:"income"`
	Spending   decimal.Decimal   `json:"spending"`
	Net        decimal.Decimal   `json:"net"`
	Categories []CategorySummary `json:"categories"`
	Display    SummaryDisplay    `json:"display"`
}

// SummaryDisplay carries human-readable renderings of the totals.
type SummaryDisplay struct {
	Income   string `json:"income"`
	Spending string `json:"spending"`
	Net      string `json:"net"`
}

// GetSummary aggregates the owner's activity over [from, to].
func (s *Service) GetSummary(ctx context.Context, ownerID string, from, to time.Time) (*Summary, error) {
	if ownerID == "" {
		return nil, errors.New("valid owner id is required")
	}
	if to.Before(from) {
		return nil, fmt.Errorf("invalid window: %s is after %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	totals, err := s.repo.SumTotals(ctx, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to sum totals: %w", err)
	}
	categories, err := s.repo.SummarizeByCategory(ctx, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize categories: %w", err)
	}

	net := totals.Income.Add(totals.Spending)
	return &Summary{
		From:       from,
		To:         to,
		Income:     totals.Income,
		Spending:   totals.Spending,
		Net:        net,
		Categories: categories,
		Display: SummaryDisplay{
			Income:   s.formatAmount(totals.Income),
			Spending: s.formatAmount(totals.Spending),
			Net:      s.formatAmount(net),
		},
	}, nil
}

// formatAmount renders a decimal amount in the service currency, using
// the currency's minor-unit exponent and display template.
func (s *Service) formatAmount(d decimal.Decimal) string {
	cur := money.GetCurrency(s.currency)
	if cur == nil {
		cur = money.GetCurrency(money.USD)
	}
	minor := d.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}

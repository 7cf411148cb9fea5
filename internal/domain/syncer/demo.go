package syncer

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"moneta/internal/domain/account"
	"moneta/internal/domain/ident"
	"moneta/internal/domain/transaction"
)

// Demo data is generated, not stored as fixtures: a fixed seed keeps
// every run byte-identical while still producing a dataset large enough
// to make the dashboard look lived-in.
const (
	demoItemID   = "demo-item"
	demoSeed     = 7
	demoDays     = 90
	demoCurrency = "USD"
)

type demoAccount struct {
	externalID string
	name       string
	acctType   string
	subtype    string
}

var demoAccounts = []demoAccount{
	{externalID: "demo-checking", name: "Demo Checking", acctType: "depository", subtype: "checking"},
	{externalID: "demo-credit", name: "Demo Credit Card", acctType: "credit", subtype: "credit card"},
}

type demoMerchant struct {
	name     string
	category string
	minCents int64
	maxCents int64
}

var demoMerchants = []demoMerchant{
	{name: "Corner Grocery", category: "Groceries", minCents: 800, maxCents: 14000},
	{name: "Blue Bottle Coffee", category: "Coffee", minCents: 350, maxCents: 1200},
	{name: "Metro Transit", category: "Travel", minCents: 275, maxCents: 275},
	{name: "Streamflix", category: "Subscription", minCents: 1599, maxCents: 1599},
	{name: "City Power & Light", category: "Utilities", minCents: 4500, maxCents: 9500},
	{name: "The Noodle House", category: "Restaurants", minCents: 1200, maxCents: 4800},
	{name: "Hardware Depot", category: "Shops", minCents: 900, maxCents: 22000},
	{name: "Pharma Plus", category: "Healthcare", minCents: 600, maxCents: 7500},
}

// seedDemo wipes the owner's imported data and regenerates the
// synthetic dataset inside the same unit. Ids run through the deriver
// like real imports, so reseeding lands on the same rows.
func (s *Service) seedDemo(ctx context.Context, unit Unit, ownerID string, to time.Time, result *Result) error {
	if err := unit.WipeOwner(ctx); err != nil {
		return err
	}

	for _, a := range demoAccounts {
		params := account.UpsertAccountParams{
			ID:         ident.ForAccount(demoItemID, a.externalID),
			OwnerID:    ownerID,
			ItemID:     demoItemID,
			ExternalID: a.externalID,
			Name:       a.name,
			Type:       a.acctType,
			Subtype:    a.subtype,
			Currency:   demoCurrency,
		}
		if err := unit.UpsertAccount(ctx, params); err != nil {
			return err
		}
	}

	rng := rand.New(rand.NewSource(demoSeed))
	cache := make(map[string]uuid.UUID)
	day := to.Truncate(24 * time.Hour)

	seq := 0
	for back := demoDays; back >= 0; back-- {
		date := day.AddDate(0, 0, -back)

		// Payroll lands on the 1st and 15th, always on checking.
		if d := date.Day(); d == 1 || d == 15 {
			seq++
			payday := demoTxn{
				externalID: fmt.Sprintf("demo-txn-%04d", seq),
				accountID:  "demo-checking",
				name:       "Acme Corp Payroll",
				merchant:   "Acme Corp",
				category:   "Income",
				amount:     decimal.New(210000, -2),
				date:       date,
			}
			if err := s.upsertDemoTxn(ctx, unit, ownerID, payday, cache, result); err != nil {
				return err
			}
		}

		spends := rng.Intn(3)
		for i := 0; i < spends; i++ {
			seq++
			m := demoMerchants[rng.Intn(len(demoMerchants))]
			cents := m.minCents
			if m.maxCents > m.minCents {
				cents += rng.Int63n(m.maxCents - m.minCents)
			}
			acct := demoAccounts[rng.Intn(len(demoAccounts))]
			spend := demoTxn{
				externalID: fmt.Sprintf("demo-txn-%04d", seq),
				accountID:  acct.externalID,
				name:       m.name,
				merchant:   m.name,
				category:   m.category,
				amount:     decimal.New(-cents, -2),
				date:       date,
				pending:    back == 0,
			}
			if err := s.upsertDemoTxn(ctx, unit, ownerID, spend, cache, result); err != nil {
				return err
			}
		}
	}

	log.Printf("Demo seed for owner %s: %d transactions generated", ownerID, result.Upserted)
	return nil
}

type demoTxn struct {
	externalID string
	accountID  string
	name       string
	merchant   string
	category   string
	amount     decimal.Decimal
	date       time.Time
	pending    bool
}

func (s *Service) upsertDemoTxn(ctx context.Context, unit Unit, ownerID string, txn demoTxn, cache map[string]uuid.UUID, result *Result) error {
	result.Fetched++

	merchantID, err := unit.UpsertMerchant(ctx, cache, txn.merchant)
	if err != nil {
		return err
	}

	category := txn.category
	err = unit.UpsertTransaction(ctx, transaction.UpsertTransactionParams{
		ID:         ident.ForTransaction(demoItemID, txn.externalID),
		AccountID:  ident.ForAccount(demoItemID, txn.accountID),
		OwnerID:    ownerID,
		MerchantID: uuid.NullUUID{UUID: merchantID, Valid: true},
		Amount:     txn.amount,
		Currency:   demoCurrency,
		Date:       txn.date,
		Name:       txn.name,
		Category:   &category,
		Pending:    txn.pending,
	})
	if err != nil {
		return err
	}

	result.Upserted++
	return nil
}

// Package syncer drives the ingestion pipeline. One Synchronize call
// computes a sync window, decrypts the owner's linked credentials, pages
// transactions out of the aggregator and lands them in the store under
// ids derived from the provider's stable keys, so replaying a window
// never duplicates a row.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"moneta/internal/domain/account"
	"moneta/internal/domain/credential"
	"moneta/internal/domain/ident"
	"moneta/internal/domain/transaction"
	"moneta/internal/infrastructure/aggregator"
)

const (
	defaultLookbackDays = 30
	fullLookbackDays    = 90
	pageSize            = 500
)

// StatusAccepted is the terminal status of a sync run that made it to
// commit, including runs that skipped individual rows.
const StatusAccepted = "ACCEPTED"

// ErrInvalidWindow marks caller mistakes in the requested sync window.
var ErrInvalidWindow = errors.New("invalid sync window")

// TokenVault opens stored credential blobs for the duration of a sync.
type TokenVault interface {
	Decrypt(ctx context.Context, blob string) (string, error)
}

// Notifier receives sync lifecycle events. Implementations must not
// block the sync on delivery failures.
type Notifier interface {
	SyncCompleted(ctx context.Context, ownerID string, upserted int)
	CredentialInvalidated(ctx context.Context, ownerID, institution string)
}

// Options control one Synchronize invocation.
type Options struct {
	DemoSeed      bool   `json:"demoSeed"`
	ForceFullSync bool   `json:"forceFullSync"`
	StartMonth    string `json:"startMonth"` // "YYYY-MM"; overrides the lookback when set
}

// Result reports what one sync run did. Upserted trails Fetched exactly
// when rows were skipped for being malformed or violating a constraint.
type Result struct {
	Status   string    `json:"status"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Items    int       `json:"items"`
	Fetched  int       `json:"fetched"`
	Upserted int       `json:"upserted"`
}

// Service is the sync orchestrator. Credentials are processed
// sequentially: pagination is serial anyway, and one credential at a
// time keeps resource use bounded and test ordering stable.
type Service struct {
	credentials credential.Repository
	vault       TokenVault
	client      aggregator.ClientInterface
	store       Store
	notifier    Notifier

	now func() time.Time
}

// NewService creates a new sync service. notifier may be nil.
func NewService(credentials credential.Repository, vault TokenVault, client aggregator.ClientInterface, store Store, notifier Notifier) *Service {
	return &Service{
		credentials: credentials,
		vault:       vault,
		client:      client,
		store:       store,
		notifier:    notifier,
		now:         time.Now,
	}
}

// Window computes the sync window for the given options. Precedence:
// explicit start month, then the full-sync lookback, then the default
// lookback. The window always ends now.
func (s *Service) Window(opts Options) (from, to time.Time, err error) {
	to = s.now()

	switch {
	case opts.StartMonth != "":
		month, parseErr := time.Parse("2006-01", opts.StartMonth)
		if parseErr != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: start month %q is not YYYY-MM", ErrInvalidWindow, opts.StartMonth)
		}
		from = month
	case opts.ForceFullSync:
		from = to.AddDate(0, 0, -fullLookbackDays)
	default:
		from = to.AddDate(0, 0, -defaultLookbackDays)
	}

	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start month %q is in the future", ErrInvalidWindow, opts.StartMonth)
	}
	return from, to, nil
}

// Synchronize runs one ingestion pass for the owner. The whole run
// shares one storage unit: row-level failures are contained inside it,
// anything else rolls the run back untouched.
func (s *Service) Synchronize(ctx context.Context, ownerID string, opts Options) (*Result, error) {
	from, to, err := s.Window(opts)
	if err != nil {
		return nil, err
	}

	result := &Result{Status: StatusAccepted, From: from, To: to}

	unit, err := s.store.Begin(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := unit.Rollback(); rbErr != nil {
				log.Printf("Sync rollback failed for owner %s: %v", ownerID, rbErr)
			}
		}
	}()

	if opts.DemoSeed {
		err = s.seedDemo(ctx, unit, ownerID, to, result)
	} else {
		err = s.syncLive(ctx, unit, ownerID, from, to, result)
	}
	if err != nil {
		return nil, err
	}

	if err := unit.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit sync: %w", err)
	}
	committed = true

	log.Printf("Sync completed for owner %s: items=%d, fetched=%d, upserted=%d",
		ownerID, result.Items, result.Fetched, result.Upserted)

	if s.notifier != nil && !opts.DemoSeed && result.Upserted > 0 {
		s.notifier.SyncCompleted(ctx, ownerID, result.Upserted)
	}
	return result, nil
}

// syncLive ingests every linked credential sequentially. An owner with
// no credentials is an empty sync, not an error.
func (s *Service) syncLive(ctx context.Context, unit Unit, ownerID string, from, to time.Time, result *Result) error {
	creds, err := s.credentials.ListByOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to list credentials: %w", err)
	}
	if len(creds) == 0 {
		log.Printf("Sync for owner %s: no linked credentials", ownerID)
		return nil
	}

	// One merchant cache per run: the same merchant seen through two
	// credentials still resolves to one row without a second lookup.
	cache := make(map[string]uuid.UUID)

	for _, cred := range creds {
		result.Items++

		token, err := s.vault.Decrypt(ctx, cred.TokenBlob)
		if err != nil {
			return fmt.Errorf("failed to decrypt credential %s: %w", cred.ItemID, err)
		}

		if err := s.syncCredential(ctx, unit, ownerID, cred, token, from, to, cache, result); err != nil {
			var upstream *aggregator.UpstreamError
			if errors.As(err, &upstream) && upstream.Status == http.StatusUnauthorized && s.notifier != nil {
				s.notifier.CredentialInvalidated(ctx, ownerID, institutionLabel(cred))
			}
			return err
		}
	}
	return nil
}

// syncCredential pages through one credential's window. All pagination
// state lives here; the client is stateless.
func (s *Service) syncCredential(
	ctx context.Context,
	unit Unit,
	ownerID string,
	cred *credential.LinkedCredential,
	token string,
	from, to time.Time,
	cache map[string]uuid.UUID,
	result *Result,
) error {
	offset := 0
	for {
		page, err := s.client.FetchTransactions(ctx, aggregator.FetchParams{
			AccessToken: token,
			From:        from,
			To:          to,
			Count:       pageSize,
			Offset:      offset,
		})
		if err != nil {
			return fmt.Errorf("failed to fetch page at offset %d for item %s: %w", offset, cred.ItemID, err)
		}

		// The account snapshot repeats on every page; writing it once
		// is enough.
		if offset == 0 {
			for i := range page.Accounts {
				if err := s.upsertAccount(ctx, unit, ownerID, cred.ItemID, &page.Accounts[i]); err != nil {
					return err
				}
			}
		}

		if len(page.Transactions) == 0 {
			return nil
		}

		for i := range page.Transactions {
			if err := s.ingestRecord(ctx, unit, ownerID, cred.ItemID, &page.Transactions[i], cache, result); err != nil {
				return err
			}
		}

		offset += len(page.Transactions)
		if offset >= page.TotalTransactions {
			return nil
		}
	}
}

func (s *Service) upsertAccount(ctx context.Context, unit Unit, ownerID, itemID string, acct *aggregator.Account) error {
	// Provider balances are dropped here: the stored balance is always
	// derived from the transaction ledger on read.
	params := account.UpsertAccountParams{
		ID:           ident.ForAccount(itemID, acct.AccountID),
		OwnerID:      ownerID,
		ItemID:       itemID,
		ExternalID:   acct.AccountID,
		Name:         acct.Name,
		OfficialName: acct.OfficialName,
		Type:         acct.Type,
		Subtype:      acct.Subtype,
		Mask:         acct.Mask,
		Currency:     currencyOrDefault(acct.Balances.ISOCurrencyCode),
	}

	err := unit.UpsertAccount(ctx, params)
	var rowErr *RowError
	if errors.As(err, &rowErr) {
		log.Printf("Skipping account %s: %v", acct.AccountID, rowErr)
		return nil
	}
	return err
}

// ingestRecord writes one provider record. Malformed records and rows
// rejected by the store are skipped, visible only as Upserted trailing
// Fetched; any other failure aborts the run.
func (s *Service) ingestRecord(
	ctx context.Context,
	unit Unit,
	ownerID, itemID string,
	rec *aggregator.Transaction,
	cache map[string]uuid.UUID,
	result *Result,
) error {
	result.Fetched++

	date, err := rec.GetDate()
	if err != nil {
		log.Printf("Skipping transaction %s: %v", rec.TransactionID, err)
		return nil
	}

	authorizedAt, err := rec.GetAuthorizedDate()
	if err != nil {
		// A bad authorization date is not worth losing the row over.
		log.Printf("Dropping authorized date on transaction %s: %v", rec.TransactionID, err)
		authorizedAt = nil
	}

	var merchantID uuid.NullUUID
	if rec.MerchantName != nil && *rec.MerchantName != "" {
		id, err := unit.UpsertMerchant(ctx, cache, *rec.MerchantName)
		var rowErr *RowError
		switch {
		case errors.As(err, &rowErr):
			// The transaction row is still worth keeping without its
			// merchant link.
			log.Printf("Skipping merchant %q for transaction %s: %v", *rec.MerchantName, rec.TransactionID, rowErr)
		case err != nil:
			return err
		default:
			merchantID = uuid.NullUUID{UUID: id, Valid: true}
		}
	}

	var category *string
	if c := rec.PrimaryCategory(); c != "" {
		category = &c
	}

	params := transaction.UpsertTransactionParams{
		ID:        ident.ForTransaction(itemID, rec.TransactionID),
		AccountID: ident.ForAccount(itemID, rec.AccountID),
		OwnerID:   ownerID,
		// The provider reports outflows as positive; locally expenses
		// are negative and income positive, so every amount flips sign
		// on the way in. Refunds come out positive as a consequence.
		Amount:       rec.Amount.Neg(),
		Currency:     currencyOrDefault(rec.ISOCurrencyCode),
		MerchantID:   merchantID,
		Date:         date,
		AuthorizedAt: authorizedAt,
		Name:         rec.Name,
		Category:     category,
		Pending:      rec.Pending,
	}

	err = unit.UpsertTransaction(ctx, params)
	var rowErr *RowError
	if errors.As(err, &rowErr) {
		log.Printf("Skipping transaction %s: %v", rec.TransactionID, rowErr)
		return nil
	}
	if err != nil {
		return err
	}

	result.Upserted++
	return nil
}

// Reset deletes the owner's imported accounts and transactions, and
// optionally unlinks their aggregator credentials.
func (s *Service) Reset(ctx context.Context, ownerID string, unlinkCredential bool) error {
	unit, err := s.store.Begin(ctx, ownerID)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := unit.Rollback(); rbErr != nil {
				log.Printf("Reset rollback failed for owner %s: %v", ownerID, rbErr)
			}
		}
	}()

	if err := unit.WipeOwner(ctx); err != nil {
		return err
	}
	if unlinkCredential {
		if err := unit.DeleteCredentials(ctx); err != nil {
			return err
		}
	}

	if err := unit.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}
	committed = true

	log.Printf("Reset completed for owner %s (unlink=%v)", ownerID, unlinkCredential)
	return nil
}

func currencyOrDefault(code *string) string {
	if code == nil || *code == "" {
		return "USD"
	}
	return *code
}

func institutionLabel(cred *credential.LinkedCredential) string {
	if cred.Institution != nil && *cred.Institution != "" {
		return *cred.Institution
	}
	return cred.ItemID
}

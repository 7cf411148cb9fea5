package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultBaseURL = "https://sandbox.plaid.com"
	defaultTimeout = 30 * time.Second

	linkTokenPath    = "/link/token/create"
	exchangePath     = "/item/public_token/exchange"
	transactionsPath = "/transactions/get"
)

// ErrTimeout reports that the aggregator did not answer within the
// client timeout. Callers map it to a gateway-timeout, everything else
// upstream surfaces as *UpstreamError.
var ErrTimeout = errors.New("aggregator request timed out")

// UpstreamError is a non-2xx reply from the aggregator, carrying the
// provider's machine-readable error envelope.
type UpstreamError struct {
	Status    int    `json:"status"`
	ErrorType string `json:"error_type"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"error_message"`
	RequestID string `json:"request_id"`
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("aggregator error (status %d): %s %s - %s", e.Status, e.ErrorType, e.ErrorCode, e.Message)
}

// Client handles communication with the transaction aggregator API.
// It is stateless: every call carries the credentials it needs.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a new aggregator API client. An empty baseURL falls
// back to the provider sandbox.
func NewClient(baseURL, clientID, secret string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL:  baseURL,
		clientID: clientID,
		secret:   secret,
	}
}

// Account represents an account as reported by the aggregator.
type Account struct {
	AccountID    string          `json:"account_id"`
	Name         string          `json:"name"`
	OfficialName *string         `json:"official_name"`
	Type         string          `json:"type"`
	Subtype      string          `json:"subtype"`
	Mask         *string         `json:"mask"`
	Balances     AccountBalances `json:"balances"`
}

// AccountBalances carries the balance block of an account.
type AccountBalances struct {
	Available       *decimal.Decimal `json:"available"`
	Current         decimal.Decimal  `json:"current"`
	ISOCurrencyCode *string          `json:"iso_currency_code"`
}

// Transaction represents a transaction as reported by the aggregator.
// Amounts follow the provider convention: positive is money leaving the
// account, negative is money coming in.
type Transaction struct {
	TransactionID   string          `json:"transaction_id"`
	AccountID       string          `json:"account_id"`
	Amount          decimal.Decimal `json:"amount"`
	ISOCurrencyCode *string         `json:"iso_currency_code"`
	DateString      string          `json:"date"` // "2006-01-02" format
	AuthorizedDate  *string         `json:"authorized_date"`
	Name            string          `json:"name"`
	MerchantName    *string         `json:"merchant_name"`
	Category        []string        `json:"category"`
	Pending         bool            `json:"pending"`
}

// GetDate parses and returns the transaction date.
func (t *Transaction) GetDate() (time.Time, error) {
	parsed, err := time.Parse("2006-01-02", t.DateString)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date '%s': %w", t.DateString, err)
	}
	return parsed, nil
}

// GetAuthorizedDate parses the authorization date, nil when the
// provider did not report one.
func (t *Transaction) GetAuthorizedDate() (*time.Time, error) {
	if t.AuthorizedDate == nil || *t.AuthorizedDate == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", *t.AuthorizedDate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse authorized date '%s': %w", *t.AuthorizedDate, err)
	}
	return &parsed, nil
}

// PrimaryCategory returns the most specific category the provider
// assigned, or empty when the transaction is uncategorized.
func (t *Transaction) PrimaryCategory() string {
	if len(t.Category) == 0 {
		return ""
	}
	return t.Category[len(t.Category)-1]
}

// TransactionsPage is one page of the transactions listing. The caller
// advances Offset until a page comes back empty or the offset reaches
// TotalTransactions.
type TransactionsPage struct {
	Accounts          []Account     `json:"accounts"`
	Transactions      []Transaction `json:"transactions"`
	TotalTransactions int           `json:"total_transactions"`
	RequestID         string        `json:"request_id"`
}

// FetchParams addresses one transactions page for one access token.
type FetchParams struct {
	AccessToken string
	From        time.Time
	To          time.Time
	Count       int
	Offset      int
}

// ExchangeResult is the outcome of trading a public token for a
// long-lived access token.
type ExchangeResult struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
	RequestID   string `json:"request_id"`
}

type linkTokenRequest struct {
	ClientID     string        `json:"client_id"`
	Secret       string        `json:"secret"`
	ClientName   string        `json:"client_name"`
	Language     string        `json:"language"`
	CountryCodes []string      `json:"country_codes"`
	Products     []string      `json:"products"`
	User         linkTokenUser `json:"user"`
}

type linkTokenUser struct {
	ClientUserID string `json:"client_user_id"`
}

// LinkTokenResponse is the short-lived token the client app uses to
// open the account-linking flow.
type LinkTokenResponse struct {
	LinkToken  string    `json:"link_token"`
	Expiration time.Time `json:"expiration"`
	RequestID  string    `json:"request_id"`
}

type exchangeRequest struct {
	ClientID    string `json:"client_id"`
	Secret      string `json:"secret"`
	PublicToken string `json:"public_token"`
}

type transactionsRequest struct {
	ClientID    string              `json:"client_id"`
	Secret      string              `json:"secret"`
	AccessToken string              `json:"access_token"`
	StartDate   string              `json:"start_date"`
	EndDate     string              `json:"end_date"`
	Options     transactionOptions `json:"options"`
}

type transactionOptions struct {
	Count  int `json:"count"`
	Offset int `json:"offset"`
}

// CreateLinkToken requests a short-lived link token for the given user,
// used by the app to open the account-linking flow.
func (c *Client) CreateLinkToken(ctx context.Context, ownerID string) (*LinkTokenResponse, error) {
	payload := linkTokenRequest{
		ClientID:     c.clientID,
		Secret:       c.secret,
		ClientName:   "Moneta",
		Language:     "en",
		CountryCodes: []string{"US"},
		Products:     []string{"transactions"},
		User:         linkTokenUser{ClientUserID: ownerID},
	}

	var resp LinkTokenResponse
	if err := c.post(ctx, linkTokenPath, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExchangePublicToken trades the public token produced by the linking
// flow for the access token that authorizes data pulls.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResult, error) {
	payload := exchangeRequest{
		ClientID:    c.clientID,
		Secret:      c.secret,
		PublicToken: publicToken,
	}

	var resp ExchangeResult
	if err := c.post(ctx, exchangePath, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchTransactions fetches one page of transactions together with the
// current account snapshot for the token's item.
func (c *Client) FetchTransactions(ctx context.Context, params FetchParams) (*TransactionsPage, error) {
	payload := transactionsRequest{
		ClientID:    c.clientID,
		Secret:      c.secret,
		AccessToken: params.AccessToken,
		StartDate:   params.From.Format("2006-01-02"),
		EndDate:     params.To.Format("2006-01-02"),
		Options: transactionOptions{
			Count:  params.Count,
			Offset: params.Offset,
		},
	}

	var resp TransactionsPage
	if err := c.post(ctx, transactionsPath, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return ErrTimeout
		}
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		upstream := &UpstreamError{Status: resp.StatusCode}
		if err := json.Unmarshal(raw, upstream); err != nil {
			upstream.Message = string(raw)
		}
		return upstream
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

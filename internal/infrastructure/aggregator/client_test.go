package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestFetchTransactions_DecodesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"accounts": [
				{"account_id": "acc-1", "name": "Checking", "type": "depository", "subtype": "checking",
				 "mask": "0000", "balances": {"available": 100.50, "current": 110.25, "iso_currency_code": "USD"}}
			],
			"transactions": [
				{"transaction_id": "txn-1", "account_id": "acc-1", "amount": 12.34,
				 "iso_currency_code": "USD", "date": "2024-03-05", "authorized_date": "2024-03-04",
				 "name": "Coffee Shop", "merchant_name": "Blue Bottle",
				 "category": ["Food and Drink", "Coffee"], "pending": false}
			],
			"total_transactions": 1,
			"request_id": "req-abc"
		}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "client-id", "secret")
	page, err := c.FetchTransactions(context.Background(), FetchParams{
		AccessToken: "access-token",
		From:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		To:          time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Count:       100,
	})
	if err != nil {
		t.Fatalf("FetchTransactions() failed: %v", err)
	}

	if page.TotalTransactions != 1 {
		t.Errorf("TotalTransactions = %d, want 1", page.TotalTransactions)
	}
	if page.RequestID != "req-abc" {
		t.Errorf("RequestID = %q, want %q", page.RequestID, "req-abc")
	}
	if len(page.Accounts) != 1 || page.Accounts[0].AccountID != "acc-1" {
		t.Fatalf("unexpected accounts: %+v", page.Accounts)
	}
	if !page.Accounts[0].Balances.Current.Equal(decimal.NewFromFloat(110.25)) {
		t.Errorf("current balance = %s, want 110.25", page.Accounts[0].Balances.Current)
	}

	if len(page.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(page.Transactions))
	}
	txn := page.Transactions[0]
	if !txn.Amount.Equal(decimal.NewFromFloat(12.34)) {
		t.Errorf("amount = %s, want 12.34", txn.Amount)
	}
	date, err := txn.GetDate()
	if err != nil {
		t.Fatalf("GetDate() failed: %v", err)
	}
	if want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC); !date.Equal(want) {
		t.Errorf("date = %s, want %s", date, want)
	}
	if got := txn.PrimaryCategory(); got != "Coffee" {
		t.Errorf("PrimaryCategory() = %q, want %q", got, "Coffee")
	}
	authorized, err := txn.GetAuthorizedDate()
	if err != nil {
		t.Fatalf("GetAuthorizedDate() failed: %v", err)
	}
	if want := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC); authorized == nil || !authorized.Equal(want) {
		t.Errorf("authorized date = %v, want %s", authorized, want)
	}
}

func TestFetchTransactions_SendsWindowAndPaging(t *testing.T) {
	var captured transactionsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"accounts": [], "transactions": [], "total_transactions": 0, "request_id": "req-1"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "client-id", "secret")
	_, err := c.FetchTransactions(context.Background(), FetchParams{
		AccessToken: "access-token",
		From:        time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		To:          time.Date(2024, 2, 14, 10, 30, 0, 0, time.UTC),
		Count:       250,
		Offset:      500,
	})
	if err != nil {
		t.Fatalf("FetchTransactions() failed: %v", err)
	}

	if captured.ClientID != "client-id" || captured.Secret != "secret" {
		t.Errorf("credentials not sent: %+v", captured)
	}
	if captured.AccessToken != "access-token" {
		t.Errorf("AccessToken = %q, want %q", captured.AccessToken, "access-token")
	}
	if captured.StartDate != "2024-01-15" || captured.EndDate != "2024-02-14" {
		t.Errorf("window = %s..%s, want 2024-01-15..2024-02-14", captured.StartDate, captured.EndDate)
	}
	if captured.Options.Count != 250 || captured.Options.Offset != 500 {
		t.Errorf("paging = %+v, want count 250 offset 500", captured.Options)
	}
}

func TestFetchTransactions_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{
			"error_type": "INVALID_INPUT",
			"error_code": "INVALID_ACCESS_TOKEN",
			"error_message": "could not find matching access token",
			"request_id": "req-err"
		}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "client-id", "secret")
	_, err := c.FetchTransactions(context.Background(), FetchParams{AccessToken: "bogus"})
	if err == nil {
		t.Fatal("FetchTransactions() expected error, got nil")
	}

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("error = %v, want *UpstreamError", err)
	}
	if upstream.Status != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", upstream.Status, http.StatusBadRequest)
	}
	if upstream.ErrorType != "INVALID_INPUT" || upstream.ErrorCode != "INVALID_ACCESS_TOKEN" {
		t.Errorf("unexpected error envelope: %+v", upstream)
	}
	if upstream.RequestID != "req-err" {
		t.Errorf("RequestID = %q, want %q", upstream.RequestID, "req-err")
	}
}

func TestFetchTransactions_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream exploded")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "client-id", "secret")
	_, err := c.FetchTransactions(context.Background(), FetchParams{AccessToken: "token"})

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("error = %v, want *UpstreamError", err)
	}
	if upstream.Status != http.StatusBadGateway {
		t.Errorf("Status = %d, want %d", upstream.Status, http.StatusBadGateway)
	}
	if upstream.Message != "upstream exploded" {
		t.Errorf("Message = %q, want raw body", upstream.Message)
	}
}

func TestFetchTransactions_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := &Client{
		httpClient: &http.Client{Timeout: 20 * time.Millisecond},
		baseURL:    srv.URL,
	}
	_, err := c.FetchTransactions(context.Background(), FetchParams{AccessToken: "token"})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v, want %v", err, ErrTimeout)
	}
}

func TestExchangePublicToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req exchangeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if req.PublicToken != "public-token-xyz" {
			t.Errorf("PublicToken = %q, want %q", req.PublicToken, "public-token-xyz")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "access-token-123", "item_id": "item-9", "request_id": "req-2"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "client-id", "secret")
	result, err := c.ExchangePublicToken(context.Background(), "public-token-xyz")
	if err != nil {
		t.Fatalf("ExchangePublicToken() failed: %v", err)
	}
	if result.AccessToken != "access-token-123" || result.ItemID != "item-9" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestCreateLinkToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req linkTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if req.User.ClientUserID != "user-7" {
			t.Errorf("ClientUserID = %q, want %q", req.User.ClientUserID, "user-7")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"link_token": "link-token-abc", "expiration": "2026-03-01T12:00:00Z", "request_id": "req-3"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "client-id", "secret")
	token, err := c.CreateLinkToken(context.Background(), "user-7")
	if err != nil {
		t.Fatalf("CreateLinkToken() failed: %v", err)
	}
	if token.LinkToken != "link-token-abc" {
		t.Errorf("link token = %q, want %q", token.LinkToken, "link-token-abc")
	}
	if token.RequestID != "req-3" {
		t.Errorf("request id = %q, want %q", token.RequestID, "req-3")
	}
}

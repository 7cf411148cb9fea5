package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"moneta/internal/domain/credential"
	"moneta/internal/infrastructure/aggregator"
)

type mockAggregatorClient struct {
	createLinkTokenFunc     func(ctx context.Context, ownerID string) (*aggregator.LinkTokenResponse, error)
	exchangePublicTokenFunc func(ctx context.Context, publicToken string) (*aggregator.ExchangeResult, error)
	fetchTransactionsFunc   func(ctx context.Context, params aggregator.FetchParams) (*aggregator.TransactionsPage, error)
}

func (m *mockAggregatorClient) CreateLinkToken(ctx context.Context, ownerID string) (*aggregator.LinkTokenResponse, error) {
	return m.createLinkTokenFunc(ctx, ownerID)
}

func (m *mockAggregatorClient) ExchangePublicToken(ctx context.Context, publicToken string) (*aggregator.ExchangeResult, error) {
	return m.exchangePublicTokenFunc(ctx, publicToken)
}

func (m *mockAggregatorClient) FetchTransactions(ctx context.Context, params aggregator.FetchParams) (*aggregator.TransactionsPage, error) {
	return m.fetchTransactionsFunc(ctx, params)
}

type mockSealer struct {
	encryptFunc func(ctx context.Context, plaintext string) (string, error)
}

func (m *mockSealer) Encrypt(ctx context.Context, plaintext string) (string, error) {
	return m.encryptFunc(ctx, plaintext)
}

type mockCredentialRepo struct {
	upsertFunc func(ctx context.Context, params credential.UpsertCredentialParams) (*credential.LinkedCredential, error)
}

func (m *mockCredentialRepo) Upsert(ctx context.Context, params credential.UpsertCredentialParams) (*credential.LinkedCredential, error) {
	return m.upsertFunc(ctx, params)
}

func (m *mockCredentialRepo) ListByOwner(ctx context.Context, ownerID string) ([]*credential.LinkedCredential, error) {
	return nil, nil
}

func (m *mockCredentialRepo) ListAll(ctx context.Context) ([]*credential.LinkedCredential, error) {
	return nil, nil
}

func (m *mockCredentialRepo) UpdateTokenBlob(ctx context.Context, ownerID, itemID, blob string) error {
	return nil
}

func TestHandleCreateLinkToken(t *testing.T) {
	client := &mockAggregatorClient{
		createLinkTokenFunc: func(ctx context.Context, ownerID string) (*aggregator.LinkTokenResponse, error) {
			if ownerID != "owner-1" {
				t.Errorf("ownerID = %q, want owner-1", ownerID)
			}
			return &aggregator.LinkTokenResponse{
				LinkToken:  "link-sandbox-abc",
				Expiration: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
				RequestID:  "req-1",
			}, nil
		},
	}
	handler := NewCredentialHandler(client, nil, nil)

	req := authenticatedRequest(http.MethodPost, "/credential/link-token", "")
	rr := httptest.NewRecorder()
	handler.HandleCreateLinkToken(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body linkTokenResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.LinkToken != "link-sandbox-abc" {
		t.Errorf("linkToken = %q, want link-sandbox-abc", body.LinkToken)
	}
	if body.RequestID != "req-1" {
		t.Errorf("requestId = %q, want req-1", body.RequestID)
	}
}

func TestHandleExchange(t *testing.T) {
	client := &mockAggregatorClient{
		exchangePublicTokenFunc: func(ctx context.Context, publicToken string) (*aggregator.ExchangeResult, error) {
			if publicToken != "public-sandbox-xyz" {
				t.Errorf("publicToken = %q", publicToken)
			}
			return &aggregator.ExchangeResult{
				AccessToken: "access-sandbox-secret",
				ItemID:      "item-42",
				RequestID:   "req-9",
			}, nil
		},
	}
	sealer := &mockSealer{
		encryptFunc: func(ctx context.Context, plaintext string) (string, error) {
			if plaintext != "access-sandbox-secret" {
				t.Errorf("sealed plaintext = %q, want the exchanged access token", plaintext)
			}
			return "v1:gcm:sealed", nil
		},
	}
	var stored credential.UpsertCredentialParams
	repo := &mockCredentialRepo{
		upsertFunc: func(ctx context.Context, params credential.UpsertCredentialParams) (*credential.LinkedCredential, error) {
			stored = params
			return &credential.LinkedCredential{
				OwnerID:   params.OwnerID,
				ItemID:    params.ItemID,
				TokenBlob: params.TokenBlob,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}, nil
		},
	}
	handler := NewCredentialHandler(client, sealer, repo)

	req := authenticatedRequest(http.MethodPost, "/credential/exchange",
		`{"publicToken":"public-sandbox-xyz","institution":"Demo Bank"}`)
	rr := httptest.NewRecorder()
	handler.HandleExchange(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}

	var resp exchangeResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "LINKED" || resp.ItemID != "item-42" || resp.RequestID != "req-9" {
		t.Errorf("unexpected response: %+v", resp)
	}

	if stored.OwnerID != "owner-1" {
		t.Errorf("stored owner = %q, want owner-1", stored.OwnerID)
	}
	if stored.TokenBlob != "v1:gcm:sealed" {
		t.Errorf("stored blob = %q, want the sealed form", stored.TokenBlob)
	}
	if stored.Institution == nil || *stored.Institution != "Demo Bank" {
		t.Errorf("stored institution = %v, want Demo Bank", stored.Institution)
	}
}

func TestHandleExchangeMissingPublicToken(t *testing.T) {
	handler := NewCredentialHandler(&mockAggregatorClient{}, nil, nil)

	req := authenticatedRequest(http.MethodPost, "/credential/exchange", `{}`)
	rr := httptest.NewRecorder()
	handler.HandleExchange(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if code := decodeErrorCode(t, rr); code != "INVALID_REQUEST" {
		t.Errorf("error code = %q, want INVALID_REQUEST", code)
	}
}

func TestHandleExchangeSealerFailure(t *testing.T) {
	client := &mockAggregatorClient{
		exchangePublicTokenFunc: func(ctx context.Context, publicToken string) (*aggregator.ExchangeResult, error) {
			return &aggregator.ExchangeResult{AccessToken: "access", ItemID: "item-1"}, nil
		},
	}
	sealer := &mockSealer{
		encryptFunc: func(ctx context.Context, plaintext string) (string, error) {
			return "", errors.New("no key material")
		},
	}
	upsertCalled := false
	repo := &mockCredentialRepo{
		upsertFunc: func(ctx context.Context, params credential.UpsertCredentialParams) (*credential.LinkedCredential, error) {
			upsertCalled = true
			return nil, nil
		},
	}
	handler := NewCredentialHandler(client, sealer, repo)

	req := authenticatedRequest(http.MethodPost, "/credential/exchange", `{"publicToken":"pt"}`)
	rr := httptest.NewRecorder()
	handler.HandleExchange(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if code := decodeErrorCode(t, rr); code != "CONFIGURATION_ERROR" {
		t.Errorf("error code = %q, want CONFIGURATION_ERROR", code)
	}
	if upsertCalled {
		t.Error("credential must not be stored when sealing fails")
	}
}

func TestHandleExchangeUpstreamErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "timeout",
			err:        aggregator.ErrTimeout,
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   "AGGREGATOR_TIMEOUT",
		},
		{
			name:       "provider error",
			err:        &aggregator.UpstreamError{Status: 400, Message: "INVALID_PUBLIC_TOKEN"},
			wantStatus: http.StatusBadGateway,
			wantCode:   "AGGREGATOR_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockAggregatorClient{
				exchangePublicTokenFunc: func(ctx context.Context, publicToken string) (*aggregator.ExchangeResult, error) {
					return nil, tt.err
				},
			}
			handler := NewCredentialHandler(client, nil, nil)

			req := authenticatedRequest(http.MethodPost, "/credential/exchange", `{"publicToken":"pt"}`)
			rr := httptest.NewRecorder()
			handler.HandleExchange(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if code := decodeErrorCode(t, rr); code != tt.wantCode {
				t.Errorf("error code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

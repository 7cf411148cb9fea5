package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"moneta/internal/domain/syncer"
	"moneta/internal/infrastructure/aggregator"
	"moneta/internal/infrastructure/vault"
	"moneta/internal/shared/middleware"
)

type mockSynchronizer struct {
	synchronizeFunc func(ctx context.Context, ownerID string, opts syncer.Options) (*syncer.Result, error)
	resetFunc       func(ctx context.Context, ownerID string, unlinkCredential bool) error
}

func (m *mockSynchronizer) Synchronize(ctx context.Context, ownerID string, opts syncer.Options) (*syncer.Result, error) {
	return m.synchronizeFunc(ctx, ownerID, opts)
}

func (m *mockSynchronizer) Reset(ctx context.Context, ownerID string, unlinkCredential bool) error {
	return m.resetFunc(ctx, ownerID, unlinkCredential)
}

func authenticatedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := context.WithValue(req.Context(), middleware.OwnerIDKey, "owner-1")
	return req.WithContext(ctx)
}

func decodeErrorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body.Error.Code
}

func TestHandleSync(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	svc := &mockSynchronizer{
		synchronizeFunc: func(ctx context.Context, ownerID string, opts syncer.Options) (*syncer.Result, error) {
			if ownerID != "owner-1" {
				t.Errorf("ownerID = %q, want owner-1", ownerID)
			}
			if !opts.ForceFullSync {
				t.Error("expected forceFullSync to be decoded from the body")
			}
			return &syncer.Result{
				Status:   syncer.StatusAccepted,
				From:     now.AddDate(0, 0, -90),
				To:       now,
				Items:    1,
				Fetched:  12,
				Upserted: 12,
			}, nil
		},
	}
	handler := NewSyncHandler(svc)

	req := authenticatedRequest(http.MethodPost, "/transactions/sync", `{"forceFullSync":true}`)
	rr := httptest.NewRecorder()
	handler.HandleSync(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rr.Code)
	}

	var result syncer.Result
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Status != syncer.StatusAccepted || result.Upserted != 12 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestHandleSyncEmptyBody(t *testing.T) {
	svc := &mockSynchronizer{
		synchronizeFunc: func(ctx context.Context, ownerID string, opts syncer.Options) (*syncer.Result, error) {
			if opts != (syncer.Options{}) {
				t.Errorf("opts = %+v, want zero value", opts)
			}
			return &syncer.Result{Status: syncer.StatusAccepted}, nil
		},
	}
	handler := NewSyncHandler(svc)

	req := authenticatedRequest(http.MethodPost, "/transactions/sync", "")
	rr := httptest.NewRecorder()
	handler.HandleSync(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rr.Code)
	}
}

func TestHandleSyncUnauthenticated(t *testing.T) {
	handler := NewSyncHandler(&mockSynchronizer{})

	req := httptest.NewRequest(http.MethodPost, "/transactions/sync", nil)
	rr := httptest.NewRecorder()
	handler.HandleSync(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestHandleSyncErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "vault not configured",
			err:        vault.ErrNoKeyForMode,
			wantStatus: http.StatusInternalServerError,
			wantCode:   "CONFIGURATION_ERROR",
		},
		{
			name:       "aggregator timeout",
			err:        aggregator.ErrTimeout,
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   "AGGREGATOR_TIMEOUT",
		},
		{
			name:       "aggregator failure",
			err:        &aggregator.UpstreamError{Status: 500, Message: "INTERNAL_SERVER_ERROR"},
			wantStatus: http.StatusBadGateway,
			wantCode:   "AGGREGATOR_ERROR",
		},
		{
			name:       "bad window",
			err:        syncer.ErrInvalidWindow,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockSynchronizer{
				synchronizeFunc: func(ctx context.Context, ownerID string, opts syncer.Options) (*syncer.Result, error) {
					return nil, tt.err
				},
			}
			handler := NewSyncHandler(svc)

			req := authenticatedRequest(http.MethodPost, "/transactions/sync", "{}")
			rr := httptest.NewRecorder()
			handler.HandleSync(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if code := decodeErrorCode(t, rr); code != tt.wantCode {
				t.Errorf("error code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestHandleReset(t *testing.T) {
	var gotUnlink bool
	svc := &mockSynchronizer{
		resetFunc: func(ctx context.Context, ownerID string, unlinkCredential bool) error {
			gotUnlink = unlinkCredential
			return nil
		},
	}
	handler := NewSyncHandler(svc)

	req := authenticatedRequest(http.MethodPost, "/transactions/reset", `{"unlinkCredential":true}`)
	rr := httptest.NewRecorder()
	handler.HandleReset(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rr.Code)
	}
	if !gotUnlink {
		t.Error("unlinkCredential was not decoded from the body")
	}
}

func TestHandleSyncMethodNotAllowed(t *testing.T) {
	handler := NewSyncHandler(&mockSynchronizer{})

	req := authenticatedRequest(http.MethodGet, "/transactions/sync", "")
	rr := httptest.NewRecorder()
	handler.HandleSync(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rr.Code)
	}
}

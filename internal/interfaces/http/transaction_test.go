package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"moneta/internal/domain/transaction"
)

func TestParseListFilter(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr bool
		check   func(t *testing.T, filter transaction.ListFilter)
	}{
		{
			name:  "empty query",
			query: "",
			check: func(t *testing.T, filter transaction.ListFilter) {
				if filter != (transaction.ListFilter{}) {
					t.Errorf("filter = %+v, want zero value", filter)
				}
			},
		},
		{
			name:  "date range with paging",
			query: "from=2024-05-01&to=2024-05-31&limit=25&offset=50",
			check: func(t *testing.T, filter transaction.ListFilter) {
				if filter.From == nil || filter.From.Format("2006-01-02") != "2024-05-01" {
					t.Errorf("from = %v", filter.From)
				}
				if filter.To == nil || filter.To.Format("2006-01-02") != "2024-05-31" {
					t.Errorf("to = %v", filter.To)
				}
				if filter.Limit != 25 || filter.Offset != 50 {
					t.Errorf("limit = %d, offset = %d", filter.Limit, filter.Offset)
				}
			},
		},
		{
			name:  "account filter",
			query: "accountId=0d4b2a6e-8f3c-4e21-9a57-1c2d3e4f5a6b",
			check: func(t *testing.T, filter transaction.ListFilter) {
				if filter.AccountID == nil || filter.AccountID.String() != "0d4b2a6e-8f3c-4e21-9a57-1c2d3e4f5a6b" {
					t.Errorf("accountID = %v", filter.AccountID)
				}
			},
		},
		{
			name:    "malformed accountId",
			query:   "accountId=not-a-uuid",
			wantErr: true,
		},
		{
			name:    "malformed from",
			query:   "from=05/01/2024",
			wantErr: true,
		},
		{
			name:    "malformed to",
			query:   "to=yesterday",
			wantErr: true,
		},
		{
			name:  "non-positive paging is ignored",
			query: "limit=-5&offset=-1",
			check: func(t *testing.T, filter transaction.ListFilter) {
				if filter.Limit != 0 || filter.Offset != 0 {
					t.Errorf("limit = %d, offset = %d, want both 0", filter.Limit, filter.Offset)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/transactions?"+tt.query, nil)
			filter, err := parseListFilter(req)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, filter)
		})
	}
}

func TestHandleListTransactionsRequiresAuth(t *testing.T) {
	handler := NewTransactionHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
	rr := httptest.NewRecorder()
	handler.HandleListTransactions(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestHandleSummaryRejectsBadDates(t *testing.T) {
	handler := NewTransactionHandler(nil)

	tests := []struct {
		name  string
		query string
	}{
		{"malformed from", "from=notadate"},
		{"malformed month", "month=2024-13"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := authenticatedRequest(http.MethodGet, "/summary?"+tt.query, "")
			rr := httptest.NewRecorder()
			handler.HandleSummary(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			if code := decodeErrorCode(t, rr); code != "INVALID_REQUEST" {
				t.Errorf("error code = %q, want INVALID_REQUEST", code)
			}
		})
	}
}

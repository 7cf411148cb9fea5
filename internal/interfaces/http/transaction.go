package http

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"moneta/internal/domain/transaction"
	"moneta/internal/shared/middleware"
)

const summaryLookbackDays = 30

type TransactionHandler struct {
	transactions *transaction.Service
}

func NewTransactionHandler(transactions *transaction.Service) *TransactionHandler {
	return &TransactionHandler{transactions: transactions}
}

// HandleListTransactions returns the owner's transactions, newest
// first, with optional account, from/to date filters and pagination.
func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ownerID, ok := middleware.OwnerID(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	filter, err := parseListFilter(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	txns, err := h.transactions.ListTransactions(r.Context(), ownerID, filter)
	if err != nil {
		log.Printf("Error listing transactions for owner %s: %v", ownerID, err)
		respondError(w, r, http.StatusInternalServerError, "INTERNAL", "Failed to list transactions")
		return
	}
	if txns == nil {
		txns = []*transaction.Transaction{}
	}

	total, err := h.transactions.CountTransactions(r.Context(), ownerID)
	if err != nil {
		log.Printf("Error counting transactions for owner %s: %v", ownerID, err)
		respondError(w, r, http.StatusInternalServerError, "INTERNAL", "Failed to count transactions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"transactions": txns,
		"total":        total,
	})
}

// HandleSummary returns the spending breakdown for a window. The window
// is a calendar month when month=YYYY-MM is given, otherwise the
// trailing thirty days with optional from/to overrides.
func (h *TransactionHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ownerID, ok := middleware.OwnerID(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	to := time.Now()
	from := to.AddDate(0, 0, -summaryLookbackDays)

	if raw := r.URL.Query().Get("month"); raw != "" {
		parsed, err := time.Parse("2006-01", raw)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "month must be YYYY-MM")
			return
		}
		from = parsed
		to = parsed.AddDate(0, 1, 0)
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "from must be YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "to must be YYYY-MM-DD")
			return
		}
		to = parsed
	}

	summary, err := h.transactions.GetSummary(r.Context(), ownerID, from, to)
	if err != nil {
		log.Printf("Error building summary for owner %s: %v", ownerID, err)
		respondError(w, r, http.StatusInternalServerError, "INTERNAL", "Failed to build summary")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

func parseListFilter(r *http.Request) (transaction.ListFilter, error) {
	var filter transaction.ListFilter
	query := r.URL.Query()

	if raw := query.Get("accountId"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return filter, fmt.Errorf("accountId must be a valid UUID")
		}
		filter.AccountID = &parsed
	}
	if raw := query.Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, fmt.Errorf("from must be YYYY-MM-DD")
		}
		filter.From = &parsed
	}
	if raw := query.Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, fmt.Errorf("to must be YYYY-MM-DD")
		}
		filter.To = &parsed
	}
	if raw := query.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			filter.Limit = parsed
		}
	}
	if raw := query.Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			filter.Offset = parsed
		}
	}
	return filter, nil
}

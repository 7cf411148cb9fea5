package http

import (
	"log"
	"net/http"

	"moneta/internal/domain/account"
	"moneta/internal/shared/middleware"
)

type AccountHandler struct {
	accounts *account.Service
}

func NewAccountHandler(accounts *account.Service) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// HandleListAccounts returns the owner's accounts with both the
// provider-reported and locally derived balances.
func (h *AccountHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ownerID, ok := middleware.OwnerID(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	accounts, err := h.accounts.ListAccounts(r.Context(), ownerID)
	if err != nil {
		log.Printf("Error listing accounts for owner %s: %v", ownerID, err)
		respondError(w, r, http.StatusInternalServerError, "INTERNAL", "Failed to list accounts")
		return
	}
	if accounts == nil {
		accounts = []*account.Account{}
	}

	respondJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

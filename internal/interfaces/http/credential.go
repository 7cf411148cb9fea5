package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"moneta/internal/domain/credential"
	"moneta/internal/infrastructure/aggregator"
	"moneta/internal/shared/middleware"
)

// TokenSealer encrypts access tokens into storage blobs.
type TokenSealer interface {
	Encrypt(ctx context.Context, plaintext string) (string, error)
}

type CredentialHandler struct {
	client aggregator.ClientInterface
	sealer TokenSealer
	creds  credential.Repository
}

func NewCredentialHandler(client aggregator.ClientInterface, sealer TokenSealer, creds credential.Repository) *CredentialHandler {
	return &CredentialHandler{client: client, sealer: sealer, creds: creds}
}

// HandleCreateLinkToken mints a short-lived link token the client app
// uses to start the institution linking flow.
func (h *CredentialHandler) HandleCreateLinkToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ownerID, ok := middleware.OwnerID(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	token, err := h.client.CreateLinkToken(r.Context(), ownerID)
	if err != nil {
		h.respondUpstreamError(w, r, "create link token", ownerID, err)
		return
	}

	respondJSON(w, http.StatusOK, linkTokenResponse{
		LinkToken:  token.LinkToken,
		Expiration: token.Expiration,
		RequestID:  token.RequestID,
	})
}

type linkTokenResponse struct {
	LinkToken  string    `json:"linkToken"`
	Expiration time.Time `json:"expiration"`
	RequestID  string    `json:"requestId,omitempty"`
}

type exchangeRequest struct {
	PublicToken string  `json:"publicToken"`
	Institution *string `json:"institution,omitempty"`
}

type exchangeResponse struct {
	ItemID    string `json:"itemId"`
	Status    string `json:"status"`
	RequestID string `json:"requestId,omitempty"`
}

// HandleExchange trades a public token for a long-lived access token,
// seals it into the vault and links the credential to the owner. The
// plaintext access token never leaves this function.
func (h *CredentialHandler) HandleExchange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ownerID, ok := middleware.OwnerID(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req exchangeRequest
	if err := decodeJSON(r, &req); err != nil || req.PublicToken == "" {
		respondError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "publicToken is required")
		return
	}

	result, err := h.client.ExchangePublicToken(r.Context(), req.PublicToken)
	if err != nil {
		h.respondUpstreamError(w, r, "exchange public token", ownerID, err)
		return
	}

	blob, err := h.sealer.Encrypt(r.Context(), result.AccessToken)
	if err != nil {
		log.Printf("Error sealing access token for owner %s: %v", ownerID, err)
		respondError(w, r, http.StatusInternalServerError, "CONFIGURATION_ERROR", "Credential vault is not configured")
		return
	}

	if _, err := h.creds.Upsert(r.Context(), credential.UpsertCredentialParams{
		OwnerID:     ownerID,
		ItemID:      result.ItemID,
		Institution: req.Institution,
		TokenBlob:   blob,
	}); err != nil {
		log.Printf("Error storing credential for owner %s: %v", ownerID, err)
		respondError(w, r, http.StatusInternalServerError, "INTERNAL", "Failed to store credential")
		return
	}

	respondJSON(w, http.StatusOK, exchangeResponse{
		ItemID:    result.ItemID,
		Status:    "LINKED",
		RequestID: result.RequestID,
	})
}

func (h *CredentialHandler) respondUpstreamError(w http.ResponseWriter, r *http.Request, op, ownerID string, err error) {
	log.Printf("Error during %s for owner %s: %v", op, ownerID, err)

	var upstream *aggregator.UpstreamError
	switch {
	case errors.Is(err, aggregator.ErrTimeout):
		respondError(w, r, http.StatusGatewayTimeout, "AGGREGATOR_TIMEOUT", "The transaction provider did not respond in time")
	case errors.As(err, &upstream):
		respondError(w, r, http.StatusBadGateway, "AGGREGATOR_ERROR", upstream.Message)
	default:
		respondError(w, r, http.StatusInternalServerError, "INTERNAL", "Aggregator request failed")
	}
}

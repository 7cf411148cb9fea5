package http

import (
	"context"
	"errors"
	"log"
	"net/http"

	"moneta/internal/domain/syncer"
	"moneta/internal/infrastructure/aggregator"
	"moneta/internal/infrastructure/vault"
	"moneta/internal/shared/middleware"
)

// Synchronizer is the slice of the sync service the handlers call.
type Synchronizer interface {
	Synchronize(ctx context.Context, ownerID string, opts syncer.Options) (*syncer.Result, error)
	Reset(ctx context.Context, ownerID string, unlinkCredential bool) error
}

type SyncHandler struct {
	syncer Synchronizer
}

func NewSyncHandler(svc Synchronizer) *SyncHandler {
	return &SyncHandler{syncer: svc}
}

// HandleSync runs one synchronization pass for the authenticated owner
// and reports its counters.
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ownerID, ok := middleware.OwnerID(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var opts syncer.Options
	if err := decodeJSON(r, &opts); err != nil {
		respondError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	result, err := h.syncer.Synchronize(r.Context(), ownerID, opts)
	if err != nil {
		h.respondSyncError(w, r, ownerID, err)
		return
	}

	respondJSON(w, http.StatusAccepted, syncResponse{Result: result, TraceID: traceID(r)})
}

type syncResponse struct {
	*syncer.Result
	TraceID string `json:"traceId,omitempty"`
}

type resetRequest struct {
	UnlinkCredential bool `json:"unlinkCredential"`
}

// HandleReset wipes the owner's imported data, optionally unlinking
// their credentials too.
func (h *SyncHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ownerID, ok := middleware.OwnerID(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req resetRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	if err := h.syncer.Reset(r.Context(), ownerID, req.UnlinkCredential); err != nil {
		log.Printf("Error resetting owner %s: %v", ownerID, err)
		respondError(w, r, http.StatusInternalServerError, "INTERNAL", "Failed to reset data")
		return
	}

	respondJSON(w, http.StatusAccepted, resetResponse{Status: syncer.StatusAccepted, TraceID: traceID(r)})
}

type resetResponse struct {
	Status  string `json:"status"`
	TraceID string `json:"traceId,omitempty"`
}

// respondSyncError maps the sync pipeline's failure modes onto status
// codes: misconfigured key material is our fault (500), an unreachable
// or failing aggregator is upstream's (502/504), and a bad window is
// the caller's (400).
func (h *SyncHandler) respondSyncError(w http.ResponseWriter, r *http.Request, ownerID string, err error) {
	log.Printf("Sync failed for owner %s: %v", ownerID, err)

	var upstream *aggregator.UpstreamError
	switch {
	case errors.Is(err, vault.ErrNoKeyMaterial), errors.Is(err, vault.ErrNoKeyForMode):
		respondError(w, r, http.StatusInternalServerError, "CONFIGURATION_ERROR", "Credential vault is not configured for the stored credentials")
	case errors.Is(err, vault.ErrMalformedBlob), errors.Is(err, vault.ErrDecryptFailed):
		respondError(w, r, http.StatusInternalServerError, "CONFIGURATION_ERROR", "Stored credential could not be opened")
	case errors.Is(err, aggregator.ErrTimeout):
		respondError(w, r, http.StatusGatewayTimeout, "AGGREGATOR_TIMEOUT", "The transaction provider did not respond in time")
	case errors.As(err, &upstream):
		respondError(w, r, http.StatusBadGateway, "AGGREGATOR_ERROR", upstream.Message)
	case errors.Is(err, syncer.ErrInvalidWindow):
		respondError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	default:
		respondError(w, r, http.StatusInternalServerError, "INTERNAL", "Synchronization failed")
	}
}

package http

import (
	"errors"
	"log"
	"net/http"

	"moneta/internal/domain/insights"
	"moneta/internal/shared/middleware"
)

type ChatHandler struct {
	insights *insights.Service
}

func NewChatHandler(svc *insights.Service) *ChatHandler {
	return &ChatHandler{insights: svc}
}

type chatRequest struct {
	Message string `json:"message"`
}

// HandleChat answers a natural-language question about the owner's
// recent spending.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ownerID, ok := middleware.OwnerID(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil || req.Message == "" {
		respondError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "message is required")
		return
	}

	reply, err := h.insights.Chat(r.Context(), ownerID, req.Message)
	if err != nil {
		if errors.Is(err, insights.ErrNotConfigured) {
			respondError(w, r, http.StatusServiceUnavailable, "NOT_CONFIGURED", "Insights are not available on this deployment")
			return
		}
		log.Printf("Error answering chat for owner %s: %v", ownerID, err)
		respondError(w, r, http.StatusInternalServerError, "INTERNAL", "Failed to answer question")
		return
	}

	respondJSON(w, http.StatusOK, chatResponse{Reply: reply, TraceID: traceID(r)})
}

type chatResponse struct {
	Reply   string `json:"reply"`
	TraceID string `json:"traceId,omitempty"`
}

package http

import (
	"errors"
	"log"
	"net/http"

	"moneta/internal/domain/notification"
	"moneta/internal/shared/middleware"
)

type DeviceHandler struct {
	notifications *notification.Service
}

func NewDeviceHandler(svc *notification.Service) *DeviceHandler {
	return &DeviceHandler{notifications: svc}
}

type registerDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// HandleRegisterDevice registers a push notification target for the
// authenticated owner.
func (h *DeviceHandler) HandleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ownerID, ok := middleware.OwnerID(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req registerDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	token, err := h.notifications.RegisterDevice(r.Context(), notification.RegisterDeviceParams{
		OwnerID:  ownerID,
		Token:    req.Token,
		Platform: req.Platform,
	})
	if err != nil {
		if errors.Is(err, notification.ErrInvalidToken) || errors.Is(err, notification.ErrInvalidPlatform) {
			respondError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
		log.Printf("Error registering device for owner %s: %v", ownerID, err)
		respondError(w, r, http.StatusInternalServerError, "INTERNAL", "Failed to register device")
		return
	}

	respondJSON(w, http.StatusCreated, token)
}

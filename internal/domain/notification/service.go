package notification

import (
	"context"
	"fmt"
	"log"

	"moneta/internal/shared/messages"
)

// Service registers devices and fans sync lifecycle events out to the
// owner's active devices. Delivery failures are logged, never returned
// to the caller driving the sync.
type Service struct {
	repo      Repository
	messenger Messenger
	catalog   *messages.Catalog
}

// NewService creates a new notification service. messenger may be nil
// when push delivery is not configured.
func NewService(repo Repository, messenger Messenger, catalog *messages.Catalog) *Service {
	if catalog == nil {
		catalog = messages.Default()
	}
	return &Service{repo: repo, messenger: messenger, catalog: catalog}
}

// RegisterDevice registers a device token for the authenticated owner.
// A token already registered to another owner is reassigned.
func (s *Service) RegisterDevice(ctx context.Context, params RegisterDeviceParams) (*DeviceToken, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return s.repo.UpsertDeviceToken(ctx, params)
}

// DeactivateToken marks a token inactive. Wired into the messenger as
// its invalid-token callback.
func (s *Service) DeactivateToken(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}
	return s.repo.DeactivateToken(ctx, token)
}

// SyncCompleted tells the owner's devices that new transactions landed.
func (s *Service) SyncCompleted(ctx context.Context, ownerID string, upserted int) {
	text := s.catalog.SyncCompleted
	s.push(ctx, ownerID, text.Title, fmt.Sprintf(text.Body, upserted), map[string]string{
		"event": "sync_completed",
	})
}

// CredentialInvalidated tells the owner a bank connection needs to be
// relinked.
func (s *Service) CredentialInvalidated(ctx context.Context, ownerID, institution string) {
	text := s.catalog.CredentialInvalidated
	s.push(ctx, ownerID, text.Title, fmt.Sprintf(text.Body, institution), map[string]string{
		"event": "credential_invalidated",
	})
}

func (s *Service) push(ctx context.Context, ownerID, title, body string, data map[string]string) {
	if s.messenger == nil {
		return
	}

	tokens, err := s.repo.ListActiveByOwner(ctx, ownerID)
	if err != nil {
		log.Printf("Failed to list device tokens for owner %s: %v", ownerID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	targets := make([]string, len(tokens))
	for i, t := range tokens {
		targets[i] = t.Token
	}

	if err := s.messenger.SendMulticast(ctx, targets, title, body, data); err != nil {
		log.Printf("Failed to push notification to owner %s: %v", ownerID, err)
	}
}

package notification

import "context"

// Repository defines persistence for device tokens.
type Repository interface {
	UpsertDeviceToken(ctx context.Context, params RegisterDeviceParams) (*DeviceToken, error)
	ListActiveByOwner(ctx context.Context, ownerID string) ([]*DeviceToken, error)
	DeactivateToken(ctx context.Context, token string) error
}

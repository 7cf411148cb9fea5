package notification

import (
	"errors"
	"time"
)

const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
	PlatformWeb     = "web"
)

var validPlatforms = map[string]struct{}{
	PlatformIOS:     {},
	PlatformAndroid: {},
	PlatformWeb:     {},
}

var (
	ErrInvalidToken    = errors.New("device token is required")
	ErrInvalidPlatform = errors.New("platform must be 'ios', 'android' or 'web'")
)

// DeviceToken is one registered push target. The token string is the
// natural key: re-registering an existing token moves it to the new
// owner and reactivates it.
type DeviceToken struct {
	Token     string    `json:"token"`
	OwnerID   string    `json:"-"`
	Platform  string    `json:"platform"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RegisterDeviceParams contains parameters for registering a device.
type RegisterDeviceParams struct {
	OwnerID  string
	Token    string
	Platform string
}

func (p RegisterDeviceParams) Validate() error {
	if p.OwnerID == "" {
		return errors.New("valid owner id is required")
	}
	if p.Token == "" {
		return ErrInvalidToken
	}
	if _, ok := validPlatforms[p.Platform]; !ok {
		return ErrInvalidPlatform
	}
	return nil
}

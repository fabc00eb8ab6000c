package model

import "time"

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformIOS, PlatformAndroid, PlatformWeb:
		return true
	}
	return false
}

type Environment string

const (
	EnvironmentDevelopment Environment = "development"
	EnvironmentProduction  Environment = "production"
)

// PushToken is a device registration with a push transport. At most one
// token per device is active at a time.
type PushToken struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Token       string      `json:"token"`
	DeviceID    string      `json:"device_id"`
	Platform    Platform    `json:"platform"`
	Environment Environment `json:"environment"`
	IsActive    bool        `json:"is_active"`
	CreatedAt   time.Time   `json:"created_at"`
	LastUsedAt  time.Time   `json:"last_used_at"`
}

package gateway

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/dukerupert/herald/internal/model"
	"github.com/dukerupert/herald/internal/push"
)

// TokenRegistration is a device's raw push credential.
type TokenRegistration struct {
	UserID      string            `json:"user_id"`
	DeviceID    string            `json:"device_id"`
	Platform    model.Platform    `json:"platform"`
	Environment model.Environment `json:"environment"`
	Raw         []byte            `json:"raw"`
}

// ErrInvalidToken is returned for registrations that cannot be stored.
var ErrInvalidToken = errors.New("invalid push token")

// TokenString returns the stable stored form of a raw credential: compact
// subscription JSON for browsers, lowercase hex for native devices.
func TokenString(platform model.Platform, raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("empty token: %w", ErrInvalidToken)
	}
	switch platform {
	case model.PlatformWeb:
		s, err := push.CompactSubscription(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		return s, nil
	case model.PlatformIOS, model.PlatformAndroid:
		return hex.EncodeToString(raw), nil
	default:
		return "", fmt.Errorf("platform %q: %w", platform, ErrInvalidToken)
	}
}

// RegisterToken stores a device token as the device's only active token.
// Any token the device held before, for any user, is deactivated first.
func (g *Gateway) RegisterToken(ctx context.Context, reg TokenRegistration) (model.PushToken, error) {
	granted, err := g.RequestAuthorization(ctx)
	if err != nil {
		return model.PushToken{}, err
	}
	if !granted {
		return model.PushToken{}, model.ErrUnauthorized
	}
	if reg.UserID == "" || reg.DeviceID == "" {
		return model.PushToken{}, fmt.Errorf("user and device are required: %w", ErrInvalidToken)
	}

	value, err := TokenString(reg.Platform, reg.Raw)
	if err != nil {
		return model.PushToken{}, err
	}
	env := reg.Environment
	if env == "" {
		env = model.EnvironmentProduction
	}

	if _, err := g.store.DeactivateTokensForDevice(ctx, reg.DeviceID); err != nil {
		return model.PushToken{}, fmt.Errorf("deactivate device tokens: %w", err)
	}

	now := g.now()
	token := model.PushToken{
		ID:          g.newID(),
		UserID:      reg.UserID,
		Token:       value,
		DeviceID:    reg.DeviceID,
		Platform:    reg.Platform,
		Environment: env,
		IsActive:    true,
		CreatedAt:   now,
		LastUsedAt:  now,
	}
	if err := g.store.SavePushToken(ctx, token); err != nil {
		return model.PushToken{}, fmt.Errorf("save push token: %w", err)
	}

	g.logger.Info("push token registered", "user_id", reg.UserID, "device_id", reg.DeviceID, "platform", reg.Platform)
	return token, nil
}

package notify

import (
	"context"
	"fmt"

	"github.com/dukerupert/herald/internal/gateway"
	"github.com/dukerupert/herald/internal/model"
)

// RegisterPushToken registers a device for push delivery.
func (s *Service) RegisterPushToken(ctx context.Context, reg gateway.TokenRegistration) (model.PushToken, error) {
	return s.deliverer.RegisterToken(ctx, reg)
}

// UnregisterDevice deactivates the user's tokens on a device.
func (s *Service) UnregisterDevice(ctx context.Context, userID, deviceID string) (int, error) {
	tokens, err := s.repo.ListActivePushTokens(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list push tokens: %w", err)
	}
	var count int
	for _, t := range tokens {
		if t.DeviceID != deviceID {
			continue
		}
		if err := s.repo.DeactivatePushToken(ctx, t.ID); err != nil {
			return count, fmt.Errorf("deactivate push token: %w", err)
		}
		count++
	}
	if count == 0 {
		return 0, fmt.Errorf("device %s: %w", deviceID, model.ErrNotFound)
	}
	s.logger.Info("device unregistered", "user_id", userID, "device_id", deviceID)
	return count, nil
}

package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/herald/internal/gateway"
	"github.com/dukerupert/herald/internal/model"
)

// TrackOpened records that the user opened the notification, which also
// marks it read.
func (s *Service) TrackOpened(ctx context.Context, id string) error {
	_, err := s.TrackAction(ctx, id, model.ActionDefault, nil)
	return err
}

func (s *Service) TrackDismissed(ctx context.Context, id string) error {
	_, err := s.TrackAction(ctx, id, model.ActionDismiss, nil)
	return err
}

// TrackAction records and routes a notification action.
func (s *Service) TrackAction(ctx context.Context, id, actionID string, responseText *string) (gateway.ActionResult, error) {
	if _, err := s.mustGet(ctx, id); err != nil {
		return gateway.ActionResult{}, err
	}
	return s.deliverer.HandleAction(ctx, actionID, id, responseText)
}

// OnAction applies routed actions. Opening or marking a notification read
// marks it read; other kinds are left to the client.
func (s *Service) OnAction(ctx context.Context, r gateway.ActionResult) error {
	switch r.Kind {
	case gateway.ActionOpen, gateway.ActionMarkRead:
		err := s.markRead(ctx, r.NotificationID, false)
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}

// Stats aggregates events for a user, or all users when userID is empty.
func (s *Service) Stats(ctx context.Context, userID string, from, to time.Time) (model.Analytics, error) {
	a, err := s.repo.Analytics(ctx, userID, from, to)
	if err != nil {
		return model.Analytics{}, fmt.Errorf("analytics: %w", err)
	}
	return a, nil
}

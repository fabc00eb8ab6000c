package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/herald/internal/model"
	"github.com/dukerupert/herald/internal/websocket"
)

// GetPreferences returns the user's preferences, storing and publishing
// the defaults on first access.
func (s *Service) GetPreferences(ctx context.Context, userID string) (model.Preferences, error) {
	prefs, created, err := s.loadPreferences(ctx, userID)
	if err != nil {
		return model.Preferences{}, err
	}
	if created {
		s.hub.Publish(userID, websocket.TopicPreferences, prefs)
	}
	return prefs, nil
}

// loadPreferences reads the user's preferences, creating the defaults when
// none exist. It never overwrites a row stored concurrently.
func (s *Service) loadPreferences(ctx context.Context, userID string) (model.Preferences, bool, error) {
	prefs, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		return model.Preferences{}, false, fmt.Errorf("get preferences: %w", err)
	}
	if prefs != nil {
		return *prefs, false, nil
	}

	defaults := model.DefaultPreferences(userID, s.now())
	err = s.repo.CreatePreferences(ctx, defaults)
	if err == nil {
		return defaults, true, nil
	}
	if !errors.Is(err, model.ErrAlreadyExists) {
		return model.Preferences{}, false, fmt.Errorf("create default preferences: %w", err)
	}

	prefs, err = s.repo.GetPreferences(ctx, userID)
	if err != nil {
		return model.Preferences{}, false, fmt.Errorf("get preferences: %w", err)
	}
	if prefs == nil {
		return model.Preferences{}, false, fmt.Errorf("preferences for %s: %w", userID, model.ErrNotFound)
	}
	return *prefs, false, nil
}

// UpdatePreferences validates and stores prefs, then publishes them on the
// user's preferences stream.
func (s *Service) UpdatePreferences(ctx context.Context, prefs model.Preferences) (model.Preferences, error) {
	if err := validatePreferences(&prefs); err != nil {
		return model.Preferences{}, err
	}
	if prefs.ChannelPreferences == nil {
		prefs.ChannelPreferences = map[model.Type][]model.Channel{}
	}
	for t, chs := range prefs.ChannelPreferences {
		prefs.ChannelPreferences[t] = model.NormalizeChannels(chs)
	}
	if prefs.FrequencyLimits == nil {
		prefs.FrequencyLimits = map[model.Type]model.FrequencyLimit{}
	}
	prefs.UpdatedAt = s.now()

	if err := s.repo.SavePreferences(ctx, prefs); err != nil {
		return model.Preferences{}, fmt.Errorf("save preferences: %w", err)
	}
	s.hub.Publish(prefs.UserID, websocket.TopicPreferences, prefs)
	s.logger.Info("preferences updated", "user_id", prefs.UserID)
	return prefs, nil
}

func validatePreferences(p *model.Preferences) error {
	if p.UserID == "" {
		return fmt.Errorf("user id is required: %w", ErrInvalidPreferences)
	}
	if p.Timezone != "" {
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			return fmt.Errorf("timezone %q: %w", p.Timezone, ErrInvalidPreferences)
		}
	}
	for t, chs := range p.ChannelPreferences {
		if !t.Valid() {
			return fmt.Errorf("type %q: %w", t, ErrInvalidPreferences)
		}
		for _, c := range chs {
			if !c.Valid() {
				return fmt.Errorf("channel %q: %w", c, ErrInvalidPreferences)
			}
		}
	}
	for t := range p.FrequencyLimits {
		if !t.Valid() {
			return fmt.Errorf("type %q: %w", t, ErrInvalidPreferences)
		}
	}
	if qh := p.QuietHours; qh != nil && qh.IsEnabled && !qh.Consistent() {
		return fmt.Errorf("quiet hours need start and end times: %w", ErrInvalidPreferences)
	}
	return nil
}

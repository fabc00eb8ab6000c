package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/herald/internal/model"
)

func (s *Store) GetPreferences(ctx context.Context, userID string) (*model.Preferences, error) {
	var (
		p                        model.Preferences
		channelsJSON, limitsJSON string
		quietHoursJSON           sql.NullString
		updatedAt                string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT `+preferenceColumns+` FROM preferences WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &channelsJSON, &p.IsEnabled, &quietHoursJSON, &limitsJSON, &p.Timezone, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, model.Transport("get preferences", err)
	}

	p.ChannelPreferences = map[model.Type][]model.Channel{}
	if err := decodeJSON(channelsJSON, &p.ChannelPreferences); err != nil {
		return nil, err
	}
	p.FrequencyLimits = map[model.Type]model.FrequencyLimit{}
	if err := decodeJSON(limitsJSON, &p.FrequencyLimits); err != nil {
		return nil, err
	}
	if p.QuietHours, err = decodeNullJSON[model.QuietHours](quietHoursJSON); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) SavePreferences(ctx context.Context, p model.Preferences) error {
	args, err := preferenceArgs(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO preferences (`+preferenceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		     channel_preferences = excluded.channel_preferences, is_enabled = excluded.is_enabled,
		     quiet_hours = excluded.quiet_hours, frequency_limits = excluded.frequency_limits,
		     timezone = excluded.timezone, updated_at = excluded.updated_at`,
		args...,
	)
	if err != nil {
		return model.Transport("save preferences", err)
	}
	return nil
}

// CreatePreferences stores p only when the user has no preferences yet and
// returns model.ErrAlreadyExists otherwise.
func (s *Store) CreatePreferences(ctx context.Context, p model.Preferences) error {
	args, err := preferenceArgs(p)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (`+preferenceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		args...,
	)
	if err != nil {
		return model.Transport("create preferences", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("create preferences %s: %w", p.UserID, model.ErrAlreadyExists)
	}
	return nil
}

const preferenceColumns = `user_id, channel_preferences, is_enabled, quiet_hours, frequency_limits, timezone, updated_at`

// preferenceArgs returns values in preferenceColumns order.
func preferenceArgs(p model.Preferences) ([]any, error) {
	channelPrefs := p.ChannelPreferences
	if channelPrefs == nil {
		channelPrefs = map[model.Type][]model.Channel{}
	}
	channelsJSON, err := encodeJSON(channelPrefs)
	if err != nil {
		return nil, err
	}
	limits := p.FrequencyLimits
	if limits == nil {
		limits = map[model.Type]model.FrequencyLimit{}
	}
	limitsJSON, err := encodeJSON(limits)
	if err != nil {
		return nil, err
	}
	quietHoursJSON, err := encodeNullJSON(p.QuietHours)
	if err != nil {
		return nil, err
	}
	return []any{p.UserID, channelsJSON, p.IsEnabled, quietHoursJSON, limitsJSON, p.Timezone, formatTime(p.UpdatedAt)}, nil
}

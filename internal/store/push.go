package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/herald/internal/model"
)

const pushTokenColumns = `id, user_id, token, device_id, platform, environment, is_active, created_at, last_used_at`

func (s *Store) SavePushToken(ctx context.Context, t model.PushToken) error {
	token, err := s.sealToken(t.Token)
	if err != nil {
		return fmt.Errorf("seal push token: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO push_tokens (`+pushTokenColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     user_id = excluded.user_id, token = excluded.token, device_id = excluded.device_id,
		     platform = excluded.platform, environment = excluded.environment,
		     is_active = excluded.is_active, last_used_at = excluded.last_used_at`,
		t.ID, t.UserID, token, t.DeviceID, string(t.Platform), string(t.Environment),
		t.IsActive, formatTime(t.CreatedAt), formatTime(t.LastUsedAt),
	)
	if err != nil {
		return model.Transport("save push token", err)
	}
	return nil
}

func (s *Store) GetPushToken(ctx context.Context, id string) (*model.PushToken, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pushTokenColumns+` FROM push_tokens WHERE id = ?`, id)
	t, err := s.scanPushToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) ListPushTokens(ctx context.Context, userID string) ([]model.PushToken, error) {
	return s.listPushTokens(ctx,
		`SELECT `+pushTokenColumns+` FROM push_tokens WHERE user_id = ? ORDER BY created_at, id`, userID)
}

func (s *Store) ListActivePushTokens(ctx context.Context, userID string) ([]model.PushToken, error) {
	return s.listPushTokens(ctx,
		`SELECT `+pushTokenColumns+` FROM push_tokens WHERE user_id = ? AND is_active = 1 ORDER BY created_at, id`, userID)
}

func (s *Store) listPushTokens(ctx context.Context, query string, args ...any) ([]model.PushToken, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.Transport("list push tokens", err)
	}
	defer rows.Close()

	tokens := []model.PushToken{}
	for rows.Next() {
		t, err := s.scanPushToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Transport("list push tokens", err)
	}
	return tokens, nil
}

func (s *Store) DeletePushToken(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM push_tokens WHERE id = ?`, id)
	if err != nil {
		return model.Transport("delete push token", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("delete push token %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (s *Store) DeactivatePushToken(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE push_tokens SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return model.Transport("deactivate push token", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("deactivate push token %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (s *Store) DeactivateTokensForDevice(ctx context.Context, deviceID string) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE push_tokens SET is_active = 0 WHERE device_id = ? AND is_active = 1`, deviceID)
	if err != nil {
		return 0, model.Transport("deactivate device tokens", err)
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}

func (s *Store) scanPushToken(sc scanner) (*model.PushToken, error) {
	var (
		t                     model.PushToken
		createdAt, lastUsedAt string
	)
	err := sc.Scan(&t.ID, &t.UserID, &t.Token, &t.DeviceID, &t.Platform, &t.Environment, &t.IsActive, &createdAt, &lastUsedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, model.Transport("scan push token", err)
	}
	if t.Token, err = s.openToken(t.Token); err != nil {
		return nil, fmt.Errorf("open push token %s: %w", t.ID, err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.LastUsedAt, err = parseTime(lastUsedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/herald/internal/model"
)

const templateColumns = `type, title_template, body_template, default_channels, default_priority, default_expiration_seconds, updated_at`

func (s *Store) GetTemplate(ctx context.Context, t model.Type) (*model.Template, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE type = ?`, string(t))
	tmpl, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return tmpl, nil
}

func (s *Store) ListTemplates(ctx context.Context) ([]model.Template, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+templateColumns+` FROM templates ORDER BY type`)
	if err != nil {
		return nil, model.Transport("list templates", err)
	}
	defer rows.Close()

	templates := []model.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Transport("list templates", err)
	}
	return templates, nil
}

func (s *Store) SaveTemplate(ctx context.Context, t model.Template) error {
	channels := t.DefaultChannels
	if channels == nil {
		channels = []model.Channel{}
	}
	channelsJSON, err := encodeJSON(channels)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO templates (`+templateColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(type) DO UPDATE SET
		     title_template = excluded.title_template, body_template = excluded.body_template,
		     default_channels = excluded.default_channels, default_priority = excluded.default_priority,
		     default_expiration_seconds = excluded.default_expiration_seconds, updated_at = excluded.updated_at`,
		string(t.Type), t.TitleTemplate, t.BodyTemplate, channelsJSON, string(t.DefaultPriority),
		int64(t.DefaultExpiration/time.Second), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return model.Transport("save template", err)
	}
	return nil
}

func (s *Store) DeleteTemplate(ctx context.Context, t model.Type) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE type = ?`, string(t))
	if err != nil {
		return model.Transport("delete template", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("delete template %s: %w", t, model.ErrNotFound)
	}
	return nil
}

func scanTemplate(sc scanner) (*model.Template, error) {
	var (
		t                       model.Template
		channelsJSON, updatedAt string
		expirationSeconds       int64
	)
	err := sc.Scan(&t.Type, &t.TitleTemplate, &t.BodyTemplate, &channelsJSON, &t.DefaultPriority, &expirationSeconds, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, model.Transport("scan template", err)
	}
	if err := decodeJSON(channelsJSON, &t.DefaultChannels); err != nil {
		return nil, err
	}
	t.DefaultExpiration = time.Duration(expirationSeconds) * time.Second
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

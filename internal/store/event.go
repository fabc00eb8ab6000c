package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/dukerupert/herald/internal/model"
)

func (s *Store) Track(ctx context.Context, e model.Event) error {
	metadataJSON := sql.NullString{}
	if len(e.Metadata) > 0 {
		encoded, err := encodeJSON(e.Metadata)
		if err != nil {
			return err
		}
		metadataJSON = sql.NullString{String: encoded, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, notification_id, user_id, type, timestamp, metadata)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.NotificationID, e.UserID, string(e.Type), formatTime(e.Timestamp), metadataJSON,
	)
	if err != nil {
		return model.Transport("track event", err)
	}
	return nil
}

// ListEvents returns a notification's events in the order they were tracked.
func (s *Store) ListEvents(ctx context.Context, notificationID string) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, notification_id, user_id, type, timestamp, metadata
		 FROM events WHERE notification_id = ? ORDER BY seq`, notificationID,
	)
	if err != nil {
		return nil, model.Transport("list events", err)
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		var (
			e            model.Event
			timestamp    string
			metadataJSON sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.NotificationID, &e.UserID, &e.Type, &timestamp, &metadataJSON); err != nil {
			return nil, model.Transport("scan event", err)
		}
		if e.Timestamp, err = parseTime(timestamp); err != nil {
			return nil, err
		}
		if metadataJSON.Valid {
			if err := decodeJSON(metadataJSON.String, &e.Metadata); err != nil {
				return nil, err
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Transport("list events", err)
	}
	return events, nil
}

func (s *Store) Analytics(ctx context.Context, userID string, from, to time.Time) (model.Analytics, error) {
	var (
		clauses []string
		args    []any
	)
	if userID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, userID)
	}
	if !from.IsZero() {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, formatTime(from))
	}
	if !to.IsZero() {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, formatTime(to))
	}
	query := `SELECT type, COUNT(*) FROM events`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` GROUP BY type`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return model.Analytics{}, model.Transport("aggregate events", err)
	}
	defer rows.Close()

	var a model.Analytics
	for rows.Next() {
		var (
			typ   model.EventType
			count int
		)
		if err := rows.Scan(&typ, &count); err != nil {
			return model.Analytics{}, model.Transport("scan event totals", err)
		}
		a.Add(typ, count)
	}
	if err := rows.Err(); err != nil {
		return model.Analytics{}, model.Transport("aggregate events", err)
	}
	a.Finalize()
	return a, nil
}

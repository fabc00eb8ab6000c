package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/herald/internal/model"
)

const notificationColumns = `id, user_id, type, title, body, data, channels, priority, is_read, read_at, created_at, expires_at, metadata`

func (s *Store) Create(ctx context.Context, n model.Notification) (model.Notification, error) {
	n.Channels = model.NormalizeChannels(n.Channels)
	args, err := notificationArgs(n)
	if err != nil {
		return model.Notification{}, err
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (`+notificationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		args...,
	)
	if err != nil {
		return model.Notification{}, model.Transport("create notification", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return model.Notification{}, fmt.Errorf("create notification %s: %w", n.ID, model.ErrAlreadyExists)
	}
	return n, nil
}

func (s *Store) Fetch(ctx context.Context, userID string, filter *model.Filter, p *model.Pagination) (model.Page[model.Notification], error) {
	pg := p.Normalize()
	where, args := notificationWhere(userID, filter)

	var total int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE `+where, args...).Scan(&total)
	if err != nil {
		return model.Page[model.Notification]{}, model.Transport("count notifications", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE `+where+`
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, pg.Limit, pg.Offset())...,
	)
	if err != nil {
		return model.Page[model.Notification]{}, model.Transport("fetch notifications", err)
	}
	defer rows.Close()

	items := []model.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return model.Page[model.Notification]{}, err
		}
		items = append(items, *n)
	}
	if err := rows.Err(); err != nil {
		return model.Page[model.Notification]{}, model.Transport("fetch notifications", err)
	}

	return model.Page[model.Notification]{
		Items:       items,
		CurrentPage: pg.Page,
		TotalPages:  pg.TotalPages(total),
		TotalItems:  total,
	}, nil
}

// notificationWhere builds the WHERE clause for a user's notifications.
// A channel filter matches rows holding any of the listed channels.
func notificationWhere(userID string, f *model.Filter) (string, []any) {
	clauses := []string{"user_id = ?"}
	args := []any{userID}
	if f == nil {
		return clauses[0], args
	}

	in := func(n int) string {
		return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
	}
	if len(f.Types) > 0 {
		clauses = append(clauses, "type IN ("+in(len(f.Types))+")")
		for _, t := range f.Types {
			args = append(args, string(t))
		}
	}
	if len(f.Channels) > 0 {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM json_each(notifications.channels) WHERE json_each.value IN ("+in(len(f.Channels))+"))")
		for _, c := range f.Channels {
			args = append(args, string(c))
		}
	}
	if len(f.Priorities) > 0 {
		clauses = append(clauses, "priority IN ("+in(len(f.Priorities))+")")
		for _, p := range f.Priorities {
			args = append(args, string(p))
		}
	}
	if f.Read != nil {
		clauses = append(clauses, "is_read = ?")
		args = append(args, *f.Read)
	}
	if f.DateFrom != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, formatTime(*f.DateFrom))
	}
	if f.DateTo != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, formatTime(*f.DateTo))
	}
	return strings.Join(clauses, " AND "), args
}

func (s *Store) Get(ctx context.Context, id string) (*model.Notification, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Store) Update(ctx context.Context, n model.Notification) error {
	n.Channels = model.NormalizeChannels(n.Channels)
	args, err := notificationArgs(n)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE notifications
		 SET user_id = ?, type = ?, title = ?, body = ?, data = ?, channels = ?, priority = ?,
		     is_read = ?, read_at = ?, created_at = ?, expires_at = ?, metadata = ?
		 WHERE id = ?`,
		append(args[1:], n.ID)...,
	)
	if err != nil {
		return model.Transport("update notification", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("update notification %s: %w", n.ID, model.ErrNotFound)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ?`, id)
	if err != nil {
		return model.Transport("delete notification", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("delete notification %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// DeleteForUser removes every notification of userID and returns the
// removed ids.
func (s *Store) DeleteForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `DELETE FROM notifications WHERE user_id = ? RETURNING id`, userID)
	if err != nil {
		return nil, model.Transport("delete user notifications", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, model.Transport("delete user notifications", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Transport("delete user notifications", err)
	}
	return ids, nil
}

// MarkAsRead reports whether the notification changed; marking an already
// read notification leaves read_at alone and returns false.
func (s *Store) MarkAsRead(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1, read_at = ? WHERE id = ? AND is_read = 0`,
		formatTime(at), id,
	)
	if err != nil {
		return false, model.Transport("mark notification read", err)
	}
	if affected, _ := result.RowsAffected(); affected > 0 {
		return true, nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM notifications WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, model.Transport("mark notification read", err)
	}
	if !exists {
		return false, fmt.Errorf("mark notification %s read: %w", id, model.ErrNotFound)
	}
	return false, nil
}

func (s *Store) MarkAllAsRead(ctx context.Context, userID string, at time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1, read_at = ? WHERE user_id = ? AND is_read = 0`,
		formatTime(at), userID,
	)
	if err != nil {
		return 0, model.Transport("mark all notifications read", err)
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}

func (s *Store) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`, userID,
	).Scan(&count)
	if err != nil {
		return 0, model.Transport("count unread notifications", err)
	}
	return count, nil
}

// DeleteExpired removes notifications that expired before now and returns
// them.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) ([]model.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`DELETE FROM notifications WHERE expires_at IS NOT NULL AND expires_at < ?
		 RETURNING `+notificationColumns, formatTime(now),
	)
	if err != nil {
		return nil, model.Transport("delete expired notifications", err)
	}
	defer rows.Close()

	removed := []model.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		removed = append(removed, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Transport("delete expired notifications", err)
	}
	return removed, nil
}

// notificationArgs returns values in notificationColumns order.
func notificationArgs(n model.Notification) ([]any, error) {
	data := n.Data
	if data == nil {
		data = map[string]string{}
	}
	dataJSON, err := encodeJSON(data)
	if err != nil {
		return nil, err
	}
	channelsJSON, err := encodeJSON(n.Channels)
	if err != nil {
		return nil, err
	}
	metadataJSON, err := encodeNullJSON(n.Metadata)
	if err != nil {
		return nil, err
	}
	return []any{
		n.ID, n.UserID, string(n.Type), n.Title, n.Body, dataJSON, channelsJSON, string(n.Priority),
		n.IsRead, formatNullTime(n.ReadAt), formatTime(n.CreatedAt), formatNullTime(n.ExpiresAt), metadataJSON,
	}, nil
}

func scanNotification(sc scanner) (*model.Notification, error) {
	var (
		n                         model.Notification
		dataJSON, channelsJSON    string
		readAt, expiresAt, mdJSON sql.NullString
		createdAt                 string
	)
	err := sc.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &dataJSON, &channelsJSON, &n.Priority,
		&n.IsRead, &readAt, &createdAt, &expiresAt, &mdJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, model.Transport("scan notification", err)
	}

	if err := decodeJSON(dataJSON, &n.Data); err != nil {
		return nil, err
	}
	if len(n.Data) == 0 {
		n.Data = nil
	}
	if err := decodeJSON(channelsJSON, &n.Channels); err != nil {
		return nil, err
	}
	if n.ReadAt, err = parseNullTime(readAt); err != nil {
		return nil, err
	}
	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if n.ExpiresAt, err = parseNullTime(expiresAt); err != nil {
		return nil, err
	}
	if n.Metadata, err = decodeNullJSON[model.Metadata](mdJSON); err != nil {
		return nil, err
	}
	return &n, nil
}

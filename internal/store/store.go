// Package store implements repository.Repository on SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/herald/internal/repository"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is a SQLite-backed Repository. Writers are serialized by SQLite.
type Store struct {
	db         *sql.DB
	passphrase string
	sealer     *sealer
}

var _ repository.Repository = (*Store)(nil)

type Option func(*Store)

// WithTokenPassphrase encrypts push token values at rest with a key derived
// from passphrase.
func WithTokenPassphrase(passphrase string) Option {
	return func(s *Store) {
		s.passphrase = passphrase
	}
}

// New returns a Store over an already migrated database.
func New(ctx context.Context, db *sql.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	if s.passphrase != "" {
		salt, err := s.tokenSalt(ctx)
		if err != nil {
			return nil, err
		}
		sl, err := newSealer(s.passphrase, salt)
		if err != nil {
			return nil, err
		}
		s.sealer = sl
	}
	return s, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	return string(b), nil
}

func encodeNullJSON[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	s, err := encodeJSON(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: s, Valid: true}, nil
}

func decodeJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

func decodeNullJSON[T any](ns sql.NullString) (*T, error) {
	if !ns.Valid {
		return nil, nil
	}
	v := new(T)
	if err := decodeJSON(ns.String, v); err != nil {
		return nil, err
	}
	return v, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

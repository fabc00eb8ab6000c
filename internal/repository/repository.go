// Package repository defines the storage contract for notifications, push
// tokens, preferences, templates, and analytics events, along with an
// in-memory implementation.
package repository

import (
	"context"
	"time"

	"github.com/dukerupert/herald/internal/model"
)

// Notifications persists the notification lifecycle. Get returns nil, nil
// when the notification does not exist; mutations of a missing
// notification return model.ErrNotFound. MarkAsRead reports whether the
// notification was unread; the bulk deletes return what they removed.
type Notifications interface {
	Create(ctx context.Context, n model.Notification) (model.Notification, error)
	Fetch(ctx context.Context, userID string, filter *model.Filter, p *model.Pagination) (model.Page[model.Notification], error)
	Get(ctx context.Context, id string) (*model.Notification, error)
	Update(ctx context.Context, n model.Notification) error
	Delete(ctx context.Context, id string) error
	DeleteForUser(ctx context.Context, userID string) ([]string, error)
	MarkAsRead(ctx context.Context, id string, at time.Time) (bool, error)
	MarkAllAsRead(ctx context.Context, userID string, at time.Time) (int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) ([]model.Notification, error)
}

// PushTokens persists device tokens. At most one token per device is
// active at a time; callers deactivate a device before saving its new token.
type PushTokens interface {
	SavePushToken(ctx context.Context, t model.PushToken) error
	GetPushToken(ctx context.Context, id string) (*model.PushToken, error)
	ListPushTokens(ctx context.Context, userID string) ([]model.PushToken, error)
	ListActivePushTokens(ctx context.Context, userID string) ([]model.PushToken, error)
	DeletePushToken(ctx context.Context, id string) error
	DeactivatePushToken(ctx context.Context, id string) error
	DeactivateTokensForDevice(ctx context.Context, deviceID string) (int, error)
}

// PreferenceStore persists per-user preferences. CreatePreferences never
// overwrites and returns model.ErrAlreadyExists when the user has a row.
type PreferenceStore interface {
	GetPreferences(ctx context.Context, userID string) (*model.Preferences, error)
	SavePreferences(ctx context.Context, p model.Preferences) error
	CreatePreferences(ctx context.Context, p model.Preferences) error
}

type Templates interface {
	GetTemplate(ctx context.Context, t model.Type) (*model.Template, error)
	ListTemplates(ctx context.Context) ([]model.Template, error)
	SaveTemplate(ctx context.Context, t model.Template) error
	DeleteTemplate(ctx context.Context, t model.Type) error
}

// Events is an append-only analytics log. Analytics with an empty userID
// aggregates across all users; zero from/to leave that bound open.
type Events interface {
	Track(ctx context.Context, e model.Event) error
	ListEvents(ctx context.Context, notificationID string) ([]model.Event, error)
	Analytics(ctx context.Context, userID string, from, to time.Time) (model.Analytics, error)
}

// Repository is everything the notification service needs from storage.
type Repository interface {
	Notifications
	PushTokens
	PreferenceStore
	Templates
	Events
}

// inRange reports whether ts falls within [from, to], treating zero bounds
// as open.
func inRange(ts, from, to time.Time) bool {
	if !from.IsZero() && ts.Before(from) {
		return false
	}
	if !to.IsZero() && ts.After(to) {
		return false
	}
	return true
}

package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dukerupert/herald/internal/model"
)

// Memory is a Repository held in process memory. It is safe for concurrent
// use; every value handed out is a copy.
type Memory struct {
	mu            sync.RWMutex
	notifications map[string]model.Notification
	tokens        map[string]model.PushToken
	preferences   map[string]model.Preferences
	templates     map[model.Type]model.Template
	events        []model.Event
}

var _ Repository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		notifications: make(map[string]model.Notification),
		tokens:        make(map[string]model.PushToken),
		preferences:   make(map[string]model.Preferences),
		templates:     make(map[model.Type]model.Template),
	}
}

func (m *Memory) Create(ctx context.Context, n model.Notification) (model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.notifications[n.ID]; ok {
		return model.Notification{}, fmt.Errorf("create notification %s: %w", n.ID, model.ErrAlreadyExists)
	}
	n.Channels = model.NormalizeChannels(n.Channels)
	m.notifications[n.ID] = n.Clone()
	return n.Clone(), nil
}

func (m *Memory) Fetch(ctx context.Context, userID string, filter *model.Filter, p *model.Pagination) (model.Page[model.Notification], error) {
	m.mu.RLock()
	var items []model.Notification
	for _, n := range m.notifications {
		if n.UserID == userID && filter.Matches(&n) {
			items = append(items, n.Clone())
		}
	}
	m.mu.RUnlock()

	sortNewestFirst(items)
	return model.Paginate(items, p), nil
}

func (m *Memory) Get(ctx context.Context, id string) (*model.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.notifications[id]
	if !ok {
		return nil, nil
	}
	c := n.Clone()
	return &c, nil
}

func (m *Memory) Update(ctx context.Context, n model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.notifications[n.ID]; !ok {
		return fmt.Errorf("update notification %s: %w", n.ID, model.ErrNotFound)
	}
	n.Channels = model.NormalizeChannels(n.Channels)
	m.notifications[n.ID] = n.Clone()
	return nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.notifications[id]; !ok {
		return fmt.Errorf("delete notification %s: %w", id, model.ErrNotFound)
	}
	delete(m.notifications, id)
	return nil
}

func (m *Memory) DeleteForUser(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := []string{}
	for id, n := range m.notifications {
		if n.UserID == userID {
			delete(m.notifications, id)
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *Memory) MarkAsRead(ctx context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.notifications[id]
	if !ok {
		return false, fmt.Errorf("mark notification %s read: %w", id, model.ErrNotFound)
	}
	if !n.MarkRead(at) {
		return false, nil
	}
	m.notifications[id] = n
	return true, nil
}

func (m *Memory) MarkAllAsRead(ctx context.Context, userID string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int
	for id, n := range m.notifications {
		if n.UserID == userID && n.MarkRead(at) {
			m.notifications[id] = n
			count++
		}
	}
	return count, nil
}

func (m *Memory) UnreadCount(ctx context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int
	for _, n := range m.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *Memory) DeleteExpired(ctx context.Context, now time.Time) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := []model.Notification{}
	for id, n := range m.notifications {
		if n.IsExpired(now) {
			delete(m.notifications, id)
			removed = append(removed, n)
		}
	}
	sortNewestFirst(removed)
	return removed, nil
}

func (m *Memory) SavePushToken(ctx context.Context, t model.PushToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens[t.ID] = t
	return nil
}

func (m *Memory) GetPushToken(ctx context.Context, id string) (*model.PushToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tokens[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *Memory) ListPushTokens(ctx context.Context, userID string) ([]model.PushToken, error) {
	return m.listTokens(userID, false), nil
}

func (m *Memory) ListActivePushTokens(ctx context.Context, userID string) ([]model.PushToken, error) {
	return m.listTokens(userID, true), nil
}

func (m *Memory) listTokens(userID string, activeOnly bool) []model.PushToken {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tokens := []model.PushToken{}
	for _, t := range m.tokens {
		if t.UserID != userID || (activeOnly && !t.IsActive) {
			continue
		}
		tokens = append(tokens, t)
	}
	slices.SortFunc(tokens, func(a, b model.PushToken) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return tokens
}

func (m *Memory) DeletePushToken(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tokens[id]; !ok {
		return fmt.Errorf("delete push token %s: %w", id, model.ErrNotFound)
	}
	delete(m.tokens, id)
	return nil
}

func (m *Memory) DeactivatePushToken(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[id]
	if !ok {
		return fmt.Errorf("deactivate push token %s: %w", id, model.ErrNotFound)
	}
	t.IsActive = false
	m.tokens[id] = t
	return nil
}

func (m *Memory) DeactivateTokensForDevice(ctx context.Context, deviceID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int
	for id, t := range m.tokens {
		if t.DeviceID == deviceID && t.IsActive {
			t.IsActive = false
			m.tokens[id] = t
			count++
		}
	}
	return count, nil
}

func (m *Memory) GetPreferences(ctx context.Context, userID string) (*model.Preferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.preferences[userID]
	if !ok {
		return nil, nil
	}
	c := p.Clone()
	return &c, nil
}

func (m *Memory) SavePreferences(ctx context.Context, p model.Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.preferences[p.UserID] = p.Clone()
	return nil
}

func (m *Memory) CreatePreferences(ctx context.Context, p model.Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.preferences[p.UserID]; ok {
		return fmt.Errorf("create preferences %s: %w", p.UserID, model.ErrAlreadyExists)
	}
	m.preferences[p.UserID] = p.Clone()
	return nil
}

func (m *Memory) GetTemplate(ctx context.Context, t model.Type) (*model.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tmpl, ok := m.templates[t]
	if !ok {
		return nil, nil
	}
	c := tmpl.Clone()
	return &c, nil
}

func (m *Memory) ListTemplates(ctx context.Context) ([]model.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Template, 0, len(m.templates))
	for _, t := range m.templates {
		out = append(out, t.Clone())
	}
	slices.SortFunc(out, func(a, b model.Template) int { return cmp.Compare(a.Type, b.Type) })
	return out, nil
}

func (m *Memory) SaveTemplate(ctx context.Context, t model.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.templates[t.Type] = t.Clone()
	return nil
}

func (m *Memory) DeleteTemplate(ctx context.Context, t model.Type) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.templates[t]; !ok {
		return fmt.Errorf("delete template %s: %w", t, model.ErrNotFound)
	}
	delete(m.templates, t)
	return nil
}

func (m *Memory) Track(ctx context.Context, e model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, cloneEvent(e))
	return nil
}

func (m *Memory) ListEvents(ctx context.Context, notificationID string) ([]model.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []model.Event{}
	for _, e := range m.events {
		if e.NotificationID == notificationID {
			out = append(out, cloneEvent(e))
		}
	}
	return out, nil
}

func (m *Memory) Analytics(ctx context.Context, userID string, from, to time.Time) (model.Analytics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var a model.Analytics
	for _, e := range m.events {
		if userID != "" && e.UserID != userID {
			continue
		}
		if !inRange(e.Timestamp, from, to) {
			continue
		}
		a.Count(e.Type)
	}
	a.Finalize()
	return a, nil
}

func cloneEvent(e model.Event) model.Event {
	if e.Metadata != nil {
		md := make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			md[k] = v
		}
		e.Metadata = md
	}
	return e
}

// sortNewestFirst orders by creation time descending, breaking ties by id
// so pages are stable.
func sortNewestFirst(items []model.Notification) {
	slices.SortFunc(items, func(a, b model.Notification) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})
}

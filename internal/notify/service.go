// Package notify is the notification service: it persists notifications,
// applies user preferences, fans deliveries out across channels and
// recipients, and keeps each user's live streams current.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/semaphore"

	"github.com/dukerupert/herald/internal/gateway"
	"github.com/dukerupert/herald/internal/model"
	"github.com/dukerupert/herald/internal/preference"
	"github.com/dukerupert/herald/internal/render"
	"github.com/dukerupert/herald/internal/repository"
	"github.com/dukerupert/herald/internal/websocket"
)

const defaultMaxConcurrency = 16

var (
	ErrInvalidPreferences = errors.New("invalid preferences")
	ErrInvalidTemplate    = errors.New("invalid template")
)

// Mailer delivers the email channel.
type Mailer interface {
	SendNotification(ctx context.Context, toEmail string, n model.Notification) error
}

// Deliverer is the device side of delivery.
type Deliverer interface {
	ScheduleRespectingQuietHours(ctx context.Context, n model.Notification, prefs *model.Preferences) (gateway.Handle, bool, error)
	Cancel(h gateway.Handle)
	RegisterToken(ctx context.Context, reg gateway.TokenRegistration) (model.PushToken, error)
	HandleAction(ctx context.Context, actionID, notificationID string, responseText *string) (gateway.ActionResult, error)
	UpdateBadge(userID string, count int)
	SetActionHandler(h gateway.ActionHandler)
}

// Hub publishes and fans out per-user live updates. OnFirstListener lets
// the service send a fresh snapshot to a user's first listener.
type Hub interface {
	Publish(userID string, topic websocket.Topic, data any)
	Subscribe(userID string) (<-chan websocket.Message, func())
	HasListeners(userID string) bool
	OnFirstListener(fn func(userID string))
}

type Service struct {
	repo      repository.Repository
	deliverer Deliverer
	mailer    Mailer
	hub       Hub
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
	sem       *semaphore.Weighted
}

type Option func(*Service)

func WithMailer(m Mailer) Option {
	return func(s *Service) {
		s.mailer = m
	}
}

func WithHub(h Hub) Option {
	return func(s *Service) {
		s.hub = h
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithMaxConcurrency bounds concurrent device deliveries across a fan-out.
func WithMaxConcurrency(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(n)
		}
	}
}

// New creates the service, registers it as the deliverer's action handler,
// and hooks it to the hub so new listeners start from current state.
func New(repo repository.Repository, deliverer Deliverer, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		deliverer: deliverer,
		logger:    slog.Default(),
		now:       time.Now,
		newID:     uuid.NewString,
		sem:       semaphore.NewWeighted(defaultMaxConcurrency),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "notify")
	if s.hub == nil {
		s.hub = websocket.NewHub(s.logger)
	}
	s.hub.OnFirstListener(s.publishSnapshot)
	deliverer.SetActionHandler(s)
	return s
}

// SendRequest describes a notification sent to one or more users. Empty
// Channels and Priority are resolved from preferences and the type.
type SendRequest struct {
	To        []string          `json:"to"`
	Type      model.Type        `json:"type"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	Channels  []model.Channel   `json:"channels,omitempty"`
	Priority  model.Priority    `json:"priority,omitempty"`
	Metadata  *model.Metadata   `json:"metadata,omitempty"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
}

// TemplatedRequest sends the stored template for Type.
type TemplatedRequest struct {
	To         []string          `json:"to"`
	Type       model.Type        `json:"type"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
}

// RecipientError is the failure to send to one recipient.
type RecipientError struct {
	UserID string
	Err    error
}

func (e *RecipientError) Error() string {
	return fmt.Sprintf("recipient %s: %v", e.UserID, e.Err)
}

func (e *RecipientError) Unwrap() error {
	return e.Err
}

// SendResult holds the per-recipient outcome of a send, in request order.
type SendResult struct {
	Sent   []model.Notification
	Failed []*RecipientError
}

// Send creates one notification per recipient and delivers it. Recipients
// are processed concurrently and independently. An error is returned only
// when every recipient failed; partial failures are reported in the result.
func (s *Service) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	return s.send(ctx, req, nil)
}

// SendTemplated renders the stored template for req.Type and sends it.
func (s *Service) SendTemplated(ctx context.Context, req TemplatedRequest) (*SendResult, error) {
	tmpl, err := s.repo.GetTemplate(ctx, req.Type)
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	if tmpl == nil {
		return nil, fmt.Errorf("template %q: %w", req.Type, model.ErrTemplateNotFound)
	}
	if missing := render.Missing(*tmpl, req.Parameters); len(missing) > 0 {
		s.logger.Warn("template parameters missing", "type", req.Type, "missing", strings.Join(missing, ","))
	}

	title, body := render.Render(*tmpl, req.Parameters)
	sr := SendRequest{
		To:       req.To,
		Type:     req.Type,
		Title:    title,
		Body:     body,
		Data:     req.Data,
		Priority: tmpl.DefaultPriority,
	}
	if tmpl.DefaultExpiration > 0 {
		exp := s.now().Add(tmpl.DefaultExpiration)
		sr.ExpiresAt = &exp
	}
	return s.send(ctx, sr, tmpl)
}

func (s *Service) send(ctx context.Context, req SendRequest, tmpl *model.Template) (*SendResult, error) {
	if err := validateSend(req); err != nil {
		return nil, err
	}

	sent := make([]*model.Notification, len(req.To))
	errs := make([]error, len(req.To))
	var wg sync.WaitGroup
	for i, userID := range req.To {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.sendOne(ctx, userID, req, tmpl)
			if err != nil {
				errs[i] = err
				return
			}
			sent[i] = &n
		}()
	}
	wg.Wait()

	res := &SendResult{}
	var all error
	for i, userID := range req.To {
		if errs[i] != nil {
			re := &RecipientError{UserID: userID, Err: errs[i]}
			res.Failed = append(res.Failed, re)
			all = multierr.Append(all, re)
			continue
		}
		res.Sent = append(res.Sent, *sent[i])
	}

	s.logger.Info("notification sent", "type", req.Type, "recipients", len(req.To), "sent", len(res.Sent), "failed", len(res.Failed))
	if len(res.Sent) == 0 {
		return res, fmt.Errorf("send %s: %w", req.Type, all)
	}
	return res, nil
}

func validateSend(req SendRequest) error {
	if len(req.To) == 0 {
		return fmt.Errorf("no recipients: %w", model.ErrInvalidRecipient)
	}
	for _, id := range req.To {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("blank recipient id: %w", model.ErrInvalidRecipient)
		}
	}
	if !req.Type.Valid() {
		return fmt.Errorf("type %q: %w", req.Type, model.ErrInvalidRequest)
	}
	if req.Priority != "" && !req.Priority.Valid() {
		return fmt.Errorf("priority %q: %w", req.Priority, model.ErrInvalidRequest)
	}
	for _, c := range req.Channels {
		if !c.Valid() {
			return fmt.Errorf("channel %q: %w", c, model.ErrInvalidRequest)
		}
	}
	return nil
}

// sendOne persists the recipient's notification and routes it to every
// resolved channel. Only persistence failures fail the recipient; channel
// outcomes are recorded as events.
func (s *Service) sendOne(ctx context.Context, userID string, req SendRequest, tmpl *model.Template) (model.Notification, error) {
	prefs, err := s.GetPreferences(ctx, userID)
	if err != nil {
		return model.Notification{}, err
	}

	channels := req.Channels
	if len(channels) == 0 {
		channels = preference.ResolveChannels(req.Type, &prefs, tmpl)
	}
	priority := req.Priority
	if priority == "" {
		priority = req.Type.DefaultPriority()
	}

	n := model.Notification{
		ID:        s.newID(),
		UserID:    userID,
		Type:      req.Type,
		Title:     req.Title,
		Body:      req.Body,
		Data:      req.Data,
		Channels:  model.NormalizeChannels(channels),
		Priority:  priority,
		CreatedAt: s.now(),
		ExpiresAt: req.ExpiresAt,
		Metadata:  req.Metadata,
	}
	n = n.Clone()
	created, err := s.repo.Create(ctx, n)
	if err != nil {
		return model.Notification{}, fmt.Errorf("create notification: %w", err)
	}

	if created.HasChannel(model.ChannelPush) {
		s.deliverPush(ctx, created, &prefs)
	}
	if created.HasChannel(model.ChannelEmail) {
		s.deliverEmail(ctx, created, &prefs)
	}

	s.refresh(ctx, userID)
	return created, nil
}

func (s *Service) deliverPush(ctx context.Context, n model.Notification, prefs *model.Preferences) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.logger.Warn("push skipped", "notification_id", n.ID, "error", err)
		return
	}
	defer s.sem.Release(1)

	_, scheduled, err := s.deliverer.ScheduleRespectingQuietHours(ctx, n, prefs)
	switch {
	case errors.Is(err, model.ErrUnauthorized):
		s.logger.Warn("push not authorized", "notification_id", n.ID)
	case err != nil:
		s.logger.Error("schedule push", "notification_id", n.ID, "error", err)
	case !scheduled:
		s.logger.Debug("push suppressed by preferences", "notification_id", n.ID, "user_id", n.UserID)
	}
}

// deliverEmail sends to the address in the notification's "email" data
// field. Email is never deferred; inside quiet hours it is skipped.
func (s *Service) deliverEmail(ctx context.Context, n model.Notification, prefs *model.Preferences) {
	if s.mailer == nil {
		return
	}
	to := n.Data["email"]
	if to == "" {
		s.logger.Debug("email skipped, no address", "notification_id", n.ID)
		return
	}
	if !preference.ShouldDeliver(&n, prefs, s.now()) {
		s.logger.Debug("email suppressed by preferences", "notification_id", n.ID)
		return
	}

	md := map[string]string{"channel": string(model.ChannelEmail)}
	typ := model.EventDelivered
	if err := s.mailer.SendNotification(ctx, to, n); err != nil {
		s.logger.Error("send email", "notification_id", n.ID, "error", err)
		typ = model.EventFailed
		md["error"] = err.Error()
	}
	s.track(ctx, n.ID, n.UserID, typ, md)
}

func (s *Service) track(ctx context.Context, notificationID, userID string, typ model.EventType, md map[string]string) {
	e := model.Event{
		ID:             s.newID(),
		NotificationID: notificationID,
		UserID:         userID,
		Type:           typ,
		Timestamp:      s.now(),
		Metadata:       md,
	}
	if err := s.repo.Track(ctx, e); err != nil {
		s.logger.Error("track event", "notification_id", notificationID, "type", typ, "error", err)
	}
}

// refresh sets the user's badge to their unread count and, when anyone is
// listening, publishes the count and the first page of notifications.
func (s *Service) refresh(ctx context.Context, userID string) {
	count, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		s.logger.Error("unread count", "user_id", userID, "error", err)
		return
	}
	s.deliverer.UpdateBadge(userID, count)
	if !s.hub.HasListeners(userID) {
		return
	}

	page, err := s.repo.Fetch(ctx, userID, nil, nil)
	if err != nil {
		s.logger.Error("fetch notifications", "user_id", userID, "error", err)
	} else {
		s.hub.Publish(userID, websocket.TopicNotifications, page)
	}
	s.hub.Publish(userID, websocket.TopicUnreadCount, count)
}

// publishSnapshot sends a user's current state to their first listener.
func (s *Service) publishSnapshot(userID string) {
	ctx := context.Background()
	prefs, _, err := s.loadPreferences(ctx, userID)
	if err != nil {
		s.logger.Error("load preferences", "user_id", userID, "error", err)
	} else {
		s.hub.Publish(userID, websocket.TopicPreferences, prefs)
	}
	s.refresh(ctx, userID)
}

// Subscribe streams the user's notifications page, unread count,
// preferences, and badge, starting with the current value of each.
func (s *Service) Subscribe(userID string) (<-chan websocket.Message, func()) {
	return s.hub.Subscribe(userID)
}

func (s *Service) Get(ctx context.Context, id string) (*model.Notification, error) {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

// Fetch returns a page of the user's notifications, newest first.
func (s *Service) Fetch(ctx context.Context, userID string, page, limit int, filter *model.Filter) (model.Page[model.Notification], error) {
	p, err := s.repo.Fetch(ctx, userID, filter, &model.Pagination{Page: page, Limit: limit})
	if err != nil {
		return model.Page[model.Notification]{}, fmt.Errorf("fetch notifications: %w", err)
	}
	return p, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return count, nil
}

// MarkAsRead marks a notification read and records it as opened. Marking
// an already read notification changes nothing.
func (s *Service) MarkAsRead(ctx context.Context, id string) error {
	return s.markRead(ctx, id, true)
}

func (s *Service) markRead(ctx context.Context, id string, trackOpened bool) error {
	n, err := s.mustGet(ctx, id)
	if err != nil {
		return err
	}
	if n.IsRead {
		return nil
	}
	changed, err := s.repo.MarkAsRead(ctx, id, s.now())
	if err != nil {
		return fmt.Errorf("mark as read: %w", err)
	}
	// A concurrent mark got there first.
	if !changed {
		return nil
	}
	if trackOpened {
		s.track(ctx, id, n.UserID, model.EventOpened, nil)
	}
	s.refresh(ctx, n.UserID)
	return nil
}

// MarkAllAsRead marks every unread notification of the user read.
func (s *Service) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.MarkAllAsRead(ctx, userID, s.now())
	if err != nil {
		return 0, fmt.Errorf("mark all as read: %w", err)
	}
	if count > 0 {
		s.refresh(ctx, userID)
	}
	return count, nil
}

// Delete removes a notification and cancels its pending delivery.
func (s *Service) Delete(ctx context.Context, id string) error {
	n, err := s.mustGet(ctx, id)
	if err != nil {
		return err
	}
	s.deliverer.Cancel(gateway.Handle(id))
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	s.refresh(ctx, n.UserID)
	return nil
}

// DeleteAll removes every notification of the user and cancels their
// pending deliveries.
func (s *Service) DeleteAll(ctx context.Context, userID string) (int, error) {
	ids, err := s.repo.DeleteForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	for _, id := range ids {
		s.deliverer.Cancel(gateway.Handle(id))
	}
	s.refresh(ctx, userID)
	return len(ids), nil
}

// DeleteExpired removes notifications that expired before now, cancels
// their pending deliveries, and refreshes every affected user.
func (s *Service) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	removed, err := s.repo.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired notifications: %w", err)
	}
	users := make(map[string]struct{})
	for _, n := range removed {
		s.deliverer.Cancel(gateway.Handle(n.ID))
		users[n.UserID] = struct{}{}
	}
	for userID := range users {
		s.refresh(ctx, userID)
	}
	return len(removed), nil
}

func (s *Service) mustGet(ctx context.Context, id string) (*model.Notification, error) {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	if n == nil {
		return nil, fmt.Errorf("notification %s: %w", id, model.ErrNotFound)
	}
	return n, nil
}

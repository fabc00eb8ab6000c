// Package gateway delivers notifications to devices. It owns push
// authorization, device token registration, local scheduling, rich content,
// badge counts, and notification action routing.
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/herald/internal/model"
	"github.com/dukerupert/herald/internal/push"
	"github.com/dukerupert/herald/internal/repository"
	"github.com/dukerupert/herald/internal/websocket"
)

const defaultAttachmentTimeout = 10 * time.Second

// Transport sends content to one device.
type Transport interface {
	Send(ctx context.Context, token model.PushToken, content push.Content) error
}

// Authorizer asks the platform for permission to deliver pushes.
type Authorizer interface {
	RequestAuthorization(ctx context.Context) (bool, error)
}

// Publisher receives live per-user updates.
type Publisher interface {
	Publish(userID string, topic websocket.Topic, data any)
}

// Store is the storage the gateway needs.
type Store interface {
	repository.PushTokens
	repository.Events
	Get(ctx context.Context, id string) (*model.Notification, error)
}

// AuthorizationStatus is the result of asking for push permission.
type AuthorizationStatus string

const (
	StatusUndetermined AuthorizationStatus = "undetermined"
	StatusGranted      AuthorizationStatus = "granted"
	StatusDenied       AuthorizationStatus = "denied"
)

// Handle identifies a scheduled delivery. It equals the notification id.
type Handle string

type Gateway struct {
	store      Store
	transport  Transport
	authorizer Authorizer
	publisher  Publisher
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string

	httpClient        *http.Client
	attachmentTimeout time.Duration
	attachmentDir     string

	authMu sync.Mutex
	status AuthorizationStatus

	mu         sync.Mutex
	timers     map[Handle]*time.Timer
	badges     map[string]int
	categories map[model.CategoryID]model.Category
	handler    ActionHandler
}

type Option func(*Gateway)

func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = l
	}
}

func WithPublisher(p Publisher) Option {
	return func(g *Gateway) {
		g.publisher = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// WithHTTPClient sets the client used to download attachments.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) {
		g.httpClient = c
	}
}

// WithAttachmentTimeout bounds each attachment download.
func WithAttachmentTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.attachmentTimeout = d
	}
}

// WithAttachmentDir sets where attachments are staged. Empty means the
// system temp directory.
func WithAttachmentDir(dir string) Option {
	return func(g *Gateway) {
		g.attachmentDir = dir
	}
}

func New(store Store, transport Transport, authorizer Authorizer, opts ...Option) *Gateway {
	g := &Gateway{
		store:             store,
		transport:         transport,
		authorizer:        authorizer,
		logger:            slog.Default(),
		now:               time.Now,
		newID:             uuid.NewString,
		httpClient:        http.DefaultClient,
		attachmentTimeout: defaultAttachmentTimeout,
		status:            StatusUndetermined,
		timers:            make(map[Handle]*time.Timer),
		badges:            make(map[string]int),
		categories:        make(map[model.CategoryID]model.Category),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "gateway")
	return g
}

// RequestAuthorization asks the authorizer once and remembers the answer.
// An authorizer error leaves the status undetermined so a later call retries.
func (g *Gateway) RequestAuthorization(ctx context.Context) (bool, error) {
	g.authMu.Lock()
	defer g.authMu.Unlock()

	if g.status != StatusUndetermined {
		return g.status == StatusGranted, nil
	}
	granted, err := g.authorizer.RequestAuthorization(ctx)
	if err != nil {
		return false, model.Transport("request push authorization", err)
	}
	if granted {
		g.status = StatusGranted
	} else {
		g.status = StatusDenied
	}
	g.logger.Info("push authorization", "status", g.status)
	return granted, nil
}

func (g *Gateway) AuthorizationStatus() AuthorizationStatus {
	g.authMu.Lock()
	defer g.authMu.Unlock()
	return g.status
}

func (g *Gateway) publish(userID string, topic websocket.Topic, data any) {
	if g.publisher != nil {
		g.publisher.Publish(userID, topic, data)
	}
}

// track appends an analytics event, logging rather than failing delivery.
func (g *Gateway) track(ctx context.Context, n *model.Notification, notificationID string, typ model.EventType, md map[string]string) {
	e := model.Event{
		ID:             g.newID(),
		NotificationID: notificationID,
		Type:           typ,
		Timestamp:      g.now(),
		Metadata:       md,
	}
	if n != nil {
		e.UserID = n.UserID
	}
	if err := g.store.Track(ctx, e); err != nil {
		g.logger.Error("track event", "notification_id", notificationID, "type", typ, "error", err)
	}
}

func removeAttachment(c push.Content) {
	if c.Attachment != nil && c.Attachment.Path != "" {
		os.Remove(c.Attachment.Path)
	}
}

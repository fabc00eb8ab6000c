package push

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dukerupert/herald/internal/model"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrExpired is returned when a push token is no longer valid (404/410).
var ErrExpired = errors.New("push token expired")

// ErrUnsupportedPlatform is returned for tokens this transport cannot reach.
var ErrUnsupportedPlatform = errors.New("unsupported push platform")

const defaultTTL = 86400

// Attachment is media staged for a rich notification.
type Attachment struct {
	Path        string `json:"-"`
	SourceURL   string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
}

// Content is the platform-neutral body of a push notification.
type Content struct {
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Badge      *int              `json:"badge,omitempty"`
	Sound      string            `json:"sound,omitempty"`
	CategoryID string            `json:"category,omitempty"`
	ThreadID   string            `json:"thread_id,omitempty"`
	UserInfo   map[string]string `json:"user_info,omitempty"`
	ActionURL  string            `json:"action_url,omitempty"`
	Priority   model.Priority    `json:"priority,omitempty"`
	Attachment *Attachment       `json:"attachment,omitempty"`
}

// Payload is the JSON sent to the push service.
type Payload struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	URL      string            `json:"url,omitempty"`
	Tag      string            `json:"tag,omitempty"`
	Image    string            `json:"image,omitempty"`
	Badge    *int              `json:"badge,omitempty"`
	Category string            `json:"category,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
}

// PayloadFor maps content onto the service worker payload.
func PayloadFor(c Content) Payload {
	p := Payload{
		Title:    c.Title,
		Body:     c.Body,
		URL:      c.ActionURL,
		Tag:      c.ThreadID,
		Badge:    c.Badge,
		Category: c.CategoryID,
		Data:     c.UserInfo,
	}
	if c.Attachment != nil {
		p.Image = c.Attachment.SourceURL
	}
	return p
}

// Subscription is the stable string form of a browser push subscription.
type Subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Service sends Web Push notifications signed with VAPID keys.
type Service struct {
	publicKey  string
	privateKey string
	subscriber string
	client     webpush.HTTPClient
}

type Option func(*Service)

// WithHTTPClient overrides the client used to reach push services.
func WithHTTPClient(c webpush.HTTPClient) Option {
	return func(s *Service) {
		s.client = c
	}
}

// NewService creates a new push service with VAPID keys. subscriber is a
// contact URL or email address sent to push services.
func NewService(publicKey, privateKey, subscriber string, opts ...Option) *Service {
	s := &Service{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// VAPIDPublicKey returns the VAPID public key for client-side subscription.
func (s *Service) VAPIDPublicKey() string {
	return s.publicKey
}

// RequestAuthorization reports whether the service can sign pushes.
func (s *Service) RequestAuthorization(ctx context.Context) (bool, error) {
	return s.publicKey != "" && s.privateKey != "", nil
}

// Send delivers content to a single device token.
func (s *Service) Send(ctx context.Context, token model.PushToken, content Content) error {
	if token.Platform != model.PlatformWeb {
		return fmt.Errorf("send to %s token: %w", token.Platform, ErrUnsupportedPlatform)
	}

	var sub webpush.Subscription
	if err := json.Unmarshal([]byte(token.Token), &sub); err != nil {
		return fmt.Errorf("decode subscription: %w", err)
	}

	data, err := json.Marshal(PayloadFor(content))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, &sub, &webpush.Options{
		HTTPClient:      s.client,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		Subscriber:      s.subscriber,
		TTL:             defaultTTL,
		Topic:           topic(content.ThreadID),
		Urgency:         urgency(content.Priority),
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		return ErrExpired
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}

	return nil
}

func urgency(p model.Priority) webpush.Urgency {
	switch p {
	case model.PriorityUrgent:
		return webpush.UrgencyHigh
	case model.PriorityHigh, model.PriorityMedium:
		return webpush.UrgencyNormal
	case model.PriorityLow:
		return webpush.UrgencyLow
	default:
		return webpush.UrgencyNormal
	}
}

// topic returns a value usable as a Topic header (at most 32 URL-safe
// base64 characters), or empty.
func topic(threadID string) string {
	if threadID == "" {
		return ""
	}
	t := base64.RawURLEncoding.EncodeToString([]byte(threadID))
	if len(t) > 32 {
		t = t[:32]
	}
	return t
}

// GenerateVAPIDKeys generates a new ECDSA P-256 key pair for VAPID.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate ECDSA key: %w", err)
	}

	pubBytes := elliptic.Marshal(elliptic.P256(), key.PublicKey.X, key.PublicKey.Y)
	publicKey = base64.RawURLEncoding.EncodeToString(pubBytes)
	privateKey = base64.RawURLEncoding.EncodeToString(key.D.FillBytes(make([]byte, 32)))

	return publicKey, privateKey, nil
}

// CompactSubscription validates a browser subscription and returns its
// compact JSON form, used as the stored token value.
func CompactSubscription(raw []byte) (string, error) {
	var sub Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return "", fmt.Errorf("decode subscription: %w", err)
	}
	if sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		return "", errors.New("subscription requires endpoint, p256dh and auth")
	}
	b, err := json.Marshal(sub)
	if err != nil {
		return "", fmt.Errorf("encode subscription: %w", err)
	}
	return string(b), nil
}

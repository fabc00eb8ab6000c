package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/dukerupert/herald/internal/model"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	// Public key should be base64url-encoded, 65 bytes uncompressed P-256 point
	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	// Private key should be base64url-encoded, 32 bytes P-256 scalar
	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) != 32 {
		t.Errorf("private key length = %d, want 32", len(privBytes))
	}

	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

// testSubscription returns a browser-like subscription pointing at endpoint.
func testSubscription(t *testing.T, endpoint string) string {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate subscription key: %v", err)
	}
	auth := make([]byte, 16)
	rand.Read(auth)

	raw, _ := json.Marshal(map[string]any{
		"endpoint": endpoint,
		"keys": map[string]string{
			"p256dh": base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
			"auth":   base64.RawURLEncoding.EncodeToString(auth),
		},
	})
	token, err := CompactSubscription(raw)
	if err != nil {
		t.Fatalf("compact subscription: %v", err)
	}
	return token
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}
	return NewService(pub, priv, "ops@example.com")
}

func TestSendDelivers(t *testing.T) {
	var calls atomic.Int32
	urgency := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		urgency <- r.Header.Get("Urgency")
		if r.Header.Get("Authorization") == "" {
			t.Error("expected VAPID authorization header")
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	svc := newTestService(t)
	token := model.PushToken{ID: "t1", Platform: model.PlatformWeb, Token: testSubscription(t, srv.URL)}
	err := svc.Send(context.Background(), token, Content{Title: "Hi", Body: "There", Priority: model.PriorityUrgent})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if got := <-urgency; got != "high" {
		t.Errorf("urgency = %q, want %q", got, "high")
	}
}

func TestSendExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	svc := newTestService(t)
	token := model.PushToken{ID: "t1", Platform: model.PlatformWeb, Token: testSubscription(t, srv.URL)}
	err := svc.Send(context.Background(), token, Content{Title: "Hi"})
	if !errors.Is(err, ErrExpired) {
		t.Errorf("err = %v, want ErrExpired", err)
	}
}

func TestSendServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := newTestService(t)
	token := model.PushToken{ID: "t1", Platform: model.PlatformWeb, Token: testSubscription(t, srv.URL)}
	err := svc.Send(context.Background(), token, Content{Title: "Hi"})
	if err == nil || errors.Is(err, ErrExpired) {
		t.Errorf("err = %v, want a non-expiry failure", err)
	}
}

func TestSendUnsupportedPlatform(t *testing.T) {
	svc := newTestService(t)
	err := svc.Send(context.Background(), model.PushToken{Platform: model.PlatformIOS, Token: "abcd"}, Content{})
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Errorf("err = %v, want ErrUnsupportedPlatform", err)
	}
}

func TestRequestAuthorization(t *testing.T) {
	ok, _ := newTestService(t).RequestAuthorization(context.Background())
	if !ok {
		t.Error("expected authorization with keys configured")
	}
	ok, _ = NewService("", "", "").RequestAuthorization(context.Background())
	if ok {
		t.Error("expected no authorization without keys")
	}
}

func TestCompactSubscription(t *testing.T) {
	raw := []byte(`{
		"endpoint": "https://push.example.com/abc",
		"expirationTime": null,
		"keys": {"auth": "x", "p256dh": "y"}
	}`)
	got, err := CompactSubscription(raw)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	want := `{"endpoint":"https://push.example.com/abc","keys":{"p256dh":"y","auth":"x"}}`
	if got != want {
		t.Errorf("compact = %s, want %s", got, want)
	}

	if _, err := CompactSubscription([]byte(`{"endpoint":""}`)); err == nil {
		t.Error("expected error for incomplete subscription")
	}
}

func TestPayloadFor(t *testing.T) {
	badge := 2
	p := PayloadFor(Content{
		Title:      "Test",
		Body:       "Hello",
		ActionURL:  "/courses/1",
		ThreadID:   "course_assigned",
		Badge:      &badge,
		Attachment: &Attachment{SourceURL: "https://img.example.com/x.png"},
	})
	if p.URL != "/courses/1" || p.Tag != "course_assigned" {
		t.Errorf("payload = %+v", p)
	}
	if p.Image != "https://img.example.com/x.png" {
		t.Errorf("image = %q", p.Image)
	}
	if p.Badge == nil || *p.Badge != 2 {
		t.Errorf("badge = %v, want 2", p.Badge)
	}
}

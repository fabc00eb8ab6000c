package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/herald/internal/gateway"
	"github.com/dukerupert/herald/internal/model"
	"github.com/dukerupert/herald/internal/push"
	"github.com/dukerupert/herald/internal/repository"
	"github.com/dukerupert/herald/internal/websocket"
)

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

type grantAll struct{}

func (grantAll) RequestAuthorization(ctx context.Context) (bool, error) { return true, nil }

type recordingTransport struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingTransport) Send(ctx context.Context, token model.PushToken, c push.Content) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, c.UserInfo["notificationId"])
	return nil
}

func (r *recordingTransport) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type fakeMailer struct {
	mu   sync.Mutex
	to   []string
	fail error
}

func (m *fakeMailer) SendNotification(ctx context.Context, to string, n model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.to = append(m.to, to)
	return nil
}

// failingRepo fails to create notifications for one user.
type failingRepo struct {
	*repository.Memory
	failFor string
}

func (f failingRepo) Create(ctx context.Context, n model.Notification) (model.Notification, error) {
	if n.UserID == f.failFor {
		return model.Notification{}, errors.New("disk full")
	}
	return f.Memory.Create(ctx, n)
}

type testEnv struct {
	svc       *Service
	repo      repository.Repository
	gw        *gateway.Gateway
	hub       *websocket.Hub
	transport *recordingTransport
	mailer    *fakeMailer
}

func setup(t *testing.T, repo repository.Repository, now time.Time) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time { return now }
	hub := websocket.NewHub(logger)
	tr := &recordingTransport{}
	gw := gateway.New(repo, tr, grantAll{}, gateway.WithLogger(logger), gateway.WithPublisher(hub), gateway.WithClock(clock))
	t.Cleanup(gw.CancelAll)
	mailer := &fakeMailer{}
	svc := New(repo, gw, WithHub(hub), WithMailer(mailer), WithLogger(logger), WithClock(clock), WithMaxConcurrency(2))
	return &testEnv{svc: svc, repo: repo, gw: gw, hub: hub, transport: tr, mailer: mailer}
}

func registerDevice(t *testing.T, env *testEnv, userID string) {
	t.Helper()
	_, err := env.svc.RegisterPushToken(context.Background(), gateway.TokenRegistration{
		UserID: userID, DeviceID: "device-" + userID, Platform: model.PlatformAndroid, Raw: []byte{0x01, 0x02},
	})
	if err != nil {
		t.Fatalf("register push token: %v", err)
	}
}

func eventsOf(t *testing.T, repo repository.Repository, id string) []model.Event {
	t.Helper()
	events, err := repo.ListEvents(context.Background(), id)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	return events
}

func TestSendPartialFailure(t *testing.T) {
	repo := failingRepo{Memory: repository.NewMemory(), failFor: "u2"}
	env := setup(t, repo, testNow)
	ctx := context.Background()

	res, err := env.svc.Send(ctx, SendRequest{
		To: []string{"u1", "u2", "u3"}, Type: model.TypeCourseAssigned, Title: "New course", Body: "Go basics",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(res.Sent) != 2 || res.Sent[0].UserID != "u1" || res.Sent[1].UserID != "u3" {
		t.Errorf("sent = %+v, want u1 and u3", res.Sent)
	}
	if len(res.Failed) != 1 || res.Failed[0].UserID != "u2" {
		t.Fatalf("failed = %+v, want u2", res.Failed)
	}

	for _, u := range []string{"u1", "u3"} {
		count, _ := env.svc.UnreadCount(ctx, u)
		if count != 1 {
			t.Errorf("%s unread = %d, want 1", u, count)
		}
	}
	if count, _ := env.svc.UnreadCount(ctx, "u2"); count != 0 {
		t.Errorf("u2 unread = %d, want 0", count)
	}
}

func TestSendAllFail(t *testing.T) {
	repo := failingRepo{Memory: repository.NewMemory(), failFor: "u2"}
	env := setup(t, repo, testNow)

	res, err := env.svc.Send(context.Background(), SendRequest{To: []string{"u2"}, Type: model.TypeSystemMessage, Title: "x"})
	if err == nil {
		t.Fatal("expected error when every recipient fails")
	}
	var re *RecipientError
	if !errors.As(err, &re) || re.UserID != "u2" {
		t.Errorf("err = %v, want RecipientError for u2", err)
	}
	if res == nil || len(res.Failed) != 1 {
		t.Errorf("result = %+v, want one failure", res)
	}
}

func TestSendInvalidRequest(t *testing.T) {
	env := setup(t, repository.NewMemory(), testNow)

	tests := []struct {
		name string
		req  SendRequest
		want error
	}{
		{"no recipients", SendRequest{Type: model.TypeDeadline}, model.ErrInvalidRecipient},
		{"blank recipient", SendRequest{To: []string{"u1", " "}, Type: model.TypeDeadline}, model.ErrInvalidRecipient},
		{"bad type", SendRequest{To: []string{"u1"}, Type: "party"}, model.ErrInvalidRequest},
		{"bad priority", SendRequest{To: []string{"u1"}, Type: model.TypeDeadline, Priority: "extreme"}, model.ErrInvalidRequest},
		{"bad channel", SendRequest{To: []string{"u1"}, Type: model.TypeDeadline, Channels: []model.Channel{"fax"}}, model.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Send(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if tt.want == model.ErrInvalidRequest && errors.Is(err, model.ErrInvalidRecipient) {
				t.Errorf("err = %v, should not blame the recipients", err)
			}
		})
	}
}

func TestSendResolvesChannelsAndPriority(t *testing.T) {
	env := setup(t, repository.NewMemory(), testNow)
	ctx := context.Background()

	prefs := model.DefaultPreferences("u1", testNow)
	prefs.ChannelPreferences[model.TypeTestDeadline] = []model.Channel{model.ChannelEmail, model.ChannelInApp}
	if _, err := env.svc.UpdatePreferences(ctx, prefs); err != nil {
		t.Fatalf("update preferences: %v", err)
	}

	res, err := env.svc.Send(ctx, SendRequest{To: []string{"u1", "u2"}, Type: model.TypeTestDeadline, Title: "Due"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	u1, u2 := res.Sent[0], res.Sent[1]
	if len(u1.Channels) != 2 || u1.Channels[0] != model.ChannelEmail || u1.Channels[1] != model.ChannelInApp {
		t.Errorf("u1 channels = %v, want [email in_app]", u1.Channels)
	}
	if len(u2.Channels) != 1 || u2.Channels[0] != model.ChannelInApp {
		t.Errorf("u2 channels = %v, want [in_app]", u2.Channels)
	}
	if u1.Priority != model.PriorityHigh {
		t.Errorf("priority = %q, want type default high", u1.Priority)
	}

	// First access saved defaults for u2.
	stored, _ := env.repo.GetPreferences(ctx, "u2")
	if stored == nil || !stored.IsEnabled {
		t.Errorf("u2 preferences = %+v, want saved defaults", stored)
	}
}

func TestSendDeliversPush(t *testing.T) {
	env := setup(t, repository.NewMemory(), testNow)
	registerDevice(t, env, "u1")

	res, err := env.svc.Send(context.Background(), SendRequest{
		To: []string{"u1"}, Type: model.TypeAchievement, Title: "Badge", Channels: []model.Channel{model.ChannelPush},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if env.transport.count() != 1 {
		t.Errorf("pushes = %d, want 1", env.transport.count())
	}
	events := eventsOf(t, env.repo, res.Sent[0].ID)
	if len(events) != 1 || events[0].Type != model.EventDelivered {
		t.Errorf("events = %+v, want delivered", events)
	}
	if env.gw.Badge("u1") != 1 {
		t.Errorf("badge = %d, want 1", env.gw.Badge("u1"))
	}
}

var lateNight = time.Date(2025, time.March, 10, 23, 30, 0, 0, time.UTC)

// setupQuietHours returns an environment at 23:30 where u1 has a device and
// quiet hours enabled, so push deliveries are deferred.
func setupQuietHours(t *testing.T) *testEnv {
	t.Helper()
	env := setup(t, repository.NewMemory(), lateNight)
	registerDevice(t, env, "u1")

	prefs := model.DefaultPreferences("u1", lateNight)
	qh := model.DefaultQuietHours()
	qh.IsEnabled = true
	prefs.QuietHours = &qh
	if _, err := env.svc.UpdatePreferences(context.Background(), prefs); err != nil {
		t.Fatalf("update preferences: %v", err)
	}
	return env
}

func TestSendDefersPushDuringQuietHours(t *testing.T) {
	env := setupQuietHours(t)
	ctx := context.Background()

	res, err := env.svc.Send(ctx, SendRequest{
		To: []string{"u1"}, Type: model.TypeFeedActivity, Title: "Liked", Channels: []model.Channel{model.ChannelPush, model.ChannelInApp},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	id := res.Sent[0].ID
	if env.transport.count() != 0 {
		t.Error("expected push to wait until quiet hours end")
	}
	if pending := env.gw.Pending(); len(pending) != 1 || string(pending[0]) != id {
		t.Errorf("pending = %v, want [%s]", pending, id)
	}
	if n, _ := env.svc.Get(ctx, id); n == nil {
		t.Error("expected notification persisted for the in-app list")
	}

	if err := env.svc.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(env.gw.Pending()) != 0 {
		t.Error("expected delete to cancel the pending delivery")
	}
}

func TestSendEmail(t *testing.T) {
	env := setup(t, repository.NewMemory(), testNow)
	ctx := context.Background()

	req := SendRequest{
		To: []string{"u1"}, Type: model.TypeCertificateIssued, Title: "Certificate",
		Channels: []model.Channel{model.ChannelEmail},
		Data:     map[string]string{"email": "ada@example.com"},
	}
	res, err := env.svc.Send(ctx, req)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(env.mailer.to) != 1 || env.mailer.to[0] != "ada@example.com" {
		t.Errorf("mailed = %v", env.mailer.to)
	}
	events := eventsOf(t, env.repo, res.Sent[0].ID)
	if len(events) != 1 || events[0].Type != model.EventDelivered || events[0].Metadata["channel"] != "email" {
		t.Errorf("events = %+v, want email delivered", events)
	}

	env.mailer.fail = errors.New("postmark down")
	res, err = env.svc.Send(ctx, req)
	if err != nil {
		t.Fatalf("send with failing mailer: %v", err)
	}
	events = eventsOf(t, env.repo, res.Sent[0].ID)
	if len(events) != 1 || events[0].Type != model.EventFailed {
		t.Errorf("events = %+v, want failed", events)
	}
}

func TestSendTemplated(t *testing.T) {
	env := setup(t, repository.NewMemory(), testNow)
	ctx := context.Background()

	_, err := env.svc.SendTemplated(ctx, TemplatedRequest{To: []string{"u1"}, Type: model.TypeTestReminder})
	if !errors.Is(err, model.ErrTemplateNotFound) {
		t.Fatalf("err = %v, want ErrTemplateNotFound", err)
	}

	_, err = env.svc.SaveTemplate(ctx, model.Template{
		Type:              model.TypeTestReminder,
		TitleTemplate:     "{{test}} tomorrow",
		BodyTemplate:      "Good luck, {{name}}. Room {{room}}.",
		DefaultPriority:   model.PriorityHigh,
		DefaultExpiration: time.Hour,
	})
	if err != nil {
		t.Fatalf("save template: %v", err)
	}

	res, err := env.svc.SendTemplated(ctx, TemplatedRequest{
		To: []string{"u1"}, Type: model.TypeTestReminder,
		Parameters: map[string]string{"test": "Safety quiz", "name": "Ada"},
	})
	if err != nil {
		t.Fatalf("send templated: %v", err)
	}
	n := res.Sent[0]
	if n.Title != "Safety quiz tomorrow" {
		t.Errorf("title = %q", n.Title)
	}
	if n.Body != "Good luck, Ada. Room {{room}}." {
		t.Errorf("body = %q", n.Body)
	}
	if n.Priority != model.PriorityHigh {
		t.Errorf("priority = %q, want high", n.Priority)
	}
	if n.ExpiresAt == nil || !n.ExpiresAt.Equal(testNow.Add(time.Hour)) {
		t.Errorf("expires at = %v, want %v", n.ExpiresAt, testNow.Add(time.Hour))
	}
}

func TestMarkAsRead(t *testing.T) {
	env := setup(t, repository.NewMemory(), testNow)
	ctx := context.Background()
	_, stop := env.svc.Subscribe("u1")
	defer stop()

	res, _ := env.svc.Send(ctx, SendRequest{To: []string{"u1"}, Type: model.TypeDeadline, Title: "Due"})
	env.svc.Send(ctx, SendRequest{To: []string{"u1"}, Type: model.TypeDeadline, Title: "Due again"})
	id := res.Sent[0].ID
	if env.gw.Badge("u1") != 2 {
		t.Errorf("badge = %d, want 2", env.gw.Badge("u1"))
	}

	for range 2 {
		if err := env.svc.MarkAsRead(ctx, id); err != nil {
			t.Fatalf("mark as read: %v", err)
		}
	}
	events := eventsOf(t, env.repo, id)
	if len(events) != 1 || events[0].Type != model.EventOpened {
		t.Errorf("events = %+v, want one opened", events)
	}
	if env.gw.Badge("u1") != 1 {
		t.Errorf("badge = %d, want 1", env.gw.Badge("u1"))
	}
	if msg, ok := env.hub.Latest("u1", websocket.TopicUnreadCount); !ok || msg.Data != 1 {
		t.Errorf("unread stream = %+v, want 1", msg)
	}

	count, err := env.svc.MarkAllAsRead(ctx, "u1")
	if err != nil || count != 1 {
		t.Errorf("mark all = %d, %v, want 1", count, err)
	}
	if env.gw.Badge("u1") != 0 {
		t.Errorf("badge = %d, want 0", env.gw.Badge("u1"))
	}

	if err := env.svc.MarkAsRead(ctx, "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("missing err = %v, want ErrNotFound", err)
	}
}

// heldGetRepo blocks every Get until release is closed, so concurrent
// callers all see the notification before any of them marks it.
type heldGetRepo struct {
	*repository.Memory
	arrived chan struct{}
	release chan struct{}
}

func (r heldGetRepo) Get(ctx context.Context, id string) (*model.Notification, error) {
	r.arrived <- struct{}{}
	<-r.release
	return r.Memory.Get(ctx, id)
}

func TestConcurrentMarkAsReadTracksOneOpen(t *testing.T) {
	const callers = 4
	repo := heldGetRepo{
		Memory:  repository.NewMemory(),
		arrived: make(chan struct{}, callers),
		release: make(chan struct{}),
	}
	env := setup(t, repo, testNow)
	ctx := context.Background()

	res, err := env.svc.Send(ctx, SendRequest{To: []string{"u1"}, Type: model.TypeDeadline, Title: "Due"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	id := res.Sent[0].ID

	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := env.svc.MarkAsRead(ctx, id); err != nil {
				t.Errorf("mark as read: %v", err)
			}
		}()
	}
	for range callers {
		<-repo.arrived
	}
	close(repo.release)
	wg.Wait()

	events := eventsOf(t, env.repo, id)
	if len(events) != 1 || events[0].Type != model.EventOpened {
		t.Errorf("events = %+v, want exactly one opened", events)
	}
	if env.gw.Badge("u1") != 0 {
		t.Errorf("badge = %d, want 0", env.gw.Badge("u1"))
	}
}

func TestTrackOpenedMarksRead(t *testing.T) {
	env := setup(t, repository.NewMemory(), testNow)
	ctx := context.Background()

	res, _ := env.svc.Send(ctx, SendRequest{To: []string{"u1"}, Type: model.TypeFeedMention, Title: "@ada"})
	id := res.Sent[0].ID

	if err := env.svc.TrackOpened(ctx, id); err != nil {
		t.Fatalf("track opened: %v", err)
	}
	n, _ := env.svc.Get(ctx, id)
	if n == nil || !n.IsRead {
		t.Fatalf("notification = %+v, want read", n)
	}
	events := eventsOf(t, env.repo, id)
	if len(events) != 1 || events[0].Type != model.EventOpened {
		t.Errorf("events = %+v, want one opened", events)
	}

	if err := env.svc.TrackDismissed(ctx, id); err != nil {
		t.Fatalf("track dismissed: %v", err)
	}
	reply := "thanks"
	r, err := env.svc.TrackAction(ctx, id, model.ActionReply, &reply)
	if err != nil {
		t.Fatalf("track action: %v", err)
	}
	if r.Kind != gateway.ActionReply || r.ResponseText != "thanks" {
		t.Errorf("result = %+v", r)
	}
	if len(eventsOf(t, env.repo, id)) != 3 {
		t.Errorf("events = %d, want 3", len(eventsOf(t, env.repo, id)))
	}

	if err := env.svc.TrackOpened(ctx, "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("missing err = %v, want ErrNotFound", err)
	}
}

func TestDeleteAll(t *testing.T) {
	env := setup(t, repository.NewMemory(), testNow)
	ctx := context.Background()

	env.svc.Send(ctx, SendRequest{To: []string{"u1", "u1", "u2"}, Type: model.TypeDeadline, Title: "Due"})
	count, err := env.svc.DeleteAll(ctx, "u1")
	if err != nil || count != 2 {
		t.Errorf("delete all = %d, %v, want 2", count, err)
	}
	page, _ := env.svc.Fetch(ctx, "u2", 1, 20, nil)
	if page.TotalItems != 1 {
		t.Errorf("u2 total = %d, want 1", page.TotalItems)
	}
	if err := env.svc.Delete(ctx, "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("missing err = %v, want ErrNotFound", err)
	}
}

func TestDeleteAllCancelsDeferredPush(t *testing.T) {
	env := setupQuietHours(t)
	ctx := context.Background()

	_, err := env.svc.Send(ctx, SendRequest{
		To: []string{"u1", "u1"}, Type: model.TypeFeedActivity, Title: "Liked", Channels: []model.Channel{model.ChannelPush},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if pending := env.gw.Pending(); len(pending) != 2 {
		t.Fatalf("pending = %v, want two deferred pushes", pending)
	}

	count, err := env.svc.DeleteAll(ctx, "u1")
	if err != nil || count != 2 {
		t.Fatalf("delete all = %d, %v, want 2", count, err)
	}
	if pending := env.gw.Pending(); len(pending) != 0 {
		t.Errorf("pending = %v, want none after delete all", pending)
	}
}

func TestDeleteExpiredCancelsDeferredPush(t *testing.T) {
	env := setupQuietHours(t)
	ctx := context.Background()
	_, stop := env.svc.Subscribe("u1")
	defer stop()

	soon := lateNight.Add(time.Hour)
	res, err := env.svc.Send(ctx, SendRequest{
		To: []string{"u1"}, Type: model.TypeFeedActivity, Title: "Liked", Channels: []model.Channel{model.ChannelPush, model.ChannelInApp},
		ExpiresAt: &soon,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	kept, err := env.svc.Send(ctx, SendRequest{
		To: []string{"u1"}, Type: model.TypeFeedActivity, Title: "Followed", Channels: []model.Channel{model.ChannelPush, model.ChannelInApp},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	count, err := env.svc.DeleteExpired(ctx, soon.Add(time.Minute))
	if err != nil || count != 1 {
		t.Fatalf("delete expired = %d, %v, want 1", count, err)
	}
	pending := env.gw.Pending()
	if len(pending) != 1 || string(pending[0]) != kept.Sent[0].ID {
		t.Errorf("pending = %v, want only %s", pending, kept.Sent[0].ID)
	}
	if n, _ := env.svc.Get(ctx, res.Sent[0].ID); n != nil {
		t.Error("expired notification still stored")
	}
	msg, ok := env.hub.Latest("u1", websocket.TopicNotifications)
	if !ok {
		t.Fatal("expected notifications published")
	}
	if page, ok := msg.Data.(model.Page[model.Notification]); !ok || page.TotalItems != 1 || page.Items[0].ID != kept.Sent[0].ID {
		t.Errorf("notifications stream = %+v, want only the live notification", msg.Data)
	}
	if env.gw.Badge("u1") != 1 {
		t.Errorf("badge = %d, want 1", env.gw.Badge("u1"))
	}
}

// collect reads messages into a topic-to-data map until done reports true.
func collect(t *testing.T, ch <-chan websocket.Message, done func(map[websocket.Topic]any) bool) map[websocket.Topic]any {
	t.Helper()
	seen := map[websocket.Topic]any{}
	timeout := time.After(2 * time.Second)
	for !done(seen) {
		select {
		case msg := <-ch:
			seen[msg.Topic] = msg.Data
		case <-timeout:
			t.Fatalf("timeout, saw %v", seen)
		}
	}
	return seen
}

func TestSubscribe(t *testing.T) {
	env := setup(t, repository.NewMemory(), testNow)
	ch, cancel := env.svc.Subscribe("u1")
	defer cancel()

	// A first listener starts from a snapshot of every topic.
	seen := collect(t, ch, func(m map[websocket.Topic]any) bool { return len(m) == 4 })
	if p, ok := seen[websocket.TopicPreferences].(model.Preferences); !ok || !p.IsEnabled {
		t.Errorf("preferences snapshot = %v", seen[websocket.TopicPreferences])
	}
	if seen[websocket.TopicUnreadCount] != 0 || seen[websocket.TopicBadge] != 0 {
		t.Errorf("snapshot counts = %v", seen)
	}

	res, _ := env.svc.Send(context.Background(), SendRequest{To: []string{"u1"}, Type: model.TypeDeadline, Title: "Due"})
	seen = collect(t, ch, func(m map[websocket.Topic]any) bool { return m[websocket.TopicUnreadCount] == 1 })
	page, ok := seen[websocket.TopicNotifications].(model.Page[model.Notification])
	if !ok || len(page.Items) != 1 || page.Items[0].ID != res.Sent[0].ID {
		t.Errorf("notifications stream = %v", seen[websocket.TopicNotifications])
	}
	if seen[websocket.TopicBadge] != 1 {
		t.Errorf("counts = %v", seen)
	}
}

func TestSubscribeSeesCurrentState(t *testing.T) {
	env := setup(t, repository.NewMemory(), testNow)
	ctx := context.Background()

	res, _ := env.svc.Send(ctx, SendRequest{To: []string{"u1"}, Type: model.TypeDeadline, Title: "Due"})
	id := res.Sent[0].ID
	if err := env.svc.MarkAsRead(ctx, id); err != nil {
		t.Fatalf("mark as read: %v", err)
	}

	ch, cancel := env.svc.Subscribe("u1")
	defer cancel()
	seen := collect(t, ch, func(m map[websocket.Topic]any) bool { return len(m) == 4 })
	page, ok := seen[websocket.TopicNotifications].(model.Page[model.Notification])
	if !ok || len(page.Items) != 1 || page.Items[0].ID != id || !page.Items[0].IsRead {
		t.Errorf("notifications snapshot = %+v, want %s read", seen[websocket.TopicNotifications], id)
	}
	if seen[websocket.TopicUnreadCount] != 0 {
		t.Errorf("unread snapshot = %v, want 0", seen[websocket.TopicUnreadCount])
	}

	if err := env.svc.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	seen = collect(t, ch, func(m map[websocket.Topic]any) bool {
		p, ok := m[websocket.TopicNotifications].(model.Page[model.Notification])
		return ok && p.TotalItems == 0
	})
	if seen[websocket.TopicUnreadCount] != 0 {
		t.Errorf("unread after delete = %v, want 0", seen[websocket.TopicUnreadCount])
	}
}

func TestUpdatePreferences(t *testing.T) {
	env := setup(t, repository.NewMemory(), testNow)
	ctx := context.Background()
	_, stop := env.svc.Subscribe("u1")
	defer stop()

	got, err := env.svc.GetPreferences(ctx, "u1")
	if err != nil {
		t.Fatalf("get preferences: %v", err)
	}
	if !got.IsEnabled || got.QuietHours != nil {
		t.Errorf("defaults = %+v", got)
	}

	bad := []model.Preferences{
		{UserID: ""},
		{UserID: "u1", Timezone: "Mars/Olympus"},
		{UserID: "u1", ChannelPreferences: map[model.Type][]model.Channel{model.TypeDeadline: {"pigeon"}}},
		{UserID: "u1", QuietHours: &model.QuietHours{IsEnabled: true}},
	}
	for _, p := range bad {
		if _, err := env.svc.UpdatePreferences(ctx, p); !errors.Is(err, ErrInvalidPreferences) {
			t.Errorf("update %+v err = %v, want ErrInvalidPreferences", p, err)
		}
	}

	got.Timezone = "America/Denver"
	got.IsEnabled = false
	saved, err := env.svc.UpdatePreferences(ctx, got)
	if err != nil {
		t.Fatalf("update preferences: %v", err)
	}
	msg, ok := env.hub.Latest("u1", websocket.TopicPreferences)
	if !ok {
		t.Fatal("expected preferences published")
	}
	if p, ok := msg.Data.(model.Preferences); !ok || p.Timezone != "America/Denver" || p.IsEnabled {
		t.Errorf("published = %+v", msg.Data)
	}
	if !saved.UpdatedAt.Equal(testNow) {
		t.Errorf("updated at = %v", saved.UpdatedAt)
	}
}

// racingPrefsRepo runs onMiss once, right after a preferences read finds
// nothing, to stand in for an update landing between read and create.
type racingPrefsRepo struct {
	*repository.Memory
	onMiss func()
}

func (r *racingPrefsRepo) GetPreferences(ctx context.Context, userID string) (*model.Preferences, error) {
	p, err := r.Memory.GetPreferences(ctx, userID)
	if p == nil && err == nil && r.onMiss != nil {
		miss := r.onMiss
		r.onMiss = nil
		miss()
	}
	return p, err
}

func TestGetPreferencesKeepsConcurrentUpdate(t *testing.T) {
	repo := &racingPrefsRepo{Memory: repository.NewMemory()}
	env := setup(t, repo, testNow)
	ctx := context.Background()

	updated := model.DefaultPreferences("u1", testNow)
	updated.IsEnabled = false
	updated.Timezone = "America/Denver"
	repo.onMiss = func() {
		if err := repo.Memory.SavePreferences(ctx, updated); err != nil {
			t.Errorf("save: %v", err)
		}
	}

	got, err := env.svc.GetPreferences(ctx, "u1")
	if err != nil {
		t.Fatalf("get preferences: %v", err)
	}
	if got.IsEnabled || got.Timezone != "America/Denver" {
		t.Errorf("returned = %+v, want the concurrent update", got)
	}
	stored, _ := repo.Memory.GetPreferences(ctx, "u1")
	if stored == nil || stored.IsEnabled || stored.Timezone != "America/Denver" {
		t.Errorf("stored = %+v, defaults overwrote the update", stored)
	}
}

func TestGetPreferencesPublishesDefaults(t *testing.T) {
	env := setup(t, repository.NewMemory(), testNow)
	// Without the snapshot hook the listener sees only what creation publishes.
	env.hub.OnFirstListener(nil)
	ch, stop := env.svc.Subscribe("u1")
	defer stop()

	if _, err := env.svc.GetPreferences(context.Background(), "u1"); err != nil {
		t.Fatalf("get preferences: %v", err)
	}
	select {
	case msg := <-ch:
		p, ok := msg.Data.(model.Preferences)
		if msg.Topic != websocket.TopicPreferences || !ok || !p.IsEnabled {
			t.Errorf("message = %+v, want default preferences", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for default preferences")
	}

	if _, err := env.svc.GetPreferences(context.Background(), "u1"); err != nil {
		t.Fatalf("get preferences: %v", err)
	}
	select {
	case msg := <-ch:
		t.Errorf("unexpected %+v, stored preferences are not republished on read", msg)
	default:
	}
}

func TestUnregisterDevice(t *testing.T) {
	env := setup(t, repository.NewMemory(), testNow)
	ctx := context.Background()
	registerDevice(t, env, "u1")

	count, err := env.svc.UnregisterDevice(ctx, "u1", "device-u1")
	if err != nil || count != 1 {
		t.Fatalf("unregister = %d, %v, want 1", count, err)
	}
	tokens, _ := env.repo.ListActivePushTokens(ctx, "u1")
	if len(tokens) != 0 {
		t.Errorf("active tokens = %d, want 0", len(tokens))
	}
	if _, err := env.svc.UnregisterDevice(ctx, "u1", "device-u1"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("repeat err = %v, want ErrNotFound", err)
	}
}

func TestStats(t *testing.T) {
	env := setup(t, repository.NewMemory(), testNow)
	ctx := context.Background()
	registerDevice(t, env, "u1")

	res, _ := env.svc.Send(ctx, SendRequest{
		To: []string{"u1", "u1"}, Type: model.TypeAchievement, Title: "Badge", Channels: []model.Channel{model.ChannelPush},
	})
	env.svc.TrackOpened(ctx, res.Sent[0].ID)

	a, err := env.svc.Stats(ctx, "u1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if a.TotalDelivered != 2 || a.TotalOpened != 1 || a.OpenRate != 0.5 {
		t.Errorf("analytics = %+v", a)
	}
}

func TestTemplateAdministration(t *testing.T) {
	env := setup(t, repository.NewMemory(), testNow)
	ctx := context.Background()

	if _, err := env.svc.SaveTemplate(ctx, model.Template{Type: "party"}); !errors.Is(err, ErrInvalidTemplate) {
		t.Errorf("bad type err = %v, want ErrInvalidTemplate", err)
	}

	saved, err := env.svc.SaveTemplate(ctx, model.Template{
		Type: model.TypeCourseAssigned, TitleTemplate: "{{course}}",
		DefaultChannels: []model.Channel{model.ChannelPush, model.ChannelPush},
	})
	if err != nil {
		t.Fatalf("save template: %v", err)
	}
	if saved.DefaultPriority != model.PriorityMedium || len(saved.DefaultChannels) != 1 {
		t.Errorf("saved = %+v", saved)
	}

	list, _ := env.svc.ListTemplates(ctx)
	if len(list) != 1 {
		t.Errorf("templates = %d, want 1", len(list))
	}
	if err := env.svc.DeleteTemplate(ctx, model.TypeCourseAssigned); err != nil {
		t.Fatalf("delete template: %v", err)
	}
	if _, err := env.svc.GetTemplate(ctx, model.TypeCourseAssigned); !errors.Is(err, model.ErrTemplateNotFound) {
		t.Errorf("get deleted err = %v, want ErrTemplateNotFound", err)
	}
	if err := env.svc.DeleteTemplate(ctx, model.TypeCourseAssigned); !errors.Is(err, model.ErrTemplateNotFound) {
		t.Errorf("delete missing err = %v, want ErrTemplateNotFound", err)
	}
}

// Package repotest holds behavioral tests shared by every Repository
// implementation.
package repotest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/dukerupert/herald/internal/model"
	"github.com/dukerupert/herald/internal/repository"
)

var base = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

// Run exercises newRepo against the repository contract. newRepo is called
// once per subtest and must return an empty repository.
func Run(t *testing.T, newRepo func(t *testing.T) repository.Repository) {
	tests := []struct {
		name string
		fn   func(t *testing.T, r repository.Repository)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"CreateDuplicate", testCreateDuplicate},
		{"GetMissing", testGetMissing},
		{"UpdateAndDelete", testUpdateAndDelete},
		{"MarkAsReadIdempotent", testMarkAsReadIdempotent},
		{"MarkAllAsRead", testMarkAllAsRead},
		{"FetchOrderAndPagination", testFetchOrderAndPagination},
		{"FetchFilters", testFetchFilters},
		{"DeleteForUser", testDeleteForUser},
		{"DeleteExpired", testDeleteExpired},
		{"PushTokenRotation", testPushTokenRotation},
		{"PushTokenLifecycle", testPushTokenLifecycle},
		{"Preferences", testPreferences},
		{"Templates", testTemplates},
		{"EventsAndAnalytics", testEventsAndAnalytics},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newRepo(t))
		})
	}
}

func notification(id, userID string, createdAt time.Time) model.Notification {
	return model.Notification{
		ID:        id,
		UserID:    userID,
		Type:      model.TypeCourseAssigned,
		Title:     "New course",
		Body:      "Go basics was assigned to you",
		Channels:  []model.Channel{model.ChannelInApp},
		Priority:  model.PriorityMedium,
		CreatedAt: createdAt,
	}
}

func mustCreate(t *testing.T, r repository.Repository, n model.Notification) model.Notification {
	t.Helper()
	created, err := r.Create(context.Background(), n)
	if err != nil {
		t.Fatalf("create %s: %v", n.ID, err)
	}
	return created
}

func testCreateAndGet(t *testing.T, r repository.Repository) {
	ctx := context.Background()
	badge := 4
	exp := base.Add(24 * time.Hour)
	n := notification("n1", "u1", base)
	n.Data = map[string]string{"courseId": "c42"}
	n.Channels = []model.Channel{model.ChannelPush, model.ChannelInApp}
	n.ExpiresAt = &exp
	n.Metadata = &model.Metadata{ImageURL: "https://img.example.com/a.png", Badge: &badge, Sound: "default"}
	mustCreate(t, r, n)

	got, err := r.Get(ctx, "n1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected notification, got nil")
	}
	if got.Title != n.Title || got.Body != n.Body {
		t.Errorf("title/body = %q/%q, want %q/%q", got.Title, got.Body, n.Title, n.Body)
	}
	if got.Data["courseId"] != "c42" {
		t.Errorf("data[courseId] = %q, want %q", got.Data["courseId"], "c42")
	}
	if len(got.Channels) != 2 || !got.HasChannel(model.ChannelPush) || !got.HasChannel(model.ChannelInApp) {
		t.Errorf("channels = %v, want in_app and push", got.Channels)
	}
	if got.IsRead || got.ReadAt != nil {
		t.Error("new notification should be unread")
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, base)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(exp) {
		t.Errorf("expires_at = %v, want %v", got.ExpiresAt, exp)
	}
	if got.Metadata == nil || got.Metadata.Badge == nil || *got.Metadata.Badge != 4 {
		t.Errorf("metadata = %+v, want badge 4", got.Metadata)
	}

	count, err := r.UnreadCount(ctx, "u1")
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 1 {
		t.Errorf("unread count = %d, want 1", count)
	}
}

func testCreateDuplicate(t *testing.T, r repository.Repository) {
	mustCreate(t, r, notification("n1", "u1", base))
	_, err := r.Create(context.Background(), notification("n1", "u2", base))
	if !errors.Is(err, model.ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
}

func testGetMissing(t *testing.T, r repository.Repository) {
	got, err := r.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("got = %+v, want nil", got)
	}
	if _, err := r.MarkAsRead(context.Background(), "missing", base); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("mark missing err = %v, want ErrNotFound", err)
	}
}

func testUpdateAndDelete(t *testing.T, r repository.Repository) {
	ctx := context.Background()
	n := mustCreate(t, r, notification("n1", "u1", base))

	n.Title = "Updated"
	if err := r.Update(ctx, n); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := r.Get(ctx, "n1")
	if got == nil || got.Title != "Updated" {
		t.Errorf("title = %v, want Updated", got)
	}

	if err := r.Update(ctx, notification("missing", "u1", base)); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("update missing err = %v, want ErrNotFound", err)
	}

	if err := r.Delete(ctx, "n1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := r.Delete(ctx, "n1"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
	got, _ = r.Get(ctx, "n1")
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func testMarkAsReadIdempotent(t *testing.T, r repository.Repository) {
	ctx := context.Background()
	mustCreate(t, r, notification("n1", "u1", base))

	first := base.Add(time.Minute)
	changed, err := r.MarkAsRead(ctx, "n1", first)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !changed {
		t.Error("first mark should report a change")
	}
	changed, err = r.MarkAsRead(ctx, "n1", first.Add(time.Hour))
	if err != nil {
		t.Fatalf("mark read again: %v", err)
	}
	if changed {
		t.Error("second mark should report no change")
	}

	got, _ := r.Get(ctx, "n1")
	if got == nil || !got.IsRead {
		t.Fatal("expected notification to be read")
	}
	if got.ReadAt == nil || !got.ReadAt.Equal(first) {
		t.Errorf("read_at = %v, want %v", got.ReadAt, first)
	}
	count, _ := r.UnreadCount(ctx, "u1")
	if count != 0 {
		t.Errorf("unread count = %d, want 0", count)
	}
}

func testMarkAllAsRead(t *testing.T, r repository.Repository) {
	ctx := context.Background()
	for i := range 3 {
		mustCreate(t, r, notification(fmt.Sprintf("n%d", i), "u1", base.Add(time.Duration(i)*time.Minute)))
	}
	mustCreate(t, r, notification("other", "u2", base))
	if _, err := r.MarkAsRead(ctx, "n0", base); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	n, err := r.MarkAllAsRead(ctx, "u1", base.Add(time.Hour))
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if n != 2 {
		t.Errorf("marked = %d, want 2", n)
	}
	n, err = r.MarkAllAsRead(ctx, "u1", base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("mark all read again: %v", err)
	}
	if n != 0 {
		t.Errorf("second mark all = %d, want 0", n)
	}

	got, _ := r.Get(ctx, "n0")
	if got.ReadAt == nil || !got.ReadAt.Equal(base) {
		t.Errorf("n0 read_at = %v, want %v", got.ReadAt, base)
	}
	count, _ := r.UnreadCount(ctx, "u2")
	if count != 1 {
		t.Errorf("u2 unread = %d, want 1", count)
	}
}

func testFetchOrderAndPagination(t *testing.T, r repository.Repository) {
	ctx := context.Background()
	for i := range 4 {
		mustCreate(t, r, notification(fmt.Sprintf("n%d", i), "u1", base.Add(time.Duration(i)*time.Minute)))
	}
	mustCreate(t, r, notification("other", "u2", base))

	page, err := r.Fetch(ctx, "u1", nil, &model.Pagination{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if page.TotalItems != 4 || page.TotalPages != 2 {
		t.Errorf("totals = %d items / %d pages, want 4/2", page.TotalItems, page.TotalPages)
	}
	if len(page.Items) != 2 || page.Items[0].ID != "n3" || page.Items[1].ID != "n2" {
		t.Errorf("page 1 = %v, want [n3 n2]", ids(page.Items))
	}

	page, err = r.Fetch(ctx, "u1", nil, &model.Pagination{Page: 3, Limit: 2})
	if err != nil {
		t.Fatalf("fetch page 3: %v", err)
	}
	if len(page.Items) != 0 {
		t.Errorf("page 3 items = %v, want empty", ids(page.Items))
	}
	if page.TotalPages != 2 || page.TotalItems != 4 || page.CurrentPage != 3 {
		t.Errorf("page 3 envelope = %+v", page)
	}

	page, _ = r.Fetch(ctx, "nobody", nil, nil)
	if page.Items == nil || len(page.Items) != 0 || page.TotalPages != 0 {
		t.Errorf("empty fetch = %+v", page)
	}
}

func testFetchFilters(t *testing.T, r repository.Repository) {
	ctx := context.Background()
	a := notification("a", "u1", base)
	a.Channels = []model.Channel{model.ChannelPush}
	a.Priority = model.PriorityUrgent
	b := notification("b", "u1", base.Add(time.Minute))
	b.Type = model.TypeTestDeadline
	c := notification("c", "u1", base.Add(2*time.Minute))
	c.Channels = []model.Channel{model.ChannelEmail, model.ChannelInApp}
	for _, n := range []model.Notification{a, b, c} {
		mustCreate(t, r, n)
	}
	if _, err := r.MarkAsRead(ctx, "b", base); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	unread := false
	from := base.Add(30 * time.Second)
	tests := []struct {
		name   string
		filter model.Filter
		want   []string
	}{
		{"type", model.Filter{Types: []model.Type{model.TypeTestDeadline}}, []string{"b"}},
		{"channel any", model.Filter{Channels: []model.Channel{model.ChannelPush, model.ChannelEmail}}, []string{"c", "a"}},
		{"priority", model.Filter{Priorities: []model.Priority{model.PriorityUrgent}}, []string{"a"}},
		{"unread", model.Filter{Read: &unread}, []string{"c", "a"}},
		{"date from", model.Filter{DateFrom: &from}, []string{"c", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := r.Fetch(ctx, "u1", &tt.filter, nil)
			if err != nil {
				t.Fatalf("fetch: %v", err)
			}
			got := ids(page.Items)
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("ids = %v, want %v", got, tt.want)
			}
			if page.TotalItems != len(tt.want) {
				t.Errorf("total_items = %d, want %d", page.TotalItems, len(tt.want))
			}
		})
	}
}

func testDeleteForUser(t *testing.T, r repository.Repository) {
	ctx := context.Background()
	mustCreate(t, r, notification("a", "u1", base))
	mustCreate(t, r, notification("b", "u1", base))
	mustCreate(t, r, notification("c", "u2", base))

	ids, err := r.DeleteForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("delete for user: %v", err)
	}
	slices.Sort(ids)
	if !slices.Equal(ids, []string{"a", "b"}) {
		t.Errorf("deleted = %v, want [a b]", ids)
	}
	if got, _ := r.Get(ctx, "c"); got == nil {
		t.Error("other user's notification was deleted")
	}
}

func testDeleteExpired(t *testing.T, r repository.Repository) {
	ctx := context.Background()
	past := base.Add(-time.Hour)
	future := base.Add(time.Hour)
	expired := notification("expired", "u1", base.Add(-2*time.Hour))
	expired.ExpiresAt = &past
	live := notification("live", "u1", base)
	live.ExpiresAt = &future
	mustCreate(t, r, expired)
	mustCreate(t, r, live)
	mustCreate(t, r, notification("forever", "u1", base))

	removed, err := r.DeleteExpired(ctx, base)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if len(removed) != 1 || removed[0].ID != "expired" || removed[0].UserID != "u1" {
		t.Errorf("deleted = %+v, want only expired", removed)
	}
	if got, _ := r.Get(ctx, "expired"); got != nil {
		t.Error("expired notification still present")
	}
	if got, _ := r.Get(ctx, "live"); got == nil {
		t.Error("live notification was deleted")
	}
}

func token(id, userID, deviceID string, createdAt time.Time) model.PushToken {
	return model.PushToken{
		ID:          id,
		UserID:      userID,
		Token:       "token-" + id,
		DeviceID:    deviceID,
		Platform:    model.PlatformIOS,
		Environment: model.EnvironmentProduction,
		IsActive:    true,
		CreatedAt:   createdAt,
		LastUsedAt:  createdAt,
	}
}

func testPushTokenRotation(t *testing.T, r repository.Repository) {
	ctx := context.Background()
	if err := r.SavePushToken(ctx, token("t1", "u1", "device-1", base)); err != nil {
		t.Fatalf("save t1: %v", err)
	}

	// The same device signs in as a different user.
	n, err := r.DeactivateTokensForDevice(ctx, "device-1")
	if err != nil {
		t.Fatalf("deactivate device: %v", err)
	}
	if n != 1 {
		t.Errorf("deactivated = %d, want 1", n)
	}
	if err := r.SavePushToken(ctx, token("t2", "u2", "device-1", base.Add(time.Minute))); err != nil {
		t.Fatalf("save t2: %v", err)
	}

	u1, _ := r.ListActivePushTokens(ctx, "u1")
	if len(u1) != 0 {
		t.Errorf("u1 active tokens = %d, want 0", len(u1))
	}
	u2, _ := r.ListActivePushTokens(ctx, "u2")
	if len(u2) != 1 || u2[0].ID != "t2" {
		t.Errorf("u2 active tokens = %+v, want [t2]", u2)
	}
	all, _ := r.ListPushTokens(ctx, "u1")
	if len(all) != 1 || all[0].IsActive {
		t.Errorf("u1 tokens = %+v, want one inactive", all)
	}
}

func testPushTokenLifecycle(t *testing.T, r repository.Repository) {
	ctx := context.Background()
	tok := token("t1", "u1", "device-1", base)
	if err := r.SavePushToken(ctx, tok); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := r.GetPushToken(ctx, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Token != "token-t1" || got.Platform != model.PlatformIOS {
		t.Fatalf("token = %+v", got)
	}

	tok.LastUsedAt = base.Add(time.Hour)
	if err := r.SavePushToken(ctx, tok); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, _ = r.GetPushToken(ctx, "t1")
	if !got.LastUsedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("last_used_at = %v, want %v", got.LastUsedAt, base.Add(time.Hour))
	}

	if err := r.DeactivatePushToken(ctx, "t1"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	got, _ = r.GetPushToken(ctx, "t1")
	if got.IsActive {
		t.Error("expected token to be inactive")
	}
	if err := r.DeactivatePushToken(ctx, "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("deactivate missing err = %v, want ErrNotFound", err)
	}

	if err := r.DeletePushToken(ctx, "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ = r.GetPushToken(ctx, "t1")
	if got != nil {
		t.Error("expected nil after delete")
	}
	if err := r.DeletePushToken(ctx, "t1"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func testPreferences(t *testing.T, r repository.Repository) {
	ctx := context.Background()
	got, err := r.GetPreferences(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("prefs = %+v, want nil", got)
	}

	maxPerDay := 5
	prefs := model.DefaultPreferences("u1", base)
	prefs.ChannelPreferences[model.TypeFeedMention] = []model.Channel{model.ChannelPush}
	qh := model.DefaultQuietHours()
	qh.IsEnabled = true
	prefs.QuietHours = &qh
	prefs.FrequencyLimits[model.TypeFeedActivity] = model.FrequencyLimit{MaxPerDay: &maxPerDay}
	prefs.Timezone = "Europe/Berlin"
	if err := r.SavePreferences(ctx, prefs); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err = r.GetPreferences(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected preferences")
	}
	if !got.IsEnabled || got.Timezone != "Europe/Berlin" {
		t.Errorf("prefs = %+v", got)
	}
	if chs := got.ChannelPreferences[model.TypeFeedMention]; len(chs) != 1 || chs[0] != model.ChannelPush {
		t.Errorf("channel prefs = %v, want [push]", chs)
	}
	if got.QuietHours == nil || !got.QuietHours.IsEnabled || got.QuietHours.StartTime.String() != "22:00" {
		t.Errorf("quiet hours = %+v", got.QuietHours)
	}
	if l := got.FrequencyLimits[model.TypeFeedActivity]; l.MaxPerDay == nil || *l.MaxPerDay != 5 {
		t.Errorf("frequency limit = %+v, want max_per_day 5", l)
	}

	got.IsEnabled = false
	if err := r.SavePreferences(ctx, *got); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = r.GetPreferences(ctx, "u1")
	if got.IsEnabled {
		t.Error("expected overwrite to disable notifications")
	}

	if err := r.CreatePreferences(ctx, model.DefaultPreferences("u1", base)); !errors.Is(err, model.ErrAlreadyExists) {
		t.Errorf("create over existing err = %v, want ErrAlreadyExists", err)
	}
	got, _ = r.GetPreferences(ctx, "u1")
	if got.IsEnabled || got.Timezone != "Europe/Berlin" {
		t.Errorf("create overwrote stored preferences: %+v", got)
	}
	if err := r.CreatePreferences(ctx, model.DefaultPreferences("u2", base)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got, _ := r.GetPreferences(ctx, "u2"); got == nil || !got.IsEnabled {
		t.Errorf("created prefs = %+v, want defaults", got)
	}
}

func testTemplates(t *testing.T, r repository.Repository) {
	ctx := context.Background()
	tmpl := model.Template{
		Type:              model.TypeCourseAssigned,
		TitleTemplate:     "New course: {{courseName}}",
		BodyTemplate:      "{{assignedBy}} assigned you {{courseName}}",
		DefaultChannels:   []model.Channel{model.ChannelInApp, model.ChannelPush},
		DefaultPriority:   model.PriorityHigh,
		DefaultExpiration: 72 * time.Hour,
		UpdatedAt:         base,
	}
	if err := r.SaveTemplate(ctx, tmpl); err != nil {
		t.Fatalf("save: %v", err)
	}
	other := model.Template{Type: model.TypeAchievement, TitleTemplate: "x", BodyTemplate: "y", DefaultPriority: model.PriorityLow, UpdatedAt: base}
	if err := r.SaveTemplate(ctx, other); err != nil {
		t.Fatalf("save other: %v", err)
	}

	got, err := r.GetTemplate(ctx, model.TypeCourseAssigned)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.TitleTemplate != tmpl.TitleTemplate || got.DefaultExpiration != 72*time.Hour {
		t.Fatalf("template = %+v", got)
	}
	if len(got.DefaultChannels) != 2 {
		t.Errorf("default channels = %v", got.DefaultChannels)
	}

	list, err := r.ListTemplates(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Type != model.TypeAchievement {
		t.Errorf("list = %+v", list)
	}

	if err := r.DeleteTemplate(ctx, model.TypeCourseAssigned); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := r.DeleteTemplate(ctx, model.TypeCourseAssigned); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
	got, _ = r.GetTemplate(ctx, model.TypeCourseAssigned)
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func testEventsAndAnalytics(t *testing.T, r repository.Repository) {
	ctx := context.Background()
	track := func(id, notificationID, userID string, typ model.EventType, at time.Time) {
		t.Helper()
		e := model.Event{ID: id, NotificationID: notificationID, UserID: userID, Type: typ, Timestamp: at}
		if err := r.Track(ctx, e); err != nil {
			t.Fatalf("track %s: %v", id, err)
		}
	}

	for i := range 10 {
		track(fmt.Sprintf("d%d", i), fmt.Sprintf("n%d", i), "u1", model.EventDelivered, base)
	}
	for i := range 4 {
		track(fmt.Sprintf("o%d", i), fmt.Sprintf("n%d", i), "u1", model.EventOpened, base.Add(time.Minute))
	}
	for i := range 2 {
		track(fmt.Sprintf("a%d", i), fmt.Sprintf("n%d", i), "u1", model.EventActionTaken, base.Add(2*time.Minute))
	}
	track("other", "x1", "u2", model.EventDelivered, base.Add(48*time.Hour))

	a, err := r.Analytics(ctx, "u1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if a.TotalDelivered != 10 || a.TotalOpened != 4 || a.TotalActioned != 2 {
		t.Errorf("totals = %+v", a)
	}
	if a.OpenRate != 0.4 || a.ClickThroughRate != 0.2 {
		t.Errorf("rates = %v/%v, want 0.4/0.2", a.OpenRate, a.ClickThroughRate)
	}

	all, _ := r.Analytics(ctx, "", time.Time{}, time.Time{})
	if all.TotalDelivered != 11 {
		t.Errorf("all delivered = %d, want 11", all.TotalDelivered)
	}
	windowed, _ := r.Analytics(ctx, "", base.Add(24*time.Hour), time.Time{})
	if windowed.TotalDelivered != 1 || windowed.TotalOpened != 0 {
		t.Errorf("windowed = %+v", windowed)
	}
	none, _ := r.Analytics(ctx, "nobody", time.Time{}, time.Time{})
	if none.OpenRate != 0 || none.ClickThroughRate != 0 {
		t.Errorf("empty rates = %v/%v", none.OpenRate, none.ClickThroughRate)
	}

	events, err := r.ListEvents(ctx, "n0")
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("n0 events = %d, want 3", len(events))
	}
	want := []model.EventType{model.EventDelivered, model.EventOpened, model.EventActionTaken}
	for i, e := range events {
		if e.Type != want[i] {
			t.Errorf("event %d = %s, want %s", i, e.Type, want[i])
		}
	}
}

func ids(items []model.Notification) []string {
	out := make([]string, len(items))
	for i, n := range items {
		out[i] = n.ID
	}
	return out
}

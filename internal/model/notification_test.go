package model

import (
	"encoding/json"
	"slices"
	"testing"
	"time"
)

func TestMarkReadFirstWins(t *testing.T) {
	n := Notification{ID: "n1"}
	first := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	if !n.MarkRead(first) {
		t.Fatal("first MarkRead should report a change")
	}
	if n.MarkRead(second) {
		t.Error("second MarkRead should report no change")
	}
	if !n.IsRead {
		t.Error("expected is_read = true")
	}
	if n.ReadAt == nil || !n.ReadAt.Equal(first) {
		t.Errorf("read_at = %v, want %v", n.ReadAt, first)
	}
}

func TestNormalizeChannels(t *testing.T) {
	got := NormalizeChannels([]Channel{ChannelPush, ChannelInApp, ChannelPush, ChannelEmail})
	want := []Channel{ChannelEmail, ChannelInApp, ChannelPush}
	if !slices.Equal(got, want) {
		t.Errorf("NormalizeChannels = %v, want %v", got, want)
	}

	if got := NormalizeChannels(nil); !slices.Equal(got, []Channel{ChannelInApp}) {
		t.Errorf("NormalizeChannels(nil) = %v, want [in_app]", got)
	}
}

func TestTypeDefaults(t *testing.T) {
	tests := []struct {
		typ      Type
		priority Priority
		category CategoryID
	}{
		{TypeTestDeadline, PriorityHigh, CategoryTest},
		{TypeSystemMessage, PriorityHigh, CategoryMessage},
		{TypeCourseAssigned, PriorityMedium, CategoryCourse},
		{TypeFeedMention, PriorityLow, CategoryFeed},
		{TypeReminderDaily, PriorityLow, CategoryReminder},
	}
	for _, tt := range tests {
		if got := tt.typ.DefaultPriority(); got != tt.priority {
			t.Errorf("%s priority = %q, want %q", tt.typ, got, tt.priority)
		}
		if got := tt.typ.Category(); got != tt.category {
			t.Errorf("%s category = %q, want %q", tt.typ, got, tt.category)
		}
	}

	// The generic deadline and achievement types carry no action set.
	uncategorized := []Type{TypeDeadline, TypeAchievement}
	for _, typ := range AllTypes {
		if !typ.Valid() {
			t.Errorf("%s should be valid", typ)
		}
		cat := typ.Category()
		if slices.Contains(uncategorized, typ) {
			if cat != "" {
				t.Errorf("%s category = %q, want none", typ, cat)
			}
			continue
		}
		if cat == "" {
			t.Errorf("%s has no category", typ)
		}
	}
	if Type("bogus").Valid() {
		t.Error("unknown type should be invalid")
	}
}

func TestCloneIsDeep(t *testing.T) {
	badge := 3
	exp := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	n := Notification{
		Data:      map[string]string{"k": "v"},
		Channels:  []Channel{ChannelInApp},
		ExpiresAt: &exp,
		Metadata:  &Metadata{Badge: &badge},
	}
	c := n.Clone()
	c.Data["k"] = "changed"
	c.Channels[0] = ChannelPush
	*c.Metadata.Badge = 9
	*c.ExpiresAt = exp.Add(time.Hour)

	if n.Data["k"] != "v" {
		t.Error("clone shares data map")
	}
	if n.Channels[0] != ChannelInApp {
		t.Error("clone shares channels slice")
	}
	if badge != 3 {
		t.Error("clone shares badge pointer")
	}
	if !n.ExpiresAt.Equal(exp) {
		t.Error("clone shares expires_at pointer")
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	if (&Notification{}).IsExpired(now) {
		t.Error("notification without expiry should not expire")
	}
	if !(&Notification{ExpiresAt: &past}).IsExpired(now) {
		t.Error("expected past expiry to be expired")
	}
	if (&Notification{ExpiresAt: &future}).IsExpired(now) {
		t.Error("expected future expiry not to be expired")
	}
}

func TestTimeOfDayText(t *testing.T) {
	tod, err := ParseTimeOfDay("07:05")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tod.Hour != 7 || tod.Minute != 5 {
		t.Errorf("parsed = %+v, want 07:05", tod)
	}
	if tod.String() != "07:05" {
		t.Errorf("String() = %q, want %q", tod.String(), "07:05")
	}

	for _, bad := range []string{"24:00", "12:60", "noon", ""} {
		if _, err := ParseTimeOfDay(bad); err == nil {
			t.Errorf("ParseTimeOfDay(%q) should fail", bad)
		}
	}

	qh := DefaultQuietHours()
	b, err := json.Marshal(qh)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"is_enabled":false,"start_time":"22:00","end_time":"08:00","allow_urgent":true}`
	if string(b) != want {
		t.Errorf("json = %s, want %s", b, want)
	}
}

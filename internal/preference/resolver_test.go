package preference

import (
	"slices"
	"testing"
	"time"

	"github.com/dukerupert/herald/internal/model"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, time.March, 10, hour, minute, 0, 0, time.UTC)
}

func quietHours(start, end model.TimeOfDay, allowUrgent bool) *model.QuietHours {
	return &model.QuietHours{IsEnabled: true, StartTime: &start, EndTime: &end, AllowUrgent: allowUrgent}
}

func TestIsInQuietHoursWraparound(t *testing.T) {
	qh := quietHours(model.TimeOfDay{Hour: 22}, model.TimeOfDay{Hour: 8}, false)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"late evening", at(23, 30), true},
		{"early morning", at(6, 0), true},
		{"noon", at(12, 0), false},
		{"at start", at(22, 0), true},
		{"at end", at(8, 0), false},
		{"just before start", at(21, 59), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsInQuietHours(tt.now, qh, time.UTC); got != tt.want {
				t.Errorf("IsInQuietHours(%s) = %v, want %v", tt.now.Format("15:04"), got, tt.want)
			}
		})
	}
}

func TestIsInQuietHoursSameDay(t *testing.T) {
	qh := quietHours(model.TimeOfDay{Hour: 13}, model.TimeOfDay{Hour: 14, Minute: 30}, false)

	if !IsInQuietHours(at(13, 0), qh, time.UTC) {
		t.Error("expected 13:00 inside [13:00, 14:30)")
	}
	if !IsInQuietHours(at(14, 29), qh, time.UTC) {
		t.Error("expected 14:29 inside [13:00, 14:30)")
	}
	if IsInQuietHours(at(14, 30), qh, time.UTC) {
		t.Error("expected 14:30 outside [13:00, 14:30)")
	}
	if IsInQuietHours(at(23, 0), qh, time.UTC) {
		t.Error("expected 23:00 outside [13:00, 14:30)")
	}
}

func TestIsInQuietHoursDisabledOrInconsistent(t *testing.T) {
	qh := quietHours(model.TimeOfDay{Hour: 22}, model.TimeOfDay{Hour: 8}, false)
	qh.IsEnabled = false
	if IsInQuietHours(at(23, 0), qh, time.UTC) {
		t.Error("disabled quiet hours should never match")
	}

	missingEnd := &model.QuietHours{IsEnabled: true, StartTime: &model.TimeOfDay{Hour: 22}}
	if IsInQuietHours(at(23, 0), missingEnd, time.UTC) {
		t.Error("quiet hours without an end time should never match")
	}
	if got := NextAvailableTime(at(23, 0), missingEnd, time.UTC); got != nil {
		t.Errorf("NextAvailableTime = %v, want nil", got)
	}

	if IsInQuietHours(at(23, 0), nil, time.UTC) {
		t.Error("nil quiet hours should never match")
	}
}

func TestIsInQuietHoursTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	qh := quietHours(model.TimeOfDay{Hour: 22}, model.TimeOfDay{Hour: 8}, false)

	// 20:00 UTC is 23:00 at UTC+3.
	if !IsInQuietHours(at(20, 0), qh, loc) {
		t.Error("expected 20:00 UTC to be inside quiet hours at UTC+3")
	}
	if IsInQuietHours(at(20, 0), qh, time.UTC) {
		t.Error("expected 20:00 UTC to be outside quiet hours in UTC")
	}
}

func TestNextAvailableTime(t *testing.T) {
	qh := quietHours(model.TimeOfDay{Hour: 22}, model.TimeOfDay{Hour: 8}, false)

	got := NextAvailableTime(at(23, 30), qh, time.UTC)
	want := time.Date(2025, time.March, 11, 8, 0, 0, 0, time.UTC)
	if got == nil || !got.Equal(want) {
		t.Errorf("NextAvailableTime(23:30) = %v, want %v", got, want)
	}

	got = NextAvailableTime(at(2, 0), qh, time.UTC)
	want = time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)
	if got == nil || !got.Equal(want) {
		t.Errorf("NextAvailableTime(02:00) = %v, want %v", got, want)
	}

	// Exactly at the end rolls over to tomorrow.
	got = NextAvailableTime(at(8, 0), qh, time.UTC)
	want = time.Date(2025, time.March, 11, 8, 0, 0, 0, time.UTC)
	if got == nil || !got.Equal(want) {
		t.Errorf("NextAvailableTime(08:00) = %v, want %v", got, want)
	}

	qh.IsEnabled = false
	if got := NextAvailableTime(at(23, 30), qh, time.UTC); got != nil {
		t.Errorf("NextAvailableTime with disabled quiet hours = %v, want nil", got)
	}
}

func TestShouldDeliverUrgentOverride(t *testing.T) {
	prefs := model.DefaultPreferences("u1", at(0, 0))
	prefs.QuietHours = quietHours(model.TimeOfDay{Hour: 22}, model.TimeOfDay{Hour: 8}, true)
	now := at(23, 30)

	urgent := &model.Notification{Priority: model.PriorityUrgent}
	high := &model.Notification{Priority: model.PriorityHigh}

	if !ShouldDeliver(urgent, &prefs, now) {
		t.Error("expected urgent notification to break through quiet hours")
	}
	if ShouldDeliver(high, &prefs, now) {
		t.Error("expected high priority notification to be held during quiet hours")
	}
	if !ShouldDeliver(high, &prefs, at(12, 0)) {
		t.Error("expected delivery outside quiet hours")
	}

	prefs.QuietHours.AllowUrgent = false
	if ShouldDeliver(urgent, &prefs, now) {
		t.Error("expected urgent to be held when allow_urgent is false")
	}
}

func TestShouldDeliverDisabled(t *testing.T) {
	prefs := model.DefaultPreferences("u1", at(0, 0))
	prefs.IsEnabled = false
	n := &model.Notification{Priority: model.PriorityUrgent}
	if ShouldDeliver(n, &prefs, at(12, 0)) {
		t.Error("expected no delivery when notifications are disabled")
	}
}

func TestResolveChannelsPrecedence(t *testing.T) {
	tmpl := &model.Template{DefaultChannels: []model.Channel{model.ChannelPush, model.ChannelInApp}}
	prefs := model.DefaultPreferences("u1", at(0, 0))

	got := ResolveChannels(model.TypeCourseAssigned, nil, nil)
	if !slices.Equal(got, []model.Channel{model.ChannelInApp}) {
		t.Errorf("fallback = %v, want [in_app]", got)
	}

	got = ResolveChannels(model.TypeCourseAssigned, &prefs, tmpl)
	if !slices.Equal(got, []model.Channel{model.ChannelInApp, model.ChannelPush}) {
		t.Errorf("template default = %v, want [in_app push]", got)
	}

	prefs.ChannelPreferences[model.TypeCourseAssigned] = []model.Channel{model.ChannelEmail}
	got = ResolveChannels(model.TypeCourseAssigned, &prefs, tmpl)
	if !slices.Equal(got, []model.Channel{model.ChannelEmail}) {
		t.Errorf("user preference = %v, want [email]", got)
	}

	// Preferences for other types do not leak.
	got = ResolveChannels(model.TypeTestDeadline, &prefs, tmpl)
	if !slices.Equal(got, []model.Channel{model.ChannelInApp, model.ChannelPush}) {
		t.Errorf("other type = %v, want template default", got)
	}
}

func TestLocationFallback(t *testing.T) {
	if got := Location(&model.Preferences{Timezone: "Not/AZone"}); got != time.UTC {
		t.Errorf("Location = %v, want UTC", got)
	}
	if got := Location(nil); got != time.UTC {
		t.Errorf("Location(nil) = %v, want UTC", got)
	}
}

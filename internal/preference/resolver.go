// Package preference decides whether, when, and through which channels a
// notification reaches a user. Everything here is pure; callers pass the
// current time.
package preference

import (
	"slices"
	"time"
	_ "time/tzdata"

	"github.com/dukerupert/herald/internal/model"
)

// Location returns the zone quiet hours are evaluated in. Unknown or empty
// zone names fall back to UTC.
func Location(prefs *model.Preferences) *time.Location {
	if prefs == nil || prefs.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(prefs.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ShouldDeliver reports whether n may be delivered right now.
func ShouldDeliver(n *model.Notification, prefs *model.Preferences, now time.Time) bool {
	if prefs == nil {
		return true
	}
	if !prefs.IsEnabled {
		return false
	}
	if IsInQuietHours(now, prefs.QuietHours, Location(prefs)) {
		return n.Priority == model.PriorityUrgent && prefs.QuietHours.AllowUrgent
	}
	return true
}

// IsInQuietHours reports whether the time of day of now, in loc, falls
// inside the quiet window. A window whose start is after its end spans
// midnight. Disabled or inconsistent windows never match.
func IsInQuietHours(now time.Time, qh *model.QuietHours, loc *time.Location) bool {
	if qh == nil || !qh.IsEnabled || !qh.Consistent() {
		return false
	}
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	cur := local.Hour()*60 + local.Minute()
	start, end := qh.StartTime.Minutes(), qh.EndTime.Minutes()

	if start <= end {
		return cur >= start && cur < end
	}
	return cur >= start || cur < end
}

// ResolveChannels picks the channels for a notification type: the user's
// explicit choice wins, then the template default, then in-app only.
func ResolveChannels(t model.Type, prefs *model.Preferences, tmpl *model.Template) []model.Channel {
	if prefs != nil {
		if chs, ok := prefs.ChannelPreferences[t]; ok && len(chs) > 0 {
			return model.NormalizeChannels(slices.Clone(chs))
		}
	}
	if tmpl != nil && len(tmpl.DefaultChannels) > 0 {
		return model.NormalizeChannels(slices.Clone(tmpl.DefaultChannels))
	}
	return []model.Channel{model.ChannelInApp}
}

// NextAvailableTime returns the next instant quiet hours end: today's end
// time if it is still ahead of now, otherwise the same time tomorrow. It
// returns nil when quiet hours are off or inconsistent, meaning deliver now.
func NextAvailableTime(now time.Time, qh *model.QuietHours, loc *time.Location) *time.Time {
	if qh == nil || !qh.IsEnabled || !qh.Consistent() {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	end := time.Date(local.Year(), local.Month(), local.Day(), qh.EndTime.Hour, qh.EndTime.Minute, 0, 0, loc)
	if !end.After(local) {
		end = time.Date(local.Year(), local.Month(), local.Day()+1, qh.EndTime.Hour, qh.EndTime.Minute, 0, 0, loc)
	}
	return &end
}

package model

import (
	"fmt"
	"slices"
	"time"
)

// TimeOfDay is a wall-clock time without a date, serialized as "HH:MM".
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d", &t.Hour, &t.Minute); err != nil {
		return TimeOfDay{}, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if !t.Valid() {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return t, nil
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// QuietHours is a recurring daily window during which non-urgent
// notifications are deferred. StartTime after EndTime spans midnight.
type QuietHours struct {
	IsEnabled   bool       `json:"is_enabled"`
	StartTime   *TimeOfDay `json:"start_time,omitempty"`
	EndTime     *TimeOfDay `json:"end_time,omitempty"`
	AllowUrgent bool       `json:"allow_urgent"`
}

// DefaultQuietHours is 22:00-08:00, disabled, with urgent allowed.
func DefaultQuietHours() QuietHours {
	return QuietHours{
		StartTime:   &TimeOfDay{Hour: 22},
		EndTime:     &TimeOfDay{Hour: 8},
		AllowUrgent: true,
	}
}

// Consistent reports whether both bounds are present and in range.
func (q *QuietHours) Consistent() bool {
	return q.StartTime != nil && q.EndTime != nil && q.StartTime.Valid() && q.EndTime.Valid()
}

// FrequencyLimit caps how often a type may be sent. Stored, not enforced.
type FrequencyLimit struct {
	MaxPerHour *int `json:"max_per_hour,omitempty"`
	MaxPerDay  *int `json:"max_per_day,omitempty"`
	MaxPerWeek *int `json:"max_per_week,omitempty"`
}

type Preferences struct {
	UserID             string                  `json:"user_id"`
	ChannelPreferences map[Type][]Channel      `json:"channel_preferences"`
	IsEnabled          bool                    `json:"is_enabled"`
	QuietHours         *QuietHours             `json:"quiet_hours,omitempty"`
	FrequencyLimits    map[Type]FrequencyLimit `json:"frequency_limits"`
	Timezone           string                  `json:"timezone,omitempty"`
	UpdatedAt          time.Time               `json:"updated_at"`
}

// DefaultPreferences returns the preferences a user gets on first access.
func DefaultPreferences(userID string, now time.Time) Preferences {
	return Preferences{
		UserID:             userID,
		ChannelPreferences: map[Type][]Channel{},
		IsEnabled:          true,
		FrequencyLimits:    map[Type]FrequencyLimit{},
		UpdatedAt:          now,
	}
}

// Clone returns a deep copy.
func (p Preferences) Clone() Preferences {
	chs := make(map[Type][]Channel, len(p.ChannelPreferences))
	for t, c := range p.ChannelPreferences {
		chs[t] = slices.Clone(c)
	}
	p.ChannelPreferences = chs
	limits := make(map[Type]FrequencyLimit, len(p.FrequencyLimits))
	for t, l := range p.FrequencyLimits {
		limits[t] = l
	}
	p.FrequencyLimits = limits
	if p.QuietHours != nil {
		q := *p.QuietHours
		if q.StartTime != nil {
			st := *q.StartTime
			q.StartTime = &st
		}
		if q.EndTime != nil {
			et := *q.EndTime
			q.EndTime = &et
		}
		p.QuietHours = &q
	}
	return p
}

package model

import (
	"slices"
	"time"
)

// Type identifies why a notification was sent.
type Type string

const (
	TypeCourseAssigned      Type = "course_assigned"
	TypeCourseCompleted     Type = "course_completed"
	TypeTestAvailable       Type = "test_available"
	TypeTestDeadline        Type = "test_deadline"
	TypeAchievementUnlocked Type = "achievement_unlocked"
	TypeCertificateIssued   Type = "certificate_issued"
	TypeSystemMessage       Type = "system_message"
	TypeAdminMessage        Type = "admin_message"
	TypeReminderDaily       Type = "reminder_daily"
	TypeReminderWeekly      Type = "reminder_weekly"
	TypeFeedActivity        Type = "feed_activity"
	TypeFeedMention         Type = "feed_mention"
	TypeOnboardingTask      Type = "onboarding_task"
	TypeDeadline            Type = "deadline"
	TypeAchievement         Type = "achievement"
	TypeTestReminder        Type = "test_reminder"
	TypeCertificateEarned   Type = "certificate_earned"
	TypeTaskAssigned        Type = "task_assigned"
	TypeTestCompleted       Type = "test_completed"
)

// AllTypes lists every notification type in declaration order.
var AllTypes = []Type{
	TypeCourseAssigned, TypeCourseCompleted, TypeTestAvailable, TypeTestDeadline,
	TypeAchievementUnlocked, TypeCertificateIssued, TypeSystemMessage, TypeAdminMessage,
	TypeReminderDaily, TypeReminderWeekly, TypeFeedActivity, TypeFeedMention,
	TypeOnboardingTask, TypeDeadline, TypeAchievement, TypeTestReminder,
	TypeCertificateEarned, TypeTaskAssigned, TypeTestCompleted,
}

func (t Type) Valid() bool {
	return slices.Contains(AllTypes, t)
}

// DefaultPriority is used when a sender does not pick a priority.
func (t Type) DefaultPriority() Priority {
	switch t {
	case TypeTestDeadline, TypeSystemMessage:
		return PriorityHigh
	case TypeCourseAssigned, TypeTestAvailable, TypeAdminMessage:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Category groups types that share the same set of actions.
func (t Type) Category() CategoryID {
	switch t {
	case TypeCourseAssigned, TypeCourseCompleted:
		return CategoryCourse
	case TypeTestAvailable, TypeTestDeadline, TypeTestReminder, TypeTestCompleted:
		return CategoryTest
	case TypeTaskAssigned, TypeOnboardingTask:
		return CategoryTask
	case TypeAdminMessage, TypeSystemMessage:
		return CategoryMessage
	case TypeAchievementUnlocked, TypeCertificateIssued, TypeCertificateEarned:
		return CategoryAchievement
	case TypeFeedActivity, TypeFeedMention:
		return CategoryFeed
	case TypeReminderDaily, TypeReminderWeekly:
		return CategoryReminder
	default:
		return ""
	}
}

// Channel is a delivery medium.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelInApp, ChannelPush, ChannelEmail, ChannelSMS:
		return true
	}
	return false
}

// NormalizeChannels sorts and de-duplicates channels, defaulting to in-app
// when the result would be empty.
func NormalizeChannels(chs []Channel) []Channel {
	out := make([]Channel, 0, len(chs))
	for _, c := range chs {
		if c != "" && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return []Channel{ChannelInApp}
	}
	slices.Sort(out)
	return out
}

// Priority orders notifications; urgent may break through quiet hours.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank returns the ordinal of p, or -1 when p is unknown.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	}
	return -1
}

func (p Priority) Valid() bool {
	return p.Rank() >= 0
}

type Metadata struct {
	ImageURL    string `json:"image_url,omitempty"`
	ActionURL   string `json:"action_url,omitempty"`
	ActionTitle string `json:"action_title,omitempty"`
	Badge       *int   `json:"badge,omitempty"`
	Sound       string `json:"sound,omitempty"`
}

type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Type      Type              `json:"type"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	Channels  []Channel         `json:"channels"`
	Priority  Priority          `json:"priority"`
	IsRead    bool              `json:"is_read"`
	ReadAt    *time.Time        `json:"read_at,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
	Metadata  *Metadata         `json:"metadata,omitempty"`
}

// HasChannel reports whether c is one of the notification's channels.
func (n *Notification) HasChannel(c Channel) bool {
	return slices.Contains(n.Channels, c)
}

// IsExpired reports whether the notification expired before now.
func (n *Notification) IsExpired(now time.Time) bool {
	return n.ExpiresAt != nil && n.ExpiresAt.Before(now)
}

// MarkRead sets the read state once; later calls keep the first timestamp.
func (n *Notification) MarkRead(at time.Time) bool {
	if n.IsRead {
		return false
	}
	n.IsRead = true
	t := at
	n.ReadAt = &t
	return true
}

// Clone returns a deep copy so callers cannot mutate shared state.
func (n Notification) Clone() Notification {
	if n.Data != nil {
		data := make(map[string]string, len(n.Data))
		for k, v := range n.Data {
			data[k] = v
		}
		n.Data = data
	}
	n.Channels = slices.Clone(n.Channels)
	if n.ReadAt != nil {
		t := *n.ReadAt
		n.ReadAt = &t
	}
	if n.ExpiresAt != nil {
		t := *n.ExpiresAt
		n.ExpiresAt = &t
	}
	if n.Metadata != nil {
		m := *n.Metadata
		if m.Badge != nil {
			b := *m.Badge
			m.Badge = &b
		}
		n.Metadata = &m
	}
	return n
}

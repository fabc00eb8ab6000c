package model

import "time"

type EventType string

const (
	EventDelivered   EventType = "delivered"
	EventOpened      EventType = "opened"
	EventActionTaken EventType = "action_taken"
	EventDismissed   EventType = "dismissed"
	EventFailed      EventType = "failed"
)

func (e EventType) Valid() bool {
	switch e {
	case EventDelivered, EventOpened, EventActionTaken, EventDismissed, EventFailed:
		return true
	}
	return false
}

// Event is an append-only fact about a notification's lifecycle.
type Event struct {
	ID             string            `json:"id"`
	NotificationID string            `json:"notification_id"`
	UserID         string            `json:"user_id,omitempty"`
	Type           EventType         `json:"type"`
	Timestamp      time.Time         `json:"timestamp"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type Analytics struct {
	TotalSent        int     `json:"total_sent"`
	TotalDelivered   int     `json:"total_delivered"`
	TotalOpened      int     `json:"total_opened"`
	TotalActioned    int     `json:"total_actioned"`
	TotalDismissed   int     `json:"total_dismissed"`
	TotalFailed      int     `json:"total_failed"`
	OpenRate         float64 `json:"open_rate"`
	ClickThroughRate float64 `json:"click_through_rate"`
}

// Count adds one event of type t to the totals. Call Finalize once all
// events are counted.
func (a *Analytics) Count(t EventType) {
	a.Add(t, 1)
}

// Add adds n events of type t to the totals.
func (a *Analytics) Add(t EventType, n int) {
	switch t {
	case EventDelivered:
		a.TotalDelivered += n
	case EventOpened:
		a.TotalOpened += n
	case EventActionTaken:
		a.TotalActioned += n
	case EventDismissed:
		a.TotalDismissed += n
	case EventFailed:
		a.TotalFailed += n
	}
}

// Finalize derives the sent total and the rates. Rates are zero when
// nothing was delivered.
func (a *Analytics) Finalize() {
	a.TotalSent = a.TotalDelivered + a.TotalFailed
	if a.TotalDelivered == 0 {
		a.OpenRate = 0
		a.ClickThroughRate = 0
		return
	}
	a.OpenRate = float64(a.TotalOpened) / float64(a.TotalDelivered)
	a.ClickThroughRate = float64(a.TotalActioned) / float64(a.TotalDelivered)
}

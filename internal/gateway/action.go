package gateway

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/dukerupert/herald/internal/model"
)

// ActionKind tags what the app should do after a notification action.
type ActionKind string

const (
	ActionNone           ActionKind = "none"
	ActionOpen           ActionKind = "open"
	ActionDismiss        ActionKind = "dismiss"
	ActionNavigateCourse ActionKind = "navigate_course"
	ActionNavigateTest   ActionKind = "navigate_test"
	ActionCompleteTask   ActionKind = "complete_task"
	ActionReply          ActionKind = "reply"
	ActionMarkRead       ActionKind = "mark_read"
	ActionSnooze         ActionKind = "snooze"
)

var actionKinds = map[string]ActionKind{
	model.ActionDefault:         ActionOpen,
	model.ActionDismiss:         ActionDismiss,
	model.ActionViewCourse:      ActionNavigateCourse,
	model.ActionStartLearning:   ActionNavigateCourse,
	model.ActionStartTest:       ActionNavigateTest,
	model.ActionCompleteTask:    ActionCompleteTask,
	model.ActionComplete:        ActionCompleteTask,
	model.ActionReply:           ActionReply,
	model.ActionMarkRead:        ActionMarkRead,
	model.ActionViewDetails:     ActionOpen,
	model.ActionViewAchievement: ActionOpen,
	model.ActionViewPost:        ActionOpen,
	model.ActionShare:           ActionOpen,
	model.ActionLike:            ActionOpen,
	model.ActionRemindLater:     ActionSnooze,
	model.ActionSnooze:          ActionSnooze,
}

// ActionResult is the routed outcome of a notification action.
type ActionResult struct {
	Kind           ActionKind        `json:"kind"`
	ActionID       string            `json:"action_id"`
	NotificationID string            `json:"notification_id"`
	UserID         string            `json:"user_id,omitempty"`
	ResponseText   string            `json:"response_text,omitempty"`
	ActionURL      string            `json:"action_url,omitempty"`
	Data           map[string]string `json:"data,omitempty"`
}

// ActionHandler acts on routed results, for example marking the
// notification read.
type ActionHandler interface {
	OnAction(ctx context.Context, result ActionResult) error
}

// RegisterCategories replaces the registered action categories.
func (g *Gateway) RegisterCategories(categories []model.Category) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.categories = make(map[model.CategoryID]model.Category, len(categories))
	for _, c := range categories {
		g.categories[c.ID] = c
	}
}

// Categories returns the registered categories sorted by id.
func (g *Gateway) Categories() []model.Category {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]model.Category, 0, len(g.categories))
	for _, c := range g.categories {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b model.Category) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (g *Gateway) SetActionHandler(h ActionHandler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handler = h
}

// HandleAction records and routes a user's response to a notification.
// Unknown action ids are logged and ignored.
func (g *Gateway) HandleAction(ctx context.Context, actionID, notificationID string, responseText *string) (ActionResult, error) {
	kind, ok := actionKinds[actionID]
	if !ok {
		g.logger.Warn("unknown notification action", "action", actionID, "notification_id", notificationID)
		return ActionResult{Kind: ActionNone, ActionID: actionID, NotificationID: notificationID}, nil
	}

	n, err := g.store.Get(ctx, notificationID)
	if err != nil {
		return ActionResult{}, fmt.Errorf("get notification: %w", err)
	}

	result := ActionResult{Kind: kind, ActionID: actionID, NotificationID: notificationID}
	if n != nil {
		result.UserID = n.UserID
		result.Data = n.Data
		if n.Metadata != nil {
			result.ActionURL = n.Metadata.ActionURL
		}
	}
	if responseText != nil {
		result.ResponseText = *responseText
	}

	switch kind {
	case ActionOpen:
		if actionID == model.ActionDefault {
			g.track(ctx, n, notificationID, model.EventOpened, nil)
			break
		}
		g.trackAction(ctx, n, notificationID, actionID, responseText)
	case ActionDismiss:
		g.track(ctx, n, notificationID, model.EventDismissed, nil)
	default:
		g.trackAction(ctx, n, notificationID, actionID, responseText)
	}

	g.mu.Lock()
	h := g.handler
	g.mu.Unlock()
	if h != nil {
		if err := h.OnAction(ctx, result); err != nil {
			return result, fmt.Errorf("handle %s action: %w", actionID, err)
		}
	}

	g.logger.Info("notification action", "action", actionID, "kind", kind, "notification_id", notificationID)
	return result, nil
}

func (g *Gateway) trackAction(ctx context.Context, n *model.Notification, notificationID, actionID string, responseText *string) {
	md := map[string]string{"action": actionID}
	if responseText != nil {
		md["response"] = *responseText
	}
	g.track(ctx, n, notificationID, model.EventActionTaken, md)
}

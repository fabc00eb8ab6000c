package gateway

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"time"

	"github.com/dukerupert/herald/internal/model"
	"github.com/dukerupert/herald/internal/preference"
	"github.com/dukerupert/herald/internal/push"
)

// ScheduleLocal delivers n to the recipient's devices at triggerAt, or
// immediately when triggerAt is nil or not in the future. Scheduling the
// same notification again replaces the earlier timer.
func (g *Gateway) ScheduleLocal(ctx context.Context, n model.Notification, triggerAt *time.Time) (Handle, error) {
	granted, err := g.RequestAuthorization(ctx)
	if err != nil {
		return "", err
	}
	if !granted {
		return "", model.ErrUnauthorized
	}

	h := Handle(n.ID)
	now := g.now()
	if triggerAt == nil || !triggerAt.After(now) {
		g.deliver(ctx, n)
		return h, nil
	}

	// The timer outlives the caller's request.
	bg := context.WithoutCancel(ctx)

	g.mu.Lock()
	if prev, ok := g.timers[h]; ok {
		prev.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(triggerAt.Sub(now), func() {
		g.mu.Lock()
		if g.timers[h] != timer {
			g.mu.Unlock()
			return
		}
		delete(g.timers, h)
		g.mu.Unlock()
		g.deliverDeferred(bg, n.ID)
	})
	g.timers[h] = timer
	g.mu.Unlock()

	g.logger.Debug("delivery scheduled", "notification_id", n.ID, "at", triggerAt)
	return h, nil
}

// ScheduleRespectingQuietHours delivers now when preferences allow it,
// defers to the end of quiet hours when they apply, and otherwise schedules
// nothing. The bool reports whether a delivery was scheduled.
func (g *Gateway) ScheduleRespectingQuietHours(ctx context.Context, n model.Notification, prefs *model.Preferences) (Handle, bool, error) {
	now := g.now()
	if preference.ShouldDeliver(&n, prefs, now) {
		h, err := g.ScheduleLocal(ctx, n, nil)
		return h, err == nil, err
	}
	if prefs == nil || !prefs.IsEnabled {
		g.logger.Debug("push suppressed", "notification_id", n.ID, "reason", "disabled")
		return "", false, nil
	}
	next := preference.NextAvailableTime(now, prefs.QuietHours, preference.Location(prefs))
	if next == nil {
		g.logger.Debug("push suppressed", "notification_id", n.ID, "reason", "quiet_hours")
		return "", false, nil
	}
	h, err := g.ScheduleLocal(ctx, n, next)
	return h, err == nil, err
}

// Cancel stops a pending delivery. Cancelling a delivered or unknown
// handle does nothing.
func (g *Gateway) Cancel(h Handle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t, ok := g.timers[h]; ok {
		t.Stop()
		delete(g.timers, h)
	}
}

func (g *Gateway) CancelAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for h, t := range g.timers {
		t.Stop()
		delete(g.timers, h)
	}
}

// Pending lists scheduled deliveries that have not fired, sorted.
func (g *Gateway) Pending() []Handle {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Handle, 0, len(g.timers))
	for h := range g.timers {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

// deliverDeferred re-reads the notification when its timer fires so a
// delivery deleted or swept in the meantime sends nothing.
func (g *Gateway) deliverDeferred(ctx context.Context, id string) {
	n, err := g.store.Get(ctx, id)
	if err != nil {
		g.logger.Error("load scheduled notification", "notification_id", id, "error", err)
		return
	}
	if n == nil {
		g.logger.Debug("scheduled notification gone", "notification_id", id)
		return
	}
	g.deliver(ctx, *n)
}

// deliver sends n to every active token of its recipient and records one
// delivered or failed event. Recipients without tokens record nothing.
func (g *Gateway) deliver(ctx context.Context, n model.Notification) {
	tokens, err := g.store.ListActivePushTokens(ctx, n.UserID)
	if err != nil {
		g.logger.Error("list push tokens", "user_id", n.UserID, "error", err)
		g.track(ctx, &n, n.ID, model.EventFailed, map[string]string{"channel": string(model.ChannelPush), "error": err.Error()})
		return
	}
	if len(tokens) == 0 {
		g.logger.Debug("no active push tokens", "user_id", n.UserID, "notification_id", n.ID)
		return
	}

	content := g.BuildRichContent(ctx, n)
	defer removeAttachment(content)

	var delivered, expired int
	var lastErr error
	for _, t := range tokens {
		err := g.transport.Send(ctx, t, content)
		switch {
		case err == nil:
			delivered++
			t.LastUsedAt = g.now()
			if err := g.store.SavePushToken(ctx, t); err != nil {
				g.logger.Warn("touch push token", "token_id", t.ID, "error", err)
			}
		case errors.Is(err, push.ErrExpired):
			expired++
			lastErr = err
			if err := g.store.DeactivatePushToken(ctx, t.ID); err != nil {
				g.logger.Warn("deactivate expired token", "token_id", t.ID, "error", err)
			}
		default:
			lastErr = err
			g.logger.Warn("push send", "token_id", t.ID, "platform", t.Platform, "error", err)
		}
	}

	md := map[string]string{
		"channel": string(model.ChannelPush),
		"tokens":  strconv.Itoa(len(tokens)),
	}
	if delivered > 0 {
		md["delivered"] = strconv.Itoa(delivered)
		g.track(ctx, &n, n.ID, model.EventDelivered, md)
		return
	}
	if expired > 0 {
		md["expired"] = strconv.Itoa(expired)
	}
	md["error"] = lastErr.Error()
	g.track(ctx, &n, n.ID, model.EventFailed, md)
}

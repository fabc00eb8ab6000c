package gateway

import "github.com/dukerupert/herald/internal/websocket"

// UpdateBadge sets the user's badge count and publishes it.
func (g *Gateway) UpdateBadge(userID string, count int) {
	count = max(count, 0)
	g.mu.Lock()
	g.badges[userID] = count
	g.mu.Unlock()

	g.publish(userID, websocket.TopicBadge, count)
	g.logger.Debug("badge updated", "user_id", userID, "count", count)
}

func (g *Gateway) ClearBadge(userID string) {
	g.UpdateBadge(userID, 0)
}

// Badge returns the user's current badge count.
func (g *Gateway) Badge(userID string) int {
	b, _ := g.badge(userID)
	return b
}

func (g *Gateway) badge(userID string) (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.badges[userID]
	return b, ok
}

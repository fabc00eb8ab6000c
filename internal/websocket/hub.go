package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Topic names a per-user stream.
type Topic string

const (
	TopicNotifications Topic = "notifications"
	TopicUnreadCount   Topic = "unread_count"
	TopicPreferences   Topic = "preferences"
	TopicBadge         Topic = "badge"
)

// topics fixes the replay order for new subscribers.
var topics = []Topic{TopicNotifications, TopicUnreadCount, TopicPreferences, TopicBadge}

// Message is a single update on one of a user's streams.
type Message struct {
	Topic  Topic  `json:"topic"`
	UserID string `json:"user_id"`
	Data   any    `json:"data"`
}

// subscription is an in-process listener.
type subscription struct {
	userID string
	ch     chan Message
}

// Hub fans out per-user updates to WebSocket clients and in-process
// subscribers. While a user has listeners it keeps the latest message per
// topic and replays it to anyone who joins later; the state is dropped when
// the last listener leaves.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	subs    map[string]map[*subscription]struct{}
	latest  map[string]map[Topic]Message
	onFirst func(userID string)
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		subs:    make(map[string]map[*subscription]struct{}),
		latest:  make(map[string]map[Topic]Message),
		logger:  logger,
	}
}

// OnFirstListener sets fn to run whenever a user goes from no listeners to
// one. It runs outside the hub lock, so fn may Publish the user's current
// state for the new listener.
func (h *Hub) OnFirstListener(fn func(userID string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onFirst = fn
}

// Register adds a client to the hub and replays the user's latest state.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	first := !h.hasListenersLocked(c.userID)
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}

	for _, msg := range h.replayLocked(c.userID) {
		data, err := json.Marshal(msg)
		if err != nil {
			h.logger.Error("marshal replay", "topic", msg.Topic, "error", err)
			continue
		}
		select {
		case c.send <- data:
		default:
		}
	}
	onFirst := h.onFirst
	h.mu.Unlock()

	if first && onFirst != nil {
		onFirst(c.userID)
	}
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.clients[c.userID]
	if _, ok := set[c]; ok {
		delete(set, c)
		close(c.send)
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
		h.pruneLocked(c.userID)
	}
}

// Subscribe returns a channel of the user's updates, primed with the latest
// message on each topic. Call cancel to stop receiving.
func (h *Hub) Subscribe(userID string) (<-chan Message, func()) {
	sub := &subscription{userID: userID, ch: make(chan Message, sendBufferSize)}

	h.mu.Lock()
	first := !h.hasListenersLocked(userID)
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[*subscription]struct{})
		h.subs[userID] = set
	}
	set[sub] = struct{}{}
	for _, msg := range h.replayLocked(userID) {
		sub.ch <- msg
	}
	onFirst := h.onFirst
	h.mu.Unlock()

	if first && onFirst != nil {
		onFirst(userID)
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[userID], sub)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.pruneLocked(userID)
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish sends data to every listener of the user and records it as the
// topic's latest value. Updates for users without listeners are dropped.
// Slow listeners miss updates rather than block.
func (h *Hub) Publish(userID string, topic Topic, data any) {
	msg := Message{Topic: topic, UserID: userID, Data: data}
	encoded, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal publish", "topic", topic, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.hasListenersLocked(userID) {
		return
	}
	latest, ok := h.latest[userID]
	if !ok {
		latest = make(map[Topic]Message)
		h.latest[userID] = latest
	}
	latest[topic] = msg

	for c := range h.clients[userID] {
		select {
		case c.send <- encoded:
		default:
			// Client buffer full, drop the update
		}
	}
	for sub := range h.subs[userID] {
		select {
		case sub.ch <- msg:
		default:
		}
	}
}

// Latest returns the most recent message on a user's topic.
func (h *Hub) Latest(userID string, topic Topic) (Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	msg, ok := h.latest[userID][topic]
	return msg, ok
}

// HasListeners reports whether the user has a connected client or an
// in-process subscription.
func (h *Hub) HasListeners(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.hasListenersLocked(userID)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var n int
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

func (h *Hub) replayLocked(userID string) []Message {
	var out []Message
	for _, t := range topics {
		if msg, ok := h.latest[userID][t]; ok {
			out = append(out, msg)
		}
	}
	return out
}

func (h *Hub) hasListenersLocked(userID string) bool {
	return len(h.clients[userID]) > 0 || len(h.subs[userID]) > 0
}

func (h *Hub) pruneLocked(userID string) {
	if !h.hasListenersLocked(userID) {
		delete(h.latest, userID)
	}
}

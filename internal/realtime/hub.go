// Package realtime fans check-ins out to admin dashboards over WebSocket.
// Each instance keeps its own connections; Redis pub/sub carries events
// between instances.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eduevent/backend/internal/attendance"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60

	EventCheckIn  = "check_in"
	EventWatchers = "watchers"

	// DefaultSubscribeTimeout bounds the Redis subscribe done when a room opens.
	DefaultSubscribeTimeout = 5 * time.Second
)

// Publisher sends an event to every instance.
type Publisher interface {
	PublishEvent(ctx context.Context, eventID uuid.UUID, name string, payload []byte) error
}

// Subscriber delivers events published by any instance. ctx bounds the
// subscribe handshake only; delivery continues until cancel is called.
type Subscriber interface {
	SubscribeEvent(ctx context.Context, eventID uuid.UUID, handler func(name string, payload []byte)) (cancel func(), err error)
}

// Hub maintains event_id -> set of connections. A room without a live
// subscription (still subscribing, or the subscribe failed) receives this
// instance's check-ins by local broadcast.
type Hub struct {
	rooms       map[uuid.UUID]map[string]*Client
	subs        map[uuid.UUID]func()
	subscribing map[uuid.UUID]bool
	mu          sync.RWMutex
	logger      *zap.Logger
	pub         Publisher
	sub         Subscriber

	subscribeTimeout time.Duration
}

var _ attendance.Publisher = (*Hub)(nil)

// NewHub creates a hub. pub and sub may be nil for a single instance.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:            make(map[uuid.UUID]map[string]*Client),
		subs:             make(map[uuid.UUID]func()),
		subscribing:      make(map[uuid.UUID]bool),
		logger:           logger,
		pub:              pub,
		sub:              sub,
		subscribeTimeout: DefaultSubscribeTimeout,
	}
}

// SetSubscribeTimeout overrides DefaultSubscribeTimeout.
func (h *Hub) SetSubscribeTimeout(d time.Duration) { h.subscribeTimeout = d }

// Register adds a client to its event room. A room without a subscription
// subscribes to Redis; the subscribe runs outside the hub lock.
func (h *Hub) Register(ctx context.Context, c *Client) {
	eventID := c.EventID
	h.mu.Lock()
	if h.rooms[eventID] == nil {
		h.rooms[eventID] = make(map[string]*Client)
	}
	h.rooms[eventID][c.ID] = c
	count := len(h.rooms[eventID])
	needSub := h.sub != nil && h.subs[eventID] == nil && !h.subscribing[eventID]
	if needSub {
		h.subscribing[eventID] = true
	}
	h.mu.Unlock()

	if needSub {
		h.subscribe(ctx, eventID)
	}
	h.Broadcast(eventID, EventWatchers, map[string]int{"count": count})
	h.logger.Debug("client joined live feed", zap.String("client_id", c.ID), zap.String("event_id", eventID.String()))
}

func (h *Hub) subscribe(ctx context.Context, eventID uuid.UUID) {
	subCtx, cancelSub := context.WithTimeout(ctx, h.subscribeTimeout)
	defer cancelSub()
	cancel, err := h.sub.SubscribeEvent(subCtx, eventID, func(name string, payload []byte) {
		h.Broadcast(eventID, name, json.RawMessage(payload))
	})

	h.mu.Lock()
	delete(h.subscribing, eventID)
	orphan := false
	if err == nil {
		if h.rooms[eventID] == nil {
			orphan = true
		} else {
			h.subs[eventID] = cancel
		}
	}
	h.mu.Unlock()

	switch {
	case err != nil:
		h.logger.Warn("subscribe live feed, falling back to local delivery",
			zap.String("event_id", eventID.String()), zap.Error(err))
	case orphan:
		cancel()
	}
}

// Unregister removes a client. The last client of a room cancels its subscription.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	count := 0
	if m, ok := h.rooms[c.EventID]; ok {
		if _, ok := m[c.ID]; ok {
			delete(m, c.ID)
			close(c.send)
		}
		count = len(m)
		if count == 0 {
			delete(h.rooms, c.EventID)
			if cancel, ok := h.subs[c.EventID]; ok {
				cancel()
				delete(h.subs, c.EventID)
			}
		}
	}
	h.mu.Unlock()

	if count > 0 {
		h.Broadcast(c.EventID, EventWatchers, map[string]int{"count": count})
	}
	h.logger.Debug("client left live feed", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// Broadcast sends a message to the local clients of an event. Slow clients
// whose buffer is full miss the message.
func (h *Hub) Broadcast(eventID uuid.UUID, name string, payload any) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			h.logger.Warn("encode live message", zap.String("event", name), zap.Error(err))
			return
		}
	}
	msg := WSMessage{Event: name, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[eventID] {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// PublishCheckIn announces a check-in. With Redis configured the message goes
// through the channel, so every subscribed instance (this one included)
// broadcasts it once. Local clients of an unsubscribed room get it directly.
func (h *Hub) PublishCheckIn(ctx context.Context, eventID uuid.UUID, notice attendance.CheckInNotice) error {
	if h.pub == nil {
		h.Broadcast(eventID, EventCheckIn, notice)
		return nil
	}
	data, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("encode check-in: %w", err)
	}
	if !h.subscribed(eventID) {
		h.Broadcast(eventID, EventCheckIn, json.RawMessage(data))
	}
	return h.pub.PublishEvent(ctx, eventID, EventCheckIn, data)
}

func (h *Hub) subscribed(eventID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.subs[eventID]
	return ok
}

// Watchers returns the number of local clients watching an event.
func (h *Hub) Watchers(eventID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"connect4_events/internal/transport"
)

const (
	cleanupInterval = 10 * time.Minute
	roomIdleTimeout = 10 * time.Minute
)

// Hub tracks the websocket clients of one relay process and one Room per
// channel name. Events travel through the backend transport, so relays
// sharing a redis or postgres backend see each other's publishes.
type Hub struct {
	Rooms   map[string]*Room
	Clients map[string]*Client
	mu      sync.RWMutex

	backend   transport.Transport
	Namespace string
}

func NewHub(backend transport.Transport, namespace string) *Hub {
	return &Hub{
		Rooms:     make(map[string]*Room),
		Clients:   make(map[string]*Client),
		backend:   backend,
		Namespace: namespace,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.Clients[c.ID] = c
	h.mu.Unlock()
	ConnectionsActive.Inc()
}

func (h *Hub) room(name string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.Rooms[name]
	if !ok {
		r = NewRoom(name, h.backend)
		h.Rooms[name] = r
		log.Printf("Hub.room: created room=%s (rooms=%d)", name, len(h.Rooms))
	}
	return r
}

// Subscribe attaches subscription subID of client c to channel.
func (h *Hub) Subscribe(ctx context.Context, c *Client, subID, channel string) error {
	if err := checkChannel(h.Namespace, channel); err != nil {
		return err
	}
	// a room can be closed by cleanup between lookup and use; one retry
	// picks up the replacement
	for attempt := 0; attempt < 2; attempt++ {
		r := h.room(channel)
		err := r.addSubscriber(ctx, c, subID)
		if errors.Is(err, errRoomClosed) {
			h.forget(r)
			continue
		}
		if err != nil {
			return err
		}
		c.trackSubscription(subID, channel)
		return nil
	}
	return errRoomClosed
}

func (h *Hub) Unsubscribe(c *Client, subID string) bool {
	channel, ok := c.untrackSubscription(subID)
	if !ok {
		return false
	}
	h.mu.RLock()
	r := h.Rooms[channel]
	h.mu.RUnlock()
	if r != nil {
		r.removeSubscriber(c, subID)
	}
	return true
}

func (h *Hub) Publish(ctx context.Context, channel string, event json.RawMessage) error {
	if err := checkChannel(h.Namespace, channel); err != nil {
		return err
	}
	if !json.Valid(event) {
		return errors.New("event is not valid JSON")
	}
	for attempt := 0; attempt < 2; attempt++ {
		r := h.room(channel)
		err := r.publish(ctx, event)
		if errors.Is(err, errRoomClosed) {
			h.forget(r)
			continue
		}
		return err
	}
	return errRoomClosed
}

// OnDisconnect drops every subscription the client still holds.
func (h *Hub) OnDisconnect(c *Client) {
	for subID := range c.subscriptions() {
		h.Unsubscribe(c, subID)
	}

	h.mu.Lock()
	_, ok := h.Clients[c.ID]
	delete(h.Clients, c.ID)
	h.mu.Unlock()
	if ok {
		ConnectionsActive.Dec()
	}
	log.Printf("Hub.OnDisconnect: client=%s player=%q", c.ID, c.Player)
}

func (h *Hub) forget(r *Room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Rooms[r.Name] == r {
		delete(h.Rooms, r.Name)
	}
}

func (h *Hub) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.cleanupStaleRooms(time.Now())
			}
		}
	}()
}

func (h *Hub) cleanupStaleRooms(now time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for name, r := range h.Rooms {
		if r.closeIfIdle(now, roomIdleTimeout) {
			delete(h.Rooms, name)
			removed++
			log.Printf("cleaned up stale room: %s", name)
		}
	}
	return removed
}

// RoomCount returns the number of channel rooms currently tracked.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.Rooms)
}

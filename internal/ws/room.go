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

var errRoomClosed = errors.New("room closed")

type subKey struct {
	clientID string
	subID    string
}

// Room is the relay side of one channel. It holds the backend subscription
// while at least one websocket subscriber is attached and fans backend
// events out to every subscriber.
type Room struct {
	Name string

	mu          sync.RWMutex
	backend     transport.Transport
	channel     transport.Channel
	sub         transport.Subscription
	subscribers map[subKey]*Client
	closed      bool
	createdAt   time.Time
	lastActive  time.Time
}

func NewRoom(name string, backend transport.Transport) *Room {
	now := time.Now()
	return &Room{
		Name:        name,
		backend:     backend,
		subscribers: make(map[subKey]*Client),
		createdAt:   now,
		lastActive:  now,
	}
}

// connect lazily opens the backend channel. Caller holds r.mu.
func (r *Room) connect(ctx context.Context) (transport.Channel, error) {
	if r.channel != nil {
		return r.channel, nil
	}
	ch, err := r.backend.Connect(ctx, r.Name)
	if err != nil {
		return nil, err
	}
	r.channel = ch
	return ch, nil
}

func (r *Room) addSubscriber(ctx context.Context, c *Client, subID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errRoomClosed
	}
	if r.sub == nil {
		ch, err := r.connect(ctx)
		if err != nil {
			return err
		}
		sub, err := ch.Subscribe(ctx, r.fanout, r.backendError)
		if err != nil {
			return err
		}
		r.sub = sub
		log.Printf("Room.addSubscriber: room=%s backend subscription opened", r.Name)
	}

	r.subscribers[subKey{c.ID, subID}] = c
	r.lastActive = time.Now()
	log.Printf("Room.addSubscriber: room=%s client=%s sub=%s subscribers=%d", r.Name, c.ID, subID, len(r.subscribers))
	return nil
}

// removeSubscriber drops one subscription and releases the backend
// subscription when it was the last one.
func (r *Room) removeSubscriber(c *Client, subID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.subscribers, subKey{c.ID, subID})
	r.lastActive = time.Now()
	if len(r.subscribers) == 0 && r.sub != nil {
		r.sub.Cancel()
		r.sub = nil
		log.Printf("Room.removeSubscriber: room=%s last subscriber left, backend subscription closed", r.Name)
	}
}

func (r *Room) publish(ctx context.Context, event json.RawMessage) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errRoomClosed
	}
	ch, err := r.connect(ctx)
	r.lastActive = time.Now()
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return ch.Publish(ctx, event)
}

// fanout runs on the backend dispatcher goroutine.
func (r *Room) fanout(event json.RawMessage) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for key, c := range r.subscribers {
		data, err := json.Marshal(Message{
			Type:    MsgData,
			ID:      key.subID,
			Channel: r.Name,
			Event:   event,
		})
		if err != nil {
			log.Printf("Room.fanout: marshal error: %v", err)
			return
		}
		if c.enqueue(data) {
			EventsDelivered.Inc()
		} else {
			EventsDropped.Inc()
			log.Printf("Room.fanout: room=%s dropped event for client=%s", r.Name, c.ID)
		}
	}
}

func (r *Room) backendError(err error) {
	log.Printf("Room.backendError: room=%s error=%v", r.Name, err)
}

func (r *Room) subscriberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers)
}

// closeIfIdle closes the room when nobody has used it for idleFor.
func (r *Room) closeIfIdle(now time.Time, idleFor time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.subscribers) > 0 || now.Sub(r.lastActive) < idleFor {
		return false
	}
	if r.sub != nil {
		r.sub.Cancel()
		r.sub = nil
	}
	r.closed = true
	return true
}

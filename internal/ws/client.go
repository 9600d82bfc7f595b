package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = 25 * time.Second
	publishTimeout = 5 * time.Second
	maxMessageSize = 16 * 1024
	sendBuffer     = 256
)

type Client struct {
	ID        string
	Player    string
	Namespace string
	Conn      *websocket.Conn
	Send      chan []byte
	Hub       *Hub
	Done      chan struct{}

	closeOnce sync.Once
	closed    chan struct{}

	subsMu sync.Mutex
	subs   map[string]string // subscription id -> channel
}

// NewClient wraps an upgraded connection. namespace is the channel prefix
// the client's token grants.
func NewClient(player, namespace string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:        uuid.NewString(),
		Player:    player,
		Namespace: namespace,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
		Hub:       hub,
		Done:      make(chan struct{}),
		closed:    make(chan struct{}),
		subs:      make(map[string]string),
	}
}

// Run blocks until the connection is gone.
func (c *Client) Run() {
	c.Hub.Register(c)
	go c.writePump()

	c.reply(Message{Type: MsgReady, ID: c.ID})
	log.Printf("Client.Run: client=%s player=%q connected", c.ID, c.Player)

	c.readPump()
	<-c.Done
}

func (c *Client) readPump() {
	defer func() {
		c.disconnect()
		close(c.Done)
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Client.readPump: client=%s read error: %v", c.ID, err)
			}
			return
		}
		c.HandleMessage(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("Client.writePump: client=%s write error: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closed:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// HandleMessage serves one client frame. Publishes are forwarded before the
// next frame is read, which keeps one client's events in order.
func (c *Client) HandleMessage(raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.reply(Message{Type: MsgError, Error: "malformed message"})
		return
	}

	switch msg.Type {
	case MsgSubscribe:
		if msg.ID == "" {
			c.reply(Message{Type: MsgSubscribeError, Error: "subscription id required"})
			return
		}
		if err := checkChannel(c.Namespace, msg.Channel); err != nil {
			c.reply(Message{Type: MsgSubscribeError, ID: msg.ID, Error: err.Error()})
			return
		}
		if c.hasSubscription(msg.ID) {
			c.reply(Message{Type: MsgSubscribeError, ID: msg.ID, Error: "duplicate subscription id"})
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := c.Hub.Subscribe(ctx, c, msg.ID, msg.Channel)
		cancel()
		if err != nil {
			log.Printf("Client.HandleMessage: client=%s subscribe %s failed: %v", c.ID, msg.Channel, err)
			c.reply(Message{Type: MsgSubscribeError, ID: msg.ID, Error: err.Error()})
			return
		}
		c.reply(Message{Type: MsgSubscribeSuccess, ID: msg.ID})

	case MsgUnsubscribe:
		c.Hub.Unsubscribe(c, msg.ID)
		c.reply(Message{Type: MsgUnsubscribeSuccess, ID: msg.ID})

	case MsgPublish:
		if err := checkChannel(c.Namespace, msg.Channel); err != nil {
			EventsPublished.WithLabelValues("error").Inc()
			c.reply(Message{Type: MsgPublishError, ID: msg.ID, Error: err.Error()})
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := c.Hub.Publish(ctx, msg.Channel, msg.Event)
		cancel()
		if err != nil {
			EventsPublished.WithLabelValues("error").Inc()
			c.reply(Message{Type: MsgPublishError, ID: msg.ID, Error: err.Error()})
			return
		}
		EventsPublished.WithLabelValues("ok").Inc()
		c.reply(Message{Type: MsgPublishSuccess, ID: msg.ID})

	default:
		c.reply(Message{Type: MsgError, ID: msg.ID, Error: "unknown message type " + msg.Type})
	}
}

func (c *Client) reply(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Client.reply: marshal error: %v", err)
		return
	}
	if !c.enqueue(data) {
		log.Printf("Client.reply: client=%s dropped %s", c.ID, msg.Type)
	}
}

// enqueue never blocks: a client that cannot keep up loses events, which
// the at-least-once contract already allows consumers to survive.
func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) trackSubscription(subID, channel string) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.subs[subID] = channel
}

func (c *Client) untrackSubscription(subID string) (string, bool) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	channel, ok := c.subs[subID]
	delete(c.subs, subID)
	return channel, ok
}

func (c *Client) hasSubscription(subID string) bool {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	_, ok := c.subs[subID]
	return ok
}

func (c *Client) subscriptions() map[string]string {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	out := make(map[string]string, len(c.subs))
	for k, v := range c.subs {
		out[k] = v
	}
	return out
}

func (c *Client) disconnect() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	c.Hub.OnDisconnect(c)
}

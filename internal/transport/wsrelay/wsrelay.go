// Package wsrelay is the client side of the websocket relay served by
// cmd/app. One websocket carries every channel; subscriptions are
// multiplexed by id.
package wsrelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"connect4_events/internal/logger"
	"connect4_events/internal/transport"
	"connect4_events/internal/ws"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var ErrRejected = errors.New("relay rejected request")

type Transport struct {
	ID string

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan ws.Message
	subs    map[string]*transport.Dispatcher

	closeOnce sync.Once
	closed    chan struct{}
	err       error
}

// Dial opens the websocket at relayURL (e.g. ws://localhost:8080/ws) and
// waits for the relay's ready frame.
func Dial(ctx context.Context, relayURL, token string) (*Transport, error) {
	u, err := url.Parse(relayURL)
	if err != nil {
		return nil, fmt.Errorf("relay url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}
	var ready ws.Message
	if err := conn.ReadJSON(&ready); err != nil {
		conn.Close()
		return nil, fmt.Errorf("relay handshake: %w", err)
	}
	if ready.Type != ws.MsgReady {
		conn.Close()
		return nil, fmt.Errorf("relay handshake: unexpected %q", ready.Type)
	}
	conn.SetReadDeadline(time.Time{})

	t := &Transport{
		ID:      ready.ID,
		conn:    conn,
		pending: make(map[string]chan ws.Message),
		subs:    make(map[string]*transport.Dispatcher),
		closed:  make(chan struct{}),
	}
	go t.readPump()
	return t, nil
}

func (t *Transport) Connect(ctx context.Context, name string) (transport.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case <-t.closed:
		return nil, transport.ErrClosed
	default:
	}
	return &channel{t: t, name: name}, nil
}

// Close ends the websocket. Live subscriptions stop receiving.
func (t *Transport) Close() error {
	t.writeMu.Lock()
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMu.Unlock()
	t.shutdown(transport.ErrClosed)
	return t.conn.Close()
}

func (t *Transport) readPump() {
	for {
		var msg ws.Message
		if err := t.conn.ReadJSON(&msg); err != nil {
			t.shutdown(fmt.Errorf("relay read: %w", err))
			return
		}

		switch msg.Type {
		case ws.MsgData:
			t.mu.Lock()
			d := t.subs[msg.ID]
			t.mu.Unlock()
			if d != nil {
				d.Deliver(msg.Event)
			}

		case ws.MsgSubscribeSuccess, ws.MsgSubscribeError,
			ws.MsgPublishSuccess, ws.MsgPublishError,
			ws.MsgUnsubscribeSuccess, ws.MsgError:
			t.mu.Lock()
			reply := t.pending[msg.ID]
			delete(t.pending, msg.ID)
			t.mu.Unlock()
			if reply != nil {
				reply <- msg
			} else if msg.Type == ws.MsgError {
				logger.Warn("wsrelay: relay error", "error", msg.Error)
			}

		default:
			logger.Debug("wsrelay: ignoring frame", "type", msg.Type)
		}
	}
}

// shutdown runs once, on Close or on the first read error.
func (t *Transport) shutdown(err error) {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.err = err
		close(t.closed)
		subs := t.subs
		t.subs = make(map[string]*transport.Dispatcher)
		t.mu.Unlock()

		if !errors.Is(err, transport.ErrClosed) {
			logger.Warn("wsrelay: connection lost", "error", err)
			for _, d := range subs {
				d.Fail(err)
			}
		}
	})
}

func (t *Transport) write(msg ws.Message) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteJSON(msg)
}

// request sends msg and waits for the relay's reply carrying the same id.
func (t *Transport) request(ctx context.Context, msg ws.Message) (ws.Message, error) {
	reply := make(chan ws.Message, 1)
	t.mu.Lock()
	select {
	case <-t.closed:
		t.mu.Unlock()
		return ws.Message{}, transport.ErrClosed
	default:
	}
	t.pending[msg.ID] = reply
	t.mu.Unlock()

	forget := func() {
		t.mu.Lock()
		delete(t.pending, msg.ID)
		t.mu.Unlock()
	}

	if err := t.write(msg); err != nil {
		forget()
		return ws.Message{}, fmt.Errorf("relay write: %w", err)
	}

	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		forget()
		return ws.Message{}, ctx.Err()
	case <-t.closed:
		forget()
		return ws.Message{}, fmt.Errorf("%w: %v", transport.ErrClosed, t.err)
	}
}

type channel struct {
	t    *Transport
	name string
}

func (c *channel) Name() string { return c.name }

func (c *channel) Subscribe(ctx context.Context, onEvent transport.Handler, onError transport.ErrorHandler) (transport.Subscription, error) {
	t := c.t
	subID := uuid.NewString()

	d := transport.NewDispatcher(c.name, onEvent, onError, func() {
		t.mu.Lock()
		delete(t.subs, subID)
		t.mu.Unlock()
		go func() {
			if err := t.write(ws.Message{Type: ws.MsgUnsubscribe, ID: subID}); err != nil {
				logger.Debug("wsrelay: unsubscribe", "channel", c.name, "error", err)
			}
		}()
	})

	// registered before the request so no data frame after the ack is missed
	t.mu.Lock()
	t.subs[subID] = d
	t.mu.Unlock()

	res, err := t.request(ctx, ws.Message{Type: ws.MsgSubscribe, ID: subID, Channel: c.name})
	if err == nil && res.Type != ws.MsgSubscribeSuccess {
		err = fmt.Errorf("%w: %s", ErrRejected, res.Error)
	}
	if err != nil {
		t.mu.Lock()
		delete(t.subs, subID)
		t.mu.Unlock()
		d.Cancel()
		return nil, fmt.Errorf("relay subscribe %s: %w", c.name, err)
	}
	return d, nil
}

func (c *channel) Publish(ctx context.Context, payload any) error {
	raw, err := transport.Encode(payload)
	if err != nil {
		return err
	}
	res, err := c.t.request(ctx, ws.Message{
		Type:    ws.MsgPublish,
		ID:      uuid.NewString(),
		Channel: c.name,
		Event:   json.RawMessage(raw),
	})
	if err != nil {
		return fmt.Errorf("relay publish %s: %w", c.name, err)
	}
	if res.Type != ws.MsgPublishSuccess {
		return fmt.Errorf("relay publish %s: %w: %s", c.name, ErrRejected, res.Error)
	}
	return nil
}

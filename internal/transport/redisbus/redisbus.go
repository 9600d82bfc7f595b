// Package redisbus backs transport channels with redis PUBLISH/SUBSCRIBE.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"

	"connect4_events/internal/logger"
	"connect4_events/internal/transport"

	redis "github.com/redis/go-redis/v9"
)

const DefaultPrefix = "connect4:"

type Transport struct {
	client *redis.Client
	prefix string
}

// New wraps an existing client. Channel names are prefixed so several
// applications can share one redis.
func New(client *redis.Client, prefix string) *Transport {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Transport{client: client, prefix: prefix}
}

// Dial connects to addr and pings it before returning.
func Dial(ctx context.Context, addr, password string, db int) (*Transport, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return New(client, ""), nil
}

func (t *Transport) Client() *redis.Client {
	return t.client
}

func (t *Transport) Ping(ctx context.Context) error {
	return t.client.Ping(ctx).Err()
}

func (t *Transport) Close() error {
	return t.client.Close()
}

func (t *Transport) Connect(ctx context.Context, name string) (transport.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &channel{t: t, name: name, key: t.prefix + name}, nil
}

type channel struct {
	t    *Transport
	name string
	key  string
}

func (c *channel) Name() string { return c.name }

func (c *channel) Subscribe(ctx context.Context, onEvent transport.Handler, onError transport.ErrorHandler) (transport.Subscription, error) {
	ps := c.t.client.Subscribe(ctx, c.key)
	// Receive blocks until redis confirms the subscription.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", c.name, err)
	}

	d := transport.NewDispatcher(c.name, onEvent, onError, func() {
		if err := ps.Close(); err != nil {
			logger.Debug("redisbus: close pubsub", "channel", c.name, "error", err)
		}
	})

	go func() {
		for msg := range ps.Channel() {
			payload := json.RawMessage(msg.Payload)
			if !json.Valid(payload) {
				d.Fail(fmt.Errorf("redis %s: payload is not JSON", c.name))
				continue
			}
			d.Deliver(payload)
		}
	}()
	return d, nil
}

func (c *channel) Publish(ctx context.Context, payload any) error {
	raw, err := transport.Encode(payload)
	if err != nil {
		return err
	}
	if err := c.t.client.Publish(ctx, c.key, []byte(raw)).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", c.name, err)
	}
	return nil
}

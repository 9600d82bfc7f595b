// Package pgnotify backs transport channels with postgres LISTEN/NOTIFY.
// Each subscription holds one pooled connection for its lifetime.
package pgnotify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"connect4_events/internal/logger"
	"connect4_events/internal/transport"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MaxPayload is the NOTIFY payload limit of a default postgres build.
const MaxPayload = 8000

type Transport struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Transport {
	return &Transport{pool: pool}
}

func (t *Transport) Ping(ctx context.Context) error {
	return t.pool.Ping(ctx)
}

func (t *Transport) Connect(ctx context.Context, name string) (transport.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// postgres truncates identifiers longer than 63 bytes, which would
	// silently merge channels
	if len(name) == 0 || len(name) > 63 {
		return nil, fmt.Errorf("pgnotify: channel name %q must be 1..63 bytes", name)
	}
	return &channel{pool: t.pool, name: name}, nil
}

type channel struct {
	pool *pgxpool.Pool
	name string
}

func (c *channel) Name() string { return c.name }

func (c *channel) Subscribe(ctx context.Context, onEvent transport.Handler, onError transport.ErrorHandler) (transport.Subscription, error) {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("pgnotify acquire: %w", err)
	}
	ident := pgx.Identifier{c.name}.Sanitize()
	if _, err := conn.Exec(ctx, "LISTEN "+ident); err != nil {
		conn.Release()
		return nil, fmt.Errorf("pgnotify listen %s: %w", c.name, err)
	}

	listenCtx, stop := context.WithCancel(context.Background())
	d := transport.NewDispatcher(c.name, onEvent, onError, stop)

	go func() {
		defer release(conn, ident)
		for {
			n, err := conn.Conn().WaitForNotification(listenCtx)
			if err != nil {
				if listenCtx.Err() == nil {
					d.Fail(fmt.Errorf("pgnotify %s: %w", c.name, err))
					logger.Error("pgnotify: listener stopped", "channel", c.name, "error", err)
				}
				return
			}
			payload := json.RawMessage(n.Payload)
			if !json.Valid(payload) {
				d.Fail(fmt.Errorf("pgnotify %s: payload is not JSON", c.name))
				continue
			}
			d.Deliver(payload)
		}
	}()
	return d, nil
}

func release(conn *pgxpool.Conn, ident string) {
	defer conn.Release()
	if conn.Conn().IsClosed() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := conn.Exec(ctx, "UNLISTEN "+ident); err != nil {
		// a connection still listening must not go back to the pool
		_ = conn.Conn().Close(ctx)
	}
}

func (c *channel) Publish(ctx context.Context, payload any) error {
	raw, err := transport.Encode(payload)
	if err != nil {
		return err
	}
	if len(raw) >= MaxPayload {
		return fmt.Errorf("%w: %d bytes", transport.ErrPayloadTooLarge, len(raw))
	}
	if _, err := c.pool.Exec(ctx, "SELECT pg_notify($1, $2)", c.name, string(raw)); err != nil {
		return fmt.Errorf("pgnotify publish %s: %w", c.name, err)
	}
	return nil
}

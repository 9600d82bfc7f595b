// Package transport defines the publish/subscribe capability a session
// depends on. Backends live in subpackages; the in-process Bus lives here.
//
// Delivery is at-least-once and may reorder or duplicate events. Payloads
// reach handlers as raw JSON; decoding and validation belong to the caller.
package transport

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrClosed          = errors.New("transport closed")
	ErrPayloadTooLarge = errors.New("payload too large")
)

type Handler func(payload json.RawMessage)

type ErrorHandler func(err error)

type Transport interface {
	// Connect opens the named channel, e.g. /game/ABC123.
	Connect(ctx context.Context, name string) (Channel, error)
}

type Channel interface {
	Name() string
	// Subscribe returns once the backend has confirmed the subscription.
	Subscribe(ctx context.Context, onEvent Handler, onError ErrorHandler) (Subscription, error)
	// Publish marshals payload to JSON and returns once the backend has
	// accepted it.
	Publish(ctx context.Context, payload any) error
}

// Subscription.Cancel guarantees that no handler invocation starts after it
// returns. An invocation already running is allowed to finish.
type Subscription interface {
	Cancel()
}

// Encode marshals a payload the way every backend puts it on the wire.
func Encode(payload any) (json.RawMessage, error) {
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(payload)
}

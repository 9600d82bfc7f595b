package transport

import (
	"context"
	"sync"
)

// Bus is an in-process Transport. Each published event is delivered
// n times (see WithDuplicates) to every subscriber of the channel, including the publisher
// when it is subscribed.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[*Dispatcher]struct{}
	copies int
	closed bool
}

type BusOption func(*Bus)

// WithDuplicates delivers every event n times, to exercise at-least-once
// consumers.
func WithDuplicates(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.copies = n
		}
	}
}

func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		subs:   make(map[string]map[*Dispatcher]struct{}),
		copies: 1,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) Connect(ctx context.Context, name string) (Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	return &busChannel{bus: b, name: name}, nil
}

// Subscribers returns the number of live subscriptions on a channel.
func (b *Bus) Subscribers(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}

// Close cancels every subscription and rejects further use.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var all []*Dispatcher
	for _, set := range b.subs {
		for d := range set {
			all = append(all, d)
		}
	}
	b.subs = make(map[string]map[*Dispatcher]struct{})
	b.mu.Unlock()

	for _, d := range all {
		d.Cancel()
	}
	return nil
}

func (b *Bus) remove(name string, d *Dispatcher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[name], d)
	if len(b.subs[name]) == 0 {
		delete(b.subs, name)
	}
}

type busChannel struct {
	bus  *Bus
	name string
}

func (c *busChannel) Name() string { return c.name }

func (c *busChannel) Subscribe(ctx context.Context, onEvent Handler, onError ErrorHandler) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := c.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	var d *Dispatcher
	d = NewDispatcher(c.name, onEvent, onError, func() { b.remove(c.name, d) })
	if b.subs[c.name] == nil {
		b.subs[c.name] = make(map[*Dispatcher]struct{})
	}
	b.subs[c.name][d] = struct{}{}
	return d, nil
}

func (c *busChannel) Publish(ctx context.Context, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := Encode(payload)
	if err != nil {
		return err
	}

	b := c.bus
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for i := 0; i < b.copies; i++ {
		for d := range b.subs[c.name] {
			d.Deliver(raw)
		}
	}
	return nil
}

package transport

import (
	"encoding/json"
	"sync"

	"connect4_events/internal/logger"
)

const dispatchBuffer = 256

// Dispatcher runs a subscription's handlers on a goroutine of its own so a
// slow handler never blocks the backend reader. Backends push deliveries
// with Deliver and report failures with Fail.
type Dispatcher struct {
	channel string
	onEvent Handler
	onError ErrorHandler

	queue chan json.RawMessage
	errs  chan error
	stop  chan struct{}

	mu       sync.Mutex
	canceled bool
	once     sync.Once
	onCancel func()
}

// NewDispatcher starts the delivery goroutine. onCancel runs once, after
// the dispatcher stops accepting deliveries, and is where a backend
// releases its resources.
func NewDispatcher(channel string, onEvent Handler, onError ErrorHandler, onCancel func()) *Dispatcher {
	d := &Dispatcher{
		channel:  channel,
		onEvent:  onEvent,
		onError:  onError,
		queue:    make(chan json.RawMessage, dispatchBuffer),
		errs:     make(chan error, 8),
		stop:     make(chan struct{}),
		onCancel: onCancel,
	}
	go d.run()
	return d
}

// Deliver enqueues a payload. It reports false when the subscription is
// canceled or the queue is full; a full queue drops the event.
func (d *Dispatcher) Deliver(payload json.RawMessage) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.canceled {
		return false
	}
	select {
	case d.queue <- payload:
		return true
	default:
		logger.Warn("transport: dispatch queue full, dropping event", "channel", d.channel)
		return false
	}
}

// Fail reports a backend error to the subscriber's error handler.
func (d *Dispatcher) Fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.canceled {
		return
	}
	select {
	case d.errs <- err:
	default:
		logger.Warn("transport: error queue full", "channel", d.channel, "error", err)
	}
}

func (d *Dispatcher) Cancel() {
	d.once.Do(func() {
		d.mu.Lock()
		d.canceled = true
		close(d.stop)
		d.mu.Unlock()
		if d.onCancel != nil {
			d.onCancel()
		}
	})
}

func (d *Dispatcher) Canceled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.canceled
}

func (d *Dispatcher) run() {
	for {
		select {
		case <-d.stop:
			return
		case payload := <-d.queue:
			if d.Canceled() {
				return
			}
			d.onEvent(payload)
		case err := <-d.errs:
			if d.Canceled() {
				return
			}
			if d.onError != nil {
				d.onError(err)
			}
		}
	}
}

// Package session runs one client's side of a game session: it owns the
// local state, enforces turn ownership, publishes the state after every
// accepted local command and merges state received from the peer.
//
// All state is owned by a single loop goroutine. Transport handlers and the
// public methods hand it closures through an inbox, so no state is shared
// between goroutines except the published View snapshot.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"connect4_events/internal/domain"
	"connect4_events/internal/game"
	"connect4_events/internal/logger"
	"connect4_events/internal/transport"
)

const (
	inboxSize      = 64
	outboxSize     = 64
	publishTimeout = 5 * time.Second
)

var (
	ErrNotIdle   = errors.New("session already joined")
	ErrNotActive = errors.New("session not active")
	ErrConfig    = errors.New("invalid session config")
)

type Status int32

const (
	Idle Status = iota
	Connecting
	Active
	Closed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

type Config struct {
	Code       domain.GameCode
	PlayerName string
	Role       domain.Role
	Transport  transport.Transport
	// Logger defaults to the process logger tagged component=session.
	Logger *slog.Logger
}

type Option func(*Coordinator)

// WithSequencedMerge stamps published states with a Lamport sequence and
// the publishing seat, and applies an inbound state only when its stamp is
// greater than the local one. Both clients then converge on the same state
// when their moves race. Peers must use the same option.
func WithSequencedMerge() Option {
	return func(c *Coordinator) { c.sequenced = true }
}

// WithDrawDetection ends the game on a full board without a winner.
func WithDrawDetection() Option {
	return func(c *Coordinator) { c.reducer.DetectDraw = true }
}

type outgoing struct {
	ch      transport.Channel
	payload any
}

type Coordinator struct {
	code      domain.GameCode
	name      string
	role      domain.Role
	transport transport.Transport
	log       *slog.Logger

	reducer   game.Reducer
	sequenced bool

	status  atomic.Int32
	view    atomic.Pointer[View]
	changes chan struct{}

	// owned by the loop goroutine
	state   game.State
	chat    []domain.ChatMessage
	version stamp
	stateCh transport.Channel
	chatCh  transport.Channel

	subsMu sync.Mutex
	subs   []transport.Subscription

	inbox     chan func()
	outbox    chan outgoing
	done      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once
}

// New builds an Idle coordinator and starts its loop. Call Join to connect
// and Leave to stop it.
func New(cfg Config, opts ...Option) (*Coordinator, error) {
	if err := cfg.Code.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if !cfg.Role.Valid() {
		return nil, fmt.Errorf("%w: role %d", ErrConfig, cfg.Role)
	}
	if cfg.Transport == nil {
		return nil, fmt.Errorf("%w: no transport", ErrConfig)
	}
	name := cfg.PlayerName
	if name == "" {
		name = domain.DefaultPlayerName
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Component("session")
	}

	c := &Coordinator{
		code:      cfg.Code,
		name:      name,
		role:      cfg.Role,
		transport: cfg.Transport,
		log:       log.With("code", string(cfg.Code), "role", cfg.Role.String()),
		changes:   make(chan struct{}, 1),
		inbox:     make(chan func(), inboxSize),
		outbox:    make(chan outgoing, outboxSize),
		done:      make(chan struct{}),
		loopDone:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.Role == domain.Creator {
		c.state = game.NewState(name, domain.WaitingName)
	} else {
		c.state = game.NewState(domain.WaitingName, name)
	}
	c.publishView()

	go c.loop()
	go c.publisher()
	return c, nil
}

func (c *Coordinator) Status() Status {
	return Status(c.status.Load())
}

// Join opens and subscribes the state and chat channels. Local commands
// are ignored until it returns nil. On failure the coordinator stays in
// Connecting and is not retried.
func (c *Coordinator) Join(ctx context.Context) error {
	if !c.status.CompareAndSwap(int32(Idle), int32(Connecting)) {
		return ErrNotIdle
	}
	c.do(func() { c.publishView() })

	err := c.join(ctx)
	if err != nil {
		c.cancelSubscriptions()
		c.log.Error("join failed", "error", err)
		return fmt.Errorf("join %s: %w", c.code, err)
	}

	// Leave may have run while connecting
	if !c.status.CompareAndSwap(int32(Connecting), int32(Active)) {
		c.cancelSubscriptions()
		return ErrNotActive
	}
	c.log.Info("joined", "player", c.name)
	c.do(func() { c.publishView() })
	return nil
}

func (c *Coordinator) join(ctx context.Context) error {
	stateCh, err := c.transport.Connect(ctx, c.code.StateChannel())
	if err != nil {
		return err
	}
	chatCh, err := c.transport.Connect(ctx, c.code.ChatChannel())
	if err != nil {
		return err
	}
	// the loop reads these only after Active, which happens-after this
	c.stateCh, c.chatCh = stateCh, chatCh

	stateSub, err := stateCh.Subscribe(ctx, c.onStateEvent, c.onTransportError(stateCh.Name()))
	if err != nil {
		return err
	}
	c.addSubscription(stateSub)

	chatSub, err := chatCh.Subscribe(ctx, c.onChatEvent, c.onTransportError(chatCh.Name()))
	if err != nil {
		return err
	}
	c.addSubscription(chatSub)
	return nil
}

// Leave cancels both subscriptions and stops the coordinator. Publishes
// still queued are dropped and one in flight is not awaited.
func (c *Coordinator) Leave() {
	c.closeOnce.Do(func() {
		c.status.Store(int32(Closed))
		c.cancelSubscriptions()
		close(c.done)
		<-c.loopDone
		c.publishView()
		c.log.Info("left")
	})
}

func (c *Coordinator) addSubscription(s transport.Subscription) {
	c.subsMu.Lock()
	c.subs = append(c.subs, s)
	c.subsMu.Unlock()
}

func (c *Coordinator) cancelSubscriptions() {
	c.subsMu.Lock()
	subs := c.subs
	c.subs = nil
	c.subsMu.Unlock()
	for _, s := range subs {
		s.Cancel()
	}
}

func (c *Coordinator) loop() {
	defer close(c.loopDone)
	for {
		select {
		case fn := <-c.inbox:
			fn()
		case <-c.done:
			return
		}
	}
}

// post queues fn on the loop. It reports false once the coordinator is
// closed.
func (c *Coordinator) post(fn func()) bool {
	select {
	case c.inbox <- fn:
		return true
	case <-c.done:
		return false
	}
}

// do runs fn on the loop and waits for it.
func (c *Coordinator) do(fn func()) bool {
	ran := make(chan struct{})
	if !c.post(func() { fn(); close(ran) }) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-c.done:
		return false
	}
}

func (c *Coordinator) publisher() {
	for {
		select {
		case out := <-c.outbox:
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			err := out.ch.Publish(ctx, out.payload)
			cancel()
			if err != nil {
				c.log.Warn("publish failed", "channel", out.ch.Name(), "error", err)
			}
		case <-c.done:
			return
		}
	}
}

// enqueue hands a payload to the publisher. Publishing is fire-and-forget:
// a full outbox drops the event.
func (c *Coordinator) enqueue(ch transport.Channel, payload any) {
	select {
	case c.outbox <- outgoing{ch: ch, payload: payload}:
	default:
		c.log.Warn("outbox full, dropping publish", "channel", ch.Name())
	}
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"connect4_events/internal/domain"
	"connect4_events/internal/game"
	"connect4_events/internal/transport"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const code = domain.GameCode("ABC123")

// fakeTransport records publishes and lets a test hand events to
// subscribers in whatever order it likes.
type fakeTransport struct {
	mu            sync.Mutex
	channels      map[string]*fakeChannel
	failSubscribe string
}

func newFake() *fakeTransport {
	return &fakeTransport{channels: make(map[string]*fakeChannel)}
}

func (f *fakeTransport) Connect(ctx context.Context, name string) (transport.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[name]
	if !ok {
		ch = &fakeChannel{f: f, name: name}
		f.channels[name] = ch
	}
	return ch, nil
}

func (f *fakeTransport) channel(name string) *fakeChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels[name]
}

// deliver calls every live handler of name synchronously.
func (f *fakeTransport) deliver(name string, raw string) {
	ch := f.channel(name)
	if ch == nil {
		return
	}
	f.mu.Lock()
	subs := append([]*fakeSub(nil), ch.subs...)
	f.mu.Unlock()
	for _, s := range subs {
		if !s.isCanceled() {
			s.onEvent(json.RawMessage(raw))
		}
	}
}

func (f *fakeTransport) published(name string) []json.RawMessage {
	ch := f.channel(name)
	if ch == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]json.RawMessage(nil), ch.published...)
}

type fakeChannel struct {
	f         *fakeTransport
	name      string
	subs      []*fakeSub
	published []json.RawMessage
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Subscribe(ctx context.Context, onEvent transport.Handler, onError transport.ErrorHandler) (transport.Subscription, error) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	if c.f.failSubscribe == c.name {
		return nil, errors.New("subscribe refused")
	}
	s := &fakeSub{onEvent: onEvent}
	c.subs = append(c.subs, s)
	return s, nil
}

func (c *fakeChannel) Publish(ctx context.Context, payload any) error {
	raw, err := transport.Encode(payload)
	if err != nil {
		return err
	}
	c.f.mu.Lock()
	c.published = append(c.published, raw)
	c.f.mu.Unlock()
	return nil
}

type fakeSub struct {
	onEvent  transport.Handler
	mu       sync.Mutex
	canceled bool
}

func (s *fakeSub) Cancel() {
	s.mu.Lock()
	s.canceled = true
	s.mu.Unlock()
}

func (s *fakeSub) isCanceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled
}

func newCoordinator(t *testing.T, tr transport.Transport, name string, role domain.Role, opts ...Option) *Coordinator {
	t.Helper()
	c, err := New(Config{Code: code, PlayerName: name, Role: role, Transport: tr}, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Leave)
	return c
}

func joined(t *testing.T, tr transport.Transport, name string, role domain.Role, opts ...Option) *Coordinator {
	t.Helper()
	c := newCoordinator(t, tr, name, role, opts...)
	require.NoError(t, c.Join(context.Background()))
	return c
}

// flush waits until everything queued on the loop so far has run.
func flush(c *Coordinator) {
	c.do(func() {})
}

func waitPublished(t *testing.T, f *fakeTransport, name string, n int) []json.RawMessage {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.published(name)) == n }, 2*time.Second, 5*time.Millisecond)
	return f.published(name)
}

func stateJSON(t *testing.T, s game.State) string {
	t.Helper()
	raw, err := json.Marshal(game.NewStateEvent(s))
	require.NoError(t, err)
	return string(raw)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Code: "no", Role: domain.Creator, Transport: newFake()})
	assert.ErrorIs(t, err, ErrConfig)
	_, err = New(Config{Code: code, Role: 0, Transport: newFake()})
	assert.ErrorIs(t, err, ErrConfig)
	_, err = New(Config{Code: code, Role: domain.Joiner})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestInitialView(t *testing.T) {
	creator := newCoordinator(t, newFake(), "Alice", domain.Creator)
	v := creator.Snapshot()
	assert.Equal(t, Idle, v.Status)
	assert.Equal(t, "Alice", v.State.Player1Name)
	assert.Equal(t, domain.WaitingName, v.State.Player2Name)
	assert.Equal(t, "red", v.Color)
	assert.True(t, v.IsPlayerTurn)

	joiner := newCoordinator(t, newFake(), "", domain.Joiner)
	v = joiner.Snapshot()
	assert.Equal(t, domain.WaitingName, v.State.Player1Name)
	assert.Equal(t, domain.DefaultPlayerName, v.State.Player2Name)
	assert.Equal(t, "yellow", v.Color)
	assert.False(t, v.IsPlayerTurn)
	assert.Equal(t, "Current Player: "+domain.WaitingName, v.Headline())
}

func TestJoinSubscribesBothChannels(t *testing.T) {
	f := newFake()
	c := joined(t, f, "Alice", domain.Creator)

	assert.Equal(t, Active, c.Status())
	assert.Equal(t, Active, c.Snapshot().Status)
	require.NotNil(t, f.channel("/game/ABC123"))
	require.NotNil(t, f.channel("/game/ABC123/chat"))
	assert.Len(t, f.channel("/game/ABC123").subs, 1)
	assert.Len(t, f.channel("/game/ABC123/chat").subs, 1)

	assert.ErrorIs(t, c.Join(context.Background()), ErrNotIdle)
}

func TestLocalInputIgnoredBeforeJoin(t *testing.T) {
	f := newFake()
	c := newCoordinator(t, f, "Alice", domain.Creator)

	assert.False(t, c.Play(3))
	assert.False(t, c.Reset())
	assert.False(t, c.SendChat("hello"))
	assert.Equal(t, game.NewBoard(), c.Snapshot().State.Board)
}

func TestJoinFailureStaysConnecting(t *testing.T) {
	f := newFake()
	f.failSubscribe = "/game/ABC123/chat"
	c := newCoordinator(t, f, "Alice", domain.Creator)

	err := c.Join(context.Background())
	require.Error(t, err)
	assert.Equal(t, Connecting, c.Status())
	assert.Equal(t, Connecting, c.Snapshot().Status)

	// the state subscription opened before the failure is released
	subs := f.channel("/game/ABC123").subs
	require.Len(t, subs, 1)
	assert.True(t, subs[0].isCanceled())

	assert.False(t, c.Play(0))
	assert.ErrorIs(t, c.Join(context.Background()), ErrNotIdle)
}

func TestTurnOwnership(t *testing.T) {
	f := newFake()
	joiner := joined(t, f, "Bob", domain.Joiner)
	assert.False(t, joiner.Play(0), "joiner cannot open the game")

	creator := joined(t, newFake(), "Alice", domain.Creator)
	assert.True(t, creator.Play(3))
	assert.False(t, creator.Play(4), "second move in a row")

	v := creator.Snapshot()
	assert.Equal(t, game.PlayerOne, v.State.Board[5][3])
	assert.Equal(t, game.PlayerTwo, v.State.CurrentPlayer)
	assert.False(t, v.IsPlayerTurn)

	assert.Empty(t, f.published("/game/ABC123"))
}

func TestAcceptedMovePublishesStateSubset(t *testing.T) {
	f := newFake()
	c := joined(t, f, "Alice", domain.Creator)
	require.True(t, c.Play(3))

	got := waitPublished(t, f, "/game/ABC123", 1)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(got[0], &fields))
	assert.Len(t, fields, 4)
	assert.JSONEq(t, "2", string(fields["currentPlayer"]))
	assert.JSONEq(t, "null", string(fields["winner"]))
	assert.JSONEq(t, "false", string(fields["gameOver"]))

	var board [game.Rows][game.Cols]int
	require.NoError(t, json.Unmarshal(fields["board"], &board))
	assert.Equal(t, 1, board[5][3])
}

func TestRejectedMovesPublishNothing(t *testing.T) {
	f := newFake()
	c := joined(t, f, "Alice", domain.Creator)

	s := game.NewState("Alice", "Bob")
	for i := 0; i < game.Rows; i++ {
		s.Board[i][0] = game.Player(i%2 + 1)
	}
	f.deliver("/game/ABC123", stateJSON(t, s))
	flush(c)
	require.Equal(t, s.Board, c.Snapshot().State.Board)

	assert.False(t, c.Play(0), "full column")
	assert.False(t, c.Play(-1))
	assert.False(t, c.Play(game.Cols))

	won := s
	won.Winner, won.GameOver = game.PlayerTwo, true
	f.deliver("/game/ABC123", stateJSON(t, won))
	flush(c)
	assert.False(t, c.Play(3), "game over")

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, f.published("/game/ABC123"))
}

func TestRemoteStateOverwritesLocal(t *testing.T) {
	f := newFake()
	c := joined(t, f, "Alice", domain.Creator)
	require.True(t, c.Play(0))

	remote := game.NewState("x", "y")
	remote.Board[5][6] = game.PlayerTwo
	remote.CurrentPlayer = game.PlayerOne
	ev := stateJSON(t, remote)

	f.deliver("/game/ABC123", ev)
	flush(c)
	once := c.Snapshot().State

	f.deliver("/game/ABC123", ev)
	flush(c)
	twice := c.Snapshot().State

	assert.Equal(t, once, twice, "merge is idempotent")
	assert.Equal(t, remote.Board, once.Board)
	assert.Equal(t, game.PlayerOne, once.CurrentPlayer)
	assert.Equal(t, "Alice", once.Player1Name, "names are not part of the state event")
	assert.True(t, c.Snapshot().IsPlayerTurn)
}

func TestPartialRemoteState(t *testing.T) {
	f := newFake()
	c := joined(t, f, "Alice", domain.Creator)
	require.True(t, c.Play(2))

	f.deliver("/game/ABC123", `{"currentPlayer":1,"player2Name":"Bob"}`)
	flush(c)

	s := c.Snapshot().State
	assert.Equal(t, game.PlayerOne, s.Board[5][2], "board untouched")
	assert.Equal(t, game.PlayerOne, s.CurrentPlayer)
	assert.Equal(t, "Bob", s.Player2Name)
}

func TestMalformedStateEventsRejected(t *testing.T) {
	f := newFake()
	c := joined(t, f, "Alice", domain.Creator)
	before := c.Snapshot().State
	rejected := testutil.ToFloat64(eventsRejected.WithLabelValues(kindState))

	for _, raw := range []string{
		`[1,2,3]`,
		`"board"`,
		`{"board":"x"}`,
		`{"board":[[0,0,0,0,0,0,0]]}`,
		`{"currentPlayer":3}`,
		`{"winner":1,"gameOver":false}`,
	} {
		f.deliver("/game/ABC123", raw)
	}
	flush(c)

	assert.Equal(t, before, c.Snapshot().State)
	assert.Equal(t, rejected+6, testutil.ToFloat64(eventsRejected.WithLabelValues(kindState)))
}

func TestChatEchoSuppression(t *testing.T) {
	f := newFake()
	c := joined(t, f, "Alice", domain.Creator)

	assert.False(t, c.SendChat(""))
	require.True(t, c.SendChat("hi"))
	got := waitPublished(t, f, "/game/ABC123/chat", 1)
	assert.JSONEq(t, `{"message":"hi","player":"Alice"}`, string(got[0]))

	// our own message coming back is not appended twice
	f.deliver("/game/ABC123/chat", string(got[0]))
	f.deliver("/game/ABC123/chat", `{"message":"hey","player":"Bob"}`)
	f.deliver("/game/ABC123/chat", `{"message":"no sender"}`)
	flush(c)

	assert.Equal(t, []domain.ChatMessage{
		{Message: "hi", Player: "Alice"},
		{Message: "hey", Player: "Bob"},
	}, c.Snapshot().Chat)
}

func TestResetPublishesAndKeepsNames(t *testing.T) {
	f := newFake()
	c := joined(t, f, "Alice", domain.Creator)
	c.SetPlayerName(game.PlayerTwo, "Bob")
	require.True(t, c.Play(1))
	waitPublished(t, f, "/game/ABC123", 1)

	require.True(t, c.Reset())
	got := waitPublished(t, f, "/game/ABC123", 2)

	remote, err := game.DecodeStateEvent(got[1])
	require.NoError(t, err)
	assert.Equal(t, game.NewBoard(), *remote.Patch.Board)
	assert.Equal(t, game.PlayerOne, *remote.Patch.CurrentPlayer)

	want := game.NewState("Alice", "Bob")
	assert.Equal(t, want, c.Snapshot().State)
}

func TestJoinerMayReset(t *testing.T) {
	f := newFake()
	c := joined(t, f, "Bob", domain.Joiner)
	assert.True(t, c.Reset())
	waitPublished(t, f, "/game/ABC123", 1)
}

func TestLeaveCancelsSubscriptions(t *testing.T) {
	f := newFake()
	c := joined(t, f, "Alice", domain.Creator)
	c.Leave()

	assert.Equal(t, Closed, c.Status())
	assert.Equal(t, Closed, c.Snapshot().Status)
	for _, name := range []string{"/game/ABC123", "/game/ABC123/chat"} {
		for _, s := range f.channel(name).subs {
			assert.True(t, s.isCanceled(), name)
		}
	}
	assert.False(t, c.Play(0))
	assert.False(t, c.SendChat("bye"))
	c.Leave()
}

func TestDrawDetectionOption(t *testing.T) {
	// fills the board without four in a row; the last move is player two's
	cols := []int{
		0, 1, 0, 1, 0, 1,
		1, 0, 1, 0, 1, 0,
		2, 3, 2, 3, 2, 3,
		3, 2, 3, 2, 3, 2,
		4, 5, 4, 5, 4, 5,
		5, 4, 5, 4, 5, 4,
		6, 6, 6, 6, 6,
	}
	s := game.NewState("Alice", "Bob")
	for _, col := range cols {
		s = game.Reduce(s, game.PlacePiece{Column: col})
	}
	require.Equal(t, game.PlayerTwo, s.CurrentPlayer)

	for _, tc := range []struct {
		name string
		opts []Option
		over bool
	}{
		{"default", nil, false},
		{"detect", []Option{WithDrawDetection()}, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFake()
			c := joined(t, f, "Bob", domain.Joiner, tc.opts...)
			f.deliver("/game/ABC123", stateJSON(t, s))
			flush(c)

			require.True(t, c.Play(6))
			v := c.Snapshot()
			assert.True(t, v.State.Board.Full())
			assert.Equal(t, tc.over, v.State.GameOver)
			assert.Equal(t, game.None, v.State.Winner)
			if tc.over {
				assert.Equal(t, "Draw", v.Headline())
			}
		})
	}
}

// Both players act on the same pre-state before seeing each other's
// publish. Each client ends with whatever its transport delivered last.
func TestRacingPublishesLastDeliveredWins(t *testing.T) {
	fa, fb := newFake(), newFake()
	alice := joined(t, fa, "Alice", domain.Creator)
	bob := joined(t, fb, "Bob", domain.Joiner)

	require.True(t, alice.Play(0))
	opening := waitPublished(t, fa, "/game/ABC123", 1)[0]
	fb.deliver("/game/ABC123", string(opening))
	flush(bob)
	require.Equal(t, alice.Snapshot().State.Board, bob.Snapshot().State.Board)

	require.True(t, bob.Play(1))
	require.True(t, alice.Reset())
	fromBob := waitPublished(t, fb, "/game/ABC123", 1)[0]
	fromAlice := waitPublished(t, fa, "/game/ABC123", 2)[1]

	// alice sees her own reset last, bob sees his own move last
	fa.deliver("/game/ABC123", string(fromBob))
	fa.deliver("/game/ABC123", string(fromAlice))
	fb.deliver("/game/ABC123", string(fromAlice))
	fb.deliver("/game/ABC123", string(fromBob))
	flush(alice)
	flush(bob)

	a, b := alice.Snapshot().State, bob.Snapshot().State
	assert.Equal(t, game.NewBoard(), a.Board)
	assert.Equal(t, game.PlayerTwo, b.Board[5][1])
	assert.Equal(t, game.PlayerOne, b.Board[5][0])
	assert.NotEqual(t, a.Board, b.Board, "clients diverge")
}

func TestSequencedMergeConverges(t *testing.T) {
	fa, fb := newFake(), newFake()
	alice := joined(t, fa, "Alice", domain.Creator, WithSequencedMerge())
	bob := joined(t, fb, "Bob", domain.Joiner, WithSequencedMerge())

	require.True(t, alice.Play(0))
	opening := waitPublished(t, fa, "/game/ABC123", 1)[0]
	var stamped struct {
		Seq    uint64 `json:"seq"`
		Origin int    `json:"origin"`
	}
	require.NoError(t, json.Unmarshal(opening, &stamped))
	assert.Equal(t, uint64(1), stamped.Seq)
	assert.Equal(t, 1, stamped.Origin)

	fb.deliver("/game/ABC123", string(opening))
	fb.deliver("/game/ABC123", string(opening))
	flush(bob)

	require.True(t, bob.Play(1))
	require.True(t, alice.Reset())
	fromBob := waitPublished(t, fb, "/game/ABC123", 1)[0]
	fromAlice := waitPublished(t, fa, "/game/ABC123", 2)[1]

	// same delivery orders as the last-write-wins race
	fa.deliver("/game/ABC123", string(fromBob))
	fa.deliver("/game/ABC123", string(fromAlice))
	fb.deliver("/game/ABC123", string(fromAlice))
	fb.deliver("/game/ABC123", string(fromBob))
	flush(alice)
	flush(bob)

	a, b := alice.Snapshot().State, bob.Snapshot().State
	assert.Equal(t, a.Board, b.Board)
	assert.Equal(t, a.CurrentPlayer, b.CurrentPlayer)
	// equal sequence numbers resolve in favour of player two
	assert.Equal(t, game.PlayerTwo, a.Board[5][1])
}

func TestSequencedMergeIgnoresUnstampedEvents(t *testing.T) {
	f := newFake()
	c := joined(t, f, "Alice", domain.Creator, WithSequencedMerge())

	remote := game.NewState("", "")
	remote.CurrentPlayer = game.PlayerTwo
	f.deliver("/game/ABC123", stateJSON(t, remote))
	flush(c)
	assert.Equal(t, game.PlayerOne, c.Snapshot().State.CurrentPlayer)
}

// Every event arrives twice, including each player's own publishes.
// Sequenced merging keeps late echoes from rolling the board back.
func TestFullGameOverDuplicatingBus(t *testing.T) {
	bus := transport.NewBus(transport.WithDuplicates(2))
	defer bus.Close()

	alice := joined(t, bus, "Alice", domain.Creator, WithSequencedMerge())
	bob := joined(t, bus, "Bob", domain.Joiner, WithSequencedMerge())

	waitTurn := func(c *Coordinator) {
		t.Helper()
		require.Eventually(t, func() bool { return c.Snapshot().IsPlayerTurn }, 2*time.Second, 5*time.Millisecond)
	}

	// alice stacks column 0, bob column 1
	for i := 0; i < 3; i++ {
		waitTurn(alice)
		require.True(t, alice.Play(0))
		waitTurn(bob)
		require.True(t, bob.Play(1))
	}
	waitTurn(alice)
	require.True(t, alice.Play(0))

	require.Eventually(t, func() bool { return bob.Snapshot().State.GameOver }, 2*time.Second, 5*time.Millisecond)
	for _, c := range []*Coordinator{alice, bob} {
		v := c.Snapshot()
		assert.Equal(t, game.PlayerOne, v.State.Winner)
		assert.Equal(t, game.PlayerTwo, v.State.CurrentPlayer, "turn advances on the winning move")
	}
	assert.Equal(t, "Alice wins!", alice.Snapshot().Headline())
	assert.False(t, bob.Play(2))

	require.True(t, bob.SendChat("gg"))
	require.Eventually(t, func() bool { return len(alice.Snapshot().Chat) > 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.ChatMessage{Message: "gg", Player: "Bob"}, alice.Snapshot().Chat[0])
	assert.Len(t, bob.Snapshot().Chat, 1, "own echoes are dropped")
}

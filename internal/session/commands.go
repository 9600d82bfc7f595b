package session

import (
	"connect4_events/internal/domain"
	"connect4_events/internal/game"
)

// Play drops the local player's piece in col. It reports whether the move
// was accepted; a move out of turn, after the game ended, into a full
// column or before Join is ignored and nothing is published.
func (c *Coordinator) Play(col int) bool {
	accepted := false
	c.do(func() {
		if c.Status() != Active || c.state.GameOver || !c.isPlayerTurn() {
			return
		}
		next := c.reducer.Reduce(c.state, game.PlacePiece{Column: col})
		if next == c.state {
			return
		}
		c.state = next
		c.publishState()
		c.publishView()
		accepted = true
	})
	return accepted
}

// Reset starts a new game for both players. Either player may reset.
func (c *Coordinator) Reset() bool {
	accepted := false
	c.do(func() {
		if c.Status() != Active {
			return
		}
		c.state = c.reducer.Reduce(c.state, game.ResetGame{})
		c.publishState()
		c.publishView()
		accepted = true
	})
	return accepted
}

// SendChat appends text to the local transcript and publishes it. Empty
// text is ignored.
func (c *Coordinator) SendChat(text string) bool {
	if text == "" {
		return false
	}
	accepted := false
	c.do(func() {
		if c.Status() != Active {
			return
		}
		msg := domain.ChatMessage{Message: text, Player: c.name}
		c.chat = append(c.chat, msg)
		c.enqueue(c.chatCh, msg)
		c.publishView()
		accepted = true
	})
	return accepted
}

// SetPlayerName changes the display name shown for seat p. It is local
// only; names are not part of the published state.
func (c *Coordinator) SetPlayerName(p game.Player, name string) {
	c.do(func() {
		c.state = c.reducer.Reduce(c.state, game.SetPlayerName{Player: p, Name: name})
		c.publishView()
	})
}

func (c *Coordinator) isPlayerTurn() bool {
	return c.role.Player() == c.state.CurrentPlayer
}

// publishState queues the synchronized subset of the current state.
func (c *Coordinator) publishState() {
	ev := game.NewStateEvent(c.state)
	if c.sequenced {
		c.version = c.version.next(c.role.Player())
		ev.Seq, ev.Origin = c.version.seq, c.version.origin
	}
	c.enqueue(c.stateCh, ev)
}

package session

import (
	"connect4_events/internal/domain"
	"connect4_events/internal/game"
)

// View is an immutable snapshot of the session for rendering.
type View struct {
	Code         domain.GameCode
	Status       Status
	Role         domain.Role
	PlayerName   string
	Color        string
	State        game.State
	IsPlayerTurn bool
	Chat         []domain.ChatMessage
}

// Headline is the status line under the board: whose turn it is while the
// game runs, the winner once it is won, "Draw" for a drawn game.
func (v View) Headline() string {
	s := v.State
	switch {
	case s.Winner.Seat():
		return s.Name(s.Winner) + " wins!"
	case s.GameOver:
		return "Draw"
	case v.IsPlayerTurn:
		return "Current Player: " + s.Name(s.CurrentPlayer) + " (Your turn)"
	default:
		return "Current Player: " + s.Name(s.CurrentPlayer)
	}
}

// Snapshot returns the latest view. It never blocks.
func (c *Coordinator) Snapshot() View {
	return *c.view.Load()
}

// Changes is signalled after the view changes. Signals coalesce, so a
// reader should call Snapshot after each receive.
func (c *Coordinator) Changes() <-chan struct{} {
	return c.changes
}

// publishView must run on the loop, or when the loop is not running.
func (c *Coordinator) publishView() {
	chat := make([]domain.ChatMessage, len(c.chat))
	copy(chat, c.chat)
	c.view.Store(&View{
		Code:         c.code,
		Status:       c.Status(),
		Role:         c.role,
		PlayerName:   c.name,
		Color:        c.role.Color(),
		State:        c.state,
		IsPlayerTurn: c.isPlayerTurn(),
		Chat:         chat,
	})
	c.notify()
}

func (c *Coordinator) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

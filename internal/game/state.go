package game

// State is the per-client view of a session. It is comparable, so callers
// can detect a rejected command with next == prev.
type State struct {
	Board         Board
	CurrentPlayer Player
	Winner        Player
	GameOver      bool
	Player1Name   string
	Player2Name   string
}

func NewState(player1Name, player2Name string) State {
	return State{
		Board:         NewBoard(),
		CurrentPlayer: PlayerOne,
		Winner:        None,
		Player1Name:   player1Name,
		Player2Name:   player2Name,
	}
}

// Name returns the display name seated at p.
func (s State) Name(p Player) string {
	switch p {
	case PlayerOne:
		return s.Player1Name
	case PlayerTwo:
		return s.Player2Name
	default:
		return ""
	}
}

// Command is a reducer input. The set is closed to this package's types;
// anything else leaves the state unchanged.
type Command interface {
	command()
}

type PlacePiece struct {
	Column int
}

type ResetGame struct{}

type SetPlayerName struct {
	Player Player
	Name   string
}

type MergeRemoteState struct {
	Patch StatePatch
}

func (PlacePiece) command()       {}
func (ResetGame) command()        {}
func (SetPlayerName) command()    {}
func (MergeRemoteState) command() {}

// Reducer is a pure transition function over State. The zero value
// reproduces the original rules, where a full board without a winner does
// not end the game.
type Reducer struct {
	DetectDraw bool
}

// Reduce applies cmd with the default rules.
func Reduce(s State, cmd Command) State {
	return Reducer{}.Reduce(s, cmd)
}

func (r Reducer) Reduce(s State, cmd Command) State {
	switch c := cmd.(type) {
	case PlacePiece:
		return r.placePiece(s, c.Column)
	case ResetGame:
		return resetGame(s)
	case SetPlayerName:
		return setPlayerName(s, c.Player, c.Name)
	case MergeRemoteState:
		return c.Patch.Apply(s)
	default:
		return s
	}
}

func (r Reducer) placePiece(s State, col int) State {
	if s.GameOver {
		return s
	}
	board, row, err := DropPiece(s.Board, col, s.CurrentPlayer)
	if err != nil {
		return s
	}

	mover := s.CurrentPlayer
	s.Board = board
	s.CurrentPlayer = mover.Other()
	if CheckWin(board, row, col, mover) {
		s.Winner = mover
		s.GameOver = true
	} else {
		s.Winner = None
		if r.DetectDraw && board.Full() {
			s.GameOver = true
		}
	}
	return s
}

func resetGame(s State) State {
	s.Board = NewBoard()
	s.CurrentPlayer = PlayerOne
	s.Winner = None
	s.GameOver = false
	return s
}

func setPlayerName(s State, p Player, name string) State {
	switch p {
	case PlayerOne:
		s.Player1Name = name
	case PlayerTwo:
		s.Player2Name = name
	}
	return s
}

// StatePatch is a partial State. Nil fields are left alone; a Winner
// pointing at None clears the winner.
type StatePatch struct {
	Board         *Board
	CurrentPlayer *Player
	Winner        *Player
	GameOver      *bool
	Player1Name   *string
	Player2Name   *string
}

// Apply overwrites every present field. There is no ordering or legality
// check: the last patch applied wins.
func (p StatePatch) Apply(s State) State {
	if p.Board != nil {
		s.Board = *p.Board
	}
	if p.CurrentPlayer != nil {
		s.CurrentPlayer = *p.CurrentPlayer
	}
	if p.Winner != nil {
		s.Winner = *p.Winner
	}
	if p.GameOver != nil {
		s.GameOver = *p.GameOver
	}
	if p.Player1Name != nil {
		s.Player1Name = *p.Player1Name
	}
	if p.Player2Name != nil {
		s.Player2Name = *p.Player2Name
	}
	return s
}

// PatchOf returns a patch carrying the full synchronized subset of s:
// board, current player, winner and game-over flag.
func PatchOf(s State) StatePatch {
	board := s.Board
	current := s.CurrentPlayer
	winner := s.Winner
	over := s.GameOver
	return StatePatch{
		Board:         &board,
		CurrentPlayer: &current,
		Winner:        &winner,
		GameOver:      &over,
	}
}

package game

import "errors"

// Player is both a cell value and a seat. None doubles as the empty cell.
type Player int

const (
	None      Player = 0
	PlayerOne Player = 1
	PlayerTwo Player = 2
)

const (
	Rows      = 6
	Cols      = 7
	WinLength = 4
)

var (
	ErrColumnOutOfRange = errors.New("column out of range")
	ErrColumnFull       = errors.New("column is full")
	ErrMalformedEvent   = errors.New("malformed state event")
)

// Other returns the opposing seat. None stays None.
func (p Player) Other() Player {
	switch p {
	case PlayerOne:
		return PlayerTwo
	case PlayerTwo:
		return PlayerOne
	default:
		return None
	}
}

// Seat reports whether p is one of the two playing seats.
func (p Player) Seat() bool {
	return p == PlayerOne || p == PlayerTwo
}

func (p Player) String() string {
	switch p {
	case PlayerOne:
		return "player_one"
	case PlayerTwo:
		return "player_two"
	default:
		return "none"
	}
}

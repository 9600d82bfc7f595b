package domain

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"connect4_events/internal/game"
)

const (
	codeAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	CodeMinLength = 6
	CodeMaxLength = 8

	// Namespace is the channel prefix every session lives under.
	Namespace = "/game"
)

var ErrInvalidCode = errors.New("invalid game code")

// GameCode names a session's channels. Codes are not checked against any
// registry, so two sessions may collide.
type GameCode string

// NewGameCode draws a code of random length in [CodeMinLength, CodeMaxLength].
func NewGameCode() (GameCode, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(CodeMaxLength-CodeMinLength+1))
	if err != nil {
		return "", err
	}
	length := CodeMinLength + int(n.Int64())

	var sb strings.Builder
	sb.Grow(length)
	alphabetSize := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < length; i++ {
		idx, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		sb.WriteByte(codeAlphabet[idx.Int64()])
	}
	return GameCode(sb.String()), nil
}

// ParseGameCode upper-cases and validates user input.
func ParseGameCode(s string) (GameCode, error) {
	code := GameCode(strings.ToUpper(strings.TrimSpace(s)))
	if err := code.Validate(); err != nil {
		return "", err
	}
	return code, nil
}

func (c GameCode) Validate() error {
	if len(c) < CodeMinLength || len(c) > CodeMaxLength {
		return fmt.Errorf("%w: length %d", ErrInvalidCode, len(c))
	}
	for _, r := range string(c) {
		if !strings.ContainsRune(codeAlphabet, r) {
			return fmt.Errorf("%w: character %q", ErrInvalidCode, r)
		}
	}
	return nil
}

// StateChannel is the channel carrying board state events.
func (c GameCode) StateChannel() string {
	return Namespace + "/" + string(c)
}

// ChatChannel is the channel carrying chat messages.
func (c GameCode) ChatChannel() string {
	return c.StateChannel() + "/chat"
}

// Role is fixed at join time and never renegotiated.
type Role int

const (
	Creator Role = iota + 1
	Joiner
)

// RoleFor maps the creator flag of a join link to a role.
func RoleFor(creator bool) Role {
	if creator {
		return Creator
	}
	return Joiner
}

// Player returns the seat the role plays.
func (r Role) Player() game.Player {
	switch r {
	case Creator:
		return game.PlayerOne
	case Joiner:
		return game.PlayerTwo
	default:
		return game.None
	}
}

// Color is the piece color shown to the role.
func (r Role) Color() string {
	if r == Creator {
		return "red"
	}
	return "yellow"
}

func (r Role) Valid() bool {
	return r == Creator || r == Joiner
}

func (r Role) String() string {
	switch r {
	case Creator:
		return "creator"
	case Joiner:
		return "joiner"
	default:
		return "unknown"
	}
}

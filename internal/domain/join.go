package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	DefaultPlayerName = "Player 1"
	WaitingName       = "Waiting for player..."
)

// JoinParams are carried by a create/join link:
// /game/{code}?player=<name>&creator=true|false
type JoinParams struct {
	Code    GameCode
	Player  string
	Creator bool
}

func (p JoinParams) Role() Role {
	return RoleFor(p.Creator)
}

// Path renders the link path and query relative to the site root. An
// empty Player is left out so the joining client picks its own name.
func (p JoinParams) Path() string {
	q := url.Values{}
	if p.Player != "" {
		q.Set("player", p.Player)
	}
	q.Set("creator", fmt.Sprintf("%t", p.Creator))
	return p.Code.StateChannel() + "?" + q.Encode()
}

// ParseJoinURL reads join parameters from a link. Only the path and query
// are used, so absolute and relative links both work.
func ParseJoinURL(raw string) (JoinParams, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return JoinParams{}, err
	}

	rest, ok := strings.CutPrefix(u.Path, Namespace+"/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return JoinParams{}, errors.New("join link must look like /game/{code}")
	}
	code, err := ParseGameCode(rest)
	if err != nil {
		return JoinParams{}, err
	}

	q := u.Query()
	player := strings.TrimSpace(q.Get("player"))
	if player == "" {
		player = DefaultPlayerName
	}

	return JoinParams{
		Code:    code,
		Player:  player,
		Creator: q.Get("creator") == "true",
	}, nil
}

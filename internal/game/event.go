package game

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StateEvent is the payload published on /game/{code} after every accepted
// local command. Seq and Origin are only set under sequenced merging.
type StateEvent struct {
	Board         Board   `json:"board"`
	CurrentPlayer Player  `json:"currentPlayer"`
	Winner        *Player `json:"winner"`
	GameOver      bool    `json:"gameOver"`
	Seq           uint64  `json:"seq,omitempty"`
	Origin        Player  `json:"origin,omitempty"`
}

func NewStateEvent(s State) StateEvent {
	ev := StateEvent{
		Board:         s.Board,
		CurrentPlayer: s.CurrentPlayer,
		GameOver:      s.GameOver,
	}
	if s.Winner.Seat() {
		w := s.Winner
		ev.Winner = &w
	}
	return ev
}

// RemoteState is a decoded inbound state event.
type RemoteState struct {
	Patch  StatePatch
	Seq    uint64
	Origin Player
}

var jsonNull = []byte("null")

// DecodeStateEvent validates an inbound payload field by field. Any field
// may be absent (partial merge), but a present field must be well formed.
// Unknown fields are ignored.
func DecodeStateEvent(raw []byte) (RemoteState, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return RemoteState{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if fields == nil {
		return RemoteState{}, fmt.Errorf("%w: not an object", ErrMalformedEvent)
	}

	var out RemoteState
	if v, ok := fields["board"]; ok {
		var b Board
		if err := json.Unmarshal(v, &b); err != nil {
			return RemoteState{}, fmt.Errorf("%w: board: %v", ErrMalformedEvent, err)
		}
		if err := b.Validate(); err != nil {
			return RemoteState{}, fmt.Errorf("%w: board: %v", ErrMalformedEvent, err)
		}
		out.Patch.Board = &b
	}
	if v, ok := fields["currentPlayer"]; ok {
		p, err := decodeSeat(v)
		if err != nil {
			return RemoteState{}, fmt.Errorf("%w: currentPlayer: %v", ErrMalformedEvent, err)
		}
		out.Patch.CurrentPlayer = &p
	}
	if v, ok := fields["winner"]; ok {
		w := None
		if !bytes.Equal(bytes.TrimSpace(v), jsonNull) {
			p, err := decodeSeat(v)
			if err != nil {
				return RemoteState{}, fmt.Errorf("%w: winner: %v", ErrMalformedEvent, err)
			}
			w = p
		}
		out.Patch.Winner = &w
	}
	if v, ok := fields["gameOver"]; ok {
		var over bool
		if err := json.Unmarshal(v, &over); err != nil {
			return RemoteState{}, fmt.Errorf("%w: gameOver: %v", ErrMalformedEvent, err)
		}
		out.Patch.GameOver = &over
	}
	for key, dst := range map[string]**string{
		"player1Name": &out.Patch.Player1Name,
		"player2Name": &out.Patch.Player2Name,
	} {
		if v, ok := fields[key]; ok {
			var name string
			if err := json.Unmarshal(v, &name); err != nil {
				return RemoteState{}, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, key, err)
			}
			*dst = &name
		}
	}
	if v, ok := fields["seq"]; ok {
		if err := json.Unmarshal(v, &out.Seq); err != nil {
			return RemoteState{}, fmt.Errorf("%w: seq: %v", ErrMalformedEvent, err)
		}
	}
	if v, ok := fields["origin"]; ok {
		p, err := decodeSeat(v)
		if err != nil {
			return RemoteState{}, fmt.Errorf("%w: origin: %v", ErrMalformedEvent, err)
		}
		out.Origin = p
	}

	if w, over := out.Patch.Winner, out.Patch.GameOver; w != nil && over != nil && w.Seat() && !*over {
		return RemoteState{}, fmt.Errorf("%w: winner set on a running game", ErrMalformedEvent)
	}
	return out, nil
}

func decodeSeat(raw json.RawMessage) (Player, error) {
	var p Player
	if err := json.Unmarshal(raw, &p); err != nil {
		return None, err
	}
	if !p.Seat() {
		return None, fmt.Errorf("%d is not a player", p)
	}
	return p, nil
}

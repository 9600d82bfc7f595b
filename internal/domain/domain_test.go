package domain

import (
	"testing"

	"connect4_events/internal/game"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGameCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := NewGameCode()
		require.NoError(t, err)
		assert.NoError(t, code.Validate(), "code %q", code)
	}
}

func TestParseGameCode(t *testing.T) {
	cases := []struct {
		in      string
		want    GameCode
		wantErr bool
	}{
		{"abc123", "ABC123", false},
		{"  ZZZZZZZZ ", "ZZZZZZZZ", false},
		{"ABCDE", "", true},
		{"ABCDEFGHI", "", true},
		{"ABC-123", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := ParseGameCode(tc.in)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrInvalidCode, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestChannelNames(t *testing.T) {
	code := GameCode("ABC123")
	assert.Equal(t, "/game/ABC123", code.StateChannel())
	assert.Equal(t, "/game/ABC123/chat", code.ChatChannel())
}

func TestRoles(t *testing.T) {
	assert.Equal(t, game.PlayerOne, RoleFor(true).Player())
	assert.Equal(t, game.PlayerTwo, RoleFor(false).Player())
	assert.Equal(t, game.None, Role(0).Player())
	assert.Equal(t, "red", Creator.Color())
	assert.Equal(t, "yellow", Joiner.Color())
	assert.False(t, Role(9).Valid())
}

func TestParseJoinURL(t *testing.T) {
	p, err := ParseJoinURL("https://example.com/game/abc123?player=Ann%20Lee&creator=true")
	require.NoError(t, err)
	assert.Equal(t, JoinParams{Code: "ABC123", Player: "Ann Lee", Creator: true}, p)
	assert.Equal(t, Creator, p.Role())

	p, err = ParseJoinURL("/game/XYZ789")
	require.NoError(t, err)
	assert.Equal(t, DefaultPlayerName, p.Player)
	assert.False(t, p.Creator)

	for _, bad := range []string{"/lobby/ABC123", "/game/", "/game/ABC123/chat", "/game/AB"} {
		_, err := ParseJoinURL(bad)
		assert.Error(t, err, bad)
	}
}

func TestJoinParamsPathRoundTrip(t *testing.T) {
	in := JoinParams{Code: "QWERTY12", Player: "bob & co", Creator: false}
	out, err := ParseJoinURL(in.Path())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestJoinParamsPathOmitsEmptyPlayer(t *testing.T) {
	p := JoinParams{Code: "ABC123", Creator: false}
	assert.Equal(t, "/game/ABC123?creator=false", p.Path())

	out, err := ParseJoinURL(p.Path())
	require.NoError(t, err)
	assert.Equal(t, DefaultPlayerName, out.Player)
}

func TestDecodeChatMessage(t *testing.T) {
	msg, err := DecodeChatMessage([]byte(`{"message":"hi","player":"ann"}`))
	require.NoError(t, err)
	assert.Equal(t, ChatMessage{Message: "hi", Player: "ann"}, msg)

	for _, bad := range []string{`{"message":"hi"}`, `{"message":1,"player":"x"}`, `null`, `[]`} {
		_, err := DecodeChatMessage([]byte(bad))
		assert.ErrorIs(t, err, ErrMalformedChat, bad)
	}
}

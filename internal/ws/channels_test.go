package ws

import (
	"strings"
	"testing"
)

func TestCheckChannel(t *testing.T) {
	cases := []struct {
		name string
		want error
	}{
		{"/game/ABC123", nil},
		{"/game/ABC123/chat", nil},
		{"/game", ErrForbiddenChannel},
		{"/game/", ErrForbiddenChannel},
		{"/lobby/ABC123", ErrForbiddenChannel},
		{"/gameX/ABC123", ErrForbiddenChannel},
		{"/game//chat", ErrInvalidChannel},
		{"/game/../admin", ErrInvalidChannel},
		{"/game/AB C", ErrInvalidChannel},
		{"/game/*", ErrInvalidChannel},
		{"/game/" + strings.Repeat("A", 60), ErrInvalidChannel},
		{"", ErrInvalidChannel},
	}

	for _, tc := range cases {
		if got := checkChannel("/game", tc.name); got != tc.want {
			t.Fatalf("checkChannel(%q) = %v; want %v", tc.name, got, tc.want)
		}
	}
}

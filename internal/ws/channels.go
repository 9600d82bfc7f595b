package ws

import (
	"errors"
	"strings"
)

var (
	ErrForbiddenChannel = errors.New("channel outside granted namespace")
	ErrInvalidChannel   = errors.New("invalid channel name")
)

const maxChannelLength = 63

// checkChannel accepts names strictly below namespace, e.g. /game/ABC123
// and /game/ABC123/chat for namespace /game.
func checkChannel(namespace, name string) error {
	if name == "" || len(name) > maxChannelLength || strings.ContainsAny(name, " \t\r\n*") {
		return ErrInvalidChannel
	}
	rest, ok := strings.CutPrefix(name, strings.TrimSuffix(namespace, "/")+"/")
	if !ok || rest == "" {
		return ErrForbiddenChannel
	}
	for _, seg := range strings.Split(rest, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return ErrInvalidChannel
		}
	}
	return nil
}

package domain

import (
	"encoding/json"
	"errors"
)

var ErrMalformedChat = errors.New("malformed chat message")

// ChatMessage is the payload on /game/{code}/chat.
type ChatMessage struct {
	Message string `json:"message"`
	Player  string `json:"player"`
}

// DecodeChatMessage requires both fields to be present strings.
func DecodeChatMessage(raw []byte) (ChatMessage, error) {
	var fields struct {
		Message *string `json:"message"`
		Player  *string `json:"player"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ChatMessage{}, errors.Join(ErrMalformedChat, err)
	}
	if fields.Message == nil || fields.Player == nil {
		return ChatMessage{}, ErrMalformedChat
	}
	return ChatMessage{Message: *fields.Message, Player: *fields.Player}, nil
}

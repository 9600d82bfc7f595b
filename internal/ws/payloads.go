package ws

import "encoding/json"

// Message is the single frame shape of the relay protocol, both directions.
// ID correlates a request with its reply; on data frames it is the
// subscription id chosen by the client.
type Message struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Channel string          `json:"channel,omitempty"`
	Event   json.RawMessage `json:"event,omitempty"`
	Error   string          `json:"error,omitempty"`
}

package handlers

import (
	"context"

	"connect4_events/internal/ws"

	"github.com/gorilla/websocket"
)

// Pinger is implemented by relay backends that talk to a server.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Hub       *ws.Hub
	Upgrader  *websocket.Upgrader
	PublicURL string
}

func NewHandler(hub *ws.Hub, allowedOrigin, publicURL string) *Handler {
	return &Handler{
		Hub:       hub,
		Upgrader:  ws.NewUpgrader(allowedOrigin),
		PublicURL: publicURL,
	}
}

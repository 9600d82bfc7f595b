package handlers

import (
	"connect4_events/internal/ws"

	"github.com/gin-gonic/gin"
)

func (h *Handler) WS() gin.HandlerFunc {
	return ws.HandleWS(h.Hub, h.Upgrader)
}

package handlers

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"connect4_events/internal/domain"
	"connect4_events/internal/service"

	"github.com/gin-gonic/gin"
)

const maxPlayerName = 32

type AuthRequest struct {
	Player string `json:"player"`
}

// playerName trims the requested display name and falls back to the
// default one.
func playerName(raw string) (string, bool) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return domain.DefaultPlayerName, true
	}
	if utf8.RuneCountInString(name) > maxPlayerName {
		return "", false
	}
	return name, true
}

// Auth issues an anonymous relay token for a display name.
func (h *Handler) Auth(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	name, ok := playerName(req.Player)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "player name too long"})
		return
	}

	token, err := service.GenerateRelayToken(name, domain.Namespace)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":  token,
		"player": name,
	})
}

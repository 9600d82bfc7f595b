package handlers

import (
	"net/http"
	"strings"

	"connect4_events/internal/domain"
	"connect4_events/internal/logger"

	"github.com/gin-gonic/gin"
)

type CreateGameRequest struct {
	Player string `json:"player"`
}

type GameResponse struct {
	Code         domain.GameCode `json:"code"`
	StateChannel string          `json:"stateChannel"`
	ChatChannel  string          `json:"chatChannel"`
	CreatorLink  string          `json:"creatorLink,omitempty"`
	JoinerLink   string          `json:"joinerLink"`
}

// CreateGame draws a fresh code and returns the links for both players.
// Codes are not registered anywhere; the relay creates channels on first use.
func (h *Handler) CreateGame(c *gin.Context) {
	var req CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	name, ok := playerName(req.Player)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "player name too long"})
		return
	}

	code, err := domain.NewGameCode()
	if err != nil {
		logger.Error("game code generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create game"})
		return
	}

	resp := h.gameResponse(code)
	resp.CreatorLink = h.link(domain.JoinParams{Code: code, Player: name, Creator: true})
	logger.Info("game created", "code", string(code), "player", name)
	c.JSON(http.StatusCreated, resp)
}

// GetGame validates a code typed by a joining player.
func (h *Handler) GetGame(c *gin.Context) {
	code, err := domain.ParseGameCode(c.Param("code"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.gameResponse(code))
}

func (h *Handler) gameResponse(code domain.GameCode) GameResponse {
	return GameResponse{
		Code:         code,
		StateChannel: code.StateChannel(),
		ChatChannel:  code.ChatChannel(),
		JoinerLink:   h.link(domain.JoinParams{Code: code, Player: "", Creator: false}),
	}
}

func (h *Handler) link(p domain.JoinParams) string {
	return strings.TrimSuffix(h.PublicURL, "/") + p.Path()
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mtricolici98/bot-wuzzler/internal/service"
)

type PlayerHandler struct {
	history *service.HistoryService
}

func NewPlayerHandler(history *service.HistoryService) *PlayerHandler {
	return &PlayerHandler{
		history: history,
	}
}

// GetPlayer godoc
// @Summary Rating and win/loss record of a player
// @Tags players
// @Produce json
// @Param player path string true "Player ID"
// @Router /players/{player} [get]
func (h *PlayerHandler) GetPlayer(c *gin.Context) {
	stats, err := h.history.Stats(c.Request.Context(), c.Param("player"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"playerId":     stats.PlayerID,
		"rating":       stats.Rating,
		"wins":         stats.Wins,
		"losses":       stats.Losses,
		"totalMatches": stats.TotalMatches(),
	})
}

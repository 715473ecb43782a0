package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mtricolici98/bot-wuzzler/internal/models"
	"github.com/mtricolici98/bot-wuzzler/internal/service"
)

const defaultBoardSize = 10

type LeaderboardHandler struct {
	elo *service.ELOService
}

func NewLeaderboardHandler(elo *service.ELOService) *LeaderboardHandler {
	return &LeaderboardHandler{
		elo: elo,
	}
}

// GetLeaderboard godoc
// @Summary Highest rated players
// @Tags leaderboard
// @Produce json
// @Param limit query int false "Number of players to return" default(10)
// @Router /leaderboard [get]
func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	h.board(c, h.elo.Leaderboard)
}

// GetLoserboard godoc
// @Summary Lowest rated players
// @Tags leaderboard
// @Produce json
// @Param limit query int false "Number of players to return" default(10)
// @Router /loserboard [get]
func (h *LeaderboardHandler) GetLoserboard(c *gin.Context) {
	h.board(c, h.elo.Loserboard)
}

func (h *LeaderboardHandler) board(c *gin.Context, rank func(ctx context.Context, limit int) ([]models.PlayerStats, error)) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultBoardSize)))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}

	players, err := rank(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"players": players,
		"total":   len(players),
	})
}

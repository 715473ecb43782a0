package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mtricolici98/bot-wuzzler/internal/models"
	"github.com/mtricolici98/bot-wuzzler/internal/service"
	"github.com/mtricolici98/bot-wuzzler/internal/websocket"
)

type LobbyHandler struct {
	lobby *service.LobbyService
	announcer
}

func NewLobbyHandler(lobby *service.LobbyService, notifier websocket.Notifier) *LobbyHandler {
	return &LobbyHandler{
		lobby:     lobby,
		announcer: announcer{notifier: notifier},
	}
}

// JoinQueue godoc
// @Summary Join the matchmaking queue
// @Tags lobby
// @Accept json
// @Produce json
// @Param request body models.JoinRequest true "Player"
// @Success 200 {object} map[string]interface{} "Queued"
// @Success 201 {object} map[string]interface{} "Queued and a match was created"
// @Router /queue [post]
func (h *LobbyHandler) JoinQueue(c *gin.Context) {
	var req models.JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	match, err := h.lobby.Join(c.Request.Context(), req.Player)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if match != nil {
		status = http.StatusCreated
		h.matchCreated(c.Request.Context(), match)
	}

	c.JSON(status, gin.H{
		"player":    req.Player,
		"queueSize": h.lobby.QueueSize(),
		"match":     match,
	})
}

// LeaveQueue godoc
// @Summary Leave the queue and the active match
// @Tags lobby
// @Produce json
// @Param player path string true "Player ID"
// @Router /queue/{player} [delete]
func (h *LobbyHandler) LeaveQueue(c *gin.Context) {
	player := c.Param("player")

	next := h.lobby.Leave(c.Request.Context(), player)
	h.matchCreated(c.Request.Context(), next)

	c.JSON(http.StatusOK, gin.H{
		"player":    player,
		"queueSize": h.lobby.QueueSize(),
		"nextMatch": next,
	})
}

func (h *LobbyHandler) GetQueue(c *gin.Context) {
	players := h.lobby.Queue()
	c.JSON(http.StatusOK, gin.H{
		"players": players,
		"size":    len(players),
	})
}

func (h *LobbyHandler) GetMatch(c *gin.Context) {
	match := h.lobby.ActiveMatch()
	if match == nil {
		respondError(c, service.ErrNoActiveMatch)
		return
	}
	c.JSON(http.StatusOK, match)
}

// SetScore godoc
// @Summary Report one team's score
// @Description The second score finalizes the match and updates ratings
// @Tags lobby
// @Accept json
// @Produce json
// @Param request body models.ScoreRequest true "Team and score"
// @Router /match/score [post]
func (h *LobbyHandler) SetScore(c *gin.Context) {
	var req models.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.lobby.SetScore(c.Request.Context(), req.Team, *req.Score)
	if err != nil {
		respondError(c, err)
		return
	}

	h.finalized(c.Request.Context(), res)
	c.JSON(http.StatusOK, res)
}

// SubmitResult godoc
// @Summary Report the series result
// @Tags lobby
// @Accept json
// @Produce json
// @Param request body models.ResultRequest true "Wins per team"
// @Router /match/result [post]
func (h *LobbyHandler) SubmitResult(c *gin.Context) {
	var req models.ResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.lobby.SubmitResult(c.Request.Context(), *req.AWins, *req.BWins)
	if err != nil {
		respondError(c, err)
		return
	}

	h.finalized(c.Request.Context(), res)
	c.JSON(http.StatusOK, res)
}

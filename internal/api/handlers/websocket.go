package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mtricolici98/bot-wuzzler/internal/websocket"
)

type WebSocketHandler struct {
	hub *websocket.Hub
}

func NewWebSocketHandler(hub *websocket.Hub) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
	}
}

// HandleWebSocket godoc
// @Summary Match notifications
// @Description Upgrades to a websocket that receives the player's match events
// @Tags lobby
// @Param player query string true "Player ID"
// @Router /ws [get]
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	player := strings.TrimSpace(c.Query("player"))
	if player == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "player query parameter required"})
		return
	}

	websocket.ServeWs(h.hub, c.Writer, c.Request, player)
}

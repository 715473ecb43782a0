package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeTimeout = 10 * time.Second
	// a player that misses pongs for this long is dropped
	idleTimeout  = 60 * time.Second
	pingInterval = idleTimeout * 9 / 10

	// players never send payloads; only control frames are expected
	maxInboundBytes = 512
	sendQueueSize   = 64
)

// Client is one player's connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan *Message
	userID string
	logger *zap.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan *Message, sendQueueSize),
		userID: userID,
		logger: hub.logger.With(zap.String("userId", userID)),
	}
}

func (c *Client) extendDeadline(string) error {
	return c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
}

// readPump drains control frames until the peer goes away, then leaves the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundBytes)
	c.extendDeadline("")
	c.conn.SetPongHandler(c.extendDeadline)

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Player connection dropped", zap.Error(err))
			}
			return
		}
	}
}

// writePump forwards hub messages as JSON and keeps the peer alive with pings.
// It ends when the hub closes send or a write fails.
func (c *Client) writePump() {
	pings := time.NewTicker(pingInterval)
	defer func() {
		pings.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, open := <-c.send:
			deadline := time.Now().Add(writeTimeout)
			if !open {
				c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
				return
			}

			c.conn.SetWriteDeadline(deadline)
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Warn("Failed to push message",
					zap.String("type", message.Type),
					zap.Error(err))
				return
			}

		case <-pings.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request and registers the player's connection. The
// Origin header is checked against the hub's allowed origins.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, userID string) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return hub.originAllowed(r.Header.Get("Origin"))
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn("Failed to upgrade WebSocket connection",
			zap.String("userId", userID),
			zap.Error(err))
		return
	}

	client := NewClient(hub, conn, userID)
	if !hub.join(client) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeTimeout))
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

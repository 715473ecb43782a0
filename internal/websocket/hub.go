package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/mtricolici98/bot-wuzzler/internal/models"
	"github.com/mtricolici98/bot-wuzzler/pkg/distributed"
	"github.com/mtricolici98/bot-wuzzler/pkg/logger"
)

// Message types pushed to players.
const (
	MessageMatchCreated   = "match_created"
	MessageMatchFinalized = "match_finalized"
)

// ErrHubStopped is returned by Notify once Run has returned.
var ErrHubStopped = errors.New("websocket hub stopped")

// Notifier delivers an event to a set of players.
type Notifier interface {
	Notify(ctx context.Context, msgType string, recipients []string, payload interface{}) error
}

// Hub keeps one connection per player and routes messages to them.
type Hub struct {
	// playerID -> *Client
	clients map[string]*Client
	mu      sync.RWMutex

	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
	// closed when Run returns
	done chan struct{}

	allowedOrigins []string
	logger         *zap.Logger
}

// Message is what a client receives. UserID only routes it.
type Message struct {
	UserID  string      `json:"-"`
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// NewHub creates a hub. Browser connections are accepted from allowedOrigins
// only; "*" or an empty list accepts any origin.
func NewHub(allowedOrigins []string) *Hub {
	return &Hub{
		clients:        make(map[string]*Client),
		broadcast:      make(chan *Message, 256),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		done:           make(chan struct{}),
		allowedOrigins: allowedOrigins,
		logger:         logger.Named("ws"),
	}
}

// Run serves register, unregister and delivery until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.deliver(message)

		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return
		}
	}
}

// join hands a new connection to Run. It reports false once the hub stopped.
func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// leave hands a finished connection to Run. After shutdown closeAll already
// dropped it.
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// a player keeps one connection; the newest wins
	if oldClient, exists := h.clients[client.userID]; exists {
		close(oldClient.send)
		h.logger.Info("Replaced existing WebSocket connection",
			zap.String("userId", client.userID))
	}

	h.clients[client.userID] = client
	h.logger.Info("WebSocket client registered",
		zap.String("userId", client.userID),
		zap.Int("totalClients", len(h.clients)))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// a replaced client must not remove its successor
	if current, exists := h.clients[client.userID]; exists && current == client {
		delete(h.clients, client.userID)
		close(client.send)
		h.logger.Info("WebSocket client unregistered",
			zap.String("userId", client.userID),
			zap.Int("totalClients", len(h.clients)))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		close(client.send)
		delete(h.clients, id)
	}
}

func (h *Hub) deliver(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, exists := h.clients[message.UserID]
	if !exists {
		return
	}

	select {
	case client.send <- message:
	default:
		h.logger.Warn("Client send channel full, dropping message",
			zap.String("userId", message.UserID),
			zap.String("type", message.Type))
	}
}

// Notify queues a message for every real recipient connected to this hub.
// Filler players are skipped.
func (h *Hub) Notify(ctx context.Context, msgType string, recipients []string, payload interface{}) error {
	for _, userID := range recipients {
		if models.IsFakePlayer(userID) {
			continue
		}
		select {
		case h.broadcast <- &Message{UserID: userID, Type: msgType, Payload: payload}:
		case <-ctx.Done():
			return ctx.Err()
		case <-h.done:
			return ErrHubStopped
		}
	}
	return nil
}

// Deliver hands an event received from the bus to the local clients.
func (h *Hub) Deliver(event distributed.Event) {
	ctx := context.Background()
	if err := h.Notify(ctx, event.Type, event.Recipients, json.RawMessage(event.Payload)); err != nil {
		h.logger.Error("Failed to deliver bus event", zap.String("type", event.Type), zap.Error(err))
	}
}

func (h *Hub) IsConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.clients[userID]
	return ok
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

func (h *Hub) originAllowed(origin string) bool {
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

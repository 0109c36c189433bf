package server

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/podkidnoy/durak-server/internal/game"
)

// Client is one websocket connection bound to a player and a room.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	playerID string
	roomID   string
}

// Hub tracks connected clients and fans room state out to them.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client

	mu     sync.RWMutex
	logger *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// Run processes register and unregister requests until the channels
// close. It owns the clients map together with the hub mutex so
// broadcasters can read it concurrently.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("client connected",
				zap.String("player", client.playerID),
				zap.String("room_id", client.roomID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("client disconnected",
				zap.String("player", client.playerID),
				zap.String("room_id", client.roomID))
		}
	}
}

// BroadcastRoom sends each connected client of a room its own redacted
// view. Clients without a seat get the spectator view under the empty
// key.
func (h *Hub) BroadcastRoom(roomID string, views map[string]*game.GameView) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.roomID != roomID {
			continue
		}
		view, ok := views[client.playerID]
		if !ok {
			view = views[""]
		}
		payload, err := json.Marshal(ServerMessage{
			Type:   MsgState,
			RoomID: roomID,
			View:   view,
		})
		if err != nil {
			h.logger.Error("failed to marshal view", zap.Error(err))
			continue
		}
		client.deliver(payload)
	}
}

// sendTo marshals a message for a single client, dropping it when the
// client's buffer is full.
func (h *Hub) sendTo(client *Client, msg ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal message", zap.Error(err))
		return
	}
	client.deliver(payload)
}

func (c *Client) deliver(payload []byte) {
	select {
	case c.send <- payload:
	default:
		// Slow consumer; the write pump will notice the closed socket.
	}
}

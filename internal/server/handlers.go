package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/podkidnoy/durak-server/internal/game"
	"github.com/podkidnoy/durak-server/internal/room"
)

// Server wires the room manager to HTTP and websocket clients.
type Server struct {
	rooms    *room.Manager
	hub      *Hub
	upgrader websocket.Upgrader
	statsFn  func() map[string]any
	logger   *zap.Logger
}

// New creates the server. statsFn feeds the health endpoint and may be
// nil.
func New(rooms *room.Manager, hub *Hub, statsFn func() map[string]any, logger *zap.Logger) *Server {
	return &Server{
		rooms: rooms,
		hub:   hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		statsFn: statsFn,
		logger:  logger,
	}
}

// Routes builds the HTTP mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /rooms", s.handleListRooms)
	mux.HandleFunc("POST /rooms", s.handleCreateRoom)
	mux.HandleFunc("POST /rooms/find", s.handleFindRoom)
	mux.HandleFunc("POST /rooms/{id}/join", s.handleJoinRoom)
	mux.HandleFunc("POST /rooms/{id}/leave", s.handleLeaveRoom)
	mux.HandleFunc("POST /rooms/{id}/start", s.handleStartGame)
	mux.HandleFunc("GET /rooms/{id}/state", s.handleRoomState)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.statsFn != nil {
		body["database"] = s.statsFn()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleListRooms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rooms": s.rooms.List()})
}

type createRoomRequest struct {
	Name     string `json:"name"`
	PlayerID string `json:"player_id"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "player_id is required")
		return
	}
	if req.Name == "" {
		req.Name = req.PlayerID + "'s room"
	}

	rm, err := s.rooms.CreateRoom(req.Name, req.PlayerID)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, rm.Summarize())
}

type playerRequest struct {
	PlayerID string `json:"player_id"`
}

// handleFindRoom seats the player in any open room, creating one when
// none has a free seat.
func (s *Server) handleFindRoom(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "player_id is required")
		return
	}

	if rm, ok := s.rooms.FindOpen(); ok {
		if joined, err := s.rooms.Join(rm.ID, req.PlayerID); err == nil {
			writeJSON(w, http.StatusOK, joined.Summarize())
			return
		}
	}

	rm, err := s.rooms.CreateRoom(req.PlayerID+"'s room", req.PlayerID)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, rm.Summarize())
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "player_id is required")
		return
	}

	rm, err := s.rooms.Join(r.PathValue("id"), req.PlayerID)
	if errors.Is(err, room.ErrRoomNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rm.Summarize())
}

func (s *Server) handleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "player_id is required")
		return
	}
	if err := s.rooms.Leave(req.PlayerID); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "player_id is required")
		return
	}

	roomID := r.PathValue("id")
	if err := s.rooms.Start(r.Context(), roomID, req.PlayerID); err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	s.broadcastState(roomID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Server) handleRoomState(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	viewerID := r.URL.Query().Get("player")

	view, err := s.rooms.View(r.Context(), roomID, viewerID)
	if errors.Is(err, room.ErrRoomNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleWS upgrades the connection and pumps game messages. The player
// and room are taken from query parameters; a missing player id makes
// the connection a spectator.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if _, ok := s.rooms.GetRoom(roomID); !ok {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:     conn,
		send:     make(chan []byte, 64),
		playerID: r.URL.Query().Get("player"),
		roomID:   roomID,
	}
	s.hub.register <- client

	go client.writePump()
	go s.readPump(client)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

func (s *Server) readPump(client *Client) {
	defer func() {
		s.hub.unregister <- client
		client.conn.Close()
	}()

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.hub.sendTo(client, ServerMessage{Type: MsgError, Error: "malformed message"})
			continue
		}
		s.handleClientMessage(client, msg)
	}
}

func (s *Server) handleClientMessage(client *Client, msg ClientMessage) {
	switch msg.Type {
	case MsgPing:
		s.hub.sendTo(client, ServerMessage{Type: MsgPong})

	case MsgAction:
		if client.playerID == "" {
			s.hub.sendTo(client, ServerMessage{Type: MsgError, Error: "spectators cannot act"})
			return
		}
		ctx := context.Background()
		result, err := s.rooms.Apply(ctx, client.roomID, client.playerID, msg.Action)
		if err != nil {
			s.logger.Error("action failed",
				zap.String("room_id", client.roomID),
				zap.String("player", client.playerID),
				zap.Error(err))
			reason := "internal error"
			if errors.Is(err, game.ErrIntegrity) {
				reason = "game state is corrupt"
			}
			s.hub.sendTo(client, ServerMessage{Type: MsgError, RoomID: client.roomID, Error: reason})
			return
		}

		s.hub.sendTo(client, ServerMessage{
			Type:   MsgActionResult,
			RoomID: client.roomID,
			Result: &result,
		})
		if result.Applied {
			s.broadcastState(client.roomID)
		}

	default:
		s.hub.sendTo(client, ServerMessage{Type: MsgError, Error: "unknown message type"})
	}
}

// broadcastState pushes fresh per-viewer projections to every client in
// the room.
func (s *Server) broadcastState(roomID string) {
	views, err := s.rooms.Views(context.Background(), roomID)
	if err != nil {
		s.logger.Error("failed to build views",
			zap.String("room_id", roomID), zap.Error(err))
		return
	}
	s.hub.BroadcastRoom(roomID, views)
}

// Package server exposes the lobby over HTTP and live games over
// websockets.
package server

import (
	"github.com/podkidnoy/durak-server/internal/game"
	"github.com/podkidnoy/durak-server/internal/room"
)

// Client message types.
const (
	MsgAction = "action"
	MsgPing   = "ping"
)

// Server message types.
const (
	MsgState        = "state"
	MsgActionResult = "action_result"
	MsgError        = "error"
	MsgPong         = "pong"
)

// ClientMessage is one inbound websocket frame.
type ClientMessage struct {
	Type   string      `json:"type"`
	Action room.Action `json:"action"`
}

// ServerMessage is one outbound websocket frame.
type ServerMessage struct {
	Type   string         `json:"type"`
	RoomID string         `json:"room_id,omitempty"`
	Result *game.Result   `json:"result,omitempty"`
	View   *game.GameView `json:"view,omitempty"`
	Error  string         `json:"error,omitempty"`
}

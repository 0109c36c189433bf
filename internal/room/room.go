// Package room hosts game rooms: lobby membership, game lifecycle, and
// serialized action application with persistence.
package room

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/podkidnoy/durak-server/internal/game"
)

// Status represents the lifecycle state of a room.
type Status string

const (
	StatusOpen    Status = "open"
	StatusPlaying Status = "playing"
	StatusClosed  Status = "closed"
)

// Room is a lobby that hosts at most one game.
type Room struct {
	ID         string
	Name       string
	HostID     string
	MaxPlayers int
	CreateTime time.Time

	players      []string
	status       Status
	state        *game.GameState
	lastActivity time.Time

	mu sync.RWMutex
	// actionMu serializes the load-act-persist cycle for this room so
	// concurrent actions cannot interleave on the same game.
	actionMu sync.Mutex
}

// NewRoom creates an open room with the host already seated.
func NewRoom(name, hostID string, maxPlayers int) *Room {
	now := time.Now()
	return &Room{
		ID:           uuid.New().String(),
		Name:         name,
		HostID:       hostID,
		MaxPlayers:   maxPlayers,
		CreateTime:   now,
		players:      []string{hostID},
		status:       StatusOpen,
		lastActivity: now,
	}
}

// AddPlayer seats a player in the room.
func (r *Room) AddPlayer(playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusOpen {
		return fmt.Errorf("room is not open")
	}
	if len(r.players) >= r.MaxPlayers {
		return fmt.Errorf("room is full")
	}
	for _, p := range r.players {
		if p == playerID {
			return fmt.Errorf("player already joined")
		}
	}

	r.players = append(r.players, playerID)
	r.lastActivity = time.Now()
	return nil
}

// RemovePlayer unseats a player. Removing a player from a running game
// closes the room; a lobby simply shrinks, promoting a new host when
// the host leaves.
func (r *Room) RemovePlayer(playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, p := range r.players {
		if p == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("player not found")
	}

	if r.status == StatusPlaying {
		r.status = StatusClosed
		r.lastActivity = time.Now()
		return nil
	}

	r.players = append(r.players[:idx], r.players[idx+1:]...)
	if len(r.players) == 0 {
		r.status = StatusClosed
	} else if r.HostID == playerID {
		r.HostID = r.players[0]
	}
	r.lastActivity = time.Now()
	return nil
}

// HasPlayer reports whether the player is seated in the room.
func (r *Room) HasPlayer(playerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.players {
		if p == playerID {
			return true
		}
	}
	return false
}

// Players returns the seat order.
func (r *Room) Players() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.players))
	copy(out, r.players)
	return out
}

// Status returns the lifecycle state.
func (r *Room) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// LastActivity returns the time of the last membership change or game
// action in the room.
func (r *Room) LastActivity() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActivity
}

func (r *Room) touch() {
	r.mu.Lock()
	r.lastActivity = time.Now()
	r.mu.Unlock()
}

// Summary is the lobby listing entry for a room.
type Summary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	HostID     string    `json:"host_id"`
	Players    []string  `json:"players"`
	MaxPlayers int       `json:"max_players"`
	Status     Status    `json:"status"`
	CreateTime time.Time `json:"create_time"`
}

// Summarize builds the lobby listing entry.
func (r *Room) Summarize() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	players := make([]string, len(r.players))
	copy(players, r.players)
	return Summary{
		ID:         r.ID,
		Name:       r.Name,
		HostID:     r.HostID,
		Players:    players,
		MaxPlayers: r.MaxPlayers,
		Status:     r.status,
		CreateTime: r.CreateTime,
	}
}

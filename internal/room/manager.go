package room

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/podkidnoy/durak-server/internal/game"
)

// GameStore persists game state between actions.
type GameStore interface {
	SaveSnapshot(ctx context.Context, gameID string, s *game.GameState) error
	LoadSnapshot(ctx context.Context, gameID string) (*game.GameState, error)
	RecordResult(ctx context.Context, gameID string, outcome game.Outcome) error
	DeleteGame(ctx context.Context, gameID string) error
}

// ActionKind names a player move.
type ActionKind string

const (
	ActionAttack ActionKind = "attack"
	ActionDefend ActionKind = "defend"
	ActionTake   ActionKind = "take"
	ActionPass   ActionKind = "pass"
)

// Action carries one player move against a room's game.
type Action struct {
	Kind        ActionKind `json:"kind"`
	HandIndices []int      `json:"hand_indices,omitempty"`
	TableIndex  int        `json:"table_index,omitempty"`
	HandIndex   int        `json:"hand_index,omitempty"`
}

// ErrRoomNotFound is returned when a room id is unknown.
var ErrRoomNotFound = errors.New("room not found")

// Manager tracks rooms and applies game actions to them.
type Manager struct {
	rooms    map[string]*Room
	byPlayer map[string]string

	engine      *game.Engine
	store       GameStore
	maxPlayers  int
	idleTimeout time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand

	mu     sync.RWMutex
	logger *zap.Logger
}

// NewManager creates a room manager. maxPlayers bounds room size and
// idleTimeout controls when CleanupInactive reaps stale rooms.
func NewManager(store GameStore, maxPlayers int, idleTimeout time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		rooms:       make(map[string]*Room),
		byPlayer:    make(map[string]string),
		engine:      game.NewEngine(logger),
		store:       store,
		maxPlayers:  maxPlayers,
		idleTimeout: idleTimeout,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:      logger,
	}
}

// CreateRoom opens a room with the creator as host. A player can be in
// at most one live room at a time.
func (m *Manager) CreateRoom(name, hostID string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if roomID, ok := m.byPlayer[hostID]; ok {
		return nil, fmt.Errorf("player is already in room %s", roomID)
	}

	r := NewRoom(name, hostID, m.maxPlayers)
	m.rooms[r.ID] = r
	m.byPlayer[hostID] = r.ID

	m.logger.Info("room created",
		zap.String("room_id", r.ID),
		zap.String("name", name),
		zap.String("host", hostID))
	return r, nil
}

// GetRoom retrieves a room by id.
func (m *Manager) GetRoom(roomID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[roomID]
	return r, ok
}

// RoomFor returns the room a player is currently seated in.
func (m *Manager) RoomFor(playerID string) (*Room, bool) {
	m.mu.RLock()
	roomID, ok := m.byPlayer[playerID]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return m.GetRoom(roomID)
}

// Join seats a player in an open room.
func (m *Manager) Join(roomID, playerID string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if existing, ok := m.byPlayer[playerID]; ok && existing != roomID {
		return nil, fmt.Errorf("player is already in room %s", existing)
	}
	if err := r.AddPlayer(playerID); err != nil {
		return nil, err
	}
	m.byPlayer[playerID] = roomID

	m.logger.Info("player joined room",
		zap.String("room_id", roomID),
		zap.String("player", playerID))
	return r, nil
}

// Leave removes a player from their room. Leaving a running game closes
// the room for everyone.
func (m *Manager) Leave(playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	roomID, ok := m.byPlayer[playerID]
	if !ok {
		return fmt.Errorf("player is not in a room")
	}
	r := m.rooms[roomID]
	if err := r.RemovePlayer(playerID); err != nil {
		return err
	}
	delete(m.byPlayer, playerID)

	if r.Status() == StatusClosed {
		m.closeRoomLocked(r, "player left")
	}
	m.logger.Info("player left room",
		zap.String("room_id", roomID),
		zap.String("player", playerID))
	return nil
}

// FindOpen returns an open room with a free seat, if any exists.
func (m *Manager) FindOpen() (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.rooms {
		if r.Status() == StatusOpen && len(r.Players()) < r.MaxPlayers {
			return r, true
		}
	}
	return nil, false
}

// List returns lobby summaries for every live room.
func (m *Manager) List() []Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Summary, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r.Summarize())
	}
	return out
}

// Start deals a new game in the room. Only the host may start, and the
// room needs at least two seated players.
func (m *Manager) Start(ctx context.Context, roomID, playerID string) error {
	r, ok := m.GetRoom(roomID)
	if !ok {
		return ErrRoomNotFound
	}

	r.actionMu.Lock()
	defer r.actionMu.Unlock()

	r.mu.Lock()
	if r.status != StatusOpen {
		r.mu.Unlock()
		return fmt.Errorf("room is not open")
	}
	if r.HostID != playerID {
		r.mu.Unlock()
		return fmt.Errorf("only the host can start the game")
	}
	players := make([]string, len(r.players))
	copy(players, r.players)
	r.mu.Unlock()

	m.rngMu.Lock()
	state, err := game.NewGame(players, m.rng)
	m.rngMu.Unlock()
	if err != nil {
		return err
	}

	if err := m.store.SaveSnapshot(ctx, roomID, state); err != nil {
		return fmt.Errorf("failed to persist initial state: %w", err)
	}

	r.mu.Lock()
	r.state = state
	r.status = StatusPlaying
	r.lastActivity = time.Now()
	r.mu.Unlock()

	m.logger.Info("game started",
		zap.String("room_id", roomID),
		zap.Strings("players", players),
		zap.String("trump", string(state.TrumpSuit)))
	return nil
}

// Apply runs one player action against the room's game. The room's
// action lock serializes the load-act-persist cycle, so a crashed write
// never leaves a half applied action visible.
func (m *Manager) Apply(ctx context.Context, roomID, playerID string, action Action) (game.Result, error) {
	r, ok := m.GetRoom(roomID)
	if !ok {
		return game.Result{}, ErrRoomNotFound
	}

	r.actionMu.Lock()
	defer r.actionMu.Unlock()

	state, err := m.currentState(ctx, r)
	if err != nil {
		return game.Result{}, err
	}

	var next *game.GameState
	var result game.Result
	switch action.Kind {
	case ActionAttack:
		next, result, err = m.engine.Attack(state, playerID, action.HandIndices)
	case ActionDefend:
		next, result, err = m.engine.Defend(state, playerID, action.TableIndex, action.HandIndex)
	case ActionTake:
		next, result, err = m.engine.TakeCards(state, playerID)
	case ActionPass:
		next, result, err = m.engine.PassOrSettle(state, playerID)
	default:
		return game.Result{}, fmt.Errorf("unknown action kind %q", action.Kind)
	}
	if err != nil {
		return game.Result{}, err
	}
	if !result.Applied {
		return result, nil
	}

	if err := m.store.SaveSnapshot(ctx, roomID, next); err != nil {
		return game.Result{}, fmt.Errorf("failed to persist state: %w", err)
	}

	r.mu.Lock()
	r.state = next
	r.lastActivity = time.Now()
	r.mu.Unlock()

	if next.Status == game.StatusFinished {
		m.finishGame(ctx, r, next)
	}
	return result, nil
}

// Views builds one redacted projection per seated player, keyed by
// player id, plus a spectator view under the empty key.
func (m *Manager) Views(ctx context.Context, roomID string) (map[string]*game.GameView, error) {
	r, ok := m.GetRoom(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}

	r.actionMu.Lock()
	state, err := m.currentState(ctx, r)
	r.actionMu.Unlock()
	if err != nil {
		return nil, err
	}

	views := make(map[string]*game.GameView, len(state.Players)+1)
	for _, p := range state.Players {
		views[p] = game.Project(state, p)
	}
	views[""] = game.Project(state, "")
	return views, nil
}

// View builds the redacted projection for a single viewer.
func (m *Manager) View(ctx context.Context, roomID, viewerID string) (*game.GameView, error) {
	r, ok := m.GetRoom(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}

	r.actionMu.Lock()
	state, err := m.currentState(ctx, r)
	r.actionMu.Unlock()
	if err != nil {
		return nil, err
	}
	return game.Project(state, viewerID), nil
}

// currentState returns the room's in-memory game, reloading from the
// store after a restart. Callers hold the room's action lock.
func (m *Manager) currentState(ctx context.Context, r *Room) (*game.GameState, error) {
	r.mu.RLock()
	state := r.state
	status := r.status
	r.mu.RUnlock()

	if state != nil {
		return state, nil
	}
	if status != StatusPlaying {
		return nil, fmt.Errorf("no game in progress")
	}

	state, err := m.store.LoadSnapshot(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to restore game: %w", err)
	}
	r.mu.Lock()
	r.state = state
	r.mu.Unlock()
	return state, nil
}

func (m *Manager) finishGame(ctx context.Context, r *Room, state *game.GameState) {
	if err := m.store.RecordResult(ctx, r.ID, state.Outcome); err != nil {
		m.logger.Error("failed to record game result",
			zap.String("room_id", r.ID), zap.Error(err))
	}

	m.mu.Lock()
	m.closeRoomLocked(r, "game finished")
	m.mu.Unlock()

	m.logger.Info("game finished",
		zap.String("room_id", r.ID),
		zap.Bool("draw", state.Outcome.Draw),
		zap.String("winner", state.Outcome.WinnerID),
		zap.String("loser", state.Outcome.LoserID))
}

// closeRoomLocked marks a room closed and frees its players for new
// rooms. The room stays listed until the cleanup loop reaps it so the
// final state remains viewable. Callers hold m.mu.
func (m *Manager) closeRoomLocked(r *Room, reason string) {
	r.mu.Lock()
	r.status = StatusClosed
	players := make([]string, len(r.players))
	copy(players, r.players)
	r.mu.Unlock()

	for _, p := range players {
		if m.byPlayer[p] == r.ID {
			delete(m.byPlayer, p)
		}
	}

	m.logger.Info("room closed",
		zap.String("room_id", r.ID),
		zap.String("reason", reason))
}

// CleanupInactive reaps rooms whose last activity is older than the
// idle timeout and deletes their stored snapshots. It returns the
// number of rooms removed.
func (m *Manager) CleanupInactive(ctx context.Context) int {
	cutoff := time.Now().Add(-m.idleTimeout)

	m.mu.Lock()
	stale := make([]*Room, 0)
	for _, r := range m.rooms {
		if r.LastActivity().Before(cutoff) {
			stale = append(stale, r)
		}
	}
	for _, r := range stale {
		m.closeRoomLocked(r, "idle timeout")
		delete(m.rooms, r.ID)
	}
	m.mu.Unlock()

	for _, r := range stale {
		if err := m.store.DeleteGame(ctx, r.ID); err != nil {
			m.logger.Error("failed to delete stale game",
				zap.String("room_id", r.ID), zap.Error(err))
		}
	}
	if len(stale) > 0 {
		m.logger.Info("stale rooms reaped", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// RunCleanup periodically reaps idle rooms until ctx is cancelled.
func (m *Manager) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CleanupInactive(ctx)
		}
	}
}

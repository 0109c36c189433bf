package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/podkidnoy/durak-server/internal/game"
)

// ErrNotFound is returned when no snapshot exists for a game id.
var ErrNotFound = errors.New("game not found")

const schema = `
CREATE TABLE IF NOT EXISTS game_snapshots (
	game_id    TEXT PRIMARY KEY,
	snapshot   JSONB NOT NULL,
	checksum   TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS game_results (
	game_id     TEXT PRIMARY KEY,
	winner_id   TEXT,
	loser_id    TEXT,
	draw        BOOLEAN NOT NULL DEFAULT FALSE,
	finished_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// GameRepository stores and retrieves game snapshots.
type GameRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewGameRepository creates a repository backed by db.
func NewGameRepository(db *DB, logger *zap.Logger) *GameRepository {
	return &GameRepository{db: db, logger: logger}
}

// EnsureSchema creates the snapshot tables if they do not exist.
func (r *GameRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveSnapshot upserts the current state of a game together with its
// checksum so corruption is detectable on load.
func (r *GameRepository) SaveSnapshot(ctx context.Context, gameID string, s *game.GameState) error {
	payload, sum, err := encodeSnapshot(s)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO game_snapshots (game_id, snapshot, checksum, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (game_id) DO UPDATE
		SET snapshot = EXCLUDED.snapshot, checksum = EXCLUDED.checksum, updated_at = now()`,
		gameID, payload, sum)
	if err != nil {
		return fmt.Errorf("failed to save snapshot for game %s: %w", gameID, err)
	}

	r.logger.Debug("snapshot saved", zap.String("game_id", gameID), zap.String("checksum", sum[:12]))
	return nil
}

// LoadSnapshot restores a game from storage. The stored checksum is
// compared against the checksum of the reconstructed state; a mismatch
// is reported as an integrity fault.
func (r *GameRepository) LoadSnapshot(ctx context.Context, gameID string) (*game.GameState, error) {
	var payload []byte
	var storedSum string
	err := r.db.Pool.QueryRow(ctx,
		`SELECT snapshot, checksum FROM game_snapshots WHERE game_id = $1`,
		gameID).Scan(&payload, &storedSum)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot for game %s: %w", gameID, err)
	}

	return decodeSnapshot(gameID, payload, storedSum)
}

// encodeSnapshot renders a state as the stored JSON payload plus its
// checksum.
func encodeSnapshot(s *game.GameState) ([]byte, string, error) {
	snap := s.Snapshot()
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, "", err
	}
	return payload, snap.Checksum(), nil
}

// decodeSnapshot reconstructs a state from the stored payload and
// verifies it against the stored checksum. Malformed payloads and
// checksum mismatches are integrity faults.
func decodeSnapshot(gameID string, payload []byte, storedSum string) (*game.GameState, error) {
	var snap game.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("%w: malformed snapshot for game %s: %v", game.ErrIntegrity, gameID, err)
	}

	state, err := game.Load(&snap)
	if err != nil {
		return nil, fmt.Errorf("game %s: %w", gameID, err)
	}

	if sum := state.Snapshot().Checksum(); sum != storedSum {
		return nil, fmt.Errorf("%w: checksum mismatch for game %s", game.ErrIntegrity, gameID)
	}
	return state, nil
}

// RecordResult stores the outcome of a finished game.
func (r *GameRepository) RecordResult(ctx context.Context, gameID string, outcome game.Outcome) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO game_results (game_id, winner_id, loser_id, draw, finished_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (game_id) DO NOTHING`,
		gameID, outcome.WinnerID, outcome.LoserID, outcome.Draw)
	if err != nil {
		return fmt.Errorf("failed to record result for game %s: %w", gameID, err)
	}
	return nil
}

// DeleteGame removes the stored snapshot of a game.
func (r *GameRepository) DeleteGame(ctx context.Context, gameID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM game_snapshots WHERE game_id = $1`, gameID)
	if err != nil {
		return fmt.Errorf("failed to delete game %s: %w", gameID, err)
	}
	return nil
}

package repository

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podkidnoy/durak-server/internal/game"
)

func newTestState(t *testing.T) *game.GameState {
	t.Helper()
	state, err := game.NewGame([]string{"alice", "bob", "carol"}, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	return state
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	state := newTestState(t)

	payload, sum, err := encodeSnapshot(state)
	require.NoError(t, err)
	require.NotEmpty(t, sum)

	restored, err := decodeSnapshot("room-1", payload, sum)
	require.NoError(t, err)

	assert.Equal(t, sum, restored.Snapshot().Checksum())
	assert.Equal(t, state.Players, restored.Players)
	assert.Equal(t, state.AttackerID(), restored.AttackerID())
	assert.Equal(t, state.DefenderID(), restored.DefenderID())
	assert.Equal(t, state.TrumpSuit, restored.TrumpSuit)
}

func TestEncodeChecksumMatchesPayload(t *testing.T) {
	state := newTestState(t)

	payload, sum, err := encodeSnapshot(state)
	require.NoError(t, err)

	var snap game.Snapshot
	require.NoError(t, json.Unmarshal(payload, &snap))
	assert.Equal(t, sum, snap.Checksum(), "the stored checksum must describe the stored payload")
}

func TestDecodeRejectsChecksumMismatch(t *testing.T) {
	state := newTestState(t)

	payload, sum, err := encodeSnapshot(state)
	require.NoError(t, err)

	_, err = decodeSnapshot("room-1", payload, sum+"tampered")
	require.Error(t, err)
	assert.ErrorIs(t, err, game.ErrIntegrity)
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	_, err := decodeSnapshot("room-1", []byte("not json"), "whatever")
	require.Error(t, err)
	assert.ErrorIs(t, err, game.ErrIntegrity)
}

func TestDecodeRejectsCorruptSnapshot(t *testing.T) {
	state := newTestState(t)

	payload, sum, err := encodeSnapshot(state)
	require.NoError(t, err)

	var snap game.Snapshot
	require.NoError(t, json.Unmarshal(payload, &snap))
	// Losing a card breaks conservation, which restore must catch.
	snap.Deck = snap.Deck[1:]
	tampered, err := json.Marshal(&snap)
	require.NoError(t, err)

	_, err = decodeSnapshot("room-1", tampered, sum)
	require.Error(t, err)
	assert.ErrorIs(t, err, game.ErrIntegrity)
}

package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// TestFullPlayoutsHoldInvariants drives complete games with a greedy policy
// and checks the structural invariants after every applied action: card
// conservation, the table cap, hand bounds after replenishment, and snapshot
// round-tripping.
func TestFullPlayoutsHoldInvariants(t *testing.T) {
	for seed := int64(0); seed < 25; seed++ {
		players := []string{"alice", "bob"}
		if seed%3 == 0 {
			players = []string{"alice", "bob", "carol"}
		}
		playOut(t, players, seed)
	}
}

func playOut(t *testing.T, players []string, seed int64) {
	t.Helper()
	e := NewEngine(zaptest.NewLogger(t))
	s, err := NewGame(players, rand.New(rand.NewSource(seed)))
	require.NoError(t, err)

	const maxActions = 2000
	for i := 0; i < maxActions; i++ {
		if s.Status == StatusFinished {
			checkFinalOutcome(t, s, seed)
			return
		}

		next, res, err := playGreedy(e, s)
		require.NoError(t, err, "seed %d action %d", seed, i)
		require.True(t, res.Applied, "seed %d action %d: %s", seed, i, res.Reason)
		s = next

		checkInvariants(t, s, seed)
	}
	t.Fatalf("seed %d: game did not finish within %d actions", seed, maxActions)
}

// playGreedy picks one legal action: open with the attacker's first card,
// defend the first unbeaten pair with the cheapest covering card, take when
// no defense exists, settle once everything is beaten.
func playGreedy(e *Engine, s *GameState) (*GameState, Result, error) {
	if len(s.Table) == 0 {
		return e.Attack(s, s.AttackerID(), []int{0})
	}

	if s.allDefended() {
		return e.PassOrSettle(s, s.AttackerID())
	}

	defender := s.DefenderID()
	for ti, pair := range s.Table {
		if pair.Defended() {
			continue
		}
		for hi, c := range s.Hands[defender] {
			if Beats(c, pair.AttackCard, s.TrumpSuit) {
				return e.Defend(s, defender, ti, hi)
			}
		}
		return e.TakeCards(s, defender)
	}
	return e.TakeCards(s, defender)
}

func checkInvariants(t *testing.T, s *GameState, seed int64) {
	t.Helper()

	require.Equal(t, DeckSize, s.CardCount(), "seed %d: card conservation", seed)
	require.LessOrEqual(t, len(s.Table), MaxTablePairs, "seed %d: table bound", seed)

	for _, id := range s.Players {
		require.LessOrEqual(t, len(s.Hands[id]), DeckSize, "seed %d", seed)
	}
	if len(s.Table) == 0 && len(s.Deck) > 0 && s.Status == StatusActive {
		// Immediately after replenishment with cards left to draw, no hand
		// may exceed six cards unless its owner took the table earlier.
		require.GreaterOrEqual(t, len(s.Hands[s.AttackerID()]), 1, "seed %d", seed)
	}

	if s.TrumpCard != nil {
		require.NotEmpty(t, s.Deck, "seed %d: revealed trump implies non-empty deck", seed)
		require.Equal(t, s.TrumpCard.ID, s.Deck[len(s.Deck)-1].ID, "seed %d", seed)
	}

	// The snapshot round-trips exactly, including the turn identities.
	snap := s.Snapshot()
	restored, err := Load(snap)
	require.NoError(t, err, "seed %d", seed)
	require.Equal(t, snap.Checksum(), restored.Snapshot().Checksum(), "seed %d", seed)
	require.Equal(t, s.AttackerID(), restored.AttackerID(), "seed %d", seed)
	require.Equal(t, s.DefenderID(), restored.DefenderID(), "seed %d", seed)
}

func checkFinalOutcome(t *testing.T, s *GameState, seed int64) {
	t.Helper()

	require.True(t, s.Outcome.Finished, "seed %d", seed)
	require.Empty(t, s.Deck, "seed %d: games only end once the deck is empty", seed)

	holding := 0
	for _, id := range s.Players {
		if len(s.Hands[id]) > 0 {
			holding++
		}
	}
	if s.Outcome.Draw {
		require.Zero(t, holding, "seed %d", seed)
		require.Empty(t, s.Outcome.LoserID, "seed %d", seed)
	} else {
		require.Equal(t, 1, holding, "seed %d", seed)
		require.NotEmpty(t, s.Outcome.LoserID, "seed %d", seed)
		require.NotEqual(t, s.Outcome.WinnerID, s.Outcome.LoserID, "seed %d", seed)
	}
}

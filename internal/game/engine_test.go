package game

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// riggedTwoPlayer builds a hand-crafted two-player state: alice attacks,
// bob defends, hearts are trump. Hands and deck are chosen per test.
func riggedTwoPlayer(aliceHand, bobHand, deck []Card) *GameState {
	return &GameState{
		Players: []string{"alice", "bob"},
		Hands: map[string][]Card{
			"alice": aliceHand,
			"bob":   bobHand,
		},
		Deck:          deck,
		TrumpSuit:     SuitHearts,
		AttackerIndex: 0,
		DefenderIndex: 1,
		Status:        StatusActive,
	}
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(zaptest.NewLogger(t))
}

func TestAttackRejections(t *testing.T) {
	e := testEngine(t)
	s := riggedTwoPlayer(
		[]Card{card(SuitClubs, Rank9), card(SuitDiamonds, Rank9), card(SuitClubs, Rank10)},
		[]Card{card(SuitSpades, Rank6), card(SuitSpades, Rank7)},
		nil,
	)

	cases := []struct {
		name    string
		player  string
		indices []int
	}{
		{"defender cannot open", "bob", []int{0}},
		{"no cards selected", "alice", nil},
		{"index out of range", "alice", []int{5}},
		{"negative index", "alice", []int{-1}},
		{"duplicate index", "alice", []int{0, 0}},
		{"opening ranks must match", "alice", []int{0, 2}},
		{"more cards than defender holds", "alice", []int{0, 1, 2}},
	}

	for _, tc := range cases {
		next, res, err := e.Attack(s, tc.player, tc.indices)
		require.NoError(t, err, tc.name)
		require.False(t, res.Applied, tc.name)
		require.NotEmpty(t, res.Reason, tc.name)
		require.Same(t, s, next, tc.name)
	}
}

func TestOpeningAttackThenSameTurnThrowIn(t *testing.T) {
	e := testEngine(t)
	s := riggedTwoPlayer(
		[]Card{card(SuitClubs, Rank9), card(SuitDiamonds, Rank9), card(SuitClubs, Rank10)},
		[]Card{card(SuitSpades, RankAce), card(SuitSpades, RankKing), card(SuitSpades, RankQueen)},
		nil,
	)

	s2, res, err := e.Attack(s, "alice", []int{0, 1})
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Len(t, s2.Table, 2)
	require.Equal(t, 2, s2.unbeatenCount())
	require.Len(t, s2.Hands["alice"], 1)
	for _, pair := range s2.Table {
		require.Equal(t, Rank9, pair.AttackCard.Rank)
		require.Equal(t, "alice", pair.AttackerID)
	}

	// The table already has pairs, so a second call is a throw-in and the
	// 10 of clubs does not match any rank on the table.
	s3, res, err := e.Attack(s2, "alice", []int{0})
	require.NoError(t, err)
	require.False(t, res.Applied)
	require.Same(t, s2, s3)
}

func TestThrowInMatchesDefenseCardRanks(t *testing.T) {
	e := testEngine(t)
	s := riggedTwoPlayer(
		[]Card{card(SuitClubs, Rank9), card(SuitDiamonds, Rank10)},
		[]Card{card(SuitClubs, Rank10), card(SuitSpades, Rank6), card(SuitSpades, Rank7)},
		nil,
	)

	s, res, err := e.Attack(s, "alice", []int{0})
	require.NoError(t, err)
	require.True(t, res.Applied)

	s, res, err = e.Defend(s, "bob", 0, 0)
	require.NoError(t, err)
	require.True(t, res.Applied)

	// The 10 appears on the table only as a defense card; throw-in of the
	// 10 of diamonds is legal regardless.
	s, res, err = e.Attack(s, "alice", []int{0})
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Len(t, s.Table, 2)
}

func TestThrowInRespectsDefenderCapacity(t *testing.T) {
	e := testEngine(t)
	// Bob holds two cards; one unbeaten pair is already down, so only one
	// more card may be thrown in.
	s := riggedTwoPlayer(
		[]Card{card(SuitClubs, Rank9), card(SuitDiamonds, Rank9), card(SuitSpades, Rank9)},
		[]Card{card(SuitSpades, Rank6), card(SuitSpades, Rank7)},
		nil,
	)

	s, res, err := e.Attack(s, "alice", []int{0})
	require.NoError(t, err)
	require.True(t, res.Applied)

	next, res, err := e.Attack(s, "alice", []int{0, 1})
	require.NoError(t, err)
	require.False(t, res.Applied)
	require.Same(t, s, next)

	s, res, err = e.Attack(s, "alice", []int{0})
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Len(t, s.Table, 2)
}

func TestTableNeverExceedsSixPairs(t *testing.T) {
	e := testEngine(t)
	alice := []Card{
		card(SuitClubs, Rank9), card(SuitDiamonds, Rank9),
		card(SuitSpades, Rank9), card(SuitHearts, Rank9),
	}
	bob := make([]Card, 0, 8)
	for _, r := range []Rank{Rank6, Rank7, Rank8, Rank10, RankJack, RankQueen, RankKing, RankAce} {
		bob = append(bob, card(SuitSpades, r))
	}
	s := riggedTwoPlayer(alice, bob, nil)
	s.Table = []TablePair{
		{AttackCard: card(SuitClubs, Rank6), AttackerID: "alice"},
		{AttackCard: card(SuitClubs, Rank7), AttackerID: "alice"},
		{AttackCard: card(SuitClubs, Rank8), AttackerID: "alice"},
	}
	// Rank 9 never appears on the rigged table, so extend it with matching
	// ranks first.
	s.Table = append(s.Table,
		TablePair{AttackCard: card(SuitDiamonds, Rank6), AttackerID: "alice"},
		TablePair{AttackCard: card(SuitDiamonds, Rank7), AttackerID: "alice"},
	)

	// 5 pairs down, 4 nines offered: would overflow the 6-pair cap even
	// though the defender could cover them.
	next, res, err := e.Attack(s, "alice", []int{0, 1, 2, 3})
	require.NoError(t, err)
	require.False(t, res.Applied)
	require.Same(t, s, next)
}

func TestThrowInByThirdPlayerTracksAttackerPerPair(t *testing.T) {
	e := testEngine(t)
	s := &GameState{
		Players: []string{"alice", "bob", "carol"},
		Hands: map[string][]Card{
			"alice": {card(SuitClubs, Rank9)},
			"bob":   {card(SuitSpades, Rank6), card(SuitSpades, Rank7), card(SuitSpades, Rank8)},
			"carol": {card(SuitSpades, Rank9), card(SuitClubs, Rank10)},
		},
		TrumpSuit:     SuitHearts,
		AttackerIndex: 0,
		DefenderIndex: 1,
		Status:        StatusActive,
	}

	s, res, err := e.Attack(s, "alice", []int{0})
	require.NoError(t, err)
	require.True(t, res.Applied)

	// Carol is neither attacker nor defender but may throw in a matching
	// rank; the pair records her as its attacker.
	s, res, err = e.Attack(s, "carol", []int{0})
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Len(t, s.Table, 2)
	require.Equal(t, "alice", s.Table[0].AttackerID)
	require.Equal(t, "carol", s.Table[1].AttackerID)

	// The defender can never throw in.
	next, res, err := e.Attack(s, "bob", []int{0})
	require.NoError(t, err)
	require.False(t, res.Applied)
	require.Same(t, s, next)
}

func TestDefend(t *testing.T) {
	e := testEngine(t)
	s := riggedTwoPlayer(
		[]Card{card(SuitClubs, Rank9), card(SuitDiamonds, Rank9)},
		[]Card{card(SuitClubs, Rank10), card(SuitSpades, Rank6), card(SuitHearts, Rank6)},
		nil,
	)

	s, res, err := e.Attack(s, "alice", []int{0, 1})
	require.NoError(t, err)
	require.True(t, res.Applied)

	// Only the defender may defend.
	next, res, err := e.Defend(s, "alice", 0, 0)
	require.NoError(t, err)
	require.False(t, res.Applied)
	require.Same(t, s, next)

	// The 6 of spades beats neither nine.
	_, res, err = e.Defend(s, "bob", 0, 1)
	require.NoError(t, err)
	require.False(t, res.Applied)

	// Higher same suit covers the 9 of clubs.
	s, res, err = e.Defend(s, "bob", 0, 0)
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.True(t, s.Table[0].Defended())
	require.Equal(t, "bob", s.Table[0].DefenderID)
	require.Len(t, s.Hands["bob"], 2)

	// Already-beaten pair cannot be covered again.
	_, res, err = e.Defend(s, "bob", 0, 0)
	require.NoError(t, err)
	require.False(t, res.Applied)

	// Trump covers the off-suit nine.
	s, res, err = e.Defend(s, "bob", 1, 1)
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.True(t, s.allDefended())
	require.Len(t, s.Hands["bob"], 1)

	// Out-of-range indexes.
	_, res, err = e.Defend(s, "bob", 5, 0)
	require.NoError(t, err)
	require.False(t, res.Applied)
	_, res, err = e.Defend(s, "bob", 0, 9)
	require.NoError(t, err)
	require.False(t, res.Applied)
}

func TestTakeCards(t *testing.T) {
	e := testEngine(t)
	deck := []Card{
		card(SuitDiamonds, Rank6), card(SuitDiamonds, Rank7), card(SuitDiamonds, Rank8),
		card(SuitDiamonds, Rank10), card(SuitDiamonds, RankJack), card(SuitHearts, RankAce),
	}
	s := riggedTwoPlayer(
		[]Card{card(SuitClubs, Rank9), card(SuitDiamonds, Rank9), card(SuitClubs, Rank10)},
		[]Card{card(SuitClubs, RankJack), card(SuitSpades, Rank6)},
		deck,
	)
	trump := deck[len(deck)-1]
	s.TrumpCard = &trump

	// Empty table: nothing to take.
	_, res, err := e.TakeCards(s, "bob")
	require.NoError(t, err)
	require.False(t, res.Applied)

	s, res, err = e.Attack(s, "alice", []int{0, 1})
	require.NoError(t, err)
	require.True(t, res.Applied)

	s, res, err = e.Defend(s, "bob", 0, 0)
	require.NoError(t, err)
	require.True(t, res.Applied)

	// Only the defender may take.
	_, res, err = e.TakeCards(s, "alice")
	require.NoError(t, err)
	require.False(t, res.Applied)

	bobBefore := len(s.Hands["bob"])
	tableCards := 3 // two attacks, one defense
	s, res, err = e.TakeCards(s, "bob")
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.True(t, res.RoundClosed)

	require.Empty(t, s.Table)
	// Taker absorbed the table and is skipped by replenishment this pass.
	require.Len(t, s.Hands["bob"], bobBefore+tableCards)
	// Attacker topped back up to six.
	require.Len(t, s.Hands["alice"], HandSize)

	// Cursor skips the taker: alice attacks again in a two-player game.
	require.Equal(t, "alice", s.AttackerID())
	require.Equal(t, "bob", s.DefenderID())
	require.Equal(t, StatusActive, s.Status)
}

func TestPassOrSettleBito(t *testing.T) {
	e := testEngine(t)
	deck := []Card{
		card(SuitDiamonds, Rank6), card(SuitDiamonds, Rank7), card(SuitDiamonds, Rank8),
		card(SuitDiamonds, Rank9), card(SuitDiamonds, Rank10), card(SuitDiamonds, RankJack),
		card(SuitDiamonds, RankQueen), card(SuitDiamonds, RankKing), card(SuitDiamonds, RankAce),
		card(SuitHearts, RankAce),
	}
	s := riggedTwoPlayer(
		[]Card{card(SuitClubs, Rank9), card(SuitSpades, Rank9), card(SuitClubs, Rank6)},
		[]Card{card(SuitClubs, Rank10), card(SuitSpades, Rank10), card(SuitClubs, Rank7)},
		deck,
	)
	trump := deck[len(deck)-1]
	s.TrumpCard = &trump
	totalCards := s.CardCount()

	_, res, err := e.PassOrSettle(s, "alice")
	require.NoError(t, err)
	require.False(t, res.Applied, "empty table cannot be settled")

	s, res, err = e.Attack(s, "alice", []int{0, 1})
	require.NoError(t, err)
	require.True(t, res.Applied)
	s, res, err = e.Defend(s, "bob", 0, 0)
	require.NoError(t, err)
	require.True(t, res.Applied)
	// The 10 of spades shifted to index 0 once the 10 of clubs was played.
	s, res, err = e.Defend(s, "bob", 1, 0)
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.True(t, s.allDefended())

	// Only the attacker settles.
	_, res, err = e.PassOrSettle(s, "bob")
	require.NoError(t, err)
	require.False(t, res.Applied)

	s, res, err = e.PassOrSettle(s, "alice")
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.True(t, res.RoundClosed)

	// Table discarded, both hands replenished, roles swapped.
	require.Empty(t, s.Table)
	require.Len(t, s.Discard, 4)
	require.Len(t, s.Hands["alice"], HandSize)
	require.Len(t, s.Hands["bob"], HandSize)
	require.Equal(t, "bob", s.AttackerID())
	require.Equal(t, "alice", s.DefenderID())
	require.Equal(t, totalCards, s.CardCount())

	// The trump drained into a hand with the last draw; the reveal clears.
	require.Empty(t, s.Deck)
	require.Nil(t, s.TrumpCard)
	require.Equal(t, SuitHearts, s.TrumpSuit)
}

func TestPassWithUnbeatenCardsOnlyRecordsThePass(t *testing.T) {
	e := testEngine(t)
	s := riggedTwoPlayer(
		[]Card{card(SuitClubs, Rank9), card(SuitDiamonds, Rank9)},
		[]Card{card(SuitSpades, Rank6), card(SuitSpades, Rank7)},
		nil,
	)

	s, res, err := e.Attack(s, "alice", []int{0})
	require.NoError(t, err)
	require.True(t, res.Applied)

	s, res, err = e.PassOrSettle(s, "alice")
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.False(t, res.RoundClosed)
	require.True(t, s.AttackerPassed)
	require.Len(t, s.Table, 1, "pass does not clear the table")
	require.Equal(t, "alice", s.AttackerID(), "pass does not advance turns")

	// Passing twice is rejected, as is throwing in after the pass.
	_, res, err = e.PassOrSettle(s, "alice")
	require.NoError(t, err)
	require.False(t, res.Applied)
	_, res, err = e.Attack(s, "alice", []int{0})
	require.NoError(t, err)
	require.False(t, res.Applied)

	// The defender can still concede; the pass flag resets with the round.
	s, res, err = e.TakeCards(s, "bob")
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.False(t, s.AttackerPassed)
}

func TestRejectedActionLeavesStateIdentical(t *testing.T) {
	e := testEngine(t)
	s := newTestGame(t, []string{"alice", "bob"}, 5)
	before := s.Snapshot().Checksum()

	attacker := s.AttackerID()
	defender := s.DefenderID()

	_, res, err := e.Attack(s, defender, []int{0})
	require.NoError(t, err)
	require.False(t, res.Applied)
	_, res, err = e.Defend(s, defender, 0, 0)
	require.NoError(t, err)
	require.False(t, res.Applied)
	_, res, err = e.TakeCards(s, defender)
	require.NoError(t, err)
	require.False(t, res.Applied)
	_, res, err = e.PassOrSettle(s, attacker)
	require.NoError(t, err)
	require.False(t, res.Applied)

	require.Equal(t, before, s.Snapshot().Checksum())
}

func TestFinishedGameAcceptsNoActions(t *testing.T) {
	e := testEngine(t)
	s := riggedTwoPlayer(
		[]Card{card(SuitClubs, Rank9)},
		[]Card{card(SuitSpades, Rank6)},
		nil,
	)
	s.Status = StatusFinished

	_, res, err := e.Attack(s, "alice", []int{0})
	require.NoError(t, err)
	require.False(t, res.Applied)
	require.Equal(t, "game is finished", res.Reason)
}

func TestUnknownPlayerIsIntegrityFault(t *testing.T) {
	e := testEngine(t)
	s := riggedTwoPlayer(
		[]Card{card(SuitClubs, Rank9)},
		[]Card{card(SuitSpades, Rank6)},
		nil,
	)

	next, _, err := e.Attack(s, "mallory", []int{0})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrIntegrity))
	require.Same(t, s, next)
}

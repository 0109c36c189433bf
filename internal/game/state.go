package game

import (
	"fmt"
	"math/rand"
)

const (
	// DeckSize is the number of cards in a durak deck.
	DeckSize = 36
	// HandSize is the number of cards hands are dealt and replenished to.
	HandSize = 6
	// MaxTablePairs caps the attack/defense pairs on the table per round.
	MaxTablePairs = 6
	// MinPlayers is the smallest playable game.
	MinPlayers = 2
)

// Status is the game lifecycle state. Transitions are monotonic:
// waiting -> active -> finished, never reversed.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// TablePair is one attack card on the table together with its defense, if
// any. AttackerID records which player actually played the attack card; with
// throw-ins this may differ from the round's designated attacker.
type TablePair struct {
	AttackCard  Card   `json:"attack_card"`
	DefenseCard *Card  `json:"defense_card,omitempty"`
	AttackerID  string `json:"attacker_id"`
	DefenderID  string `json:"defender_id,omitempty"`
}

// Defended reports whether the pair carries a defense card.
func (p TablePair) Defended() bool {
	return p.DefenseCard != nil
}

// Outcome is the result of a finished game. For games with more than two
// players only the first player to empty their hand is recorded as winner;
// everyone except the loser and winner places in between.
type Outcome struct {
	Finished bool   `json:"finished"`
	Draw     bool   `json:"draw"`
	WinnerID string `json:"winner_id,omitempty"`
	LoserID  string `json:"loser_id,omitempty"`
}

// GameState is the complete state of one durak game. Engine actions never
// mutate a GameState they are given: each successful action returns a new
// value, which keeps the single-writer contract at the hosting layer trivial
// to enforce.
type GameState struct {
	// Players is the fixed seat order established at game creation.
	Players []string
	// Hands maps player id to that player's hand in insertion order.
	Hands map[string][]Card
	// Deck is the draw pile. Cards are drawn from the front; the revealed
	// trump card is the last element until it is drawn.
	Deck []Card
	// Table holds the current round's attack/defense pairs.
	Table []TablePair
	// Discard holds cards retired by settled (bito) rounds. They stay out
	// of play but remain part of the 36-card conservation invariant.
	Discard []Card
	// TrumpSuit is fixed for the life of the game.
	TrumpSuit Suit
	// TrumpCard is the revealed trump card while it is still in the deck,
	// nil once drawn into a hand. The suit stays fixed regardless.
	TrumpCard *Card
	// AttackerIndex and DefenderIndex point into Players.
	AttackerIndex int
	DefenderIndex int
	// AttackerPassed records that the designated attacker declined further
	// throw-ins this round while unbeaten cards remain.
	AttackerPassed bool
	// FirstEmptyID is the first player to empty their hand after the deck
	// ran out. It decides the winner for games with more than two players.
	FirstEmptyID string
	Status       Status
	Outcome      Outcome
}

// NewGame builds a fresh game for the given seat order: shuffled deck,
// six cards dealt round-robin to each player, trump fixed by the bottom
// card of the draw pile, and the initial attacker holding the lowest trump.
func NewGame(players []string, rng *rand.Rand) (*GameState, error) {
	if len(players) < MinPlayers {
		return nil, fmt.Errorf("at least %d players required, got %d", MinPlayers, len(players))
	}
	// The deal must leave at least the revealed trump card in the deck.
	if len(players)*HandSize >= DeckSize {
		return nil, fmt.Errorf("too many players for a %d-card deck: %d", DeckSize, len(players))
	}
	seen := make(map[string]bool, len(players))
	for _, id := range players {
		if id == "" {
			return nil, fmt.Errorf("empty player id")
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate player id %q", id)
		}
		seen[id] = true
	}

	deck := NewDeck()
	Shuffle(deck, rng)

	s := &GameState{
		Players: append([]string(nil), players...),
		Hands:   make(map[string][]Card, len(players)),
		Table:   make([]TablePair, 0, MaxTablePairs),
		Status:  StatusActive,
	}

	// Deal round-robin from the front of the deck: player 0 gets cards
	// 1, N+1, 2N+1, and so on.
	for _, id := range players {
		s.Hands[id] = make([]Card, 0, HandSize)
	}
	for round := 0; round < HandSize; round++ {
		for _, id := range players {
			s.Hands[id] = append(s.Hands[id], deck[0])
			deck = deck[1:]
		}
	}
	s.Deck = deck

	// The bottom card of the remaining draw pile fixes the trump suit. It
	// stays in the deck and is drawn last during replenishment.
	trump := s.Deck[len(s.Deck)-1]
	s.TrumpSuit = trump.Suit
	s.TrumpCard = &trump

	s.AttackerIndex = initialAttacker(s)
	s.DefenderIndex = (s.AttackerIndex + 1) % len(players)

	return s, nil
}

// initialAttacker returns the index of the player holding the lowest trump
// card. Ties break by player index; if nobody holds a trump, player 0 opens.
func initialAttacker(s *GameState) int {
	best := -1
	bestValue := 0
	for i, id := range s.Players {
		for _, c := range s.Hands[id] {
			if c.Suit != s.TrumpSuit {
				continue
			}
			if best == -1 || c.Rank.Value() < bestValue {
				best = i
				bestValue = c.Rank.Value()
			}
		}
	}
	if best == -1 {
		return 0
	}
	return best
}

// AttackerID returns the designated attacker's player id.
func (s *GameState) AttackerID() string {
	return s.Players[s.AttackerIndex]
}

// DefenderID returns the designated defender's player id.
func (s *GameState) DefenderID() string {
	return s.Players[s.DefenderIndex]
}

// playerIndex returns the seat index for a player id, or -1.
func (s *GameState) playerIndex(id string) int {
	for i, p := range s.Players {
		if p == id {
			return i
		}
	}
	return -1
}

// unbeatenCount returns how many table pairs still lack a defense card.
func (s *GameState) unbeatenCount() int {
	n := 0
	for _, p := range s.Table {
		if !p.Defended() {
			n++
		}
	}
	return n
}

// allDefended reports whether the table is non-empty and every pair on it
// carries a defense card.
func (s *GameState) allDefended() bool {
	if len(s.Table) == 0 {
		return false
	}
	return s.unbeatenCount() == 0
}

// tableRanks returns the set of ranks present on the table, counting both
// attack and defense cards.
func (s *GameState) tableRanks() map[Rank]bool {
	ranks := make(map[Rank]bool, len(s.Table)*2)
	for _, p := range s.Table {
		ranks[p.AttackCard.Rank] = true
		if p.DefenseCard != nil {
			ranks[p.DefenseCard.Rank] = true
		}
	}
	return ranks
}

// Clone returns a deep copy of the state. Engine actions operate on clones
// so a rejected action leaves the caller's state bit-for-bit untouched.
func (s *GameState) Clone() *GameState {
	c := *s
	c.Players = append([]string(nil), s.Players...)
	c.Deck = append([]Card(nil), s.Deck...)
	c.Discard = append([]Card(nil), s.Discard...)
	c.Hands = make(map[string][]Card, len(s.Hands))
	for id, hand := range s.Hands {
		c.Hands[id] = append([]Card(nil), hand...)
	}
	c.Table = make([]TablePair, len(s.Table))
	for i, p := range s.Table {
		c.Table[i] = p
		if p.DefenseCard != nil {
			defense := *p.DefenseCard
			c.Table[i].DefenseCard = &defense
		}
	}
	if s.TrumpCard != nil {
		trump := *s.TrumpCard
		c.TrumpCard = &trump
	}
	return &c
}

// CardCount returns the total number of cards across deck, hands, table and
// discard. It always equals DeckSize for a consistent state.
func (s *GameState) CardCount() int {
	n := len(s.Deck) + len(s.Discard)
	for _, hand := range s.Hands {
		n += len(hand)
	}
	for _, p := range s.Table {
		n++
		if p.DefenseCard != nil {
			n++
		}
	}
	return n
}

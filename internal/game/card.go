package game

import (
	"fmt"
	"math/rand"
)

// Suit identifies one of the four card suits.
type Suit string

const (
	SuitHearts   Suit = "hearts"
	SuitDiamonds Suit = "diamonds"
	SuitClubs    Suit = "clubs"
	SuitSpades   Suit = "spades"
)

// Suits lists all suits in deck construction order.
var Suits = []Suit{SuitHearts, SuitDiamonds, SuitClubs, SuitSpades}

// IsValid reports whether the suit is one of the four known suits.
func (s Suit) IsValid() bool {
	switch s {
	case SuitHearts, SuitDiamonds, SuitClubs, SuitSpades:
		return true
	}
	return false
}

// Rank identifies a card rank in the 36-card deck (6 through Ace).
type Rank string

const (
	Rank6     Rank = "6"
	Rank7     Rank = "7"
	Rank8     Rank = "8"
	Rank9     Rank = "9"
	Rank10    Rank = "10"
	RankJack  Rank = "J"
	RankQueen Rank = "Q"
	RankKing  Rank = "K"
	RankAce   Rank = "A"
)

// Ranks lists all ranks in ascending strength order.
var Ranks = []Rank{Rank6, Rank7, Rank8, Rank9, Rank10, RankJack, RankQueen, RankKing, RankAce}

var rankValues = map[Rank]int{
	Rank6:     6,
	Rank7:     7,
	Rank8:     8,
	Rank9:     9,
	Rank10:    10,
	RankJack:  11,
	RankQueen: 12,
	RankKing:  13,
	RankAce:   14,
}

// Value returns the total order over ranks: 6 is lowest, Ace is 14.
// Unknown ranks return 0, which sorts below every valid rank.
func (r Rank) Value() int {
	return rankValues[r]
}

// IsValid reports whether the rank belongs to the 36-card deck.
func (r Rank) IsValid() bool {
	_, ok := rankValues[r]
	return ok
}

// Card is an immutable card value. ID is a stable identifier assigned at
// deck construction time; the engine removes cards from hands by ID rather
// than by structural (suit, rank) equality.
type Card struct {
	ID   string `json:"id"`
	Suit Suit   `json:"suit"`
	Rank Rank   `json:"rank"`
}

func (c Card) String() string {
	return fmt.Sprintf("%s of %s", c.Rank, c.Suit)
}

// cardID builds the stable identifier for a (suit, rank) combination.
func cardID(s Suit, r Rank) string {
	return fmt.Sprintf("%s-%s", s, r)
}

// NewDeck returns all 36 cards in suit-major, rank-minor order, pre-shuffle.
func NewDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for _, s := range Suits {
		for _, r := range Ranks {
			deck = append(deck, Card{ID: cardID(s, r), Suit: s, Rank: r})
		}
	}
	return deck
}

// Shuffle applies a uniform random permutation to the deck in place. The rng
// is supplied by the caller so tests can replay deterministic deals. After
// shuffling, the last element of the deck is the revealed trump card.
func Shuffle(deck []Card, rng *rand.Rand) {
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
}

// Beats reports whether defense beats attack under the given trump suit.
// A defense wins with a higher rank of the same suit, or with any trump
// against a non-trump attack. Trump against trump falls through to the
// same-suit rank comparison.
func Beats(defense, attack Card, trump Suit) bool {
	if defense.Suit == attack.Suit {
		return defense.Rank.Value() > attack.Rank.Value()
	}
	return defense.Suit == trump
}

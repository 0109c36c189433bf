package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Snapshot is the persisted form of a game state. The storage layer consumes
// and produces it verbatim; the shape round-trips exactly through
// load -> mutate -> persist cycles.
//
// Beyond the core layout (trump, deck, table, hands, current attacker,
// status) the snapshot carries the seat order, the attacker-passed flag and
// the first player out: all three are round state that would otherwise be
// lost between load-per-action cycles.
type Snapshot struct {
	Players        []string          `json:"players"`
	TrumpSuit      Suit              `json:"trump_suit"`
	TrumpCard      *Card             `json:"trump_card,omitempty"`
	Deck           []Card            `json:"deck"`
	Discard        []Card            `json:"discard"`
	Table          []TablePair       `json:"table"`
	Hands          map[string][]Card `json:"hands"`
	Attacker       string            `json:"attacker"`
	AttackerPassed bool              `json:"attacker_passed,omitempty"`
	FirstEmptyID   string            `json:"first_empty_id,omitempty"`
	Status         Status            `json:"status"`
	Outcome        *Outcome          `json:"outcome,omitempty"`
}

// Snapshot renders the state into its persisted form.
func (s *GameState) Snapshot() *Snapshot {
	c := s.Clone()
	snap := &Snapshot{
		Players:        c.Players,
		TrumpSuit:      c.TrumpSuit,
		TrumpCard:      c.TrumpCard,
		Deck:           c.Deck,
		Discard:        c.Discard,
		Table:          c.Table,
		Hands:          c.Hands,
		Attacker:       c.AttackerID(),
		AttackerPassed: c.AttackerPassed,
		FirstEmptyID:   c.FirstEmptyID,
		Status:         c.Status,
	}
	if c.Outcome.Finished {
		outcome := c.Outcome
		snap.Outcome = &outcome
	}
	return snap
}

// Load restores a game state from its persisted form. All fields are taken
// verbatim; the turn indices are recomputed from the persisted attacker
// identity, falling back to the lowest-trump rule when that identity is
// missing or invalid. A snapshot that fails validation is corrupt data, not
// player behavior, and reports an integrity fault.
func Load(snap *Snapshot) (*GameState, error) {
	if snap == nil {
		return nil, fmt.Errorf("nil snapshot: %w", ErrIntegrity)
	}

	s := &GameState{
		Players:        append([]string(nil), snap.Players...),
		Hands:          make(map[string][]Card, len(snap.Hands)),
		Deck:           append([]Card(nil), snap.Deck...),
		Discard:        append([]Card(nil), snap.Discard...),
		Table:          make([]TablePair, len(snap.Table)),
		TrumpSuit:      snap.TrumpSuit,
		AttackerPassed: snap.AttackerPassed,
		FirstEmptyID:   snap.FirstEmptyID,
		Status:         snap.Status,
	}
	for id, hand := range snap.Hands {
		s.Hands[id] = append([]Card(nil), hand...)
	}
	for i, p := range snap.Table {
		s.Table[i] = p
		if p.DefenseCard != nil {
			defense := *p.DefenseCard
			s.Table[i].DefenseCard = &defense
		}
	}
	if snap.TrumpCard != nil {
		trump := *snap.TrumpCard
		s.TrumpCard = &trump
	}
	if snap.Outcome != nil {
		s.Outcome = *snap.Outcome
	}

	if err := validate(s); err != nil {
		return nil, err
	}

	if idx := s.playerIndex(snap.Attacker); idx >= 0 {
		s.AttackerIndex = idx
	} else {
		s.AttackerIndex = initialAttacker(s)
	}
	// Mid-round the defender may already have played their whole hand into
	// defenses, so the table attribution wins over seat rotation.
	s.DefenderIndex = -1
	for _, p := range s.Table {
		if p.DefenderID != "" {
			if idx := s.playerIndex(p.DefenderID); idx >= 0 {
				s.DefenderIndex = idx
				break
			}
		}
	}
	if s.DefenderIndex == -1 {
		s.DefenderIndex = nextHoldingIndex(s, s.AttackerIndex)
	}

	return s, nil
}

// validate checks the structural invariants of a restored state: known
// status and trump suit, every hand owned by a seated player, and card
// conservation: deck, hands, table and discard together hold exactly one full
// 36-card deck with no repeats and no omissions.
func validate(s *GameState) error {
	switch s.Status {
	case StatusWaiting, StatusActive, StatusFinished:
	default:
		return fmt.Errorf("unknown status %q: %w", s.Status, ErrIntegrity)
	}
	if len(s.Players) < MinPlayers {
		return fmt.Errorf("snapshot has %d players: %w", len(s.Players), ErrIntegrity)
	}
	if !s.TrumpSuit.IsValid() {
		return fmt.Errorf("unknown trump suit %q: %w", s.TrumpSuit, ErrIntegrity)
	}
	if len(s.Table) > MaxTablePairs {
		return fmt.Errorf("table holds %d pairs: %w", len(s.Table), ErrIntegrity)
	}
	for id := range s.Hands {
		if s.playerIndex(id) == -1 {
			return fmt.Errorf("hand owner %q is not seated: %w", id, ErrIntegrity)
		}
	}

	seen := make(map[string]bool, DeckSize)
	note := func(c Card) error {
		if !c.Suit.IsValid() || !c.Rank.IsValid() {
			return fmt.Errorf("invalid card %q: %w", c.ID, ErrIntegrity)
		}
		if c.ID != cardID(c.Suit, c.Rank) {
			return fmt.Errorf("card id %q does not match %s: %w", c.ID, c, ErrIntegrity)
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate card %s: %w", c, ErrIntegrity)
		}
		seen[c.ID] = true
		return nil
	}
	for _, c := range s.Deck {
		if err := note(c); err != nil {
			return err
		}
	}
	for _, c := range s.Discard {
		if err := note(c); err != nil {
			return err
		}
	}
	for _, id := range s.Players {
		for _, c := range s.Hands[id] {
			if err := note(c); err != nil {
				return err
			}
		}
	}
	for _, p := range s.Table {
		if err := note(p.AttackCard); err != nil {
			return err
		}
		if p.DefenseCard != nil {
			if err := note(*p.DefenseCard); err != nil {
				return err
			}
		}
	}
	if len(seen) != DeckSize {
		return fmt.Errorf("state holds %d cards, want %d: %w", len(seen), DeckSize, ErrIntegrity)
	}

	if s.TrumpCard != nil {
		if len(s.Deck) == 0 || s.Deck[len(s.Deck)-1].ID != s.TrumpCard.ID {
			return fmt.Errorf("revealed trump %s is not the bottom deck card: %w", s.TrumpCard, ErrIntegrity)
		}
	}

	return nil
}

// Checksum computes a deterministic digest of the snapshot. The storage
// layer persists it next to the snapshot and verifies it on load to detect
// corrupt or hand-edited rows.
func (snap *Snapshot) Checksum() string {
	sum := sha256.Sum256([]byte(snap.canonical()))
	return hex.EncodeToString(sum[:])
}

// canonical renders the snapshot into a string independent of map iteration
// order. Deck and table order matter and are kept; hands are emitted in
// sorted player order.
func (snap *Snapshot) canonical() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "GAME:%s|%s|%s|%t|%s\n",
		snap.Status, snap.TrumpSuit, snap.Attacker, snap.AttackerPassed, snap.FirstEmptyID)
	if snap.TrumpCard != nil {
		fmt.Fprintf(&buf, "TRUMP_CARD:%s\n", snap.TrumpCard.ID)
	}
	if snap.Outcome != nil {
		fmt.Fprintf(&buf, "OUTCOME:%t|%s|%s\n", snap.Outcome.Draw, snap.Outcome.WinnerID, snap.Outcome.LoserID)
	}

	buf.WriteString("PLAYERS:")
	buf.WriteString(strings.Join(snap.Players, ","))
	buf.WriteString("\n")

	buf.WriteString("DECK:")
	for i, c := range snap.Deck {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString(c.ID)
	}
	buf.WriteString("\n")

	buf.WriteString("DISCARD:")
	for i, c := range snap.Discard {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString(c.ID)
	}
	buf.WriteString("\n")

	for i, p := range snap.Table {
		defense := "-"
		if p.DefenseCard != nil {
			defense = p.DefenseCard.ID
		}
		fmt.Fprintf(&buf, "PAIR:%d|%s|%s|%s|%s\n", i, p.AttackCard.ID, defense, p.AttackerID, p.DefenderID)
	}

	ids := make([]string, 0, len(snap.Hands))
	for id := range snap.Hands {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(&buf, "HAND:%s:", id)
		for i, c := range snap.Hands[id] {
			if i > 0 {
				buf.WriteString(",")
			}
			buf.WriteString(c.ID)
		}
		buf.WriteString("\n")
	}

	return buf.String()
}

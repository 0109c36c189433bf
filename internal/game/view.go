package game

// PlayerSummary is one player's slot in a projection. Hand is populated only
// for the viewer, or for everyone once the game is finished.
type PlayerSummary struct {
	PlayerID  string `json:"player_id"`
	CardCount int    `json:"card_count"`
	Hand      []Card `json:"hand,omitempty"`
}

// GameView is the player-scoped, partially redacted projection of a game
// state. It is the only shape ever sent to a client: opponents' hands are
// reduced to counts and the draw pile to its size, while the table, trump
// and turn identities are public.
type GameView struct {
	Status     Status          `json:"status"`
	TrumpSuit  Suit            `json:"trump_suit"`
	TrumpCard  *Card           `json:"trump_card,omitempty"`
	DeckCount  int             `json:"deck_count"`
	AttackerID string          `json:"attacker_id"`
	DefenderID string          `json:"defender_id"`
	Table      []TablePair     `json:"table"`
	Players    []PlayerSummary `json:"players"`
	Outcome    Outcome         `json:"outcome"`
}

// Project builds the view of s for viewerID. An empty viewer id produces a
// fully redacted spectator view.
func Project(s *GameState, viewerID string) *GameView {
	view := &GameView{
		Status:     s.Status,
		TrumpSuit:  s.TrumpSuit,
		DeckCount:  len(s.Deck),
		AttackerID: s.AttackerID(),
		DefenderID: s.DefenderID(),
		Table:      make([]TablePair, len(s.Table)),
		Players:    make([]PlayerSummary, 0, len(s.Players)),
		Outcome:    s.Outcome,
	}

	// The table is public; copy defense cards so callers cannot reach back
	// into the state through the view.
	for i, p := range s.Table {
		view.Table[i] = p
		if p.DefenseCard != nil {
			defense := *p.DefenseCard
			view.Table[i].DefenseCard = &defense
		}
	}

	if s.TrumpCard != nil {
		trump := *s.TrumpCard
		view.TrumpCard = &trump
	}

	for _, id := range s.Players {
		summary := PlayerSummary{PlayerID: id, CardCount: len(s.Hands[id])}
		if id == viewerID || s.Status == StatusFinished {
			summary.Hand = append([]Card(nil), s.Hands[id]...)
		}
		view.Players = append(view.Players, summary)
	}

	return view
}

package game

// closeRound discards or absorbs the table (the caller has already moved
// taken cards), replenishes hands, advances the turn cursor and runs the
// termination check. defenderTook distinguishes a conceded round from bito.
func closeRound(s *GameState, defenderTook bool) {
	order := replenishOrder(s, defenderTook)
	oldDefender := s.DefenderIndex

	if !defenderTook {
		for _, pair := range s.Table {
			s.Discard = append(s.Discard, pair.AttackCard)
			if pair.DefenseCard != nil {
				s.Discard = append(s.Discard, *pair.DefenseCard)
			}
		}
	}
	s.Table = s.Table[:0]
	s.AttackerPassed = false
	replenish(s, order)

	// After a take the taker loses the attack: play resumes one seat past
	// them. After bito the defender becomes the attacker. Empty-handed
	// players (possible only once the deck is dry) drop out of rotation.
	if defenderTook {
		s.AttackerIndex = nextHoldingIndex(s, oldDefender)
	} else if len(s.Hands[s.Players[oldDefender]]) > 0 {
		s.AttackerIndex = oldDefender
	} else {
		s.AttackerIndex = nextHoldingIndex(s, oldDefender)
	}
	s.DefenderIndex = nextHoldingIndex(s, s.AttackerIndex)

	checkTermination(s)
}

// replenishOrder returns player ids in draw priority order: the round's
// designated attacker, then every other player who threw in cards this
// round in the order they first threw in, then the defender, who draws only
// when the round closed with every pair defended. A defender who took the table
// already absorbed cards and is replenished next round instead.
func replenishOrder(s *GameState, defenderTook bool) []string {
	order := make([]string, 0, len(s.Players))
	seen := make(map[string]bool, len(s.Players))

	attacker := s.AttackerID()
	order = append(order, attacker)
	seen[attacker] = true

	for _, pair := range s.Table {
		if !seen[pair.AttackerID] {
			order = append(order, pair.AttackerID)
			seen[pair.AttackerID] = true
		}
	}

	if !defenderTook {
		defender := s.DefenderID()
		if !seen[defender] {
			order = append(order, defender)
		}
	}
	return order
}

// replenish tops up the listed hands to HandSize, drawing from the front of
// the deck until it is empty. The revealed trump card is the literal bottom
// card, so it is drawn last; once it lands in a hand the reveal is cleared.
func replenish(s *GameState, order []string) {
	for _, id := range order {
		for len(s.Hands[id]) < HandSize && len(s.Deck) > 0 {
			card := s.Deck[0]
			s.Deck = s.Deck[1:]
			s.Hands[id] = append(s.Hands[id], card)
			if s.TrumpCard != nil && card.ID == s.TrumpCard.ID {
				s.TrumpCard = nil
			}
		}
	}
}

// nextHoldingIndex returns the next seat after from holding at least one
// card. While the deck lasts every hand is non-empty after replenishment,
// so this is plain (from+1) mod N; in the endgame it skips players who
// already went out.
func nextHoldingIndex(s *GameState, from int) int {
	n := len(s.Players)
	for step := 1; step <= n; step++ {
		idx := (from + step) % n
		if len(s.Hands[s.Players[idx]]) > 0 {
			return idx
		}
	}
	return (from + 1) % n
}

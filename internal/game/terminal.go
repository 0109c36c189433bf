package game

// checkTermination decides the game result. It only ever fires once the
// deck is exhausted; until then durak cannot end.
//
//   - nobody holds cards: draw, no winner or loser
//   - exactly one player holds cards: that player is the durak (loser);
//     the winner is the other player in a two-player game, or the first
//     player to have emptied their hand otherwise
//   - two or more players hold cards: play continues
//
// On a result the status flips to finished and no further actions are
// accepted.
func checkTermination(s *GameState) {
	if len(s.Deck) > 0 {
		return
	}

	recordFirstEmpty(s)

	holding := make([]string, 0, len(s.Players))
	for _, id := range s.Players {
		if len(s.Hands[id]) > 0 {
			holding = append(holding, id)
		}
	}

	switch len(holding) {
	case 0:
		s.Outcome = Outcome{Finished: true, Draw: true}
	case 1:
		loser := holding[0]
		winner := ""
		if len(s.Players) == 2 {
			for _, id := range s.Players {
				if id != loser {
					winner = id
				}
			}
		} else {
			winner = s.FirstEmptyID
		}
		s.Outcome = Outcome{Finished: true, WinnerID: winner, LoserID: loser}
	default:
		return
	}

	s.Status = StatusFinished
}

// recordFirstEmpty notes the first player to go out once the deck is dry.
// Seat order breaks ties when several hands empty in the same round.
func recordFirstEmpty(s *GameState) {
	if s.FirstEmptyID != "" {
		return
	}
	for _, id := range s.Players {
		if len(s.Hands[id]) == 0 {
			s.FirstEmptyID = id
			return
		}
	}
}

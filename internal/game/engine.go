package game

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// ErrIntegrity marks faults that indicate a bug or corrupt data rather than
// player behavior: a referenced card missing from a hand, a player id that
// is not part of the game, a snapshot that fails validation. Actions that
// return it leave the input state unmutated.
var ErrIntegrity = errors.New("game state integrity fault")

// Result is the outcome of one engine action. Rule violations never surface
// as Go errors; they come back with Applied=false and a human-readable
// Reason, and the input state is returned unchanged.
type Result struct {
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
	// RoundClosed is set when the action ended the round (take or settle).
	RoundClosed bool `json:"round_closed,omitempty"`
}

func reject(reason string) Result {
	return Result{Applied: false, Reason: reason}
}

func applied(message string) Result {
	return Result{Applied: true, Message: message}
}

// Engine validates and applies durak actions. It holds no game state of its
// own: every action is a function from (state, player, parameters) to
// (new state, result). The hosting layer must serialize actions per game.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates an engine. A nil logger disables logging.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// checkActive rejects actions on games that are not in progress and reports
// integrity faults for unknown players. The returned Result is meaningful
// only when ok is false and err is nil.
func (e *Engine) checkActive(s *GameState, playerID string) (Result, bool, error) {
	if s.Status == StatusFinished {
		return reject("game is finished"), false, nil
	}
	if s.Status != StatusActive {
		return reject("game is not active"), false, nil
	}
	if s.playerIndex(playerID) == -1 {
		return Result{}, false, fmt.Errorf("player %q is not part of the game: %w", playerID, ErrIntegrity)
	}
	return Result{}, true, nil
}

// Attack plays one or more cards from the acting player's hand as attack
// cards. With an empty table this is the opening attack and only the
// designated attacker may act; with a non-empty table it is a throw-in and
// any player other than the defender may act, subject to the throw-in rank
// and capacity rules. Each new pair records the actual thrower.
func (e *Engine) Attack(s *GameState, playerID string, handIndices []int) (*GameState, Result, error) {
	if res, ok, err := e.checkActive(s, playerID); !ok {
		return s, res, err
	}

	if len(handIndices) == 0 {
		return s, reject("no cards selected"), nil
	}
	if playerID == s.DefenderID() {
		return s, reject("defender cannot attack"), nil
	}

	opening := len(s.Table) == 0
	if opening && playerID != s.AttackerID() {
		return s, reject("not the current attacker"), nil
	}
	if !opening && s.AttackerPassed {
		return s, reject("attacker has passed; the round is closing"), nil
	}

	hand := s.Hands[playerID]
	indices := append([]int(nil), handIndices...)
	sort.Ints(indices)
	for i, idx := range indices {
		if idx < 0 || idx >= len(hand) {
			return s, reject(fmt.Sprintf("card index %d out of range", idx)), nil
		}
		if i > 0 && indices[i-1] == idx {
			return s, reject(fmt.Sprintf("card index %d selected twice", idx)), nil
		}
	}

	selected := make([]Card, len(indices))
	for i, idx := range indices {
		selected[i] = hand[idx]
	}

	defenderHand := len(s.Hands[s.DefenderID()])
	if len(s.Table)+len(selected) > MaxTablePairs {
		return s, reject(fmt.Sprintf("table cannot hold more than %d attack cards", MaxTablePairs)), nil
	}

	if opening {
		openRank := selected[0].Rank
		for _, c := range selected[1:] {
			if c.Rank != openRank {
				return s, reject("opening attack cards must share one rank"), nil
			}
		}
		if len(selected) > defenderHand {
			return s, reject("defender does not hold enough cards"), nil
		}
	} else {
		ranks := s.tableRanks()
		for _, c := range selected {
			if !ranks[c.Rank] {
				return s, reject(fmt.Sprintf("rank %s is not on the table", c.Rank)), nil
			}
		}
		if len(selected) > defenderHand-s.unbeatenCount() {
			return s, reject("defender cannot cover that many cards"), nil
		}
	}

	next := s.Clone()
	if err := removeFromHand(next, playerID, selected); err != nil {
		return s, Result{}, err
	}
	for _, c := range selected {
		next.Table = append(next.Table, TablePair{AttackCard: c, AttackerID: playerID})
	}

	e.logger.Debug("attack applied",
		zap.String("player_id", playerID),
		zap.Int("cards", len(selected)),
		zap.Int("table_size", len(next.Table)),
		zap.Bool("opening", opening),
	)
	return next, applied(fmt.Sprintf("%s attacks with %d card(s)", playerID, len(selected))), nil
}

// Defend covers the attack card at tableIndex with the defender's card at
// handIndex. The defense must beat the attack under Beats.
func (e *Engine) Defend(s *GameState, playerID string, tableIndex, handIndex int) (*GameState, Result, error) {
	if res, ok, err := e.checkActive(s, playerID); !ok {
		return s, res, err
	}

	if playerID != s.DefenderID() {
		return s, reject("not the current defender"), nil
	}
	if tableIndex < 0 || tableIndex >= len(s.Table) {
		return s, reject(fmt.Sprintf("table index %d out of range", tableIndex)), nil
	}
	pair := s.Table[tableIndex]
	if pair.Defended() {
		return s, reject("that attack is already beaten"), nil
	}
	hand := s.Hands[playerID]
	if handIndex < 0 || handIndex >= len(hand) {
		return s, reject(fmt.Sprintf("card index %d out of range", handIndex)), nil
	}
	defense := hand[handIndex]
	if !Beats(defense, pair.AttackCard, s.TrumpSuit) {
		return s, reject(fmt.Sprintf("%s does not beat %s", defense, pair.AttackCard)), nil
	}

	next := s.Clone()
	if err := removeFromHand(next, playerID, []Card{defense}); err != nil {
		return s, Result{}, err
	}
	covered := defense
	next.Table[tableIndex].DefenseCard = &covered
	next.Table[tableIndex].DefenderID = playerID

	e.logger.Debug("defense applied",
		zap.String("player_id", playerID),
		zap.String("attack", pair.AttackCard.String()),
		zap.String("defense", defense.String()),
	)
	return next, applied(fmt.Sprintf("%s beats %s with %s", playerID, pair.AttackCard, defense)), nil
}

// TakeCards concedes the round: every card on the table moves into the
// defender's hand, hands are replenished (the taker is skipped this pass),
// and the turn cursor skips the taker. Runs the termination check.
func (e *Engine) TakeCards(s *GameState, playerID string) (*GameState, Result, error) {
	if res, ok, err := e.checkActive(s, playerID); !ok {
		return s, res, err
	}

	if playerID != s.DefenderID() {
		return s, reject("not the current defender"), nil
	}
	if len(s.Table) == 0 {
		return s, reject("there is nothing to take"), nil
	}

	next := s.Clone()
	taken := 0
	for _, pair := range next.Table {
		next.Hands[playerID] = append(next.Hands[playerID], pair.AttackCard)
		taken++
		if pair.DefenseCard != nil {
			next.Hands[playerID] = append(next.Hands[playerID], *pair.DefenseCard)
			taken++
		}
	}
	closeRound(next, true)

	e.logger.Debug("defender took cards",
		zap.String("player_id", playerID),
		zap.Int("cards", taken),
	)
	res := applied(fmt.Sprintf("%s takes %d card(s)", playerID, taken))
	res.RoundClosed = true
	return next, res, nil
}

// PassOrSettle ends the round when every pair is defended (bito), or records
// that the attacker declines further throw-ins when unbeaten cards remain.
// Only the round's designated attacker may call it.
func (e *Engine) PassOrSettle(s *GameState, playerID string) (*GameState, Result, error) {
	if res, ok, err := e.checkActive(s, playerID); !ok {
		return s, res, err
	}

	if playerID != s.AttackerID() {
		return s, reject("not the current attacker"), nil
	}
	if len(s.Table) == 0 {
		return s, reject("there is nothing to settle"), nil
	}

	if s.allDefended() {
		next := s.Clone()
		closeRound(next, false)
		e.logger.Debug("round settled", zap.String("player_id", playerID))
		res := applied("all attacks beaten; table discarded")
		res.RoundClosed = true
		return next, res, nil
	}

	// Unbeaten cards remain: the pass only blocks further throw-ins. The
	// defender must now either finish defending or take.
	if s.AttackerPassed {
		return s, reject("attacker has already passed"), nil
	}
	next := s.Clone()
	next.AttackerPassed = true
	e.logger.Debug("attacker passed", zap.String("player_id", playerID))
	return next, applied(fmt.Sprintf("%s passes; defender must beat or take", playerID)), nil
}

// removeFromHand removes the given cards from a hand by card ID. A missing
// card is an integrity fault: callers validate selections against the same
// state before cloning, so it can only mean corrupted state.
func removeFromHand(s *GameState, playerID string, cards []Card) error {
	hand := s.Hands[playerID]
	for _, c := range cards {
		found := -1
		for i, h := range hand {
			if h.ID == c.ID {
				found = i
				break
			}
		}
		if found == -1 {
			return fmt.Errorf("card %s not found in hand of %s: %w", c, playerID, ErrIntegrity)
		}
		hand = append(hand[:found], hand[found+1:]...)
	}
	s.Hands[playerID] = hand
	return nil
}

package game

import (
	"fmt"
	"sync"
)

// Rules are fixed when a room is created.
type Rules struct {
	TotalRounds     int
	RoundsToWin     int
	StartingBalance int
	MinPlayers      int
}

// DefaultRules returns the standard match format: best of five rounds, first
// to three wins, 100 to spend, at least two players.
func DefaultRules() Rules {
	return Rules{
		TotalRounds:     5,
		RoundsToWin:     3,
		StartingBalance: 100,
		MinPlayers:      2,
	}
}

// RoundResult is one entry of a room's round history.
type RoundResult struct {
	Round      int    `json:"round"`
	WinnerID   string `json:"winnerId"`
	WinnerName string `json:"winnerName"`
	BetAmount  int    `json:"betAmount"`
}

// RoundResolution describes what ResolveRound did.
type RoundResolution struct {
	Round     int
	HasWinner bool
	Result    RoundResult
	Tied      []string
	Bets      []Bet
	GameOver  bool
}

// GameResult describes the end of a match.
type GameResult struct {
	HasWinner    bool
	Winner       Player
	RoundResults []RoundResult
	Players      []Player
}

// RoomSummary is a lightweight view of a room for listings.
type RoomSummary struct {
	ID           string `json:"id"`
	Phase        Phase  `json:"phase"`
	PlayerCount  int    `json:"playerCount"`
	CurrentRound int    `json:"currentRound"`
	TotalRounds  int    `json:"totalRounds"`
}

// Room holds the authoritative state of one match.
//
// Room does no locking of its own: every method other than Lock and Unlock
// must be called with the room locked, and a caller keeps the lock for the
// whole read-validate-mutate sequence of an action.
type Room struct {
	ID    string
	Rules Rules

	mu           sync.Mutex
	players      map[string]*Player
	order        []string // player ids in join order
	phase        Phase
	currentRound int
	bets         *BetLedger
	history      []RoundResult
	closed       bool
}

// NewRoom creates a room in the waiting phase.
func NewRoom(id string, rules Rules) *Room {
	return &Room{
		ID:      id,
		Rules:   rules,
		players: make(map[string]*Player),
		phase:   PhaseWaiting,
		bets:    NewBetLedger(),
	}
}

// Lock acquires the room for one action.
func (r *Room) Lock() { r.mu.Lock() }

// Unlock releases the room.
func (r *Room) Unlock() { r.mu.Unlock() }

func (r *Room) Phase() Phase      { return r.phase }
func (r *Room) CurrentRound() int { return r.currentRound }
func (r *Room) Closed() bool      { return r.closed }
func (r *Room) PlayerCount() int  { return len(r.players) }
func (r *Room) BetCount() int     { return r.bets.Len() }

// Player looks up a player by id.
func (r *Room) Player(id string) (*Player, bool) {
	p, ok := r.players[id]
	return p, ok
}

// Players returns a copy of the roster in join order.
func (r *Room) Players() []Player {
	players := make([]Player, 0, len(r.order))
	for _, id := range r.order {
		players = append(players, *r.players[id])
	}
	return players
}

// Bets returns the current round's bets in the order they were placed.
func (r *Room) Bets() []Bet {
	return r.bets.Entries()
}

// History returns a copy of the round history.
func (r *Room) History() []RoundResult {
	history := make([]RoundResult, len(r.history))
	copy(history, r.history)
	return history
}

// Summary returns a listing view of the room.
func (r *Room) Summary() RoomSummary {
	return RoomSummary{
		ID:           r.ID,
		Phase:        r.phase,
		PlayerCount:  len(r.players),
		CurrentRound: r.currentRound,
		TotalRounds:  r.Rules.TotalRounds,
	}
}

func (r *Room) transition(next Phase) error {
	if r.closed {
		return ErrRoomClosed
	}
	if !r.phase.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.phase, next)
	}
	r.phase = next
	return nil
}

// AddPlayer seats a new player. Players can only join before the game starts.
func (r *Room) AddPlayer(id, name, connID string) (*Player, error) {
	if r.closed {
		return nil, ErrRoomClosed
	}
	if r.phase != PhaseWaiting {
		return nil, ErrGameAlreadyStarted
	}
	if _, exists := r.players[id]; exists {
		return nil, fmt.Errorf("duplicate player id %s", id)
	}

	player := NewPlayer(id, name, connID, r.Rules.StartingBalance)
	r.players[id] = player
	r.order = append(r.order, id)
	return player, nil
}

// RemovePlayer drops a player and any bet they placed this round.
func (r *Room) RemovePlayer(id string) (*Player, bool) {
	player, ok := r.players[id]
	if !ok {
		return nil, false
	}

	delete(r.players, id)
	r.bets.Remove(id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return player, true
}

// Start moves a waiting room into the first betting round.
func (r *Room) Start() error {
	if r.closed {
		return ErrRoomClosed
	}
	if r.phase != PhaseWaiting {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, r.phase)
	}
	if len(r.players) < r.Rules.MinPlayers {
		return &InsufficientPlayersError{Players: len(r.players), Required: r.Rules.MinPlayers}
	}

	if err := r.transition(PhaseBetting); err != nil {
		return err
	}
	r.currentRound = 1
	r.bets.Reset()
	return nil
}

// PlaceBet records a bet and takes the amount from the player's balance.
func (r *Room) PlaceBet(playerID string, amount int) (*Player, error) {
	if r.closed {
		return nil, ErrRoomClosed
	}
	if r.phase != PhaseBetting {
		return nil, ErrNotBetting
	}
	player, ok := r.players[playerID]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if _, placed := r.bets.Amount(playerID); placed {
		return nil, ErrBetAlreadyPlaced
	}
	if !player.CanAfford(amount) {
		return nil, &InsufficientFundsError{Balance: player.Balance, Amount: amount}
	}

	r.bets.Record(playerID, amount)
	player.Balance -= amount
	return player, nil
}

// RoundComplete reports whether every player in the room has bet.
func (r *Room) RoundComplete() bool {
	return !r.closed &&
		r.phase == PhaseBetting &&
		len(r.players) > 0 &&
		r.bets.Len() == len(r.players)
}

// ResolveRound settles the current round and moves the room to roundEnd.
//
// It only runs from the betting phase, so a second call for the same round
// fails with ErrInvalidTransition and does not touch the tallies. A round with
// no bets has no winner: nothing is recorded and only the round counter counts
// toward the end of the game.
func (r *Room) ResolveRound() (RoundResolution, error) {
	if err := r.transition(PhaseRoundEnd); err != nil {
		return RoundResolution{}, err
	}

	bets := r.bets.Entries()
	resolution := RoundResolution{
		Round: r.currentRound,
		Bets:  bets,
	}

	winnerRounds := 0
	if outcome, ok := ResolveBets(bets); ok {
		winner := r.players[outcome.WinnerID]
		winner.RoundsWon++
		winnerRounds = winner.RoundsWon

		result := RoundResult{
			Round:      r.currentRound,
			WinnerID:   winner.ID,
			WinnerName: winner.Name,
			BetAmount:  outcome.Amount,
		}
		r.history = append(r.history, result)

		resolution.HasWinner = true
		resolution.Result = result
		resolution.Tied = outcome.Tied
	}

	resolution.GameOver = gameOver(r.Rules, r.currentRound, winnerRounds)
	return resolution, nil
}

// StartNextRound clears the ledger and opens the next betting round.
func (r *Room) StartNextRound() error {
	if r.phase == PhaseRoundEnd && r.currentRound >= r.Rules.TotalRounds {
		return fmt.Errorf("%w: round %d is the last", ErrInvalidTransition, r.currentRound)
	}
	if err := r.transition(PhaseBetting); err != nil {
		return err
	}
	r.bets.Reset()
	r.currentRound++
	return nil
}

// EndGame moves the room to gameEnd and works out the match winner.
func (r *Room) EndGame() (GameResult, error) {
	if err := r.transition(PhaseGameEnd); err != nil {
		return GameResult{}, err
	}

	players := r.Players()
	winner, ok := MatchWinner(players)
	return GameResult{
		HasWinner:    ok,
		Winner:       winner,
		RoundResults: r.History(),
		Players:      players,
	}, nil
}

// Close marks the room destroyed. It returns false if it already was.
func (r *Room) Close() bool {
	if r.closed {
		return false
	}
	r.closed = true
	return true
}

package game

import (
	"errors"
	"fmt"
)

// Validation errors. These are reported to the acting player only and never
// change room state.
var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrGameAlreadyStarted  = errors.New("game already started")
	ErrInsufficientPlayers = errors.New("insufficient players")
	ErrInvalidAmount       = errors.New("invalid bet amount")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrBetAlreadyPlaced    = errors.New("bet already placed this round")
	ErrAlreadyInRoom       = errors.New("connection already in a room")
)

// Benign races: an action that arrives for a room or player that has gone away,
// or in a phase where it does not apply. Callers drop these silently.
var (
	ErrRoomClosed        = errors.New("room closed")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrNotBetting        = errors.New("room is not accepting bets")
	ErrInvalidTransition = errors.New("invalid phase transition")
)

// InsufficientFundsError carries the player's balance at the time of the bet.
type InsufficientFundsError struct {
	Balance int
	Amount  int
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("bet of %d exceeds balance of %d", e.Amount, e.Balance)
}

// Is makes errors.Is(err, ErrInsufficientFunds) match.
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// InsufficientPlayersError carries the seated count and the minimum the
// room's rules require.
type InsufficientPlayersError struct {
	Players  int
	Required int
}

func (e *InsufficientPlayersError) Error() string {
	return fmt.Sprintf("need %d players, have %d", e.Required, e.Players)
}

// Is makes errors.Is(err, ErrInsufficientPlayers) match.
func (e *InsufficientPlayersError) Is(target error) bool {
	return target == ErrInsufficientPlayers
}

// IsBenign reports whether err is a stale-state race that should be ignored.
func IsBenign(err error) bool {
	return errors.Is(err, ErrRoomClosed) ||
		errors.Is(err, ErrPlayerNotFound) ||
		errors.Is(err, ErrNotBetting) ||
		errors.Is(err, ErrInvalidTransition)
}

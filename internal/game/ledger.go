package game

// Bet is one entry in a round's bet ledger.
type Bet struct {
	PlayerID string `json:"playerId"`
	Amount   int    `json:"amount"`
}

// BetLedger records the current round's bets in the order they were placed.
// Iteration order is insertion order, which the tie-break relies on.
type BetLedger struct {
	order   []string
	amounts map[string]int
}

// NewBetLedger returns an empty ledger.
func NewBetLedger() *BetLedger {
	return &BetLedger{amounts: make(map[string]int)}
}

// Record stores a bet. It returns false without changing anything if the
// player already has a bet this round.
func (l *BetLedger) Record(playerID string, amount int) bool {
	if _, exists := l.amounts[playerID]; exists {
		return false
	}
	l.order = append(l.order, playerID)
	l.amounts[playerID] = amount
	return true
}

// Remove drops a player's bet, keeping the order of the rest.
func (l *BetLedger) Remove(playerID string) bool {
	if _, exists := l.amounts[playerID]; !exists {
		return false
	}
	delete(l.amounts, playerID)
	for i, id := range l.order {
		if id == playerID {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return true
}

// Amount returns the player's bet, if any.
func (l *BetLedger) Amount(playerID string) (int, bool) {
	amount, ok := l.amounts[playerID]
	return amount, ok
}

// Len returns the number of bets recorded.
func (l *BetLedger) Len() int {
	return len(l.order)
}

// Entries returns the bets in insertion order.
func (l *BetLedger) Entries() []Bet {
	bets := make([]Bet, 0, len(l.order))
	for _, id := range l.order {
		bets = append(bets, Bet{PlayerID: id, Amount: l.amounts[id]})
	}
	return bets
}

// Map returns a copy of the ledger keyed by player id.
func (l *BetLedger) Map() map[string]int {
	m := make(map[string]int, len(l.amounts))
	for id, amount := range l.amounts {
		m[id] = amount
	}
	return m
}

// Reset clears the ledger for a new round.
func (l *BetLedger) Reset() {
	l.order = l.order[:0]
	clear(l.amounts)
}

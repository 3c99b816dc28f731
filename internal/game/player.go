package game

// Player is a participant in a single room.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Balance   int    `json:"balance"`
	RoundsWon int    `json:"roundsWon"`

	// ConnID routes player-specific messages back to the transport. It is a
	// lookup key only and goes stale once the connection drops.
	ConnID string `json:"-"`
}

// NewPlayer creates a player with the given starting balance.
func NewPlayer(id, name, connID string, balance int) *Player {
	return &Player{
		ID:      id,
		Name:    name,
		Balance: balance,
		ConnID:  connID,
	}
}

// CanAfford returns true if the player can cover amount
func (p *Player) CanAfford(amount int) bool {
	return amount <= p.Balance
}

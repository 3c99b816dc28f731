package game

// RoundOutcome is the result of resolving one round's bets.
type RoundOutcome struct {
	WinnerID string
	Amount   int
	// Tied lists every player that bet the maximum, in the order the bets
	// were recorded. The winner is always Tied[0].
	Tied []string
}

// ResolveBets picks the round winner from bets in recorded order: the highest
// amount wins and ties go to whichever qualifying bet was recorded first.
// ok is false when there are no bets.
//
// First-recorded-wins is a fixed house rule, not a fairness guarantee.
func ResolveBets(bets []Bet) (outcome RoundOutcome, ok bool) {
	if len(bets) == 0 {
		return RoundOutcome{}, false
	}

	highest := 0
	var tied []string
	for _, bet := range bets {
		switch {
		case bet.Amount > highest:
			highest = bet.Amount
			tied = []string{bet.PlayerID}
		case bet.Amount == highest:
			tied = append(tied, bet.PlayerID)
		}
	}

	return RoundOutcome{
		WinnerID: tied[0],
		Amount:   highest,
		Tied:     tied,
	}, true
}

// MatchWinner picks the overall winner from a roster in join order: the
// player with strictly the most round wins, earlier joiners winning ties.
// ok is false when nobody in the roster has won a round.
func MatchWinner(players []Player) (winner Player, ok bool) {
	best := 0
	for _, p := range players {
		if p.RoundsWon > best {
			best = p.RoundsWon
			winner = p
			ok = true
		}
	}
	return winner, ok
}

// gameOver reports whether the match ends after the given round.
func gameOver(rules Rules, round, winnerRounds int) bool {
	return winnerRounds >= rules.RoundsToWin || round >= rules.TotalRounds
}

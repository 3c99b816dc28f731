// Package game implements the room and round state machine for sealed-bid
// betting matches.
//
// A Room moves through four phases:
//
//	waiting -> betting -> roundEnd -> betting -> ... -> gameEnd
//
// Every player bets once per round. When every player in the room has bet,
// the round is resolved: the highest bet wins and ties go to the bet that was
// recorded first. Bets are spent whether they win or not. The match ends as
// soon as a player reaches Rules.RoundsToWin, or after Rules.TotalRounds.
//
// # Basic Usage
//
//	reg := game.NewRegistry(game.DefaultRules())
//	room := reg.Create()
//
//	room.Lock()
//	defer room.Unlock()
//	alice, _ := room.AddPlayer("p1", "Alice", "conn-1")
//	bob, _ := room.AddPlayer("p2", "Bob", "conn-2")
//	_ = room.Start()
//	_, _ = room.PlaceBet(alice.ID, 30)
//	_, _ = room.PlaceBet(bob.ID, 30)
//	if room.RoundComplete() {
//	    res, _ := room.ResolveRound() // Alice wins the tie
//	}
//
// # Concurrency
//
// Room methods are not safe for concurrent use on their own. Callers hold the
// room's lock for the whole of an action, including any resolution it
// triggers, so two actions on the same room never interleave. Rooms are
// independent of each other; no operation locks more than one room.
//
// Timers and transport live outside this package; see internal/server.
package game

package server

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/lox/bidroom/internal/game"
)

// StatsSnapshot is a point-in-time copy of the collected counters.
type StatsSnapshot struct {
	RoomsCreated   int
	GamesStarted   int
	GamesFinished  int
	RoundsPlayed   int
	RoundsTied     int
	RoundsEmpty    int
	TotalWagered   int
	BiggestBet     int
	ClosedByReason map[string]int
}

// StatsMonitor implements RoomMonitor and keeps aggregate counters
type StatsMonitor struct {
	mu    sync.RWMutex
	stats StatsSnapshot
}

// NewStatsMonitor creates an empty stats monitor
func NewStatsMonitor() *StatsMonitor {
	return &StatsMonitor{
		stats: StatsSnapshot{ClosedByReason: make(map[string]int)},
	}
}

func (s *StatsMonitor) OnRoomCreated(string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.RoomsCreated++
}

func (s *StatsMonitor) OnGameStarted(string, []game.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.GamesStarted++
}

func (s *StatsMonitor) OnRoundEnded(report RoundReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.RoundsPlayed++
	res := report.Resolution
	if !res.HasWinner {
		s.stats.RoundsEmpty++
	}
	if len(res.Tied) > 1 {
		s.stats.RoundsTied++
	}
	for _, bet := range res.Bets {
		s.stats.TotalWagered += bet.Amount
		if bet.Amount > s.stats.BiggestBet {
			s.stats.BiggestBet = bet.Amount
		}
	}
}

func (s *StatsMonitor) OnGameEnded(GameReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.GamesFinished++
}

func (s *StatsMonitor) OnRoomClosed(_ string, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.ClosedByReason[reason]++
}

// Snapshot returns a copy of the current counters
func (s *StatsMonitor) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.stats
	snap.ClosedByReason = make(map[string]int, len(s.stats.ClosedByReason))
	for reason, n := range s.stats.ClosedByReason {
		snap.ClosedByReason[reason] = n
	}
	return snap
}

// WriteTo renders the counters as plain text, one per line
func (s *StatsMonitor) WriteTo(w io.Writer) (int64, error) {
	snap := s.Snapshot()

	var total int64
	write := func(format string, args ...interface{}) error {
		n, err := fmt.Fprintf(w, format, args...)
		total += int64(n)
		return err
	}

	lines := []struct {
		name  string
		value int
	}{
		{"rooms_created", snap.RoomsCreated},
		{"games_started", snap.GamesStarted},
		{"games_finished", snap.GamesFinished},
		{"rounds_played", snap.RoundsPlayed},
		{"rounds_tied", snap.RoundsTied},
		{"rounds_empty", snap.RoundsEmpty},
		{"total_wagered", snap.TotalWagered},
		{"biggest_bet", snap.BiggestBet},
	}
	for _, line := range lines {
		if err := write("%s %d\n", line.name, line.value); err != nil {
			return total, err
		}
	}

	reasons := make([]string, 0, len(snap.ClosedByReason))
	for reason := range snap.ClosedByReason {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		if err := write("rooms_closed{reason=%q} %d\n", reason, snap.ClosedByReason[reason]); err != nil {
			return total, err
		}
	}
	return total, nil
}

package server

import "github.com/lox/bidroom/internal/game"

// RoomMonitor receives notifications about room lifecycle and outcomes.
//
// Callbacks run while the room is locked, so implementations must not call
// back into the game service or block on slow I/O.
type RoomMonitor interface {
	// OnRoomCreated is called when a room is allocated.
	OnRoomCreated(roomID string)

	// OnGameStarted is called when a room leaves the waiting phase.
	OnGameStarted(roomID string, players []game.Player)

	// OnRoundEnded is called after each round is resolved.
	OnRoundEnded(report RoundReport)

	// OnGameEnded is called when a match finishes.
	OnGameEnded(report GameReport)

	// OnRoomClosed is called once when a room is destroyed.
	OnRoomClosed(roomID string, reason string)
}

// Reasons passed to OnRoomClosed.
const (
	CloseReasonEmpty    = "empty"
	CloseReasonFinished = "finished"
	CloseReasonShutdown = "shutdown"
)

// RoundReport captures the result of a single round.
type RoundReport struct {
	RoomID     string
	Resolution game.RoundResolution
	Players    []game.Player
}

// GameReport captures the result of a finished match.
type GameReport struct {
	RoomID string
	Rounds int
	Result game.GameResult
}

// NullRoomMonitor is a no-op implementation.
type NullRoomMonitor struct{}

func (NullRoomMonitor) OnRoomCreated(string)                {}
func (NullRoomMonitor) OnGameStarted(string, []game.Player) {}
func (NullRoomMonitor) OnRoundEnded(RoundReport)            {}
func (NullRoomMonitor) OnGameEnded(GameReport)              {}
func (NullRoomMonitor) OnRoomClosed(string, string)         {}

// MultiRoomMonitor fan-outs events to multiple monitors.
type MultiRoomMonitor struct {
	monitors []RoomMonitor
}

// NewMultiRoomMonitor builds a composite monitor, automatically pruning nil entries and returning
// a NullRoomMonitor when no monitors are provided.
func NewMultiRoomMonitor(monitors ...RoomMonitor) RoomMonitor {
	filtered := make([]RoomMonitor, 0, len(monitors))
	for _, monitor := range monitors {
		if monitor != nil {
			filtered = append(filtered, monitor)
		}
	}

	switch len(filtered) {
	case 0:
		return NullRoomMonitor{}
	case 1:
		return filtered[0]
	default:
		return MultiRoomMonitor{monitors: filtered}
	}
}

func (m MultiRoomMonitor) OnRoomCreated(roomID string) {
	for _, monitor := range m.monitors {
		monitor.OnRoomCreated(roomID)
	}
}

func (m MultiRoomMonitor) OnGameStarted(roomID string, players []game.Player) {
	for _, monitor := range m.monitors {
		monitor.OnGameStarted(roomID, players)
	}
}

func (m MultiRoomMonitor) OnRoundEnded(report RoundReport) {
	for _, monitor := range m.monitors {
		monitor.OnRoundEnded(report)
	}
}

func (m MultiRoomMonitor) OnGameEnded(report GameReport) {
	for _, monitor := range m.monitors {
		monitor.OnGameEnded(report)
	}
}

func (m MultiRoomMonitor) OnRoomClosed(roomID string, reason string) {
	for _, monitor := range m.monitors {
		monitor.OnRoomClosed(roomID, reason)
	}
}

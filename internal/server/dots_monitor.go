package server

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/lox/bidroom/internal/game"
)

const (
	dotGreen  = "\033[32m●\033[0m"
	dotYellow = "\033[33m●\033[0m"
	dotGray   = "\033[90m●\033[0m"
)

// DotsMonitor implements RoomMonitor for minimal progress output.
// Each resolved round prints one dot: green for an outright winner, yellow
// when a tie was broken by bet order, gray when nobody bet.
type DotsMonitor struct {
	writer    io.Writer
	mu        sync.Mutex
	plain     bool
	dotCount  int
	lineWidth int // wrap after this many dots
}

// NewDotsMonitor creates a new dots monitor. Without color, dots are
// written as ASCII characters (W, T, -).
func NewDotsMonitor(writer io.Writer, color bool) *DotsMonitor {
	if writer == nil {
		writer = os.Stdout
	}

	return &DotsMonitor{
		writer:    writer,
		plain:     !color,
		lineWidth: 80,
	}
}

func (d *DotsMonitor) OnRoomCreated(string)                {}
func (d *DotsMonitor) OnGameStarted(string, []game.Player) {}
func (d *DotsMonitor) OnRoomClosed(string, string)         {}

// OnRoundEnded implements RoomMonitor.
func (d *DotsMonitor) OnRoundEnded(report RoundReport) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fmt.Fprint(d.writer, d.selectDot(report.Resolution))

	d.dotCount++
	if d.dotCount >= d.lineWidth {
		fmt.Fprintln(d.writer)
		d.dotCount = 0
	}
}

// OnGameEnded implements RoomMonitor.
func (d *DotsMonitor) OnGameEnded(report GameReport) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dotCount > 0 {
		fmt.Fprintln(d.writer)
		d.dotCount = 0
	}

	if report.Result.HasWinner {
		fmt.Fprintf(d.writer, "Room %s finished after %d rounds, %s won\n",
			report.RoomID, report.Rounds, report.Result.Winner.Name)
		return
	}
	fmt.Fprintf(d.writer, "Room %s finished after %d rounds, no winner\n", report.RoomID, report.Rounds)
}

func (d *DotsMonitor) selectDot(res game.RoundResolution) string {
	switch {
	case !res.HasWinner:
		if d.plain {
			return "-"
		}
		return dotGray
	case len(res.Tied) > 1:
		if d.plain {
			return "T"
		}
		return dotYellow
	default:
		if d.plain {
			return "W"
		}
		return dotGreen
	}
}

package server

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/lox/bidroom/internal/game"
	"github.com/muesli/termenv"
)

type prettyStyles struct {
	header  lipgloss.Style
	winner  lipgloss.Style
	tie     lipgloss.Style
	dim     lipgloss.Style
	player  lipgloss.Style
	closed  lipgloss.Style
	balance lipgloss.Style
}

func newPrettyStyles(r *lipgloss.Renderer) prettyStyles {
	return prettyStyles{
		header: r.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Bold(true),
		winner: r.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Bold(true),
		tie: r.NewStyle().
			Foreground(lipgloss.Color("#FFEAA7")).
			Bold(true),
		dim: r.NewStyle().
			Foreground(lipgloss.Color("#626262")),
		player: r.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")),
		closed: r.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")),
		balance: r.NewStyle().
			Foreground(lipgloss.Color("#FFD700")),
	}
}

// PrettyPrintMonitor implements RoomMonitor for formatted console output
type PrettyPrintMonitor struct {
	mu     sync.Mutex
	writer io.Writer
	styles prettyStyles
}

// NewPrettyPrintMonitor creates a new pretty print monitor. With color
// disabled output is plain ASCII.
func NewPrettyPrintMonitor(writer io.Writer, color bool) *PrettyPrintMonitor {
	if writer == nil {
		writer = os.Stdout
	}

	var opts []termenv.OutputOption
	if !color {
		opts = append(opts, termenv.WithProfile(termenv.Ascii))
	}
	renderer := lipgloss.NewRenderer(writer, opts...)
	if !color {
		// CLICOLOR_FORCE would otherwise win over the output profile
		renderer.SetColorProfile(termenv.Ascii)
	}

	return &PrettyPrintMonitor{
		writer: writer,
		styles: newPrettyStyles(renderer),
	}
}

func (p *PrettyPrintMonitor) OnRoomCreated(roomID string) {
	p.printf("%s\n", p.styles.dim.Render("room "+roomID+" created"))
}

func (p *PrettyPrintMonitor) OnGameStarted(roomID string, players []game.Player) {
	names := make([]string, len(players))
	for i, player := range players {
		names[i] = p.styles.player.Render(player.Name)
	}
	p.printf("\n%s\n", p.styles.header.Render(fmt.Sprintf(" Room %s: game started ", roomID)))
	p.printf("Players: %s\n", strings.Join(names, ", "))
}

func (p *PrettyPrintMonitor) OnRoundEnded(report RoundReport) {
	res := report.Resolution
	p.printf("\n%s\n", p.styles.header.Render(fmt.Sprintf(" Room %s: round %d ", report.RoomID, res.Round)))

	bets := append([]game.Bet(nil), res.Bets...)
	sort.SliceStable(bets, func(i, j int) bool { return bets[i].Amount > bets[j].Amount })

	names := make(map[string]string, len(report.Players))
	for _, player := range report.Players {
		names[player.ID] = player.Name
	}
	for _, bet := range bets {
		name := names[bet.PlayerID]
		if name == "" {
			name = bet.PlayerID
		}
		p.printf("  %-20s bet %s\n", name, p.styles.balance.Render(fmt.Sprintf("%d", bet.Amount)))
	}

	switch {
	case !res.HasWinner:
		p.printf("%s\n", p.styles.dim.Render("No bets, no winner"))
	case len(res.Tied) > 1:
		p.printf("%s\n", p.styles.tie.Render(fmt.Sprintf("Tie at %d, %s bet first and takes the round", res.Result.BetAmount, res.Result.WinnerName)))
	default:
		p.printf("%s\n", p.styles.winner.Render(fmt.Sprintf("%s wins with %d", res.Result.WinnerName, res.Result.BetAmount)))
	}
}

func (p *PrettyPrintMonitor) OnGameEnded(report GameReport) {
	p.printf("\n%s\n", p.styles.header.Render(fmt.Sprintf(" Room %s: game over after %d rounds ", report.RoomID, report.Rounds)))
	if report.Result.HasWinner {
		w := report.Result.Winner
		p.printf("%s\n", p.styles.winner.Render(fmt.Sprintf("Winner: %s (%d rounds)", w.Name, w.RoundsWon)))
	} else {
		p.printf("%s\n", p.styles.dim.Render("No winner"))
	}
	for _, player := range report.Result.Players {
		p.printf("  %-20s won %d  balance %s\n", player.Name, player.RoundsWon, p.styles.balance.Render(fmt.Sprintf("%d", player.Balance)))
	}
}

func (p *PrettyPrintMonitor) OnRoomClosed(roomID string, reason string) {
	p.printf("%s\n", p.styles.closed.Render(fmt.Sprintf("room %s closed (%s)", roomID, reason)))
}

func (p *PrettyPrintMonitor) printf(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.writer, format, args...)
}

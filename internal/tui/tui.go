// Package tui is the interactive terminal client for a bidroom game.
package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/lox/bidroom/internal/game"
	"github.com/lox/bidroom/internal/server"
)

// Actions is the outbound half of a game connection. *client.Client
// satisfies it.
type Actions interface {
	JoinRoom(roomID, playerName string) error
	StartGame() error
	PlaceBet(amount int) error
}

type stage int

const (
	stageName stage = iota // asking for a player name
	stageJoining
	stageSeated
	stageFinished
)

// serverMsg wraps an inbound server message for the tea runtime
type serverMsg struct{ msg *server.Message }

// disconnectedMsg is delivered once the message channel closes
type disconnectedMsg struct{}

// Model is the Bubble Tea model for a single player's view of a room
type Model struct {
	actions  Actions
	messages <-chan *server.Message
	logger   *log.Logger

	logViewport viewport.Model
	input       textinput.Model

	stage     stage
	roomID    string
	name      string
	playerID  string
	phase     game.Phase
	round     int
	players   []server.PlayerState
	betPlaced bool
	status    string
	result    string
	gameLog   []string
	quitting  bool

	width  int
	height int
}

// NewModel creates a model for roomID. With an empty name the player is
// asked for one before joining.
func NewModel(actions Actions, messages <-chan *server.Message, roomID, name string, logger *log.Logger) *Model {
	vp := viewport.New(10, 5)
	vp.SetContent("")

	ti := textinput.New()
	ti.CharLimit = 32
	ti.Width = 40
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	ti.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	ti.Prompt = "> "
	ti.Placeholder = "Your name"
	ti.Focus()

	return &Model{
		actions:     actions,
		messages:    messages,
		logger:      logger.WithPrefix("tui"),
		logViewport: vp,
		input:       ti,
		stage:       stageName,
		roomID:      roomID,
		name:        strings.TrimSpace(name),
		phase:       game.PhaseWaiting,
	}
}

// Init joins straight away when the name is already known and starts
// listening for server messages.
func (m *Model) Init() tea.Cmd {
	if m.name != "" {
		m.join()
	}
	return tea.Batch(textinput.Blink, m.waitForMessage())
}

func (m *Model) waitForMessage() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.messages
		if !ok {
			return disconnectedMsg{}
		}
		return serverMsg{msg: msg}
	}
}

// Update handles keys, window resizes and server messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case serverMsg:
		m.handleServerMessage(msg.msg)
		cmds = append(cmds, m.waitForMessage())

	case disconnectedMsg:
		if m.stage != stageFinished {
			m.addLog(ErrorStyle.Render("Disconnected from server"))
			m.stage = stageFinished
			m.input.Blur()
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			if m.stage == stageFinished {
				m.quitting = true
				return m, tea.Quit
			}
			m.submit(strings.TrimSpace(m.input.Value()))
			m.input.SetValue("")
			return m, nil
		case "s":
			if m.stage == stageSeated && m.phase == game.PhaseWaiting {
				m.start()
				return m, nil
			}
		case "q":
			if m.stage == stageFinished {
				m.quitting = true
				return m, tea.Quit
			}
		}
	}

	var cmd tea.Cmd
	if m.input.Focused() {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.logViewport, cmd = m.logViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) submit(value string) {
	switch {
	case m.stage == stageName:
		if value == "" {
			m.status = "A name is required"
			return
		}
		m.name = value
		m.join()

	case m.stage == stageSeated && m.phase == game.PhaseBetting && !m.betPlaced:
		amount, err := strconv.Atoi(value)
		if err != nil || amount <= 0 {
			m.status = "Enter a whole number above zero"
			return
		}
		if err := m.actions.PlaceBet(amount); err != nil {
			m.fail("place bet", err)
			return
		}
		m.status = fmt.Sprintf("Bet %d sent", amount)
	}
}

func (m *Model) join() {
	m.stage = stageJoining
	m.input.Blur()
	m.status = fmt.Sprintf("Joining %s as %s", m.roomID, m.name)
	if err := m.actions.JoinRoom(m.roomID, m.name); err != nil {
		m.fail("join room", err)
	}
}

func (m *Model) start() {
	if err := m.actions.StartGame(); err != nil {
		m.fail("start game", err)
		return
	}
	m.status = "Start requested"
}

func (m *Model) fail(action string, err error) {
	m.logger.Error("Action failed", "action", action, "error", err)
	m.status = fmt.Sprintf("%s: %v", action, err)
}

func (m *Model) handleServerMessage(msg *server.Message) {
	switch msg.Type {
	case server.MessageTypeJoinedRoom:
		var data server.JoinedRoomData
		if m.decode(msg, &data) {
			m.playerID = data.PlayerID
			m.roomID = data.RoomID
			m.stage = stageSeated
			m.status = "Waiting for players, press s to start"
			m.addLog(SuccessStyle.Render(fmt.Sprintf("Joined room %s", data.RoomID)))
		}

	case server.MessageTypeRoomUpdate:
		var data server.RoomUpdateData
		if m.decode(msg, &data) {
			m.players = data.Players
			m.phase = data.Phase
		}

	case server.MessageTypeGameStarted:
		var data server.GameStartedData
		if m.decode(msg, &data) {
			m.addLog(RoundStyle.Render("Game started"))
			m.beginRound(data.CurrentRound, data.Phase, data.Players)
		}

	case server.MessageTypeRoundStarted:
		var data server.RoundStartedData
		if m.decode(msg, &data) {
			m.beginRound(data.CurrentRound, data.Phase, data.Players)
		}

	case server.MessageTypeBetPlaced:
		var data server.BetPlacedData
		if m.decode(msg, &data) {
			m.addLog(fmt.Sprintf("%s bet %d", data.PlayerName, data.Amount))
			if data.PlayerID == m.playerID {
				m.betPlaced = true
				m.input.Blur()
				m.status = "Waiting for the other players"
			}
		}

	case server.MessageTypeRoundEnded:
		var data server.RoundEndedData
		if m.decode(msg, &data) {
			m.players = data.Players
			m.phase = game.PhaseRoundEnd
			m.input.Blur()
			if data.WinnerName == "" {
				m.addLog(InfoStyle.Render(fmt.Sprintf("Round %d: no winner", data.Round)))
			} else {
				m.addLog(SuccessStyle.Render(fmt.Sprintf("Round %d: %s wins with %d",
					data.Round, data.WinnerName, data.Bets[data.WinnerID])))
			}
			m.status = "Next round starting soon"
		}

	case server.MessageTypeGameEnded:
		var data server.GameEndedData
		if m.decode(msg, &data) {
			m.players = data.Players
			m.phase = game.PhaseGameEnd
			m.stage = stageFinished
			m.input.Blur()
			if data.WinnerName == "" {
				m.result = "Game over, no winner"
			} else {
				m.result = fmt.Sprintf("Game over, %s wins with %d rounds", data.WinnerName, data.RoundsWon)
			}
			m.addLog(HeaderStyle.Render(m.result))
			m.status = "Press q to quit"
		}

	case server.MessageTypePlayerLeft:
		var data server.PlayerLeftData
		if m.decode(msg, &data) {
			if left, ok := m.player(data.PlayerID); ok {
				m.addLog(InfoStyle.Render(fmt.Sprintf("%s left", left.Name)))
			}
			m.players = data.Players
		}

	case server.MessageTypeError:
		var data server.ErrorData
		if m.decode(msg, &data) {
			m.addLog(ErrorStyle.Render(data.Message))
			m.status = data.Message
			if m.stage == stageJoining {
				m.stage = stageFinished
			}
		}
	}
}

func (m *Model) beginRound(round int, phase game.Phase, players []server.PlayerState) {
	m.round = round
	m.phase = phase
	m.players = players
	m.betPlaced = false
	m.input.Placeholder = "Bet amount"
	m.input.Focus()

	balance := 0
	if me, ok := m.player(m.playerID); ok {
		balance = me.Balance
	}
	m.addLog(RoundStyle.Render(fmt.Sprintf("Round %d", round)))
	m.status = fmt.Sprintf("Place your bet (balance %d)", balance)
}

func (m *Model) decode(msg *server.Message, v any) bool {
	if err := msg.Decode(v); err != nil {
		m.logger.Warn("Failed to decode message", "type", msg.Type, "error", err)
		return false
	}
	return true
}

func (m *Model) player(id string) (server.PlayerState, bool) {
	for _, p := range m.players {
		if p.ID == id {
			return p, true
		}
	}
	return server.PlayerState{}, false
}

func (m *Model) addLog(entry string) {
	m.gameLog = append(m.gameLog, entry)
	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
	if m.logViewport.Height > 0 && m.logViewport.Width > 0 {
		m.logViewport.GotoBottom()
	}
}

// Log returns a copy of the game log
func (m *Model) Log() []string {
	out := make([]string, len(m.gameLog))
	copy(out, m.gameLog)
	return out
}

// Result describes how the game ended, or is empty while it is running
func (m *Model) Result() string {
	return m.result
}

// View renders the TUI
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	header := HeaderStyle.Render(fmt.Sprintf(" bidroom %s ", m.roomID))
	if m.round > 0 {
		header += " " + RoundStyle.Render(fmt.Sprintf("Round %d", m.round))
	}

	actionContent := m.renderActionPane()
	actionHeight := lipgloss.Height(actionContent)
	actionPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#04B575")).
		Width(max(m.width-2, 1)).
		Render(actionContent)

	bodyHeight := max(m.height-actionHeight-lipgloss.Height(header)-4, 1)

	sidebarContent := m.renderSidebarPane()
	sidebarWidth := max(lipgloss.Width(sidebarContent), 25)
	sidebarPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(sidebarWidth).
		Height(bodyHeight).
		Render(sidebarContent)

	m.logViewport.Width = max(m.width-sidebarWidth-4, 1)
	m.logViewport.Height = bodyHeight
	logPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(m.logViewport.Width).
		Height(bodyHeight).
		Render(m.logViewport.View())

	body := lipgloss.JoinHorizontal(lipgloss.Top, logPane, sidebarPane)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, actionPane)
}

func (m *Model) renderSidebarPane() string {
	var content strings.Builder

	content.WriteString(InfoStyle.Render(fmt.Sprintf("Phase: %s", m.phase)))
	content.WriteString("\n\n")

	if len(m.players) == 0 {
		content.WriteString(InfoStyle.Render("No players yet"))
		return content.String()
	}

	content.WriteString(InfoStyle.Render("Players:"))
	content.WriteString("\n")
	for _, p := range m.players {
		name := p.Name
		if p.ID == m.playerID {
			name = SelfStyle.Render(name + " (you)")
		}
		fmt.Fprintf(&content, "  %s %s %s\n", name,
			BalanceStyle.Render(fmt.Sprintf("$%d", p.Balance)),
			InfoStyle.Render(fmt.Sprintf("%dW", p.RoundsWon)))
	}
	return content.String()
}

func (m *Model) renderActionPane() string {
	var content strings.Builder

	if m.status != "" {
		content.WriteString(WarningStyle.Render(m.status))
		content.WriteString("\n")
	}
	if m.input.Focused() {
		content.WriteString(m.input.View())
		content.WriteString("\n")
	}

	var help string
	switch {
	case m.stage == stageFinished:
		help = "q or Enter to quit"
	case m.stage == stageSeated && m.phase == game.PhaseWaiting:
		help = "s to start • Ctrl+C to quit"
	case m.input.Focused():
		help = "Enter to submit • Ctrl+C to quit"
	default:
		help = "Ctrl+C to quit"
	}
	content.WriteString(InfoStyle.Render(help))
	return content.String()
}

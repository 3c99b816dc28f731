package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lox/bidroom/cmd/bidroom/shared"
	"github.com/lox/bidroom/internal/client"
	"github.com/lox/bidroom/internal/roomid"
	"github.com/lox/bidroom/internal/tui"
)

// PlayCmd joins a room as a human player in an interactive terminal UI
type PlayCmd struct {
	Server   string `default:"http://localhost:8080" help:"Server base URL"`
	Room     string `help:"Room id to join (a new room is created when empty)"`
	Name     string `short:"p" help:"Player name (asked for when empty)"`
	LogFile  string `help:"Write client logs to this file"`
	LogLevel string `default:"info" help:"Log level for --log-file"`
}

func (c *PlayCmd) Run() error {
	// The terminal belongs to the UI, so logs only go to a file when asked.
	var logOut io.Writer = io.Discard
	if c.LogFile != "" {
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer func() { _ = f.Close() }()
		logOut = f
	}
	logger, err := shared.NewLogger(logOut, c.LogLevel)
	if err != nil {
		return err
	}

	ctx := shared.SetupSignalHandlerWithLogger(logger)

	roomID := c.Room
	if roomID == "" {
		roomID, err = client.CreateRoom(ctx, &http.Client{Timeout: 10 * time.Second}, c.Server)
		if err != nil {
			return fmt.Errorf("create room: %w", err)
		}
	} else if err := roomid.Validate(roomID); err != nil {
		return fmt.Errorf("invalid --room: %w", err)
	}

	conn := client.NewClient(c.Server, logger)
	if err := conn.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	logger.Info("Starting interactive client", "server", c.Server, "room", roomID)

	model := tui.NewModel(conn, conn.Messages(), roomID, c.Name, logger)
	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run ui: %w", err)
	}

	if result := model.Result(); result != "" {
		fmt.Println(result)
	}
	return nil
}

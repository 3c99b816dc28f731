package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lox/bidroom/cmd/bidroom/shared"
	"github.com/lox/bidroom/internal/client"
	"github.com/lox/bidroom/internal/randutil"
	"github.com/lox/bidroom/internal/roomid"
)

// BotCmd runs one or more random-betting bots in a room
type BotCmd struct {
	Server      string  `default:"http://localhost:8080" help:"Server base URL"`
	Room        string  `help:"Room id to join (a new room is created when empty)"`
	Count       int     `short:"n" default:"2" help:"Number of bots to run"`
	Name        string  `default:"bot" help:"Bot name prefix"`
	MaxFraction float64 `default:"0.25" help:"Largest share of the balance a bot bets in one round"`
	NoStart     bool    `help:"Do not start the game once every bot has joined"`
	Seed        *int64  `help:"Deterministic seed for bet amounts (optional)"`
	Debug       bool    `help:"Enable debug logging"`
}

func (c *BotCmd) Run() error {
	logger, err := shared.SetupLogger(shared.LevelName(c.Debug))
	if err != nil {
		return err
	}
	if c.Count < 1 {
		return fmt.Errorf("--count must be at least 1")
	}

	ctx := shared.SetupSignalHandlerWithLogger(logger)

	roomID := c.Room
	if roomID == "" {
		roomID, err = client.CreateRoom(ctx, &http.Client{Timeout: 10 * time.Second}, c.Server)
		if err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		logger.Info("Created room", "room", roomID)
	} else if err := roomid.Validate(roomID); err != nil {
		return fmt.Errorf("invalid --room: %w", err)
	}

	_, seed := randutil.FromOptionalSeed(c.Seed)
	logger.Info("Starting bots", "count", c.Count, "room", roomID, "seed", seed)

	g, gctx := errgroup.WithContext(ctx)
	outcomes := make([]client.Outcome, c.Count)

	for i := 0; i < c.Count; i++ {
		name := fmt.Sprintf("%s-%d", c.Name, i+1)
		conn := client.NewClient(c.Server, logger)
		if err := conn.Connect(gctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		defer conn.Close()

		var opts []client.BotOption
		if i == 0 && !c.NoStart {
			opts = append(opts, client.WithAutoStart(max(c.Count, 2)))
		}
		strategy := client.NewRandomStrategy(randutil.New(seed+int64(i)), c.MaxFraction)
		bot := client.NewBot(conn, name, roomID, strategy, logger, opts...)

		g.Go(func() error {
			outcome, err := bot.Run(gctx)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			outcomes[i] = outcome
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	result := outcomes[0]
	if result.WinnerName == "" {
		fmt.Printf("Room %s finished after %d rounds with no winner\n", roomID, result.Rounds)
		return nil
	}
	fmt.Printf("Room %s won by %s with %d rounds\n", roomID, result.WinnerName, result.RoundsWon)
	return nil
}

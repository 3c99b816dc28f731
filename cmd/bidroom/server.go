package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/lox/bidroom/cmd/bidroom/shared"
	"github.com/lox/bidroom/internal/game"
	"github.com/lox/bidroom/internal/randutil"
	"github.com/lox/bidroom/internal/roomid"
	"github.com/lox/bidroom/internal/server"
)

// ServerCmd runs the game server
type ServerCmd struct {
	Config     string `short:"c" default:"bidroom.hcl" help:"Path to HCL configuration file"`
	Addr       string `short:"a" help:"Server address to bind to, host:port (overrides config)"`
	LogLevel   string `short:"l" help:"Log level (overrides config)"`
	Pretty     bool   `help:"Print room events to stdout"`
	Dots       bool   `help:"Print one dot per resolved round"`
	NoColor    bool   `help:"Disable color in console output"`
	HistoryDir string `help:"Directory for finished match records (overrides config)"`
	Seed       *int64 `help:"Deterministic seed for room ids (optional)"`
}

func (c *ServerCmd) Run() error {
	cfg, err := server.LoadServerConfig(c.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := c.applyOverrides(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := shared.SetupLogger(cfg.Server.LogLevel)
	if err != nil {
		return err
	}

	clock := quartz.NewReal()

	var registryOpts []game.RegistryOption
	if c.Seed != nil {
		rng, seed := randutil.FromOptionalSeed(c.Seed)
		logger.Info("Using deterministic room ids", "seed", seed)
		registryOpts = append(registryOpts, game.WithIDGenerator(roomid.NewGenerator(rng).Generate))
	}
	registry := game.NewRegistry(cfg.Rules(), registryOpts...)

	stats := server.NewStatsMonitor()
	monitors := []server.RoomMonitor{stats}
	if cfg.Monitor.Pretty {
		monitors = append(monitors, server.NewPrettyPrintMonitor(os.Stdout, cfg.ColorEnabled()))
	} else if cfg.Monitor.Dots {
		monitors = append(monitors, server.NewDotsMonitor(os.Stdout, cfg.ColorEnabled()))
	}
	if cfg.History.Dir != "" {
		recorder := server.NewHistoryRecorder(cfg.History.Dir, clock, logger)
		defer recorder.Shutdown()
		monitors = append(monitors, recorder)
	}

	hub := server.NewHub(logger)
	gameService := server.NewGameService(registry, hub, clock, logger,
		server.WithGameConfig(cfg.GameConfig()),
		server.WithMonitor(server.NewMultiRoomMonitor(monitors...)),
	)
	srv := server.NewServer(cfg.GetServerAddress(), gameService, hub, logger, server.WithStats(stats))

	rules := cfg.Rules()
	logger.Info("Starting bidroom server",
		"addr", cfg.GetServerAddress(),
		"total_rounds", rules.TotalRounds,
		"rounds_to_win", rules.RoundsToWin,
		"starting_balance", rules.StartingBalance,
		"round_delay", cfg.GameConfig().RoundDelay,
		"cleanup_delay", cfg.GameConfig().CleanupDelay,
		"history_dir", cfg.History.Dir)

	// Setup graceful shutdown
	ctx := shared.SetupSignalHandlerWithLogger(logger)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (c *ServerCmd) applyOverrides(cfg *server.ServerConfig) error {
	if c.Addr != "" {
		host, port, err := net.SplitHostPort(c.Addr)
		if err != nil {
			return fmt.Errorf("invalid --addr %q: %w", c.Addr, err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid port in --addr %q: %w", c.Addr, err)
		}
		cfg.Server.Address = host
		cfg.Server.Port = p
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.Pretty {
		cfg.Monitor.Pretty = true
	}
	if c.Dots {
		cfg.Monitor.Dots = true
	}
	if c.NoColor {
		color := false
		cfg.Monitor.Color = &color
	}
	if c.HistoryDir != "" {
		cfg.History.Dir = c.HistoryDir
	}
	return nil
}

package server

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/lox/bidroom/internal/game"
)

// ServerConfig represents the complete server configuration. Every block is
// optional; missing blocks and attributes take their defaults.
type ServerConfig struct {
	Server  *ServerSettings  `hcl:"server,block"`
	Game    *GameSettings    `hcl:"game,block"`
	History *HistorySettings `hcl:"history,block"`
	Monitor *MonitorSettings `hcl:"monitor,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// GameSettings contains the rules applied to every new room
type GameSettings struct {
	TotalRounds         int `hcl:"total_rounds,optional"`
	RoundsToWin         int `hcl:"rounds_to_win,optional"`
	StartingBalance     int `hcl:"starting_balance,optional"`
	MinPlayers          int `hcl:"min_players,optional"`
	RoundDelaySeconds   int `hcl:"round_delay_seconds,optional"`
	CleanupDelaySeconds int `hcl:"cleanup_delay_seconds,optional"`
}

// HistorySettings configures the match history recorder. An empty Dir
// disables it.
type HistorySettings struct {
	Dir string `hcl:"dir,optional"`
}

// MonitorSettings configures console output
type MonitorSettings struct {
	Pretty bool  `hcl:"pretty,optional"`
	Dots   bool  `hcl:"dots,optional"`
	Color  *bool `hcl:"color,optional"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	rules := game.DefaultRules()
	timing := DefaultGameConfig()
	color := true

	return &ServerConfig{
		Server: &ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Game: &GameSettings{
			TotalRounds:         rules.TotalRounds,
			RoundsToWin:         rules.RoundsToWin,
			StartingBalance:     rules.StartingBalance,
			MinPlayers:          rules.MinPlayers,
			RoundDelaySeconds:   int(timing.RoundDelay / time.Second),
			CleanupDelaySeconds: int(timing.CleanupDelay / time.Second),
		},
		History: &HistorySettings{},
		Monitor: &MonitorSettings{Color: &color},
	}
}

// LoadServerConfig loads server configuration from HCL file
func LoadServerConfig(filename string) (*ServerConfig, error) {
	// Check if file exists
	src, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return DefaultServerConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseServerConfig(src, filename)
}

// ParseServerConfig decodes HCL source and fills in defaults
func ParseServerConfig(src []byte, filename string) (*ServerConfig, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config ServerConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config.applyDefaults()
	return &config, nil
}

func (c *ServerConfig) applyDefaults() {
	defaults := DefaultServerConfig()

	if c.Server == nil {
		c.Server = defaults.Server
	}
	if c.Server.Address == "" {
		c.Server.Address = defaults.Server.Address
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaults.Server.Port
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = defaults.Server.LogLevel
	}

	if c.Game == nil {
		c.Game = defaults.Game
	}
	if c.Game.TotalRounds == 0 {
		c.Game.TotalRounds = defaults.Game.TotalRounds
	}
	if c.Game.RoundsToWin == 0 {
		c.Game.RoundsToWin = defaults.Game.RoundsToWin
	}
	if c.Game.StartingBalance == 0 {
		c.Game.StartingBalance = defaults.Game.StartingBalance
	}
	if c.Game.MinPlayers == 0 {
		c.Game.MinPlayers = defaults.Game.MinPlayers
	}
	if c.Game.RoundDelaySeconds == 0 {
		c.Game.RoundDelaySeconds = defaults.Game.RoundDelaySeconds
	}
	if c.Game.CleanupDelaySeconds == 0 {
		c.Game.CleanupDelaySeconds = defaults.Game.CleanupDelaySeconds
	}

	if c.History == nil {
		c.History = defaults.History
	}

	if c.Monitor == nil {
		c.Monitor = defaults.Monitor
	}
	if c.Monitor.Color == nil {
		c.Monitor.Color = defaults.Monitor.Color
	}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Monitor.Pretty && c.Monitor.Dots {
		return errors.New("monitor: pretty and dots are mutually exclusive")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if _, err := log.ParseLevel(c.Server.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Server.LogLevel, err)
	}

	g := c.Game
	if g.TotalRounds < 1 {
		return fmt.Errorf("game: total_rounds must be positive")
	}
	if g.RoundsToWin < 1 || g.RoundsToWin > g.TotalRounds {
		return fmt.Errorf("game: rounds_to_win must be between 1 and total_rounds (%d)", g.TotalRounds)
	}
	if g.StartingBalance < 1 {
		return fmt.Errorf("game: starting_balance must be positive")
	}
	if g.MinPlayers < 2 {
		return fmt.Errorf("game: min_players must be at least 2")
	}
	if g.RoundDelaySeconds < 0 || g.CleanupDelaySeconds < 0 {
		return fmt.Errorf("game: delays must not be negative")
	}

	return nil
}

// GetServerAddress returns the full server address
func (c *ServerConfig) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// Rules returns the room rules described by the game block
func (c *ServerConfig) Rules() game.Rules {
	return game.Rules{
		TotalRounds:     c.Game.TotalRounds,
		RoundsToWin:     c.Game.RoundsToWin,
		StartingBalance: c.Game.StartingBalance,
		MinPlayers:      c.Game.MinPlayers,
	}
}

// GameConfig returns the coordinator delays described by the game block
func (c *ServerConfig) GameConfig() GameConfig {
	return GameConfig{
		RoundDelay:   time.Duration(c.Game.RoundDelaySeconds) * time.Second,
		CleanupDelay: time.Duration(c.Game.CleanupDelaySeconds) * time.Second,
	}
}

// ColorEnabled reports whether the pretty monitor may use color
func (c *ServerConfig) ColorEnabled() bool {
	return c.Monitor.Color == nil || *c.Monitor.Color
}

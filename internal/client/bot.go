package client

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"

	"github.com/charmbracelet/log"
	"github.com/lox/bidroom/internal/game"
	"github.com/lox/bidroom/internal/server"
)

var (
	// ErrDisconnected is returned when the server closes the connection
	// before the game ends.
	ErrDisconnected = errors.New("disconnected before game end")

	// ErrRejected is returned when the server refuses to seat the bot.
	ErrRejected = errors.New("join rejected")
)

// Strategy decides how much to bet given the current round and balance.
// Returning zero or less skips the round.
type Strategy interface {
	Bet(round, balance int) int
}

// RandomStrategy bets a uniform random amount between 1 and a fraction of
// the balance.
type RandomStrategy struct {
	rng         *rand.Rand
	maxFraction float64
}

// NewRandomStrategy creates a random strategy. maxFraction is clamped to
// (0, 1]; out of range values mean the whole balance.
func NewRandomStrategy(rng *rand.Rand, maxFraction float64) *RandomStrategy {
	if maxFraction <= 0 || maxFraction > 1 {
		maxFraction = 1
	}
	return &RandomStrategy{rng: rng, maxFraction: maxFraction}
}

func (r *RandomStrategy) Bet(_ int, balance int) int {
	if balance <= 0 {
		return 0
	}
	limit := int(float64(balance) * r.maxFraction)
	if limit < 1 {
		limit = 1
	}
	return 1 + r.rng.IntN(limit)
}

// Outcome is what a bot saw when its game ended
type Outcome struct {
	PlayerID   string
	WinnerID   string
	WinnerName string
	RoundsWon  int
	Balance    int
	Rounds     int // rounds played, including rounds nobody won
}

// Won reports whether this bot won the match
func (o Outcome) Won() bool {
	return o.PlayerID != "" && o.PlayerID == o.WinnerID
}

// Bot plays one game in a room over a connected Client
type Bot struct {
	client     *Client
	name       string
	roomID     string
	strategy   Strategy
	autoStart  bool
	minPlayers int
	logger     *log.Logger

	playerID       string
	startRequested bool
	lastRound      int
}

// BotOption configures a Bot
type BotOption func(*Bot)

// WithAutoStart makes the bot start the game once the room has minPlayers.
func WithAutoStart(minPlayers int) BotOption {
	return func(b *Bot) {
		b.autoStart = true
		b.minPlayers = minPlayers
	}
}

// NewBot creates a bot that will join roomID as name
func NewBot(c *Client, name, roomID string, strategy Strategy, logger *log.Logger, opts ...BotOption) *Bot {
	b := &Bot{
		client:     c,
		name:       name,
		roomID:     roomID,
		strategy:   strategy,
		minPlayers: game.DefaultRules().MinPlayers,
		logger:     logger.WithPrefix("bot").With("name", name),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run joins the room and plays until the game ends, the connection drops or
// ctx is cancelled.
func (b *Bot) Run(ctx context.Context) (Outcome, error) {
	if err := b.client.JoinRoom(b.roomID, b.name); err != nil {
		return Outcome{}, fmt.Errorf("join room: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case msg, ok := <-b.client.Messages():
			if !ok {
				return Outcome{}, ErrDisconnected
			}
			outcome, done, err := b.handle(msg)
			if err != nil || done {
				return outcome, err
			}
		}
	}
}

func (b *Bot) handle(msg *server.Message) (Outcome, bool, error) {
	switch msg.Type {
	case server.MessageTypeJoinedRoom:
		var data server.JoinedRoomData
		if err := msg.Decode(&data); err != nil {
			return Outcome{}, false, fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		b.playerID = data.PlayerID
		b.logger.Info("Joined room", "room", data.RoomID, "player", data.PlayerID)

	case server.MessageTypeRoomUpdate:
		var data server.RoomUpdateData
		if err := msg.Decode(&data); err != nil {
			return Outcome{}, false, fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		if b.autoStart && !b.startRequested && data.Phase == game.PhaseWaiting && len(data.Players) >= b.minPlayers {
			b.startRequested = true
			b.logger.Debug("Starting game", "players", len(data.Players))
			if err := b.client.StartGame(); err != nil {
				return Outcome{}, false, err
			}
		}

	case server.MessageTypeGameStarted:
		var data server.GameStartedData
		if err := msg.Decode(&data); err != nil {
			return Outcome{}, false, fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		return Outcome{}, false, b.bet(data.CurrentRound, data.Players)

	case server.MessageTypeRoundStarted:
		var data server.RoundStartedData
		if err := msg.Decode(&data); err != nil {
			return Outcome{}, false, fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		return Outcome{}, false, b.bet(data.CurrentRound, data.Players)

	case server.MessageTypeRoundEnded:
		var data server.RoundEndedData
		if err := msg.Decode(&data); err != nil {
			return Outcome{}, false, fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		b.lastRound = data.Round
		b.logger.Debug("Round ended", "round", data.Round, "winner", data.WinnerName)

	case server.MessageTypeGameEnded:
		var data server.GameEndedData
		if err := msg.Decode(&data); err != nil {
			return Outcome{}, false, fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		outcome := Outcome{
			PlayerID:   b.playerID,
			WinnerID:   data.WinnerID,
			WinnerName: data.WinnerName,
			RoundsWon:  data.RoundsWon,
			Rounds:     b.lastRound,
		}
		if me, ok := findPlayer(data.Players, b.playerID); ok {
			outcome.Balance = me.Balance
		}
		b.logger.Info("Game ended", "winner", data.WinnerName, "won", outcome.Won(), "balance", outcome.Balance)
		return outcome, true, nil

	case server.MessageTypeError:
		var data server.ErrorData
		if err := msg.Decode(&data); err != nil {
			return Outcome{}, false, fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		switch data.Code {
		case server.ErrorCodeRoomNotFound, server.ErrorCodeGameAlreadyStarted, server.ErrorCodeAlreadyInRoom:
			return Outcome{}, false, fmt.Errorf("%w: %s", ErrRejected, data.Message)
		}
		b.logger.Warn("Server error", "code", data.Code, "message", data.Message)
	}

	return Outcome{}, false, nil
}

func (b *Bot) bet(round int, players []server.PlayerState) error {
	me, ok := findPlayer(players, b.playerID)
	if !ok {
		return nil
	}

	amount := b.strategy.Bet(round, me.Balance)
	if amount <= 0 {
		b.logger.Debug("Skipping round", "round", round, "balance", me.Balance)
		return nil
	}

	b.logger.Debug("Placing bet", "round", round, "amount", amount, "balance", me.Balance)
	return b.client.PlaceBet(amount)
}

func findPlayer(players []server.PlayerState, id string) (server.PlayerState, bool) {
	for _, p := range players {
		if p.ID == id {
			return p, true
		}
	}
	return server.PlayerState{}, false
}

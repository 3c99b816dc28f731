package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/lox/bidroom/internal/game"
	"github.com/lox/bidroom/internal/randutil"
	"github.com/lox/bidroom/internal/server"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func startServer(t *testing.T) string {
	t.Helper()

	logger := testLogger()
	hub := server.NewHub(logger)
	gs := server.NewGameService(game.NewRegistry(game.DefaultRules()), hub, quartz.NewReal(), logger,
		server.WithGameConfig(server.GameConfig{RoundDelay: 10 * time.Millisecond, CleanupDelay: time.Minute}),
	)
	srv := server.NewServer("127.0.0.1:0", gs, hub, logger)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		gs.Stop()
	})
	return ts.URL
}

func TestWebSocketURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{in: "http://localhost:8080", want: "ws://localhost:8080/ws"},
		{in: "https://example.com/", want: "wss://example.com/ws"},
		{in: "ws://localhost:8080/game", want: "ws://localhost:8080/game/ws"},
		{in: "ftp://localhost", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := WebSocketURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRandomStrategy(t *testing.T) {
	t.Parallel()

	s := NewRandomStrategy(randutil.New(7), 0.25)
	for i := 0; i < 200; i++ {
		bet := s.Bet(1, 100)
		assert.GreaterOrEqual(t, bet, 1)
		assert.LessOrEqual(t, bet, 25)
	}
	assert.Equal(t, 1, s.Bet(1, 2), "small balances still bet one")
	assert.Zero(t, s.Bet(1, 0))

	// Same seed, same bets.
	a := NewRandomStrategy(randutil.New(99), 1)
	b := NewRandomStrategy(randutil.New(99), 1)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Bet(i, 100), b.Bet(i, 100))
	}
}

func TestCreateAndListRooms(t *testing.T) {
	t.Parallel()

	url := startServer(t)
	ctx := context.Background()

	roomID, err := CreateRoom(ctx, nil, url)
	require.NoError(t, err)

	list, err := ListRooms(ctx, http.DefaultClient, url)
	require.NoError(t, err)
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, roomID, list.Rooms[0].ID)

	_, err = CreateRoom(ctx, nil, url+"/missing")
	assert.Error(t, err)
}

func TestBotsPlayAFullGame(t *testing.T) {
	t.Parallel()

	url := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	roomID, err := CreateRoom(ctx, nil, url)
	require.NoError(t, err)

	const count = 3
	outcomes := make([]Outcome, count)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < count; i++ {
		c := NewClient(url, testLogger())
		require.NoError(t, c.Connect(ctx))
		t.Cleanup(func() { _ = c.Close() })

		var opts []BotOption
		if i == 0 {
			opts = append(opts, WithAutoStart(count))
		}
		bot := NewBot(c, fmt.Sprintf("bot-%d", i), roomID, NewRandomStrategy(randutil.New(int64(i)), 0.1), testLogger(), opts...)

		g.Go(func() error {
			outcome, err := bot.Run(gctx)
			outcomes[i] = outcome
			return err
		})
	}
	require.NoError(t, g.Wait())

	winners := 0
	for _, o := range outcomes {
		assert.NotEmpty(t, o.PlayerID)
		assert.Equal(t, outcomes[0].WinnerID, o.WinnerID, "every bot sees the same result")
		assert.GreaterOrEqual(t, o.Rounds, 3)
		assert.LessOrEqual(t, o.Rounds, 5)
		assert.Less(t, o.Balance, 100)
		if o.Won() {
			winners++
		}
	}
	assert.LessOrEqual(t, winners, 1)
}

func TestBotRejectedFromUnknownRoom(t *testing.T) {
	t.Parallel()

	url := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := NewClient(url, testLogger())
	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	bot := NewBot(c, "lost", "0000000000AB", NewRandomStrategy(randutil.New(1), 1), testLogger())
	_, err := bot.Run(ctx)
	assert.ErrorIs(t, err, ErrRejected)
}

func TestSendBeforeConnect(t *testing.T) {
	t.Parallel()

	c := NewClient("http://localhost:1", testLogger())
	assert.ErrorIs(t, c.PlaceBet(10), ErrNotConnected)
}

func TestBotCountsRoundsWithoutWinners(t *testing.T) {
	t.Parallel()

	bot := NewBot(NewClient("http://127.0.0.1:1", testLogger()), "bot", "abcd1234efgh", NewRandomStrategy(randutil.New(1), 0.5), testLogger())

	deliver := func(mt server.MessageType, data any) (Outcome, bool) {
		msg, err := server.NewMessage(mt, data)
		require.NoError(t, err)
		outcome, done, err := bot.handle(msg)
		require.NoError(t, err)
		return outcome, done
	}

	deliver(server.MessageTypeJoinedRoom, server.JoinedRoomData{PlayerID: "p1", RoomID: "abcd1234efgh"})
	for round := 1; round <= 5; round++ {
		_, done := deliver(server.MessageTypeRoundEnded, server.RoundEndedData{Round: round, Bets: map[string]int{}})
		require.False(t, done)
	}

	outcome, done := deliver(server.MessageTypeGameEnded, server.GameEndedData{
		RoundResults: []server.RoundResultData{},
		Players:      []server.PlayerState{{ID: "p1", Name: "bot", Balance: 100}},
	})
	require.True(t, done)
	assert.Equal(t, 5, outcome.Rounds)
	assert.Empty(t, outcome.WinnerName)
	assert.False(t, outcome.Won())
	assert.Equal(t, 100, outcome.Balance)
}

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/lox/bidroom/internal/game"
	"github.com/lox/bidroom/internal/roomid"
)

// recordingConn is a Sender that keeps every message it is sent.
type recordingConn struct {
	id   string
	mu   sync.Mutex
	msgs []*Message
}

func (r *recordingConn) ID() string { return r.id }

func (r *recordingConn) SendMessage(msg *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingConn) types() []MessageType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]MessageType, len(r.msgs))
	for i, msg := range r.msgs {
		types[i] = msg.Type
	}
	return types
}

func (r *recordingConn) count(mt MessageType) int {
	n := 0
	for _, t := range r.types() {
		if t == mt {
			n++
		}
	}
	return n
}

func (r *recordingConn) last(t *testing.T, mt MessageType) *Message {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.msgs) - 1; i >= 0; i-- {
		if r.msgs[i].Type == mt {
			return r.msgs[i]
		}
	}
	t.Fatalf("connection %s received no %s message (got %v)", r.id, mt, r.msgs)
	return nil
}

func (r *recordingConn) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = nil
}

func decodeData[T any](t *testing.T, msg *Message) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(msg.Data, &v))
	return v
}

type serviceHarness struct {
	t     *testing.T
	clock *quartz.Mock
	hub   *Hub
	gs    *GameService
	stats *StatsMonitor

	mu         sync.Mutex
	nextConn   int
	nextPlayer int
}

func newServiceHarness(t *testing.T, opts ...GameServiceOption) *serviceHarness {
	t.Helper()
	return newServiceHarnessWithRules(t, game.DefaultRules(), opts...)
}

func newServiceHarnessWithRules(t *testing.T, rules game.Rules, opts ...GameServiceOption) *serviceHarness {
	t.Helper()

	h := &serviceHarness{
		t:     t,
		clock: quartz.NewMock(t),
		hub:   NewHub(testLogger()),
		stats: NewStatsMonitor(),
	}

	registry := game.NewRegistry(rules)
	opts = append([]GameServiceOption{
		WithMonitor(h.stats),
		WithPlayerIDGenerator(func() string {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.nextPlayer++
			return fmt.Sprintf("player-%d", h.nextPlayer)
		}),
	}, opts...)
	h.gs = NewGameService(registry, h.hub, h.clock, testLogger(), opts...)
	t.Cleanup(h.gs.Stop)
	return h
}

func (h *serviceHarness) connect() *recordingConn {
	h.mu.Lock()
	h.nextConn++
	conn := &recordingConn{id: fmt.Sprintf("conn-%d", h.nextConn)}
	h.mu.Unlock()

	h.hub.Register(conn)
	return conn
}

// join connects a new client, seats it and returns the connection with its
// player id.
func (h *serviceHarness) join(roomID, name string) (*recordingConn, string) {
	h.t.Helper()
	conn := h.connect()
	h.gs.Join(conn.id, roomID, name)
	joined := decodeData[JoinedRoomData](h.t, conn.last(h.t, MessageTypeJoinedRoom))
	return conn, joined.PlayerID
}

// startedRoom creates a room, seats the named players and starts the game.
func (h *serviceHarness) startedRoom(names ...string) (string, []*recordingConn) {
	h.t.Helper()
	roomID := h.gs.CreateRoom()
	conns := make([]*recordingConn, len(names))
	for i, name := range names {
		conns[i], _ = h.join(roomID, name)
	}
	h.gs.Start(conns[0].id)
	for _, c := range conns {
		require.Equal(h.t, 1, c.count(MessageTypeGameStarted))
	}
	return roomID, conns
}

// advance fires the next pending timer and returns how far the clock moved.
func (h *serviceHarness) advance() time.Duration {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d, w := h.clock.AdvanceNext()
	w.MustWait(ctx)
	return d
}

// advanceBy moves the clock by d, which must not pass the next timer.
func (h *serviceHarness) advanceBy(d time.Duration) {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.clock.Advance(d).MustWait(ctx)
}

func (h *serviceHarness) room(roomID string) *game.Room {
	h.t.Helper()
	room, ok := h.gs.Registry().Get(roomID)
	require.True(h.t, ok, "room %s should exist", roomID)
	return room
}

func TestGameServiceJoin(t *testing.T) {
	t.Parallel()

	t.Run("broadcasts roster then confirms to joiner", func(t *testing.T) {
		h := newServiceHarness(t)
		roomID := h.gs.CreateRoom()

		alice, alicePlayer := h.join(roomID, "Alice")
		bob, bobPlayer := h.join(roomID, "Bob")

		assert.Equal(t, []MessageType{MessageTypeRoomUpdate, MessageTypeJoinedRoom, MessageTypeRoomUpdate}, alice.types())
		assert.Equal(t, []MessageType{MessageTypeRoomUpdate, MessageTypeJoinedRoom}, bob.types())

		update := decodeData[RoomUpdateData](t, alice.last(t, MessageTypeRoomUpdate))
		assert.Equal(t, game.PhaseWaiting, update.Phase)
		require.Len(t, update.Players, 2)
		assert.Equal(t, PlayerState{ID: alicePlayer, Name: "Alice", Balance: 100}, update.Players[0])
		assert.Equal(t, PlayerState{ID: bobPlayer, Name: "Bob", Balance: 100}, update.Players[1])

		joined := decodeData[JoinedRoomData](t, bob.last(t, MessageTypeJoinedRoom))
		assert.Equal(t, roomID, joined.RoomID)

		seat, ok := h.gs.Session(bob.id)
		require.True(t, ok)
		assert.Equal(t, Seat{RoomID: roomID, PlayerID: bobPlayer}, seat)

		connID, ok := h.gs.ConnectionFor(alicePlayer)
		require.True(t, ok)
		assert.Equal(t, alice.id, connID)
	})

	t.Run("rejects unknown rooms", func(t *testing.T) {
		h := newServiceHarness(t)

		for _, id := range []string{"", "not-a-room", roomid.Generate()} {
			conn := h.connect()
			h.gs.Join(conn.id, id, "Alice")

			errData := decodeData[ErrorData](t, conn.last(t, MessageTypeError))
			assert.Equal(t, ErrorCodeRoomNotFound, errData.Code)
			assert.Equal(t, "Room not found", errData.Message)
			_, seated := h.gs.Session(conn.id)
			assert.False(t, seated)
		}
	})

	t.Run("rejects a second room for the same connection", func(t *testing.T) {
		h := newServiceHarness(t)
		first := h.gs.CreateRoom()
		second := h.gs.CreateRoom()

		conn, _ := h.join(first, "Alice")
		conn.reset()
		h.gs.Join(conn.id, second, "Alice")

		errData := decodeData[ErrorData](t, conn.last(t, MessageTypeError))
		assert.Equal(t, ErrorCodeAlreadyInRoom, errData.Code)
		assert.Equal(t, 0, h.room(second).PlayerCount())

		seat, _ := h.gs.Session(conn.id)
		assert.Equal(t, first, seat.RoomID)
	})

	t.Run("rejects joining a started game", func(t *testing.T) {
		h := newServiceHarness(t)
		roomID, players := h.startedRoom("Alice", "Bob")

		late := h.connect()
		h.gs.Join(late.id, roomID, "Carol")

		errData := decodeData[ErrorData](t, late.last(t, MessageTypeError))
		assert.Equal(t, ErrorCodeGameAlreadyStarted, errData.Code)
		assert.Equal(t, "Game already started", errData.Message)
		assert.Equal(t, 2, h.room(roomID).PlayerCount())
		assert.Zero(t, players[0].count(MessageTypeError))
	})
}

func TestGameServiceStart(t *testing.T) {
	t.Parallel()

	t.Run("needs two players", func(t *testing.T) {
		h := newServiceHarness(t)
		roomID := h.gs.CreateRoom()
		alice, _ := h.join(roomID, "Alice")

		h.gs.Start(alice.id)

		errData := decodeData[ErrorData](t, alice.last(t, MessageTypeError))
		assert.Equal(t, ErrorCodeInsufficientPlayers, errData.Code)
		assert.Equal(t, "Need at least 2 players to start", errData.Message)
		assert.Equal(t, game.PhaseWaiting, h.room(roomID).Phase())
	})

	t.Run("reports the configured minimum", func(t *testing.T) {
		rules := game.DefaultRules()
		rules.MinPlayers = 3
		h := newServiceHarnessWithRules(t, rules)
		roomID := h.gs.CreateRoom()
		alice, _ := h.join(roomID, "Alice")
		h.join(roomID, "Bob")

		h.gs.Start(alice.id)

		errData := decodeData[ErrorData](t, alice.last(t, MessageTypeError))
		assert.Equal(t, ErrorCodeInsufficientPlayers, errData.Code)
		assert.Equal(t, "Need at least 3 players to start", errData.Message)
		assert.Equal(t, game.PhaseWaiting, h.room(roomID).Phase())
	})

	t.Run("ignores connections without a room", func(t *testing.T) {
		h := newServiceHarness(t)
		conn := h.connect()

		h.gs.Start(conn.id)
		assert.Empty(t, conn.types())
	})

	t.Run("opens round one", func(t *testing.T) {
		h := newServiceHarness(t)
		roomID, conns := h.startedRoom("Alice", "Bob")

		started := decodeData[GameStartedData](t, conns[1].last(t, MessageTypeGameStarted))
		assert.Equal(t, 1, started.CurrentRound)
		assert.Equal(t, game.PhaseBetting, started.Phase)
		assert.Len(t, started.Players, 2)

		assert.Equal(t, game.PhaseBetting, h.room(roomID).Phase())
		assert.Equal(t, 1, h.stats.Snapshot().GamesStarted)
	})

	t.Run("second start is a silent no-op", func(t *testing.T) {
		h := newServiceHarness(t)
		_, conns := h.startedRoom("Alice", "Bob")

		h.gs.Start(conns[1].id)
		assert.Equal(t, 1, conns[0].count(MessageTypeGameStarted))
		assert.Zero(t, conns[1].count(MessageTypeError))
	})
}

func TestGameServicePlaceBetValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		amount  int
		code    string
		message string
	}{
		{name: "zero", amount: 0, code: ErrorCodeInvalidAmount, message: "Invalid bet amount"},
		{name: "negative", amount: -5, code: ErrorCodeInvalidAmount, message: "Invalid bet amount"},
		{name: "over balance", amount: 101, code: ErrorCodeInsufficientFunds, message: "You don't have enough money! Your balance: 100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newServiceHarness(t)
			roomID, conns := h.startedRoom("Alice", "Bob")
			alice, bob := conns[0], conns[1]
			bob.reset()

			h.gs.PlaceBet(alice.id, tt.amount)

			errData := decodeData[ErrorData](t, alice.last(t, MessageTypeError))
			assert.Equal(t, tt.code, errData.Code)
			assert.Equal(t, tt.message, errData.Message)

			room := h.room(roomID)
			assert.Zero(t, room.BetCount())
			assert.Equal(t, 100, room.Players()[0].Balance)
			assert.Empty(t, bob.types(), "errors must not reach other players")
		})
	}

	t.Run("second bet in a round", func(t *testing.T) {
		h := newServiceHarness(t)
		roomID, conns := h.startedRoom("Alice", "Bob", "Carol")
		alice := conns[0]

		h.gs.PlaceBet(alice.id, 10)
		h.gs.PlaceBet(alice.id, 20)

		errData := decodeData[ErrorData](t, alice.last(t, MessageTypeError))
		assert.Equal(t, ErrorCodeBetAlreadyPlaced, errData.Code)
		assert.Equal(t, "You have already bet this round", errData.Message)

		room := h.room(roomID)
		assert.Equal(t, []game.Bet{{PlayerID: "player-1", Amount: 10}}, room.Bets())
		assert.Equal(t, 90, room.Players()[0].Balance)
	})

	t.Run("outside betting phase", func(t *testing.T) {
		h := newServiceHarness(t)
		roomID := h.gs.CreateRoom()
		alice, _ := h.join(roomID, "Alice")
		alice.reset()

		h.gs.PlaceBet(alice.id, 10)
		assert.Empty(t, alice.types())
	})
}

func TestGameServiceTiedRound(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	roomID, conns := h.startedRoom("Alice", "Bob")
	alice, bob := conns[0], conns[1]

	h.gs.PlaceBet(alice.id, 30)
	placed := decodeData[BetPlacedData](t, bob.last(t, MessageTypeBetPlaced))
	assert.Equal(t, BetPlacedData{PlayerID: "player-1", PlayerName: "Alice", Amount: 30}, placed)
	assert.Zero(t, bob.count(MessageTypeRoundEnded))

	h.gs.PlaceBet(bob.id, 30)

	ended := decodeData[RoundEndedData](t, bob.last(t, MessageTypeRoundEnded))
	assert.Equal(t, 1, ended.Round)
	assert.Equal(t, "player-1", ended.WinnerID)
	assert.Equal(t, "Alice", ended.WinnerName)
	assert.Equal(t, map[string]int{"player-1": 30, "player-2": 30}, ended.Bets)
	require.Len(t, ended.Players, 2)
	assert.Equal(t, PlayerState{ID: "player-1", Name: "Alice", Balance: 70, RoundsWon: 1}, ended.Players[0])
	assert.Equal(t, PlayerState{ID: "player-2", Name: "Bob", Balance: 70}, ended.Players[1])

	room := h.room(roomID)
	assert.Equal(t, game.PhaseRoundEnd, room.Phase())
	assert.Equal(t, []game.RoundResult{{Round: 1, WinnerID: "player-1", WinnerName: "Alice", BetAmount: 30}}, room.History())

	task, ok := h.gs.PendingTask(roomID)
	require.True(t, ok)
	assert.Equal(t, taskNextRound, task)

	h.advanceBy(4 * time.Second)
	assert.Zero(t, alice.count(MessageTypeRoundStarted), "next round waits the full delay")
	assert.Equal(t, game.PhaseRoundEnd, room.Phase())

	assert.Equal(t, time.Second, h.advance())

	started := decodeData[RoundStartedData](t, alice.last(t, MessageTypeRoundStarted))
	assert.Equal(t, 2, started.CurrentRound)
	assert.Equal(t, game.PhaseBetting, started.Phase)
	assert.Zero(t, room.BetCount())
	assert.Equal(t, 1, h.stats.Snapshot().RoundsTied)
}

func TestGameServiceGameEndsOnRoundsToWin(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	roomID, conns := h.startedRoom("Alice", "Bob")
	alice, bob := conns[0], conns[1]

	for round := 1; round <= 3; round++ {
		h.gs.PlaceBet(alice.id, 20)
		h.gs.PlaceBet(bob.id, 5)
		if round < 3 {
			assert.Equal(t, 5*time.Second, h.advance())
		}
	}

	assert.Equal(t, 2, alice.count(MessageTypeRoundStarted))
	ended := decodeData[GameEndedData](t, bob.last(t, MessageTypeGameEnded))
	assert.Equal(t, "player-1", ended.WinnerID)
	assert.Equal(t, "Alice", ended.WinnerName)
	assert.Equal(t, 3, ended.RoundsWon)
	assert.Len(t, ended.RoundResults, 3)
	assert.Equal(t, 40, ended.Players[0].Balance)
	assert.Equal(t, 85, ended.Players[1].Balance)

	room := h.room(roomID)
	assert.Equal(t, game.PhaseGameEnd, room.Phase())
	assert.Equal(t, 3, room.CurrentRound())

	task, ok := h.gs.PendingTask(roomID)
	require.True(t, ok)
	assert.Equal(t, taskReclaim, task)

	// Late bets after the end are ignored.
	alice.reset()
	h.gs.PlaceBet(alice.id, 5)
	assert.Empty(t, alice.types())

	assert.Equal(t, 60*time.Second, h.advance())

	_, exists := h.gs.Registry().Get(roomID)
	assert.False(t, exists)
	assert.True(t, room.Closed())
	_, seated := h.gs.Session(alice.id)
	assert.False(t, seated, "reclaiming a room frees its connections")
	assert.Empty(t, h.hub.Members(roomID))

	snap := h.stats.Snapshot()
	assert.Equal(t, 1, snap.GamesFinished)
	assert.Equal(t, 1, snap.ClosedByReason[CloseReasonFinished])

	// The freed connection can join a new room.
	next := h.gs.CreateRoom()
	h.gs.Join(alice.id, next, "Alice")
	assert.Equal(t, 1, alice.count(MessageTypeJoinedRoom))
}

func TestGameServiceGameEndsOnRoundLimit(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	roomID, conns := h.startedRoom("Alice", "Bob", "Carol")

	// Winners rotate A, B, C, A, B so nobody reaches three wins.
	for round := 0; round < 5; round++ {
		for i, conn := range conns {
			amount := 1
			if i == round%3 {
				amount = 10
			}
			h.gs.PlaceBet(conn.id, amount)
		}
		if round < 4 {
			h.advance()
		}
	}

	ended := decodeData[GameEndedData](t, conns[2].last(t, MessageTypeGameEnded))
	assert.Equal(t, "Alice", ended.WinnerName, "earliest joiner wins a tie on round wins")
	assert.Equal(t, 2, ended.RoundsWon)
	assert.Len(t, ended.RoundResults, 5)
	assert.Equal(t, 4, conns[0].count(MessageTypeRoundStarted))
	assert.Equal(t, 5, conns[0].count(MessageTypeRoundEnded))
	assert.Equal(t, game.PhaseGameEnd, h.room(roomID).Phase())
}

func TestGameServiceDisconnect(t *testing.T) {
	t.Parallel()

	t.Run("completes a round waiting on the leaver", func(t *testing.T) {
		h := newServiceHarness(t)
		roomID, conns := h.startedRoom("Alice", "Bob", "Carol")
		alice, bob, carol := conns[0], conns[1], conns[2]

		h.gs.PlaceBet(alice.id, 15)
		h.gs.PlaceBet(bob.id, 25)
		h.gs.Disconnect(carol.id)

		left := decodeData[PlayerLeftData](t, alice.last(t, MessageTypePlayerLeft))
		assert.Equal(t, "player-3", left.PlayerID)
		assert.Len(t, left.Players, 2)

		ended := decodeData[RoundEndedData](t, alice.last(t, MessageTypeRoundEnded))
		assert.Equal(t, "Bob", ended.WinnerName)
		assert.Equal(t, map[string]int{"player-1": 15, "player-2": 25}, ended.Bets)
		assert.Zero(t, carol.count(MessageTypePlayerLeft), "the leaver is no longer subscribed")
		assert.Equal(t, game.PhaseRoundEnd, h.room(roomID).Phase())
	})

	t.Run("drops the leaver's bet", func(t *testing.T) {
		h := newServiceHarness(t)
		roomID, conns := h.startedRoom("Alice", "Bob", "Carol")

		h.gs.PlaceBet(conns[0].id, 50)
		h.gs.Disconnect(conns[0].id)

		room := h.room(roomID)
		assert.Zero(t, room.BetCount())
		assert.Equal(t, game.PhaseBetting, room.Phase())
		assert.Zero(t, conns[1].count(MessageTypeRoundEnded))
	})

	t.Run("destroys an empty room and cancels its timer", func(t *testing.T) {
		h := newServiceHarness(t)
		roomID, conns := h.startedRoom("Alice", "Bob")
		room := h.room(roomID)

		h.gs.PlaceBet(conns[0].id, 10)
		h.gs.PlaceBet(conns[1].id, 20)
		_, pending := h.gs.PendingTask(roomID)
		require.True(t, pending)

		h.gs.Disconnect(conns[0].id)
		h.gs.Disconnect(conns[1].id)

		assert.True(t, room.Closed())
		_, exists := h.gs.Registry().Get(roomID)
		assert.False(t, exists)
		_, pending = h.gs.PendingTask(roomID)
		assert.False(t, pending)
		assert.Equal(t, 1, h.stats.Snapshot().ClosedByReason[CloseReasonEmpty])

		// Stale callbacks are harmless.
		h.gs.startNextRound(roomID)
		h.gs.reclaim(roomID)
		assert.Zero(t, conns[0].count(MessageTypeRoundStarted))
	})

	t.Run("without a session is a no-op", func(t *testing.T) {
		h := newServiceHarness(t)
		roomID := h.gs.CreateRoom()
		alice, _ := h.join(roomID, "Alice")
		stranger := h.connect()
		alice.reset()

		h.gs.Disconnect(stranger.id)
		h.gs.Disconnect(stranger.id)

		assert.Empty(t, alice.types())
		assert.Equal(t, 1, h.room(roomID).PlayerCount())
	})
}

func TestGameServiceConcurrentBets(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	names := make([]string, 10)
	for i := range names {
		names[i] = fmt.Sprintf("P%d", i)
	}
	roomID, conns := h.startedRoom(names...)

	var g errgroup.Group
	for i, conn := range conns {
		g.Go(func() error {
			h.gs.PlaceBet(conn.id, i+1)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for _, conn := range conns {
		assert.Equal(t, 1, conn.count(MessageTypeRoundEnded), "round resolves exactly once")
		assert.Equal(t, 10, conn.count(MessageTypeBetPlaced))
	}

	ended := decodeData[RoundEndedData](t, conns[0].last(t, MessageTypeRoundEnded))
	assert.Equal(t, "P9", ended.WinnerName)
	assert.Len(t, ended.Bets, 10)
	assert.Len(t, h.room(roomID).History(), 1)
}

func TestGameServiceRoomsAreIndependent(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	roomA, connsA := h.startedRoom("Alice", "Bob")
	roomB, connsB := h.startedRoom("Carol", "Dave")

	h.gs.PlaceBet(connsA[0].id, 10)
	h.gs.PlaceBet(connsA[1].id, 5)

	assert.Equal(t, game.PhaseRoundEnd, h.room(roomA).Phase())
	assert.Equal(t, game.PhaseBetting, h.room(roomB).Phase())
	for _, conn := range connsB {
		assert.Zero(t, conn.count(MessageTypeBetPlaced))
		assert.Zero(t, conn.count(MessageTypeRoundEnded))
	}
}

func TestGameServiceStop(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	roomID, conns := h.startedRoom("Alice", "Bob")
	h.gs.PlaceBet(conns[0].id, 10)
	h.gs.PlaceBet(conns[1].id, 20)

	h.gs.Stop()

	_, exists := h.gs.Registry().Get(roomID)
	assert.False(t, exists)
	_, pending := h.gs.PendingTask(roomID)
	assert.False(t, pending)
	assert.Equal(t, 1, h.stats.Snapshot().ClosedByReason[CloseReasonShutdown])
}

func TestErrorDataFromError(t *testing.T) {
	t.Parallel()

	data := ErrorDataFromError(fmt.Errorf("wrapped: %w", &game.InsufficientFundsError{Balance: 42, Amount: 50}))
	assert.Equal(t, ErrorData{Code: ErrorCodeInsufficientFunds, Message: "You don't have enough money! Your balance: 42"}, data)

	data = ErrorDataFromError(fmt.Errorf("join: %w", game.ErrAlreadyInRoom))
	assert.Equal(t, ErrorCodeAlreadyInRoom, data.Code)
	assert.Equal(t, "Already in a room", data.Message)
}

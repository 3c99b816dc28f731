package server

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/lox/bidroom/internal/game"
	"github.com/lox/bidroom/internal/roomid"
)

// Scheduler task names, also used as quartz tags.
const (
	taskNextRound = "nextRound"
	taskReclaim   = "reclaim"
)

// GameConfig holds the coordinator's timing.
type GameConfig struct {
	RoundDelay   time.Duration
	CleanupDelay time.Duration
}

// DefaultGameConfig returns the standard delays.
func DefaultGameConfig() GameConfig {
	return GameConfig{
		RoundDelay:   5 * time.Second,
		CleanupDelay: 60 * time.Second,
	}
}

// Seat ties a connection to the room and player it joined as.
type Seat struct {
	RoomID   string
	PlayerID string
}

// GameService validates player actions, mutates rooms and tells clients what
// happened. Every handler runs with the target room locked.
type GameService struct {
	registry    *game.Registry
	notifier    Notifier
	scheduler   *Scheduler
	monitor     RoomMonitor
	logger      *log.Logger
	config      GameConfig
	newPlayerID func() string

	// Lock order: room, then mu.
	mu       sync.Mutex
	sessions map[string]Seat   // connID -> seat
	conns    map[string]string // playerID -> connID
}

// GameServiceOption configures a GameService.
type GameServiceOption func(*GameService)

// WithGameConfig overrides the default delays.
func WithGameConfig(cfg GameConfig) GameServiceOption {
	return func(gs *GameService) {
		gs.config = cfg
	}
}

// WithMonitor attaches a room monitor.
func WithMonitor(monitor RoomMonitor) GameServiceOption {
	return func(gs *GameService) {
		if monitor != nil {
			gs.monitor = monitor
		}
	}
}

// WithPlayerIDGenerator replaces the uuid player id source.
func WithPlayerIDGenerator(gen func() string) GameServiceOption {
	return func(gs *GameService) {
		if gen != nil {
			gs.newPlayerID = gen
		}
	}
}

// NewGameService creates a new game service
func NewGameService(registry *game.Registry, notifier Notifier, clock quartz.Clock, logger *log.Logger, opts ...GameServiceOption) *GameService {
	if clock == nil {
		clock = quartz.NewReal()
	}

	gs := &GameService{
		registry:    registry,
		notifier:    notifier,
		monitor:     NullRoomMonitor{},
		logger:      logger.WithPrefix("game"),
		config:      DefaultGameConfig(),
		newPlayerID: uuid.NewString,
		sessions:    make(map[string]Seat),
		conns:       make(map[string]string),
	}
	for _, opt := range opts {
		opt(gs)
	}
	gs.scheduler = NewScheduler(clock, logger)
	return gs
}

// Registry returns the room registry
func (gs *GameService) Registry() *game.Registry {
	return gs.registry
}

// Session returns the seat held by a connection
func (gs *GameService) Session(connID string) (Seat, bool) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	seat, ok := gs.sessions[connID]
	return seat, ok
}

// ConnectionFor returns the connection that owns a player
func (gs *GameService) ConnectionFor(playerID string) (string, bool) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	connID, ok := gs.conns[playerID]
	return connID, ok
}

// PendingTask reports which delayed transition, if any, a room is waiting on
func (gs *GameService) PendingTask(roomID string) (string, bool) {
	return gs.scheduler.Pending(roomID)
}

// CreateRoom allocates a new room and returns its id
func (gs *GameService) CreateRoom() string {
	room := gs.registry.Create()
	gs.monitor.OnRoomCreated(room.ID)
	gs.logger.Info("Room created", "room", room.ID, "rooms", gs.registry.Len())
	return room.ID
}

// Join seats the connection's player in a waiting room
func (gs *GameService) Join(connID, roomID, playerName string) {
	if err := roomid.Validate(roomID); err != nil {
		gs.logger.Debug("Rejected malformed room id", "conn", connID, "room", roomID, "error", err)
		gs.sendError(connID, game.ErrRoomNotFound)
		return
	}

	room, ok := gs.registry.Get(roomID)
	if !ok {
		gs.sendError(connID, game.ErrRoomNotFound)
		return
	}

	room.Lock()
	defer room.Unlock()

	if room.Closed() {
		gs.sendError(connID, game.ErrRoomNotFound)
		return
	}

	gs.mu.Lock()
	if _, seated := gs.sessions[connID]; seated {
		gs.mu.Unlock()
		gs.sendError(connID, game.ErrAlreadyInRoom)
		return
	}

	player, err := room.AddPlayer(gs.newPlayerID(), playerName, connID)
	if err != nil {
		gs.mu.Unlock()
		gs.handleError(connID, room.ID, err)
		return
	}
	gs.sessions[connID] = Seat{RoomID: room.ID, PlayerID: player.ID}
	gs.conns[player.ID] = connID
	gs.mu.Unlock()

	gs.notifier.Subscribe(room.ID, connID)
	gs.logger.Info("Player joined", "room", room.ID, "player", player.ID, "name", player.Name, "players", room.PlayerCount())

	gs.broadcast(room.ID, MessageTypeRoomUpdate, RoomUpdateData{
		Players: PlayerStatesFromGame(room.Players()),
		Phase:   room.Phase(),
	})
	gs.send(connID, MessageTypeJoinedRoom, JoinedRoomData{
		PlayerID: player.ID,
		RoomID:   room.ID,
	})
}

// Start begins the match in the connection's room
func (gs *GameService) Start(connID string) {
	room, seat, ok := gs.lockSeat(connID)
	if !ok {
		return
	}
	defer room.Unlock()

	if _, present := room.Player(seat.PlayerID); !present {
		return
	}

	if err := room.Start(); err != nil {
		gs.handleError(connID, room.ID, err)
		return
	}

	players := room.Players()
	gs.logger.Info("Game started", "room", room.ID, "players", len(players))
	gs.monitor.OnGameStarted(room.ID, players)

	gs.broadcast(room.ID, MessageTypeGameStarted, GameStartedData{
		CurrentRound: room.CurrentRound(),
		Phase:        room.Phase(),
		Players:      PlayerStatesFromGame(players),
	})
}

// PlaceBet records a bet for the connection's player and resolves the round
// once every player has bet.
func (gs *GameService) PlaceBet(connID string, amount int) {
	room, seat, ok := gs.lockSeat(connID)
	if !ok {
		return
	}
	defer room.Unlock()

	player, err := room.PlaceBet(seat.PlayerID, amount)
	if err != nil {
		gs.handleError(connID, room.ID, err)
		return
	}

	gs.logger.Debug("Bet placed", "room", room.ID, "player", player.ID, "amount", amount, "balance", player.Balance)
	gs.broadcast(room.ID, MessageTypeBetPlaced, BetPlacedData{
		PlayerID:   player.ID,
		PlayerName: player.Name,
		Amount:     amount,
	})

	if room.RoundComplete() {
		gs.resolveRound(room)
	}
}

// Disconnect removes the connection's player from its room
func (gs *GameService) Disconnect(connID string) {
	gs.mu.Lock()
	seat, ok := gs.sessions[connID]
	if ok {
		delete(gs.sessions, connID)
		delete(gs.conns, seat.PlayerID)
	}
	gs.mu.Unlock()

	if !ok {
		return
	}
	gs.notifier.Unsubscribe(seat.RoomID, connID)

	room, ok := gs.registry.Get(seat.RoomID)
	if !ok {
		return
	}

	room.Lock()
	defer room.Unlock()

	if room.Closed() {
		return
	}

	if _, removed := room.RemovePlayer(seat.PlayerID); !removed {
		return
	}
	gs.logger.Info("Player left", "room", room.ID, "player", seat.PlayerID, "players", room.PlayerCount())

	if room.PlayerCount() == 0 {
		gs.destroy(room, CloseReasonEmpty)
		return
	}

	gs.broadcast(room.ID, MessageTypePlayerLeft, PlayerLeftData{
		PlayerID: seat.PlayerID,
		Players:  PlayerStatesFromGame(room.Players()),
	})

	if room.RoundComplete() {
		gs.resolveRound(room)
	}
}

// Stop cancels all pending transitions and closes every live room.
func (gs *GameService) Stop() {
	gs.scheduler.Stop()
	for _, summary := range gs.registry.List() {
		room, ok := gs.registry.Get(summary.ID)
		if !ok {
			continue
		}
		room.Lock()
		if !room.Closed() {
			gs.destroy(room, CloseReasonShutdown)
		}
		room.Unlock()
	}
}

// lockSeat returns the connection's live room, locked. The caller unlocks.
func (gs *GameService) lockSeat(connID string) (*game.Room, Seat, bool) {
	seat, ok := gs.Session(connID)
	if !ok {
		return nil, Seat{}, false
	}

	room, ok := gs.registry.Get(seat.RoomID)
	if !ok {
		return nil, Seat{}, false
	}

	room.Lock()
	if room.Closed() {
		room.Unlock()
		return nil, Seat{}, false
	}
	return room, seat, true
}

// resolveRound settles the round and schedules whatever comes next. The room
// must be locked.
func (gs *GameService) resolveRound(room *game.Room) {
	resolution, err := room.ResolveRound()
	if err != nil {
		gs.logger.Debug("Skipped round resolution", "room", room.ID, "error", err)
		return
	}

	players := room.Players()
	data := RoundEndedData{
		Round:   resolution.Round,
		Bets:    betMap(resolution.Bets),
		Players: PlayerStatesFromGame(players),
	}
	if resolution.HasWinner {
		data.WinnerID = resolution.Result.WinnerID
		data.WinnerName = resolution.Result.WinnerName
		gs.logger.Info("Round ended", "room", room.ID, "round", resolution.Round, "winner", data.WinnerName, "amount", resolution.Result.BetAmount, "tied", len(resolution.Tied) > 1)
	} else {
		gs.logger.Info("Round ended without bets", "room", room.ID, "round", resolution.Round)
	}

	gs.monitor.OnRoundEnded(RoundReport{
		RoomID:     room.ID,
		Resolution: resolution,
		Players:    players,
	})
	gs.broadcast(room.ID, MessageTypeRoundEnded, data)

	if resolution.GameOver {
		gs.endGame(room)
		return
	}

	roomID := room.ID
	gs.scheduler.Schedule(roomID, taskNextRound, gs.config.RoundDelay, func() {
		gs.startNextRound(roomID)
	})
}

// startNextRound runs from the scheduler.
func (gs *GameService) startNextRound(roomID string) {
	room, ok := gs.registry.Get(roomID)
	if !ok {
		return
	}

	room.Lock()
	defer room.Unlock()

	if room.Closed() || room.Phase() != game.PhaseRoundEnd {
		return
	}

	if err := room.StartNextRound(); err != nil {
		gs.logger.Warn("Failed to start next round", "room", roomID, "error", err)
		return
	}

	gs.logger.Debug("Round started", "room", roomID, "round", room.CurrentRound())
	gs.broadcast(roomID, MessageTypeRoundStarted, RoundStartedData{
		CurrentRound: room.CurrentRound(),
		Phase:        room.Phase(),
		Players:      PlayerStatesFromGame(room.Players()),
	})
}

// endGame finishes the match and schedules reclamation. The room must be
// locked.
func (gs *GameService) endGame(room *game.Room) {
	result, err := room.EndGame()
	if err != nil {
		gs.logger.Warn("Failed to end game", "room", room.ID, "error", err)
		return
	}

	data := GameEndedData{
		RoundResults: RoundResultsFromGame(result.RoundResults),
		Players:      PlayerStatesFromGame(result.Players),
	}
	if result.HasWinner {
		data.WinnerID = result.Winner.ID
		data.WinnerName = result.Winner.Name
		data.RoundsWon = result.Winner.RoundsWon
	}

	gs.logger.Info("Game ended", "room", room.ID, "winner", data.WinnerName, "rounds", room.CurrentRound())
	gs.monitor.OnGameEnded(GameReport{
		RoomID: room.ID,
		Rounds: room.CurrentRound(),
		Result: result,
	})
	gs.broadcast(room.ID, MessageTypeGameEnded, data)

	roomID := room.ID
	gs.scheduler.Schedule(roomID, taskReclaim, gs.config.CleanupDelay, func() {
		gs.reclaim(roomID)
	})
}

// reclaim runs from the scheduler once a finished room has lingered long
// enough.
func (gs *GameService) reclaim(roomID string) {
	room, ok := gs.registry.Get(roomID)
	if !ok {
		return
	}

	room.Lock()
	defer room.Unlock()

	if room.Closed() || room.Phase() != game.PhaseGameEnd {
		return
	}
	gs.destroy(room, CloseReasonFinished)
}

// destroy closes the room, forgets every seat in it and removes it from the
// registry. The room must be locked.
func (gs *GameService) destroy(room *game.Room, reason string) {
	if !room.Close() {
		return
	}

	gs.scheduler.Cancel(room.ID)
	gs.registry.Remove(room.ID)
	gs.notifier.DropRoom(room.ID)

	gs.mu.Lock()
	for _, p := range room.Players() {
		if connID, ok := gs.conns[p.ID]; ok {
			delete(gs.sessions, connID)
			delete(gs.conns, p.ID)
		}
	}
	gs.mu.Unlock()

	gs.monitor.OnRoomClosed(room.ID, reason)
	gs.logger.Info("Room closed", "room", room.ID, "reason", reason, "rooms", gs.registry.Len())
}

func (gs *GameService) broadcast(roomID string, messageType MessageType, data interface{}) {
	msg, err := NewMessage(messageType, data)
	if err != nil {
		gs.logger.Error("Failed to create message", "type", messageType, "error", err)
		return
	}
	gs.notifier.Broadcast(roomID, msg)
}

func (gs *GameService) send(connID string, messageType MessageType, data interface{}) {
	msg, err := NewMessage(messageType, data)
	if err != nil {
		gs.logger.Error("Failed to create message", "type", messageType, "error", err)
		return
	}
	if err := gs.notifier.Send(connID, msg); err != nil {
		gs.logger.Debug("Failed to send message", "conn", connID, "type", messageType, "error", err)
	}
}

// handleError reports validation failures to the caller and swallows the
// benign ones.
func (gs *GameService) handleError(connID, roomID string, err error) {
	if game.IsBenign(err) {
		gs.logger.Debug("Ignored action", "conn", connID, "room", roomID, "error", err)
		return
	}
	gs.sendError(connID, err)
}

func (gs *GameService) sendError(connID string, err error) {
	gs.send(connID, MessageTypeError, ErrorDataFromError(err))
}

// ErrorDataFromError maps a game error to the payload sent to clients.
func ErrorDataFromError(err error) ErrorData {
	var (
		funds   *game.InsufficientFundsError
		players *game.InsufficientPlayersError
	)
	switch {
	case errors.As(err, &funds):
		return ErrorData{
			Code:    ErrorCodeInsufficientFunds,
			Message: fmt.Sprintf("You don't have enough money! Your balance: %d", funds.Balance),
		}
	case errors.Is(err, game.ErrRoomNotFound):
		return ErrorData{Code: ErrorCodeRoomNotFound, Message: "Room not found"}
	case errors.Is(err, game.ErrAlreadyInRoom):
		return ErrorData{Code: ErrorCodeAlreadyInRoom, Message: "Already in a room"}
	case errors.Is(err, game.ErrGameAlreadyStarted):
		return ErrorData{Code: ErrorCodeGameAlreadyStarted, Message: "Game already started"}
	case errors.As(err, &players):
		return ErrorData{
			Code:    ErrorCodeInsufficientPlayers,
			Message: fmt.Sprintf("Need at least %d players to start", players.Required),
		}
	case errors.Is(err, game.ErrInsufficientPlayers):
		return ErrorData{Code: ErrorCodeInsufficientPlayers, Message: "Not enough players to start"}
	case errors.Is(err, game.ErrInvalidAmount):
		return ErrorData{Code: ErrorCodeInvalidAmount, Message: "Invalid bet amount"}
	case errors.Is(err, game.ErrBetAlreadyPlaced):
		return ErrorData{Code: ErrorCodeBetAlreadyPlaced, Message: "You have already bet this round"}
	default:
		return ErrorData{Code: ErrorCodeInternal, Message: err.Error()}
	}
}

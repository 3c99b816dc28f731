package server

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/lox/bidroom/internal/game"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Decode unmarshals the message payload into v. An absent payload decodes as
// an empty object.
func (m *Message) Decode(v interface{}) error {
	data := bytes.TrimSpace(m.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		data = []byte("{}")
	}
	return json.Unmarshal(data, v)
}

// Client → Server Messages

type JoinRoomData struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
}

type StartGameData struct{}

// PlaceBetData keeps the amount raw: clients send numbers or numeric strings.
type PlaceBetData struct {
	Amount json.RawMessage `json:"amount"`
}

// Value converts the amount to a whole number the way a lenient integer parse
// would. Numbers are truncated toward zero. Strings are read up to the first
// character that is not a digit, so "12abc" is 12, "1e3" is 1 and "0x10" is
// 16. Anything else yields 0, which bet validation rejects. Results are
// clamped to the int32 range.
func (d PlaceBetData) Value() int {
	raw := bytes.TrimSpace(d.Amount)
	if len(raw) == 0 {
		return 0
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		return parseIntPrefix(s)
	}

	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Trunc(f)
	switch {
	case f > math.MaxInt32:
		return math.MaxInt32
	case f < math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}

// parseIntPrefix reads an optionally signed decimal or 0x-prefixed hex
// integer from the start of s, ignoring leading whitespace and whatever
// follows the digits.
func parseIntPrefix(s string) int {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)

	negative := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		negative = s[0] == '-'
		s = s[1:]
	}

	base := int64(10)
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base = 16
		s = s[2:]
	}

	var n int64
	for i := 0; i < len(s); i++ {
		digit := digitValue(s[i])
		if digit < 0 || digit >= base {
			break
		}
		if n <= math.MaxInt32 {
			n = n*base + digit
		}
	}

	if negative {
		n = -n
	}
	return int(max(min(n, math.MaxInt32), math.MinInt32))
}

func digitValue(c byte) int64 {
	switch {
	case c >= '0' && c <= '9':
		return int64(c - '0')
	case c >= 'a' && c <= 'f':
		return int64(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int64(c-'A') + 10
	}
	return -1
}

// Server → Client Messages

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PlayerState struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Balance   int    `json:"balance"`
	RoundsWon int    `json:"roundsWon"`
}

type RoomUpdateData struct {
	Players []PlayerState `json:"players"`
	Phase   game.Phase    `json:"phase"`
}

type JoinedRoomData struct {
	PlayerID string `json:"playerId"`
	RoomID   string `json:"roomId"`
}

type GameStartedData struct {
	CurrentRound int           `json:"currentRound"`
	Phase        game.Phase    `json:"phase"`
	Players      []PlayerState `json:"players"`
}

type BetPlacedData struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Amount     int    `json:"amount"`
}

type RoundEndedData struct {
	Round      int            `json:"round"`
	WinnerID   string         `json:"winnerId"`
	WinnerName string         `json:"winnerName"`
	Bets       map[string]int `json:"bets"`
	Players    []PlayerState  `json:"players"`
}

type RoundStartedData struct {
	CurrentRound int           `json:"currentRound"`
	Phase        game.Phase    `json:"phase"`
	Players      []PlayerState `json:"players"`
}

type RoundResultData struct {
	Round      int    `json:"round"`
	WinnerID   string `json:"winnerId"`
	WinnerName string `json:"winnerName"`
	BetAmount  int    `json:"betAmount"`
}

type GameEndedData struct {
	WinnerID     string            `json:"winnerId"`
	WinnerName   string            `json:"winnerName"`
	RoundsWon    int               `json:"roundsWon"`
	RoundResults []RoundResultData `json:"roundResults"`
	Players      []PlayerState     `json:"players"`
}

type PlayerLeftData struct {
	PlayerID string        `json:"playerId"`
	Players  []PlayerState `json:"players"`
}

// HTTP responses

type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
}

type RoomListResponse struct {
	Rooms []game.RoomSummary `json:"rooms"`
}

// Helper functions to convert between game types and message types

func PlayerStateFromGame(p game.Player) PlayerState {
	return PlayerState{
		ID:        p.ID,
		Name:      p.Name,
		Balance:   p.Balance,
		RoundsWon: p.RoundsWon,
	}
}

func PlayerStatesFromGame(players []game.Player) []PlayerState {
	states := make([]PlayerState, len(players))
	for i, p := range players {
		states[i] = PlayerStateFromGame(p)
	}
	return states
}

func RoundResultsFromGame(results []game.RoundResult) []RoundResultData {
	data := make([]RoundResultData, len(results))
	for i, r := range results {
		data[i] = RoundResultData{
			Round:      r.Round,
			WinnerID:   r.WinnerID,
			WinnerName: r.WinnerName,
			BetAmount:  r.BetAmount,
		}
	}
	return data
}

func betMap(bets []game.Bet) map[string]int {
	m := make(map[string]int, len(bets))
	for _, b := range bets {
		m[b.PlayerID] = b.Amount
	}
	return m
}

package server

// MessageType represents a WebSocket message type with type safety
type MessageType string

// WebSocket message type constants
const (
	// Client to server messages
	MessageTypeJoinRoom  MessageType = "joinRoom"
	MessageTypeStartGame MessageType = "startGame"
	MessageTypePlaceBet  MessageType = "placeBet"

	// Server to client messages
	MessageTypeRoomUpdate   MessageType = "roomUpdate"
	MessageTypeJoinedRoom   MessageType = "joinedRoom"
	MessageTypeError        MessageType = "error"
	MessageTypeGameStarted  MessageType = "gameStarted"
	MessageTypeBetPlaced    MessageType = "betPlaced"
	MessageTypeRoundEnded   MessageType = "roundEnded"
	MessageTypeRoundStarted MessageType = "roundStarted"
	MessageTypeGameEnded    MessageType = "gameEnded"
	MessageTypePlayerLeft   MessageType = "playerLeft"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}

// Error codes carried in ErrorData.Code
const (
	ErrorCodeRoomNotFound        = "room_not_found"
	ErrorCodeGameAlreadyStarted  = "game_already_started"
	ErrorCodeInsufficientPlayers = "insufficient_players"
	ErrorCodeInvalidAmount       = "invalid_amount"
	ErrorCodeInsufficientFunds   = "insufficient_funds"
	ErrorCodeBetAlreadyPlaced    = "bet_already_placed"
	ErrorCodeAlreadyInRoom       = "already_in_room"
	ErrorCodeInvalidMessage      = "invalid_message"
	ErrorCodeUnknownMessageType  = "unknown_message_type"
	ErrorCodeInternal            = "internal_error"
)

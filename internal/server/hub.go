package server

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
)

// ErrConnectionNotFound is returned when sending to an unknown connection.
var ErrConnectionNotFound = errors.New("connection not found")

// Sender is anything that can deliver a message to a single client.
type Sender interface {
	ID() string
	SendMessage(msg *Message) error
}

// Notifier is the outbound side the game service talks to. Delivery is
// fire-and-forget: the game never waits on a client.
type Notifier interface {
	Send(connID string, msg *Message) error
	Broadcast(roomID string, msg *Message)
	Subscribe(roomID, connID string)
	Unsubscribe(roomID, connID string)
	DropRoom(roomID string)
}

// Hub tracks live connections and which room each one listens to.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]Sender
	rooms  map[string]map[string]struct{}
	logger *log.Logger
}

// NewHub creates an empty hub
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		conns:  make(map[string]Sender),
		rooms:  make(map[string]map[string]struct{}),
		logger: logger.WithPrefix("hub"),
	}
}

// Register makes a connection addressable by its id
func (h *Hub) Register(s Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[s.ID()] = s
}

// Unregister forgets a connection and all of its room subscriptions
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, connID)
	for roomID, members := range h.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Subscribe adds a connection to a room's broadcast group
func (h *Hub) Subscribe(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[roomID] = members
	}
	members[connID] = struct{}{}
}

// Unsubscribe removes a connection from a room's broadcast group
func (h *Hub) Unsubscribe(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// DropRoom removes a room's broadcast group entirely
func (h *Hub) DropRoom(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, roomID)
}

// Send delivers a message to one connection
func (h *Hub) Send(connID string, msg *Message) error {
	h.mu.RLock()
	s, ok := h.conns[connID]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, connID)
	}
	return s.SendMessage(msg)
}

// Broadcast sends a message to every connection subscribed to a room
func (h *Hub) Broadcast(roomID string, msg *Message) {
	h.mu.RLock()
	targets := make([]Sender, 0, len(h.rooms[roomID]))
	for connID := range h.rooms[roomID] {
		if s, ok := h.conns[connID]; ok {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	count := 0
	for _, s := range targets {
		if err := s.SendMessage(msg); err != nil {
			h.logger.Warn("Failed to send message to client", "error", err, "conn", s.ID())
			continue
		}
		count++
	}

	h.logger.Debug("Broadcasted message to room", "room", roomID, "type", msg.Type, "recipients", count)
}

// Members returns the connection ids subscribed to a room, sorted
func (h *Hub) Members(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := make([]string, 0, len(h.rooms[roomID]))
	for connID := range h.rooms[roomID] {
		members = append(members, connID)
	}
	sort.Strings(members)
	return members
}

// ConnectionCount returns the number of registered connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

package game

import (
	"sort"
	"sync"

	"github.com/lox/bidroom/internal/roomid"
)

// Registry maps room ids to rooms for the lifetime of the process. Ids of
// removed rooms are retired and never issued again.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]*Room
	retired map[string]struct{}
	rules   Rules
	newID   func() string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithIDGenerator replaces the random room id source.
func WithIDGenerator(gen func() string) RegistryOption {
	return func(r *Registry) {
		r.newID = gen
	}
}

// NewRegistry creates an empty registry whose rooms use rules.
func NewRegistry(rules Rules, opts ...RegistryOption) *Registry {
	r := &Registry{
		rooms:   make(map[string]*Room),
		retired: make(map[string]struct{}),
		rules:   rules,
		newID:   roomid.Generate,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rules returns the rules new rooms are created with.
func (r *Registry) Rules() Rules {
	return r.rules
}

// Create registers a new waiting room under a fresh id.
func (r *Registry) Create() *Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	for r.taken(id) {
		id = r.newID()
	}

	room := NewRoom(id, r.rules)
	r.rooms[id] = room
	return room
}

// Get looks up a room. A missing room is a normal outcome: it never existed
// or has already been reclaimed.
func (r *Registry) Get(id string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	return room, ok
}

// Remove deletes a room. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[id]; !ok {
		return false
	}
	delete(r.rooms, id)
	r.retired[id] = struct{}{}
	return true
}

func (r *Registry) taken(id string) bool {
	if _, live := r.rooms[id]; live {
		return true
	}
	_, retired := r.retired[id]
	return retired
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// List returns a summary of every live room, sorted by id.
//
// Each room is locked in turn while it is summarised, so List must not be
// called with a room lock held.
func (r *Registry) List() []RoomSummary {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.RUnlock()

	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		room.Lock()
		if !room.Closed() {
			summaries = append(summaries, room.Summary())
		}
		room.Unlock()
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].ID < summaries[j].ID
	})
	return summaries
}

package memory

import (
	"sync"

	"quizer-server/internal/domain"
	"quizer-server/internal/game"
)

// RoomRegistry is the in-memory implementation of game.RoomRegistry: a
// plain keyed store, process-wide, mutated only by the session engine.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*game.Room
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[string]*game.Room),
	}
}

// Create registers a room under code; it never overwrites.
func (r *RoomRegistry) Create(code string, room *game.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[code]; ok {
		return domain.ErrRoomCodeTaken
	}
	r.rooms[code] = room
	return nil
}

func (r *RoomRegistry) Get(code string) (*game.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[code]
	return room, ok
}

// Remove is idempotent.
func (r *RoomRegistry) Remove(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, code)
}

// ForEach visits a snapshot of the current rooms without holding the
// registry lock during fn, so fn may call back into the registry.
func (r *RoomRegistry) ForEach(fn func(room *game.Room)) {
	r.mu.RLock()
	rooms := make([]*game.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.RUnlock()

	for _, room := range rooms {
		fn(room)
	}
}

package redis

import (
	"context"
	"sync"
	"time"

	"quizer-server/internal/domain"
	"quizer-server/internal/game"

	"github.com/redis/go-redis/v9"
)

// RoomRegistry is a Redis-aware implementation of game.RoomRegistry.
// Notes:
//   - Rooms themselves stay in-process: the engine's per-room locking and
//     broadcast wiring assume a single owner, and losing them on restart is
//     an explicit design boundary.
//   - Redis only carries best-effort liveness markers so external
//     dashboards can see which room codes are active. Nothing is ever read
//     back from Redis into a live room.
type RoomRegistry struct {
	client *redis.Client
	ttl    time.Duration

	mu    sync.RWMutex
	rooms map[string]*game.Room
}

func NewRoomRegistry(client *redis.Client, ttl time.Duration) *RoomRegistry {
	return &RoomRegistry{
		client: client,
		ttl:    ttl,
		rooms:  make(map[string]*game.Room),
	}
}

func (r *RoomRegistry) Create(code string, room *game.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[code]; ok {
		return domain.ErrRoomCodeTaken
	}
	r.rooms[code] = room
	// best-effort liveness marker
	_ = r.client.Set(context.Background(), r.key(code), "1", r.ttl).Err()
	return nil
}

func (r *RoomRegistry) Get(code string) (*game.Room, bool) {
	r.mu.RLock()
	room, ok := r.rooms[code]
	r.mu.RUnlock()
	if ok {
		// Every lookup counts as room activity and re-arms the marker, so
		// long-running rooms don't expire off external dashboards.
		_ = r.client.Expire(context.Background(), r.key(code), r.ttl).Err()
	}
	return room, ok
}

func (r *RoomRegistry) Remove(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[code]; !ok {
		return
	}
	delete(r.rooms, code)
	_ = r.client.Del(context.Background(), r.key(code)).Err()
}

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

func (r *RoomRegistry) key(code string) string {
	return "room:live:" + code
}

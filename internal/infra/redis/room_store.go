package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-room-service/internal/app"
)

const maxCodeAttempts = 16

// ErrCodeSpaceExhausted is returned when no free room code was found.
var ErrCodeSpaceExhausted = errors.New("no free room code")

// RoomStore is a Redis-aware implementation of app.RoomRepository.
// Notes:
//   - Rooms, their clocks and their subscribers still live in a local map.
//   - Codes are reserved with SETNX so instances sharing a Redis never hand out the same
//     code; the key doubles as a liveness marker and expires after ttl.
type RoomStore struct {
	client  *redis.Client
	ttl     time.Duration
	newCode func() string

	mu    sync.RWMutex
	rooms map[string]*app.Room
}

func NewRoomStore(client *redis.Client, ttl time.Duration) *RoomStore {
	return NewRoomStoreWithCodes(client, ttl, app.NewRoomCode)
}

// NewRoomStoreWithCodes is test-only for predictable room codes.
func NewRoomStoreWithCodes(client *redis.Client, ttl time.Duration, newCode func() string) *RoomStore {
	return &RoomStore{
		client:  client,
		ttl:     ttl,
		newCode: newCode,
		rooms:   make(map[string]*app.Room),
	}
}

func (s *RoomStore) Create(ctx context.Context, build func(code string) *app.Room) (*app.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < maxCodeAttempts; i++ {
		code := s.newCode()
		if _, taken := s.rooms[code]; taken {
			continue
		}
		ok, err := s.client.SetNX(ctx, s.key(code), "1", s.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("reserve room code: %w", err)
		}
		if !ok {
			continue
		}
		room := build(code)
		s.rooms[code] = room
		return room, nil
	}
	return nil, ErrCodeSpaceExhausted
}

func (s *RoomStore) Get(code string) (*app.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	return room, ok
}

func (s *RoomStore) Remove(ctx context.Context, code string) (*app.Room, bool) {
	s.mu.Lock()
	room, ok := s.rooms[code]
	delete(s.rooms, code)
	s.mu.Unlock()
	if !ok {
		return nil, false
	}

	room.Close()
	// best-effort release of the reservation
	_ = s.client.Del(ctx, s.key(code)).Err()
	return room, true
}

func (s *RoomStore) Rooms() []*app.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*app.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		out = append(out, room)
	}
	return out
}

func (s *RoomStore) key(code string) string {
	return "quiz:room:" + code
}

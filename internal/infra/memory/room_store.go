package memory

import (
	"context"
	"errors"
	"sync"

	"quiz-room-service/internal/app"
)

const maxCodeAttempts = 16

// ErrCodeSpaceExhausted is returned when no free room code was found.
var ErrCodeSpaceExhausted = errors.New("no free room code")

// RoomStore is an in-memory implementation of app.RoomRepository.
type RoomStore struct {
	newCode func() string

	mu    sync.RWMutex
	rooms map[string]*app.Room
}

func NewRoomStore() *RoomStore {
	return NewRoomStoreWithCodes(app.NewRoomCode)
}

// NewRoomStoreWithCodes is test-only for predictable room codes.
func NewRoomStoreWithCodes(newCode func() string) *RoomStore {
	return &RoomStore{
		newCode: newCode,
		rooms:   make(map[string]*app.Room),
	}
}

func (s *RoomStore) Create(_ context.Context, build func(code string) *app.Room) (*app.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < maxCodeAttempts; i++ {
		code := s.newCode()
		if _, taken := s.rooms[code]; taken {
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

// Remove drops the room from the map and then closes it, outside the store lock.
func (s *RoomStore) Remove(_ context.Context, code string) (*app.Room, bool) {
	s.mu.Lock()
	room, ok := s.rooms[code]
	delete(s.rooms, code)
	s.mu.Unlock()

	if ok {
		room.Close()
	}
	return room, ok
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

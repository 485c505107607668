package app

import (
	"sync"

	"quiz-room-service/internal/domain"
)

const defaultSubscriberBuffer = 16

// Broadcaster fans room events out to subscriber channels. Its only state is who is
// subscribed to which room.
type Broadcaster struct {
	buffer int

	mu   sync.RWMutex
	subs map[string]map[chan domain.Event]struct{}
}

func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Broadcaster{
		buffer: buffer,
		subs:   make(map[string]map[chan domain.Event]struct{}),
	}
}

// Subscribe returns a channel of events for one room.
// The caller must invoke the returned cancel function to avoid leaks.
func (b *Broadcaster) Subscribe(roomCode string) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, b.buffer)

	b.mu.Lock()
	if b.subs[roomCode] == nil {
		b.subs[roomCode] = make(map[chan domain.Event]struct{})
	}
	b.subs[roomCode][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[roomCode][ch]; ok {
			delete(b.subs[roomCode], ch)
			close(ch)
			if len(b.subs[roomCode]) == 0 {
				delete(b.subs, roomCode)
			}
		}
	}
	return ch, cancel
}

// Publish delivers events in order without blocking. A subscriber whose buffer is full
// loses its oldest pending event.
func (b *Broadcaster) Publish(events ...domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ev := range events {
		for ch := range b.subs[ev.RoomCode] {
			select {
			case ch <- ev:
			default:
				select {
				case <-ch:
				default:
				}
				select {
				case ch <- ev:
				default:
				}
			}
		}
	}
}

// CloseRoom closes every subscriber channel of a room. Cancel functions handed out
// earlier become no-ops.
func (b *Broadcaster) CloseRoom(roomCode string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[roomCode] {
		close(ch)
	}
	delete(b.subs, roomCode)
}

func (b *Broadcaster) Subscribers(roomCode string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[roomCode])
}

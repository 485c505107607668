package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"quiz-room-service/internal/domain"
)

func TestBroadcasterFansOutPerRoom(t *testing.T) {
	b := NewBroadcaster(4)
	a1, cancelA1 := b.Subscribe("AAA")
	defer cancelA1()
	a2, cancelA2 := b.Subscribe("AAA")
	defer cancelA2()
	other, cancelOther := b.Subscribe("BBB")
	defer cancelOther()

	b.Publish(domain.Event{Type: domain.EventTick, RoomCode: "AAA"})

	require.Equal(t, domain.EventTick, (<-a1).Type)
	require.Equal(t, domain.EventTick, (<-a2).Type)
	require.Len(t, other, 0)
	require.Equal(t, 2, b.Subscribers("AAA"))
}

func TestBroadcasterDropsOldestForSlowSubscriber(t *testing.T) {
	b := NewBroadcaster(2)
	ch, cancel := b.Subscribe("AAA")
	defer cancel()

	for i := int64(1); i <= 5; i++ {
		b.Publish(domain.Event{Type: domain.EventTick, RoomCode: "AAA", Payload: domain.TickPayload{ElapsedMs: i}})
	}

	require.Len(t, ch, 2)
	require.Equal(t, domain.TickPayload{ElapsedMs: 4}, (<-ch).Payload)
	require.Equal(t, domain.TickPayload{ElapsedMs: 5}, (<-ch).Payload)
}

func TestBroadcasterCloseRoom(t *testing.T) {
	b := NewBroadcaster(0)
	ch, cancel := b.Subscribe("AAA")

	b.CloseRoom("AAA")
	_, open := <-ch
	require.False(t, open)
	require.Zero(t, b.Subscribers("AAA"))

	// cancel after CloseRoom must not double close
	cancel()
	b.Publish(domain.Event{Type: domain.EventTick, RoomCode: "AAA"})
}

func TestBroadcasterCancelUnsubscribes(t *testing.T) {
	b := NewBroadcaster(1)
	ch, cancel := b.Subscribe("AAA")
	cancel()
	cancel()

	_, open := <-ch
	require.False(t, open)
	require.Zero(t, b.Subscribers("AAA"))
}

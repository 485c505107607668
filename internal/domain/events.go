package domain

import "time"

// EventType names an outbound room-scoped event.
type EventType string

const (
	EventRoomStatus        EventType = "roomStatus"
	EventLeaderboardUpdate EventType = "leaderboardUpdate"
	EventTick              EventType = "tick"
	EventEnded             EventType = "ended"
)

// Event is delivered to every subscriber of a room.
type Event struct {
	Type     EventType `json:"type"`
	RoomCode string    `json:"roomCode"`
	Payload  any       `json:"payload"`
	At       time.Time `json:"at"`
}

// TickPayload carries the running time of a room.
type TickPayload struct {
	ElapsedMs int64 `json:"elapsedMs"`
}

// EndedPayload is sent once, when a room's clock runs out.
type EndedPayload struct {
	Message     string              `json:"message"`
	Leaderboard LeaderboardSnapshot `json:"leaderboard"`
}

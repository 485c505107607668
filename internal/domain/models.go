package domain

import (
	"strings"
	"time"
)

// Phase is the lifecycle state of a room.
type Phase string

const (
	PhaseScheduled Phase = "scheduled"
	PhaseRunning   Phase = "running"
	PhaseEnded     Phase = "ended"
)

// RoomSpec carries the caller-supplied fields of a new room.
type RoomSpec struct {
	Title          string
	Description    string
	ScheduledStart time.Time
}

// Validate checks the fields a room cannot be created without.
func (s RoomSpec) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return invalid("title", "is required")
	}
	if s.ScheduledStart.IsZero() {
		return invalid("startTime", "is required")
	}
	return nil
}

// RoomStatus is a point-in-time view of a room's lifecycle.
type RoomStatus struct {
	Code            string     `json:"roomCode"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Phase           Phase      `json:"phase"`
	IsStarted       bool       `json:"isStarted"`
	ScheduledStart  time.Time  `json:"startTime"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	ElapsedMs       int64      `json:"elapsedMs"`
	DurationMs      int64      `json:"durationMs"`
	TimeRemainingMs int64      `json:"timeRemaining"`
}

// PlayerEntry is one leaderboard row.
type PlayerEntry struct {
	Rank              int       `json:"rank"`
	PlayerID          string    `json:"playerId"`
	Points            int       `json:"points"`
	CorrectCount      int       `json:"correctCount"`
	AnsweredCount     int       `json:"answeredCount"`
	Completed         bool      `json:"completed"`
	FinalCorrectCount int       `json:"finalCorrectCount,omitempty"`
	FinalTimeTakenMs  int64     `json:"finalTimeTaken,omitempty"`
	LastUpdate        time.Time `json:"lastUpdate"`
}

// LeaderboardSnapshot is the ranked top of a room's leaderboard.
type LeaderboardSnapshot struct {
	RoomCode  string        `json:"roomCode"`
	Entries   []PlayerEntry `json:"leaderboard"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// AnswerSubmission is a single scored answer from a client.
type AnswerSubmission struct {
	PlayerID       string
	QuestionIndex  int
	SelectedAnswer string
	CorrectAnswer  string
	TimeTakenMs    int64
}

// Validate rejects submissions that must never reach room state.
func (s AnswerSubmission) Validate() error {
	if strings.TrimSpace(s.PlayerID) == "" {
		return invalid("playerId", "is required")
	}
	if s.QuestionIndex < 0 {
		return invalid("questionIndex", "must not be negative")
	}
	if s.CorrectAnswer == "" {
		return invalid("correctAnswer", "is required")
	}
	return nil
}

// IsCorrect reports whether the selected answer matches the expected one.
func (s AnswerSubmission) IsCorrect() bool {
	return s.SelectedAnswer == s.CorrectAnswer
}

// AnswerResult summarizes the outcome of a submission for a single player.
type AnswerResult struct {
	IsCorrect      bool                `json:"isCorrect"`
	QuestionPoints int                 `json:"questionPoints"`
	TotalPoints    int                 `json:"totalPoints"`
	Leaderboard    LeaderboardSnapshot `json:"-"`
}

// FinalSubmission closes a player's run through the quiz.
type FinalSubmission struct {
	PlayerID     string
	CorrectCount int
	TimeTakenMs  int64
}

func (s FinalSubmission) Validate() error {
	if strings.TrimSpace(s.PlayerID) == "" {
		return invalid("playerId", "is required")
	}
	if s.CorrectCount < 0 {
		return invalid("correctCount", "must not be negative")
	}
	if s.TimeTakenMs < 0 {
		return invalid("timeTaken", "must not be negative")
	}
	return nil
}

// RoomResult is the durable record of an ended room.
type RoomResult struct {
	Code           string        `json:"roomCode"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	ScheduledStart time.Time     `json:"startTime"`
	StartedAt      time.Time     `json:"startedAt"`
	EndedAt        time.Time     `json:"endedAt"`
	Standings      []PlayerEntry `json:"standings"`
}

// Top returns the first k standings as a snapshot; k <= 0 returns all of them.
func (r RoomResult) Top(k int) LeaderboardSnapshot {
	entries := r.Standings
	if k > 0 && k < len(entries) {
		entries = entries[:k]
	}
	out := make([]PlayerEntry, len(entries))
	copy(out, entries)
	return LeaderboardSnapshot{RoomCode: r.Code, Entries: out, UpdatedAt: r.EndedAt}
}

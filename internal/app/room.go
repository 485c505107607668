package app

import (
	"sync"
	"time"

	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/leaderboard"
	"quiz-room-service/internal/scoring"
)

const (
	DefaultQuizDuration = 5 * time.Minute
	DefaultTickInterval = time.Second
	DefaultTopK         = 10

	endedMessage = "Quiz time finished"
)

// RoomConfig holds the per-room tunables. Duration drives both the clock and the scoring
// decay so the two cannot drift apart.
type RoomConfig struct {
	Duration     time.Duration
	TickInterval time.Duration
	TopK         int
	BasePoints   int
	Floor        float64
}

func (c RoomConfig) withDefaults() RoomConfig {
	if c.Duration <= 0 {
		c.Duration = DefaultQuizDuration
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.BasePoints <= 0 {
		c.BasePoints = scoring.DefaultBasePoints
	}
	if c.Floor <= 0 || c.Floor > 1 {
		c.Floor = scoring.DefaultFloor
	}
	return c
}

func (c RoomConfig) scoringConfig() scoring.Config {
	return scoring.Config{BasePoints: c.BasePoints, Floor: c.Floor, MaxTime: c.Duration}
}

// RoomHooks are invoked after the room's lock is released.
type RoomHooks struct {
	Publish func(events ...domain.Event)
	Ended   func(result domain.RoomResult)
}

// Room is one quiz session: its lifecycle, its leaderboard and its clock. All mutations
// happen under mu; events produced by a mutation are queued in the outbox and published
// after mu is released, in commit order.
type Room struct {
	code           string
	title          string
	description    string
	scheduledStart time.Time
	cfg            RoomConfig
	hooks          RoomHooks
	now            func() time.Time
	newTicker      tickerFunc

	mu            sync.RWMutex
	phase         domain.Phase
	startedAt     time.Time
	endedAt       time.Time
	elapsed       time.Duration
	board         *leaderboard.Leaderboard
	clock         *roomClock
	closed        bool
	outbox        []domain.Event
	pendingResult *domain.RoomResult

	flushMu sync.Mutex
}

// NewRoom creates a scheduled room with the wall clock.
func NewRoom(code string, spec domain.RoomSpec, cfg RoomConfig, hooks RoomHooks) *Room {
	return newRoom(code, spec, cfg, hooks, time.Now, realTicker)
}

func newRoom(code string, spec domain.RoomSpec, cfg RoomConfig, hooks RoomHooks, now func() time.Time, newTicker tickerFunc) *Room {
	return &Room{
		code:           code,
		title:          spec.Title,
		description:    spec.Description,
		scheduledStart: spec.ScheduledStart,
		cfg:            cfg.withDefaults(),
		hooks:          hooks,
		now:            now,
		newTicker:      newTicker,
		phase:          domain.PhaseScheduled,
		board:          leaderboard.New(now),
	}
}

func (r *Room) Code() string {
	return r.code
}

// Join announces the current status to the room and returns it.
func (r *Room) Join() (domain.RoomStatus, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return domain.RoomStatus{}, domain.ErrRoomNotFound
	}
	now := r.now()
	status := r.statusLocked(now)
	r.commitLocked(now, domain.EventRoomStatus, status)
	r.mu.Unlock()

	r.flush()
	return status, nil
}

// Start moves a scheduled room to running and starts its clock. Exactly one caller
// succeeds; every later caller gets ErrAlreadyStarted and changes nothing.
func (r *Room) Start() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return domain.ErrRoomNotFound
	}
	if r.phase != domain.PhaseScheduled {
		r.mu.Unlock()
		return domain.ErrAlreadyStarted
	}
	now := r.now()
	if now.Before(r.scheduledStart) {
		r.mu.Unlock()
		return domain.ErrStartTooEarly
	}

	r.phase = domain.PhaseRunning
	r.startedAt = now
	r.elapsed = 0
	r.clock = startClock(r.cfg.TickInterval, r.newTicker, r.tick)
	r.commitLocked(now, domain.EventRoomStatus, r.statusLocked(now))
	r.mu.Unlock()

	r.flush()
	return nil
}

// SubmitAnswer scores one answer and updates the leaderboard.
func (r *Room) SubmitAnswer(sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	if err := sub.Validate(); err != nil {
		return domain.AnswerResult{}, err
	}

	r.mu.Lock()
	if err := r.activeLocked(); err != nil {
		r.mu.Unlock()
		return domain.AnswerResult{}, err
	}
	correct := sub.IsCorrect()
	points := scoring.Compute(correct, sub.TimeTakenMs, r.cfg.scoringConfig())
	total := r.board.Upsert(sub.PlayerID, points, correct)

	now := r.now()
	lb := r.snapshotLocked(now, r.cfg.TopK)
	r.commitLocked(now, domain.EventLeaderboardUpdate, lb)
	r.mu.Unlock()

	r.flush()
	return domain.AnswerResult{
		IsCorrect:      correct,
		QuestionPoints: points,
		TotalPoints:    total,
		Leaderboard:    lb,
	}, nil
}

// SubmitFinal marks a player as done with the quiz.
func (r *Room) SubmitFinal(sub domain.FinalSubmission) (domain.LeaderboardSnapshot, error) {
	if err := sub.Validate(); err != nil {
		return domain.LeaderboardSnapshot{}, err
	}

	r.mu.Lock()
	if err := r.activeLocked(); err != nil {
		r.mu.Unlock()
		return domain.LeaderboardSnapshot{}, err
	}
	if err := r.board.Finalize(sub.PlayerID, sub.CorrectCount, sub.TimeTakenMs); err != nil {
		r.mu.Unlock()
		return domain.LeaderboardSnapshot{}, err
	}

	now := r.now()
	lb := r.snapshotLocked(now, r.cfg.TopK)
	r.commitLocked(now, domain.EventLeaderboardUpdate, lb)
	r.mu.Unlock()

	r.flush()
	return lb, nil
}

// Leaderboard returns the top k entries; k <= 0 returns all of them.
func (r *Room) Leaderboard(k int) domain.LeaderboardSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked(r.now(), k)
}

func (r *Room) Status() domain.RoomStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.statusLocked(r.now())
}

// Phase reports the lifecycle state and, for ended rooms, when the room ended.
func (r *Room) Phase() (domain.Phase, time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.phase, r.endedAt
}

// Close stops the clock and makes every later operation report ErrRoomNotFound.
func (r *Room) Close() {
	r.mu.Lock()
	r.closed = true
	c := r.clock
	r.clock = nil
	r.mu.Unlock()

	if c != nil {
		c.Stop()
	}
}

// tick runs on the clock goroutine. It reports whether the clock should keep going.
func (r *Room) tick() bool {
	r.mu.Lock()
	if r.closed || r.phase != domain.PhaseRunning {
		r.mu.Unlock()
		return false
	}

	now := r.now()
	elapsed := now.Sub(r.startedAt)
	if elapsed < r.elapsed {
		elapsed = r.elapsed
	}
	done := elapsed >= r.cfg.Duration
	if done {
		elapsed = r.cfg.Duration
	}
	r.elapsed = elapsed
	r.commitLocked(now, domain.EventTick, domain.TickPayload{ElapsedMs: elapsed.Milliseconds()})

	if done {
		r.phase = domain.PhaseEnded
		r.endedAt = now
		r.clock = nil
		r.commitLocked(now, domain.EventRoomStatus, r.statusLocked(now))
		r.commitLocked(now, domain.EventEnded, domain.EndedPayload{
			Message:     endedMessage,
			Leaderboard: r.snapshotLocked(now, r.cfg.TopK),
		})
		result := r.resultLocked()
		r.pendingResult = &result
	}
	r.mu.Unlock()

	r.flush()
	return !done
}

func (r *Room) activeLocked() error {
	if r.closed {
		return domain.ErrRoomNotFound
	}
	if r.phase != domain.PhaseRunning {
		return domain.ErrRoomNotActive
	}
	return nil
}

func (r *Room) commitLocked(now time.Time, typ domain.EventType, payload any) {
	r.outbox = append(r.outbox, domain.Event{
		Type:     typ,
		RoomCode: r.code,
		Payload:  payload,
		At:       now,
	})
}

// flush publishes queued events outside the room lock. flushMu keeps concurrent flushes
// from reordering events committed in sequence.
func (r *Room) flush() {
	r.flushMu.Lock()
	r.mu.Lock()
	events := r.outbox
	r.outbox = nil
	result := r.pendingResult
	r.pendingResult = nil
	r.mu.Unlock()

	if len(events) > 0 && r.hooks.Publish != nil {
		r.hooks.Publish(events...)
	}
	r.flushMu.Unlock()

	if result != nil && r.hooks.Ended != nil {
		r.hooks.Ended(*result)
	}
}

func (r *Room) snapshotLocked(now time.Time, k int) domain.LeaderboardSnapshot {
	return domain.LeaderboardSnapshot{
		RoomCode:  r.code,
		Entries:   r.board.TopK(k),
		UpdatedAt: now,
	}
}

func (r *Room) statusLocked(now time.Time) domain.RoomStatus {
	status := domain.RoomStatus{
		Code:           r.code,
		Title:          r.title,
		Description:    r.description,
		Phase:          r.phase,
		IsStarted:      r.phase != domain.PhaseScheduled,
		ScheduledStart: r.scheduledStart,
		DurationMs:     r.cfg.Duration.Milliseconds(),
	}
	if remaining := r.scheduledStart.Sub(now); remaining > 0 {
		status.TimeRemainingMs = remaining.Milliseconds()
	}

	switch r.phase {
	case domain.PhaseRunning:
		elapsed := now.Sub(r.startedAt)
		if elapsed < r.elapsed {
			elapsed = r.elapsed
		}
		if elapsed > r.cfg.Duration {
			elapsed = r.cfg.Duration
		}
		status.ElapsedMs = elapsed.Milliseconds()
	case domain.PhaseEnded:
		status.ElapsedMs = r.elapsed.Milliseconds()
		endedAt := r.endedAt
		status.EndedAt = &endedAt
	}
	if r.phase != domain.PhaseScheduled {
		startedAt := r.startedAt
		status.StartedAt = &startedAt
	}
	return status
}

func (r *Room) resultLocked() domain.RoomResult {
	return domain.RoomResult{
		Code:           r.code,
		Title:          r.title,
		Description:    r.description,
		ScheduledStart: r.scheduledStart,
		StartedAt:      r.startedAt,
		EndedAt:        r.endedAt,
		Standings:      r.board.Entries(),
	}
}

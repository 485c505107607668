package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"quiz-room-service/internal/domain"
)

const archiveTimeout = 5 * time.Second

// RoomRepository abstracts where live rooms are kept (in-memory, Redis-reserved, etc).
type RoomRepository interface {
	// Create picks a code that no live room uses and stores the room build returns for it.
	Create(ctx context.Context, build func(code string) *Room) (*Room, error)
	Get(code string) (*Room, bool)
	// Remove closes the room and forgets it.
	Remove(ctx context.Context, code string) (*Room, bool)
	Rooms() []*Room
}

// ResultRepository archives the standings of ended rooms.
type ResultRepository interface {
	SaveResult(ctx context.Context, result domain.RoomResult) error
	GetResult(ctx context.Context, code string) (domain.RoomResult, error)
}

// RoomService contains the room use cases.
type RoomService struct {
	rooms     RoomRepository
	results   ResultRepository
	events    *Broadcaster
	cfg       RoomConfig
	now       func() time.Time
	newTicker tickerFunc
	log       *zap.Logger

	// archive progress of ended rooms that are still live
	mu       sync.Mutex
	archives map[string]*archiveState
}

type archiveState struct {
	result   domain.RoomResult
	inFlight bool
	saved    bool
}

// NewRoomService wires the service. results may be nil, in which case ended rooms are only
// readable until they are evicted.
func NewRoomService(rooms RoomRepository, results ResultRepository, events *Broadcaster, cfg RoomConfig, log *zap.Logger) *RoomService {
	return NewRoomServiceWithClock(rooms, results, events, cfg, log, time.Now)
}

// NewRoomServiceWithClock is test-only for deterministic timestamps.
func NewRoomServiceWithClock(rooms RoomRepository, results ResultRepository, events *Broadcaster, cfg RoomConfig, log *zap.Logger, now func() time.Time) *RoomService {
	if events == nil {
		events = NewBroadcaster(0)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RoomService{
		rooms:     rooms,
		results:   results,
		events:    events,
		cfg:       cfg.withDefaults(),
		now:       now,
		newTicker: realTicker,
		log:       log,
		archives:  make(map[string]*archiveState),
	}
}

// CreateRoom registers a scheduled room and returns its code.
func (s *RoomService) CreateRoom(ctx context.Context, spec domain.RoomSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}
	room, err := s.rooms.Create(ctx, func(code string) *Room {
		return newRoom(code, spec, s.cfg, RoomHooks{
			Publish: s.events.Publish,
			Ended:   s.archive,
		}, s.now, s.newTicker)
	})
	if err != nil {
		return "", err
	}
	s.log.Info("room created",
		zap.String("room", room.Code()),
		zap.String("title", spec.Title),
		zap.Time("scheduledStart", spec.ScheduledStart),
	)
	return room.Code(), nil
}

// JoinRoom returns the room's status and announces it to the room's subscribers.
func (s *RoomService) JoinRoom(_ context.Context, code string) (domain.RoomStatus, error) {
	room, err := s.room(code)
	if err != nil {
		return domain.RoomStatus{}, err
	}
	return room.Join()
}

func (s *RoomService) StartRoom(_ context.Context, code string) error {
	room, err := s.room(code)
	if err != nil {
		return err
	}
	if err := room.Start(); err != nil {
		return err
	}
	s.log.Info("room started", zap.String("room", room.Code()))
	return nil
}

// SubmitAnswer scores one answer of a player in a running room.
func (s *RoomService) SubmitAnswer(_ context.Context, code string, sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	if err := sub.Validate(); err != nil {
		return domain.AnswerResult{}, err
	}
	room, err := s.room(code)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	return room.SubmitAnswer(sub)
}

// SubmitFinal records that a player finished the quiz.
func (s *RoomService) SubmitFinal(_ context.Context, code string, sub domain.FinalSubmission) (domain.LeaderboardSnapshot, error) {
	if err := sub.Validate(); err != nil {
		return domain.LeaderboardSnapshot{}, err
	}
	room, err := s.room(code)
	if err != nil {
		return domain.LeaderboardSnapshot{}, err
	}
	return room.SubmitFinal(sub)
}

// Leaderboard returns the top k players of a room; k <= 0 uses the configured size.
// Evicted rooms are served from the result archive.
func (s *RoomService) Leaderboard(ctx context.Context, code string, k int) (domain.LeaderboardSnapshot, error) {
	if k <= 0 {
		k = s.cfg.TopK
	}
	if room, ok := s.rooms.Get(NormalizeRoomCode(code)); ok {
		return room.Leaderboard(k), nil
	}
	result, err := s.archived(ctx, code)
	if err != nil {
		return domain.LeaderboardSnapshot{}, err
	}
	return result.Top(k), nil
}

func (s *RoomService) RoomStatus(ctx context.Context, code string) (domain.RoomStatus, error) {
	if room, ok := s.rooms.Get(NormalizeRoomCode(code)); ok {
		return room.Status(), nil
	}
	result, err := s.archived(ctx, code)
	if err != nil {
		return domain.RoomStatus{}, err
	}
	return archivedStatus(result, s.cfg.Duration), nil
}

// Subscribe returns a channel that receives the events of a live room.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *RoomService) Subscribe(_ context.Context, code string) (<-chan domain.Event, func(), error) {
	room, err := s.room(code)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.events.Subscribe(room.Code())
	// Removal drops the room from the registry before closing its subscribers, so a
	// subscription that raced a removal is caught here.
	if current, ok := s.rooms.Get(room.Code()); !ok || current != room {
		cancel()
		return nil, nil, domain.ErrRoomNotFound
	}
	return ch, cancel, nil
}

// CloseRoom stops a room, drops it from the registry and disconnects its subscribers.
func (s *RoomService) CloseRoom(ctx context.Context, code string) error {
	code = NormalizeRoomCode(code)
	if _, ok := s.rooms.Remove(ctx, code); !ok {
		return domain.ErrRoomNotFound
	}
	s.events.CloseRoom(code)
	s.forgetArchive(code)
	s.log.Info("room closed", zap.String("room", code))
	return nil
}

// EvictEnded removes rooms that ended at least retention ago and returns how many it
// removed. A room stays live until its result is archived.
func (s *RoomService) EvictEnded(ctx context.Context, retention time.Duration) int {
	now := s.now()
	evicted := 0
	for _, room := range s.rooms.Rooms() {
		phase, endedAt := room.Phase()
		if phase != domain.PhaseEnded || now.Sub(endedAt) < retention {
			continue
		}
		if !s.retryArchive(ctx, room.Code()) {
			continue
		}
		if _, ok := s.rooms.Remove(ctx, room.Code()); ok {
			s.events.CloseRoom(room.Code())
			evicted++
		}
		s.forgetArchive(room.Code())
	}
	if evicted > 0 {
		s.log.Info("evicted ended rooms", zap.Int("count", evicted))
	}
	return evicted
}

// RunJanitor evicts ended rooms every interval until ctx is done.
func (s *RoomService) RunJanitor(ctx context.Context, interval, retention time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.EvictEnded(ctx, retention)
		}
	}
}

// Shutdown closes every live room so no clock outlives the process.
func (s *RoomService) Shutdown(ctx context.Context) {
	for _, room := range s.rooms.Rooms() {
		s.rooms.Remove(ctx, room.Code())
		s.events.CloseRoom(room.Code())
		s.forgetArchive(room.Code())
	}
}

func (s *RoomService) room(code string) (*Room, error) {
	room, ok := s.rooms.Get(NormalizeRoomCode(code))
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

func (s *RoomService) archived(ctx context.Context, code string) (domain.RoomResult, error) {
	if s.results == nil {
		return domain.RoomResult{}, domain.ErrRoomNotFound
	}
	result, err := s.results.GetResult(ctx, NormalizeRoomCode(code))
	if errors.Is(err, domain.ErrResultNotFound) {
		return domain.RoomResult{}, domain.ErrRoomNotFound
	}
	return result, err
}

// archive runs on the room's clock goroutine once the room has ended. The room counts as
// unarchived from here until a save succeeds.
func (s *RoomService) archive(result domain.RoomResult) {
	s.log.Info("room ended",
		zap.String("room", result.Code),
		zap.Int("players", len(result.Standings)),
	)
	s.mu.Lock()
	s.archives[result.Code] = &archiveState{result: result, inFlight: true}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	s.save(ctx, result)

	// closed while ending; nothing will evict it
	if _, live := s.rooms.Get(result.Code); !live {
		s.forgetArchive(result.Code)
	}
}

// retryArchive reports whether the room's result is safely archived, retrying a failed
// save. A save still in flight counts as not archived.
func (s *RoomService) retryArchive(ctx context.Context, code string) bool {
	s.mu.Lock()
	st, ok := s.archives[code]
	if !ok || st.inFlight {
		s.mu.Unlock()
		return false
	}
	if st.saved {
		s.mu.Unlock()
		return true
	}
	st.inFlight = true
	result := st.result
	s.mu.Unlock()

	return s.save(ctx, result)
}

func (s *RoomService) save(ctx context.Context, result domain.RoomResult) bool {
	var err error
	if s.results != nil {
		err = s.results.SaveResult(ctx, result)
	}
	if err != nil {
		s.log.Warn("archive room result", zap.String("room", result.Code), zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.archives[result.Code]; ok {
		st.inFlight = false
		st.saved = err == nil
	}
	return err == nil
}

func (s *RoomService) forgetArchive(code string) {
	s.mu.Lock()
	delete(s.archives, code)
	s.mu.Unlock()
}

func archivedStatus(result domain.RoomResult, duration time.Duration) domain.RoomStatus {
	startedAt, endedAt := result.StartedAt, result.EndedAt
	elapsed := endedAt.Sub(startedAt)
	if elapsed > duration {
		elapsed = duration
	}
	return domain.RoomStatus{
		Code:           result.Code,
		Title:          result.Title,
		Description:    result.Description,
		Phase:          domain.PhaseEnded,
		IsStarted:      true,
		ScheduledStart: result.ScheduledStart,
		StartedAt:      &startedAt,
		EndedAt:        &endedAt,
		ElapsedMs:      elapsed.Milliseconds(),
		DurationMs:     duration.Milliseconds(),
	}
}

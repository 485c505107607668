package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quiz-room-service/internal/domain"
)

// mapRooms is a minimal RoomRepository; the real stores live in infra and import this
// package.
type mapRooms struct {
	mu    sync.Mutex
	next  int
	rooms map[string]*Room
}

func newMapRooms() *mapRooms {
	return &mapRooms{rooms: make(map[string]*Room)}
}

func (m *mapRooms) Create(_ context.Context, build func(code string) *Room) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	code := "ROOM" + string(rune('0'+m.next))
	room := build(code)
	m.rooms[code] = room
	return room, nil
}

func (m *mapRooms) Get(code string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[code]
	return room, ok
}

func (m *mapRooms) Remove(_ context.Context, code string) (*Room, bool) {
	m.mu.Lock()
	room, ok := m.rooms[code]
	delete(m.rooms, code)
	m.mu.Unlock()
	if ok {
		room.Close()
	}
	return room, ok
}

func (m *mapRooms) Rooms() []*Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		out = append(out, room)
	}
	return out
}

type mapResults struct {
	mu      sync.Mutex
	fail    bool
	saves   int
	gate    chan struct{}
	results map[string]domain.RoomResult
}

func newMapResults() *mapResults {
	return &mapResults{results: make(map[string]domain.RoomResult)}
}

func (m *mapResults) SaveResult(_ context.Context, result domain.RoomResult) error {
	m.mu.Lock()
	m.saves++
	gate := m.gate
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("archive unavailable")
	}
	m.results[result.Code] = result
	return nil
}

func (m *mapResults) GetResult(_ context.Context, code string) (domain.RoomResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result, ok := m.results[code]
	if !ok {
		return domain.RoomResult{}, domain.ErrResultNotFound
	}
	return result, nil
}

func (m *mapResults) setFail(fail bool) {
	m.mu.Lock()
	m.fail = fail
	m.mu.Unlock()
}

func (m *mapResults) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *mapResults) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}

type serviceFixture struct {
	svc     *RoomService
	clock   *fakeClock
	ticker  *manualTicker
	rooms   *mapRooms
	results *mapResults
}

func newServiceFixture(cfg RoomConfig) *serviceFixture {
	f := &serviceFixture{
		clock:   newFakeClock(),
		ticker:  newManualTicker(),
		rooms:   newMapRooms(),
		results: newMapResults(),
	}
	f.svc = NewRoomServiceWithClock(f.rooms, f.results, NewBroadcaster(64), cfg, nil, f.clock.Now)
	f.svc.newTicker = f.ticker.newTicker
	return f
}

func (f *serviceFixture) createRoom(t *testing.T) string {
	t.Helper()
	code, err := f.svc.CreateRoom(context.Background(), domain.RoomSpec{
		Title:          "Capitals",
		Description:    "Europe",
		ScheduledStart: f.clock.Now(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { f.svc.Shutdown(context.Background()) })
	return code
}

// waitArchiveSettled waits until no save of the room's result is in flight.
func (f *serviceFixture) waitArchiveSettled(t *testing.T, code string) {
	t.Helper()
	waitFor(t, func() bool {
		f.svc.mu.Lock()
		defer f.svc.mu.Unlock()
		st, ok := f.svc.archives[code]
		return ok && !st.inFlight
	})
}

func (f *serviceFixture) endRoom(t *testing.T, code string) {
	t.Helper()
	f.clock.Advance(f.svc.cfg.Duration)
	f.ticker.tick(t)
	waitFor(t, func() bool {
		status, err := f.svc.RoomStatus(context.Background(), code)
		return err == nil && status.Phase == domain.PhaseEnded
	})
}

func TestCreateRoomValidates(t *testing.T) {
	f := newServiceFixture(RoomConfig{})
	_, err := f.svc.CreateRoom(context.Background(), domain.RoomSpec{ScheduledStart: f.clock.Now()})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.svc.CreateRoom(context.Background(), domain.RoomSpec{Title: "no start"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	require.Empty(t, f.rooms.Rooms())
}

func TestUnknownRoomNotFound(t *testing.T) {
	f := newServiceFixture(RoomConfig{})
	ctx := context.Background()

	_, err := f.svc.JoinRoom(ctx, "NOPE")
	require.ErrorIs(t, err, domain.ErrRoomNotFound)
	require.ErrorIs(t, f.svc.StartRoom(ctx, "NOPE"), domain.ErrRoomNotFound)
	_, err = f.svc.SubmitAnswer(ctx, "NOPE", domain.AnswerSubmission{PlayerID: "p", CorrectAnswer: "a"})
	require.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, err = f.svc.SubmitFinal(ctx, "NOPE", domain.FinalSubmission{PlayerID: "p"})
	require.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, err = f.svc.Leaderboard(ctx, "NOPE", 10)
	require.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, err = f.svc.RoomStatus(ctx, "NOPE")
	require.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, _, err = f.svc.Subscribe(ctx, "NOPE")
	require.ErrorIs(t, err, domain.ErrRoomNotFound)
	require.ErrorIs(t, f.svc.CloseRoom(ctx, "NOPE"), domain.ErrRoomNotFound)
}

func TestRoomLifecycle(t *testing.T) {
	f := newServiceFixture(RoomConfig{Duration: 10 * time.Second, TopK: 2})
	ctx := context.Background()
	code := f.createRoom(t)

	events, cancel, err := f.svc.Subscribe(ctx, code)
	require.NoError(t, err)
	defer cancel()

	status, err := f.svc.JoinRoom(ctx, code)
	require.NoError(t, err)
	require.Equal(t, domain.PhaseScheduled, status.Phase)
	require.Equal(t, domain.EventRoomStatus, (<-events).Type)

	require.NoError(t, f.svc.StartRoom(ctx, code))
	require.ErrorIs(t, f.svc.StartRoom(ctx, code), domain.ErrRejected)
	require.Equal(t, domain.EventRoomStatus, (<-events).Type)

	for i, player := range []string{"amy", "bob", "cat"} {
		res, err := f.svc.SubmitAnswer(ctx, code, domain.AnswerSubmission{
			PlayerID:       player,
			SelectedAnswer: "Paris",
			CorrectAnswer:  "Paris",
			TimeTakenMs:    int64(i+1) * 1000,
		})
		require.NoError(t, err)
		require.True(t, res.IsCorrect)
		ev := <-events
		require.Equal(t, domain.EventLeaderboardUpdate, ev.Type)
		require.LessOrEqual(t, len(ev.Payload.(domain.LeaderboardSnapshot).Entries), 2)
	}

	lb, err := f.svc.Leaderboard(ctx, code, 0)
	require.NoError(t, err)
	require.Len(t, lb.Entries, 2)
	require.Equal(t, "amy", lb.Entries[0].PlayerID)
	require.Equal(t, "bob", lb.Entries[1].PlayerID)

	lb, err = f.svc.Leaderboard(ctx, code, 5)
	require.NoError(t, err)
	require.Len(t, lb.Entries, 3)

	f.endRoom(t, code)
	require.Equal(t, domain.EventTick, (<-events).Type)
	require.Equal(t, domain.EventRoomStatus, (<-events).Type)
	ended := <-events
	require.Equal(t, domain.EventEnded, ended.Type)

	waitFor(t, func() bool { return f.results.len() == 1 })
	status, err = f.svc.RoomStatus(ctx, code)
	require.NoError(t, err)
	require.Equal(t, int64(10000), status.ElapsedMs)

	_, err = f.svc.SubmitAnswer(ctx, code, domain.AnswerSubmission{PlayerID: "amy", SelectedAnswer: "a", CorrectAnswer: "a"})
	require.ErrorIs(t, err, domain.ErrRoomNotActive)
}

func TestRoomCodeIsCaseInsensitive(t *testing.T) {
	f := newServiceFixture(RoomConfig{})
	code := f.createRoom(t)

	status, err := f.svc.JoinRoom(context.Background(), " room1 ")
	require.NoError(t, err)
	require.Equal(t, code, status.Code)
}

func TestEvictedRoomServedFromArchive(t *testing.T) {
	f := newServiceFixture(RoomConfig{Duration: time.Second})
	ctx := context.Background()
	code := f.createRoom(t)

	require.NoError(t, f.svc.StartRoom(ctx, code))
	_, err := f.svc.SubmitAnswer(ctx, code, domain.AnswerSubmission{PlayerID: "amy", SelectedAnswer: "a", CorrectAnswer: "a"})
	require.NoError(t, err)
	f.endRoom(t, code)
	f.waitArchiveSettled(t, code)
	require.Equal(t, 1, f.results.len())

	require.Zero(t, f.svc.EvictEnded(ctx, time.Hour))
	f.clock.Advance(time.Hour)
	require.Equal(t, 1, f.svc.EvictEnded(ctx, time.Hour))
	_, live := f.rooms.Get(code)
	require.False(t, live)

	lb, err := f.svc.Leaderboard(ctx, code, 0)
	require.NoError(t, err)
	require.Len(t, lb.Entries, 1)
	require.Equal(t, "amy", lb.Entries[0].PlayerID)

	status, err := f.svc.RoomStatus(ctx, code)
	require.NoError(t, err)
	require.Equal(t, domain.PhaseEnded, status.Phase)
	require.Equal(t, "Capitals", status.Title)
	require.Equal(t, int64(1000), status.ElapsedMs)

	_, err = f.svc.JoinRoom(ctx, code)
	require.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestEvictionWaitsForArchive(t *testing.T) {
	f := newServiceFixture(RoomConfig{Duration: time.Second})
	ctx := context.Background()
	code := f.createRoom(t)

	f.results.setFail(true)
	require.NoError(t, f.svc.StartRoom(ctx, code))
	f.endRoom(t, code)
	f.waitArchiveSettled(t, code)
	require.Equal(t, 1, f.results.saveCount())

	f.clock.Advance(time.Hour)
	require.Zero(t, f.svc.EvictEnded(ctx, time.Minute))
	require.Equal(t, 2, f.results.saveCount())

	f.results.setFail(false)
	require.Equal(t, 1, f.svc.EvictEnded(ctx, time.Minute))
	_, err := f.svc.Leaderboard(ctx, code, 0)
	require.NoError(t, err)
}

func TestEvictionSkipsArchiveInFlight(t *testing.T) {
	f := newServiceFixture(RoomConfig{Duration: time.Second})
	ctx := context.Background()
	gate := make(chan struct{})
	var release sync.Once
	f.results.gate = gate
	f.results.setFail(true)
	code := f.createRoom(t)
	t.Cleanup(func() { release.Do(func() { close(gate) }) })

	require.NoError(t, f.svc.StartRoom(ctx, code))
	f.endRoom(t, code)
	waitFor(t, func() bool { return f.results.saveCount() == 1 })

	// the first save is still running, so the room must not be evicted yet
	f.clock.Advance(time.Hour)
	require.Zero(t, f.svc.EvictEnded(ctx, 0))
	require.Equal(t, 1, f.results.saveCount())
	_, live := f.rooms.Get(code)
	require.True(t, live)

	release.Do(func() { close(gate) })
	f.waitArchiveSettled(t, code)
	require.Zero(t, f.svc.EvictEnded(ctx, 0))
	require.Equal(t, 2, f.results.saveCount())

	f.results.setFail(false)
	require.Equal(t, 1, f.svc.EvictEnded(ctx, 0))
	require.Equal(t, 1, f.results.len())
}

// closingRooms removes a room right after handing it out, as a concurrent CloseRoom would.
type closingRooms struct {
	*mapRooms
	svc  *RoomService
	once sync.Once
}

func (c *closingRooms) Get(code string) (*Room, bool) {
	room, ok := c.mapRooms.Get(code)
	c.once.Do(func() { _ = c.svc.CloseRoom(context.Background(), code) })
	return room, ok
}

func TestSubscribeRacingCloseIsRejected(t *testing.T) {
	rooms := &closingRooms{mapRooms: newMapRooms()}
	clock := newFakeClock()
	events := NewBroadcaster(4)
	svc := NewRoomServiceWithClock(rooms, nil, events, RoomConfig{}, nil, clock.Now)
	rooms.svc = svc
	ctx := context.Background()

	// CreateRoom never calls Get, so the first Get is the one inside Subscribe.
	code, err := svc.CreateRoom(ctx, domain.RoomSpec{Title: "Capitals", ScheduledStart: clock.Now()})
	require.NoError(t, err)

	ch, cancel, err := svc.Subscribe(ctx, code)
	require.ErrorIs(t, err, domain.ErrRoomNotFound)
	require.Nil(t, ch)
	require.Nil(t, cancel)
	require.Zero(t, events.Subscribers(code))
}

func TestCloseRoomDisconnectsSubscribers(t *testing.T) {
	f := newServiceFixture(RoomConfig{})
	ctx := context.Background()
	code := f.createRoom(t)

	events, cancel, err := f.svc.Subscribe(ctx, code)
	require.NoError(t, err)
	defer cancel()
	require.NoError(t, f.svc.StartRoom(ctx, code))
	<-events

	require.NoError(t, f.svc.CloseRoom(ctx, code))
	_, open := <-events
	require.False(t, open)
	require.Equal(t, int32(1), f.ticker.stopped.Load())
}

func TestRunJanitorStopsWithContext(t *testing.T) {
	f := newServiceFixture(RoomConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.svc.RunJanitor(ctx, time.Millisecond, time.Minute) }()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

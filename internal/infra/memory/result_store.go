package memory

import (
	"context"
	"sync"

	"quiz-room-service/internal/domain"
)

// ResultStore keeps archived results in a map (useful for tests/demos and for running
// without Postgres).
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]domain.RoomResult
}

func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]domain.RoomResult)}
}

func (s *ResultStore) SaveResult(_ context.Context, result domain.RoomResult) error {
	standings := make([]domain.PlayerEntry, len(result.Standings))
	copy(standings, result.Standings)
	result.Standings = standings

	s.mu.Lock()
	s.results[result.Code] = result
	s.mu.Unlock()
	return nil
}

func (s *ResultStore) LoadResult(_ context.Context, code string) (domain.RoomResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if result, ok := s.results[code]; ok {
		return result, nil
	}
	return domain.RoomResult{}, domain.ErrResultNotFound
}

// GetResult lets the store serve as an app.ResultRepository without a cache in front.
func (s *ResultStore) GetResult(ctx context.Context, code string) (domain.RoomResult, error) {
	return s.LoadResult(ctx, code)
}

package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-room-service/internal/domain"
)

// ResultBackend is the durable home of archived results (e.g., Postgres).
type ResultBackend interface {
	SaveResult(ctx context.Context, result domain.RoomResult) error
	LoadResult(ctx context.Context, code string) (domain.RoomResult, error)
}

// ResultRepository caches archived results in Redis and falls back to a backend on a miss.
// Results are stored as JSON under quiz:result:{code}.
type ResultRepository struct {
	client  *redis.Client
	backend ResultBackend
	ttl     time.Duration
	sf      singleflight.Group
	rnd     *rand.Rand
	rndMu   sync.Mutex
}

func NewResultRepository(client *redis.Client, backend ResultBackend, ttl time.Duration) *ResultRepository {
	return &ResultRepository{
		client:  client,
		backend: backend,
		ttl:     ttl,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SaveResult writes to the backend, then refreshes the cache.
func (r *ResultRepository) SaveResult(ctx context.Context, result domain.RoomResult) error {
	if err := r.backend.SaveResult(ctx, result); err != nil {
		return err
	}
	r.cache(ctx, result)
	return nil
}

func (r *ResultRepository) GetResult(ctx context.Context, code string) (domain.RoomResult, error) {
	if result, ok := r.cached(ctx, code); ok {
		return result, nil
	}

	v, err, _ := r.sf.Do(code, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if result, ok := r.cached(ctx, code); ok {
			return result, nil
		}
		result, err := r.backend.LoadResult(ctx, code)
		if err != nil {
			return domain.RoomResult{}, err
		}
		r.cache(ctx, result)
		return result, nil
	})
	if err != nil {
		return domain.RoomResult{}, err
	}
	return v.(domain.RoomResult), nil
}

func (r *ResultRepository) cached(ctx context.Context, code string) (domain.RoomResult, bool) {
	raw, err := r.client.Get(ctx, r.key(code)).Bytes()
	if err != nil {
		return domain.RoomResult{}, false
	}
	var result domain.RoomResult
	if err := json.Unmarshal(raw, &result); err != nil {
		// corrupt entry, let the backend answer
		return domain.RoomResult{}, false
	}
	return result, true
}

// cache is best effort; a Redis outage only costs a backend round trip later.
func (r *ResultRepository) cache(ctx context.Context, result domain.RoomResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	_ = r.client.Set(ctx, r.key(result.Code), raw, r.ttlWithJitter()).Err()
}

func (r *ResultRepository) key(code string) string {
	return "quiz:result:" + code
}

func (r *ResultRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

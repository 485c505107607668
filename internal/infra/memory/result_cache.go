package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-room-service/internal/domain"
)

// ResultBackend is the durable home of archived results (e.g., Postgres).
type ResultBackend interface {
	SaveResult(ctx context.Context, result domain.RoomResult) error
	LoadResult(ctx context.Context, code string) (domain.RoomResult, error)
}

// ResultCache caches archived results with TTL to avoid repeated DB hits. Writes go
// through to the backend first.
type ResultCache struct {
	backend ResultBackend
	ttl     time.Duration
	clock   func() time.Time
	sf      singleflight.Group
	rnd     *rand.Rand
	rndMu   sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedResult
}

type cachedResult struct {
	result    domain.RoomResult
	expiresAt time.Time
}

func NewResultCache(backend ResultBackend, ttl time.Duration) *ResultCache {
	return &ResultCache{
		backend: backend,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:   make(map[string]cachedResult),
	}
}

func (c *ResultCache) SaveResult(ctx context.Context, result domain.RoomResult) error {
	if err := c.backend.SaveResult(ctx, result); err != nil {
		return err
	}
	c.store(result)
	return nil
}

func (c *ResultCache) GetResult(ctx context.Context, code string) (domain.RoomResult, error) {
	if result, ok := c.lookup(code); ok {
		return result, nil
	}

	v, err, _ := c.sf.Do(code, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if result, ok := c.lookup(code); ok {
			return result, nil
		}
		result, err := c.backend.LoadResult(ctx, code)
		if err != nil {
			return domain.RoomResult{}, err
		}
		c.store(result)
		return result, nil
	})
	if err != nil {
		return domain.RoomResult{}, err
	}
	return v.(domain.RoomResult), nil
}

func (c *ResultCache) lookup(code string) (domain.RoomResult, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[code]
	if !ok || !entry.expiresAt.After(now) {
		return domain.RoomResult{}, false
	}
	return entry.result, true
}

func (c *ResultCache) store(result domain.RoomResult) {
	ttl := c.ttlWithJitter()
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.cache[result.Code] = cachedResult{
		result:    result,
		expiresAt: c.clock().Add(ttl),
	}
	c.mu.Unlock()
}

func (c *ResultCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

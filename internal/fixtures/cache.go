package fixtures

import (
	"context"
	"sync"
	"time"

	"github.com/matchpulse/vote-engine/internal/adapter"
	"github.com/matchpulse/vote-engine/internal/domain"
)

// cachedFixture is a fixture snapshot with its expiry
type cachedFixture struct {
	fixture   domain.Fixture
	expiresAt time.Time
}

// cachingProvider wraps a Provider with a short-lived per-fixture cache.
// Only successful lookups are cached; errors and misses always hit upstream.
type cachingProvider struct {
	upstream Provider
	ttl      time.Duration
	clock    adapter.Clock

	mu    sync.RWMutex
	cache map[uint64]cachedFixture
}

// NewCachingProvider wraps upstream with a TTL cache. A non-positive ttl
// disables caching and returns upstream unchanged.
func NewCachingProvider(upstream Provider, ttl time.Duration, clock adapter.Clock) Provider {
	if ttl <= 0 {
		return upstream
	}
	return &cachingProvider{
		upstream: upstream,
		ttl:      ttl,
		clock:    clock,
		cache:    make(map[uint64]cachedFixture),
	}
}

func (p *cachingProvider) GetFixture(ctx context.Context, fixtureID uint64) (*domain.Fixture, error) {
	p.mu.RLock()
	entry, ok := p.cache[fixtureID]
	p.mu.RUnlock()

	if ok && p.clock.Now().Before(entry.expiresAt) {
		fixture := entry.fixture
		return &fixture, nil
	}

	return p.GetFixtureFresh(ctx, fixtureID)
}

// GetFixtureFresh always consults upstream and refreshes the cache entry
func (p *cachingProvider) GetFixtureFresh(ctx context.Context, fixtureID uint64) (*domain.Fixture, error) {
	fixture, err := p.upstream.GetFixtureFresh(ctx, fixtureID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[fixtureID] = cachedFixture{
		fixture:   *fixture,
		expiresAt: p.clock.Now().Add(p.ttl),
	}
	p.mu.Unlock()

	return fixture, nil
}

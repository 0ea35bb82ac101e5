package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/matchpulse/vote-engine/internal/adapter"
	"github.com/matchpulse/vote-engine/internal/config"
	"github.com/matchpulse/vote-engine/internal/domain"
	"github.com/matchpulse/vote-engine/internal/logger"
	"github.com/matchpulse/vote-engine/internal/store"
)

// maxLocalLimiters bounds the in-process pre-filter map. When it fills up the
// map is reset wholesale; the shared store remains the source of truth.
const maxLocalLimiters = 100000

// Limiter throttles vote submissions per origin
//
//go:generate mockgen -source=limiter.go -destination=../mocks/ratelimit_limiter.go -package=mocks -mock_names=Limiter=MockRateLimiter
type Limiter interface {
	// Check returns ErrRateLimited when the origin has exhausted its quota
	// for the current window. It never mutates the counter.
	Check(ctx context.Context, origin string) error

	// RecordAttempt counts one accepted submission against the origin's
	// current window.
	RecordAttempt(ctx context.Context, origin string) error

	// PurgeExpired removes counters whose window has lapsed
	PurgeExpired(ctx context.Context) (int64, error)
}

// fixedWindowLimiter enforces a fixed window quota backed by the shared store,
// so every instance of the service sees the same counters. A per-origin local
// token bucket runs in front of it to shed hot-loop abuse without a store
// round trip.
type fixedWindowLimiter struct {
	config config.VotingConfig
	store  store.Store
	clock  adapter.Clock

	mu       sync.Mutex
	local    map[string]*rate.Limiter
	localCfg rate.Limit
}

// NewLimiter creates a fixed-window rate limiter over the shared store
func NewLimiter(cfg config.VotingConfig, s store.Store, clock adapter.Clock) (Limiter, error) {
	if cfg.RateLimitQuota <= 0 {
		return nil, fmt.Errorf("rate limit quota must be positive")
	}
	if cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("rate limit window must be positive")
	}

	// The pre-filter refills at the quota's average rate and bursts up to
	// the full quota
	localRate := rate.Every(cfg.RateLimitWindow / time.Duration(cfg.RateLimitQuota))

	return &fixedWindowLimiter{
		config:   cfg,
		store:    s,
		clock:    clock,
		local:    make(map[string]*rate.Limiter),
		localCfg: localRate,
	}, nil
}

func (l *fixedWindowLimiter) Check(ctx context.Context, origin string) error {
	// Pure read: the local bucket is only drained by RecordAttempt, so
	// rejected attempts leave both the local and the stored quota intact
	if l.localLimiter(origin).Tokens() < 1 {
		return &domain.RateLimitError{RetryAfter: l.config.RateLimitWindow}
	}

	entry, err := l.store.GetRateLimitEntry(ctx, origin)
	if err != nil {
		return fmt.Errorf("failed to read rate limit entry: %w", err)
	}
	if entry == nil {
		return nil
	}

	now := l.clock.Now()
	if !now.Before(entry.WindowExpiresAt) {
		// Window lapsed, the next attempt starts a fresh one
		return nil
	}
	if entry.Attempts < l.config.RateLimitQuota {
		return nil
	}

	retryAfter := entry.WindowExpiresAt.Sub(now)
	logger.DebugCtx(ctx, "origin over rate limit quota",
		zap.Int("attempts", entry.Attempts),
		zap.Duration("retry_after", retryAfter),
	)
	return &domain.RateLimitError{RetryAfter: retryAfter}
}

func (l *fixedWindowLimiter) RecordAttempt(ctx context.Context, origin string) error {
	// Drain the local token for the counted write so the pre-filter tracks
	// the stored counter
	l.localLimiter(origin).Allow()

	if err := l.store.IncrementRateLimit(ctx, origin, l.config.RateLimitWindow, l.clock.Now()); err != nil {
		return fmt.Errorf("failed to record rate limit attempt: %w", err)
	}
	return nil
}

func (l *fixedWindowLimiter) PurgeExpired(ctx context.Context) (int64, error) {
	purged, err := l.store.PurgeExpiredRateLimits(ctx, l.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired rate limit entries: %w", err)
	}
	return purged, nil
}

func (l *fixedWindowLimiter) localLimiter(origin string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.local[origin]; ok {
		return lim
	}
	if len(l.local) >= maxLocalLimiters {
		l.local = make(map[string]*rate.Limiter)
	}
	lim := rate.NewLimiter(l.localCfg, l.config.RateLimitQuota)
	l.local[origin] = lim
	return lim
}

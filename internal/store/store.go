package store

import (
	"context"
	"time"

	"github.com/matchpulse/vote-engine/internal/domain"
	"github.com/matchpulse/vote-engine/internal/store/schema"
)

// SubmitVoteInput carries everything the ledger needs to decide a write.
// Tunables travel with the input so the store holds no mutable configuration.
type SubmitVoteInput struct {
	FixtureID      uint64
	VoterID        domain.VoterID
	Choice         domain.Choice
	MaxChangeCount int
	Cooldown       time.Duration
	Now            time.Time
}

// SubmitVoteResult is the outcome of a successful ledger write (or an
// idempotent same-choice resubmission).
type SubmitVoteResult struct {
	Vote *schema.Vote
	// Counts is the per-choice tally for the fixture, read inside the same
	// transaction as the write
	Counts map[domain.Choice]int64
	// Changed is false for the idempotent same-choice case
	Changed bool
}

// Store defines the interface for database operations
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// GetVote retrieves the vote for a (fixture, voter) pair, nil when absent
	GetVote(ctx context.Context, fixtureID uint64, voterID domain.VoterID) (*schema.Vote, error)

	// SubmitVote atomically inserts or updates the vote for a (fixture, voter)
	// pair, enforcing the change-count and cooldown invariants, and returns the
	// written row together with the fixture's per-choice counts.
	// Business-rule rejections surface as domain.ErrChangeLimitExceeded and
	// *domain.CooldownError; no partial state is left behind on rejection.
	SubmitVote(ctx context.Context, input SubmitVoteInput) (*SubmitVoteResult, error)

	// CountVotesByChoice tallies votes for a fixture grouped by choice.
	// Choices with no votes are absent from the map.
	CountVotesByChoice(ctx context.Context, fixtureID uint64) (map[domain.Choice]int64, error)

	// GetRateLimitEntry retrieves the rate-limit row for an origin, nil when absent
	GetRateLimitEntry(ctx context.Context, origin string) (*schema.RateLimitEntry, error)

	// IncrementRateLimit counts one successful write for the origin, starting a
	// fresh window when none is active
	IncrementRateLimit(ctx context.Context, origin string, window time.Duration, now time.Time) error

	// PurgeExpiredRateLimits deletes rate-limit rows whose window has lapsed
	// and returns the number of rows removed
	PurgeExpiredRateLimits(ctx context.Context, now time.Time) (int64, error)
}

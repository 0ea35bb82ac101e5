package vote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/matchpulse/vote-engine/internal/adapter"
	"github.com/matchpulse/vote-engine/internal/aggregate"
	"github.com/matchpulse/vote-engine/internal/config"
	"github.com/matchpulse/vote-engine/internal/domain"
	"github.com/matchpulse/vote-engine/internal/fixtures"
	"github.com/matchpulse/vote-engine/internal/logger"
	"github.com/matchpulse/vote-engine/internal/ratelimit"
	"github.com/matchpulse/vote-engine/internal/store"
	"github.com/matchpulse/vote-engine/internal/store/schema"
	"github.com/matchpulse/vote-engine/internal/window"
)

// CastVoteInput carries a single vote submission
type CastVoteInput struct {
	FixtureID uint64
	VoterID   domain.VoterID
	Choice    domain.Choice
	// Origin is the anonymized rate-limit bucket key for the client
	Origin string
}

// CastVoteResult reports an accepted submission
type CastVoteResult struct {
	Choice      domain.Choice
	ChangeCount int
	// Changed is false when the voter resubmitted their current choice
	Changed bool
	// CanChange reports whether a further change would be accepted right now
	CanChange bool
	// CooldownEndsAt is set when only the cooldown blocks a further change
	CooldownEndsAt *time.Time
	Totals         domain.VoteTotals
}

// OwnVote describes the caller's ballot for a fixture. Choice is empty when
// the caller has not voted; CanChange then reports whether a first vote would
// be accepted.
type OwnVote struct {
	Choice      domain.Choice
	ChangeCount int
	// CanChange reports whether a vote or change would be accepted right now
	CanChange bool
	// CooldownEndsAt is set when only the cooldown blocks a change
	CooldownEndsAt *time.Time
}

// Service orchestrates vote reads and writes across the limiter, the fixture
// provider, the window policy and the ledger.
type Service struct {
	config     config.VotingConfig
	store      store.Store
	fixtures   fixtures.Provider
	window     *window.Policy
	limiter    ratelimit.Limiter
	aggregator *aggregate.Aggregator
	clock      adapter.Clock
}

// NewService creates the voting service
func NewService(
	cfg config.VotingConfig,
	s store.Store,
	provider fixtures.Provider,
	policy *window.Policy,
	limiter ratelimit.Limiter,
	clock adapter.Clock,
) *Service {
	return &Service{
		config:     cfg,
		store:      s,
		fixtures:   provider,
		window:     policy,
		limiter:    limiter,
		aggregator: aggregate.NewAggregator(s),
		clock:      clock,
	}
}

// GetTotals returns the aggregated totals for a fixture. Unknown fixtures
// yield domain.ErrFixtureNotFound; a known fixture with no votes yields zeros.
func (s *Service) GetTotals(ctx context.Context, fixtureID uint64) (domain.VoteTotals, error) {
	if _, err := s.fixtures.GetFixture(ctx, fixtureID); err != nil {
		return domain.VoteTotals{}, err
	}
	return s.aggregator.GetTotals(ctx, fixtureID)
}

// GetOwnVote returns the caller's ballot for a fixture. Callers without a
// resolved identity (empty voterID) or without a ballot get an empty OwnVote,
// never nil; only an unknown fixture is an error.
func (s *Service) GetOwnVote(ctx context.Context, fixtureID uint64, voterID domain.VoterID) (*OwnVote, error) {
	fixture, err := s.fixtures.GetFixture(ctx, fixtureID)
	if err != nil {
		return nil, err
	}

	windowOpen := s.window.IsOpen(fixture)
	if voterID == "" {
		return &OwnVote{CanChange: windowOpen}, nil
	}

	ballot, err := s.store.GetVote(ctx, fixtureID, voterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load vote: %w", err)
	}
	if ballot == nil {
		return &OwnVote{CanChange: windowOpen}, nil
	}

	own := &OwnVote{
		Choice:      ballot.Choice,
		ChangeCount: ballot.ChangeCount,
	}
	own.CanChange, own.CooldownEndsAt = s.changeAbility(ballot, windowOpen)
	return own, nil
}

// changeAbility reports whether another change of the ballot would be accepted,
// and the cooldown end when only the cooldown blocks it
func (s *Service) changeAbility(ballot *schema.Vote, windowOpen bool) (bool, *time.Time) {
	if !windowOpen || ballot.ChangeCount >= s.config.MaxChangeCount {
		return false, nil
	}
	cooldownEnd := ballot.LastChangedAt.Add(s.config.Cooldown)
	if s.clock.Now().Before(cooldownEnd) {
		return false, &cooldownEnd
	}
	return true, nil
}

// CastVote runs the write pipeline for one submission: rate limit, fixture
// resolution, window policy, then the transactional ledger write. The rate
// limit counter moves only after the ledger accepts the vote.
func (s *Service) CastVote(ctx context.Context, input CastVoteInput) (*CastVoteResult, error) {
	if !domain.IsValidChoice(input.Choice) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidChoice, input.Choice)
	}

	if err := s.limiter.Check(ctx, input.Origin); err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			logger.InfoCtx(ctx, "vote rejected by rate limit",
				zap.Uint64("fixture_id", input.FixtureID),
				zap.String("origin", input.Origin),
			)
		}
		return nil, err
	}

	// The write path never trusts cached fixture state
	fixture, err := s.fixtures.GetFixtureFresh(ctx, input.FixtureID)
	if err != nil {
		return nil, err
	}

	if err := s.window.Check(fixture); err != nil {
		return nil, err
	}

	submitCtx := ctx
	if s.config.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		submitCtx, cancel = context.WithTimeout(ctx, s.config.SubmitTimeout)
		defer cancel()
	}

	result, err := s.store.SubmitVote(submitCtx, store.SubmitVoteInput{
		FixtureID:      input.FixtureID,
		VoterID:        input.VoterID,
		Choice:         input.Choice,
		MaxChangeCount: s.config.MaxChangeCount,
		Cooldown:       s.config.Cooldown,
		Now:            s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	// Count the accepted write against the origin's window. A failure here
	// must not fail the vote that was already committed.
	if err := s.limiter.RecordAttempt(ctx, input.Origin); err != nil {
		logger.ErrorCtx(ctx, err,
			zap.Uint64("fixture_id", input.FixtureID),
			zap.String("origin", input.Origin),
		)
	}

	logger.InfoCtx(ctx, "vote accepted",
		zap.Uint64("fixture_id", input.FixtureID),
		zap.String("choice", string(result.Vote.Choice)),
		zap.Int("change_count", result.Vote.ChangeCount),
		zap.Bool("changed", result.Changed),
	)

	// The window was open for this write, so only the change count and the
	// cooldown can block the next one
	canChange, cooldownEndsAt := s.changeAbility(result.Vote, true)

	return &CastVoteResult{
		Choice:         result.Vote.Choice,
		ChangeCount:    result.Vote.ChangeCount,
		Changed:        result.Changed,
		CanChange:      canChange,
		CooldownEndsAt: cooldownEndsAt,
		Totals:         aggregate.Totals(result.Counts),
	}, nil
}

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchpulse/vote-engine/internal/domain"
)

const (
	testMaxChanges = 3
	testCooldown   = 30 * time.Second
)

func newVoterID() domain.VoterID {
	return domain.VoterID(uuid.NewString())
}

func submitInput(fixtureID uint64, voterID domain.VoterID, choice domain.Choice, now time.Time) SubmitVoteInput {
	return SubmitVoteInput{
		FixtureID:      fixtureID,
		VoterID:        voterID,
		Choice:         choice,
		MaxChangeCount: testMaxChanges,
		Cooldown:       testCooldown,
		Now:            now,
	}
}

// RunStoreTests runs the ledger and rate-limit test suite against a store
// implementation. initDB must return a store with clean state per test.
func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store) {
	t.Run("SubmitVote", func(t *testing.T) { testSubmitVote(t, initDB) })
	t.Run("GetVote", func(t *testing.T) { testGetVote(t, initDB) })
	t.Run("CountVotesByChoice", func(t *testing.T) { testCountVotesByChoice(t, initDB) })
	t.Run("RateLimit", func(t *testing.T) { testRateLimit(t, initDB) })
}

func testSubmitVote(t *testing.T, initDB func(t *testing.T) Store) {
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

	t.Run("first vote inserts with zero change count", func(t *testing.T) {
		s := initDB(t)
		voter := newVoterID()

		result, err := s.SubmitVote(ctx, submitInput(100, voter, domain.ChoiceHome, base))
		require.NoError(t, err)
		require.NotNil(t, result.Vote)

		assert.Equal(t, domain.ChoiceHome, result.Vote.Choice)
		assert.Equal(t, 0, result.Vote.ChangeCount)
		assert.True(t, result.Changed)
		assert.Equal(t, int64(1), result.Counts[domain.ChoiceHome])
	})

	t.Run("same choice resubmission is idempotent", func(t *testing.T) {
		s := initDB(t)
		voter := newVoterID()

		first, err := s.SubmitVote(ctx, submitInput(101, voter, domain.ChoiceDraw, base))
		require.NoError(t, err)

		// Resubmit well past the cooldown; nothing should move
		again, err := s.SubmitVote(ctx, submitInput(101, voter, domain.ChoiceDraw, base.Add(time.Hour)))
		require.NoError(t, err)

		assert.False(t, again.Changed)
		assert.Equal(t, 0, again.Vote.ChangeCount)
		assert.Equal(t, first.Vote.LastChangedAt.Unix(), again.Vote.LastChangedAt.Unix())
		assert.Equal(t, int64(1), again.Counts[domain.ChoiceDraw])
	})

	t.Run("distinct choice change increments count and timestamp", func(t *testing.T) {
		s := initDB(t)
		voter := newVoterID()

		_, err := s.SubmitVote(ctx, submitInput(102, voter, domain.ChoiceHome, base))
		require.NoError(t, err)

		changedAt := base.Add(testCooldown + time.Second)
		result, err := s.SubmitVote(ctx, submitInput(102, voter, domain.ChoiceAway, changedAt))
		require.NoError(t, err)

		assert.True(t, result.Changed)
		assert.Equal(t, domain.ChoiceAway, result.Vote.Choice)
		assert.Equal(t, 1, result.Vote.ChangeCount)
		assert.Equal(t, changedAt.Unix(), result.Vote.LastChangedAt.Unix())
		assert.Equal(t, base.Unix(), result.Vote.CreatedAt.Unix())

		// Totals reflect the move, not a second vote
		assert.Equal(t, int64(1), result.Counts[domain.ChoiceAway])
		assert.Zero(t, result.Counts[domain.ChoiceHome])
	})

	t.Run("change within cooldown is rejected with cooldown end", func(t *testing.T) {
		s := initDB(t)
		voter := newVoterID()

		_, err := s.SubmitVote(ctx, submitInput(103, voter, domain.ChoiceHome, base))
		require.NoError(t, err)

		changedAt := base.Add(testCooldown + time.Second)
		_, err = s.SubmitVote(ctx, submitInput(103, voter, domain.ChoiceDraw, changedAt))
		require.NoError(t, err)

		// One second after the first change; 29s of cooldown remain
		_, err = s.SubmitVote(ctx, submitInput(103, voter, domain.ChoiceAway, changedAt.Add(time.Second)))
		require.ErrorIs(t, err, domain.ErrCooldownActive)

		var cooldownErr *domain.CooldownError
		require.ErrorAs(t, err, &cooldownErr)
		assert.Equal(t, changedAt.Add(testCooldown).Unix(), cooldownErr.EndsAt.Unix())

		// Rejection left no partial state
		vote, err := s.GetVote(ctx, 103, voter)
		require.NoError(t, err)
		assert.Equal(t, domain.ChoiceDraw, vote.Choice)
		assert.Equal(t, 1, vote.ChangeCount)
	})

	t.Run("first vote needs no cooldown", func(t *testing.T) {
		s := initDB(t)

		// Two different voters back to back within one cooldown span
		_, err := s.SubmitVote(ctx, submitInput(104, newVoterID(), domain.ChoiceHome, base))
		require.NoError(t, err)
		_, err = s.SubmitVote(ctx, submitInput(104, newVoterID(), domain.ChoiceHome, base.Add(time.Second)))
		require.NoError(t, err)
	})

	t.Run("change limit is enforced", func(t *testing.T) {
		s := initDB(t)
		voter := newVoterID()

		now := base
		_, err := s.SubmitVote(ctx, submitInput(105, voter, domain.ChoiceHome, now))
		require.NoError(t, err)

		// Alternate choices, spacing each change past the cooldown
		choices := []domain.Choice{domain.ChoiceDraw, domain.ChoiceAway, domain.ChoiceHome}
		for i, choice := range choices {
			now = now.Add(testCooldown + time.Second)
			result, err := s.SubmitVote(ctx, submitInput(105, voter, choice, now))
			require.NoError(t, err)
			assert.Equal(t, i+1, result.Vote.ChangeCount)
		}

		// Fourth distinct-choice change must fail regardless of elapsed time
		now = now.Add(time.Hour)
		_, err = s.SubmitVote(ctx, submitInput(105, voter, domain.ChoiceDraw, now))
		require.ErrorIs(t, err, domain.ErrChangeLimitExceeded)

		vote, err := s.GetVote(ctx, 105, voter)
		require.NoError(t, err)
		assert.Equal(t, testMaxChanges, vote.ChangeCount)
		assert.Equal(t, domain.ChoiceHome, vote.Choice)
	})

	t.Run("change limit checked before cooldown", func(t *testing.T) {
		s := initDB(t)
		voter := newVoterID()

		now := base
		_, err := s.SubmitVote(ctx, submitInput(106, voter, domain.ChoiceHome, now))
		require.NoError(t, err)

		for _, choice := range []domain.Choice{domain.ChoiceDraw, domain.ChoiceAway, domain.ChoiceHome} {
			now = now.Add(testCooldown + time.Second)
			_, err = s.SubmitVote(ctx, submitInput(106, voter, choice, now))
			require.NoError(t, err)
		}

		// Immediately after the third change: both limit and cooldown apply,
		// and the terminal condition wins
		_, err = s.SubmitVote(ctx, submitInput(106, voter, domain.ChoiceDraw, now.Add(time.Second)))
		require.ErrorIs(t, err, domain.ErrChangeLimitExceeded)
	})

	t.Run("votes are isolated per fixture", func(t *testing.T) {
		s := initDB(t)
		voter := newVoterID()

		_, err := s.SubmitVote(ctx, submitInput(107, voter, domain.ChoiceHome, base))
		require.NoError(t, err)
		_, err = s.SubmitVote(ctx, submitInput(108, voter, domain.ChoiceAway, base.Add(time.Second)))
		require.NoError(t, err)

		v1, err := s.GetVote(ctx, 107, voter)
		require.NoError(t, err)
		v2, err := s.GetVote(ctx, 108, voter)
		require.NoError(t, err)

		assert.Equal(t, domain.ChoiceHome, v1.Choice)
		assert.Equal(t, domain.ChoiceAway, v2.Choice)
	})
}

func testGetVote(t *testing.T, initDB func(t *testing.T) Store) {
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

	t.Run("missing vote returns nil without error", func(t *testing.T) {
		s := initDB(t)

		vote, err := s.GetVote(ctx, 200, newVoterID())
		require.NoError(t, err)
		assert.Nil(t, vote)
	})

	t.Run("existing vote round-trips", func(t *testing.T) {
		s := initDB(t)
		voter := newVoterID()

		_, err := s.SubmitVote(ctx, submitInput(201, voter, domain.ChoiceDraw, base))
		require.NoError(t, err)

		vote, err := s.GetVote(ctx, 201, voter)
		require.NoError(t, err)
		require.NotNil(t, vote)
		assert.Equal(t, uint64(201), vote.FixtureID)
		assert.Equal(t, string(voter), vote.VoterID)
		assert.Equal(t, domain.ChoiceDraw, vote.Choice)
	})
}

func testCountVotesByChoice(t *testing.T, initDB func(t *testing.T) Store) {
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

	t.Run("empty fixture yields empty map", func(t *testing.T) {
		s := initDB(t)

		counts, err := s.CountVotesByChoice(ctx, 300)
		require.NoError(t, err)
		assert.Empty(t, counts)
	})

	t.Run("counts group by choice and scope by fixture", func(t *testing.T) {
		s := initDB(t)

		for range 3 {
			_, err := s.SubmitVote(ctx, submitInput(301, newVoterID(), domain.ChoiceHome, base))
			require.NoError(t, err)
		}
		for range 2 {
			_, err := s.SubmitVote(ctx, submitInput(301, newVoterID(), domain.ChoiceAway, base))
			require.NoError(t, err)
		}
		// Noise on another fixture
		_, err := s.SubmitVote(ctx, submitInput(302, newVoterID(), domain.ChoiceDraw, base))
		require.NoError(t, err)

		counts, err := s.CountVotesByChoice(ctx, 301)
		require.NoError(t, err)

		assert.Equal(t, int64(3), counts[domain.ChoiceHome])
		assert.Equal(t, int64(2), counts[domain.ChoiceAway])
		assert.Zero(t, counts[domain.ChoiceDraw])
	})
}

func testRateLimit(t *testing.T, initDB func(t *testing.T) Store) {
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	window := time.Minute

	t.Run("unknown origin has no entry", func(t *testing.T) {
		s := initDB(t)

		entry, err := s.GetRateLimitEntry(ctx, "203.0.113.7")
		require.NoError(t, err)
		assert.Nil(t, entry)
	})

	t.Run("increment creates then counts", func(t *testing.T) {
		s := initDB(t)
		origin := "203.0.113.8"

		require.NoError(t, s.IncrementRateLimit(ctx, origin, window, base))
		require.NoError(t, s.IncrementRateLimit(ctx, origin, window, base.Add(time.Second)))
		require.NoError(t, s.IncrementRateLimit(ctx, origin, window, base.Add(2*time.Second)))

		entry, err := s.GetRateLimitEntry(ctx, origin)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, 3, entry.Attempts)
		assert.Equal(t, base.Add(window).Unix(), entry.WindowExpiresAt.Unix())
	})

	t.Run("lapsed window resets in place", func(t *testing.T) {
		s := initDB(t)
		origin := "203.0.113.9"

		require.NoError(t, s.IncrementRateLimit(ctx, origin, window, base))
		require.NoError(t, s.IncrementRateLimit(ctx, origin, window, base.Add(time.Second)))

		// Past the window boundary the count starts over
		later := base.Add(window + time.Second)
		require.NoError(t, s.IncrementRateLimit(ctx, origin, window, later))

		entry, err := s.GetRateLimitEntry(ctx, origin)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, 1, entry.Attempts)
		assert.Equal(t, later.Add(window).Unix(), entry.WindowExpiresAt.Unix())
	})

	t.Run("purge removes only expired entries", func(t *testing.T) {
		s := initDB(t)

		require.NoError(t, s.IncrementRateLimit(ctx, "203.0.113.10", window, base))
		require.NoError(t, s.IncrementRateLimit(ctx, "203.0.113.11", window, base.Add(window*2)))

		removed, err := s.PurgeExpiredRateLimits(ctx, base.Add(window+time.Second))
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)

		gone, err := s.GetRateLimitEntry(ctx, "203.0.113.10")
		require.NoError(t, err)
		assert.Nil(t, gone)

		kept, err := s.GetRateLimitEntry(ctx, "203.0.113.11")
		require.NoError(t, err)
		assert.NotNil(t, kept)
	})
}

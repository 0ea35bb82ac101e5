package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/matchpulse/vote-engine/internal/domain"
	"github.com/matchpulse/vote-engine/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// Migrate creates or updates the votes and rate_limit_entries tables
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&schema.Vote{}, &schema.RateLimitEntry{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// Zero values fall back to safe defaults.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	// database/sql treats MaxIdleConns > MaxOpenConns as wasteful; clamp
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// GetVote retrieves the vote for a (fixture, voter) pair
func (s *pgStore) GetVote(ctx context.Context, fixtureID uint64, voterID domain.VoterID) (*schema.Vote, error) {
	var vote schema.Vote
	err := s.db.WithContext(ctx).
		Where("fixture_id = ? AND voter_id = ?", fixtureID, string(voterID)).
		First(&vote).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	return &vote, nil
}

// SubmitVote atomically inserts or updates the vote for a (fixture, voter) pair.
//
// The write is a single transaction: the insert path relies on the unique
// (fixture_id, voter_id) index via ON CONFLICT DO NOTHING, and the change path
// takes a SELECT ... FOR UPDATE row lock so that two near-simultaneous change
// requests cannot both pass the change-count check.
func (s *pgStore) SubmitVote(ctx context.Context, input SubmitVoteInput) (*SubmitVoteResult, error) {
	var result SubmitVoteResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		vote := schema.Vote{
			FixtureID:     input.FixtureID,
			VoterID:       string(input.VoterID),
			Choice:        input.Choice,
			ChangeCount:   0,
			CreatedAt:     input.Now,
			LastChangedAt: input.Now,
		}

		// First-vote fast path. ON CONFLICT DO NOTHING lets concurrent first
		// votes race safely; the loser falls through to the change path below.
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fixture_id"}, {Name: "voter_id"}},
			DoNothing: true,
		}).Clauses(clause.Returning{Columns: []clause.Column{}}).
			Create(&vote).Error; err != nil {
			return fmt.Errorf("failed to insert vote: %w", err)
		}

		if vote.ID != 0 {
			result.Vote = &vote
			result.Changed = true
			return s.tallyInTx(tx, input.FixtureID, &result)
		}

		// A vote already exists; lock it and decide
		var existing schema.Vote
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("fixture_id = ? AND voter_id = ?", input.FixtureID, string(input.VoterID)).
			First(&existing).Error; err != nil {
			return fmt.Errorf("failed to lock existing vote: %w", err)
		}

		// Idempotent on repeated identical submission
		if existing.Choice == input.Choice {
			result.Vote = &existing
			result.Changed = false
			return s.tallyInTx(tx, input.FixtureID, &result)
		}

		if existing.ChangeCount >= input.MaxChangeCount {
			return domain.ErrChangeLimitExceeded
		}

		if elapsed := input.Now.Sub(existing.LastChangedAt); elapsed < input.Cooldown {
			return &domain.CooldownError{EndsAt: existing.LastChangedAt.Add(input.Cooldown)}
		}

		existing.Choice = input.Choice
		existing.ChangeCount++
		existing.LastChangedAt = input.Now

		if err := tx.Model(&schema.Vote{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"choice":          existing.Choice,
				"change_count":    existing.ChangeCount,
				"last_changed_at": existing.LastChangedAt,
			}).Error; err != nil {
			return fmt.Errorf("failed to update vote: %w", err)
		}

		result.Vote = &existing
		result.Changed = true
		return s.tallyInTx(tx, input.FixtureID, &result)
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// tallyInTx recomputes the fixture's per-choice counts inside the running transaction
func (s *pgStore) tallyInTx(tx *gorm.DB, fixtureID uint64, result *SubmitVoteResult) error {
	counts, err := countVotesByChoice(tx, fixtureID)
	if err != nil {
		return err
	}
	result.Counts = counts
	return nil
}

// CountVotesByChoice tallies votes for a fixture grouped by choice
func (s *pgStore) CountVotesByChoice(ctx context.Context, fixtureID uint64) (map[domain.Choice]int64, error) {
	return countVotesByChoice(s.db.WithContext(ctx), fixtureID)
}

func countVotesByChoice(db *gorm.DB, fixtureID uint64) (map[domain.Choice]int64, error) {
	type choiceCount struct {
		Choice domain.Choice `gorm:"column:choice"`
		Count  int64         `gorm:"column:count"`
	}

	var rows []choiceCount
	err := db.Model(&schema.Vote{}).
		Select("choice, COUNT(*) as count").
		Where("fixture_id = ?", fixtureID).
		Group("choice").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}

	counts := make(map[domain.Choice]int64, len(rows))
	for _, row := range rows {
		counts[row.Choice] = row.Count
	}
	return counts, nil
}

// GetRateLimitEntry retrieves the rate-limit row for an origin
func (s *pgStore) GetRateLimitEntry(ctx context.Context, origin string) (*schema.RateLimitEntry, error) {
	var entry schema.RateLimitEntry
	err := s.db.WithContext(ctx).Where("origin = ?", origin).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get rate limit entry: %w", err)
	}
	return &entry, nil
}

// IncrementRateLimit counts one successful write for the origin. A lapsed
// window is reset in place rather than deleted, so an origin row is reused
// across windows.
func (s *pgStore) IncrementRateLimit(ctx context.Context, origin string, window time.Duration, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := schema.RateLimitEntry{
			Origin:          origin,
			Attempts:        1,
			WindowExpiresAt: now.Add(window),
		}

		// First attempt from this origin; concurrent creators race safely
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "origin"}},
			DoNothing: true,
		}).Create(&entry)
		if res.Error != nil {
			return fmt.Errorf("failed to create rate limit entry: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			return nil
		}

		// Row exists; lock and either reset the window or increment
		var existing schema.RateLimitEntry
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("origin = ?", origin).
			First(&existing).Error; err != nil {
			return fmt.Errorf("failed to lock rate limit entry: %w", err)
		}

		if !existing.WindowExpiresAt.After(now) {
			existing.Attempts = 1
			existing.WindowExpiresAt = now.Add(window)
		} else {
			existing.Attempts++
		}

		if err := tx.Model(&schema.RateLimitEntry{}).
			Where("origin = ?", origin).
			Updates(map[string]interface{}{
				"attempts":          existing.Attempts,
				"window_expires_at": existing.WindowExpiresAt,
			}).Error; err != nil {
			return fmt.Errorf("failed to update rate limit entry: %w", err)
		}

		return nil
	})
}

// PurgeExpiredRateLimits deletes rate-limit rows whose window has lapsed
func (s *pgStore) PurgeExpiredRateLimits(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("window_expires_at <= ?", now).
		Delete(&schema.RateLimitEntry{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge rate limit entries: %w", res.Error)
	}
	return res.RowsAffected, nil
}

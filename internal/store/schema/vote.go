package schema

import (
	"time"

	"github.com/matchpulse/vote-engine/internal/domain"
)

// Vote represents the votes table - at most one row per (fixture, voter).
// Rows are never deleted; aggregation integrity depends on them staying put.
type Vote struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// FixtureID references the fixture being predicted (external entity, id only)
	FixtureID uint64 `gorm:"column:fixture_id;not null;uniqueIndex:idx_votes_fixture_voter,priority:1;index:idx_votes_fixture_choice,priority:1"`
	// VoterID is the anonymous cookie-carried identifier
	VoterID string `gorm:"column:voter_id;not null;type:uuid;uniqueIndex:idx_votes_fixture_voter,priority:2"`
	// Choice is the predicted outcome (home/draw/away)
	Choice domain.Choice `gorm:"column:choice;not null;type:text;index:idx_votes_fixture_choice,priority:2"`
	// ChangeCount is the number of times the voter altered this vote, bounded by config
	ChangeCount int `gorm:"column:change_count;not null;default:0"`
	// CreatedAt is the timestamp of the first vote
	CreatedAt time.Time `gorm:"column:created_at;not null;type:timestamptz"`
	// LastChangedAt is the timestamp of the most recent change (>= CreatedAt)
	LastChangedAt time.Time `gorm:"column:last_changed_at;not null;type:timestamptz"`
}

// TableName specifies the table name for the Vote model
func (Vote) TableName() string {
	return "votes"
}

package domain

import (
	"time"
)

// Choice represents one of the three prediction outcomes for a fixture
type Choice string

const (
	ChoiceHome Choice = "home"
	ChoiceDraw Choice = "draw"
	ChoiceAway Choice = "away"
)

// Choices lists all valid choices in canonical order (home, draw, away).
// The order is load-bearing: percentage rounding ties are broken by it.
var Choices = []Choice{ChoiceHome, ChoiceDraw, ChoiceAway}

// IsValidChoice checks if a choice is one of home/draw/away
func IsValidChoice(c Choice) bool {
	return c == ChoiceHome || c == ChoiceDraw || c == ChoiceAway
}

// VoterID is the opaque anonymous voter identifier carried in the identity cookie.
// It is a random 128-bit value rendered as a UUID string and has no other attributes.
type VoterID string

// FixtureStatus represents the lifecycle state of a fixture as reported by the
// fixture provider
type FixtureStatus string

const (
	FixtureStatusScheduled FixtureStatus = "scheduled"
	FixtureStatusLive      FixtureStatus = "live"
	FixtureStatusFinished  FixtureStatus = "finished"
	FixtureStatusPostponed FixtureStatus = "postponed"
	FixtureStatusCancelled FixtureStatus = "cancelled"
)

// IsValid checks if the status is one the fixture provider reports
func (s FixtureStatus) IsValid() bool {
	switch s {
	case FixtureStatusScheduled, FixtureStatusLive, FixtureStatusFinished,
		FixtureStatusPostponed, FixtureStatusCancelled:
		return true
	}
	return false
}

// Fixture is the slice of fixture state the voting engine consumes.
// The fixture provider owns the full entity; only kickoff time and status
// matter here.
type Fixture struct {
	ID          uint64        `json:"id"`
	KickoffTime time.Time     `json:"kickoff_time"`
	Status      FixtureStatus `json:"status"`
}

// ChoiceTotal holds the count and derived percentage for a single choice
type ChoiceTotal struct {
	Count      int64 `json:"count"`
	Percentage int   `json:"percentage"`
}

// VoteTotals is the aggregated read-model for a fixture. Zero-valued (not nil)
// when no votes exist.
type VoteTotals struct {
	Home  ChoiceTotal `json:"home"`
	Draw  ChoiceTotal `json:"draw"`
	Away  ChoiceTotal `json:"away"`
	Total int64       `json:"total"`
}

// ByChoice returns the total for the given choice
func (t VoteTotals) ByChoice(c Choice) ChoiceTotal {
	switch c {
	case ChoiceHome:
		return t.Home
	case ChoiceDraw:
		return t.Draw
	case ChoiceAway:
		return t.Away
	}
	return ChoiceTotal{}
}

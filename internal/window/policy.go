package window

import (
	"github.com/matchpulse/vote-engine/internal/adapter"
	"github.com/matchpulse/vote-engine/internal/domain"
)

// Policy decides whether a fixture currently accepts votes.
type Policy struct {
	clock adapter.Clock
}

// NewPolicy creates a voting window policy
func NewPolicy(clock adapter.Clock) *Policy {
	return &Policy{clock: clock}
}

// IsOpen reports whether votes are accepted for the fixture. The window is
// open strictly before kickoff and only while the fixture is still scheduled.
// A vote at the exact kickoff instant is rejected.
func (p *Policy) IsOpen(fixture *domain.Fixture) bool {
	if fixture.Status != domain.FixtureStatusScheduled {
		return false
	}
	return p.clock.Now().Before(fixture.KickoffTime)
}

// Check returns ErrVotingClosed when the fixture's window is not open.
func (p *Policy) Check(fixture *domain.Fixture) error {
	if !p.IsOpen(fixture) {
		return domain.ErrVotingClosed
	}
	return nil
}

package rest

import (
	"time"

	"github.com/matchpulse/vote-engine/internal/domain"
)

// ChoiceTotalDTO is one choice's slice of the public totals
type ChoiceTotalDTO struct {
	Count      int64 `json:"count"`
	Percentage int   `json:"percentage"`
}

// TotalsResponse is the public aggregate for a fixture. Percentages always
// sum to 100 when any votes exist.
type TotalsResponse struct {
	FixtureID uint64         `json:"fixture_id"`
	Home      ChoiceTotalDTO `json:"home"`
	Draw      ChoiceTotalDTO `json:"draw"`
	Away      ChoiceTotalDTO `json:"away"`
	Total     int64          `json:"total"`
}

// OwnVoteResponse describes the caller's ballot for a fixture. Choice is null
// when the caller has not voted; the response is still 200.
type OwnVoteResponse struct {
	FixtureID      uint64     `json:"fixture_id"`
	Choice         *string    `json:"choice"`
	ChangeCount    int        `json:"change_count"`
	CanChange      bool       `json:"can_change"`
	CooldownEndsAt *time.Time `json:"cooldown_ends_at,omitempty"`
}

// CastVoteRequest is the vote submission body
type CastVoteRequest struct {
	Choice string `json:"choice" binding:"required"`
}

// CastVoteResponse reports an accepted submission together with the totals
// that include it and the caller's remaining room to change
type CastVoteResponse struct {
	Success        bool           `json:"success"`
	FixtureID      uint64         `json:"fixture_id"`
	Choice         string         `json:"choice"`
	ChangeCount    int            `json:"change_count"`
	Changed        bool           `json:"changed"`
	CanChange      bool           `json:"can_change"`
	CooldownEndsAt *time.Time     `json:"cooldown_ends_at,omitempty"`
	Totals         TotalsResponse `json:"totals"`
}

func toTotalsResponse(fixtureID uint64, totals domain.VoteTotals) TotalsResponse {
	return TotalsResponse{
		FixtureID: fixtureID,
		Home:      ChoiceTotalDTO{Count: totals.Home.Count, Percentage: totals.Home.Percentage},
		Draw:      ChoiceTotalDTO{Count: totals.Draw.Count, Percentage: totals.Draw.Percentage},
		Away:      ChoiceTotalDTO{Count: totals.Away.Count, Percentage: totals.Away.Percentage},
		Total:     totals.Total,
	}
}

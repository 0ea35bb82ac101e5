package aggregate

import (
	"context"
	"fmt"
	"sort"

	"github.com/matchpulse/vote-engine/internal/domain"
	"github.com/matchpulse/vote-engine/internal/store"
)

// Aggregator computes public-facing totals from the vote ledger
type Aggregator struct {
	store store.Store
}

// NewAggregator creates a new vote aggregator
func NewAggregator(s store.Store) *Aggregator {
	return &Aggregator{store: s}
}

// GetTotals reads the fixture's per-choice counts from the ledger and derives
// the totals read-model. A fixture with no votes yields zeros, never nil.
func (a *Aggregator) GetTotals(ctx context.Context, fixtureID uint64) (domain.VoteTotals, error) {
	counts, err := a.store.CountVotesByChoice(ctx, fixtureID)
	if err != nil {
		return domain.VoteTotals{}, fmt.Errorf("failed to aggregate votes: %w", err)
	}
	return Totals(counts), nil
}

// Totals derives counts and percentages from a per-choice tally.
//
// Percentages are integers computed with the largest-remainder method so they
// always sum to exactly 100 when any votes exist: each choice gets the floor
// of its exact share, and the leftover points go to the choices with the
// largest fractional parts. Ties go to the earlier choice in home, draw, away
// order, which keeps the output deterministic. Clients render these numbers
// as-is.
func Totals(counts map[domain.Choice]int64) domain.VoteTotals {
	var total int64
	for _, c := range domain.Choices {
		total += counts[c]
	}

	totals := domain.VoteTotals{Total: total}
	percentages := percentagesFor(counts, total)

	totals.Home = domain.ChoiceTotal{Count: counts[domain.ChoiceHome], Percentage: percentages[domain.ChoiceHome]}
	totals.Draw = domain.ChoiceTotal{Count: counts[domain.ChoiceDraw], Percentage: percentages[domain.ChoiceDraw]}
	totals.Away = domain.ChoiceTotal{Count: counts[domain.ChoiceAway], Percentage: percentages[domain.ChoiceAway]}

	return totals
}

func percentagesFor(counts map[domain.Choice]int64, total int64) map[domain.Choice]int {
	result := make(map[domain.Choice]int, len(domain.Choices))
	if total == 0 {
		return result
	}

	type share struct {
		choice    domain.Choice
		order     int
		remainder int64 // numerator of the fractional part, scaled by total
	}

	shares := make([]share, 0, len(domain.Choices))
	floorSum := 0
	for i, c := range domain.Choices {
		scaled := counts[c] * 100
		floor := int(scaled / total)
		result[c] = floor
		floorSum += floor
		shares = append(shares, share{choice: c, order: i, remainder: scaled % total})
	}

	// Distribute the leftover points to the largest remainders
	sort.SliceStable(shares, func(i, j int) bool {
		if shares[i].remainder != shares[j].remainder {
			return shares[i].remainder > shares[j].remainder
		}
		return shares[i].order < shares[j].order
	})

	for i := 0; i < 100-floorSum; i++ {
		result[shares[i].choice]++
	}

	return result
}

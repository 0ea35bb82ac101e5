package fixtures

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matchpulse/vote-engine/internal/adapter"
	"github.com/matchpulse/vote-engine/internal/config"
	"github.com/matchpulse/vote-engine/internal/domain"
)

// Provider resolves fixture metadata needed for window decisions
//
//go:generate mockgen -source=provider.go -destination=../mocks/fixtures_provider.go -package=mocks -mock_names=Provider=MockFixtureProvider
type Provider interface {
	// GetFixture resolves a fixture, possibly from a short-lived cache
	GetFixture(ctx context.Context, fixtureID uint64) (*domain.Fixture, error)

	// GetFixtureFresh resolves a fixture bypassing the cache. Write paths use
	// this so a just-started match cannot accept votes through stale metadata.
	GetFixtureFresh(ctx context.Context, fixtureID uint64) (*domain.Fixture, error)
}

// fixtureResponse is the upstream fixture payload
type fixtureResponse struct {
	ID          uint64    `json:"id"`
	KickoffTime time.Time `json:"kickoff_time"`
	Status      string    `json:"status"`
}

// httpProvider fetches fixtures from the upstream fixture service
type httpProvider struct {
	baseURL string
	client  adapter.HTTPClient
}

// NewHTTPProvider creates a fixture provider backed by the fixture service API
func NewHTTPProvider(cfg config.FixturesConfig, client adapter.HTTPClient) (Provider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("fixtures base URL is required")
	}
	return &httpProvider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
	}, nil
}

func (p *httpProvider) GetFixture(ctx context.Context, fixtureID uint64) (*domain.Fixture, error) {
	return p.GetFixtureFresh(ctx, fixtureID)
}

func (p *httpProvider) GetFixtureFresh(ctx context.Context, fixtureID uint64) (*domain.Fixture, error) {
	url := fmt.Sprintf("%s/fixtures/%d", p.baseURL, fixtureID)

	var resp fixtureResponse
	if err := p.client.Get(ctx, url, &resp); err != nil {
		if errors.Is(err, adapter.ErrNotFound) {
			return nil, domain.ErrFixtureNotFound
		}
		return nil, fmt.Errorf("failed to fetch fixture %d: %w", fixtureID, err)
	}

	status := domain.FixtureStatus(resp.Status)
	if !status.IsValid() {
		return nil, fmt.Errorf("fixture %d has unknown status %q", fixtureID, resp.Status)
	}

	return &domain.Fixture{
		ID:          resp.ID,
		KickoffTime: resp.KickoffTime,
		Status:      status,
	}, nil
}

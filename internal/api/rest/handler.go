package rest

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/matchpulse/vote-engine/internal/domain"
	"github.com/matchpulse/vote-engine/internal/identity"
	"github.com/matchpulse/vote-engine/internal/ratelimit"
	"github.com/matchpulse/vote-engine/internal/vote"
)

// fingerprintHeader optionally narrows the rate-limit origin below IP level
const fingerprintHeader = "X-Client-Fingerprint"

// Handler defines the interface for REST API handlers
// This interface allows for easy mocking and testing
//
//go:generate mockgen -source=handler.go -destination=../../mocks/api_handler.go -package=mocks -mock_names=Handler=MockAPIHandler
type Handler interface {
	// GetVotes returns the public vote totals for a fixture
	// GET /api/v1/fixtures/:id/votes
	GetVotes(c *gin.Context)

	// GetOwnVote returns the caller's ballot for a fixture. It never mints an
	// identity; callers without a valid cookie simply have no ballot.
	// GET /api/v1/fixtures/:id/votes/me
	GetOwnVote(c *gin.Context)

	// CastVote casts or changes the caller's vote for a fixture
	// POST /api/v1/fixtures/:id/votes
	CastVote(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	service *vote.Service
	issuer  *identity.Issuer
	// originSecret keys the HMAC that anonymizes client addresses before they
	// are used as rate-limit buckets
	originSecret string
}

// NewHandler creates a new REST API handler
func NewHandler(service *vote.Service, issuer *identity.Issuer, originSecret string) Handler {
	return &handler{
		service:      service,
		issuer:       issuer,
		originSecret: originSecret,
	}
}

// GetVotes returns the public vote totals for a fixture
func (h *handler) GetVotes(c *gin.Context) {
	fixtureID, ok := parseFixtureID(c)
	if !ok {
		return
	}

	totals, err := h.service.GetTotals(c.Request.Context(), fixtureID)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	c.Header("Cache-Control", "public, max-age=30")
	c.JSON(http.StatusOK, toTotalsResponse(fixtureID, totals))
}

// GetOwnVote returns the caller's ballot for a fixture
func (h *handler) GetOwnVote(c *gin.Context) {
	fixtureID, ok := parseFixtureID(c)
	if !ok {
		return
	}

	c.Header("Cache-Control", "no-store")

	// An absent or invalid cookie pair is simply an anonymous caller with no
	// ballot; resolution never mints here
	voterID, _ := h.issuer.Resolve(c.Request)

	own, err := h.service.GetOwnVote(c.Request.Context(), fixtureID, voterID)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	resp := OwnVoteResponse{
		FixtureID:      fixtureID,
		ChangeCount:    own.ChangeCount,
		CanChange:      own.CanChange,
		CooldownEndsAt: own.CooldownEndsAt,
	}
	if own.Choice != "" {
		choice := string(own.Choice)
		resp.Choice = &choice
	}

	c.JSON(http.StatusOK, resp)
}

// CastVote casts or changes the caller's vote for a fixture
func (h *handler) CastVote(c *gin.Context) {
	fixtureID, ok := parseFixtureID(c)
	if !ok {
		return
	}

	var req CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	choice := domain.Choice(req.Choice)
	if !domain.IsValidChoice(choice) {
		respondValidationError(c, fmt.Sprintf("choice must be one of home, draw, away, got %q", req.Choice))
		return
	}

	voterID, isNew := h.issuer.ResolveOrMint(c.Request)
	origin := ratelimit.OriginKey(h.originSecret, c.ClientIP(), c.GetHeader(fingerprintHeader))

	result, err := h.service.CastVote(c.Request.Context(), vote.CastVoteInput{
		FixtureID: fixtureID,
		VoterID:   voterID,
		Choice:    choice,
		Origin:    origin,
	})
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	// A freshly minted identity is persisted only once the vote is accepted
	if isNew {
		h.issuer.Persist(c, voterID)
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, CastVoteResponse{
		Success:        true,
		FixtureID:      fixtureID,
		Choice:         string(result.Choice),
		ChangeCount:    result.ChangeCount,
		Changed:        result.Changed,
		CanChange:      result.CanChange,
		CooldownEndsAt: result.CooldownEndsAt,
		Totals:         toTotalsResponse(fixtureID, result.Totals),
	})
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "ok",
		"service": "vote-engine-api",
	})
}

// respondDomainError maps domain rejections onto the REST error envelope
func (h *handler) respondDomainError(c *gin.Context, err error) {
	var cooldownErr *domain.CooldownError
	var rateErr *domain.RateLimitError

	switch {
	case errors.Is(err, domain.ErrFixtureNotFound):
		respondNotFound(c, "Fixture not found")

	case errors.Is(err, domain.ErrInvalidChoice):
		respondValidationError(c, err.Error())

	case errors.Is(err, domain.ErrVotingClosed):
		respondWithError(c, http.StatusForbidden, errCodeVotingClosed,
			"Voting is closed for this fixture", nil)

	case errors.Is(err, domain.ErrChangeLimitExceeded):
		respondWithError(c, http.StatusConflict, errCodeChangeLimit,
			"Vote change limit reached", nil)

	case errors.As(err, &cooldownErr):
		retryAfter := int(math.Ceil(time.Until(cooldownErr.EndsAt).Seconds()))
		if retryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(retryAfter))
		}
		respondWithError(c, http.StatusTooManyRequests, errCodeCooldownActive,
			"Vote was changed too recently", map[string]any{
				"cooldown_ends_at": cooldownErr.EndsAt,
			})

	case errors.As(err, &rateErr):
		retryAfter := int(math.Ceil(rateErr.RetryAfter.Seconds()))
		if retryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(retryAfter))
		}
		respondWithError(c, http.StatusTooManyRequests, errCodeRateLimited,
			"Too many votes from this origin", map[string]any{
				"retry_after_seconds": retryAfter,
			})

	default:
		respondStoreError(c, err, "Temporarily unable to process votes",
			zap.String("path", c.Request.URL.Path))
	}
}

// parseFixtureID validates the :id path parameter, responding on failure
func parseFixtureID(c *gin.Context) (uint64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		respondValidationError(c, fmt.Sprintf("fixture id must be a positive integer, got %q", raw))
		return 0, false
	}
	return id, true
}

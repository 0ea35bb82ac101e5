package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrFixtureNotFound is returned when the fixture provider has no fixture for the given id
	ErrFixtureNotFound = errors.New("fixture not found")

	// ErrVotingClosed is returned when a write is attempted after kickoff or after
	// the fixture left the scheduled state
	ErrVotingClosed = errors.New("voting closed")

	// ErrChangeLimitExceeded is returned when a voter has exhausted the allowed
	// number of choice changes for a fixture
	ErrChangeLimitExceeded = errors.New("change limit exceeded")

	// ErrCooldownActive is returned when a choice change is attempted before the
	// cooldown since the previous change has elapsed
	ErrCooldownActive = errors.New("cooldown active")

	// ErrRateLimited is returned when a network origin has exhausted its write
	// quota for the current window
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidChoice is returned for a choice outside home/draw/away
	ErrInvalidChoice = errors.New("invalid choice")
)

// CooldownError carries the moment the active cooldown ends.
// errors.Is(err, ErrCooldownActive) matches it.
type CooldownError struct {
	EndsAt time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active until %s", e.EndsAt.UTC().Format(time.RFC3339))
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldownActive
}

// RateLimitError carries the delay after which the origin may retry.
// errors.Is(err, ErrRateLimited) matches it.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

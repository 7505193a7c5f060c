package services

import (
	"time"

	"weylus/internal/core/domain"
)

// ReconnectPolicy maps a failed-attempt count to a retry delay and decides
// when to stop retrying.
type ReconnectPolicy interface {
	DelayFor(attempt int) time.Duration
	ShouldGiveUp(attempt int) bool
}

// FixedDelayPolicy waits the same delay before every retry.
type FixedDelayPolicy struct {
	Delay       time.Duration
	MaxAttempts int
}

func NewFixedDelayPolicy(delay time.Duration, maxAttempts int) FixedDelayPolicy {
	return FixedDelayPolicy{Delay: delay, MaxAttempts: maxAttempts}
}

// DefaultReconnectPolicy returns the 2s x 5 attempts policy.
func DefaultReconnectPolicy() FixedDelayPolicy {
	return NewFixedDelayPolicy(domain.ReconnectDelay, domain.MaxReconnectAttempts)
}

func (p FixedDelayPolicy) DelayFor(attempt int) time.Duration {
	return p.Delay
}

func (p FixedDelayPolicy) ShouldGiveUp(attempt int) bool {
	return attempt >= p.MaxAttempts
}

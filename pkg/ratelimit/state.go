// Package ratelimit implements a shared upstream error budget.
// Failures reaching the upstream API are counted in Redis within a reset
// window, and requests are gated once the budget runs low. Upstreams that
// advertise X-RateLimit-Remaining / X-RateLimit-Reset headers overwrite the
// locally counted budget.
package ratelimit

import (
	"time"
)

// Redis keys for error budget state storage.
const (
	RedisKeyErrorsRemaining = "swapi:error_budget:errors_remaining"
	RedisKeyResetTimestamp  = "swapi:error_budget:reset_timestamp"
	RedisKeyLastUpdate      = "swapi:error_budget:last_update"
)

// Thresholds for gating decisions.
const (
	// ErrorThresholdCritical blocks all requests when errors remaining falls below this value.
	ErrorThresholdCritical = 5

	// ErrorThresholdWarning applies throttling when errors remaining falls below this value.
	ErrorThresholdWarning = 20

	// ErrorThresholdHealthy indicates normal operation.
	ErrorThresholdHealthy = 50
)

// Defaults for a fresh budget window.
const (
	DefaultBudget = 100
	DefaultWindow = 60 * time.Second
)

// BudgetState represents the current upstream error budget.
// It is shared across all service replicas via Redis.
type BudgetState struct {
	// ErrorsRemaining is the number of failures tolerated before requests are blocked.
	ErrorsRemaining int `json:"errors_remaining"`

	// ResetAt is when the current window ends and the budget is restored.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last written.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when ErrorsRemaining >= ErrorThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *BudgetState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be blocked.
func (s *BudgetState) NeedsCriticalBlock() bool {
	return s.ErrorsRemaining < ErrorThresholdCritical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *BudgetState) NeedsThrottling() bool {
	return s.ErrorsRemaining < ErrorThresholdWarning && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *BudgetState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field based on current ErrorsRemaining.
func (s *BudgetState) UpdateHealth() {
	s.IsHealthy = s.ErrorsRemaining >= ErrorThresholdHealthy
}

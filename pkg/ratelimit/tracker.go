package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Upstream headers that override the locally counted budget.
const (
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// Prometheus metrics for error budget tracking.
var (
	swapiErrorsRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swapi_errors_remaining",
		Help: "Number of upstream failures remaining in the current error budget window",
	})

	swapiBudgetBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapi_error_budget_blocks_total",
		Help: "Total number of requests blocked due to an exhausted error budget",
	})

	swapiBudgetThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapi_error_budget_throttles_total",
		Help: "Total number of requests throttled due to a low error budget",
	})

	swapiBudgetFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapi_error_budget_failures_total",
		Help: "Total number of upstream failures recorded against the error budget",
	})
)

// Config holds error budget configuration.
type Config struct {
	// Budget is the number of failures tolerated per window.
	Budget int

	// Window is how long a budget lasts after the first recorded failure.
	Window time.Duration

	// ThrottleDelay is the pause applied to requests while in the warning range.
	ThrottleDelay time.Duration
}

// DefaultConfig returns the default budget configuration.
func DefaultConfig() Config {
	return Config{
		Budget:        DefaultBudget,
		Window:        DefaultWindow,
		ThrottleDelay: 1 * time.Second,
	}
}

// Tracker records upstream failures and gates requests.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
	config Config
}

// NewTracker creates a new error budget tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger, cfg Config) *Tracker {
	defaults := DefaultConfig()
	if cfg.Budget <= 0 {
		cfg.Budget = defaults.Budget
	}
	if cfg.Window <= 0 {
		cfg.Window = defaults.Window
	}
	if cfg.ThrottleDelay < 0 {
		cfg.ThrottleDelay = 0
	}

	return &Tracker{
		redis:  redisClient,
		logger: logger,
		config: cfg,
	}
}

// Ping checks that the Redis backend is reachable.
func (t *Tracker) Ping(ctx context.Context) error {
	return t.redis.Ping(ctx).Err()
}

// GetState retrieves the current budget state from Redis.
// Returns a fresh, healthy state if no window is open.
func (t *Tracker) GetState(ctx context.Context) (*BudgetState, error) {
	errorsRemaining, err := t.redis.Get(ctx, RedisKeyErrorsRemaining).Int()
	if errors.Is(err, redis.Nil) {
		t.logger.Debug().Msg("No error budget window open, returning default healthy state")
		now := time.Now()
		state := &BudgetState{
			ErrorsRemaining: t.config.Budget,
			ResetAt:         now.Add(t.config.Window),
			LastUpdate:      now,
		}
		state.UpdateHealth()
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get errors remaining: %w", err)
	}

	resetTimestamp, err := t.redis.Get(ctx, RedisKeyResetTimestamp).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get reset timestamp: %w", err)
	}

	lastUpdateStr, err := t.redis.Get(ctx, RedisKeyLastUpdate).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	var lastUpdate time.Time
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &lastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	state := &BudgetState{
		ErrorsRemaining: errorsRemaining,
		ResetAt:         time.Unix(resetTimestamp, 0),
		LastUpdate:      lastUpdate,
	}
	state.UpdateHealth()

	return state, nil
}

// RecordFailure charges one upstream failure against the budget, opening a
// new window if none is active.
func (t *Tracker) RecordFailure(ctx context.Context) error {
	now := time.Now()
	lastUpdateJSON, err := json.Marshal(now)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	pipe := t.redis.TxPipeline()
	pipe.SetNX(ctx, RedisKeyErrorsRemaining, t.config.Budget, t.config.Window)
	pipe.SetNX(ctx, RedisKeyResetTimestamp, now.Add(t.config.Window).Unix(), t.config.Window)
	remaining := pipe.Decr(ctx, RedisKeyErrorsRemaining)
	pipe.Set(ctx, RedisKeyLastUpdate, lastUpdateJSON, t.config.Window)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record failure in redis: %w", err)
	}

	swapiBudgetFailuresTotal.Inc()
	swapiErrorsRemaining.Set(float64(remaining.Val()))

	t.logger.Debug().
		Int64("errors_remaining", remaining.Val()).
		Msg("Upstream failure recorded")

	return nil
}

// UpdateFromHeaders applies upstream rate limit headers, if present.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	resetStr := headers.Get(HeaderReset)
	if resetStr == "" {
		return fmt.Errorf("%s header missing", HeaderReset)
	}

	resetSeconds, err := strconv.Atoi(resetStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}

	window := time.Duration(resetSeconds) * time.Second
	if window <= 0 {
		window = t.config.Window
	}

	now := time.Now()
	state := &BudgetState{
		ErrorsRemaining: remain,
		ResetAt:         now.Add(window),
		LastUpdate:      now,
	}
	state.UpdateHealth()

	lastUpdateJSON, err := json.Marshal(state.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	pipe := t.redis.Pipeline()
	pipe.Set(ctx, RedisKeyErrorsRemaining, remain, window)
	pipe.Set(ctx, RedisKeyResetTimestamp, state.ResetAt.Unix(), window)
	pipe.Set(ctx, RedisKeyLastUpdate, lastUpdateJSON, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store error budget in redis: %w", err)
	}

	swapiErrorsRemaining.Set(float64(remain))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Int("errors_remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Upstream rate limit CRITICAL - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("errors_remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Upstream rate limit WARNING - requests will be throttled")
	default:
		t.logger.Debug().
			Int("errors_remaining", remain).
			Time("reset_at", state.ResetAt).
			Bool("is_healthy", state.IsHealthy).
			Msg("Upstream rate limit state updated")
	}

	return nil
}

// ShouldAllowRequest reports whether a request may be sent upstream.
// Returns false when the budget is critical; in the warning range it waits
// ThrottleDelay (or until ctx is done) before allowing the request.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get error budget state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("errors_remaining", state.ErrorsRemaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Upstream error budget exhausted - blocking request")

		swapiBudgetBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() && t.config.ThrottleDelay > 0 {
		t.logger.Warn().
			Int("errors_remaining", state.ErrorsRemaining).
			Msg("Upstream error budget low - throttling request")

		swapiBudgetThrottlesTotal.Inc()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(t.config.ThrottleDelay):
		}
	}

	return true, nil
}

//go:build integration

package ratelimit

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func newTestTracker(redisClient *redis.Client, cfg Config) *Tracker {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	return NewTracker(redisClient, logger, cfg)
}

func TestTracker_Integration_DefaultState(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := newTestTracker(redisClient, DefaultConfig())

	state, err := tracker.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.ErrorsRemaining != DefaultBudget {
		t.Errorf("ErrorsRemaining = %d, want %d", state.ErrorsRemaining, DefaultBudget)
	}
	if !state.IsHealthy {
		t.Error("Default state should be healthy")
	}
}

func TestTracker_Integration_RecordFailure(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := newTestTracker(redisClient, Config{Budget: 8, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := tracker.RecordFailure(ctx); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.ErrorsRemaining != 5 {
		t.Errorf("ErrorsRemaining = %d, want 5", state.ErrorsRemaining)
	}
	if state.TimeUntilReset() <= 0 || state.TimeUntilReset() > time.Minute {
		t.Errorf("TimeUntilReset = %v, want within window", state.TimeUntilReset())
	}

	ttl, err := redisClient.TTL(ctx, RedisKeyErrorsRemaining).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 {
		t.Errorf("errors_remaining TTL = %v, want positive", ttl)
	}

	// One more failure drops below the critical threshold.
	if err := tracker.RecordFailure(ctx); err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}

	allowed, err := tracker.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if allowed {
		t.Error("ShouldAllowRequest() = true, want false after budget exhausted")
	}
}

func TestTracker_Integration_WindowExpiry(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := newTestTracker(redisClient, Config{Budget: 2, Window: 1 * time.Second})
	ctx := context.Background()

	if err := tracker.RecordFailure(ctx); err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}

	allowed, err := tracker.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if allowed {
		t.Error("ShouldAllowRequest() = true, want false inside exhausted window")
	}

	time.Sleep(2 * time.Second)

	allowed, err = tracker.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if !allowed {
		t.Error("ShouldAllowRequest() = false, want true after window expired")
	}
}

func TestTracker_Integration_UpdateFromHeaders(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := newTestTracker(redisClient, DefaultConfig())
	ctx := context.Background()

	tests := []struct {
		name            string
		remainHeader    string
		resetHeader     string
		expectedRemain  int
		expectedHealthy bool
	}{
		{"healthy update", "90", "60", 90, true},
		{"warning update", "15", "30", 15, false},
		{"critical update", "2", "45", 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			headers.Set(HeaderRemaining, tt.remainHeader)
			headers.Set(HeaderReset, tt.resetHeader)

			if err := tracker.UpdateFromHeaders(ctx, headers); err != nil {
				t.Fatalf("UpdateFromHeaders() error = %v", err)
			}

			state, err := tracker.GetState(ctx)
			if err != nil {
				t.Fatalf("GetState() error = %v", err)
			}
			if state.ErrorsRemaining != tt.expectedRemain {
				t.Errorf("ErrorsRemaining = %d, want %d", state.ErrorsRemaining, tt.expectedRemain)
			}
			if state.IsHealthy != tt.expectedHealthy {
				t.Errorf("IsHealthy = %v, want %v", state.IsHealthy, tt.expectedHealthy)
			}
		})
	}
}

func TestTracker_Integration_ShouldAllowRequest_Warning(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := newTestTracker(redisClient, Config{ThrottleDelay: 500 * time.Millisecond})
	ctx := context.Background()

	headers := http.Header{}
	headers.Set(HeaderRemaining, "15")
	headers.Set(HeaderReset, "60")
	if err := tracker.UpdateFromHeaders(ctx, headers); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	start := time.Now()
	allowed, err := tracker.ShouldAllowRequest(ctx)
	duration := time.Since(start)

	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if !allowed {
		t.Error("ShouldAllowRequest() = false, want true for warning state")
	}
	if duration < 400*time.Millisecond {
		t.Errorf("throttle duration = %v, want >= 500ms", duration)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := tracker.ShouldAllowRequest(cancelled); err == nil {
		t.Error("ShouldAllowRequest() with cancelled context should return an error while throttling")
	}
}

func TestTracker_Integration_Ping(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := newTestTracker(redisClient, DefaultConfig())
	if err := tracker.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

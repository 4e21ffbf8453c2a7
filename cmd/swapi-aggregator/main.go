package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/swapi-aggregator/pkg/client"
	"github.com/Sternrassler/swapi-aggregator/pkg/config"
	"github.com/Sternrassler/swapi-aggregator/pkg/logging"
	"github.com/Sternrassler/swapi-aggregator/pkg/pagination"
	"github.com/Sternrassler/swapi-aggregator/pkg/ratelimit"
	"github.com/Sternrassler/swapi-aggregator/pkg/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup(logging.DefaultConfig())
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Setup(cfg.Logging())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clientCfg := cfg.Client()

	var tracker *ratelimit.Tracker
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid REDIS_URL")
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		tracker = ratelimit.NewTracker(redisClient, logging.NewLogger("ratelimit"), ratelimit.DefaultConfig())
		if err := tracker.Ping(ctx); err != nil {
			log.Fatal().Err(err).Str("addr", opts.Addr).Msg("Failed to connect to Redis")
		}
		clientCfg.Budget = tracker
		log.Info().Str("addr", opts.Addr).Msg("Error budget enabled")
	}

	upstream, err := client.New(clientCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create upstream client")
	}

	aggregator := pagination.NewAggregator(upstream, cfg.Aggregator())
	svc := service.New(upstream, aggregator, cfg.Service())

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newRouter(svc, readiness(tracker)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("upstream", upstream.BaseURL()).
			Str("user_agent", cfg.UserAgent).
			Msg("Starting SWAPI aggregator")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

// readiness reports whether the error budget backend answers. Without a
// tracker the service is always ready.
func readiness(tracker *ratelimit.Tracker) func(ctx context.Context) error {
	if tracker == nil {
		return nil
	}
	return tracker.Ping
}

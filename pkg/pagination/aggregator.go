package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/swapi-aggregator/pkg/swapi"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrPageLimitExceeded is returned when a cursor-following aggregation is
// still told there is a next page after MaxPages pages.
var ErrPageLimitExceeded = errors.New("page limit exceeded")

// Prometheus metrics for aggregation runs.
var (
	aggregationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapi_aggregations_total",
		Help: "Total aggregation runs by collection, strategy and result",
	}, []string{"collection", "strategy", "result"})

	aggregationPages = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swapi_aggregation_pages",
		Help:    "Pages fetched per successful aggregation run",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
	}, []string{"strategy"})

	aggregationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swapi_aggregation_duration_seconds",
		Help:    "Aggregation run duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"strategy"})
)

// Config holds aggregator configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel page requests in fixed-range mode.
	MaxConcurrency int
	// Timeout per page fetch
	Timeout time.Duration
	// MaxPages caps cursor-following runs against upstreams that never report exhaustion.
	MaxPages int
}

// DefaultConfig returns safe default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
		Timeout:        15 * time.Second,
		MaxPages:       100,
	}
}

// PageFetcher fetches a single page of a collection.
// *client.Client implements it.
type PageFetcher interface {
	FetchPage(ctx context.Context, collection string, page int) (*swapi.Page, error)
}

// Strategy selects how the pages of a collection are discovered.
type Strategy string

const (
	// StrategyFixed fetches a predetermined number of pages concurrently.
	StrategyFixed Strategy = "fixed"
	// StrategyCursor follows next-page signals sequentially until exhaustion.
	StrategyCursor Strategy = "cursor"
)

// Plan is the fetch strategy configured for one collection type.
type Plan struct {
	Strategy Strategy
	// Pages is the page count for StrategyFixed; ignored for StrategyCursor.
	Pages int
}

// FixedPlan returns a plan fetching pages 1..pages.
func FixedPlan(pages int) Plan {
	return Plan{Strategy: StrategyFixed, Pages: pages}
}

// CursorPlan returns a plan following next-page signals.
func CursorPlan() Plan {
	return Plan{Strategy: StrategyCursor}
}

// Aggregator concatenates the pages of a collection into one ordered slice.
type Aggregator struct {
	fetcher PageFetcher
	config  Config
}

// NewAggregator creates a new aggregator
func NewAggregator(fetcher PageFetcher, config Config) *Aggregator {
	defaults := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxPages <= 0 {
		config.MaxPages = defaults.MaxPages
	}

	return &Aggregator{
		fetcher: fetcher,
		config:  config,
	}
}

// Aggregate runs the strategy named by plan.
func (a *Aggregator) Aggregate(ctx context.Context, collection string, plan Plan) ([]swapi.Entity, error) {
	switch plan.Strategy {
	case StrategyFixed:
		return a.FixedRange(ctx, collection, plan.Pages)
	case StrategyCursor:
		return a.FollowCursor(ctx, collection)
	default:
		return nil, fmt.Errorf("unknown aggregation strategy %q", plan.Strategy)
	}
}

// FixedRange fetches pages 1..pages concurrently and concatenates them in page
// order. If any page fails the whole run fails and no entities are returned;
// in-flight siblings are cancelled and their results discarded.
func (a *Aggregator) FixedRange(ctx context.Context, collection string, pages int) ([]swapi.Entity, error) {
	start := time.Now()
	logger := log.With().
		Str("run_id", uuid.NewString()).
		Str("collection", collection).
		Str("strategy", string(StrategyFixed)).
		Logger()

	if pages < 1 {
		return []swapi.Entity{}, nil
	}

	logger.Debug().Int("pages", pages).Msg("Starting parallel page fetch")

	results := make([][]swapi.Entity, pages)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.MaxConcurrency)

	for i := 0; i < pages; i++ {
		pageNum := i + 1
		g.Go(func() error {
			page, err := a.fetchPage(gctx, collection, pageNum)
			if err != nil {
				return err
			}
			results[pageNum-1] = page.Results
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Warn().
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("Aggregation failed")
		a.observe(collection, StrategyFixed, start, 0, err)
		return nil, fmt.Errorf("aggregate %s: %w", collection, err)
	}

	all := concat(results)

	logger.Info().
		Int("pages", pages).
		Int("entities", len(all)).
		Dur("duration", time.Since(start)).
		Msg("Aggregation complete")
	a.observe(collection, StrategyFixed, start, pages, nil)

	return all, nil
}

// FollowCursor fetches page 1, then each following page while the previous
// one reports a next page. Any failure aborts the run.
func (a *Aggregator) FollowCursor(ctx context.Context, collection string) ([]swapi.Entity, error) {
	start := time.Now()
	logger := log.With().
		Str("run_id", uuid.NewString()).
		Str("collection", collection).
		Str("strategy", string(StrategyCursor)).
		Logger()

	var results [][]swapi.Entity
	for pageNum := 1; ; pageNum++ {
		if pageNum > a.config.MaxPages {
			err := fmt.Errorf("%w: %s still reports a next page after %d pages",
				ErrPageLimitExceeded, collection, a.config.MaxPages)
			logger.Error().Err(err).Msg("Aggregation aborted")
			a.observe(collection, StrategyCursor, start, 0, err)
			return nil, fmt.Errorf("aggregate %s: %w", collection, err)
		}

		page, err := a.fetchPage(ctx, collection, pageNum)
		if err != nil {
			logger.Warn().
				Err(err).
				Int("page", pageNum).
				Dur("duration", time.Since(start)).
				Msg("Aggregation failed")
			a.observe(collection, StrategyCursor, start, 0, err)
			return nil, fmt.Errorf("aggregate %s: %w", collection, err)
		}
		results = append(results, page.Results)

		if !page.HasNext {
			break
		}
	}

	all := concat(results)

	logger.Info().
		Int("pages", len(results)).
		Int("entities", len(all)).
		Dur("duration", time.Since(start)).
		Msg("Aggregation complete")
	a.observe(collection, StrategyCursor, start, len(results), nil)

	return all, nil
}

// fetchPage fetches one page with the per-page timeout applied.
func (a *Aggregator) fetchPage(ctx context.Context, collection string, pageNum int) (*swapi.Page, error) {
	pageCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	page, err := a.fetcher.FetchPage(pageCtx, collection, pageNum)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, fmt.Errorf("fetch %s page %d: empty page", collection, pageNum)
	}
	return page, nil
}

func (a *Aggregator) observe(collection string, strategy Strategy, start time.Time, pages int, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	aggregationsTotal.WithLabelValues(collection, string(strategy), result).Inc()
	aggregationDuration.WithLabelValues(string(strategy)).Observe(time.Since(start).Seconds())
	if err == nil {
		aggregationPages.WithLabelValues(string(strategy)).Observe(float64(pages))
	}
}

func concat(pages [][]swapi.Entity) []swapi.Entity {
	total := 0
	for _, p := range pages {
		total += len(p)
	}
	all := make([]swapi.Entity, 0, total)
	for _, p := range pages {
		all = append(all, p...)
	}
	return all
}

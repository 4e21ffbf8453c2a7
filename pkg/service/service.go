// Package service composes the upstream client, aggregator, sorter, paginator
// and joiner into the views served over HTTP.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Sternrassler/swapi-aggregator/pkg/join"
	"github.com/Sternrassler/swapi-aggregator/pkg/logging"
	"github.com/Sternrassler/swapi-aggregator/pkg/natsort"
	"github.com/Sternrassler/swapi-aggregator/pkg/pagination"
	"github.com/Sternrassler/swapi-aggregator/pkg/swapi"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultCharactersRoute is the route embedded in character listing links.
const DefaultCharactersRoute = "/characters/"

// Upstream is the subset of *client.Client used by the service.
type Upstream interface {
	pagination.PageFetcher
	Search(ctx context.Context, collection, term string) ([]swapi.Entity, error)
}

// Config holds the fixed page counts used by fixed-range aggregations.
type Config struct {
	CharacterPages int
	PlanetPages    int
	PeoplePages    int
}

// DefaultConfig returns the page counts covering the upstream's data set.
func DefaultConfig() Config {
	return Config{
		CharacterPages: 5,
		PlanetPages:    7,
		PeoplePages:    7,
	}
}

// ViewModel is the payload of every view.
type ViewModel struct {
	Data  any              `json:"data"`
	Links pagination.Links `json:"links"`
}

// ListRequest carries the raw query arguments of a listing request.
type ListRequest struct {
	Route string
	Sort  string
	Page  string
}

// Service builds views on top of the upstream API.
type Service struct {
	upstream   Upstream
	aggregator *pagination.Aggregator
	config     Config
	logger     zerolog.Logger
}

// New creates a service. Zero page counts fall back to DefaultConfig.
func New(upstream Upstream, aggregator *pagination.Aggregator, cfg Config) *Service {
	defaults := DefaultConfig()
	if cfg.CharacterPages <= 0 {
		cfg.CharacterPages = defaults.CharacterPages
	}
	if cfg.PlanetPages <= 0 {
		cfg.PlanetPages = defaults.PlanetPages
	}
	if cfg.PeoplePages <= 0 {
		cfg.PeoplePages = defaults.PeoplePages
	}

	return &Service{
		upstream:   upstream,
		aggregator: aggregator,
		config:     cfg,
		logger:     logging.NewLogger("service"),
	}
}

// Characters aggregates the people collection, sorts it by req.Sort (name
// when empty) and returns the window selected by req.Page with its links.
func (s *Service) Characters(ctx context.Context, req ListRequest) (*ViewModel, error) {
	route := req.Route
	if route == "" {
		route = DefaultCharactersRoute
	}
	sortKey := strings.TrimSpace(req.Sort)
	if sortKey == "" {
		sortKey = natsort.DefaultKey
	}
	page := pagination.ParsePageParam(req.Page)

	people, err := s.aggregator.Aggregate(ctx, swapi.People, pagination.FixedPlan(s.config.CharacterPages))
	if err != nil {
		return nil, fmt.Errorf("characters: %w", err)
	}

	natsort.Sort(people, sortKey)
	window := pagination.Window(people, page)

	s.logger.Debug().
		Str("sort", sortKey).
		Str("page", page.String()).
		Int("total", len(people)).
		Int("returned", len(window)).
		Msg("Characters view built")

	return &ViewModel{
		Data:  window,
		Links: pagination.BuildLinks(route, sortKey, page),
	}, nil
}

// CharacterByName returns the people matching name. An empty name is an
// InputError and no upstream request is made.
func (s *Service) CharacterByName(ctx context.Context, name string) (*ViewModel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &InputError{Argument: "name", Err: ErrMissingName}
	}

	people, err := s.upstream.Search(ctx, swapi.People, name)
	if err != nil {
		return nil, fmt.Errorf("character %q: %w", name, err)
	}

	return &ViewModel{
		Data:  people,
		Links: pagination.NoLinks,
	}, nil
}

// PlanetResidents maps every planet's name to the names of its residents.
// Planets and people are aggregated concurrently with the given strategy;
// if either fails no mapping is returned.
func (s *Service) PlanetResidents(ctx context.Context, strategy pagination.Strategy) (*join.Mapping, error) {
	planetPlan, peoplePlan, err := s.residentPlans(strategy)
	if err != nil {
		return nil, err
	}

	var planets, people []swapi.Entity

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		planets, err = s.aggregator.Aggregate(gctx, swapi.Planets, planetPlan)
		return err
	})
	g.Go(func() error {
		var err error
		people, err = s.aggregator.Aggregate(gctx, swapi.People, peoplePlan)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("planet residents: %w", err)
	}

	mapping := join.Join(planets, people, join.DefaultParentKey, join.DefaultChildKey)

	s.logger.Debug().
		Str("strategy", string(strategy)).
		Int("planets", len(planets)).
		Int("people", len(people)).
		Int("entries", mapping.Len()).
		Msg("Residents mapping built")

	return mapping, nil
}

func (s *Service) residentPlans(strategy pagination.Strategy) (planets, people pagination.Plan, err error) {
	switch strategy {
	case pagination.StrategyFixed:
		return pagination.FixedPlan(s.config.PlanetPages), pagination.FixedPlan(s.config.PeoplePages), nil
	case pagination.StrategyCursor:
		return pagination.CursorPlan(), pagination.CursorPlan(), nil
	default:
		return pagination.Plan{}, pagination.Plan{}, fmt.Errorf("unknown aggregation strategy %q", strategy)
	}
}

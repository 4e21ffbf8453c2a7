// Package config loads the service configuration from the environment.
// A .env file in the working directory is read first when present.
package config

import (
	"fmt"
	"time"

	"github.com/Sternrassler/swapi-aggregator/pkg/client"
	"github.com/Sternrassler/swapi-aggregator/pkg/logging"
	"github.com/Sternrassler/swapi-aggregator/pkg/pagination"
	"github.com/Sternrassler/swapi-aggregator/pkg/service"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration parameters read from environment variables.
type Config struct {
	Port string `envconfig:"PORT" default:"3000"`

	SWAPIBaseURL string        `envconfig:"SWAPI_BASE_URL" default:"https://swapi.dev/api"`
	UserAgent    string        `envconfig:"USER_AGENT" default:"swapi-aggregator/1.0"`
	HTTPTimeout  time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	RateLimit    float64       `envconfig:"RATE_LIMIT" default:"20"`
	RateBurst    int           `envconfig:"RATE_BURST" default:"10"`

	// Optional. Enables the shared upstream error budget, e.g. redis://localhost:6379/0.
	RedisURL string `envconfig:"REDIS_URL"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`

	MaxConcurrency int           `envconfig:"MAX_CONCURRENCY" default:"10"`
	PageTimeout    time.Duration `envconfig:"PAGE_TIMEOUT" default:"15s"`
	MaxPages       int           `envconfig:"MAX_PAGES" default:"100"`

	CharacterPages int `envconfig:"CHARACTER_PAGES" default:"5"`
	PlanetPages    int `envconfig:"PLANET_PAGES" default:"7"`
	PeoplePages    int `envconfig:"PEOPLE_PAGES" default:"7"`
}

// Load reads .env (if any) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the configuration from the process environment only.
func FromEnv() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if c.SWAPIBaseURL == "" {
		return fmt.Errorf("SWAPI_BASE_URL must not be empty")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("RATE_LIMIT must not be negative (got %v)", c.RateLimit)
	}
	for name, v := range map[string]int{
		"MAX_CONCURRENCY": c.MaxConcurrency,
		"MAX_PAGES":       c.MaxPages,
		"CHARACTER_PAGES": c.CharacterPages,
		"PLANET_PAGES":    c.PlanetPages,
		"PEOPLE_PAGES":    c.PeoplePages,
	} {
		if v < 1 {
			return fmt.Errorf("%s must be at least 1 (got %d)", name, v)
		}
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.LogLevel)
	cfg.Pretty = c.LogPretty
	return cfg
}

// Client returns the upstream client configuration, without a budget.
func (c *Config) Client() client.Config {
	cfg := client.DefaultConfig(c.SWAPIBaseURL, c.UserAgent)
	cfg.Timeout = c.HTTPTimeout
	cfg.RateLimit = c.RateLimit
	cfg.RateBurst = c.RateBurst
	return cfg
}

// Aggregator returns the aggregator configuration.
func (c *Config) Aggregator() pagination.Config {
	return pagination.Config{
		MaxConcurrency: c.MaxConcurrency,
		Timeout:        c.PageTimeout,
		MaxPages:       c.MaxPages,
	}
}

// Service returns the page counts used by fixed-range views.
func (c *Config) Service() service.Config {
	return service.Config{
		CharacterPages: c.CharacterPages,
		PlanetPages:    c.PlanetPages,
		PeoplePages:    c.PeoplePages,
	}
}

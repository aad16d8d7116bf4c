package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pulsepoint/pulsepoint/pkg/domain"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
		BaseURL string        `yaml:"base_url" json:"base_url" jsonschema:"default=http://localhost:8080,description=Base URL used in generated RSS links"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Fetch struct {
		PerSourceTimeout time.Duration `yaml:"per_source_timeout" json:"per_source_timeout" jsonschema:"default=10s,description=Deadline per individual feed fetch"`
		GlobalDeadline   time.Duration `yaml:"global_deadline" json:"global_deadline" jsonschema:"default=15s,description=Ceiling for one aggregation cycle"`
		MaxPerSource     int           `yaml:"max_per_source" json:"max_per_source" jsonschema:"default=10,description=Maximum items taken from a single source"`
		UserAgent        string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=PulsePoint/1.0,description=User agent for feed requests"`
	} `yaml:"fetch" json:"fetch" jsonschema:"description=Feed fetching configuration"`

	Cache struct {
		TTL         time.Duration `yaml:"ttl" json:"ttl" jsonschema:"default=5m,description=Duration a cached result is considered fresh"`
		StaleWindow time.Duration `yaml:"stale_window" json:"stale_window" jsonschema:"default=30m,description=Duration from creation during which a stale result is still served while refreshing"`
	} `yaml:"cache" json:"cache" jsonschema:"description=Result cache configuration"`

	Limits struct {
		MaxTotalArticles int `yaml:"max_total_articles" json:"max_total_articles" jsonschema:"default=100,description=Cap on total articles per aggregation"`
		MaxTitleLength   int `yaml:"max_title_length" json:"max_title_length" jsonschema:"default=200,description=Maximum article title length"`
		MaxSummaryLength int `yaml:"max_summary_length" json:"max_summary_length" jsonschema:"default=300,description=Maximum article summary length"`
	} `yaml:"limits" json:"limits" jsonschema:"description=Article limits"`

	Feeds []Feed `yaml:"feeds" json:"feeds" jsonschema:"description=Registered feed sources in tie-break order"`
}

// Feed describes one registered feed source. Enabled defaults to true when
// omitted in the YAML.
type Feed struct {
	Name    string `yaml:"name" json:"name" jsonschema:"required,description=Display name of the source"`
	URL     string `yaml:"url" json:"url" jsonschema:"required,description=Feed URL"`
	Enabled *bool  `yaml:"enabled" json:"enabled,omitempty" jsonschema:"default=true,description=Include this source in fan-out"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// set defaults for server
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = "http://localhost:8080"
	}

	// set defaults for fetch
	if cfg.Fetch.PerSourceTimeout == 0 {
		cfg.Fetch.PerSourceTimeout = 10 * time.Second
	}
	if cfg.Fetch.GlobalDeadline == 0 {
		cfg.Fetch.GlobalDeadline = 15 * time.Second
	}
	if cfg.Fetch.MaxPerSource == 0 {
		cfg.Fetch.MaxPerSource = 10
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = "PulsePoint/1.0"
	}

	// set defaults for cache
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 5 * time.Minute
	}
	if cfg.Cache.StaleWindow == 0 {
		cfg.Cache.StaleWindow = 30 * time.Minute
	}

	// set defaults for limits
	if cfg.Limits.MaxTotalArticles == 0 {
		cfg.Limits.MaxTotalArticles = 100
	}
	if cfg.Limits.MaxTitleLength == 0 {
		cfg.Limits.MaxTitleLength = 200
	}
	if cfg.Limits.MaxSummaryLength == 0 {
		cfg.Limits.MaxSummaryLength = 300
	}

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	// validate server config
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	// validate fetch config
	if cfg.Fetch.PerSourceTimeout < time.Second {
		return fmt.Errorf("fetch.per_source_timeout must be at least 1 second")
	}
	if cfg.Fetch.GlobalDeadline < cfg.Fetch.PerSourceTimeout {
		return fmt.Errorf("fetch.global_deadline must not be shorter than fetch.per_source_timeout")
	}
	if cfg.Fetch.MaxPerSource < 1 {
		return fmt.Errorf("fetch.max_per_source must be at least 1")
	}

	// validate cache config, the stale window is measured from entry creation
	if cfg.Cache.StaleWindow <= cfg.Cache.TTL {
		return fmt.Errorf("cache.stale_window must be longer than cache.ttl")
	}

	// validate limits
	if cfg.Limits.MaxTotalArticles < 1 {
		return fmt.Errorf("limits.max_total_articles must be at least 1")
	}
	if cfg.Limits.MaxTitleLength < 10 || cfg.Limits.MaxSummaryLength < 10 {
		return fmt.Errorf("limits.max_title_length and limits.max_summary_length must be at least 10")
	}

	// validate feeds
	for i, f := range cfg.Feeds {
		if f.Name == "" {
			return fmt.Errorf("feeds[%d]: name is required", i)
		}
		u, err := url.Parse(f.URL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("feeds[%d] (%s): url must be an absolute http(s) URL", i, f.Name)
		}
	}

	return nil
}

// Sources converts the configured feeds to the domain registry, preserving
// the order that defines the sort tie-break.
func (c *Config) Sources() []domain.Source {
	sources := make([]domain.Source, 0, len(c.Feeds))
	for _, f := range c.Feeds {
		sources = append(sources, domain.Source{
			Name:    f.Name,
			URL:     f.URL,
			Enabled: f.Enabled == nil || *f.Enabled,
		})
	}
	return sources
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

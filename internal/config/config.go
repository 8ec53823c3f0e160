// Package config loads and validates the aggregator's configuration: a JSON
// file with environment-variable overrides, following the same
// file-then-env-override shape the project has always used, extended with
// the scraping, integration, enrichment, embedding, and resilience sections
// introduced by the recommendation pipeline.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the aggregator process.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Places     PlacesConfig     `json:"places"`
	Embedding  EmbeddingConfig  `json:"embedding"`
	Scrape     ScrapeConfig     `json:"scrape"`
	Sources    SourcesConfig    `json:"sources"`
	Integrator IntegratorConfig `json:"integrator"`
	Resilience ResilienceConfig `json:"resilience"`
}

// SourcesConfig holds per-source-adapter credentials. Each adapter is wired
// by cmd/aggregator only when its credential is non-empty, following the
// teacher's optional-integration pattern (cfg.APIs.Spotify.ClientID != "").
type SourcesConfig struct {
	EventbriteToken    string `json:"eventbrite_token"`
	ResidentAdvisorURL string `json:"resident_advisor_base_url"`
	TicketmasterAPIKey string `json:"ticketmaster_api_key"`
}

// ServerConfig holds HTTP server settings for the admin surface (§4.10).
type ServerConfig struct {
	Port         string `json:"port"`
	ReadTimeout  int    `json:"read_timeout_seconds"`
	WriteTimeout int    `json:"write_timeout_seconds"`
}

// DatabaseConfig configures the PostgreSQL + pgvector connection.
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// GetDSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// PlacesConfig configures the venue enricher's remote places provider.
type PlacesConfig struct {
	APIKey         string        `json:"api_key"`
	BaseURL        string        `json:"base_url"`
	Enabled        bool          `json:"enabled"`
	RefreshDays    int           `json:"refresh_days"`
	RateDelay      time.Duration `json:"rate_delay"`
	RefreshCronUTC string        `json:"refresh_cron_utc"` // "HH:MM", default "03:00"
}

// EmbeddingConfig configures the embedding provider and worker.
type EmbeddingConfig struct {
	APIKey     string        `json:"api_key"`
	Model      string        `json:"model"`
	Dimensions int           `json:"dimensions"`
	SubBatch   int           `json:"subbatch"`
	Sleep      time.Duration `json:"sleep"`
	BatchCap   int           `json:"batch_cap"` // K in §4.7
	Interval   time.Duration `json:"interval"`  // how often internal/app re-runs a full sweep
}

// ScrapeConfig configures the orchestrator's caps and run cadence.
// Concurrency does not limit how many adapters run in parallel (all of them
// run at once); cmd/aggregator multiplies it by CapPerSource to form the
// orchestrator's global record cap.
type ScrapeConfig struct {
	CapPerSource int           `json:"cap_per_source"`
	Concurrency  int           `json:"concurrency"`
	Interval     time.Duration `json:"interval"` // how often internal/app re-runs the orchestrator
}

// IntegratorConfig configures the event integrator's chunking and ticker.
type IntegratorConfig struct {
	ChunkSize int           `json:"chunk"`
	BatchSize int           `json:"batch"`
	Tick      time.Duration `json:"tick"`
}

// ResilienceConfig configures the shared retry/circuit-breaker/rate-limiter
// decorators used by the venue enricher (and reusable by any other
// outbound-API caller).
type ResilienceConfig struct {
	RetryMax       int           `json:"retry_max"`
	RetryWait      time.Duration `json:"retry_wait"`
	CBFailureRate  float64       `json:"cb_failure_rate"` // e.g. 0.5 for 50%
	CBWindow       int           `json:"cb_window"`
	CBMinCalls     int           `json:"cb_min_calls"`
	CBOpenWait     time.Duration `json:"cb_open_wait"`
	CBHalfOpenMax  int           `json:"cb_half_open_max"`
}

// Load reads configuration from file and applies environment-variable
// overrides using the pattern AGGREGATOR_SECTION_KEY. Unknown JSON fields
// are rejected.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
		if err == nil {
			dec := json.NewDecoder(strings.NewReader(string(data)))
			dec.DisallowUnknownFields()
			if err := dec.Decode(cfg); err != nil {
				return nil, fmt.Errorf("config: parse file: %w", err)
			}
		}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyDefaults(c *Config) {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	if c.Places.RefreshDays == 0 {
		c.Places.RefreshDays = 30
	}
	if c.Places.RateDelay == 0 {
		c.Places.RateDelay = 200 * time.Millisecond
	}
	if c.Places.RefreshCronUTC == "" {
		c.Places.RefreshCronUTC = "03:00"
	}

	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.SubBatch == 0 {
		c.Embedding.SubBatch = 20
	}
	if c.Embedding.Sleep == 0 {
		c.Embedding.Sleep = time.Second
	}
	if c.Embedding.BatchCap == 0 {
		c.Embedding.BatchCap = 1000
	}
	if c.Embedding.Interval == 0 {
		c.Embedding.Interval = 30 * time.Second
	}

	if c.Scrape.CapPerSource == 0 {
		c.Scrape.CapPerSource = 3000
	}
	if c.Scrape.Concurrency == 0 {
		c.Scrape.Concurrency = 4
	}
	if c.Scrape.Interval == 0 {
		c.Scrape.Interval = 15 * time.Minute
	}

	if c.Integrator.ChunkSize == 0 {
		c.Integrator.ChunkSize = 50
	}
	if c.Integrator.BatchSize == 0 {
		c.Integrator.BatchSize = 1000
	}
	if c.Integrator.Tick == 0 {
		c.Integrator.Tick = 10 * time.Second
	}

	if c.Resilience.RetryMax == 0 {
		c.Resilience.RetryMax = 3
	}
	if c.Resilience.RetryWait == 0 {
		c.Resilience.RetryWait = 1 * time.Second
	}
	if c.Resilience.CBFailureRate == 0 {
		c.Resilience.CBFailureRate = 0.5
	}
	if c.Resilience.CBWindow == 0 {
		c.Resilience.CBWindow = 100
	}
	if c.Resilience.CBMinCalls == 0 {
		c.Resilience.CBMinCalls = 10
	}
	if c.Resilience.CBOpenWait == 0 {
		c.Resilience.CBOpenWait = 30 * time.Second
	}
	if c.Resilience.CBHalfOpenMax == 0 {
		c.Resilience.CBHalfOpenMax = 10
	}
}

func applyEnvOverrides(c *Config) {
	str := func(env string, dst *string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	num := func(env string, dst *int) {
		if v := os.Getenv(env); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	boolean := func(env string, dst *bool) {
		if v := os.Getenv(env); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str("AGGREGATOR_SERVER_PORT", &c.Server.Port)

	str("AGGREGATOR_DATABASE_HOST", &c.Database.Host)
	str("AGGREGATOR_DATABASE_USER", &c.Database.User)
	str("AGGREGATOR_DATABASE_PASSWORD", &c.Database.Password)
	str("AGGREGATOR_DATABASE_NAME", &c.Database.Database)
	num("AGGREGATOR_DATABASE_PORT", &c.Database.Port)

	str("AGGREGATOR_PLACES_API_KEY", &c.Places.APIKey)
	str("AGGREGATOR_PLACES_BASE_URL", &c.Places.BaseURL)
	boolean("AGGREGATOR_PLACES_ENABLED", &c.Places.Enabled)

	str("AGGREGATOR_EMBEDDING_API_KEY", &c.Embedding.APIKey)
	str("AGGREGATOR_EMBEDDING_MODEL", &c.Embedding.Model)
}

// Validate checks that cfg contains a coherent set of values. It joins all
// failures into a single error rather than failing on the first.
func Validate(c *Config) error {
	var missing []string

	if c.Database.Host == "" {
		missing = append(missing, "database.host")
	}
	if c.Database.User == "" {
		missing = append(missing, "database.user")
	}
	if c.Database.Database == "" {
		missing = append(missing, "database.database")
	}
	if c.Embedding.Dimensions <= 0 {
		missing = append(missing, "embedding.dimensions")
	}
	if c.Places.Enabled && c.Places.APIKey == "" {
		missing = append(missing, "places.api_key (required when places.enabled)")
	}

	if len(missing) > 0 {
		return fmt.Errorf("config: missing or invalid: %s", strings.Join(missing, ", "))
	}
	return nil
}

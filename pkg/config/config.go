package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the attendee scraper
type Config struct {
	// Upstream event platform settings
	Swapcard SwapcardConfig `yaml:"swapcard" json:"swapcard"`

	// Pagination loop settings
	Scrape ScrapeConfig `yaml:"scrape" json:"scrape"`

	// Retry behavior around page fetches
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Detail enrichment settings
	Enrich EnrichConfig `yaml:"enrich" json:"enrich"`

	// Output artifact settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Local attendee store
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SwapcardConfig holds settings for the upstream GraphQL endpoint
type SwapcardConfig struct {
	Endpoint     string            `yaml:"endpoint" json:"endpoint"`
	EventID      string            `yaml:"event_id" json:"event_id"`
	EventSlug    string            `yaml:"event_slug" json:"event_slug"`
	ViewID       string            `yaml:"view_id" json:"view_id"`
	BearerToken  string            `yaml:"bearer_token" json:"bearer_token"`
	UserAgent    string            `yaml:"user_agent" json:"user_agent"`
	ExtraHeaders map[string]string `yaml:"extra_headers" json:"extra_headers"`
	PageSizeHint int               `yaml:"page_size_hint" json:"page_size_hint"`
}

// ScrapeConfig holds the pagination loop bounds and timing
type ScrapeConfig struct {
	MaxPages           int           `yaml:"max_pages" json:"max_pages"`
	EmptyPageTolerance int           `yaml:"empty_page_tolerance" json:"empty_page_tolerance"`
	CheckpointEvery    int           `yaml:"checkpoint_every" json:"checkpoint_every"`
	PageDelay          time.Duration `yaml:"page_delay" json:"page_delay"`
	RequestTimeout     time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// RetryConfig holds retry configuration for page fetches
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
}

// EnrichConfig holds settings for the per-attendee detail fetch pool
type EnrichConfig struct {
	Workers   int           `yaml:"workers" json:"workers"`
	TaskDelay time.Duration `yaml:"task_delay" json:"task_delay"`
}

// OutputConfig holds output artifact configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
	WriteLatest   bool   `yaml:"write_latest" json:"write_latest"`
}

// DatabaseConfig holds the local SQLite store configuration
type DatabaseConfig struct {
	Path string `yaml:"path" json:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Swapcard: SwapcardConfig{
			Endpoint:     "https://app.swapcard.com/api/graphql",
			UserAgent:    "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36",
			PageSizeHint: 30,
		},
		Scrape: ScrapeConfig{
			MaxPages:           200,
			EmptyPageTolerance: 3,
			CheckpointEvery:    10,
			PageDelay:          300 * time.Millisecond,
			RequestTimeout:     30 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    30 * time.Second,
		},
		Enrich: EnrichConfig{
			Workers:   5,
			TaskDelay: 500 * time.Millisecond,
		},
		Output: OutputConfig{
			BaseDirectory: "./data",
			WriteLatest:   true,
		},
		Database: DatabaseConfig{
			Path: "./data/attendees.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if token := os.Getenv("ALLIN_BEARER_TOKEN"); token != "" {
		c.Swapcard.BearerToken = token
	}
	if endpoint := os.Getenv("ALLIN_GRAPHQL_ENDPOINT"); endpoint != "" {
		c.Swapcard.Endpoint = endpoint
	}
	if eventID := os.Getenv("ALLIN_EVENT_ID"); eventID != "" {
		c.Swapcard.EventID = eventID
	}
	if eventSlug := os.Getenv("ALLIN_EVENT_SLUG"); eventSlug != "" {
		c.Swapcard.EventSlug = eventSlug
	}
	if viewID := os.Getenv("ALLIN_VIEW_ID"); viewID != "" {
		c.Swapcard.ViewID = viewID
	}
	if userAgent := os.Getenv("ALLIN_USER_AGENT"); userAgent != "" {
		c.Swapcard.UserAgent = userAgent
	}

	if maxPages := os.Getenv("ALLIN_MAX_PAGES"); maxPages != "" {
		var val int
		fmt.Sscanf(maxPages, "%d", &val)
		if val > 0 {
			c.Scrape.MaxPages = val
		}
	}
	if workers := os.Getenv("ALLIN_ENRICH_WORKERS"); workers != "" {
		var val int
		fmt.Sscanf(workers, "%d", &val)
		if val > 0 {
			c.Enrich.Workers = val
		}
	}

	if outputDir := os.Getenv("ALLIN_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if dbPath := os.Getenv("ALLIN_DATABASE_PATH"); dbPath != "" {
		c.Database.Path = dbPath
	}
	if logLevel := os.Getenv("ALLIN_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".allinattendees.yaml",
		".allinattendees.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "allinattendees", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "allinattendees", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".allinattendees.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Swapcard.Endpoint == "" {
		errs = append(errs, errors.New("GraphQL endpoint is required"))
	}

	if c.Scrape.MaxPages <= 0 {
		errs = append(errs, errors.New("max pages must be positive"))
	}
	if c.Scrape.EmptyPageTolerance <= 0 {
		errs = append(errs, errors.New("empty page tolerance must be positive"))
	}
	if c.Scrape.CheckpointEvery <= 0 {
		errs = append(errs, errors.New("checkpoint interval must be positive"))
	}
	if c.Scrape.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry attempts must be at least 1"))
	}

	if c.Enrich.Workers <= 0 {
		errs = append(errs, errors.New("enrichment workers must be positive"))
	}
	if c.Enrich.Workers > 20 {
		errs = append(errs, errors.New("enrichment workers should not exceed 20"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// ValidateUpstream checks the fields only commands that talk to the
// event platform need.
func (c *Config) ValidateUpstream() error {
	var errs []error

	if c.Swapcard.EventID == "" {
		errs = append(errs, errors.New("event ID is required"))
	}
	if c.Swapcard.ViewID == "" {
		errs = append(errs, errors.New("people view ID is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if token, ok := flags["bearer-token"].(string); ok && token != "" {
		c.Swapcard.BearerToken = token
	}
	if eventID, ok := flags["event-id"].(string); ok && eventID != "" {
		c.Swapcard.EventID = eventID
	}
	if viewID, ok := flags["view-id"].(string); ok && viewID != "" {
		c.Swapcard.ViewID = viewID
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if maxPages, ok := flags["max-pages"].(int); ok && maxPages > 0 {
		c.Scrape.MaxPages = maxPages
	}
	if workers, ok := flags["workers"].(int); ok && workers > 0 {
		c.Enrich.Workers = workers
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".allinattendees.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

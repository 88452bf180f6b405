package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the trade collector
type Config struct {
	// Market-data endpoint
	Kraken KrakenConfig `yaml:"kraken" json:"kraken"`

	// What to collect and where to put it
	Collection CollectionConfig `yaml:"collection" json:"collection"`

	// Retry policy for failed page fetches
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Request pacing
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Progress reporting
	Progress ProgressConfig `yaml:"progress" json:"progress"`

	// Optional database mirror
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// KrakenConfig holds endpoint-specific configuration
type KrakenConfig struct {
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
}

// CollectionConfig describes a single collection run
type CollectionConfig struct {
	Pair       string `yaml:"pair" json:"pair"`
	InputFile  string `yaml:"input_file" json:"input_file"`
	OutputFile string `yaml:"output_file" json:"output_file"`
	FileFormat string `yaml:"file_format" json:"file_format"`
	WithSide   bool   `yaml:"with_side" json:"with_side"`
	Resume     bool   `yaml:"resume" json:"resume"`
}

// RetryConfig holds the resilience policy configuration
type RetryConfig struct {
	// Strategy is "constant" or "exponential"
	Strategy string        `yaml:"strategy" json:"strategy"`
	Interval time.Duration `yaml:"interval" json:"interval"`
	// MaxInterval caps exponential backoff
	MaxInterval time.Duration `yaml:"max_interval" json:"max_interval"`
	Multiplier  float64       `yaml:"multiplier" json:"multiplier"`
	// MaxConsecutive is the number of retries in a row before giving up (0 means unlimited)
	MaxConsecutive int `yaml:"max_consecutive" json:"max_consecutive"`
}

// RateLimitConfig holds request pacing configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// ProgressConfig holds progress reporting preferences
type ProgressConfig struct {
	Verbose  bool `yaml:"verbose" json:"verbose"`
	Interval int  `yaml:"interval" json:"interval"`
}

// DatabaseConfig holds the optional Postgres mirror configuration
type DatabaseConfig struct {
	DSN       string `yaml:"dsn" json:"dsn"`
	BatchSize int    `yaml:"batch_size" json:"batch_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Kraken: KrakenConfig{
			BaseURL:   "https://api.kraken.com",
			Timeout:   30 * time.Second,
			UserAgent: "cryptodata/1.0",
		},
		Collection: CollectionConfig{
			Pair:       "XETHZEUR",
			FileFormat: "csv",
		},
		Retry: RetryConfig{
			Strategy:       "constant",
			Interval:       10 * time.Second,
			MaxInterval:    5 * time.Minute,
			Multiplier:     2.0,
			MaxConsecutive: 0,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 1,
			Burst:             1,
		},
		Progress: ProgressConfig{
			Verbose:  true,
			Interval: 10,
		},
		Database: DatabaseConfig{
			BatchSize: 1000,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   false,
		},
	}
}

// OutputPath returns the output file, defaulting to the pair name.
func (c *Config) OutputPath() string {
	if c.Collection.OutputFile != "" {
		return c.Collection.OutputFile
	}
	return c.Collection.Pair
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if baseURL := os.Getenv("CRYPTODATA_BASE_URL"); baseURL != "" {
		c.Kraken.BaseURL = baseURL
	}
	if userAgent := os.Getenv("CRYPTODATA_USER_AGENT"); userAgent != "" {
		c.Kraken.UserAgent = userAgent
	}
	if timeout := os.Getenv("CRYPTODATA_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid CRYPTODATA_TIMEOUT: %w", err)
		}
		c.Kraken.Timeout = d
	}

	if pair := os.Getenv("CRYPTODATA_PAIR"); pair != "" {
		c.Collection.Pair = pair
	}
	if output := os.Getenv("CRYPTODATA_OUTPUT_FILE"); output != "" {
		c.Collection.OutputFile = output
	}

	if interval := os.Getenv("CRYPTODATA_RETRY_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return fmt.Errorf("invalid CRYPTODATA_RETRY_INTERVAL: %w", err)
		}
		c.Retry.Interval = d
	}

	if rps := os.Getenv("CRYPTODATA_REQUESTS_PER_SECOND"); rps != "" {
		val, err := strconv.ParseFloat(rps, 64)
		if err != nil {
			return fmt.Errorf("invalid CRYPTODATA_REQUESTS_PER_SECOND: %w", err)
		}
		c.RateLimit.RequestsPerSecond = val
	}

	if verbose := os.Getenv("CRYPTODATA_VERBOSE"); verbose != "" {
		c.Progress.Verbose = strings.ToLower(verbose) == "true"
	}

	if dsn := os.Getenv("CRYPTODATA_DATABASE_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}

	if logLevel := os.Getenv("CRYPTODATA_LOG_LEVEL"); logLevel != "" {
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
	for _, loc := range ConfigLocations() {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// ConfigLocations lists the config file search path in order of precedence
func ConfigLocations() []string {
	home := os.Getenv("HOME")
	return []string{
		".cryptodata.yaml",
		".cryptodata.yml",
		filepath.Join(home, ".config", "cryptodata", "config.yaml"),
		filepath.Join(home, ".config", "cryptodata", "config.yml"),
		filepath.Join(home, ".cryptodata.yaml"),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Kraken.BaseURL == "" {
		errs = append(errs, errors.New("base URL is required"))
	}
	if c.Kraken.Timeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if strings.TrimSpace(c.Collection.Pair) == "" {
		errs = append(errs, errors.New("currency pair is required"))
	}
	if strings.ToLower(c.Collection.FileFormat) != "csv" {
		errs = append(errs, fmt.Errorf("unsupported file format %q", c.Collection.FileFormat))
	}

	switch strings.ToLower(c.Retry.Strategy) {
	case "constant":
	case "exponential":
		if c.Retry.Multiplier < 1 {
			errs = append(errs, errors.New("retry multiplier must be at least 1"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown retry strategy %q", c.Retry.Strategy))
	}
	if c.Retry.Interval < 0 {
		errs = append(errs, errors.New("retry interval cannot be negative"))
	}
	if c.Retry.MaxConsecutive < 0 {
		errs = append(errs, errors.New("max consecutive retries cannot be negative"))
	}

	if c.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("requests per second cannot be negative"))
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("burst must be positive"))
	}

	if c.Progress.Interval < 0 {
		errs = append(errs, errors.New("progress interval cannot be negative"))
	}

	if c.Database.DSN != "" && c.Database.BatchSize <= 0 {
		errs = append(errs, errors.New("database batch size must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
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

// MergeCommandLineFlags merges command line flags into the configuration.
// Only flags the user actually set should be present in the map.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if pair, ok := flags["pair"].(string); ok && pair != "" {
		c.Collection.Pair = pair
	}
	if input, ok := flags["input-file"].(string); ok {
		c.Collection.InputFile = input
	}
	if output, ok := flags["output-file"].(string); ok && output != "" {
		c.Collection.OutputFile = output
	}
	if format, ok := flags["file-format"].(string); ok && format != "" {
		c.Collection.FileFormat = format
	}
	if withSide, ok := flags["with-side"].(bool); ok {
		c.Collection.WithSide = withSide
	}
	if resume, ok := flags["resume"].(bool); ok {
		c.Collection.Resume = resume
	}
	if verbose, ok := flags["verbose"].(bool); ok {
		c.Progress.Verbose = verbose
	}
	if interval, ok := flags["progress-interval"].(int); ok {
		c.Progress.Interval = interval
	}
	if retryInterval, ok := flags["retry-interval"].(time.Duration); ok {
		c.Retry.Interval = retryInterval
	}
	if maxRetries, ok := flags["max-retries"].(int); ok {
		c.Retry.MaxConsecutive = maxRetries
	}
	if dsn, ok := flags["dsn"].(string); ok && dsn != "" {
		c.Database.DSN = dsn
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
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".cryptodata.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

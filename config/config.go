// Package config loads the service configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/liamcoop/carprice/admission"
	"gopkg.in/yaml.v3"
)

// Artifact sources
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
	SourceMemory   = "memory"
)

// Config is the root configuration
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Database  DatabaseConfig   `yaml:"database"`
	Artifacts ArtifactsConfig  `yaml:"artifacts"`
	Dataset   DatasetConfig    `yaml:"dataset"`
	Features  FeaturesConfig   `yaml:"features"`
	Admission AdmissionConfig  `yaml:"admission"`
	Bounds    admission.Bounds `yaml:"bounds"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Port            string `yaml:"port"`
	RequestTimeout  string `yaml:"request_timeout"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// DatabaseConfig configures PostgreSQL. An empty URL disables the database.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// ArtifactsConfig selects where the regressor and its columns come from
type ArtifactsConfig struct {
	Source            string `yaml:"source"` // file, postgres
	Dir               string `yaml:"dir"`
	ModelFile         string `yaml:"model_file"`
	ColumnsFile       string `yaml:"columns_file"`
	Name              string `yaml:"name"`
	StrictConsistency bool   `yaml:"strict_consistency"`
}

// DatasetConfig points at the optional reference listings
type DatasetConfig struct {
	Path string `yaml:"path"`
	// BoundsFromData replaces the configured year bounds with the dataset's
	// year range when the dataset loads
	BoundsFromData bool `yaml:"bounds_from_data"`
}

// FeaturesConfig configures encoding
type FeaturesConfig struct {
	// PassThroughUnknown reproduces the legacy behavior where unknown
	// categories were silently encoded as all-zero indicators
	PassThroughUnknown bool `yaml:"pass_through_unknown"`
}

// AdmissionConfig configures the input guards
type AdmissionConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Store      string `yaml:"store"` // memory, postgres
	CacheTTL   string `yaml:"cache_ttl"`
	SeedBounds bool   `yaml:"seed_bounds"`
}

// LoggingConfig configures internal/logger
type LoggingConfig struct {
	Level           string `yaml:"level"`
	ErrorSampleRate int    `yaml:"error_sample_rate"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			RequestTimeout:  "60s",
			ReadTimeout:     "15s",
			WriteTimeout:    "15s",
			ShutdownTimeout: "30s",
		},
		Database: DatabaseConfig{
			MaxOpenConns: 10,
		},
		Artifacts: ArtifactsConfig{
			Source:            SourceFile,
			Dir:               "models",
			ModelFile:         "model.json",
			ColumnsFile:       "columns.json",
			Name:              "car-price",
			StrictConsistency: true,
		},
		Admission: AdmissionConfig{
			Enabled:    true,
			Store:      SourceMemory,
			CacheTTL:   "0s",
			SeedBounds: true,
		},
		Bounds: admission.Bounds{
			MinYear: 1983,
			MaxYear: time.Now().Year(),
			MaxKm:   500000,
		},
		Logging: LoggingConfig{
			Level:           "INFO",
			ErrorSampleRate: 1,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		c.Database.URL = url
	}
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Port = port
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if rate := os.Getenv("ERROR_SAMPLE_RATE"); rate != "" {
		if n, err := strconv.Atoi(rate); err == nil && n > 0 {
			c.Logging.ErrorSampleRate = n
		}
	}
	if dir := os.Getenv("ARTIFACT_DIR"); dir != "" {
		c.Artifacts.Dir = dir
	}
	if source := os.Getenv("ARTIFACT_SOURCE"); source != "" {
		c.Artifacts.Source = strings.ToLower(source)
	}
	if path := os.Getenv("DATASET_PATH"); path != "" {
		c.Dataset.Path = path
	}
}

// Validate checks the configuration for contradictions
func (c *Config) Validate() error {
	switch c.Artifacts.Source {
	case SourceFile:
		if c.Artifacts.Dir == "" {
			return fmt.Errorf("artifacts.dir is required for the file source")
		}
	case SourcePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("artifacts.source is postgres but no database url is set (DATABASE_URL)")
		}
	default:
		return fmt.Errorf("invalid artifacts.source: %q (valid: %s, %s)", c.Artifacts.Source, SourceFile, SourcePostgres)
	}
	if c.Artifacts.Name == "" {
		return fmt.Errorf("artifacts.name is required")
	}

	switch c.Admission.Store {
	case SourceMemory:
	case SourcePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("admission.store is postgres but no database url is set (DATABASE_URL)")
		}
	default:
		return fmt.Errorf("invalid admission.store: %q (valid: %s, %s)", c.Admission.Store, SourceMemory, SourcePostgres)
	}

	if err := c.Bounds.Validate(); err != nil {
		return fmt.Errorf("bounds: %w", err)
	}

	for name, value := range map[string]string{
		"server.request_timeout":  c.Server.RequestTimeout,
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"admission.cache_ttl":     c.Admission.CacheTTL,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
	}

	return nil
}

// duration parses value, falling back to def when it is empty or invalid
func duration(value string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}

// GetRequestTimeout returns the per-request handler timeout
func (c *Config) GetRequestTimeout() time.Duration {
	return duration(c.Server.RequestTimeout, 60*time.Second)
}

// GetReadTimeout returns the HTTP read timeout
func (c *Config) GetReadTimeout() time.Duration {
	return duration(c.Server.ReadTimeout, 15*time.Second)
}

// GetWriteTimeout returns the HTTP write timeout
func (c *Config) GetWriteTimeout() time.Duration {
	return duration(c.Server.WriteTimeout, 15*time.Second)
}

// GetShutdownTimeout returns the graceful shutdown deadline
func (c *Config) GetShutdownTimeout() time.Duration {
	return duration(c.Server.ShutdownTimeout, 30*time.Second)
}

// GetCacheTTL returns the admission rules cache TTL
func (c *Config) GetCacheTTL() time.Duration {
	return duration(c.Admission.CacheTTL, 0)
}

// UsesDatabase reports whether any component needs PostgreSQL
func (c *Config) UsesDatabase() bool {
	return c.Artifacts.Source == SourcePostgres || c.Admission.Store == SourcePostgres
}

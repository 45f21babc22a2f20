// Package config handles loading and managing silverlake configuration.
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

// Config is the top-level configuration for silverlake.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Staging StagingConfig `yaml:"staging"`
	Load    LoadConfig    `yaml:"load"`
	Lease   LeaseConfig   `yaml:"lease"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Source  SourceConfig  `yaml:"source"`
}

// StoreConfig selects the warehouse database.
type StoreConfig struct {
	Driver       string `yaml:"driver"` // postgres or sqlite
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
}

// StagingConfig locates the staging directory and its side directories.
// Side directory names are relative to Dir.
type StagingConfig struct {
	Dir           string `yaml:"dir"`
	QuarantineDir string `yaml:"quarantine_dir"`
	FailedDir     string `yaml:"failed_dir"`
	RejectsDir    string `yaml:"rejects_dir"`
}

// LoadConfig controls batching and failure handling.
type LoadConfig struct {
	BatchSize       int  `yaml:"batch_size"`
	LookupChunkSize int  `yaml:"lookup_chunk_size"`
	ReadChunkSize   int  `yaml:"read_chunk_size"` // sales rows handed to the loader at once
	FailFast        bool `yaml:"fail_fast"`
	SkipLoadedFiles bool `yaml:"skip_loaded_files"`
	WriteRejects    bool `yaml:"write_rejects"`
	BuildIndexes    bool `yaml:"build_indexes"`
}

// LeaseConfig controls the single-writer run lease.
type LeaseConfig struct {
	Name string        `yaml:"name"`
	TTL  time.Duration `yaml:"ttl"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
	File   string `yaml:"file"`
}

// MetricsConfig controls metric export. Textfile is a node-exporter
// textfile collector path written at the end of each run.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// SourceConfig describes where `fetch` pulls extracts from.
type SourceConfig struct {
	URI       string `yaml:"uri"` // s3://bucket/prefix, gs://bucket/prefix or a directory
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:       "sqlite",
			DSN:          "file:silverlake.db",
			MaxOpenConns: 4,
			AutoMigrate:  true,
		},
		Staging: StagingConfig{
			Dir:           "staging",
			QuarantineDir: "unknown_files",
			FailedDir:     "failed_files",
			RejectsDir:    "rejected",
		},
		Load: LoadConfig{
			BatchSize:       1000,
			LookupChunkSize: 500,
			ReadChunkSize:   10000,
			WriteRejects:    true,
			BuildIndexes:    true,
		},
		Lease: LeaseConfig{
			Name: "silverlake-load",
			TTL:  2 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a config file from the given path.
// If the file does not exist, it returns the default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// LoadEnv loads a .env file into the process environment when present.
// Variables already set are not overridden.
func LoadEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides file values with SILVERLAKE_* environment variables.
// DATABASE_URL is honored as a fallback DSN.
func (c *Config) ApplyEnv() {
	if v := firstEnv("SILVERLAKE_DATABASE_URL", "DATABASE_URL"); v != "" {
		c.Store.DSN = v
		if strings.HasPrefix(v, "postgres://") || strings.HasPrefix(v, "postgresql://") {
			c.Store.Driver = "postgres"
		}
	}
	if v := os.Getenv("SILVERLAKE_DB_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("SILVERLAKE_STAGING_DIR"); v != "" {
		c.Staging.Dir = v
	}
	if v := os.Getenv("SILVERLAKE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SILVERLAKE_SOURCE_URI"); v != "" {
		c.Source.URI = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Store.Driver) {
	case "postgres", "postgresql", "pg", "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("store.driver: unsupported %q", c.Store.Driver))
	}
	if c.Store.DSN == "" {
		errs = append(errs, errors.New("store.dsn: required"))
	}
	if c.Staging.Dir == "" {
		errs = append(errs, errors.New("staging.dir: required"))
	}
	for _, d := range []struct{ name, dir string }{
		{"staging.quarantine_dir", c.Staging.QuarantineDir},
		{"staging.failed_dir", c.Staging.FailedDir},
		{"staging.rejects_dir", c.Staging.RejectsDir},
	} {
		if d.dir == "" || filepath.IsAbs(d.dir) || strings.Contains(d.dir, "..") {
			errs = append(errs, fmt.Errorf("%s: must be a relative subdirectory name, got %q", d.name, d.dir))
		}
	}
	if c.Load.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("load.batch_size: must be positive, got %d", c.Load.BatchSize))
	}
	if c.Load.LookupChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("load.lookup_chunk_size: must be positive, got %d", c.Load.LookupChunkSize))
	}
	if c.Load.ReadChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("load.read_chunk_size: must be positive, got %d", c.Load.ReadChunkSize))
	}
	if c.Lease.Name == "" {
		errs = append(errs, errors.New("lease.name: required"))
	}
	if c.Lease.TTL <= 0 {
		errs = append(errs, fmt.Errorf("lease.ttl: must be positive, got %s", c.Lease.TTL))
	}
	return errors.Join(errs...)
}

// FindConfigFile looks for .silverlake/config.yaml in the given directory
// and its parents, returning the path if found, or "" if not.
func FindConfigFile(dir string) string {
	for {
		candidate := filepath.Join(dir, ".silverlake", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix shared by every environment override.
const EnvPrefix = "LCAMATCH_"

// Defaults applied by New before any file or environment override.
const (
	DefaultMatchThreshold     = 0.3
	DefaultAutoMatchThreshold = 0.9
	DefaultMatchLimit         = 20
	DefaultAutoSyncWait       = 30 * time.Second
	DefaultRefreshTTL         = 24 * time.Hour
	DefaultRequestTimeout     = 30 * time.Second
	DefaultBatchSize          = 500
	DefaultCacheTTLSeconds    = 3600
	DefaultServerAddr         = ":8080"
)

// ErrInvalidConfig wraps every validation failure reported by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete lcamatch configuration.
//
// YAML Location: ~/.lcamatch/config.yaml
type Config struct {
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
	Database    DatabaseConfig    `yaml:"database" json:"database"`
	Cache       CacheConfig       `yaml:"cache" json:"cache"`
	Sources     SourcesConfig     `yaml:"sources" json:"sources"`
	Matching    MatchingConfig    `yaml:"matching" json:"matching"`
	Calculation CalculationConfig `yaml:"calculation" json:"calculation"`
	Server      ServerConfig      `yaml:"server" json:"server"`
}

// LoggingConfig controls log level, format and destination.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	// Format is "json" or "console". Empty picks console on a terminal.
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
}

// DatabaseConfig selects the gorm dialect and its DSN.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

// CacheConfig controls the search result cache. When RedisAddr is empty an
// in-process cache is used.
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	TTLSeconds int    `yaml:"ttl_seconds" json:"ttl_seconds"`
	RedisAddr  string `yaml:"redis_addr,omitempty" json:"redis_addr,omitempty"`
}

// MatchingConfig tunes candidate search and auto-matching.
type MatchingConfig struct {
	Threshold           float64 `yaml:"threshold" json:"threshold"`
	Limit               int     `yaml:"limit" json:"limit"`
	AutoMatchThreshold  float64 `yaml:"auto_match_threshold" json:"auto_match_threshold"`
	AutoSyncWaitSeconds int     `yaml:"auto_sync_wait_seconds" json:"auto_sync_wait_seconds"`
}

// AutoSyncWait returns the bounded wait for a first-search sync.
func (m MatchingConfig) AutoSyncWait() time.Duration {
	if m.AutoSyncWaitSeconds <= 0 {
		return DefaultAutoSyncWait
	}
	return time.Duration(m.AutoSyncWaitSeconds) * time.Second
}

// CalculationConfig tunes the recalculation pass.
type CalculationConfig struct {
	BatchSize int `yaml:"batch_size" json:"batch_size"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// New returns the default configuration merged with ~/.lcamatch/config.yaml
// (when present) and LCAMATCH_* environment overrides.
func New() *Config {
	cfg := Defaults()

	if path := ConfigFilePath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			_ = ShallowMergeYAML(cfg, path)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)
	return cfg
}

// Defaults returns a configuration holding only built-in defaults.
func Defaults() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info"},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(BaseDir(), "lcamatch.db"),
		},
		Cache: CacheConfig{Enabled: true, TTLSeconds: DefaultCacheTTLSeconds},
		Sources: SourcesConfig{
			RefreshTTLHours:       int(DefaultRefreshTTL / time.Hour),
			RequestTimeoutSeconds: int(DefaultRequestTimeout / time.Second),
			KBOB: SourceConfig{
				Enabled:  true,
				Priority: 30,
				BaseURL:  DefaultKBOBBaseURL,
			},
			Oekobaudat: SourceConfig{
				Enabled:     true,
				Priority:    20,
				BaseURL:     DefaultOekobaudatBaseURL,
				DatastockID: DefaultOekobaudatDatastock,
			},
			OpenEPD: SourceConfig{
				Enabled:  true,
				Priority: 10,
				BaseURL:  DefaultOpenEPDBaseURL,
			},
		},
		Matching: MatchingConfig{
			Threshold:           DefaultMatchThreshold,
			Limit:               DefaultMatchLimit,
			AutoMatchThreshold:  DefaultAutoMatchThreshold,
			AutoSyncWaitSeconds: int(DefaultAutoSyncWait / time.Second),
		},
		Calculation: CalculationConfig{BatchSize: DefaultBatchSize},
		Server:      ServerConfig{Addr: DefaultServerAddr},
	}
}

// BaseDir returns ~/.lcamatch, or LCAMATCH_HOME when set.
func BaseDir() string {
	if dir := os.Getenv(EnvPrefix + "HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lcamatch"
	}
	return filepath.Join(home, ".lcamatch")
}

// ConfigFilePath returns the path of the global config file.
func ConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		return p
	}
	return filepath.Join(BaseDir(), "config.yaml")
}

// Load reads a YAML config file over the defaults, then applies env overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if err := ShallowMergeYAML(cfg, path); err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// ApplyEnv applies LCAMATCH_* overrides and the bare credential variables
// KBOB_API_KEY and OPENEPD_API_KEY.
//
//nolint:gocognit // flat list of overrides
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
	float := func(name string, dst *float64) {
		if v, ok := lookup(EnvPrefix + name); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				*dst = f
			}
		}
	}

	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("LOG_FILE", &c.Logging.File)
	str("DB_DRIVER", &c.Database.Driver)
	str("DB_DSN", &c.Database.DSN)
	str("REDIS_ADDR", &c.Cache.RedisAddr)
	integer("CACHE_TTL_SECONDS", &c.Cache.TTLSeconds)
	if v, ok := lookup(EnvPrefix + "CACHE_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Cache.Enabled = b
		}
	}
	str("KBOB_BASE_URL", &c.Sources.KBOB.BaseURL)
	str("OEKOBAUDAT_BASE_URL", &c.Sources.Oekobaudat.BaseURL)
	str("OEKOBAUDAT_DATASTOCK_ID", &c.Sources.Oekobaudat.DatastockID)
	str("OPENEPD_BASE_URL", &c.Sources.OpenEPD.BaseURL)
	integer("REFRESH_TTL_HOURS", &c.Sources.RefreshTTLHours)
	integer("REQUEST_TIMEOUT_SECONDS", &c.Sources.RequestTimeoutSeconds)
	float("MATCH_THRESHOLD", &c.Matching.Threshold)
	integer("MATCH_LIMIT", &c.Matching.Limit)
	float("AUTO_MATCH_THRESHOLD", &c.Matching.AutoMatchThreshold)
	integer("AUTO_SYNC_WAIT_SECONDS", &c.Matching.AutoSyncWaitSeconds)
	integer("BATCH_SIZE", &c.Calculation.BatchSize)
	str("SERVER_ADDR", &c.Server.Addr)

	// Credentials are read from the environment only.
	c.Sources.KBOB.APIKey = firstEnv(lookup, EnvPrefix+"KBOB_API_KEY", "KBOB_API_KEY")
	c.Sources.OpenEPD.APIKey = firstEnv(lookup, EnvPrefix+"OPENEPD_API_KEY", "OPENEPD_API_KEY")
}

func firstEnv(lookup func(string) (string, bool), names ...string) string {
	for _, n := range names {
		if v, ok := lookup(n); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Matching.Threshold < 0 || c.Matching.Threshold > 1 {
		return fmt.Errorf("%w: matching.threshold must be within [0,1], got %g",
			ErrInvalidConfig, c.Matching.Threshold)
	}
	if c.Matching.AutoMatchThreshold < 0 || c.Matching.AutoMatchThreshold > 1 {
		return fmt.Errorf("%w: matching.auto_match_threshold must be within [0,1], got %g",
			ErrInvalidConfig, c.Matching.AutoMatchThreshold)
	}
	if c.Matching.Limit < 1 {
		return fmt.Errorf("%w: matching.limit must be >= 1, got %d", ErrInvalidConfig, c.Matching.Limit)
	}
	if c.Calculation.BatchSize < 1 || c.Calculation.BatchSize > 1000 {
		return fmt.Errorf("%w: calculation.batch_size must be between 1 and 1000, got %d",
			ErrInvalidConfig, c.Calculation.BatchSize)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: database.driver must be sqlite or postgres, got %q",
			ErrInvalidConfig, c.Database.Driver)
	}
	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("%w: cache.ttl_seconds must be >= 0", ErrInvalidConfig)
	}
	return nil
}

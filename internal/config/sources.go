package config

import "time"

// Upstream endpoints used when no override is configured.
const (
	DefaultKBOBBaseURL         = "https://www.lcadata.ch"
	DefaultOekobaudatBaseURL   = "https://oekobaudat.de/OEKOBAU.DAT/resource"
	DefaultOekobaudatDatastock = "cd2bda71-760b-4fcc-8a0b-3877c10000a8"
	DefaultOpenEPDBaseURL      = "https://openepd.buildingtransparency.org"
)

// SourcesConfig holds per-source settings plus shared refresh and timeout
// values.
//
// Example:
//
//	sources:
//	  refresh_ttl_hours: 24
//	  kbob:
//	    priority: 30
//	  oekobaudat:
//	    datastock_id: cd2bda71-760b-4fcc-8a0b-3877c10000a8
type SourcesConfig struct {
	KBOB       SourceConfig `yaml:"kbob" json:"kbob"`
	Oekobaudat SourceConfig `yaml:"oekobaudat" json:"oekobaudat"`
	OpenEPD    SourceConfig `yaml:"openepd" json:"openepd"`

	// RefreshTTLHours is the cache age after which a source needs a sync.
	RefreshTTLHours int `yaml:"refresh_ttl_hours" json:"refresh_ttl_hours"`

	// RequestTimeoutSeconds bounds every upstream HTTP call.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" json:"request_timeout_seconds"`
}

// SourceConfig configures one upstream dataset.
type SourceConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Priority orders merged search results, highest first.
	Priority int `yaml:"priority,omitempty" json:"priority,omitempty"`

	BaseURL     string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	DatastockID string `yaml:"datastock_id,omitempty" json:"datastock_id,omitempty"`

	// APIKey is never read from or written to YAML.
	APIKey string `yaml:"-" json:"-"`
}

// RefreshTTL returns the configured refresh TTL.
func (s SourcesConfig) RefreshTTL() time.Duration {
	if s.RefreshTTLHours <= 0 {
		return DefaultRefreshTTL
	}
	return time.Duration(s.RefreshTTLHours) * time.Hour
}

// RequestTimeout returns the configured upstream request timeout.
func (s SourcesConfig) RequestTimeout() time.Duration {
	if s.RequestTimeoutSeconds <= 0 {
		return DefaultRequestTimeout
	}
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

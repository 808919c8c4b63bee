// Package material defines the source-agnostic material record shared by
// every LCA source adapter.
package material

import (
	"strings"
	"time"

	"github.com/rshade/lcamatch/internal/indicator"
)

// Source identifies an external LCA dataset.
type Source string

// Known sources.
const (
	SourceKBOB       Source = "kbob"
	SourceOekobaudat Source = "okobaudat"
	SourceOpenEPD    Source = "openepd"
)

// DefaultCategory is used when an upstream record carries no category.
const DefaultCategory = "Uncategorized"

//nolint:gochecknoglobals // closed set of id prefixes
var prefixes = map[Source]string{
	SourceKBOB:       "KBOB_",
	SourceOekobaudat: "OKOBAUDAT_",
	SourceOpenEPD:    "OPENEPD_",
}

// Sources returns the known sources in their canonical order.
func Sources() []Source {
	return []Source{SourceKBOB, SourceOekobaudat, SourceOpenEPD}
}

// ParseSource resolves s case-insensitively. "oekobaudat" and "ökobaudat"
// are accepted as spellings of SourceOekobaudat.
func ParseSource(s string) (Source, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kbob":
		return SourceKBOB, true
	case "okobaudat", "oekobaudat", "ökobaudat":
		return SourceOekobaudat, true
	case "openepd", "ec3":
		return SourceOpenEPD, true
	default:
		return "", false
	}
}

// Prefix returns the id prefix of s, or "" for an unknown source.
func (s Source) Prefix() string { return prefixes[s] }

// Valid reports whether s is a known source.
func (s Source) Valid() bool { return prefixes[s] != "" }

// Metadata describes where and when a record was obtained.
type Metadata struct {
	// Version is the source dataset version or standard, e.g. "EN 15804+A2".
	Version string `json:"version,omitempty"`
	// Scope is the life-cycle module coverage, e.g. "A1-A3".
	Scope      string     `json:"scope,omitempty"`
	SyncedAt   time.Time  `json:"syncedAt"`
	ValidFrom  *time.Time `json:"validFrom,omitempty"`
	ValidUntil *time.Time `json:"validUntil,omitempty"`
	URL        string     `json:"url,omitempty"`
}

// NormalizedMaterial is the canonical cross-source record. Indicator
// factors are per kilogram of material.
type NormalizedMaterial struct {
	ID             string            `json:"id"`
	Source         Source            `json:"source"`
	SourceID       string            `json:"sourceId"`
	Name           string            `json:"name"`
	LocalizedNames map[string]string `json:"localizedNames,omitempty"`
	Category       string            `json:"category"`
	// Density in kg/m³; nil when the source does not provide one.
	Density      *float64         `json:"density"`
	DeclaredUnit string           `json:"declaredUnit,omitempty"`
	Indicators   indicator.Values `json:"indicators"`
	Metadata     Metadata         `json:"metadata"`
}

// HasDensity reports whether the record carries a positive density.
func (m *NormalizedMaterial) HasDensity() bool {
	return m != nil && m.Density != nil && *m.Density > 0
}

// Factor returns the per-kg factor for key and whether it is known.
func (m *NormalizedMaterial) Factor(key indicator.Key) (float64, bool) {
	if m == nil {
		return 0, false
	}
	return m.Indicators.Get(key)
}

// Normalize fills derived fields: the prefixed ID and the default category.
func (m *NormalizedMaterial) Normalize() {
	if m.ID == "" && m.Source.Valid() && m.SourceID != "" {
		m.ID = MakeID(m.Source, m.SourceID)
	}
	if strings.TrimSpace(m.Category) == "" {
		m.Category = DefaultCategory
	}
	if m.Indicators == nil {
		m.Indicators = indicator.Values{}
	}
}

// Float returns a pointer to f.
func Float(f float64) *float64 { return &f }

// SearchOptions narrows a search.
type SearchOptions struct {
	Limit    int
	Category string
}

// SyncResult reports the outcome of one source sync.
type SyncResult struct {
	Source  Source `json:"source"`
	Added   int    `json:"added"`
	Updated int    `json:"updated"`
	// Unchanged counts upstream records that matched the stored copy.
	Unchanged int `json:"unchanged"`
	// Skipped counts upstream records failing the validity predicate.
	Skipped int `json:"skipped"`
	// Removed counts stored records no longer present upstream.
	Removed int `json:"removed"`
	Errors  int `json:"errors"`
}

// Synced returns the number of records written.
func (r SyncResult) Synced() int { return r.Added + r.Updated }

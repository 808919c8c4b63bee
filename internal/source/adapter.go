package source

import (
	"context"
	"time"

	"github.com/rshade/lcamatch/internal/indicator"
	"github.com/rshade/lcamatch/internal/material"
	"github.com/rshade/lcamatch/internal/store"
)

// MinQueryLength is the minimum trimmed query length accepted by Search.
const MinQueryLength = 2

// SearchStyle tells the matcher which terms to send to a source.
type SearchStyle int

const (
	// SearchSubstring sources match the cleaned query as free text.
	SearchSubstring SearchStyle = iota
	// SearchKeyword sources match single keywords and are queried with
	// preprocess.ExtractKeywords terms, most specific first.
	SearchKeyword
)

// String returns the string representation of a SearchStyle.
func (s SearchStyle) String() string {
	if s == SearchKeyword {
		return "keyword"
	}
	return "substring"
}

// Info is static metadata about a source.
type Info struct {
	ID          material.Source `json:"id"`
	Name        string          `json:"name"`
	Region      string          `json:"region"`
	CountryFlag string          `json:"countryFlag"`
	URL         string          `json:"url"`
	Description string          `json:"description"`
	Indicators  []indicator.Key `json:"indicators"`
	// RequiredIndicators must all be present for a record to be valid.
	RequiredIndicators []indicator.Key `json:"requiredIndicators"`
	RequiresAuth       bool            `json:"requiresAuth"`
	IsConfigured       bool            `json:"isConfigured"`
	Priority           int             `json:"priority"`
	SearchStyle        SearchStyle     `json:"-"`
}

// Adapter is one external LCA dataset.
type Adapter interface {
	Info() Info

	// Search returns stored materials whose name or category contain query,
	// best first. Queries shorter than MinQueryLength are rejected.
	Search(ctx context.Context, query string, opts material.SearchOptions) ([]material.NormalizedMaterial, error)

	// GetByID returns the material with the prefixed id. Ids of another
	// source or unknown ids report ok=false without an error.
	GetByID(ctx context.Context, id string) (m *material.NormalizedMaterial, ok bool, err error)

	// GetAll returns every stored material that passes the source validity
	// predicate.
	GetAll(ctx context.Context) ([]material.NormalizedMaterial, error)

	// Sync pulls the dataset from the origin and upserts it. Running it
	// twice over unchanged upstream data writes nothing the second time.
	Sync(ctx context.Context) (material.SyncResult, error)

	AvailableIndicators() []indicator.Key

	// NeedsRefresh reports whether the source was never synced or its last
	// sync is older than the refresh TTL.
	NeedsRefresh(ctx context.Context) (bool, error)

	LastSyncTime(ctx context.Context) (t time.Time, ok bool, err error)
}

// MaterialStore is the persistence the adapters share.
type MaterialStore interface {
	Upsert(ctx context.Context, source material.Source, items []material.NormalizedMaterial) (store.UpsertResult, error)
	Prune(ctx context.Context, source material.Source, keep []string) (int, error)
	Get(ctx context.Context, id string) (*material.NormalizedMaterial, error)
	Search(ctx context.Context, source material.Source, query string, opts material.SearchOptions) ([]material.NormalizedMaterial, error)
	All(ctx context.Context, source material.Source) ([]material.NormalizedMaterial, error)
	RecordSync(ctx context.Context, res material.SyncResult, total int, at time.Time) error
	LastSync(ctx context.Context, source material.Source) (time.Time, bool, error)
}

var _ MaterialStore = (*store.MaterialRepository)(nil)

// Valid reports whether m carries every required indicator and a positive
// density.
func Valid(m *material.NormalizedMaterial, required []indicator.Key) bool {
	if !m.HasDensity() {
		return false
	}
	for _, k := range required {
		if _, ok := m.Indicators.Get(k); !ok {
			return false
		}
	}
	return true
}

// Package registry holds the source adapters and is the single entry point
// for material searches.
//
// Searches fan out to every configured source in parallel. A source that
// has never been synced is synced on its first search; concurrent searches
// share one in-flight sync and wait for it at most AutoSyncWait. Upstream
// failures degrade to the built-in fallback dataset and are flagged.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rshade/lcamatch/internal/cache"
	"github.com/rshade/lcamatch/internal/config"
	"github.com/rshade/lcamatch/internal/lcaerr"
	"github.com/rshade/lcamatch/internal/material"
	"github.com/rshade/lcamatch/internal/source"
)

// ErrDuplicateSource is returned when an adapter is registered twice.
var ErrDuplicateSource = errors.New("source already registered")

// Registry maps source ids to adapters.
//
// Thread Safety: All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[material.Source]source.Adapter

	flights  *SyncFlights
	cache    cache.Store
	syncWait time.Duration
}

// Option configures a Registry.
type Option func(*Registry)

// WithCache sets the search result cache. The default caches nothing.
func WithCache(s cache.Store) Option {
	return func(r *Registry) {
		if s != nil {
			r.cache = s
		}
	}
}

// WithSyncFlights shares an in-flight sync table, for example between a
// registry and a test.
func WithSyncFlights(f *SyncFlights) Option {
	return func(r *Registry) {
		if f != nil {
			r.flights = f
		}
	}
}

// WithAutoSyncWait bounds how long a search waits for a first sync.
func WithAutoSyncWait(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.syncWait = d
		}
	}
}

// New creates an empty Registry.
//
// Example:
//
//	reg := registry.New(
//	    registry.WithCache(store),
//	    registry.WithAutoSyncWait(30*time.Second),
//	)
func New(opts ...Option) *Registry {
	r := &Registry{
		adapters: make(map[material.Source]source.Adapter),
		flights:  NewSyncFlights(),
		cache:    cache.Disabled{},
		syncWait: config.DefaultAutoSyncWait,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds an adapter under its Info().ID.
func (r *Registry) Register(a source.Adapter) error {
	id := a.Info().ID
	if !id.Valid() {
		return fmt.Errorf("registering source %q: %w", id, lcaerr.ErrValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.adapters[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, id)
	}
	r.adapters[id] = a
	return nil
}

// Get resolves a source id case-insensitively. Unknown or unregistered
// ids are a validation error.
func (r *Registry) Get(id string) (source.Adapter, error) {
	src, ok := material.ParseSource(id)
	if !ok {
		return nil, lcaerr.Validation("unknown_source", "unknown source %q", id)
	}
	r.mu.RLock()
	a, ok := r.adapters[src]
	r.mu.RUnlock()
	if !ok {
		return nil, lcaerr.Validation("unknown_source", "source %q is not enabled", id)
	}
	return a, nil
}

// Has reports whether id names a registered source.
func (r *Registry) Has(id string) bool {
	_, err := r.Get(id)
	return err == nil
}

// Adapters returns every registered adapter, highest priority first.
func (r *Registry) Adapters() []source.Adapter {
	r.mu.RLock()
	out := make([]source.Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	r.mu.RUnlock()
	sortByPriority(out)
	return out
}

// ListInfo returns static metadata for every registered source. It never
// touches the store or the network.
func (r *Registry) ListInfo() []source.Info {
	adapters := r.Adapters()
	out := make([]source.Info, 0, len(adapters))
	for _, a := range adapters {
		out = append(out, a.Info())
	}
	return out
}

// ResolveMaterial finds a normalized material by its prefixed id in the
// source the prefix names.
func (r *Registry) ResolveMaterial(ctx context.Context, id string) (*material.NormalizedMaterial, bool, error) {
	src, _, err := material.ParseID(id)
	if err != nil {
		return nil, false, lcaerr.Validation("invalid_material_id", "invalid material id %q", id)
	}
	a, err := r.Get(string(src))
	if err != nil {
		return nil, false, err
	}
	return a.GetByID(ctx, id)
}

// sortByPriority orders adapters by descending priority, then by id.
func sortByPriority(adapters []source.Adapter) {
	sort.SliceStable(adapters, func(i, j int) bool {
		a, b := adapters[i].Info(), adapters[j].Info()
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.ID < b.ID
	})
}

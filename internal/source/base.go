package source

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rshade/lcamatch/internal/indicator"
	"github.com/rshade/lcamatch/internal/lcaerr"
	"github.com/rshade/lcamatch/internal/logging"
	"github.com/rshade/lcamatch/internal/material"
	"github.com/rshade/lcamatch/internal/store"
)

// FetchResult is one pull of a source dataset.
type FetchResult struct {
	Materials []material.NormalizedMaterial
	// Skipped counts upstream records rejected during normalization.
	Skipped int
	// Errors counts records or pages that could not be retrieved.
	Errors int
	// Complete is true when the pull covered the whole dataset, which
	// allows records missing upstream to be pruned.
	Complete bool
}

// Fetcher pulls and normalizes the full dataset of one source.
type Fetcher interface {
	Fetch(ctx context.Context) (FetchResult, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (FetchResult, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context) (FetchResult, error) { return f(ctx) }

// Base is a store-backed Adapter. Source packages configure it with their
// Info, Fetcher and validity predicate.
type Base struct {
	info    Info
	store   MaterialStore
	fetcher Fetcher
	valid   func(*material.NormalizedMaterial) bool
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a Base.
type Option func(*Base)

// WithValidity replaces the default predicate, which requires
// Info.RequiredIndicators and a positive density.
func WithValidity(valid func(*material.NormalizedMaterial) bool) Option {
	return func(b *Base) { b.valid = valid }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Base) { b.now = now }
}

// NewBase creates an adapter for info.ID. ttl is the refresh interval used
// by NeedsRefresh.
func NewBase(info Info, st MaterialStore, fetcher Fetcher, ttl time.Duration, opts ...Option) *Base {
	b := &Base{
		info:    info,
		store:   st,
		fetcher: fetcher,
		ttl:     ttl,
		now:     time.Now,
	}
	b.valid = func(m *material.NormalizedMaterial) bool { return Valid(m, info.RequiredIndicators) }
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Info returns the static source metadata.
func (b *Base) Info() Info { return b.info }

// AvailableIndicators returns the indicators this source can supply.
func (b *Base) AvailableIndicators() []indicator.Key {
	out := make([]indicator.Key, len(b.info.Indicators))
	copy(out, b.info.Indicators)
	return out
}

// Search queries the synced materials of this source.
func (b *Base) Search(
	ctx context.Context,
	query string,
	opts material.SearchOptions,
) ([]material.NormalizedMaterial, error) {
	q := strings.TrimSpace(query)
	if utf8.RuneCountInString(q) < MinQueryLength {
		return nil, lcaerr.Validation("query_too_short",
			"query must be at least %d characters", MinQueryLength)
	}
	out, err := b.store.Search(ctx, b.info.ID, q, opts)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID loads one material of this source.
func (b *Base) GetByID(ctx context.Context, id string) (*material.NormalizedMaterial, bool, error) {
	if !material.HasPrefix(id, b.info.ID) {
		return nil, false, nil
	}
	m, err := b.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// GetAll returns every valid stored material.
func (b *Base) GetAll(ctx context.Context) ([]material.NormalizedMaterial, error) {
	all, err := b.store.All(ctx, b.info.ID)
	if err != nil {
		return nil, err
	}
	out := make([]material.NormalizedMaterial, 0, len(all))
	for i := range all {
		if b.valid(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// Sync pulls the dataset and writes it to the store. A failed pull leaves
// the stored data untouched and is reported in Errors.
func (b *Base) Sync(ctx context.Context) (material.SyncResult, error) {
	log := logging.FromContext(ctx)
	start := b.now()
	res := material.SyncResult{Source: b.info.ID}

	log.Info().
		Ctx(ctx).
		Str("component", "source").
		Str("operation", "sync").
		Str("source", string(b.info.ID)).
		Msg("starting sync")

	fetched, err := b.fetcher.Fetch(ctx)
	if err != nil {
		res.Errors = max(fetched.Errors, 1)
		log.Error().
			Ctx(ctx).
			Str("component", "source").
			Str("operation", "sync").
			Str("source", string(b.info.ID)).
			Err(err).
			Msg("sync failed, keeping cached data")
		return res, lcaerr.Upstream(string(b.info.ID), err)
	}

	res.Skipped = fetched.Skipped
	res.Errors = fetched.Errors

	up, err := b.store.Upsert(ctx, b.info.ID, fetched.Materials)
	if err != nil {
		res.Errors++
		return res, err
	}
	res.Added, res.Updated, res.Unchanged = up.Added, up.Updated, up.Unchanged

	if fetched.Complete && fetched.Errors == 0 && len(fetched.Materials) > 0 {
		keep := make([]string, 0, len(fetched.Materials))
		for i := range fetched.Materials {
			m := fetched.Materials[i]
			m.Normalize()
			keep = append(keep, m.ID)
		}
		removed, pruneErr := b.store.Prune(ctx, b.info.ID, keep)
		if pruneErr != nil {
			res.Errors++
			return res, pruneErr
		}
		res.Removed = removed
	}

	if err := b.store.RecordSync(ctx, res, len(fetched.Materials), b.now()); err != nil {
		res.Errors++
		return res, err
	}

	log.Info().
		Ctx(ctx).
		Str("component", "source").
		Str("operation", "sync").
		Str("source", string(b.info.ID)).
		Int("added", res.Added).
		Int("updated", res.Updated).
		Int("unchanged", res.Unchanged).
		Int("removed", res.Removed).
		Int("skipped", res.Skipped).
		Int("errors", res.Errors).
		Dur("duration", b.now().Sub(start)).
		Msg("sync complete")

	return res, nil
}

// NeedsRefresh reports whether a sync is due.
func (b *Base) NeedsRefresh(ctx context.Context) (bool, error) {
	last, ok, err := b.store.LastSync(ctx, b.info.ID)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return b.now().Sub(last) > b.ttl, nil
}

// LastSyncTime returns the time of the last recorded sync.
func (b *Base) LastSyncTime(ctx context.Context) (time.Time, bool, error) {
	return b.store.LastSync(ctx, b.info.ID)
}

var _ Adapter = (*Base)(nil)

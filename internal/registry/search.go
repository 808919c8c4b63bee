package registry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rshade/lcamatch/internal/cache"
	"github.com/rshade/lcamatch/internal/config"
	"github.com/rshade/lcamatch/internal/lcaerr"
	"github.com/rshade/lcamatch/internal/logging"
	"github.com/rshade/lcamatch/internal/material"
	"github.com/rshade/lcamatch/internal/preprocess"
	"github.com/rshade/lcamatch/internal/source"
)

// AllSources selects every configured source in Search.
const AllSources = "all"

// SearchResult is the outcome of one search.
type SearchResult struct {
	Materials []material.NormalizedMaterial `json:"materials"`
	Source    string                        `json:"source"`
	Count     int                           `json:"count"`
	// Fallback is true when some materials come from the built-in sample
	// dataset because the source was unavailable.
	Fallback bool `json:"fallback,omitempty"`
	// Syncing is true when a first sync was still running when the wait
	// expired, so the result may be incomplete.
	Syncing bool `json:"syncing,omitempty"`
}

// Search queries one source, or every configured source when sourceID is
// AllSources. Queries shorter than source.MinQueryLength are a validation
// error for a single source and an empty result for AllSources.
func (r *Registry) Search(
	ctx context.Context,
	sourceID, query string,
	opts material.SearchOptions,
) (SearchResult, error) {
	if strings.EqualFold(strings.TrimSpace(sourceID), AllSources) {
		return r.SearchAll(ctx, query, opts)
	}
	a, err := r.Get(sourceID)
	if err != nil {
		return SearchResult{}, err
	}
	if tooShort(query) {
		return SearchResult{}, lcaerr.Validation("query_too_short",
			"query must be at least %d characters", source.MinQueryLength)
	}
	return r.searchOne(ctx, a, query, opts), nil
}

// SearchAll fans the query out to every configured source and merges the
// results by source priority without cross-source de-duplication. Each
// source contributes at most ceil(limit/n) materials.
func (r *Registry) SearchAll(ctx context.Context, query string, opts material.SearchOptions) (SearchResult, error) {
	res := SearchResult{Source: AllSources, Materials: []material.NormalizedMaterial{}}
	if tooShort(query) {
		return res, nil
	}

	var adapters []source.Adapter
	for _, a := range r.Adapters() {
		if a.Info().IsConfigured {
			adapters = append(adapters, a)
		}
	}
	if len(adapters) == 0 {
		return res, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = config.DefaultMatchLimit
	}
	per := opts
	per.Limit = int(math.Ceil(float64(limit) / float64(len(adapters))))

	parts := make([]SearchResult, len(adapters))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range adapters {
		i, a := i, a
		g.Go(func() error {
			parts[i] = r.searchOne(gctx, a, query, per)
			return nil
		})
	}
	_ = g.Wait()

	// adapters are already in priority order.
	for _, p := range parts {
		res.Materials = append(res.Materials, p.Materials...)
		res.Fallback = res.Fallback || p.Fallback
		res.Syncing = res.Syncing || p.Syncing
	}
	if len(res.Materials) > limit {
		res.Materials = res.Materials[:limit]
	}
	res.Count = len(res.Materials)
	return res, nil
}

// searchOne never fails: upstream trouble degrades to cached data or the
// fallback dataset.
func (r *Registry) searchOne(
	ctx context.Context,
	a source.Adapter,
	query string,
	opts material.SearchOptions,
) SearchResult {
	log := logging.FromContext(ctx)
	info := a.Info()
	res := SearchResult{Source: string(info.ID), Materials: []material.NormalizedMaterial{}}

	syncing, syncErr := r.ensureSynced(ctx, a)
	res.Syncing = syncing

	key := cache.SearchKey(string(info.ID), searchCacheQuery(query, opts.Category), opts.Limit)
	if !syncing {
		if hit, ok := cache.GetJSON[[]material.NormalizedMaterial](ctx, r.cache, key); ok {
			res.Materials = hit
			res.Count = len(hit)
			return res
		}
	}

	found, err := a.Search(ctx, query, opts)
	switch {
	case err != nil:
		log.Warn().
			Ctx(ctx).
			Str("component", "registry").
			Str("operation", "search").
			Str("source", string(info.ID)).
			Err(err).
			Msg("source search failed, using fallback materials")
		return fallbackResult(info, query, opts, res)
	case len(found) == 0 && syncErr != nil:
		// Never synced successfully and nothing stored.
		return fallbackResult(info, query, opts, res)
	}

	res.Materials = found
	res.Count = len(found)
	if !syncing && len(found) > 0 {
		if err := cache.SetJSON(ctx, r.cache, key, found); err != nil {
			log.Debug().
				Ctx(ctx).
				Str("component", "registry").
				Str("source", string(info.ID)).
				Err(err).
				Msg("search cache write failed")
		}
	}
	return res
}

func fallbackResult(info source.Info, query string, opts material.SearchOptions, res SearchResult) SearchResult {
	res.Materials = source.Fallback(info, query, opts.Limit)
	res.Count = len(res.Materials)
	res.Fallback = true
	return res
}

// ensureSynced triggers a sync when a has never been synced and waits for
// it at most syncWait. A stale source is refreshed in the background
// without waiting. syncing is true when the wait expired.
func (r *Registry) ensureSynced(ctx context.Context, a source.Adapter) (syncing bool, syncErr error) {
	log := logging.FromContext(ctx)
	info := a.Info()

	_, synced, err := a.LastSyncTime(ctx)
	if err != nil {
		return false, err
	}
	if synced {
		if stale, err := a.NeedsRefresh(ctx); err == nil && stale && !r.flights.InFlight(info.ID) {
			log.Info().
				Ctx(ctx).
				Str("component", "registry").
				Str("operation", "auto_sync").
				Str("source", string(info.ID)).
				Msg("refreshing stale source in background")
			r.watch(ctx, info.ID, r.flights.Start(ctx, a))
		}
		return false, nil
	}

	log.Info().
		Ctx(ctx).
		Str("component", "registry").
		Str("operation", "auto_sync").
		Str("source", string(info.ID)).
		Dur("max_wait", r.syncWait).
		Msg("source never synced, syncing before first search")

	ch := r.flights.Start(ctx, a)
	timer := time.NewTimer(r.syncWait)
	defer timer.Stop()

	select {
	case out := <-ch:
		if out.Err == nil {
			r.invalidate(ctx, info.ID)
		}
		return false, out.Err
	case <-timer.C:
		log.Warn().
			Ctx(ctx).
			Str("component", "registry").
			Str("operation", "auto_sync").
			Str("source", string(info.ID)).
			Dur("waited", r.syncWait).
			Msg("sync still running, continuing with stored data")
		r.watch(ctx, info.ID, ch)
		return true, nil
	case <-ctx.Done():
		r.watch(ctx, info.ID, ch)
		return true, ctx.Err()
	}
}

// watch drops cached searches of src once the sync on ch succeeds.
func (r *Registry) watch(ctx context.Context, src material.Source, ch <-chan singleflight.Result) {
	detached := context.WithoutCancel(ctx)
	go func() {
		if out := <-ch; out.Err == nil {
			r.invalidate(detached, src)
		}
	}()
}

// invalidate drops cached searches of src.
func (r *Registry) invalidate(ctx context.Context, src material.Source) {
	if err := r.cache.Clear(ctx, cache.SearchPrefix(string(src))); err != nil {
		logging.FromContext(ctx).Debug().
			Ctx(ctx).
			Str("component", "registry").
			Str("source", string(src)).
			Err(err).
			Msg("search cache invalidation failed")
	}
}

// Sync runs a sync of one source through the shared flight table and
// waits for it.
func (r *Registry) Sync(ctx context.Context, sourceID string) (material.SyncResult, error) {
	a, err := r.Get(sourceID)
	if err != nil {
		return material.SyncResult{}, err
	}
	select {
	case out := <-r.flights.Start(ctx, a):
		res, _ := out.Val.(material.SyncResult)
		if res.Source == "" {
			res.Source = a.Info().ID
		}
		if out.Err != nil {
			if res.Errors == 0 {
				res.Errors = 1
			}
			return res, out.Err
		}
		r.invalidate(ctx, a.Info().ID)
		return res, nil
	case <-ctx.Done():
		return material.SyncResult{Source: a.Info().ID}, ctx.Err()
	}
}

// SyncOutcome pairs the result of one source sync with its error.
type SyncOutcome struct {
	Result material.SyncResult
	Err    error
}

// SyncAll syncs every registered source concurrently. A failing source
// does not stop the others. Outcomes are ordered by source id and the
// returned error joins every failure.
func (r *Registry) SyncAll(ctx context.Context) ([]SyncOutcome, error) {
	adapters := r.Adapters()
	out := make([]SyncOutcome, len(adapters))

	var wg sync.WaitGroup
	for i, a := range adapters {
		i, a := i, a
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.Sync(ctx, string(a.Info().ID))
			out[i] = SyncOutcome{Result: res, Err: err}
		}()
	}
	wg.Wait()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Result.Source < out[j].Result.Source })
	errs := make([]error, 0, len(out))
	for _, o := range out {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Result.Source, o.Err))
		}
	}
	return out, errors.Join(errs...)
}

func tooShort(query string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(query)) < source.MinQueryLength
}

func searchCacheQuery(query, category string) string {
	q := preprocess.Fold(strings.TrimSpace(query))
	if category != "" {
		q += "|" + preprocess.Fold(category)
	}
	return q
}

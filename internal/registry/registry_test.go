package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/lcamatch/internal/cache"
	"github.com/rshade/lcamatch/internal/indicator"
	"github.com/rshade/lcamatch/internal/lcaerr"
	"github.com/rshade/lcamatch/internal/material"
	"github.com/rshade/lcamatch/internal/source"
)

// fakeAdapter is an in-memory source.Adapter.
type fakeAdapter struct {
	info source.Info

	mu        sync.Mutex
	synced    bool
	lastSync  time.Time
	stale     bool
	materials []material.NormalizedMaterial
	searchErr error

	syncCalls   atomic.Int32
	searchCalls atomic.Int32
	release     chan struct{}
	syncErr     error
	syncPanic   bool
}

func newFake(src material.Source, priority int, names ...string) *fakeAdapter {
	f := &fakeAdapter{info: source.Info{
		ID:           src,
		Name:         string(src),
		Priority:     priority,
		IsConfigured: true,
		Indicators:   []indicator.Key{indicator.GWPTotal},
	}}
	for i, n := range names {
		m := material.NormalizedMaterial{
			Source:     src,
			SourceID:   string(rune('a' + i)),
			Name:       n,
			Density:    material.Float(1000),
			Indicators: indicator.Values{indicator.GWPTotal: 0.1},
		}
		m.Normalize()
		f.materials = append(f.materials, m)
	}
	return f
}

func (f *fakeAdapter) Info() source.Info { return f.info }

func (f *fakeAdapter) Search(_ context.Context, _ string, opts material.SearchOptions) ([]material.NormalizedMaterial, error) {
	f.searchCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if !f.synced {
		return nil, nil
	}
	out := append([]material.NormalizedMaterial(nil), f.materials...)
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeAdapter) GetByID(_ context.Context, id string) (*material.NormalizedMaterial, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.materials {
		if f.materials[i].ID == id {
			m := f.materials[i]
			return &m, true, nil
		}
	}
	return nil, false, nil
}

func (f *fakeAdapter) GetAll(context.Context) ([]material.NormalizedMaterial, error) {
	return f.materials, nil
}

func (f *fakeAdapter) Sync(context.Context) (material.SyncResult, error) {
	f.syncCalls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.syncPanic {
		panic("boom")
	}
	if f.syncErr != nil {
		return material.SyncResult{Source: f.info.ID, Errors: 1}, f.syncErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced = true
	f.stale = false
	f.lastSync = time.Now()
	return material.SyncResult{Source: f.info.ID, Added: len(f.materials)}, nil
}

func (f *fakeAdapter) AvailableIndicators() []indicator.Key { return f.info.Indicators }

func (f *fakeAdapter) NeedsRefresh(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.synced || f.stale, nil
}

func (f *fakeAdapter) LastSyncTime(context.Context) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSync, f.synced, nil
}

func (f *fakeAdapter) markSynced() *fakeAdapter {
	f.synced = true
	f.lastSync = time.Now()
	return f
}

func TestRegistry_GetAndHas(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(newFake(material.SourceKBOB, 30)))

	a, err := r.Get("KBOB")
	require.NoError(t, err)
	assert.Equal(t, material.SourceKBOB, a.Info().ID)
	assert.True(t, r.Has("kbob"))

	_, err = r.Get("ecoinvent")
	require.Error(t, err)
	assert.Equal(t, lcaerr.KindValidation, lcaerr.KindOf(err))

	_, err = r.Get("oekobaudat")
	assert.Equal(t, lcaerr.KindValidation, lcaerr.KindOf(err), "known but unregistered")
	assert.False(t, r.Has("okobaudat"))

	err = r.Register(newFake(material.SourceKBOB, 1))
	require.ErrorIs(t, err, ErrDuplicateSource)
}

func TestRegistry_ListInfoOrdersByPriority(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(newFake(material.SourceOpenEPD, 10)))
	require.NoError(t, r.Register(newFake(material.SourceKBOB, 30)))
	require.NoError(t, r.Register(newFake(material.SourceOekobaudat, 20)))

	infos := r.ListInfo()
	require.Len(t, infos, 3)
	assert.Equal(t, material.SourceKBOB, infos[0].ID)
	assert.Equal(t, material.SourceOekobaudat, infos[1].ID)
	assert.Equal(t, material.SourceOpenEPD, infos[2].ID)
}

func TestSearch_ShortQuery(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(newFake(material.SourceKBOB, 30).markSynced()))

	_, err := r.Search(context.Background(), "kbob", "b", material.SearchOptions{})
	assert.Equal(t, lcaerr.KindValidation, lcaerr.KindOf(err))

	res, err := r.Search(context.Background(), "all", " b ", material.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Materials)
	assert.Equal(t, 0, res.Count)
}

func TestSearchAll_MergesByPriority(t *testing.T) {
	r := New()
	low := newFake(material.SourceOpenEPD, 10, "Concrete A", "Concrete B").markSynced()
	high := newFake(material.SourceKBOB, 30, "Beton 1", "Beton 2").markSynced()
	off := newFake(material.SourceOekobaudat, 20, "Beton X").markSynced()
	off.info.IsConfigured = false
	require.NoError(t, r.Register(low))
	require.NoError(t, r.Register(high))
	require.NoError(t, r.Register(off))

	res, err := r.SearchAll(context.Background(), "beton", material.SearchOptions{Limit: 4})
	require.NoError(t, err)
	require.Equal(t, 4, res.Count)
	assert.Equal(t, material.SourceKBOB, res.Materials[0].Source)
	assert.Equal(t, material.SourceKBOB, res.Materials[1].Source)
	assert.Equal(t, material.SourceOpenEPD, res.Materials[2].Source)
	assert.Equal(t, int32(0), off.searchCalls.Load(), "unconfigured sources are skipped")
	assert.False(t, res.Fallback)
}

func TestSearch_FallbackOnUpstreamFailure(t *testing.T) {
	r := New()
	f := newFake(material.SourceKBOB, 30).markSynced()
	f.info.Indicators = []indicator.Key{indicator.GWPTotal, indicator.PENRETotal, indicator.UBP}
	f.searchErr = errors.New("connection reset")
	require.NoError(t, r.Register(f))

	res, err := r.Search(context.Background(), "kbob", "Beton", material.SearchOptions{Limit: 5})
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	require.NotEmpty(t, res.Materials)
	assert.True(t, source.IsFallback(&res.Materials[0]))
}

func TestSearch_FallbackWhenFirstSyncFails(t *testing.T) {
	r := New()
	f := newFake(material.SourceOpenEPD, 10)
	f.syncErr = errors.New("forbidden")
	require.NoError(t, r.Register(f))

	res, err := r.Search(context.Background(), "openepd", "glass", material.SearchOptions{})
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, int32(1), f.syncCalls.Load())
}

func TestSearch_AutoSyncIsSingleFlight(t *testing.T) {
	f := newFake(material.SourceKBOB, 30, "Beton")
	f.release = make(chan struct{})
	r := New(WithAutoSyncWait(5 * time.Second))
	require.NoError(t, r.Register(f))

	const callers = 8
	var wg sync.WaitGroup
	results := make([]SearchResult, callers)
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.Search(context.Background(), "kbob", "Beton", material.SearchOptions{})
			assert.NoError(t, err)
			results[i] = res
		}()
	}

	require.Eventually(t, func() bool { return r.flights.InFlight(material.SourceKBOB) },
		time.Second, 5*time.Millisecond)
	// Give every caller time to join the flight before it settles.
	time.Sleep(50 * time.Millisecond)
	close(f.release)
	wg.Wait()

	assert.Equal(t, int32(1), f.syncCalls.Load())
	for _, res := range results {
		assert.Equal(t, 1, res.Count)
	}
	assert.False(t, r.flights.InFlight(material.SourceKBOB))
}

func TestSearch_AutoSyncWaitIsBounded(t *testing.T) {
	f := newFake(material.SourceKBOB, 30, "Beton")
	f.release = make(chan struct{})
	r := New(WithAutoSyncWait(20 * time.Millisecond))
	require.NoError(t, r.Register(f))

	start := time.Now()
	res, err := r.Search(context.Background(), "kbob", "Beton", material.SearchOptions{})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, res.Syncing)
	assert.Empty(t, res.Materials)

	close(f.release)
	require.Eventually(t, func() bool { return !r.flights.InFlight(material.SourceKBOB) },
		time.Second, 5*time.Millisecond)

	res, err = r.Search(context.Background(), "kbob", "Beton", material.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, int32(1), f.syncCalls.Load())
}

func TestSyncFlights_PanicClearsHandle(t *testing.T) {
	f := newFake(material.SourceKBOB, 30)
	f.syncPanic = true
	r := New()
	require.NoError(t, r.Register(f))

	_, err := r.Sync(context.Background(), "kbob")
	require.Error(t, err)
	assert.False(t, r.flights.InFlight(material.SourceKBOB))

	f.syncPanic = false
	res, err := r.Sync(context.Background(), "kbob")
	require.NoError(t, err)
	assert.Equal(t, material.SourceKBOB, res.Source)
	assert.Equal(t, int32(2), f.syncCalls.Load())
}

func TestSearch_UsesCache(t *testing.T) {
	mem := cache.NewMemoryStore(time.Minute)
	r := New(WithCache(mem))
	f := newFake(material.SourceKBOB, 30, "Beton").markSynced()
	require.NoError(t, r.Register(f))

	for i := 0; i < 3; i++ {
		res, err := r.Search(context.Background(), "kbob", "Beton", material.SearchOptions{Limit: 5})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Count)
	}
	assert.Equal(t, int32(1), f.searchCalls.Load())

	_, err := r.Sync(context.Background(), "kbob")
	require.NoError(t, err)
	_, err = r.Search(context.Background(), "kbob", "Beton", material.SearchOptions{Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.searchCalls.Load(), "sync invalidates cached searches")
}

func TestSyncAll_CollectsErrors(t *testing.T) {
	ok := newFake(material.SourceKBOB, 30, "Beton")
	bad := newFake(material.SourceOpenEPD, 10)
	bad.syncErr = errors.New("unauthorized")
	r := New()
	require.NoError(t, r.Register(ok))
	require.NoError(t, r.Register(bad))

	results, err := r.SyncAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
	require.Len(t, results, 2)
	assert.Equal(t, material.SourceKBOB, results[0].Result.Source)
	assert.Equal(t, 1, results[0].Result.Added)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, material.SourceOpenEPD, results[1].Result.Source)
	assert.Equal(t, 1, results[1].Result.Errors)
	assert.Error(t, results[1].Err)
}

func TestResolveMaterial(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(newFake(material.SourceKBOB, 30, "Beton")))

	m, ok, err := r.ResolveMaterial(context.Background(), "KBOB_a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Beton", m.Name)

	_, _, err = r.ResolveMaterial(context.Background(), "nope")
	assert.Equal(t, lcaerr.KindValidation, lcaerr.KindOf(err))
}

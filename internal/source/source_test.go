package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/lcamatch/internal/indicator"
	"github.com/rshade/lcamatch/internal/lcaerr"
	"github.com/rshade/lcamatch/internal/material"
	"github.com/rshade/lcamatch/internal/store"
)

func newTestStore(t *testing.T) *store.MaterialRepository {
	t.Helper()
	db, err := store.Open(context.Background(), store.DriverSQLite, filepath.Join(t.TempDir(), "src.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return store.NewMaterialRepository(db, 0)
}

func testInfo() Info {
	return Info{
		ID:                 material.SourceKBOB,
		Name:               "KBOB",
		Indicators:         []indicator.Key{indicator.GWPTotal, indicator.PENRETotal, indicator.UBP},
		RequiredIndicators: []indicator.Key{indicator.GWPTotal, indicator.PENRETotal, indicator.UBP},
	}
}

func mat(id, name string, density *float64, vals indicator.Values) material.NormalizedMaterial {
	return material.NormalizedMaterial{
		Source:     material.SourceKBOB,
		SourceID:   id,
		Name:       name,
		Density:    density,
		Indicators: vals,
	}
}

func full(gwp float64) indicator.Values {
	return indicator.Values{indicator.GWPTotal: gwp, indicator.PENRETotal: 1, indicator.UBP: 100}
}

// staticFetcher returns a fixed result or error.
type staticFetcher struct {
	res   FetchResult
	err   error
	calls int
}

func (f *staticFetcher) Fetch(context.Context) (FetchResult, error) {
	f.calls++
	return f.res, f.err
}

func TestBase_SyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := &staticFetcher{res: FetchResult{Complete: true, Materials: []material.NormalizedMaterial{
		mat("1", "Hochbaubeton", material.Float(2400), full(0.1)),
		mat("2", "Bewehrungsstahl", material.Float(7850), full(0.7)),
	}}}
	b := NewBase(testInfo(), newTestStore(t), f, time.Hour)

	first, err := b.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Added)
	assert.Equal(t, 2, first.Synced())

	second, err := b.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Added)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 2, second.Unchanged)
}

func TestBase_SyncFailureKeepsCache(t *testing.T) {
	ctx := context.Background()
	f := &staticFetcher{res: FetchResult{Complete: true, Materials: []material.NormalizedMaterial{
		mat("1", "Hochbaubeton", material.Float(2400), full(0.1)),
	}}}
	b := NewBase(testInfo(), newTestStore(t), f, time.Hour)
	_, err := b.Sync(ctx)
	require.NoError(t, err)

	f.err = errors.New("connection refused")
	f.res = FetchResult{}
	res, err := b.Sync(ctx)
	require.Error(t, err)
	assert.Equal(t, lcaerr.KindUpstream, lcaerr.KindOf(err))
	assert.GreaterOrEqual(t, res.Errors, 1)

	got, ok, err := b.GetByID(ctx, "KBOB_1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Hochbaubeton", got.Name)
}

func TestBase_SyncPrunesOnlyCompletePulls(t *testing.T) {
	ctx := context.Background()
	f := &staticFetcher{res: FetchResult{Complete: true, Materials: []material.NormalizedMaterial{
		mat("1", "A", material.Float(1), full(0.1)),
		mat("2", "B", material.Float(1), full(0.1)),
	}}}
	b := NewBase(testInfo(), newTestStore(t), f, time.Hour)
	_, err := b.Sync(ctx)
	require.NoError(t, err)

	// Partial pull: record 2 missing but nothing may be removed.
	f.res = FetchResult{Complete: true, Errors: 1, Materials: f.res.Materials[:1]}
	res, err := b.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Removed)
	_, ok, err := b.GetByID(ctx, "KBOB_2")
	require.NoError(t, err)
	assert.True(t, ok)

	f.res.Errors = 0
	res, err = b.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	_, ok, err = b.GetByID(ctx, "KBOB_2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBase_GetByID(t *testing.T) {
	ctx := context.Background()
	f := &staticFetcher{res: FetchResult{Materials: []material.NormalizedMaterial{
		mat("1", "Beton", material.Float(2400), full(0.1)),
	}}}
	b := NewBase(testInfo(), newTestStore(t), f, time.Hour)
	_, err := b.Sync(ctx)
	require.NoError(t, err)

	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"own prefix", "KBOB_1", true},
		{"unknown id", "KBOB_404", false},
		{"foreign prefix", "OKOBAUDAT_1", false},
		{"no prefix", "1", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := b.GetByID(ctx, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestBase_GetAllAppliesValidity(t *testing.T) {
	ctx := context.Background()
	f := &staticFetcher{res: FetchResult{Materials: []material.NormalizedMaterial{
		mat("ok", "Beton", material.Float(2400), full(0.1)),
		mat("nodensity", "Farbe", nil, full(2)),
		mat("noubp", "Stahl", material.Float(7850), indicator.Values{indicator.GWPTotal: 0.7, indicator.PENRETotal: 9}),
	}}}
	b := NewBase(testInfo(), newTestStore(t), f, time.Hour)
	_, err := b.Sync(ctx)
	require.NoError(t, err)

	all, err := b.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "KBOB_ok", all[0].ID)
}

func TestBase_SearchRejectsShortQuery(t *testing.T) {
	b := NewBase(testInfo(), newTestStore(t), &staticFetcher{}, time.Hour)
	_, err := b.Search(context.Background(), " b ", material.SearchOptions{})
	require.Error(t, err)
	assert.Equal(t, lcaerr.KindValidation, lcaerr.KindOf(err))
}

func TestBase_NeedsRefresh(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	f := &staticFetcher{res: FetchResult{Materials: []material.NormalizedMaterial{
		mat("1", "Beton", material.Float(2400), full(0.1)),
	}}}
	b := NewBase(testInfo(), newTestStore(t), f, 24*time.Hour, WithClock(clock))

	due, err := b.NeedsRefresh(ctx)
	require.NoError(t, err)
	assert.True(t, due, "never synced")

	_, err = b.Sync(ctx)
	require.NoError(t, err)
	due, err = b.NeedsRefresh(ctx)
	require.NoError(t, err)
	assert.False(t, due)

	now = now.Add(25 * time.Hour)
	due, err = b.NeedsRefresh(ctx)
	require.NoError(t, err)
	assert.True(t, due)

	last, ok, err := b.LastSyncTime(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, last.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestFallback(t *testing.T) {
	info := testInfo()

	got := Fallback(info, "Concrete", 10)
	require.NotEmpty(t, got)
	assert.Equal(t, "KBOB_fallback-concrete", got[0].ID)
	assert.True(t, IsFallback(&got[0]))
	assert.Equal(t, info.Indicators, got[0].Indicators.Keys())

	openepd := Info{ID: material.SourceOpenEPD, Indicators: []indicator.Key{indicator.GWPTotal}}
	got = Fallback(openepd, "Stahl", 10)
	require.Len(t, got, 1)
	assert.Equal(t, []indicator.Key{indicator.GWPTotal}, got[0].Indicators.Keys())

	assert.Empty(t, Fallback(info, "Unobtainium", 10))
}

func TestHTTPClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			_, _ = w.Write([]byte(`{"value":42}`))
		default:
			http.Error(w, "nope", http.StatusForbidden)
		}
	}))
	t.Cleanup(srv.Close)

	c := NewHTTPClient(srv.Client(), time.Second, BearerHeader("secret"))

	var out struct {
		Value int `json:"value"`
	}
	require.NoError(t, c.GetJSON(context.Background(), srv.URL+"/ok", &out))
	assert.Equal(t, 42, out.Value)

	err := c.GetJSON(context.Background(), srv.URL+"/denied", &out)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.StatusCode)

	assert.Nil(t, BearerHeader(""))
}

func TestNumber_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
		want  float64
	}{
		{`2400`, true, 2400},
		{`"2400"`, true, 2400},
		{`"0,105"`, true, 0.105},
		{`""`, false, 0},
		{`"n/a"`, false, 0},
		{`null`, false, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			var n Number
			require.NoError(t, n.UnmarshalJSON([]byte(tt.in)))
			assert.Equal(t, tt.valid, n.Valid)
			assert.InDelta(t, tt.want, n.Value, 1e-12)
		})
	}

	var zero Number
	require.NoError(t, zero.UnmarshalJSON([]byte(`0`)))
	assert.NotNil(t, zero.Ptr())
	assert.Nil(t, zero.Positive())
}

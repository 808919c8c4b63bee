package kbob

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/lcamatch/internal/config"
	"github.com/rshade/lcamatch/internal/indicator"
	"github.com/rshade/lcamatch/internal/lcaerr"
	"github.com/rshade/lcamatch/internal/material"
	"github.com/rshade/lcamatch/internal/source"
	"github.com/rshade/lcamatch/internal/store"
)

const payload = `{
  "success": true,
  "version": "2022",
  "count": 5,
  "totalMaterials": 5,
  "materials": [
    {"uuid": "b-1", "nameDE": "Hochbaubeton (ohne Bewehrung)", "nameFR": "Béton pour bâtiment", "group": "Beton",
     "density": "2400", "unit": "kg", "ubp21Total": 120, "gwpTotal": 0.105, "primaryEnergyNonRenewableTotal": 0.62},
    {"uuid": "s-1", "nameDE": "Bewehrungsstahl", "group": "Metallbaustoffe",
     "density": 7850, "unit": "kg", "ubp21Total": 1700, "gwpTotal": 0.68, "primaryEnergyNonRenewableTotal": 9.3},
    {"uuid": "x-nodensity", "nameDE": "Farbe", "group": "Anstriche",
     "density": null, "unit": "kg", "ubp21Total": 3000, "gwpTotal": 2.1, "primaryEnergyNonRenewableTotal": 40},
    {"uuid": "x-zero", "nameDE": "Luft", "group": "Diverses",
     "density": "1.2", "unit": "kg", "ubp21Total": 0, "gwpTotal": 0, "primaryEnergyNonRenewableTotal": 0},
    {"uuid": "x-noubp", "nameDE": "Kupfer", "group": "Metallbaustoffe",
     "density": "8900", "unit": "kg", "ubp21Total": null, "gwpTotal": 3.0, "primaryEnergyNonRenewableTotal": 45}
  ]
}`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "/api/kbob/materials", r.URL.Path)
		assert.Equal(t, "all", r.URL.Query().Get("pageSize"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newStore(t *testing.T) *store.MaterialRepository {
	t.Helper()
	db, err := store.Open(context.Background(), store.DriverSQLite, filepath.Join(t.TempDir(), "kbob.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return store.NewMaterialRepository(db, 0)
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	cfg := config.SourceConfig{Enabled: true, BaseURL: srv.URL, APIKey: "test-key", Priority: 30}
	a := New(cfg, newStore(t), srv.Client(), 5*time.Second, time.Hour)

	res, err := a.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, material.SourceKBOB, res.Source)
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 3, res.Skipped)
	assert.Equal(t, 0, res.Errors)

	again, err := a.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Added)
	assert.Equal(t, 0, again.Updated)

	m, ok, err := a.GetByID(ctx, "KBOB_b-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Hochbaubeton (ohne Bewehrung)", m.Name)
	assert.Equal(t, "Béton pour bâtiment", m.LocalizedNames["fr"])
	require.NotNil(t, m.Density)
	assert.InDelta(t, 2400, *m.Density, 1e-9)
	gwp, ok := m.Factor(indicator.GWPTotal)
	require.True(t, ok)
	assert.InDelta(t, 0.105, gwp, 1e-12)
	assert.Equal(t, "A1-A3", m.Metadata.Scope)

	found, err := a.Search(ctx, "beton", material.SearchOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "KBOB_b-1", found[0].ID)

	all, err := a.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSync_MissingKey(t *testing.T) {
	srv := newServer(t)
	cfg := config.SourceConfig{Enabled: true, BaseURL: srv.URL}
	a := New(cfg, newStore(t), srv.Client(), time.Second, time.Hour)

	assert.False(t, a.Info().IsConfigured)
	res, err := a.Sync(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Equal(t, lcaerr.KindUpstream, lcaerr.KindOf(err))
	assert.Equal(t, 1, res.Errors)
}

func TestSync_Unauthorized(t *testing.T) {
	srv := newServer(t)
	cfg := config.SourceConfig{Enabled: true, BaseURL: srv.URL, APIKey: "wrong"}
	a := New(cfg, newStore(t), srv.Client(), time.Second, time.Hour)

	_, err := a.Sync(context.Background())
	require.Error(t, err)
	assert.Equal(t, lcaerr.KindUpstream, lcaerr.KindOf(err))

	due, err := a.NeedsRefresh(context.Background())
	require.NoError(t, err)
	assert.True(t, due, "a failed sync is not recorded")
}

func TestValid(t *testing.T) {
	num := func(f float64) source.Number { return source.Number{Value: f, Valid: true} }
	tests := []struct {
		name string
		raw  apiMaterial
		want bool
	}{
		{"complete", apiMaterial{UUID: "a", GWP: num(1), UBP: num(1), PENRE: num(1), Density: num(10)}, true},
		{"one non-zero", apiMaterial{UUID: "a", GWP: num(0), UBP: num(5), PENRE: num(0), Density: num(10)}, true},
		{"all zero", apiMaterial{UUID: "a", GWP: num(0), UBP: num(0), PENRE: num(0), Density: num(10)}, false},
		{"no density", apiMaterial{UUID: "a", GWP: num(1), UBP: num(1), PENRE: num(1)}, false},
		{"zero density", apiMaterial{UUID: "a", GWP: num(1), UBP: num(1), PENRE: num(1), Density: num(0)}, false},
		{"missing gwp", apiMaterial{UUID: "a", UBP: num(1), PENRE: num(1), Density: num(10)}, false},
		{"missing uuid", apiMaterial{GWP: num(1), UBP: num(1), PENRE: num(1), Density: num(10)}, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, valid(tt.raw))
		})
	}
}

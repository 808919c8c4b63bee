package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rshade/lcamatch/internal/indicator"
	"github.com/rshade/lcamatch/internal/material"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "lcamatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func kbobMaterial(sourceID, name string, gwp float64) material.NormalizedMaterial {
	return material.NormalizedMaterial{
		ID:       material.MakeID(material.SourceKBOB, sourceID),
		Source:   material.SourceKBOB,
		SourceID: sourceID,
		Name:     name,
		Category: "Beton",
		Density:  material.Float(2400),
		Indicators: indicator.Values{
			indicator.GWPTotal:   gwp,
			indicator.PENRETotal: 0.7,
			indicator.UBP:        120,
		},
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "")
	require.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestMaterialRepository_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewMaterialRepository(newTestDB(t), 2)

	items := []material.NormalizedMaterial{
		kbobMaterial("a1", "Hochbaubeton", 0.1),
		kbobMaterial("a2", "Magerbeton", 0.08),
		kbobMaterial("a3", "Betonstahl", 0.7),
	}

	first, err := repo.Upsert(ctx, material.SourceKBOB, items)
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Added: 3}, first)

	second, err := repo.Upsert(ctx, material.SourceKBOB, items)
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Unchanged: 3}, second)

	items[1].Indicators[indicator.GWPTotal] = 0.09
	third, err := repo.Upsert(ctx, material.SourceKBOB, items)
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Updated: 1, Unchanged: 2}, third)

	got, err := repo.Get(ctx, "KBOB_a2")
	require.NoError(t, err)
	gwp, ok := got.Factor(indicator.GWPTotal)
	require.True(t, ok)
	assert.InDelta(t, 0.09, gwp, 1e-12)

	n, err := repo.Count(ctx, material.SourceKBOB)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestMaterialRepository_UpsertRejectsForeignSource(t *testing.T) {
	repo := NewMaterialRepository(newTestDB(t), 0)
	_, err := repo.Upsert(context.Background(), material.SourceOpenEPD,
		[]material.NormalizedMaterial{kbobMaterial("x", "Beton", 0.1)})
	require.Error(t, err)
}

func TestMaterialRepository_SparseIndicatorsSurviveRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewMaterialRepository(newTestDB(t), 0)

	m := material.NormalizedMaterial{
		Source:     material.SourceOpenEPD,
		SourceID:   "epd-1",
		Name:       "CEM II Beton",
		Indicators: indicator.Values{indicator.GWPTotal: 0.12},
	}
	_, err := repo.Upsert(ctx, material.SourceOpenEPD, []material.NormalizedMaterial{m})
	require.NoError(t, err)

	got, err := repo.Get(ctx, "OPENEPD_epd-1")
	require.NoError(t, err)
	assert.Equal(t, material.DefaultCategory, got.Category)
	assert.Nil(t, got.Density)
	_, ok := got.Factor(indicator.UBP)
	assert.False(t, ok, "absent indicator must stay absent")
	assert.Equal(t, []indicator.Key{indicator.GWPTotal}, got.Indicators.Keys())
}

func TestMaterialRepository_GetNotFound(t *testing.T) {
	repo := NewMaterialRepository(newTestDB(t), 0)
	_, err := repo.Get(context.Background(), "KBOB_missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMaterialRepository_Search(t *testing.T) {
	ctx := context.Background()
	repo := NewMaterialRepository(newTestDB(t), 0)
	_, err := repo.Upsert(ctx, material.SourceKBOB, []material.NormalizedMaterial{
		kbobMaterial("1", "Beton C30/37", 0.1),
		kbobMaterial("2", "Beton", 0.1),
		kbobMaterial("3", "Leichtbeton", 0.1),
		kbobMaterial("4", "Wärmedämmung Steinwolle", 0.1),
	})
	require.NoError(t, err)

	t.Run("ExactFirst", func(t *testing.T) {
		got, err := repo.Search(ctx, material.SourceKBOB, "beton", material.SearchOptions{Limit: 10})
		require.NoError(t, err)
		require.Len(t, got, 4, "category Beton matches every record")
		assert.Equal(t, "KBOB_2", got[0].ID)
		assert.Equal(t, "KBOB_1", got[1].ID)
	})

	t.Run("DiacriticsFolded", func(t *testing.T) {
		got, err := repo.Search(ctx, material.SourceKBOB, "warmedammung", material.SearchOptions{Limit: 10})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "KBOB_4", got[0].ID)
	})

	t.Run("Limit", func(t *testing.T) {
		got, err := repo.Search(ctx, material.SourceKBOB, "beton", material.SearchOptions{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("OtherSourceIsolated", func(t *testing.T) {
		got, err := repo.Search(ctx, material.SourceOekobaudat, "beton", material.SearchOptions{Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestMaterialRepository_SearchRanksBeforeLimit(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewMaterialRepository(db, 0)

	items := make([]material.NormalizedMaterial, 0, 151)
	for i := 0; i < 150; i++ {
		items = append(items, kbobMaterial(fmt.Sprintf("A%03d", i), fmt.Sprintf("Armierungsbeton %03d", i), 0.2))
	}
	items = append(items, kbobMaterial("Z", "Beton", 0.1), kbobMaterial("Y", "Beton C25/30", 0.1))
	_, err := repo.Upsert(ctx, material.SourceKBOB, items)
	require.NoError(t, err)

	got, err := repo.Search(ctx, material.SourceKBOB, "Beton", material.SearchOptions{Limit: 5})
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, "KBOB_Z", got[0].ID)
	assert.Equal(t, "KBOB_Y", got[1].ID)
	assert.Equal(t, "KBOB_A000", got[2].ID)

	t.Run("BackfillsNameKeys", func(t *testing.T) {
		require.NoError(t, db.Model(&MaterialRecord{}).Where("1 = 1").UpdateColumn("name_key", "").Error)
		require.NoError(t, Migrate(ctx, db))

		var rec MaterialRecord
		require.NoError(t, db.Where("id = ?", "KBOB_Y").Take(&rec).Error)
		assert.Equal(t, "beton c25 30", rec.NameKey)

		got, err := repo.Search(ctx, material.SourceKBOB, "beton", material.SearchOptions{Limit: 1})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "KBOB_Z", got[0].ID)
	})
}

func TestMaterialRepository_PruneAndGetMany(t *testing.T) {
	ctx := context.Background()
	repo := NewMaterialRepository(newTestDB(t), 0)
	_, err := repo.Upsert(ctx, material.SourceKBOB, []material.NormalizedMaterial{
		kbobMaterial("1", "Beton", 0.1),
		kbobMaterial("2", "Stahl", 0.7),
	})
	require.NoError(t, err)

	removed, err := repo.Prune(ctx, material.SourceKBOB, []string{"KBOB_1"})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	got, err := repo.GetMany(ctx, []string{"KBOB_1", "KBOB_2"})
	require.NoError(t, err)
	assert.Contains(t, got, "KBOB_1")
	assert.NotContains(t, got, "KBOB_2")
}

func TestMaterialRepository_SyncState(t *testing.T) {
	ctx := context.Background()
	repo := NewMaterialRepository(newTestDB(t), 0)

	_, ok, err := repo.LastSync(ctx, material.SourceKBOB)
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordSync(ctx, material.SyncResult{Source: material.SourceKBOB, Added: 3}, 3, at))
	require.NoError(t, repo.RecordSync(ctx, material.SyncResult{Source: material.SourceKBOB}, 3, at.Add(time.Hour)))

	last, ok, err := repo.LastSync(ctx, material.SourceKBOB)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, last.Equal(at.Add(time.Hour)))
}

func newProject(t *testing.T, repo *ProjectRepository, name string) *Project {
	t.Helper()
	p := &Project{Name: name, ClassificationSystem: "ebkp"}
	require.NoError(t, repo.CreateProject(context.Background(), p))
	require.NotEmpty(t, p.ID)
	return p
}

func TestProjectRepository_ImportElements(t *testing.T) {
	ctx := context.Background()
	repo := NewProjectRepository(newTestDB(t), 2)
	p := newProject(t, repo, "Haus A")

	res, err := repo.ImportElements(ctx, p.ID, []ElementInput{
		{GUID: "g2", Name: "Wand", Type: "IfcWall", ClassificationCode: "C2.1", Layers: []LayerInput{
			{MaterialName: "Beton", Volume: 2, Fraction: 0.8},
			{MaterialName: "Dämmung", Volume: 0.5, Fraction: 0.2},
		}},
		{GUID: "g1", Name: "Decke", Type: "IfcSlab", Layers: []LayerInput{
			{MaterialName: "Beton", Volume: 4, Fraction: 1},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, ImportResult{ElementsCreated: 2, Layers: 3, MaterialsCreated: 2}, res)

	// Re-import replaces the layers of g2.
	res, err = repo.ImportElements(ctx, p.ID, []ElementInput{
		{GUID: "g2", Name: "Wand", Type: "IfcWall", Layers: []LayerInput{
			{MaterialName: "Holz", Volume: 1, Fraction: 1},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, ImportResult{ElementsUpdated: 1, Layers: 1, MaterialsCreated: 1}, res)

	in, err := repo.LoadCalculationInput(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, in.Elements, 2)
	assert.Equal(t, "g2", in.Elements[0].GUID, "import order is kept")
	assert.Equal(t, "g1", in.Elements[1].GUID)
	assert.Equal(t, 2, in.LayerCount())
	require.Len(t, in.Layers[in.Elements[0].ID], 1)
	assert.Equal(t, "Holz", in.Materials[in.Layers[in.Elements[0].ID][0].MaterialID].Name)
	assert.Len(t, in.Materials, 3)
}

func TestProjectRepository_MatchIsolation(t *testing.T) {
	ctx := context.Background()
	repo := NewProjectRepository(newTestDB(t), 0)
	a := newProject(t, repo, "A")
	b := newProject(t, repo, "B")
	for _, p := range []*Project{a, b} {
		_, err := repo.ImportElements(ctx, p.ID, []ElementInput{
			{GUID: "w", Layers: []LayerInput{{MaterialName: "Concrete", Volume: 1, Fraction: 1}}},
		})
		require.NoError(t, err)
	}

	require.NoError(t, repo.SetMatch(ctx, a.ID, "Concrete", &Match{
		MaterialID: "KBOB_abc", Source: material.SourceKBOB, Score: 1, Method: MatchManual,
	}))

	ma, err := repo.MaterialByName(ctx, a.ID, "Concrete")
	require.NoError(t, err)
	require.NotNil(t, ma.Match())
	assert.Equal(t, "abc", ma.Match().SourceID)
	assert.Equal(t, MatchManual, ma.Match().Method)

	mb, err := repo.MaterialByName(ctx, b.ID, "Concrete")
	require.NoError(t, err)
	assert.Nil(t, mb.Match())
}

func TestProjectRepository_SetMatchValidation(t *testing.T) {
	ctx := context.Background()
	repo := NewProjectRepository(newTestDB(t), 0)
	p := newProject(t, repo, "A")
	_, err := repo.ImportElements(ctx, p.ID, []ElementInput{
		{GUID: "w", Layers: []LayerInput{{MaterialName: "Beton", Volume: 1, Fraction: 1}}},
	})
	require.NoError(t, err)

	err = repo.SetMatch(ctx, p.ID, "Beton", &Match{
		MaterialID: "KBOB_1", Source: material.SourceOekobaudat, Method: MatchManual,
	})
	require.ErrorIs(t, err, ErrMatchSourceMismatch)

	err = repo.SetMatch(ctx, p.ID, "Beton", &Match{
		MaterialID: "KBOB_1", Source: material.SourceKBOB, Method: "guess",
	})
	require.ErrorIs(t, err, ErrInvalidMatchMethod)

	err = repo.SetMatch(ctx, p.ID, "Missing", nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestProjectRepository_ClearAllMatches(t *testing.T) {
	ctx := context.Background()
	repo := NewProjectRepository(newTestDB(t), 0)
	p := newProject(t, repo, "A")
	_, err := repo.ImportElements(ctx, p.ID, []ElementInput{
		{GUID: "w", Layers: []LayerInput{
			{MaterialName: "Beton", Volume: 1, Fraction: 0.5},
			{MaterialName: "Stahl", Volume: 1, Fraction: 0.5},
		}},
	})
	require.NoError(t, err)
	for _, name := range []string{"Beton", "Stahl"} {
		require.NoError(t, repo.SetMatch(ctx, p.ID, name, &Match{
			MaterialID: "KBOB_" + name, Source: material.SourceKBOB, Score: 0.95, Method: MatchFuzzy,
		}))
	}

	n, err := repo.ClearAllMatches(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	mats, err := repo.Materials(ctx, p.ID)
	require.NoError(t, err)
	for _, m := range mats {
		m := m
		assert.Nil(t, m.Match(), m.Name)
	}
}

func TestProjectRepository_SaveCalculation(t *testing.T) {
	ctx := context.Background()
	repo := NewProjectRepository(newTestDB(t), 1)
	p := newProject(t, repo, "A")
	_, err := repo.ImportElements(ctx, p.ID, []ElementInput{
		{GUID: "w", Layers: []LayerInput{{MaterialName: "Beton", Volume: 2, Fraction: 1}}},
	})
	require.NoError(t, err)

	in, err := repo.LoadCalculationInput(ctx, p.ID)
	require.NoError(t, err)
	el := in.Elements[0]
	layer := in.Layers[el.ID][0]

	vals := indicator.Values{indicator.GWPTotal: 504}
	el.SetIndicators(vals)
	layer.SetIndicators(vals)
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveCalculation(ctx, p.ID, []Element{el}, []Layer{layer}, vals, at))

	again, err := repo.LoadCalculationInput(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, vals, again.Project.TotalValues())
	assert.Equal(t, vals, again.Elements[0].IndicatorValues())
	assert.Equal(t, vals, again.Layers[el.ID][0].IndicatorValues())
	require.NotNil(t, again.Project.LastCalculated)
	assert.True(t, again.Project.LastCalculated.Equal(at))

	err = repo.SaveCalculation(ctx, "missing", nil, nil, vals, at)
	require.ErrorIs(t, err, ErrNotFound)
}

package calc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rshade/lcamatch/internal/classification"
	"github.com/rshade/lcamatch/internal/indicator"
	"github.com/rshade/lcamatch/internal/lcaerr"
	"github.com/rshade/lcamatch/internal/logging"
	"github.com/rshade/lcamatch/internal/material"
	"github.com/rshade/lcamatch/internal/store"
)

// ProjectStore is the project persistence recalculation needs.
type ProjectStore interface {
	LoadCalculationInput(ctx context.Context, projectID string) (*store.CalculationInput, error)
	SaveCalculation(
		ctx context.Context,
		projectID string,
		elements []store.Element,
		layers []store.Layer,
		totals indicator.Values,
		at time.Time,
	) error
	SetMatch(ctx context.Context, projectID, name string, match *store.Match) error
}

// MaterialLookup loads normalized materials by prefixed id. Unknown ids
// are absent from the map.
type MaterialLookup interface {
	GetMany(ctx context.Context, ids []string) (map[string]*material.NormalizedMaterial, error)
}

// Result summarizes one recalculation.
type Result struct {
	ProjectID    string           `json:"projectId"`
	Totals       indicator.Values `json:"totals"`
	ElementCount int              `json:"elementCount"`
	LayerCount   int              `json:"layerCount"`
	CalculatedAt time.Time        `json:"calculatedAt"`
	// ClearedMatches names materials whose match pointed at a normalized
	// material that no longer exists.
	ClearedMatches []string `json:"clearedMatches,omitempty"`
}

// Engine recalculates projects.
//
// Thread Safety: All methods are safe for concurrent use. Recalculations
// of the same project are serialized.
type Engine struct {
	projects  ProjectStore
	materials MaterialLookup
	classes   *classification.Registry
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*projectLock
}

// projectLock is removed from Engine.locks once refs drops to zero.
type projectLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClassifications sets the classification registry used for
// amortization. The default is classification.DefaultRegistry().
func WithClassifications(r *classification.Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.classes = r
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine.
func NewEngine(projects ProjectStore, materials MaterialLookup, opts ...Option) *Engine {
	e := &Engine{
		projects:  projects,
		materials: materials,
		classes:   classification.DefaultRegistry(),
		now:       time.Now,
		locks:     make(map[string]*projectLock),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// lock acquires the mutex of projectID and returns its release func.
func (e *Engine) lock(projectID string) (unlock func()) {
	e.mu.Lock()
	l, ok := e.locks[projectID]
	if !ok {
		l = &projectLock{}
		e.locks[projectID] = l
	}
	l.refs++
	e.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		e.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locks, projectID)
		}
		e.mu.Unlock()
	}
}

// Recalculate recomputes every layer, element and the project totals and
// persists them in one pass.
func (e *Engine) Recalculate(ctx context.Context, projectID string) (*Result, error) {
	log := logging.FromContext(ctx)
	start := time.Now()

	unlock := e.lock(projectID)
	defer unlock()

	log.Debug().
		Ctx(ctx).
		Str("component", "calc").
		Str("operation", "recalculate").
		Str("project_id", projectID).
		Msg("starting recalculation")

	in, err := e.projects.LoadCalculationInput(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, lcaerr.NotFound("project", projectID)
	}
	if err != nil {
		return nil, err
	}

	matched, cleared, err := e.resolveMatches(ctx, in)
	if err != nil {
		return nil, err
	}

	elements := make([]store.Element, 0, len(in.Elements))
	layers := make([]store.Layer, 0, in.LayerCount())
	totals := indicator.Values{}
	for _, el := range in.Elements {
		el := el
		elementValues := indicator.Values{}
		for _, l := range in.Layers[el.ID] {
			l := l
			pm := in.Materials[l.MaterialID]
			var nm *material.NormalizedMaterial
			if match := pm.Match(); match != nil {
				nm = matched[match.MaterialID]
			}
			var factors indicator.Values
			if nm != nil {
				factors = nm.Indicators
			}
			v := LayerValues(l.Volume, EffectiveDensity(&pm, nm), factors)
			l.SetIndicators(v)
			layers = append(layers, l)
			elementValues.Add(v)
		}
		el.SetIndicators(elementValues)
		elements = append(elements, el)
		totals.Add(elementValues)
	}

	at := e.now().UTC()
	if err := e.projects.SaveCalculation(ctx, projectID, elements, layers, totals, at); err != nil {
		log.Error().
			Ctx(ctx).
			Str("component", "calc").
			Str("operation", "recalculate").
			Str("project_id", projectID).
			Err(err).
			Msg("recalculation failed, previous totals kept")
		return nil, err
	}

	res := &Result{
		ProjectID:      projectID,
		Totals:         totals,
		ElementCount:   len(elements),
		LayerCount:     len(layers),
		CalculatedAt:   at,
		ClearedMatches: cleared,
	}

	log.Info().
		Ctx(ctx).
		Str("component", "calc").
		Str("operation", "recalculate").
		Str("project_id", projectID).
		Int("element_count", res.ElementCount).
		Int("layer_count", res.LayerCount).
		Int("cleared_matches", len(cleared)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("recalculation complete")

	return res, nil
}

// resolveMatches loads every matched normalized material. Matches whose
// material has disappeared are cleared in the store and in `in`.
func (e *Engine) resolveMatches(
	ctx context.Context,
	in *store.CalculationInput,
) (map[string]*material.NormalizedMaterial, []string, error) {
	ids := make([]string, 0, len(in.Materials))
	seen := make(map[string]bool)
	for _, pm := range in.Materials {
		pm := pm
		if match := pm.Match(); match != nil && !seen[match.MaterialID] {
			seen[match.MaterialID] = true
			ids = append(ids, match.MaterialID)
		}
	}
	sort.Strings(ids)

	found := map[string]*material.NormalizedMaterial{}
	if len(ids) > 0 {
		var err error
		found, err = e.materials.GetMany(ctx, ids)
		if err != nil {
			return nil, nil, fmt.Errorf("loading matched materials: %w", err)
		}
	}

	materialIDs := make([]string, 0, len(in.Materials))
	for id := range in.Materials {
		materialIDs = append(materialIDs, id)
	}
	sort.Strings(materialIDs)

	var cleared []string
	for _, id := range materialIDs {
		pm := in.Materials[id]
		match := pm.Match()
		if match == nil || found[match.MaterialID] != nil {
			continue
		}
		logging.FromContext(ctx).Warn().
			Ctx(ctx).
			Str("component", "calc").
			Str("operation", "clear_dangling_match").
			Str("project_id", pm.ProjectID).
			Str("material", pm.Name).
			Str("normalized_material_id", match.MaterialID).
			Msg("matched material no longer exists, marking unmatched")
		if err := e.projects.SetMatch(ctx, pm.ProjectID, pm.Name, nil); err != nil {
			return nil, nil, fmt.Errorf("clearing dangling match of %q: %w", pm.Name, err)
		}
		pm.MatchMaterialID = nil
		pm.MatchSource, pm.MatchSourceID, pm.MatchMethod = "", "", ""
		pm.MatchScore, pm.MatchedAt = nil, nil
		in.Materials[id] = pm
		cleared = append(cleared, pm.Name)
	}
	sort.Strings(cleared)
	return found, cleared, nil
}

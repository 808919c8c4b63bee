package calc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rshade/lcamatch/internal/indicator"
	"github.com/rshade/lcamatch/internal/lcaerr"
	"github.com/rshade/lcamatch/internal/material"
	"github.com/rshade/lcamatch/internal/store"
)

// UnmatchedCategory groups layers whose material has no match.
const UnmatchedCategory = "Unmatched"

// ElementTypeEmissions aggregates elements of one type.
type ElementTypeEmissions struct {
	Type       string           `json:"type"`
	Indicators indicator.Values `json:"indicators"`
	Volume     float64          `json:"volume"`
	Count      int              `json:"count"`
}

// MaterialEmissions aggregates all layers of one project material.
type MaterialEmissions struct {
	Name       string           `json:"name"`
	Indicators indicator.Values `json:"indicators"`
	Volume     float64          `json:"volume"`
	Density    *float64         `json:"density"`
	MatchedTo  *store.Match     `json:"matchedTo"`
}

// CategoryEmissions aggregates layers by the category of their matched
// material.
type CategoryEmissions struct {
	Category   string           `json:"category"`
	Indicators indicator.Values `json:"indicators"`
	Volume     float64          `json:"volume"`
}

// RelativeEmissions are totals per reference area and year.
type RelativeEmissions struct {
	Indicators indicator.Values `json:"indicators"`
	AreaValue  float64          `json:"areaValue"`
	AreaUnit   string           `json:"areaUnit,omitempty"`
	AreaType   string           `json:"areaType,omitempty"`
	// AmortizationYears is set when the project overrides the per-element
	// lifetimes.
	AmortizationYears *int `json:"amortizationYears,omitempty"`
}

// Emissions is the read model of a calculated project.
type Emissions struct {
	ProjectID      string                 `json:"projectId"`
	Totals         indicator.Values       `json:"totals"`
	LastCalculated *time.Time             `json:"lastCalculated"`
	ByElementType  []ElementTypeEmissions `json:"byElementType"`
	ByMaterial     []MaterialEmissions    `json:"byMaterial"`
	ByCategory     []CategoryEmissions    `json:"byCategory"`
	Relative       *RelativeEmissions     `json:"relative,omitempty"`
}

// Emissions builds the breakdowns from the cached indicators of the last
// recalculation. Nothing is recomputed.
//
//nolint:funlen // one pass over elements and layers feeds every grouping
func (e *Engine) Emissions(ctx context.Context, projectID string) (*Emissions, error) {
	in, err := e.projects.LoadCalculationInput(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, lcaerr.NotFound("project", projectID)
	}
	if err != nil {
		return nil, err
	}

	matched, err := e.matchedMaterials(ctx, in)
	if err != nil {
		return nil, err
	}

	byType := map[string]*ElementTypeEmissions{}
	byMaterial := map[string]*MaterialEmissions{}
	byCategory := map[string]*CategoryEmissions{}

	for _, el := range in.Elements {
		el := el
		t := byType[el.Type]
		if t == nil {
			t = &ElementTypeEmissions{Type: el.Type, Indicators: indicator.Values{}}
			byType[el.Type] = t
		}
		t.Count++
		t.Indicators.Add(el.IndicatorValues())

		for _, l := range in.Layers[el.ID] {
			l := l
			pm := in.Materials[l.MaterialID]
			v := l.IndicatorValues()
			t.Volume += l.Volume

			m := byMaterial[pm.Name]
			if m == nil {
				match := pm.Match()
				var nm *material.NormalizedMaterial
				if match != nil {
					nm = matched[match.MaterialID]
				}
				m = &MaterialEmissions{
					Name:       pm.Name,
					Indicators: indicator.Values{},
					Density:    EffectiveDensity(&pm, nm),
					MatchedTo:  match,
				}
				byMaterial[pm.Name] = m
			}
			m.Indicators.Add(v)
			m.Volume += l.Volume

			category := UnmatchedCategory
			if match := pm.Match(); match != nil {
				if nm := matched[match.MaterialID]; nm != nil {
					category = nm.Category
				}
			}
			c := byCategory[category]
			if c == nil {
				c = &CategoryEmissions{Category: category, Indicators: indicator.Values{}}
				byCategory[category] = c
			}
			c.Indicators.Add(v)
			c.Volume += l.Volume
		}
	}

	out := &Emissions{
		ProjectID:      projectID,
		Totals:         in.Project.TotalValues(),
		LastCalculated: in.Project.LastCalculated,
		ByElementType:  sortedGroups(byType),
		ByMaterial:     sortedGroups(byMaterial),
		ByCategory:     sortedGroups(byCategory),
		Relative:       e.relative(in),
	}
	return out, nil
}

// matchedMaterials loads the normalized materials referenced by matches.
func (e *Engine) matchedMaterials(
	ctx context.Context,
	in *store.CalculationInput,
) (map[string]*material.NormalizedMaterial, error) {
	ids := make([]string, 0, len(in.Materials))
	for _, pm := range in.Materials {
		pm := pm
		if match := pm.Match(); match != nil {
			ids = append(ids, match.MaterialID)
		}
	}
	if len(ids) == 0 {
		return map[string]*material.NormalizedMaterial{}, nil
	}
	sort.Strings(ids)
	found, err := e.materials.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading matched materials: %w", err)
	}
	return found, nil
}

// relative divides each element's cached totals by area × its amortization
// years and sums the quotients. It returns nil without a positive area.
func (e *Engine) relative(in *store.CalculationInput) *RelativeEmissions {
	p := in.Project
	if p.AreaValue == nil || *p.AreaValue <= 0 {
		return nil
	}
	area := *p.AreaValue

	var override *int
	if p.AmortizationOverride != nil && *p.AmortizationOverride > 0 {
		override = p.AmortizationOverride
	}

	rel := indicator.Values{}
	for _, el := range in.Elements {
		el := el
		var years int
		if override != nil {
			years = *override
		} else {
			years = e.classes.AmortizationYears(p.ClassificationSystem, el.ClassificationCode)
		}
		if years <= 0 {
			continue
		}
		scaled, ok := el.IndicatorValues().DivideBy(area * float64(years))
		if !ok {
			continue
		}
		rel.Add(scaled)
	}

	return &RelativeEmissions{
		Indicators:        rel,
		AreaValue:         area,
		AreaUnit:          p.AreaUnit,
		AreaType:          p.AreaType,
		AmortizationYears: override,
	}
}

// sortedGroups returns the values of m ordered by key.
func sortedGroups[T any](m map[string]*T) []T {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, *m[k])
	}
	return out
}

package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/rshade/lcamatch/internal/calc"
	"github.com/rshade/lcamatch/internal/lcaerr"
	"github.com/rshade/lcamatch/internal/logging"
	"github.com/rshade/lcamatch/internal/material"
	"github.com/rshade/lcamatch/internal/store"
)

// FractionTolerance is how far the layer fractions of an element may
// deviate from 1.
const FractionTolerance = 1e-4

// Area is a project reference area, e.g. energy reference area in m².
type Area struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// CreateProjectRequest holds the fields of a new project.
type CreateProjectRequest struct {
	Name                 string `json:"name"`
	PreferredSource      string `json:"preferredSource,omitempty"`
	ClassificationSystem string `json:"classificationSystem,omitempty"`
	Area                 *Area  `json:"calculationArea,omitempty"`
	AmortizationOverride *int   `json:"amortizationYears,omitempty"`
}

// CreateProject validates req and stores a new project.
func (s *Service) CreateProject(ctx context.Context, req CreateProjectRequest) (*store.Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, lcaerr.Validation("missing_project_name", "project name is required")
	}
	p := &store.Project{Name: name, ClassificationSystem: strings.TrimSpace(req.ClassificationSystem)}

	if req.PreferredSource != "" {
		src, ok := material.ParseSource(req.PreferredSource)
		if !ok {
			return nil, lcaerr.Validation("unknown_source", "unknown source %q", req.PreferredSource)
		}
		p.PreferredSource = string(src)
	}
	if p.ClassificationSystem != "" {
		if _, ok := s.classes.Get(p.ClassificationSystem); !ok {
			logging.FromContext(ctx).Debug().
				Ctx(ctx).
				Str("component", "service").
				Str("operation", "create_project").
				Str("classification_system", p.ClassificationSystem).
				Strs("known_systems", s.classes.IDs()).
				Msg("unregistered classification system, default amortization applies")
		}
	}
	if a := req.Area; a != nil {
		if a.Value <= 0 || math.IsNaN(a.Value) || math.IsInf(a.Value, 0) {
			return nil, lcaerr.Validation("invalid_area", "calculation area must be positive")
		}
		p.AreaType, p.AreaValue, p.AreaUnit = a.Type, &a.Value, a.Unit
	}
	if req.AmortizationOverride != nil {
		if *req.AmortizationOverride <= 0 {
			return nil, lcaerr.Validation("invalid_amortization", "amortization years must be positive")
		}
		p.AmortizationOverride = req.AmortizationOverride
	}

	if err := s.projects.CreateProject(ctx, p); err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info().
		Ctx(ctx).
		Str("component", "service").
		Str("operation", "create_project").
		Str("project_id", p.ID).
		Msg("project created")

	return p, nil
}

// GetProject loads one project.
func (s *Service) GetProject(ctx context.Context, id string) (*store.Project, error) {
	p, err := s.projects.GetProject(ctx, id)
	if err != nil {
		return nil, notFound(err, "project", id)
	}
	return p, nil
}

// ListProjects returns every project.
func (s *Service) ListProjects(ctx context.Context) ([]store.Project, error) {
	return s.projects.ListProjects(ctx)
}

// ProjectMaterials lists the distinct material names of a project with
// their matches.
func (s *Service) ProjectMaterials(ctx context.Context, projectID string) ([]store.ProjectMaterial, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.projects.Materials(ctx, projectID)
}

// ImportResult reports an element import and the recalculation after it.
type ImportResult struct {
	store.ImportResult
	Calculation *calc.Result `json:"recalculatedTotals"`
}

// ImportElements stores parsed elements with their material layers and
// recalculates the project. Layer fractions of each element must sum to 1.
func (s *Service) ImportElements(ctx context.Context, projectID string, elements []store.ElementInput) (*ImportResult, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	if err := validateElements(elements); err != nil {
		return nil, err
	}

	res, err := s.projects.ImportElements(ctx, projectID, elements)
	if err != nil {
		return nil, err
	}
	calcRes, err := s.engine.Recalculate(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &ImportResult{ImportResult: res, Calculation: calcRes}, nil
}

func validateElements(elements []store.ElementInput) error {
	seen := make(map[string]bool, len(elements))
	for i, el := range elements {
		guid := strings.TrimSpace(el.GUID)
		if guid == "" {
			return lcaerr.Validation("missing_guid", "element %d has no GUID", i)
		}
		if seen[guid] {
			return lcaerr.Validation("duplicate_guid", "element GUID %q appears more than once", guid)
		}
		seen[guid] = true

		if len(el.Layers) == 0 {
			continue
		}
		sum := 0.0
		for _, l := range el.Layers {
			if strings.TrimSpace(l.MaterialName) == "" {
				return lcaerr.Validation("missing_material_name", "element %q has a layer without material", guid)
			}
			if l.Volume < 0 || math.IsNaN(l.Volume) || math.IsInf(l.Volume, 0) {
				return lcaerr.Validation("invalid_volume", "element %q has an invalid layer volume", guid)
			}
			sum += l.Fraction
		}
		if math.Abs(sum-1) > FractionTolerance {
			return lcaerr.DataIntegrity("fraction_sum",
				"layer fractions of element %q sum to %.6f, not 1", guid, sum)
		}
	}
	return nil
}

// SourceChange reports the outcome of SetPreferredSource.
type SourceChange struct {
	Source         material.Source `json:"source"`
	Changed        bool            `json:"changed"`
	ClearedMatches int             `json:"clearedMatches"`
	Calculation    *calc.Result    `json:"recalculatedTotals,omitempty"`
}

// SetPreferredSource stores the project's data source. A change of source
// clears every match so no match of the old source survives.
func (s *Service) SetPreferredSource(ctx context.Context, projectID, sourceID string) (*SourceChange, error) {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	a, err := s.registry.Get(sourceID)
	if err != nil {
		return nil, err
	}
	out := &SourceChange{Source: a.Info().ID}
	if p.PreferredSource == string(out.Source) {
		return out, nil
	}

	if err := s.projects.SetPreferredSource(ctx, projectID, out.Source); err != nil {
		return nil, notFound(err, "project", projectID)
	}
	n, res, err := s.matcher.ClearAllMatches(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out.Changed, out.ClearedMatches, out.Calculation = true, n, res

	logging.FromContext(ctx).Info().
		Ctx(ctx).
		Str("component", "service").
		Str("operation", "set_preferred_source").
		Str("project_id", projectID).
		Str("from", p.PreferredSource).
		Str("to", string(out.Source)).
		Int("cleared_matches", n).
		Msg("preferred source changed")

	return out, nil
}

// SetDensity sets or, with nil, removes the user density of a project
// material and recalculates.
func (s *Service) SetDensity(ctx context.Context, projectID, name string, density *float64) (*calc.Result, error) {
	if density != nil && (*density <= 0 || math.IsNaN(*density) || math.IsInf(*density, 0)) {
		return nil, lcaerr.Validation("invalid_density", "density must be positive")
	}
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	if err := s.projects.SetDensity(ctx, projectID, name, density); err != nil {
		return nil, notFound(err, "material", name)
	}
	return s.engine.Recalculate(ctx, projectID)
}

// notFound maps store.ErrNotFound onto the error taxonomy.
func notFound(err error, what, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return lcaerr.NotFound(what, id)
	}
	return err
}

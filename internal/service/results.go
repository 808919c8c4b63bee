package service

import (
	"context"

	"github.com/rshade/lcamatch/internal/calc"
)

// Recalculate recomputes the cached indicators of a project.
func (s *Service) Recalculate(ctx context.Context, projectID string) (*calc.Result, error) {
	return s.engine.Recalculate(ctx, projectID)
}

// GetEmissions returns totals and breakdowns of the last recalculation,
// plus relative figures when the project has a reference area.
func (s *Service) GetEmissions(ctx context.Context, projectID string) (*calc.Emissions, error) {
	return s.engine.Emissions(ctx, projectID)
}

// ExportIndicators returns the per-element values to embed into the IFC
// file under calc.PropertySetName.
func (s *Service) ExportIndicators(ctx context.Context, projectID string) (*calc.Export, error) {
	return s.engine.ExportIndicators(ctx, projectID)
}

package service

import (
	"context"

	"github.com/rshade/lcamatch/internal/calc"
	"github.com/rshade/lcamatch/internal/matcher"
	"github.com/rshade/lcamatch/internal/store"
)

// FindCandidates ranks normalized materials for a project material name.
// Without an explicit source the project's preferred source is searched,
// or every source when the project has none.
func (s *Service) FindCandidates(
	ctx context.Context,
	projectID, name string,
	opts matcher.Options,
) (*matcher.Candidates, error) {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if opts.Source == "" {
		opts.Source = p.PreferredSource
	}
	return s.matcher.FindCandidates(ctx, name, opts)
}

// ManualMatchRequest is a user-chosen match.
type ManualMatchRequest struct {
	MaterialName string `json:"materialName"`
	MaterialID   string `json:"normalizedMaterialId"`
	Source       string `json:"source,omitempty"`
	SourceID     string `json:"sourceId,omitempty"`
}

// ApplyManualMatch matches a project material to the chosen normalized
// material and recalculates the project.
func (s *Service) ApplyManualMatch(ctx context.Context, projectID string, req ManualMatchRequest) (*matcher.MatchOutcome, error) {
	return s.matcher.ApplyMatch(ctx, matcher.MatchRequest{
		ProjectID:    projectID,
		MaterialName: req.MaterialName,
		MaterialID:   req.MaterialID,
		Source:       req.Source,
		SourceID:     req.SourceID,
		Method:       store.MatchManual,
	})
}

// ClearMatch marks one project material unmatched.
func (s *Service) ClearMatch(ctx context.Context, projectID, name string) (*matcher.MatchOutcome, error) {
	return s.matcher.ClearMatch(ctx, projectID, name)
}

// ClearedMatches reports ClearAllMatches.
type ClearedMatches struct {
	Cleared     int          `json:"cleared"`
	Calculation *calc.Result `json:"recalculatedTotals"`
}

// ClearAllMatches marks every material of the project unmatched.
func (s *Service) ClearAllMatches(ctx context.Context, projectID string) (*ClearedMatches, error) {
	n, res, err := s.matcher.ClearAllMatches(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &ClearedMatches{Cleared: n, Calculation: res}, nil
}

// AutoMatch matches every unmatched material whose best candidate scores
// at least the auto-match threshold.
func (s *Service) AutoMatch(ctx context.Context, projectID, sourceID string) (*matcher.AutoMatchResult, error) {
	return s.matcher.AutoMatch(ctx, projectID, sourceID)
}

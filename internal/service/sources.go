package service

import (
	"context"
	"strings"

	"github.com/rshade/lcamatch/internal/lcaerr"
	"github.com/rshade/lcamatch/internal/material"
	"github.com/rshade/lcamatch/internal/registry"
	"github.com/rshade/lcamatch/internal/source"
)

// SearchMaterials searches one source, or every source when sourceID is
// empty or "all".
func (s *Service) SearchMaterials(ctx context.Context, query, sourceID string, limit int) (registry.SearchResult, error) {
	if strings.TrimSpace(sourceID) == "" {
		sourceID = registry.AllSources
	}
	return s.registry.Search(ctx, sourceID, query, material.SearchOptions{Limit: limit})
}

// GetMaterial loads one normalized material by its prefixed id.
func (s *Service) GetMaterial(ctx context.Context, id string) (*material.NormalizedMaterial, error) {
	m, ok, err := s.registry.ResolveMaterial(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, lcaerr.NotFound("material", id)
	}
	return m, nil
}

// GetSourceList describes every registered source, highest priority
// first.
func (s *Service) GetSourceList() []source.Info {
	return s.registry.ListInfo()
}

// SyncReport is the outcome of one source sync. Error is set when the
// pull failed; the stored data is then left as it was.
type SyncReport struct {
	material.SyncResult
	Synced int    `json:"synced"`
	Error  string `json:"error,omitempty"`
}

func newSyncReport(res material.SyncResult, err error) SyncReport {
	r := SyncReport{SyncResult: res, Synced: res.Synced()}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// TriggerSync pulls one source now. Upstream failures are reported in the
// result, not as an error; only an unknown source is an error.
func (s *Service) TriggerSync(ctx context.Context, sourceID string) (SyncReport, error) {
	if _, err := s.registry.Get(sourceID); err != nil {
		return SyncReport{}, err
	}
	res, err := s.registry.Sync(ctx, sourceID)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return SyncReport{}, ctxErr
	}
	return newSyncReport(res, err), nil
}

// SyncAll pulls every registered source concurrently.
func (s *Service) SyncAll(ctx context.Context) ([]SyncReport, error) {
	outcomes, _ := s.registry.SyncAll(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]SyncReport, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, newSyncReport(o.Result, o.Err))
	}
	return out, nil
}

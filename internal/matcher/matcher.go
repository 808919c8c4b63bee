package matcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rshade/lcamatch/internal/calc"
	"github.com/rshade/lcamatch/internal/config"
	"github.com/rshade/lcamatch/internal/lcaerr"
	"github.com/rshade/lcamatch/internal/logging"
	"github.com/rshade/lcamatch/internal/material"
	"github.com/rshade/lcamatch/internal/preprocess"
	"github.com/rshade/lcamatch/internal/registry"
	"github.com/rshade/lcamatch/internal/source"
	"github.com/rshade/lcamatch/internal/store"
)

// candidatePool is how many results per wanted candidate are requested
// from a source before rescoring.
const candidatePool = 3

// autoMatchConcurrency bounds parallel candidate lookups in AutoMatch.
const autoMatchConcurrency = 4

// Sources is the part of the source registry the matcher uses.
type Sources interface {
	Get(id string) (source.Adapter, error)
	Adapters() []source.Adapter
	Search(ctx context.Context, sourceID, query string, opts material.SearchOptions) (registry.SearchResult, error)
	ResolveMaterial(ctx context.Context, id string) (*material.NormalizedMaterial, bool, error)
}

// Projects is the project persistence the matcher uses.
type Projects interface {
	GetProject(ctx context.Context, id string) (*store.Project, error)
	Materials(ctx context.Context, projectID string) ([]store.ProjectMaterial, error)
	SetMatch(ctx context.Context, projectID, name string, match *store.Match) error
	ClearAllMatches(ctx context.Context, projectID string) (int, error)
}

// Recalculator recomputes a project after its matches changed.
type Recalculator interface {
	Recalculate(ctx context.Context, projectID string) (*calc.Result, error)
}

// Options narrows FindCandidates.
type Options struct {
	// Source is a source id or registry.AllSources. Empty means all.
	Source string
	// Threshold drops candidates scoring below it. Zero uses the matcher
	// default.
	Threshold float64
	Limit     int
}

// Candidate is a scored normalized material.
type Candidate struct {
	Material material.NormalizedMaterial `json:"material"`
	Score    float64                     `json:"score"`
}

// Candidates is the outcome of FindCandidates.
type Candidates struct {
	Query      string      `json:"query"`
	Cleaned    string      `json:"cleaned"`
	Candidates []Candidate `json:"candidates"`
	// Fallback is true when a source answered from the sample dataset.
	// Such candidates cannot be applied.
	Fallback bool `json:"fallback,omitempty"`
	Syncing  bool `json:"syncing,omitempty"`
}

// Matcher finds candidates and maintains project matches.
//
// Thread Safety: All methods are safe for concurrent use.
type Matcher struct {
	sources       Sources
	projects      Projects
	recalc        Recalculator
	threshold     float64
	autoThreshold float64
	limit         int
	now           func() time.Time
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithThresholds sets the candidate and auto-match thresholds. Values
// outside (0, 1] are ignored.
func WithThresholds(candidate, auto float64) Option {
	return func(m *Matcher) {
		if candidate > 0 && candidate <= 1 {
			m.threshold = candidate
		}
		if auto > 0 && auto <= 1 {
			m.autoThreshold = auto
		}
	}
}

// WithLimit sets the default candidate limit.
func WithLimit(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.limit = n
		}
	}
}

// WithClock overrides time.Now for match timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) { m.now = now }
}

// New creates a Matcher.
func New(sources Sources, projects Projects, recalc Recalculator, opts ...Option) *Matcher {
	m := &Matcher{
		sources:       sources,
		projects:      projects,
		recalc:        recalc,
		threshold:     config.DefaultMatchThreshold,
		autoThreshold: config.DefaultAutoMatchThreshold,
		limit:         config.DefaultMatchLimit,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FindCandidates searches for materials resembling name and returns them
// ranked by score, best first.
func (m *Matcher) FindCandidates(ctx context.Context, name string, opts Options) (*Candidates, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, lcaerr.Validation("missing_material_name", "material name is required")
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = m.threshold
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = m.limit
	}

	adapters, err := m.adaptersFor(opts.Source)
	if err != nil {
		return nil, err
	}

	out := &Candidates{Query: name, Cleaned: preprocess.CleanQuery(name), Candidates: []Candidate{}}
	found := make([]registry.SearchResult, len(adapters))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range adapters {
		i, a := i, a
		g.Go(func() error {
			res, err := m.searchSource(gctx, a, name, limit*candidatePool)
			found[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, res := range found {
		out.Fallback = out.Fallback || res.Fallback
		out.Syncing = out.Syncing || res.Syncing
		for _, mat := range res.Materials {
			mat := mat
			if seen[mat.ID] {
				continue
			}
			seen[mat.ID] = true
			s := bestScore(name, out.Cleaned, &mat)
			if s < threshold {
				continue
			}
			out.Candidates = append(out.Candidates, Candidate{Material: mat, Score: s})
		}
	}

	sort.SliceStable(out.Candidates, func(i, j int) bool {
		a, b := out.Candidates[i], out.Candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Material.Name != b.Material.Name {
			return a.Material.Name < b.Material.Name
		}
		return a.Material.ID < b.Material.ID
	})
	if len(out.Candidates) > limit {
		out.Candidates = out.Candidates[:limit]
	}

	logging.FromContext(ctx).Debug().
		Ctx(ctx).
		Str("component", "matcher").
		Str("operation", "find_candidates").
		Str("material", name).
		Str("cleaned", out.Cleaned).
		Int("candidate_count", len(out.Candidates)).
		Bool("fallback", out.Fallback).
		Msg("candidates ranked")

	return out, nil
}

// adaptersFor resolves the sources to search. An empty id or
// registry.AllSources selects every configured source.
func (m *Matcher) adaptersFor(sourceID string) ([]source.Adapter, error) {
	if sourceID == "" || strings.EqualFold(sourceID, registry.AllSources) {
		var out []source.Adapter
		for _, a := range m.sources.Adapters() {
			if a.Info().IsConfigured {
				out = append(out, a)
			}
		}
		return out, nil
	}
	a, err := m.sources.Get(sourceID)
	if err != nil {
		return nil, err
	}
	return []source.Adapter{a}, nil
}

// searchSource tries the search terms suited to a in order and returns the
// first non-empty result.
func (m *Matcher) searchSource(ctx context.Context, a source.Adapter, name string, limit int) (registry.SearchResult, error) {
	info := a.Info()
	var terms []string
	if info.SearchStyle == source.SearchKeyword {
		terms = preprocess.ExtractKeywords(name)
	} else {
		terms = preprocess.SearchTerms(name)
	}

	var last registry.SearchResult
	for _, term := range terms {
		if len([]rune(strings.TrimSpace(term))) < source.MinQueryLength {
			continue
		}
		res, err := m.sources.Search(ctx, string(info.ID), term, material.SearchOptions{Limit: limit})
		if err != nil {
			return registry.SearchResult{}, err
		}
		if len(res.Materials) > 0 {
			return res, nil
		}
		last = res
	}
	return last, nil
}

// bestScore rates mat against the raw and the cleaned name, using the
// material name and each localized name.
func bestScore(raw, cleaned string, mat *material.NormalizedMaterial) float64 {
	names := []string{mat.Name}
	langs := make([]string, 0, len(mat.LocalizedNames))
	for lang := range mat.LocalizedNames {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		names = append(names, mat.LocalizedNames[lang])
	}

	best := 0.0
	for _, n := range names {
		best = max(best, Score(raw, n))
		if cleaned != raw {
			best = max(best, Score(cleaned, n))
		}
	}
	return best
}

// MatchRequest applies a match to one project material.
type MatchRequest struct {
	ProjectID    string            `json:"projectId"`
	MaterialName string            `json:"materialName"`
	MaterialID   string            `json:"normalizedMaterialId"`
	Source       string            `json:"source,omitempty"`
	SourceID     string            `json:"sourceId,omitempty"`
	Method       store.MatchMethod `json:"method,omitempty"`
	// Score defaults to the similarity of the two names.
	Score *float64 `json:"score,omitempty"`
}

// MatchOutcome reports an applied or cleared match and the totals after
// recalculation.
type MatchOutcome struct {
	Success     bool         `json:"success"`
	Match       *store.Match `json:"match,omitempty"`
	Calculation *calc.Result `json:"recalculatedTotals"`
}

// ApplyMatch sets the match of one project material and recalculates the
// project. Applying the same match twice is harmless.
func (m *Matcher) ApplyMatch(ctx context.Context, req MatchRequest) (*MatchOutcome, error) {
	if strings.TrimSpace(req.MaterialName) == "" {
		return nil, lcaerr.Validation("missing_material_name", "material name is required")
	}
	method := req.Method
	if method == "" {
		method = store.MatchManual
	}
	if !method.Valid() {
		return nil, lcaerr.Validation("invalid_match_method", "unknown match method %q", req.Method)
	}

	src, sourceID, err := material.ParseID(req.MaterialID)
	if err != nil {
		return nil, lcaerr.Validation("invalid_material_id", "invalid material id %q", req.MaterialID)
	}
	if req.Source != "" {
		want, ok := material.ParseSource(req.Source)
		if !ok || want != src {
			return nil, lcaerr.Validation("source_mismatch",
				"material id %q does not belong to source %q", req.MaterialID, req.Source)
		}
	}
	if req.SourceID != "" && req.SourceID != sourceID {
		return nil, lcaerr.Validation("source_mismatch",
			"material id %q does not carry source id %q", req.MaterialID, req.SourceID)
	}

	if _, err := m.project(ctx, req.ProjectID); err != nil {
		return nil, err
	}

	nm, ok, err := m.sources.ResolveMaterial(ctx, req.MaterialID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, lcaerr.NotFound("material", req.MaterialID)
	}

	score := Score(req.MaterialName, nm.Name)
	if req.Score != nil {
		score = *req.Score
	}
	match := &store.Match{
		MaterialID: nm.ID,
		Source:     nm.Source,
		SourceID:   nm.SourceID,
		Score:      score,
		Method:     method,
		MatchedAt:  m.now().UTC(),
	}
	if err := m.setMatch(ctx, req.ProjectID, req.MaterialName, match); err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info().
		Ctx(ctx).
		Str("component", "matcher").
		Str("operation", "apply_match").
		Str("project_id", req.ProjectID).
		Str("material", req.MaterialName).
		Str("normalized_material_id", nm.ID).
		Str("method", string(method)).
		Float64("score", score).
		Msg("match applied")

	res, err := m.recalc.Recalculate(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	return &MatchOutcome{Success: true, Match: match, Calculation: res}, nil
}

// ClearMatch marks one project material unmatched and recalculates.
func (m *Matcher) ClearMatch(ctx context.Context, projectID, name string) (*MatchOutcome, error) {
	if _, err := m.project(ctx, projectID); err != nil {
		return nil, err
	}
	if err := m.setMatch(ctx, projectID, name, nil); err != nil {
		return nil, err
	}
	res, err := m.recalc.Recalculate(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &MatchOutcome{Success: true, Calculation: res}, nil
}

// ClearAllMatches marks every material of the project unmatched and
// recalculates. It returns how many matches were removed.
func (m *Matcher) ClearAllMatches(ctx context.Context, projectID string) (int, *calc.Result, error) {
	if _, err := m.project(ctx, projectID); err != nil {
		return 0, nil, err
	}
	n, err := m.projects.ClearAllMatches(ctx, projectID)
	if err != nil {
		return 0, nil, err
	}

	logging.FromContext(ctx).Info().
		Ctx(ctx).
		Str("component", "matcher").
		Str("operation", "clear_all_matches").
		Str("project_id", projectID).
		Int("cleared", n).
		Msg("matches cleared")

	res, err := m.recalc.Recalculate(ctx, projectID)
	if err != nil {
		return 0, nil, err
	}
	return n, res, nil
}

// AutoMatched is one match made by AutoMatch.
type AutoMatched struct {
	Name       string            `json:"name"`
	MaterialID string            `json:"normalizedMaterialId"`
	Score      float64           `json:"score"`
	Method     store.MatchMethod `json:"method"`
}

// AutoMatchResult summarizes AutoMatch.
type AutoMatchResult struct {
	Matched     []AutoMatched `json:"matched"`
	Unmatched   []string      `json:"unmatched"`
	Calculation *calc.Result  `json:"recalculatedTotals,omitempty"`
}

// AutoMatch matches every unmatched material of the project to its best
// candidate when that candidate scores at least the auto-match threshold.
// An empty sourceID uses the project's preferred source, or all sources
// when none is set. The project is recalculated once at the end.
//
//nolint:funlen // lookup, apply and recalc phases share the result
func (m *Matcher) AutoMatch(ctx context.Context, projectID, sourceID string) (*AutoMatchResult, error) {
	p, err := m.project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if sourceID == "" {
		sourceID = p.PreferredSource
	}
	if sourceID == "" {
		sourceID = registry.AllSources
	}

	mats, err := m.projects.Materials(ctx, projectID)
	if err != nil {
		return nil, err
	}
	var pending []string
	for i := range mats {
		if mats[i].Match() == nil {
			pending = append(pending, mats[i].Name)
		}
	}
	sort.Strings(pending)

	best := make([]*Candidate, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(autoMatchConcurrency)
	for i, name := range pending {
		i, name := i, name
		g.Go(func() error {
			found, err := m.FindCandidates(gctx, name, Options{Source: sourceID, Threshold: m.autoThreshold, Limit: 1})
			if err != nil {
				return err
			}
			if len(found.Candidates) == 0 || source.IsFallback(&found.Candidates[0].Material) {
				return nil
			}
			best[i] = &found.Candidates[0]
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &AutoMatchResult{Matched: []AutoMatched{}, Unmatched: []string{}}
	at := m.now().UTC()
	for i, name := range pending {
		c := best[i]
		if c == nil {
			out.Unmatched = append(out.Unmatched, name)
			continue
		}
		method := store.MatchFuzzy
		if c.Score >= ScoreExact {
			method = store.MatchExact
		}
		match := &store.Match{
			MaterialID: c.Material.ID,
			Source:     c.Material.Source,
			SourceID:   c.Material.SourceID,
			Score:      c.Score,
			Method:     method,
			MatchedAt:  at,
		}
		if err := m.setMatch(ctx, projectID, name, match); err != nil {
			return nil, err
		}
		out.Matched = append(out.Matched, AutoMatched{
			Name:       name,
			MaterialID: c.Material.ID,
			Score:      c.Score,
			Method:     method,
		})
	}

	logging.FromContext(ctx).Info().
		Ctx(ctx).
		Str("component", "matcher").
		Str("operation", "auto_match").
		Str("project_id", projectID).
		Str("source", sourceID).
		Int("matched", len(out.Matched)).
		Int("unmatched", len(out.Unmatched)).
		Msg("auto-match complete")

	if len(out.Matched) > 0 {
		res, err := m.recalc.Recalculate(ctx, projectID)
		if err != nil {
			return nil, err
		}
		out.Calculation = res
	}
	return out, nil
}

func (m *Matcher) project(ctx context.Context, id string) (*store.Project, error) {
	p, err := m.projects.GetProject(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, lcaerr.NotFound("project", id)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// setMatch maps store errors onto the error taxonomy.
func (m *Matcher) setMatch(ctx context.Context, projectID, name string, match *store.Match) error {
	err := m.projects.SetMatch(ctx, projectID, name, match)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return lcaerr.NotFound("material", name)
	case errors.Is(err, store.ErrInvalidMatchMethod), errors.Is(err, store.ErrMatchSourceMismatch):
		return lcaerr.New(lcaerr.KindValidation, "invalid_match", err)
	default:
		return fmt.Errorf("saving match of %q: %w", name, err)
	}
}

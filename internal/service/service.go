// Package service exposes the operations callers use: material search,
// project import, matching, recalculation and export. It composes the
// source registry, the matcher and the calculation engine over one store.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"

	"github.com/rshade/lcamatch/internal/cache"
	"github.com/rshade/lcamatch/internal/calc"
	"github.com/rshade/lcamatch/internal/classification"
	"github.com/rshade/lcamatch/internal/config"
	"github.com/rshade/lcamatch/internal/logging"
	"github.com/rshade/lcamatch/internal/matcher"
	"github.com/rshade/lcamatch/internal/registry"
	"github.com/rshade/lcamatch/internal/source"
	"github.com/rshade/lcamatch/internal/source/kbob"
	"github.com/rshade/lcamatch/internal/source/oekobaudat"
	"github.com/rshade/lcamatch/internal/source/openepd"
	"github.com/rshade/lcamatch/internal/store"
)

// Service is the external operation set.
//
// Thread Safety: All methods are safe for concurrent use.
type Service struct {
	projects  *store.ProjectRepository
	materials *store.MaterialRepository
	registry  *registry.Registry
	matcher   *matcher.Matcher
	engine    *calc.Engine
	classes   *classification.Registry

	closers []func() error
}

// Deps are the components a Service is built from.
type Deps struct {
	Projects  *store.ProjectRepository
	Materials *store.MaterialRepository
	Registry  *registry.Registry
	// Classifications defaults to classification.DefaultRegistry().
	Classifications *classification.Registry
	Matching        config.MatchingConfig
}

// New wires a Service from already built components.
func New(d Deps) *Service {
	classes := d.Classifications
	if classes == nil {
		classes = classification.DefaultRegistry()
	}
	engine := calc.NewEngine(d.Projects, d.Materials, calc.WithClassifications(classes))
	m := matcher.New(d.Registry, d.Projects, engine,
		matcher.WithThresholds(d.Matching.Threshold, d.Matching.AutoMatchThreshold),
		matcher.WithLimit(d.Matching.Limit),
	)
	return &Service{
		projects:  d.Projects,
		materials: d.Materials,
		registry:  d.Registry,
		matcher:   m,
		engine:    engine,
		classes:   classes,
	}
}

// Open builds a Service from cfg: it opens the database and the search
// cache and registers every enabled source. Close releases both.
func Open(ctx context.Context, cfg *config.Config) (*Service, error) {
	db, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	searchCache, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		closeDB(db)
		return nil, err
	}

	batchSize := cfg.Calculation.BatchSize
	materials := store.NewMaterialRepository(db, batchSize)
	reg := registry.New(
		registry.WithCache(searchCache),
		registry.WithAutoSyncWait(cfg.Matching.AutoSyncWait()),
	)
	for _, a := range Adapters(cfg.Sources, materials, nil) {
		if err := reg.Register(a); err != nil {
			_ = searchCache.Close()
			closeDB(db)
			return nil, err
		}
	}

	svc := New(Deps{
		Projects:  store.NewProjectRepository(db, batchSize),
		Materials: materials,
		Registry:  reg,
		Matching:  cfg.Matching,
	})
	svc.closers = []func() error{
		searchCache.Close,
		func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}

	logging.FromContext(ctx).Info().
		Ctx(ctx).
		Str("component", "service").
		Str("operation", "open").
		Str("driver", cfg.Database.Driver).
		Int("source_count", len(reg.Adapters())).
		Msg("service ready")

	return svc, nil
}

// Adapters creates the adapter of every enabled source.
func Adapters(cfg config.SourcesConfig, st source.MaterialStore, client *http.Client) []source.Adapter {
	timeout, ttl := cfg.RequestTimeout(), cfg.RefreshTTL()
	var out []source.Adapter
	if cfg.KBOB.Enabled {
		out = append(out, kbob.New(cfg.KBOB, st, client, timeout, ttl))
	}
	if cfg.Oekobaudat.Enabled {
		out = append(out, oekobaudat.New(cfg.Oekobaudat, st, client, timeout, ttl))
	}
	if cfg.OpenEPD.Enabled {
		out = append(out, openepd.New(cfg.OpenEPD, st, client, timeout, ttl))
	}
	return out
}

// Close releases the database and the cache opened by Open.
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("closing service: %w", errors.Join(errs...))
	}
	return nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

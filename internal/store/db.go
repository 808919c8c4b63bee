package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rshade/lcamatch/internal/logging"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// slowQueryThreshold is the duration above which gorm logs a query as slow.
const slowQueryThreshold = time.Second

// ErrUnsupportedDriver is returned by Open for an unknown driver name.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("record not found")

// Open connects to the database selected by driver and dsn and migrates
// the schema.
func Open(ctx context.Context, driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	log := logging.FromContext(ctx)
	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   newGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// One writer at a time; concurrent sqlite writers fail with SQLITE_BUSY.
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	if err := Migrate(ctx, db); err != nil {
		return nil, err
	}

	log.Debug().
		Ctx(ctx).
		Str("component", "store").
		Str("operation", "open").
		Str("driver", driver).
		Msg("database ready")

	return db, nil
}

// Migrate creates or updates every table owned by this package.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&MaterialRecord{},
		&SyncState{},
		&Project{},
		&ProjectMaterial{},
		&Element{},
		&Layer{},
	); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	if err := backfillNameKeys(ctx, db); err != nil {
		return fmt.Errorf("backfilling material name keys: %w", err)
	}
	return nil
}

// newGormLogger routes gorm warnings through zerolog.
func newGormLogger(log *zerolog.Logger) gormlogger.Interface {
	l := log.With().Str("component", "gorm").Logger()
	return gormlogger.New(&l, gormlogger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

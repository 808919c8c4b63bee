package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rshade/lcamatch/internal/batch"
)

// createInBatches inserts rows in chunks of size.
func createInBatches[T any](ctx context.Context, tx *gorm.DB, size int, rows []T) error {
	p, err := batch.NewProcessor[T](size)
	if err != nil {
		return err
	}
	return p.Process(ctx, rows, func(_ context.Context, chunk []T, _ int) error {
		return tx.Create(&chunk).Error
	})
}

// upsertInBatches inserts rows in chunks of size, overwriting columns of
// rows whose id already exists.
func upsertInBatches[T any](ctx context.Context, tx *gorm.DB, size int, rows []T, columns ...string) error {
	p, err := batch.NewProcessor[T](size)
	if err != nil {
		return err
	}
	return p.Process(ctx, rows, func(_ context.Context, chunk []T, _ int) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).Create(&chunk).Error
	})
}

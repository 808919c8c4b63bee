package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rshade/lcamatch/internal/batch"
	"github.com/rshade/lcamatch/internal/logging"
	"github.com/rshade/lcamatch/internal/material"
	"github.com/rshade/lcamatch/internal/preprocess"
)

// defaultSearchLimit applies when SearchOptions.Limit is not positive.
const defaultSearchLimit = 100

// nameRankSQL orders search hits by how closely name_key matches the folded
// query: equal, prefix, whole word, substring, then anything else. Folded
// text is alphanumeric, so the query needs no LIKE escaping.
const nameRankSQL = `CASE
	WHEN name_key = ? THEN 0
	WHEN name_key LIKE ? THEN 1
	WHEN ' ' || name_key || ' ' LIKE ? THEN 2
	WHEN name_key LIKE ? THEN 3
	ELSE 4 END, LENGTH(name), id`

// upsertColumns are overwritten when a sync rewrites an existing record.
//
//nolint:gochecknoglobals // column list
var upsertColumns = []string{
	"name", "localized_names", "category", "density", "declared_unit",
	"indicators", "metadata", "name_key", "search_text", "content_hash", "updated_at",
}

// UpsertResult counts the outcome of Upsert.
type UpsertResult struct {
	Added     int
	Updated   int
	Unchanged int
}

// MaterialRepository stores normalized materials.
type MaterialRepository struct {
	db        *gorm.DB
	batchSize int
}

// NewMaterialRepository creates a repository writing batchSize rows per
// statement. A non-positive batchSize selects batch.DefaultBatchSize.
func NewMaterialRepository(db *gorm.DB, batchSize int) *MaterialRepository {
	if batchSize < batch.MinBatchSize || batchSize > batch.MaxBatchSize {
		batchSize = batch.DefaultBatchSize
	}
	return &MaterialRepository{db: db, batchSize: batchSize}
}

// Upsert writes items for source keyed by (source, source_id). Records whose
// content matches the stored copy are not written, so re-running a sync over
// unchanged upstream data performs no writes. All writes share one
// transaction.
func (r *MaterialRepository) Upsert(
	ctx context.Context,
	source material.Source,
	items []material.NormalizedMaterial,
) (UpsertResult, error) {
	var res UpsertResult
	now := time.Now().UTC()

	records := make([]MaterialRecord, 0, len(items))
	seen := make(map[string]int, len(items))
	for i := range items {
		m := items[i]
		if m.Source != source {
			return res, fmt.Errorf("material %q belongs to %s, not %s", m.ID, m.Source, source)
		}
		m.Normalize()
		m.Indicators = m.Indicators.Finite()
		rec := toRecord(&m, now)
		if idx, dup := seen[rec.ID]; dup {
			records[idx] = rec
			continue
		}
		seen[rec.ID] = len(records)
		records = append(records, rec)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := r.hashes(tx, source)
		if err != nil {
			return err
		}

		pending := make([]MaterialRecord, 0, len(records))
		for _, rec := range records {
			hash, ok := existing[rec.ID]
			switch {
			case !ok:
				res.Added++
			case hash == rec.ContentHash:
				res.Unchanged++
				continue
			default:
				res.Updated++
			}
			pending = append(pending, rec)
		}

		p, err := batch.NewProcessor[MaterialRecord](r.batchSize)
		if err != nil {
			return err
		}
		return p.Process(ctx, pending, func(_ context.Context, chunk []MaterialRecord, _ int) error {
			return tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns(upsertColumns),
			}).Create(&chunk).Error
		})
	})
	if err != nil {
		return UpsertResult{}, fmt.Errorf("upserting %s materials: %w", source, err)
	}

	logging.FromContext(ctx).Debug().
		Ctx(ctx).
		Str("component", "store").
		Str("operation", "upsert_materials").
		Str("source", string(source)).
		Int("added", res.Added).
		Int("updated", res.Updated).
		Int("unchanged", res.Unchanged).
		Msg("materials upserted")

	return res, nil
}

func (r *MaterialRepository) hashes(tx *gorm.DB, source material.Source) (map[string]string, error) {
	var rows []struct {
		ID          string
		ContentHash string
	}
	if err := tx.Model(&MaterialRecord{}).
		Select("id", "content_hash").
		Where("source = ?", string(source)).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.ID] = row.ContentHash
	}
	return out, nil
}

// Prune deletes the records of source whose id is not in keep and returns
// the number removed.
func (r *MaterialRepository) Prune(ctx context.Context, source material.Source, keep []string) (int, error) {
	keepSet := make(map[string]bool, len(keep))
	for _, id := range keep {
		keepSet[id] = true
	}

	removed := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&MaterialRecord{}).
			Where("source = ?", string(source)).
			Pluck("id", &ids).Error; err != nil {
			return err
		}

		stale := make([]string, 0)
		for _, id := range ids {
			if !keepSet[id] {
				stale = append(stale, id)
			}
		}

		p, err := batch.NewProcessor[string](r.batchSize)
		if err != nil {
			return err
		}
		return p.Process(ctx, stale, func(_ context.Context, chunk []string, _ int) error {
			result := tx.Where("id IN ?", chunk).Delete(&MaterialRecord{})
			removed += int(result.RowsAffected)
			return result.Error
		})
	})
	if err != nil {
		return 0, fmt.Errorf("pruning %s materials: %w", source, err)
	}
	return removed, nil
}

// Get returns one material by its prefixed id.
func (r *MaterialRepository) Get(ctx context.Context, id string) (*material.NormalizedMaterial, error) {
	var rec MaterialRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading material %s: %w", id, err)
	}
	return fromRecord(&rec), nil
}

// GetMany returns the materials among ids that exist, keyed by id.
func (r *MaterialRepository) GetMany(ctx context.Context, ids []string) (map[string]*material.NormalizedMaterial, error) {
	out := make(map[string]*material.NormalizedMaterial, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	p, err := batch.NewProcessor[string](r.batchSize)
	if err != nil {
		return nil, err
	}
	err = p.Process(ctx, ids, func(ctx context.Context, chunk []string, _ int) error {
		var recs []MaterialRecord
		if err := r.db.WithContext(ctx).Where("id IN ?", chunk).Find(&recs).Error; err != nil {
			return err
		}
		for i := range recs {
			out[recs[i].ID] = fromRecord(&recs[i])
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading materials: %w", err)
	}
	return out, nil
}

// Search returns materials of source whose name, category or localized
// names contain every word of query, best match first.
func (r *MaterialRepository) Search(
	ctx context.Context,
	source material.Source,
	query string,
	opts material.SearchOptions,
) ([]material.NormalizedMaterial, error) {
	folded := preprocess.FoldAlnum(query)
	tokens := strings.Fields(folded)
	if len(tokens) == 0 {
		return []material.NormalizedMaterial{}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	q := r.db.WithContext(ctx).Model(&MaterialRecord{}).Where("source = ?", string(source))
	for _, tok := range tokens {
		q = q.Where("search_text LIKE ?", "%"+tok+"%")
	}
	if c := strings.TrimSpace(opts.Category); c != "" {
		q = q.Where("LOWER(category) = ?", strings.ToLower(c))
	}

	var recs []MaterialRecord
	if err := q.Order(nameRank(strings.Join(tokens, " "))).
		Limit(limit).
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("searching %s materials: %w", source, err)
	}

	out := make([]material.NormalizedMaterial, 0, len(recs))
	for i := range recs {
		out = append(out, *fromRecord(&recs[i]))
	}
	return out, nil
}

func nameRank(query string) clause.OrderBy {
	return clause.OrderBy{Expression: clause.Expr{
		SQL:                nameRankSQL,
		Vars:               []any{query, query + "%", "% " + query + " %", "%" + query + "%"},
		WithoutParentheses: true,
	}}
}

// backfillNameKeys fills name_key for rows written before the column existed.
func backfillNameKeys(ctx context.Context, db *gorm.DB) error {
	var recs []MaterialRecord
	return db.WithContext(ctx).
		Select("id", "name").
		Where("name_key = ? OR name_key IS NULL", "").
		FindInBatches(&recs, batch.DefaultBatchSize, func(tx *gorm.DB, _ int) error {
			for _, rec := range recs {
				if err := tx.Model(&MaterialRecord{}).
					Where("id = ?", rec.ID).
					UpdateColumn("name_key", preprocess.FoldAlnum(rec.Name)).Error; err != nil {
					return err
				}
			}
			return nil
		}).Error
}

// All returns every stored material of source ordered by id.
func (r *MaterialRepository) All(ctx context.Context, source material.Source) ([]material.NormalizedMaterial, error) {
	var recs []MaterialRecord
	if err := r.db.WithContext(ctx).
		Where("source = ?", string(source)).
		Order("id ASC").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("listing %s materials: %w", source, err)
	}
	out := make([]material.NormalizedMaterial, 0, len(recs))
	for i := range recs {
		out = append(out, *fromRecord(&recs[i]))
	}
	return out, nil
}

// Count returns the number of stored materials of source.
func (r *MaterialRepository) Count(ctx context.Context, source material.Source) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&MaterialRecord{}).Where("source = ?", string(source)).Count(&n).Error
	return n, err
}

// RecordSync stores the outcome of a completed sync.
func (r *MaterialRepository) RecordSync(ctx context.Context, res material.SyncResult, total int, at time.Time) error {
	state := SyncState{
		Source:     string(res.Source),
		LastSyncAt: at.UTC(),
		Added:      res.Added,
		Updated:    res.Updated,
		Removed:    res.Removed,
		Errors:     res.Errors,
		Total:      total,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}},
		UpdateAll: true,
	}).Create(&state).Error
}

// LastSync returns the time of the last recorded sync of source. ok is
// false when the source was never synced.
func (r *MaterialRepository) LastSync(ctx context.Context, source material.Source) (time.Time, bool, error) {
	var state SyncState
	err := r.db.WithContext(ctx).Where("source = ?", string(source)).Take(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return state.LastSyncAt, true, nil
}

// contentHash fingerprints the fields a sync may change. SyncedAt is
// excluded so an unchanged upstream record hashes identically.
func contentHash(m *material.NormalizedMaterial) string {
	meta := m.Metadata
	meta.SyncedAt = time.Time{}
	payload, _ := json.Marshal(struct {
		Name           string
		LocalizedNames map[string]string
		Category       string
		Density        *float64
		DeclaredUnit   string
		Indicators     map[string]float64
		Metadata       material.Metadata
	}{
		Name:           m.Name,
		LocalizedNames: m.LocalizedNames,
		Category:       m.Category,
		Density:        m.Density,
		DeclaredUnit:   m.DeclaredUnit,
		Indicators:     stringKeyed(m),
		Metadata:       meta,
	})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// stringKeyed returns the indicators with string keys; encoding/json sorts
// map keys so the encoding is stable.
func stringKeyed(m *material.NormalizedMaterial) map[string]float64 {
	out := make(map[string]float64, len(m.Indicators))
	for k, v := range m.Indicators {
		out[string(k)] = v
	}
	return out
}

func searchText(m *material.NormalizedMaterial) string {
	parts := []string{m.Name, m.Category}
	langs := make([]string, 0, len(m.LocalizedNames))
	for lang := range m.LocalizedNames {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		parts = append(parts, m.LocalizedNames[lang])
	}
	return preprocess.FoldAlnum(strings.Join(parts, " "))
}

func toRecord(m *material.NormalizedMaterial, now time.Time) MaterialRecord {
	meta := m.Metadata
	if meta.SyncedAt.IsZero() {
		meta.SyncedAt = now
	}
	return MaterialRecord{
		ID:             m.ID,
		Source:         string(m.Source),
		SourceID:       m.SourceID,
		Name:           m.Name,
		LocalizedNames: datatypes.NewJSONType(m.LocalizedNames),
		Category:       m.Category,
		Density:        m.Density,
		DeclaredUnit:   m.DeclaredUnit,
		Indicators:     datatypes.NewJSONType(m.Indicators),
		Metadata:       datatypes.NewJSONType(meta),
		NameKey:        preprocess.FoldAlnum(m.Name),
		SearchText:     searchText(m),
		ContentHash:    contentHash(m),
	}
}

func fromRecord(rec *MaterialRecord) *material.NormalizedMaterial {
	m := &material.NormalizedMaterial{
		ID:             rec.ID,
		Source:         material.Source(rec.Source),
		SourceID:       rec.SourceID,
		Name:           rec.Name,
		LocalizedNames: rec.LocalizedNames.Data(),
		Category:       rec.Category,
		Density:        rec.Density,
		DeclaredUnit:   rec.DeclaredUnit,
		Indicators:     values(rec.Indicators),
		Metadata:       rec.Metadata.Data(),
	}
	return m
}

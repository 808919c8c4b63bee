package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/rshade/lcamatch/internal/batch"
	"github.com/rshade/lcamatch/internal/indicator"
	"github.com/rshade/lcamatch/internal/logging"
	"github.com/rshade/lcamatch/internal/material"
)

// Match validation errors.
var (
	ErrInvalidMatchMethod  = errors.New("invalid match method")
	ErrMatchSourceMismatch = errors.New("match source does not agree with material id prefix")
)

// ProjectRepository stores projects and everything they own.
type ProjectRepository struct {
	db        *gorm.DB
	batchSize int
}

// NewProjectRepository creates a repository writing batchSize rows per
// statement. A non-positive batchSize selects batch.DefaultBatchSize.
func NewProjectRepository(db *gorm.DB, batchSize int) *ProjectRepository {
	if batchSize < batch.MinBatchSize || batchSize > batch.MaxBatchSize {
		batchSize = batch.DefaultBatchSize
	}
	return &ProjectRepository{db: db, batchSize: batchSize}
}

// CreateProject inserts p, assigning an id when empty.
func (r *ProjectRepository) CreateProject(ctx context.Context, p *Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("creating project: %w", err)
	}
	return nil
}

// GetProject loads one project.
func (r *ProjectRepository) GetProject(ctx context.Context, id string) (*Project, error) {
	var p Project
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading project %s: %w", id, err)
	}
	return &p, nil
}

// ListProjects returns every project, newest first.
func (r *ProjectRepository) ListProjects(ctx context.Context) ([]Project, error) {
	var out []Project
	err := r.db.WithContext(ctx).Order("created_at DESC").Order("id ASC").Find(&out).Error
	return out, err
}

// SetPreferredSource stores the preferred source of a project.
func (r *ProjectRepository) SetPreferredSource(ctx context.Context, id string, source material.Source) error {
	res := r.db.WithContext(ctx).Model(&Project{}).
		Where("id = ?", id).
		Update("preferred_source", string(source))
	if res.Error != nil {
		return fmt.Errorf("updating project %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Materials returns the project's materials ordered by name.
func (r *ProjectRepository) Materials(ctx context.Context, projectID string) ([]ProjectMaterial, error) {
	var out []ProjectMaterial
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("name ASC").
		Find(&out).Error
	return out, err
}

// MaterialByName loads one project material.
func (r *ProjectRepository) MaterialByName(ctx context.Context, projectID, name string) (*ProjectMaterial, error) {
	var m ProjectMaterial
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND name = ?", projectID, name).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading material %q: %w", name, err)
	}
	return &m, nil
}

// SetMatch sets or, with a nil match, clears the match of the named
// material. Only the row of projectID is touched.
func (r *ProjectRepository) SetMatch(ctx context.Context, projectID, name string, match *Match) error {
	updates := map[string]any{
		"match_material_id": nil,
		"match_source":      "",
		"match_source_id":   "",
		"match_score":       nil,
		"match_method":      "",
		"matched_at":        nil,
	}
	if match != nil {
		if !match.Method.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidMatchMethod, match.Method)
		}
		src, sourceID, err := material.ParseID(match.MaterialID)
		if err != nil {
			return err
		}
		if src != match.Source || (match.SourceID != "" && sourceID != match.SourceID) {
			return fmt.Errorf("%w: %s vs %s", ErrMatchSourceMismatch, match.MaterialID, match.Source)
		}
		at := match.MatchedAt
		if at.IsZero() {
			at = time.Now().UTC()
		}
		updates["match_material_id"] = match.MaterialID
		updates["match_source"] = string(match.Source)
		updates["match_source_id"] = sourceID
		updates["match_score"] = match.Score
		updates["match_method"] = string(match.Method)
		updates["matched_at"] = at
	}

	res := r.db.WithContext(ctx).Model(&ProjectMaterial{}).
		Where("project_id = ? AND name = ?", projectID, name).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("updating match of %q: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearAllMatches clears every match of the project and returns how many
// materials were matched before.
func (r *ProjectRepository) ClearAllMatches(ctx context.Context, projectID string) (int, error) {
	res := r.db.WithContext(ctx).Model(&ProjectMaterial{}).
		Where("project_id = ? AND match_material_id IS NOT NULL", projectID).
		Updates(map[string]any{
			"match_material_id": nil,
			"match_source":      "",
			"match_source_id":   "",
			"match_score":       nil,
			"match_method":      "",
			"matched_at":        nil,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("clearing matches of project %s: %w", projectID, res.Error)
	}
	return int(res.RowsAffected), nil
}

// SetDensity sets or, with nil, removes the user density of a material.
func (r *ProjectRepository) SetDensity(ctx context.Context, projectID, name string, density *float64) error {
	res := r.db.WithContext(ctx).Model(&ProjectMaterial{}).
		Where("project_id = ? AND name = ?", projectID, name).
		Update("density", density)
	if res.Error != nil {
		return fmt.Errorf("updating density of %q: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// LayerInput is one parsed material layer.
type LayerInput struct {
	MaterialName string  `json:"materialName"`
	Volume       float64 `json:"volume"`
	Fraction     float64 `json:"fraction"`
}

// ElementInput is one parsed building element.
type ElementInput struct {
	GUID               string       `json:"guid"`
	Name               string       `json:"name"`
	Type               string       `json:"type"`
	ClassificationCode string       `json:"classificationCode,omitempty"`
	Layers             []LayerInput `json:"layers"`
}

// ImportResult counts the rows written by ImportElements.
type ImportResult struct {
	ElementsCreated  int `json:"elementsCreated"`
	ElementsUpdated  int `json:"elementsUpdated"`
	Layers           int `json:"layers"`
	MaterialsCreated int `json:"materialsCreated"`
}

// ImportElements upserts elements by GUID, replaces their layers and
// creates a project material for every new material name. Everything is
// written in one transaction.
//
//nolint:funlen,gocognit // single transaction with sequential steps
func (r *ProjectRepository) ImportElements(
	ctx context.Context,
	projectID string,
	inputs []ElementInput,
) (ImportResult, error) {
	var res ImportResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existingMats []ProjectMaterial
		if err := tx.Where("project_id = ?", projectID).Find(&existingMats).Error; err != nil {
			return err
		}
		matIDs := make(map[string]string, len(existingMats))
		for _, m := range existingMats {
			matIDs[m.Name] = m.ID
		}

		var existingEls []Element
		if err := tx.Where("project_id = ?", projectID).Find(&existingEls).Error; err != nil {
			return err
		}
		elByGUID := make(map[string]Element, len(existingEls))
		nextPos := 0
		for _, e := range existingEls {
			elByGUID[e.GUID] = e
			nextPos = max(nextPos, e.Position+1)
		}

		newMats := make([]ProjectMaterial, 0)
		elements := make([]Element, 0, len(inputs))
		layers := make([]Layer, 0)
		replaced := make([]string, 0)

		for _, in := range inputs {
			el, ok := elByGUID[in.GUID]
			if ok {
				res.ElementsUpdated++
				replaced = append(replaced, el.ID)
				el.Name = in.Name
				el.Type = in.Type
				el.ClassificationCode = in.ClassificationCode
				el.Indicators = datatypes.NewJSONType(indicator.Values{})
			} else {
				res.ElementsCreated++
				el = Element{
					ID:                 uuid.NewString(),
					ProjectID:          projectID,
					GUID:               in.GUID,
					Name:               in.Name,
					Type:               in.Type,
					ClassificationCode: in.ClassificationCode,
					Position:           nextPos,
					Indicators:         datatypes.NewJSONType(indicator.Values{}),
				}
				nextPos++
			}
			elByGUID[in.GUID] = el
			elements = append(elements, el)

			for i, l := range in.Layers {
				matID, known := matIDs[l.MaterialName]
				if !known {
					matID = uuid.NewString()
					matIDs[l.MaterialName] = matID
					newMats = append(newMats, ProjectMaterial{
						ID:        matID,
						ProjectID: projectID,
						Name:      l.MaterialName,
					})
				}
				layers = append(layers, Layer{
					ID:         uuid.NewString(),
					ProjectID:  projectID,
					ElementID:  el.ID,
					MaterialID: matID,
					Position:   i,
					Volume:     l.Volume,
					Fraction:   l.Fraction,
					Indicators: datatypes.NewJSONType(indicator.Values{}),
				})
			}
		}
		res.MaterialsCreated = len(newMats)
		res.Layers = len(layers)

		if err := createInBatches(ctx, tx, r.batchSize, newMats); err != nil {
			return err
		}
		if err := r.deleteLayersOf(ctx, tx, replaced); err != nil {
			return err
		}
		if err := r.saveElements(ctx, tx, elements); err != nil {
			return err
		}
		return createInBatches(ctx, tx, r.batchSize, layers)
	})
	if err != nil {
		return ImportResult{}, fmt.Errorf("importing elements: %w", err)
	}

	logging.FromContext(ctx).Info().
		Ctx(ctx).
		Str("component", "store").
		Str("operation", "import_elements").
		Str("project_id", projectID).
		Int("elements_created", res.ElementsCreated).
		Int("elements_updated", res.ElementsUpdated).
		Int("layers", res.Layers).
		Int("materials_created", res.MaterialsCreated).
		Msg("elements imported")

	return res, nil
}

func (r *ProjectRepository) deleteLayersOf(ctx context.Context, tx *gorm.DB, elementIDs []string) error {
	p, err := batch.NewProcessor[string](r.batchSize)
	if err != nil {
		return err
	}
	return p.Process(ctx, elementIDs, func(_ context.Context, chunk []string, _ int) error {
		return tx.Where("element_id IN ?", chunk).Delete(&Layer{}).Error
	})
}

func (r *ProjectRepository) saveElements(ctx context.Context, tx *gorm.DB, elements []Element) error {
	return upsertInBatches(ctx, tx, r.batchSize, elements,
		"name", "type", "classification_code", "indicators", "updated_at")
}

// CalculationInput is the state recalculation reads.
type CalculationInput struct {
	Project *Project
	// Elements are ordered by position, then GUID.
	Elements []Element
	// Layers maps element id to its layers ordered by position, then id.
	Layers map[string][]Layer
	// Materials maps project material id to the row.
	Materials map[string]ProjectMaterial
}

// LayerCount returns the total number of layers.
func (in *CalculationInput) LayerCount() int {
	n := 0
	for _, ls := range in.Layers {
		n += len(ls)
	}
	return n
}

// LoadCalculationInput reads the project with its elements, layers and
// materials in a stable order.
func (r *ProjectRepository) LoadCalculationInput(ctx context.Context, projectID string) (*CalculationInput, error) {
	p, err := r.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	db := r.db.WithContext(ctx)
	in := &CalculationInput{
		Project:   p,
		Layers:    make(map[string][]Layer),
		Materials: make(map[string]ProjectMaterial),
	}

	if err := db.Where("project_id = ?", projectID).
		Order("position ASC").Order("guid ASC").
		Find(&in.Elements).Error; err != nil {
		return nil, fmt.Errorf("loading elements: %w", err)
	}

	var layers []Layer
	if err := db.Where("project_id = ?", projectID).
		Order("position ASC").Order("id ASC").
		Find(&layers).Error; err != nil {
		return nil, fmt.Errorf("loading layers: %w", err)
	}
	for _, l := range layers {
		in.Layers[l.ElementID] = append(in.Layers[l.ElementID], l)
	}

	var mats []ProjectMaterial
	if err := db.Where("project_id = ?", projectID).Find(&mats).Error; err != nil {
		return nil, fmt.Errorf("loading project materials: %w", err)
	}
	for _, m := range mats {
		in.Materials[m.ID] = m
	}

	return in, nil
}

// SaveCalculation writes cached layer and element indicators and the
// project totals in one transaction. On error nothing is written and the
// previous cache stays in place.
func (r *ProjectRepository) SaveCalculation(
	ctx context.Context,
	projectID string,
	elements []Element,
	layers []Layer,
	totals indicator.Values,
	at time.Time,
) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertInBatches(ctx, tx, r.batchSize, layers, "indicators", "updated_at"); err != nil {
			return err
		}
		if err := upsertInBatches(ctx, tx, r.batchSize, elements, "indicators", "updated_at"); err != nil {
			return err
		}
		res := tx.Model(&Project{}).Where("id = ?", projectID).Updates(map[string]any{
			"totals":          datatypes.NewJSONType(totals),
			"last_calculated": at,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving calculation of project %s: %w", projectID, err)
	}
	return nil
}

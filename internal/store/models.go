package store

import (
	"time"

	"gorm.io/datatypes"

	"github.com/rshade/lcamatch/internal/indicator"
	"github.com/rshade/lcamatch/internal/material"
)

// MaterialRecord is the persisted form of a material.NormalizedMaterial.
type MaterialRecord struct {
	ID             string                                `gorm:"primaryKey;size:191"`
	Source         string                                `gorm:"size:32;not null;uniqueIndex:idx_material_source_ref,priority:1"`
	SourceID       string                                `gorm:"size:191;not null;uniqueIndex:idx_material_source_ref,priority:2"`
	Name           string                                `gorm:"not null"`
	LocalizedNames datatypes.JSONType[map[string]string] `gorm:"column:localized_names"`
	Category       string                                `gorm:"size:191;index"`
	Density        *float64
	DeclaredUnit   string                                `gorm:"size:32"`
	Indicators     datatypes.JSONType[indicator.Values]  `gorm:"column:indicators"`
	Metadata       datatypes.JSONType[material.Metadata] `gorm:"column:metadata"`
	// NameKey is the folded name used to rank search hits.
	NameKey string `gorm:"index"`
	// SearchText holds the folded name and category for substring search.
	SearchText  string `gorm:"index"`
	ContentHash string `gorm:"size:64"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName implements gorm's tabler.
func (MaterialRecord) TableName() string { return "normalized_materials" }

// SyncState records the last successful sync of one source.
type SyncState struct {
	Source     string `gorm:"primaryKey;size:32"`
	LastSyncAt time.Time
	Added      int
	Updated    int
	Removed    int
	Errors     int
	Total      int
}

// TableName implements gorm's tabler.
func (SyncState) TableName() string { return "source_sync_states" }

// Project is a building project whose elements are evaluated.
type Project struct {
	ID              string `gorm:"primaryKey;size:36"`
	Name            string `gorm:"not null"`
	PreferredSource string `gorm:"size:32"`
	// ClassificationSystem names the system element codes belong to.
	ClassificationSystem string `gorm:"size:64"`
	AreaType             string `gorm:"size:32"`
	AreaValue            *float64
	AreaUnit             string `gorm:"size:16"`
	AmortizationOverride *int
	Totals               datatypes.JSONType[indicator.Values] `gorm:"column:totals"`
	LastCalculated       *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// TableName implements gorm's tabler.
func (Project) TableName() string { return "projects" }

// ProjectMaterial is one distinct material name within a project, with an
// optional match to a normalized material.
type ProjectMaterial struct {
	ID        string `gorm:"primaryKey;size:36"`
	ProjectID string `gorm:"size:36;not null;uniqueIndex:idx_project_material_name,priority:1"`
	Name      string `gorm:"size:512;not null;uniqueIndex:idx_project_material_name,priority:2"`
	// Density overrides the matched material's density when set.
	Density         *float64
	MatchMaterialID *string `gorm:"size:191;index"`
	MatchSource     string  `gorm:"size:32"`
	MatchSourceID   string  `gorm:"size:191"`
	MatchScore      *float64
	MatchMethod     string `gorm:"size:16"`
	MatchedAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName implements gorm's tabler.
func (ProjectMaterial) TableName() string { return "project_materials" }

// Match returns the current match, or nil when unmatched.
func (m *ProjectMaterial) Match() *Match {
	if m == nil || m.MatchMaterialID == nil || *m.MatchMaterialID == "" {
		return nil
	}
	match := &Match{
		MaterialID: *m.MatchMaterialID,
		Source:     material.Source(m.MatchSource),
		SourceID:   m.MatchSourceID,
		Method:     MatchMethod(m.MatchMethod),
	}
	if m.MatchScore != nil {
		match.Score = *m.MatchScore
	}
	if m.MatchedAt != nil {
		match.MatchedAt = *m.MatchedAt
	}
	return match
}

// Element is one building element of a project.
type Element struct {
	ID                 string `gorm:"primaryKey;size:36"`
	ProjectID          string `gorm:"size:36;not null;uniqueIndex:idx_element_project_guid,priority:1"`
	GUID               string `gorm:"size:64;not null;uniqueIndex:idx_element_project_guid,priority:2"`
	Name               string
	Type               string `gorm:"size:64"`
	ClassificationCode string `gorm:"size:32"`
	Position           int
	Indicators         datatypes.JSONType[indicator.Values] `gorm:"column:indicators"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TableName implements gorm's tabler.
func (Element) TableName() string { return "elements" }

// Layer is one material layer inside an element.
type Layer struct {
	ID         string `gorm:"primaryKey;size:36"`
	ProjectID  string `gorm:"size:36;not null;index"`
	ElementID  string `gorm:"size:36;not null;index"`
	MaterialID string `gorm:"size:36;not null;index"`
	Position   int
	Volume     float64
	Fraction   float64
	Indicators datatypes.JSONType[indicator.Values] `gorm:"column:indicators"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName implements gorm's tabler.
func (Layer) TableName() string { return "element_material_layers" }

// MatchMethod tags how a match was made.
type MatchMethod string

// Match methods.
const (
	MatchExact  MatchMethod = "exact"
	MatchFuzzy  MatchMethod = "fuzzy"
	MatchManual MatchMethod = "manual"
)

// Valid reports whether m is a known method.
func (m MatchMethod) Valid() bool {
	switch m {
	case MatchExact, MatchFuzzy, MatchManual:
		return true
	default:
		return false
	}
}

// Match links a project material to a normalized material.
type Match struct {
	MaterialID string          `json:"normalizedMaterialId"`
	Source     material.Source `json:"source"`
	SourceID   string          `json:"sourceId"`
	Score      float64         `json:"score"`
	Method     MatchMethod     `json:"method"`
	MatchedAt  time.Time       `json:"matchedAt"`
}

// values returns the wrapped map, never nil.
func values(j datatypes.JSONType[indicator.Values]) indicator.Values {
	v := j.Data()
	if v == nil {
		return indicator.Values{}
	}
	return v
}

// IndicatorValues returns the cached layer indicators.
func (l *Layer) IndicatorValues() indicator.Values { return values(l.Indicators) }

// IndicatorValues returns the cached element totals.
func (e *Element) IndicatorValues() indicator.Values { return values(e.Indicators) }

// TotalValues returns the cached project totals.
func (p *Project) TotalValues() indicator.Values { return values(p.Totals) }

// SetIndicators replaces the cached layer indicators.
func (l *Layer) SetIndicators(v indicator.Values) { l.Indicators = datatypes.NewJSONType(v) }

// SetIndicators replaces the cached element totals.
func (e *Element) SetIndicators(v indicator.Values) { e.Indicators = datatypes.NewJSONType(v) }

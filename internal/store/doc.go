// Package store persists normalized materials and project data with gorm.
//
// Two repositories share one *gorm.DB:
//   - MaterialRepository owns the normalized_materials table, partitioned by
//     source and unique on (source, source_id), plus per-source sync state.
//   - ProjectRepository owns projects, project materials (unique on
//     project_id and name), elements and their material layers.
//
// SQLite is used for local runs and tests, PostgreSQL in production. Open
// selects the dialect from the configured driver name.
package store

// Package matcher links project material names to normalized materials.
//
// A project material is either unmatched or matched, and a match records
// how it was made (exact, fuzzy or manual). Every change of a match is
// followed by a recalculation of the owning project so cached totals never
// lag behind the matches they were computed from.
package matcher

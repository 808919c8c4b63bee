// Package calc turns element material layers into indicator totals.
//
// A layer value is volume × density × per-kg factor, computed per indicator
// key. Missing data never becomes zero: a layer without density, volume or
// a factor for a key simply has no value for that key, and sums only
// combine the keys that are present. Elements and layers are always summed
// in their stored order so repeated runs give bit-identical totals.
//
// Recalculation is serialized per project. Results are written in batches
// inside one transaction; on failure the previous cached totals stay
// authoritative.
package calc

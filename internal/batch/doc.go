// Package batch splits large write sets into fixed-size chunks.
//
// Recalculation of a project rewrites cached indicators for every layer and
// element it owns. Hundreds to low thousands of rows are written as a
// handful of multi-row statements rather than one statement per row. The
// processor is sequential so a caller can run it inside a single database
// transaction.
package batch

// Package source defines the LCA source adapter contract.
//
// Each external dataset (KBOB, Ökobaudat, OpenEPD) has its own package that
// maps its raw API schema into material.NormalizedMaterial. Those packages
// only supply a Fetcher, static Info and a validity predicate. Base turns
// them into an Adapter backed by the shared material store: searches run
// against synced data and Sync refreshes one source partition.
package source

// Package cache stores search results with a TTL.
//
// Keys are cleaned, case-folded queries (see preprocess.CacheKey) combined
// with a source id and result limit. Values are JSON documents. Two
// backends exist: an in-process map for single-instance deployments and a
// Redis store shared between instances. A disabled cache answers every Get
// with ErrCacheDisabled so callers need no nil checks.
package cache

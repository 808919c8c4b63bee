package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rshade/lcamatch/internal/config"
)

// Common cache errors.
var (
	ErrCacheNotFound   = errors.New("cache entry not found")
	ErrCacheExpired    = errors.New("cache entry expired")
	ErrInvalidCacheKey = errors.New("cache key cannot be empty")
	ErrCacheDisabled   = errors.New("cache is disabled")
)

// Store is a TTL key-value store for JSON documents.
type Store interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Set(ctx context.Context, key string, data json.RawMessage) error
	Delete(ctx context.Context, key string) error
	// Clear removes every entry whose key starts with prefix; "" clears all.
	Clear(ctx context.Context, prefix string) error
	Close() error
}

// New returns the store selected by cfg: disabled, Redis when an address
// is configured, in-memory otherwise.
func New(ctx context.Context, cfg config.CacheConfig) (Store, error) {
	if !cfg.Enabled || cfg.TTLSeconds <= 0 {
		return Disabled{}, nil
	}
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	if cfg.RedisAddr != "" {
		s, err := NewRedisStore(ctx, cfg.RedisAddr, ttl)
		if err != nil {
			return nil, fmt.Errorf("opening redis cache: %w", err)
		}
		return s, nil
	}
	return NewMemoryStore(ttl), nil
}

// SearchKey builds the key of a cached search result.
func SearchKey(source, cleanedQuery string, limit int) string {
	return "search:" + strings.ToLower(source) + ":" + strconv.Itoa(limit) + ":" + cleanedQuery
}

// SearchPrefix is the key prefix of every cached search against source.
func SearchPrefix(source string) string {
	return "search:" + strings.ToLower(source) + ":"
}

// GetJSON decodes the entry stored under key into a T. ok is false on a
// miss or when the entry cannot be decoded.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, bool) {
	var out T
	data, err := s.Get(ctx, key)
	if err != nil {
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, false
	}
	return out, true
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling cache entry: %w", err)
	}
	return s.Set(ctx, key, data)
}

// Disabled is a Store that caches nothing.
type Disabled struct{}

// Get always fails with ErrCacheDisabled.
func (Disabled) Get(context.Context, string) (json.RawMessage, error) { return nil, ErrCacheDisabled }

// Set is a no-op.
func (Disabled) Set(context.Context, string, json.RawMessage) error { return nil }

// Delete is a no-op.
func (Disabled) Delete(context.Context, string) error { return nil }

// Clear is a no-op.
func (Disabled) Clear(context.Context, string) error { return nil }

// Close is a no-op.
func (Disabled) Close() error { return nil }

package cache

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/lcamatch/internal/config"
)

func TestEntry_Expiry(t *testing.T) {
	e := NewEntry("k", json.RawMessage(`1`), time.Hour)
	assert.False(t, e.IsExpired())
	assert.Greater(t, e.TimeUntilExpiration(), 59*time.Minute)

	old := NewEntry("k", nil, -time.Second)
	assert.True(t, old.IsExpired())
	assert.Equal(t, time.Duration(0), old.TimeUntilExpiration())
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("SetGet", func(t *testing.T) {
		s := NewMemoryStore(time.Hour)
		require.NoError(t, s.Set(ctx, "a", json.RawMessage(`{"x":1}`)))
		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.JSONEq(t, `{"x":1}`, string(got))
	})

	t.Run("Miss", func(t *testing.T) {
		s := NewMemoryStore(time.Hour)
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrCacheNotFound)
	})

	t.Run("EmptyKey", func(t *testing.T) {
		s := NewMemoryStore(time.Hour)
		assert.ErrorIs(t, s.Set(ctx, "", nil), ErrInvalidCacheKey)
		_, err := s.Get(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidCacheKey)
	})

	t.Run("Expired", func(t *testing.T) {
		s := NewMemoryStore(-time.Second)
		require.NoError(t, s.Set(ctx, "a", json.RawMessage(`1`)))
		_, err := s.Get(ctx, "a")
		assert.ErrorIs(t, err, ErrCacheExpired)
		assert.Equal(t, 0, s.Len())
	})

	t.Run("ClearPrefix", func(t *testing.T) {
		s := NewMemoryStore(time.Hour)
		require.NoError(t, s.Set(ctx, SearchKey("kbob", "beton", 10), json.RawMessage(`1`)))
		require.NoError(t, s.Set(ctx, SearchKey("openepd", "beton", 10), json.RawMessage(`1`)))
		require.NoError(t, s.Clear(ctx, SearchPrefix("KBOB")))
		assert.Equal(t, 1, s.Len())
	})

	t.Run("CleanupExpired", func(t *testing.T) {
		s := NewMemoryStore(-time.Second)
		require.NoError(t, s.Set(ctx, "a", nil))
		require.NoError(t, s.Set(ctx, "b", nil))
		assert.Equal(t, 2, s.CleanupExpired())
	})
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)

	type payload struct {
		Names []string `json:"names"`
	}
	require.NoError(t, SetJSON(ctx, s, "p", payload{Names: []string{"Beton"}}))

	got, ok := GetJSON[payload](ctx, s, "p")
	require.True(t, ok)
	assert.Equal(t, []string{"Beton"}, got.Names)

	_, ok = GetJSON[payload](ctx, s, "nope")
	assert.False(t, ok)

	_, ok = GetJSON[payload](ctx, Disabled{}, "p")
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, config.CacheConfig{Enabled: false, TTLSeconds: 60})
	require.NoError(t, err)
	assert.IsType(t, Disabled{}, s)

	s, err = New(ctx, config.CacheConfig{Enabled: true, TTLSeconds: 60})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("LCAMATCH_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LCAMATCH_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	s, err := NewRedisStore(ctx, addr, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	key := SearchKey("kbob", "redis-test", 5)
	require.NoError(t, s.Set(ctx, key, json.RawMessage(`[1,2]`)))
	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2]`, string(got))

	require.NoError(t, s.Clear(ctx, SearchPrefix("kbob")))
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrCacheNotFound)
}

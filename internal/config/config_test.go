package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/lcamatch/internal/config"
	"github.com/rshade/lcamatch/internal/logging"
)

// writeOverlay is a test helper that writes YAML content to a temp file
// and returns its path.
func writeOverlay(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "overlay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg := config.Defaults()
	require.NoError(t, cfg.Validate())

	assert.InDelta(t, 0.3, cfg.Matching.Threshold, 1e-12)
	assert.InDelta(t, 0.9, cfg.Matching.AutoMatchThreshold, 1e-12)
	assert.Equal(t, 30*time.Second, cfg.Matching.AutoSyncWait())
	assert.Equal(t, 24*time.Hour, cfg.Sources.RefreshTTL())
	assert.Equal(t, 30*time.Second, cfg.Sources.RequestTimeout())
	assert.Equal(t, 500, cfg.Calculation.BatchSize)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, config.DefaultOekobaudatDatastock, cfg.Sources.Oekobaudat.DatastockID)
}

func TestShallowMergeYAML_SingleKeyOverride(t *testing.T) {
	target := config.Defaults()
	overlay := writeOverlay(t, `
matching:
  threshold: 0.5
  limit: 5
`)

	require.NoError(t, config.ShallowMergeYAML(target, overlay))

	assert.InDelta(t, 0.5, target.Matching.Threshold, 1e-12)
	assert.Equal(t, 5, target.Matching.Limit)
	// The section is replaced wholesale.
	assert.Zero(t, target.Matching.AutoMatchThreshold)

	// Other sections should be unchanged.
	assert.Equal(t, "info", target.Logging.Level)
	assert.Equal(t, 500, target.Calculation.BatchSize)
}

func TestShallowMergeYAML_UnknownKeysIgnored(t *testing.T) {
	target := config.Defaults()
	overlay := writeOverlay(t, `
plugins:
  foo: bar
server:
  addr: ":9090"
`)

	require.NoError(t, config.ShallowMergeYAML(target, overlay))
	assert.Equal(t, ":9090", target.Server.Addr)
}

func TestShallowMergeYAML_KeepsCredentials(t *testing.T) {
	target := config.Defaults()
	target.Sources.KBOB.APIKey = "secret"
	overlay := writeOverlay(t, `
sources:
  kbob:
    enabled: true
    base_url: http://localhost:1234
`)

	require.NoError(t, config.ShallowMergeYAML(target, overlay))
	assert.Equal(t, "secret", target.Sources.KBOB.APIKey)
	assert.Equal(t, "http://localhost:1234", target.Sources.KBOB.BaseURL)
}

func TestShallowMergeYAML_Errors(t *testing.T) {
	t.Run("nil target", func(t *testing.T) {
		assert.Error(t, config.ShallowMergeYAML(nil, "x.yaml"))
	})
	t.Run("missing file", func(t *testing.T) {
		assert.Error(t, config.ShallowMergeYAML(config.Defaults(), filepath.Join(t.TempDir(), "nope.yaml")))
	})
	t.Run("invalid yaml", func(t *testing.T) {
		path := writeOverlay(t, "matching: [unclosed")
		assert.Error(t, config.ShallowMergeYAML(config.Defaults(), path))
	})
	t.Run("empty file", func(t *testing.T) {
		path := writeOverlay(t, "# only a comment\n")
		assert.NoError(t, config.ShallowMergeYAML(config.Defaults(), path))
	})
}

func TestApplyEnv(t *testing.T) {
	cfg := config.Defaults()
	cfg.ApplyEnv(envMap(map[string]string{
		"LCAMATCH_MATCH_THRESHOLD":   "0.42",
		"LCAMATCH_BATCH_SIZE":        "250",
		"LCAMATCH_DB_DRIVER":         "postgres",
		"LCAMATCH_CACHE_ENABLED":     "false",
		"LCAMATCH_MATCH_LIMIT":       "not-a-number",
		"KBOB_API_KEY":               " kbob-key ",
		"LCAMATCH_OPENEPD_API_KEY":   "epd-key",
		"OPENEPD_API_KEY":            "ignored",
		"LCAMATCH_REFRESH_TTL_HOURS": "48",
	}))

	assert.InDelta(t, 0.42, cfg.Matching.Threshold, 1e-12)
	assert.Equal(t, 250, cfg.Calculation.BatchSize)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, config.DefaultMatchLimit, cfg.Matching.Limit)
	assert.Equal(t, "kbob-key", cfg.Sources.KBOB.APIKey)
	assert.Equal(t, "epd-key", cfg.Sources.OpenEPD.APIKey)
	assert.Equal(t, 48*time.Hour, cfg.Sources.RefreshTTL())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"threshold too high", func(c *config.Config) { c.Matching.Threshold = 1.5 }},
		{"negative auto threshold", func(c *config.Config) { c.Matching.AutoMatchThreshold = -0.1 }},
		{"zero limit", func(c *config.Config) { c.Matching.Limit = 0 }},
		{"batch size too big", func(c *config.Config) { c.Calculation.BatchSize = 5000 }},
		{"unknown driver", func(c *config.Config) { c.Database.Driver = "mongo" }},
		{"negative cache ttl", func(c *config.Config) { c.Cache.TTLSeconds = -1 }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := config.Defaults()
	cfg.Server.Addr = ":7000"
	cfg.Sources.KBOB.APIKey = "must-not-persist"
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "must-not-persist")

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", loaded.Server.Addr)
}

func TestToLoggingConfig(t *testing.T) {
	lc := config.LoggingConfig{Level: "debug", Format: "console"}
	assert.Equal(t, logging.OutputStderr, lc.ToLoggingConfig().Output)

	lc.File = filepath.Join(t.TempDir(), "logs", "lcamatch.log")
	out := lc.ToLoggingConfig()
	assert.Equal(t, logging.OutputFile, out.Output)
	assert.Equal(t, lc.File, out.File)
	require.NoError(t, lc.EnsureLogDir())
	assert.DirExists(t, filepath.Dir(lc.File))
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "wits", cfg.Provider)
	assert.Equal(t, 2020, cfg.Year)
	assert.Equal(t, 5, cfg.Top)
	assert.Equal(t, "file", cfg.Cache.Backend)
	assert.Equal(t, "tradeshare", filepath.Base(cfg.Cache.Dir))
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tradeshare.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
provider: Comtrade
year: 2019
cache:
  backend: sqlite
  dir: /tmp/tradeshare-test
log:
  format: json
`), 0o644))
	t.Setenv("TRADESHARE_YEAR", "2021")
	t.Setenv("TRADESHARE_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "comtrade", cfg.Provider)
	assert.Equal(t, 2021, cfg.Year)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, "/tmp/tradeshare-test/tradeshare.db", cfg.DBPath())
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{Provider: "wits", Year: 2020, Top: 5, Cache: CacheConfig{Backend: "none"}}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"provider", func(c *Config) { c.Provider = "imf" }},
		{"backend", func(c *Config) { c.Cache.Backend = "redis" }},
		{"dir", func(c *Config) { c.Cache = CacheConfig{Backend: "file"} }},
		{"year", func(c *Config) { c.Year = 0 }},
		{"top", func(c *Config) { c.Top = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

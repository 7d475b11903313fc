package app

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeshare/internal/config"
	"tradeshare/internal/logging"
	"tradeshare/internal/pipeline"
	"tradeshare/internal/store"
	"tradeshare/internal/store/filestore"
	"tradeshare/internal/store/sqlite"
)

func testConfig(t *testing.T, backend string) *config.Config {
	return &config.Config{
		Provider: config.ProviderWITS,
		Year:     2020,
		Top:      5,
		Cache:    config.CacheConfig{Backend: backend, Dir: filepath.Join(t.TempDir(), "cache")},
	}
}

func TestOpenStoreBackends(t *testing.T) {
	st, err := OpenStore(testConfig(t, config.BackendFile))
	require.NoError(t, err)
	assert.IsType(t, &filestore.Store{}, st)

	st, err = OpenStore(testConfig(t, config.BackendSQLite))
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, st)
	require.NoError(t, st.Close())

	st, err = OpenStore(testConfig(t, config.BackendNone))
	require.NoError(t, err)
	assert.IsType(t, &store.NopStore{}, st)

	_, err = OpenStore(testConfig(t, "redis"))
	assert.Error(t, err)
}

func TestBuildProvider(t *testing.T) {
	provider, err := BuildProvider("WITS")
	require.NoError(t, err)
	assert.Equal(t, "wits", provider.Name())

	provider, err = BuildProvider("comtrade")
	require.NoError(t, err)
	assert.Equal(t, "comtrade", provider.Name())

	_, err = BuildProvider("imf")
	assert.Error(t, err)
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := testConfig(t, config.BackendNone)
	cfg.Year = 0
	_, err := New(cfg, logging.Discard())
	assert.Error(t, err)
}

func TestPipelineUsesConfiguredYear(t *testing.T) {
	cfg := testConfig(t, config.BackendNone)
	cfg.Year = 2019
	a, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	names := a.Pipeline(pipeline.Options{}).Names()
	assert.Equal(t, "wits-2019-countries", names.Countries)
}

func TestOverridesApply(t *testing.T) {
	cfg := testConfig(t, config.BackendFile)
	Overrides{Provider: " Comtrade ", Year: 2018, Backend: "SQLite"}.Apply(cfg)
	assert.Equal(t, config.ProviderComtrade, cfg.Provider)
	assert.Equal(t, 2018, cfg.Year)
	assert.Equal(t, 5, cfg.Top)
	assert.Equal(t, config.BackendSQLite, cfg.Cache.Backend)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tradeshare.yaml")
	body := "provider: wits\nyear: 2021\ncache:\n  backend: file\n  dir: " + filepath.Join(dir, "cache") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	a, err := Load(path, Overrides{Top: 3}, io.Discard)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 2021, a.Config.Year)
	assert.Equal(t, 3, a.Config.Top)
	assert.IsType(t, &filestore.Store{}, a.Store)
}

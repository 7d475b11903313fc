package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeshare/internal/store"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	return s
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	_, ok, err := s.Load(ctx, "countries")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, "countries", []byte(`[{"iso3":"USA"}]`)))
	body, ok, err := s.Load(ctx, "countries")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `[{"iso3":"USA"}]`, string(body))

	onDisk, err := os.ReadFile(filepath.Join(s.Dir(), "countries.json"))
	require.NoError(t, err)
	assert.Equal(t, body, onDisk)
}

func TestSaveReplacesWithoutLeftovers(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	require.NoError(t, s.Save(ctx, "xprtgraph", []byte("1")))
	require.NoError(t, s.Save(ctx, "xprtgraph", []byte("2")))

	body, _, err := s.Load(ctx, "xprtgraph")
	require.NoError(t, err)
	assert.Equal(t, "2", string(body))

	items, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	require.NoError(t, s.Save(ctx, "mprtdata", []byte("{}")))
	body := []byte(`{"USA":{}}`)
	require.NoError(t, s.Save(ctx, "imexdata", body))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0o644))

	entries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "imexdata", entries[0].Name)
	assert.Equal(t, int64(len(body)), entries[0].Size)
	assert.Equal(t, "mprtdata", entries[1].Name)

	require.NoError(t, s.Delete(ctx, "mprtdata"))
	require.NoError(t, s.Delete(ctx, "mprtdata"))
	_, ok, err := s.Load(ctx, "mprtdata")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRejectsPathNames(t *testing.T) {
	s := testStore(t)
	err := s.Save(context.Background(), "../escape", []byte("{}"))
	assert.ErrorIs(t, err, store.ErrInvalidName)
}

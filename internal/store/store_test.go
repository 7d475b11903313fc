package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	NopStore
	docs map[string][]byte
}

func (m *memStore) Load(ctx context.Context, name string) ([]byte, bool, error) {
	body, ok := m.docs[name]
	return body, ok, nil
}

func (m *memStore) Save(ctx context.Context, name string, body []byte) error {
	m.docs[name] = body
	return nil
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := &memStore{docs: map[string][]byte{}}

	require.NoError(t, SaveJSON(ctx, s, "imexdata", map[string]float64{"CHN": 8.65}))
	assert.Equal(t, "{\n  \"CHN\": 8.65\n}\n", string(s.docs["imexdata"]))

	var got map[string]float64
	ok, err := LoadJSON(ctx, s, "imexdata", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[string]float64{"CHN": 8.65}, got)

	ok, err = LoadJSON(ctx, s, "missing", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	s.docs["broken"] = []byte("{")
	_, err = LoadJSON(ctx, s, "broken", &got)
	assert.Error(t, err)
}

func TestNopStoreAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	s := &NopStore{}
	require.NoError(t, s.Save(ctx, "countries", []byte("[]")))

	_, ok, err := s.Load(ctx, "countries")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("xprtgraph"))
	assert.NoError(t, ValidateName("comtrade-2019-xprtdata"))
	for _, name := range []string{"", " ", "../etc", "a/b", `a\b`, ".hidden"} {
		assert.ErrorIs(t, ValidateName(name), ErrInvalidName, name)
	}
}

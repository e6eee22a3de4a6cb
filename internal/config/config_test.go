package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	assert.NoError(t, Defaults().Validate())
}

func TestValidateOverlapMustBeLessThanSize(t *testing.T) {
	s := Defaults()
	s.ChunkOverlap = s.ChunkSize
	assert.Error(t, s.Validate())
}

func TestStoreLoadAndPersist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nCHUNK_SIZE=500\nCHUNK_OVERLAP=50\n"), 0o644))

	store, err := NewStore(path, nil)
	require.NoError(t, err)

	got := store.Get()
	assert.Equal(t, 500, got.ChunkSize)
	assert.Equal(t, 50, got.ChunkOverlap)

	var invalidated bool
	store.OnChange(func(prev, cur Settings) { invalidated = true })

	_, err = store.Update(func(s *Settings) { s.ChunkSize = 900 }, true)
	require.NoError(t, err)
	assert.True(t, invalidated)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# comment")
	assert.Contains(t, string(data), "CHUNK_SIZE=900")
}

func TestUpdateRejectsInvalid(t *testing.T) {
	store, err := NewStore("", nil)
	require.NoError(t, err)
	_, err = store.Update(func(s *Settings) { s.ChunkOverlap = s.ChunkSize + 1 }, false)
	assert.Error(t, err)
}

func TestModelsFor(t *testing.T) {
	s := Defaults()
	assert.Contains(t, s.ModelsFor("openai"), "gpt-4o-mini")
	assert.Empty(t, s.ModelsFor("unknown"))
}

package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testBundle struct {
	Name    string    `json:"name"`
	Weights []float64 `json:"weights"`
}

func TestStore_SaveLoad(t *testing.T) {
	t.Run("round-trips a bundle", func(t *testing.T) {
		store := NewStore(t.TempDir(), nil)

		in := testBundle{Name: "time_model", Weights: []float64{0.5, -1.25, 3}}
		require.NoError(t, store.Save("time_model", in))

		var out testBundle
		found, err := store.Load("time_model", &out)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, in, out)
	})

	t.Run("missing bundle is a soft miss", func(t *testing.T) {
		store := NewStore(t.TempDir(), nil)

		var out testBundle
		found, err := store.Load("nope", &out)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("corrupt bundle surfaces a decode error", func(t *testing.T) {
		dir := t.TempDir()
		store := NewStore(dir, nil)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644))

		var out testBundle
		found, err := store.Load("broken", &out)
		assert.Error(t, err)
		assert.False(t, found)
	})

	t.Run("save replaces the previous bundle", func(t *testing.T) {
		store := NewStore(t.TempDir(), nil)
		require.NoError(t, store.Save("m", testBundle{Name: "v1"}))
		require.NoError(t, store.Save("m", testBundle{Name: "v2"}))

		var out testBundle
		found, err := store.Load("m", &out)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "v2", out.Name)
	})

	t.Run("save creates the base directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "models")
		store := NewStore(dir, nil)
		require.NoError(t, store.Save("m", testBundle{}))
		assert.True(t, store.Exists("m"))
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		dir := t.TempDir()
		store := NewStore(dir, nil)
		require.NoError(t, store.Save("m", testBundle{}))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "m.json", entries[0].Name())
	})
}

func TestStore_Exists(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	assert.False(t, store.Exists("m"))
	require.NoError(t, store.Save("m", testBundle{}))
	assert.True(t, store.Exists("m"))
}

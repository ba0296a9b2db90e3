package artifact

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	dir := t.TempDir()
	store, err := NewStore(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return store, dir
}

func TestStore_SaveUpload(t *testing.T) {
	store, dir := newTestStore(t)

	path, err := store.SaveUpload("clip.mp4", strings.NewReader("fake video bytes"))
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(path))
	assert.Equal(t, ".mp4", filepath.Ext(path))
	assert.Equal(t, dir, filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fake video bytes", string(data))

	// Staged names never collide even for identical source filenames.
	second, err := store.SaveUpload("clip.mp4", strings.NewReader("other"))
	require.NoError(t, err)
	assert.NotEqual(t, path, second)
}

func TestStore_SaveUpload_NoExtension(t *testing.T) {
	store, _ := newTestStore(t)

	path, err := store.SaveUpload("clip", strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, ".tmp", filepath.Ext(path))
}

func TestStore_Readable(t *testing.T) {
	store, dir := newTestStore(t)

	nonEmpty := filepath.Join(dir, "mesh.obj")
	require.NoError(t, os.WriteFile(nonEmpty, []byte("v 0 0 0\n"), 0o644))

	empty := filepath.Join(dir, "empty.obj")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	tests := []struct {
		name     string
		location string
		want     bool
	}{
		{name: "non-empty regular file", location: nonEmpty, want: true},
		{name: "empty file", location: empty, want: false},
		{name: "missing file", location: filepath.Join(dir, "gone.obj"), want: false},
		{name: "directory", location: dir, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, store.Readable(tt.location))
		})
	}
}

func TestStore_Open(t *testing.T) {
	store, dir := newTestStore(t)

	path := filepath.Join(dir, "mesh.obj")
	require.NoError(t, os.WriteFile(path, []byte("v 0 0 0\n"), 0o644))

	f, size, err := store.Open(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, int64(8), size)

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "v 0 0 0\n", string(data))

	_, _, err = store.Open(filepath.Join(dir, "gone.obj"))
	assert.Error(t, err)
}

func TestStore_Remove(t *testing.T) {
	store, dir := newTestStore(t)

	path := filepath.Join(dir, "mesh.obj")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	require.NoError(t, store.Remove(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Removing again, or removing nothing, is a no-op.
	assert.NoError(t, store.Remove(path))
	assert.NoError(t, store.Remove(""))
}

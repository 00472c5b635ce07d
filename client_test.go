package storify_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/storify"
	"github.com/sagarc03/storify/filesystem"
)

// newTestClient builds a client over a filesystem backend rooted in a fresh
// temp directory, seeded with the given files.
func newTestClient(t *testing.T, files map[string]string) (*storify.Client, string) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	root, err := os.OpenRoot(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = root.Close() })
	return storify.NewClient(filesystem.NewStore(root)), dir
}

func collectList(t *testing.T, c *storify.Client, path string, opts storify.ListOptions) []storify.Entry {
	t.Helper()
	var entries []storify.Entry
	require.NoError(t, c.List(context.Background(), path, opts, func(e storify.Entry) error {
		entries = append(entries, e)
		return nil
	}))
	return entries
}

func entryPaths(entries []storify.Entry) []string {
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	return paths
}

func TestClient_Provider(t *testing.T) {
	c, _ := newTestClient(t, nil)
	assert.Equal(t, storify.ProviderFS, c.Provider())
}

func TestClient_Stat(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{"docs/a.txt": "hello"})

	e, err := c.Stat(context.Background(), "docs/a.txt")
	assert.NoError(t, err)
	assert.Equal(t, "/docs/a.txt", e.Path)
	assert.Equal(t, storify.KindFile, e.Kind)
	assert.Equal(t, int64(5), e.Size)

	_, err = c.Stat(context.Background(), "/missing")
	assert.ErrorIs(t, err, storify.ErrNotFound)
}

func TestClient_List_Directory(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{
		"docs/a.txt":     "a",
		"docs/b.txt":     "b",
		"docs/sub/c.txt": "c",
	})

	entries := collectList(t, c, "/docs", storify.ListOptions{})
	assert.Equal(t, []string{"/docs/a.txt", "/docs/b.txt", "/docs/sub"}, entryPaths(entries))
}

func TestClient_List_Recursive(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{
		"docs/a.txt":     "a",
		"docs/sub/c.txt": "c",
	})

	entries := collectList(t, c, "/", storify.ListOptions{Recursive: true})
	assert.Equal(t, []string{"/docs", "/docs/a.txt", "/docs/sub", "/docs/sub/c.txt"}, entryPaths(entries))
}

func TestClient_List_FileYieldsItself(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{"a.txt": "a"})

	entries := collectList(t, c, "/a.txt", storify.ListOptions{})
	require.Len(t, entries, 1)
	assert.Equal(t, "/a.txt", entries[0].Path)
	assert.Equal(t, storify.KindFile, entries[0].Kind)
}

func TestClient_List_EmptyDirectory(t *testing.T) {
	c, dir := newTestClient(t, nil)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "empty"), 0o755))

	entries := collectList(t, c, "/empty", storify.ListOptions{})
	assert.Empty(t, entries)
}

func TestClient_List_Missing(t *testing.T) {
	c, _ := newTestClient(t, nil)

	err := c.List(context.Background(), "/missing", storify.ListOptions{}, func(storify.Entry) error { return nil })
	assert.ErrorIs(t, err, storify.ErrNotFound)
}

func TestClient_List_InvalidPath(t *testing.T) {
	c, _ := newTestClient(t, nil)

	err := c.List(context.Background(), "../escape", storify.ListOptions{}, func(storify.Entry) error { return nil })
	assert.ErrorIs(t, err, storify.ErrInvalidArgument)
}

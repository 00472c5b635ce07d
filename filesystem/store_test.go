package filesystem_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/storify"
	"github.com/sagarc03/storify/filesystem"
)

func newStore(t *testing.T) (*filesystem.Store, string) {
	t.Helper()
	tempDir := t.TempDir()
	root, err := os.OpenRoot(tempDir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = root.Close() })
	return filesystem.NewStore(root), tempDir
}

func seedFile(t *testing.T, dir, name, content string) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func listPaths(t *testing.T, store *filesystem.Store, dir string, recursive bool) []string {
	t.Helper()
	var paths []string
	err := store.List(context.Background(), dir, recursive, func(e storify.Entry) error {
		paths = append(paths, e.Path)
		return nil
	})
	require.NoError(t, err)
	return paths
}

func TestStore_OpenRead_Success(t *testing.T) {
	store, tempDir := newStore(t)
	seedFile(t, tempDir, "test.txt", "test content")

	rc, err := store.OpenRead(context.Background(), "/test.txt", nil)
	assert.NoError(t, err)

	data, err := io.ReadAll(rc)
	assert.NoError(t, err)
	assert.Equal(t, "test content", string(data))
	assert.NoError(t, rc.Close())
}

func TestStore_OpenRead_Range(t *testing.T) {
	store, tempDir := newStore(t)
	seedFile(t, tempDir, "test.txt", "hello world")

	tests := []struct {
		name string
		rng  storify.ByteRange
		want string
	}{
		{name: "window", rng: storify.ByteRange{Offset: 6, Length: 5}, want: "world"},
		{name: "to end", rng: storify.ByteRange{Offset: 6, Length: -1}, want: "world"},
		{name: "prefix", rng: storify.ByteRange{Offset: 0, Length: 5}, want: "hello"},
		{name: "past end", rng: storify.ByteRange{Offset: 100, Length: -1}, want: ""},
		{name: "window past end", rng: storify.ByteRange{Offset: 100, Length: 10}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, err := store.OpenRead(context.Background(), "/test.txt", &tt.rng)
			assert.NoError(t, err)

			data, err := io.ReadAll(rc)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
			assert.NoError(t, rc.Close())
		})
	}
}

func TestStore_OpenRead_NotFound(t *testing.T) {
	store, _ := newStore(t)

	rc, err := store.OpenRead(context.Background(), "/nonexistent.txt", nil)
	assert.Nil(t, rc)
	assert.ErrorIs(t, err, storify.ErrNotFound)
}

func TestStore_OpenRead_Directory(t *testing.T) {
	store, tempDir := newStore(t)
	seedFile(t, tempDir, "dir/inner.txt", "x")

	rc, err := store.OpenRead(context.Background(), "/dir", nil)
	assert.Nil(t, rc)
	assert.ErrorIs(t, err, storify.ErrInvalidArgument)
}

func TestStore_OpenRead_ContextCanceled(t *testing.T) {
	store, tempDir := newStore(t)
	seedFile(t, tempDir, "test.txt", "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rc, err := store.OpenRead(ctx, "/test.txt", nil)
	assert.Nil(t, rc)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_Write_Success(t *testing.T) {
	store, tempDir := newStore(t)

	n, err := store.Write(context.Background(), "/test.txt", strings.NewReader("test content"))
	assert.NoError(t, err)
	assert.Equal(t, int64(12), n)

	data, err := os.ReadFile(filepath.Join(tempDir, "test.txt"))
	assert.NoError(t, err)
	assert.Equal(t, "test content", string(data))

	// No temp files may survive a successful write.
	entries, err := os.ReadDir(tempDir)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_Write_CreatesParentDirectories(t *testing.T) {
	store, tempDir := newStore(t)

	n, err := store.Write(context.Background(), "/subdir/nested/test.txt", strings.NewReader("nested content"))
	assert.NoError(t, err)
	assert.Equal(t, int64(14), n)

	data, err := os.ReadFile(filepath.Join(tempDir, "subdir", "nested", "test.txt"))
	assert.NoError(t, err)
	assert.Equal(t, "nested content", string(data))
}

func TestStore_Write_ReplacesExisting(t *testing.T) {
	store, tempDir := newStore(t)
	seedFile(t, tempDir, "test.txt", "old")

	_, err := store.Write(context.Background(), "/test.txt", strings.NewReader("new"))
	assert.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(tempDir, "test.txt"))
	assert.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestStore_Write_DirectoryTarget(t *testing.T) {
	store, tempDir := newStore(t)
	seedFile(t, tempDir, "dir/inner.txt", "x")

	_, err := store.Write(context.Background(), "/dir", strings.NewReader("data"))
	assert.ErrorIs(t, err, storify.ErrInvalidArgument)
}

func TestStore_Write_ContextCanceledBefore(t *testing.T) {
	store, _ := newStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Write(ctx, "/test.txt", strings.NewReader("data"))
	assert.ErrorIs(t, err, context.Canceled)
}

type failReader struct{}

func (failReader) Read([]byte) (int, error) { return 0, errors.New("source failed") }

func TestStore_Write_SourceFailureLeavesNothing(t *testing.T) {
	store, tempDir := newStore(t)

	_, err := store.Write(context.Background(), "/test.txt", failReader{})
	assert.Error(t, err)

	// Neither the target nor any temp file may exist after a failed write.
	entries, err := os.ReadDir(tempDir)
	assert.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_Stat(t *testing.T) {
	store, tempDir := newStore(t)
	seedFile(t, tempDir, "dir/file.txt", "hello")

	t.Run("file", func(t *testing.T) {
		e, err := store.Stat(context.Background(), "/dir/file.txt")
		assert.NoError(t, err)
		assert.Equal(t, "/dir/file.txt", e.Path)
		assert.Equal(t, storify.KindFile, e.Kind)
		assert.Equal(t, int64(5), e.Size)
		assert.False(t, e.ModTime.IsZero())
	})

	t.Run("directory", func(t *testing.T) {
		e, err := store.Stat(context.Background(), "/dir")
		assert.NoError(t, err)
		assert.Equal(t, storify.KindDirectory, e.Kind)
		assert.Equal(t, int64(0), e.Size)
	})

	t.Run("root", func(t *testing.T) {
		e, err := store.Stat(context.Background(), "/")
		assert.NoError(t, err)
		assert.True(t, e.IsDir())
	})

	t.Run("missing", func(t *testing.T) {
		_, err := store.Stat(context.Background(), "/nope")
		assert.ErrorIs(t, err, storify.ErrNotFound)
	})
}

func TestStore_List_NonRecursive(t *testing.T) {
	store, tempDir := newStore(t)
	seedFile(t, tempDir, "a/deep.txt", "x")
	seedFile(t, tempDir, "b.txt", "x")
	seedFile(t, tempDir, "c.txt", "x")

	paths := listPaths(t, store, "/", false)
	assert.Equal(t, []string{"/a", "/b.txt", "/c.txt"}, paths)
}

func TestStore_List_Recursive(t *testing.T) {
	store, tempDir := newStore(t)
	seedFile(t, tempDir, "a/deep.txt", "x")
	seedFile(t, tempDir, "a/sub/deeper.txt", "x")
	seedFile(t, tempDir, "b.txt", "x")

	paths := listPaths(t, store, "/", true)
	assert.Equal(t, []string{"/a", "/a/deep.txt", "/a/sub", "/a/sub/deeper.txt", "/b.txt"}, paths)
}

func TestStore_List_Errors(t *testing.T) {
	store, tempDir := newStore(t)
	seedFile(t, tempDir, "file.txt", "x")

	t.Run("file argument", func(t *testing.T) {
		err := store.List(context.Background(), "/file.txt", false, func(storify.Entry) error { return nil })
		assert.ErrorIs(t, err, storify.ErrInvalidArgument)
	})

	t.Run("missing directory", func(t *testing.T) {
		err := store.List(context.Background(), "/nope", false, func(storify.Entry) error { return nil })
		assert.ErrorIs(t, err, storify.ErrNotFound)
	})

	t.Run("callback error stops the walk", func(t *testing.T) {
		errStop := errors.New("stop")
		err := store.List(context.Background(), "/", false, func(storify.Entry) error { return errStop })
		assert.ErrorIs(t, err, errStop)
	})
}

func TestStore_Delete(t *testing.T) {
	store, tempDir := newStore(t)
	seedFile(t, tempDir, "file.txt", "x")
	seedFile(t, tempDir, "full/inner.txt", "x")
	require.NoError(t, os.Mkdir(filepath.Join(tempDir, "empty"), 0o755))

	t.Run("file", func(t *testing.T) {
		assert.NoError(t, store.Delete(context.Background(), "/file.txt"))
		_, err := os.Stat(filepath.Join(tempDir, "file.txt"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("empty directory", func(t *testing.T) {
		assert.NoError(t, store.Delete(context.Background(), "/empty"))
	})

	t.Run("non-empty directory", func(t *testing.T) {
		err := store.Delete(context.Background(), "/full")
		assert.ErrorIs(t, err, storify.ErrInvalidArgument)
	})

	t.Run("missing", func(t *testing.T) {
		err := store.Delete(context.Background(), "/nope")
		assert.ErrorIs(t, err, storify.ErrNotFound)
	})
}

func TestStore_CreateDir(t *testing.T) {
	store, tempDir := newStore(t)
	seedFile(t, tempDir, "file.txt", "x")

	t.Run("plain", func(t *testing.T) {
		assert.NoError(t, store.CreateDir(context.Background(), "/newdir", false))
		info, err := os.Stat(filepath.Join(tempDir, "newdir"))
		assert.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("missing parent", func(t *testing.T) {
		err := store.CreateDir(context.Background(), "/no/such/parent", false)
		assert.ErrorIs(t, err, storify.ErrNotFound)
	})

	t.Run("recursive", func(t *testing.T) {
		assert.NoError(t, store.CreateDir(context.Background(), "/a/b/c", true))
		info, err := os.Stat(filepath.Join(tempDir, "a", "b", "c"))
		assert.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("existing directory", func(t *testing.T) {
		err := store.CreateDir(context.Background(), "/newdir", false)
		assert.ErrorIs(t, err, storify.ErrAlreadyExists)
	})

	t.Run("existing file", func(t *testing.T) {
		err := store.CreateDir(context.Background(), "/file.txt", false)
		assert.ErrorIs(t, err, storify.ErrAlreadyExists)
	})
}

func TestStore_Copy(t *testing.T) {
	store, tempDir := newStore(t)
	seedFile(t, tempDir, "src.txt", "copy me")
	seedFile(t, tempDir, "dir/inner.txt", "x")

	t.Run("file", func(t *testing.T) {
		assert.NoError(t, store.Copy(context.Background(), "/src.txt", "/dst.txt"))

		data, err := os.ReadFile(filepath.Join(tempDir, "dst.txt"))
		assert.NoError(t, err)
		assert.Equal(t, "copy me", string(data))

		// Source is untouched.
		data, err = os.ReadFile(filepath.Join(tempDir, "src.txt"))
		assert.NoError(t, err)
		assert.Equal(t, "copy me", string(data))
	})

	t.Run("creates destination parents", func(t *testing.T) {
		assert.NoError(t, store.Copy(context.Background(), "/src.txt", "/new/deep/dst.txt"))
		data, err := os.ReadFile(filepath.Join(tempDir, "new", "deep", "dst.txt"))
		assert.NoError(t, err)
		assert.Equal(t, "copy me", string(data))
	})

	t.Run("missing source", func(t *testing.T) {
		err := store.Copy(context.Background(), "/nope.txt", "/dst2.txt")
		assert.ErrorIs(t, err, storify.ErrNotFound)
	})

	t.Run("directory source", func(t *testing.T) {
		err := store.Copy(context.Background(), "/dir", "/dst3")
		assert.ErrorIs(t, err, storify.ErrInvalidArgument)
	})
}

func TestStore_Rename(t *testing.T) {
	store, tempDir := newStore(t)
	seedFile(t, tempDir, "src.txt", "move me")
	seedFile(t, tempDir, "tree/inner.txt", "x")

	t.Run("file", func(t *testing.T) {
		assert.NoError(t, store.Rename(context.Background(), "/src.txt", "/dst.txt"))

		data, err := os.ReadFile(filepath.Join(tempDir, "dst.txt"))
		assert.NoError(t, err)
		assert.Equal(t, "move me", string(data))

		_, err = os.Stat(filepath.Join(tempDir, "src.txt"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("directory", func(t *testing.T) {
		assert.NoError(t, store.Rename(context.Background(), "/tree", "/moved"))

		data, err := os.ReadFile(filepath.Join(tempDir, "moved", "inner.txt"))
		assert.NoError(t, err)
		assert.Equal(t, "x", string(data))
	})

	t.Run("missing source", func(t *testing.T) {
		err := store.Rename(context.Background(), "/nope.txt", "/dst2.txt")
		assert.ErrorIs(t, err, storify.ErrNotFound)
	})

	t.Run("missing destination parent", func(t *testing.T) {
		err := store.Rename(context.Background(), "/dst.txt", "/no/such/dir/f.txt")
		assert.ErrorIs(t, err, storify.ErrNotFound)
	})
}

func TestStore_Append(t *testing.T) {
	store, tempDir := newStore(t)
	seedFile(t, tempDir, "log.txt", "line one\n")

	t.Run("existing file grows", func(t *testing.T) {
		n, err := store.Append(context.Background(), "/log.txt", strings.NewReader("line two\n"))
		assert.NoError(t, err)
		assert.Equal(t, int64(9), n)

		data, err := os.ReadFile(filepath.Join(tempDir, "log.txt"))
		assert.NoError(t, err)
		assert.Equal(t, "line one\nline two\n", string(data))
	})

	t.Run("missing file is created", func(t *testing.T) {
		n, err := store.Append(context.Background(), "/fresh.txt", bytes.NewReader([]byte("start")))
		assert.NoError(t, err)
		assert.Equal(t, int64(5), n)

		data, err := os.ReadFile(filepath.Join(tempDir, "fresh.txt"))
		assert.NoError(t, err)
		assert.Equal(t, "start", string(data))
	})

	t.Run("missing parent", func(t *testing.T) {
		_, err := store.Append(context.Background(), "/no/parent.txt", strings.NewReader("x"))
		assert.ErrorIs(t, err, storify.ErrNotFound)
	})
}

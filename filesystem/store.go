// Package filesystem implements the fs provider over a local directory tree.
// Operations are sandboxed inside an os.Root so virtual paths can never
// escape the configured root, writes stage to a temp file and rename into
// place atomically, and appends use O_APPEND natively.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sagarc03/storify"
)

// Store provides storage operations over one local directory.
type Store struct {
	root *os.Root
}

// NewStore creates a Store over the given root directory. The root provides
// sandboxed file operations preventing path traversal.
func NewStore(root *os.Root) *Store {
	return &Store{root: root}
}

// Provider identifies this connector.
func (s *Store) Provider() storify.Provider { return storify.ProviderFS }

// Capabilities reports seekable reads and real directories.
func (s *Store) Capabilities() storify.Capabilities {
	return storify.Capabilities{RangedRead: true, HierarchicalDirs: true}
}

// List streams the entries under dir in ReadDir order, recursing depth first
// with parents before children.
func (s *Store) List(ctx context.Context, dir string, recursive bool, fn storify.ListFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := s.root.Stat(fsPath(dir))
	if err != nil {
		return translate("list", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", storify.ErrInvalidArgument, dir)
	}

	return s.walkDir(ctx, dir, recursive, fn)
}

func (s *Store) walkDir(ctx context.Context, dir string, recursive bool, fn storify.ListFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dirEntries, err := fs.ReadDir(s.root.FS(), fsPath(dir))
	if err != nil {
		return translate("list", dir, err)
	}

	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return err
		}

		child, err := storify.JoinPath(dir, de.Name())
		if err != nil {
			return err
		}
		info, err := de.Info()
		if err != nil {
			return translate("stat", child, err)
		}

		e := entryFromInfo(child, info)
		if err := fn(e); err != nil {
			return err
		}
		if recursive && e.IsDir() {
			if err := s.walkDir(ctx, child, recursive, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Stat returns the entry at path, directories included.
func (s *Store) Stat(ctx context.Context, path string) (storify.Entry, error) {
	if err := ctx.Err(); err != nil {
		return storify.Entry{}, err
	}

	info, err := s.root.Stat(fsPath(path))
	if err != nil {
		return storify.Entry{}, translate("stat", path, err)
	}
	return entryFromInfo(path, info), nil
}

// OpenRead opens path for streaming reads, honoring rng via a seek. Seeking
// past the end is not an error; the stream just yields nothing.
func (s *Store) OpenRead(ctx context.Context, path string, rng *storify.ByteRange) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.root.Open(fsPath(path))
	if err != nil {
		return nil, translate("open", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		closeQuietly(f, path)
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		closeQuietly(f, path)
		return nil, fmt.Errorf("%w: %s is a directory", storify.ErrInvalidArgument, path)
	}

	if rng == nil {
		return f, nil
	}
	if _, err := f.Seek(rng.Offset, io.SeekStart); err != nil {
		closeQuietly(f, path)
		return nil, fmt.Errorf("seek %s: %w", path, err)
	}
	if rng.Length < 0 {
		return f, nil
	}
	return &rangeReader{r: io.LimitReader(f, rng.Length), f: f}, nil
}

// rangeReader bounds a seeked file to the requested window while keeping the
// file itself as the closer.
type rangeReader struct {
	r io.Reader
	f *os.File
}

func (r *rangeReader) Read(p []byte) (int, error) { return r.r.Read(p) }
func (r *rangeReader) Close() error               { return r.f.Close() }

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Write atomically writes content to path using a temp file and rename. It
// creates intermediate directories as needed and returns the number of bytes
// written. The copy respects context cancellation.
func (s *Store) Write(ctx context.Context, path string, content io.Reader) (int64, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, ctxErr
	}

	rel := fsPath(path)
	if info, err := s.root.Stat(rel); err == nil && info.IsDir() {
		return 0, fmt.Errorf("%w: %s is a directory", storify.ErrInvalidArgument, path)
	}

	tmpFile := tmpFileName()
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		return 0, fmt.Errorf("could not open temp file: %w", createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(tmpFile); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	written, err := io.Copy(t, &ctxReader{ctx: ctx, r: content})
	if err != nil {
		return 0, fmt.Errorf("could not copy file contents: %w", err)
	}

	if err := t.Sync(); err != nil {
		return 0, fmt.Errorf("could not sync written file: %w", err)
	}

	if destDir := filepath.Dir(rel); destDir != "." {
		if err := s.root.MkdirAll(destDir, 0o755); err != nil {
			return 0, fmt.Errorf("could not create intermediate directories: %w", err)
		}
	}

	if renameErr := s.root.Rename(tmpFile, rel); renameErr != nil {
		return 0, translate("rename", path, renameErr)
	}

	success = true
	return written, nil
}

// Delete removes a file or empty directory. A missing path is ErrNotFound; a
// directory that still has children is ErrInvalidArgument.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rel := fsPath(path)
	err := s.root.Remove(rel)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return storify.ErrNotFound
	}
	if info, statErr := s.root.Stat(rel); statErr == nil && info.IsDir() {
		return fmt.Errorf("%w: directory %s is not empty", storify.ErrInvalidArgument, path)
	}
	return translate("delete", path, err)
}

// CreateDir creates a directory at path. A missing parent is ErrNotFound
// unless recursive; anything already at path is ErrAlreadyExists.
func (s *Store) CreateDir(ctx context.Context, path string, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if storify.IsRoot(path) {
		return storify.ErrAlreadyExists
	}

	rel := fsPath(path)
	if _, err := s.root.Stat(rel); err == nil {
		return storify.ErrAlreadyExists
	}

	var err error
	if recursive {
		err = s.root.MkdirAll(rel, 0o755)
	} else {
		err = s.root.Mkdir(rel, 0o755)
	}
	if err != nil {
		return translate("mkdir", path, err)
	}
	return nil
}

// Copy duplicates a single file from src to dst through the atomic write
// path. Local disks have no server-side copy to defer to.
func (s *Store) Copy(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := s.root.Open(fsPath(src))
	if err != nil {
		return translate("open", src, err)
	}
	defer closeQuietly(f, src)

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", storify.ErrInvalidArgument, src)
	}

	if _, err := s.Write(ctx, dst, f); err != nil {
		return err
	}
	return nil
}

// Rename moves src to dst natively, files and whole directories alike. The
// destination parent must already exist.
func (s *Store) Rename(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.root.Rename(fsPath(src), fsPath(dst)); err != nil {
		return translate("rename", src, err)
	}
	return nil
}

// Append writes r after the current end of path, creating the file when
// absent. The parent directory must exist.
func (s *Store) Append(ctx context.Context, path string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	f, err := s.root.OpenFile(fsPath(path), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return 0, translate("open", path, err)
	}
	defer closeQuietly(f, path)

	appended, err := io.Copy(f, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		return 0, fmt.Errorf("could not append file contents: %w", err)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("could not sync appended file: %w", err)
	}
	return appended, nil
}

// fsPath converts a normalized virtual path into an os.Root-relative one.
func fsPath(p string) string {
	if storify.IsRoot(p) {
		return "."
	}
	return strings.TrimPrefix(p, "/")
}

// entryFromInfo builds the uniform Entry. Directory sizes are reported as
// zero so listings do not leak platform block sizes.
func entryFromInfo(path string, info fs.FileInfo) storify.Entry {
	e := storify.Entry{Path: path, ModTime: info.ModTime()}
	switch {
	case info.IsDir():
		e.Kind = storify.KindDirectory
	case info.Mode().IsRegular():
		e.Kind = storify.KindFile
		e.Size = info.Size()
	default:
		e.Kind = storify.KindOther
		e.Size = info.Size()
	}
	return e
}

// translate maps OS errors onto the package sentinels at the backend
// boundary; unmapped failures keep their operation context.
func translate(op, path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return storify.ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return storify.ErrPermissionDenied
	case errors.Is(err, fs.ErrExist):
		return storify.ErrAlreadyExists
	}
	return fmt.Errorf("%s %s: %w", op, path, err)
}

func closeQuietly(c io.Closer, path string) {
	if err := c.Close(); err != nil {
		slog.Warn("failed to close file", "path", path, "err", err)
	}
}

func tmpFileName() string {
	return fmt.Sprintf(".t%s", uuid.New().String())
}

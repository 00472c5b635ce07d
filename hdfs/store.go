// Package hdfs implements the hdfs provider over the native HDFS protocol.
// The cluster has real directories, so listings, renames and appends map
// directly onto name node operations. Writes stage to a temp file in the
// destination directory and rename into place, the same discipline the fs
// provider uses.
package hdfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"

	gohdfs "github.com/colinmarc/hdfs/v2"
	"github.com/google/uuid"

	"github.com/sagarc03/storify"
)

// Config carries the connection settings for one HDFS cluster.
type Config struct {
	// NameNode holds one or more name node host:port addresses, comma
	// separated.
	NameNode string
	// User is the identity operations run as. Empty falls back to
	// HADOOP_USER_NAME and then the process owner, the usual Hadoop client
	// resolution order.
	User string
	// RootPath scopes every operation under a directory inside the cluster.
	RootPath string
}

// Store provides storage operations over one HDFS cluster.
type Store struct {
	client *gohdfs.Client
	root   string
}

// NewStore connects to the name node described by cfg.
func NewStore(_ context.Context, cfg Config) (*Store, error) {
	if cfg.NameNode == "" {
		return nil, fmt.Errorf("%w: hdfs: name node address is required", storify.ErrConfig)
	}

	addresses := strings.Split(cfg.NameNode, ",")
	for i := range addresses {
		addresses[i] = strings.TrimSpace(addresses[i])
	}

	user := cfg.User
	if user == "" {
		user = os.Getenv("HADOOP_USER_NAME")
	}
	if user == "" {
		if u, err := gohdfs.Username(); err == nil {
			user = u
		}
	}

	client, err := gohdfs.NewClient(gohdfs.ClientOptions{Addresses: addresses, User: user})
	if err != nil {
		return nil, fmt.Errorf("hdfs: connect %s: %w", cfg.NameNode, err)
	}
	return &Store{client: client, root: path.Join("/", cfg.RootPath)}, nil
}

// Close releases the name node connection.
func (s *Store) Close() error { return s.client.Close() }

// Provider identifies this connector.
func (s *Store) Provider() storify.Provider { return storify.ProviderHDFS }

// Capabilities reports seekable reads and real directories.
func (s *Store) Capabilities() storify.Capabilities {
	return storify.Capabilities{RangedRead: true, HierarchicalDirs: true}
}

// List streams the entries under dir in name order, recursing depth first
// with parents before children.
func (s *Store) List(ctx context.Context, dir string, recursive bool, fn storify.ListFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := s.client.Stat(s.abs(dir))
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

	infos, err := s.client.ReadDir(s.abs(dir))
	if err != nil {
		return translate("list", dir, err)
	}

	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return err
		}

		child, err := storify.JoinPath(dir, info.Name())
		if err != nil {
			return err
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

	info, err := s.client.Stat(s.abs(path))
	if err != nil {
		return storify.Entry{}, translate("stat", path, err)
	}
	return entryFromInfo(path, info), nil
}

// OpenRead opens path for streaming reads, honoring rng via a seek. The
// client rejects seeks past the end of the file, so those windows read as
// empty without one.
func (s *Store) OpenRead(ctx context.Context, path string, rng *storify.ByteRange) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.client.Open(s.abs(path))
	if err != nil {
		return nil, translate("open", path, err)
	}

	info := f.Stat()
	if info.IsDir() {
		closeQuietly(f, path)
		return nil, fmt.Errorf("%w: %s is a directory", storify.ErrInvalidArgument, path)
	}

	if rng == nil {
		return f, nil
	}
	if rng.Length == 0 || rng.Offset >= info.Size() {
		closeQuietly(f, path)
		return io.NopCloser(strings.NewReader("")), nil
	}
	if _, err := f.Seek(rng.Offset, io.SeekStart); err != nil {
		closeQuietly(f, path)
		return nil, fmt.Errorf("seek %s: %w", path, err)
	}
	if rng.Length < 0 {
		return f, nil
	}
	return &rangeReader{r: io.LimitReader(f, rng.Length), c: f}, nil
}

// rangeReader bounds a seeked file to the requested window while keeping the
// file itself as the closer.
type rangeReader struct {
	r io.Reader
	c io.Closer
}

func (r *rangeReader) Read(p []byte) (int, error) { return r.r.Read(p) }
func (r *rangeReader) Close() error               { return r.c.Close() }

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

// Write writes content to path through a temp file in the destination
// directory and a rename, which HDFS performs atomically. Intermediate
// directories are created as needed. HDFS acknowledges buffered writes on
// close, so close errors fail the write.
func (s *Store) Write(ctx context.Context, p string, content io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	abs := s.abs(p)
	if info, err := s.client.Stat(abs); err == nil && info.IsDir() {
		return 0, fmt.Errorf("%w: %s is a directory", storify.ErrInvalidArgument, p)
	}

	dir := path.Dir(abs)
	if dir != "/" {
		if err := s.client.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("could not create intermediate directories: %w", err)
		}
	}

	tmp := path.Join(dir, tmpFileName())
	w, err := s.client.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("could not open temp file: %w", err)
	}

	written, err := io.Copy(w, &ctxReader{ctx: ctx, r: content})
	if err != nil {
		closeQuietly(w, tmp)
		s.removeQuietly(tmp)
		return 0, fmt.Errorf("could not copy file contents: %w", err)
	}
	if err := w.Close(); err != nil {
		s.removeQuietly(tmp)
		return 0, fmt.Errorf("could not flush written file: %w", err)
	}

	if err := s.client.Rename(tmp, abs); err != nil {
		s.removeQuietly(tmp)
		return 0, translate("rename", p, err)
	}
	return written, nil
}

// Append writes r after the current end of path, creating the file when
// absent. The parent directory must exist.
func (s *Store) Append(ctx context.Context, path string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	abs := s.abs(path)
	w, err := s.client.Append(abs)
	if errors.Is(err, fs.ErrNotExist) {
		w, err = s.client.Create(abs)
	}
	if err != nil {
		return 0, translate("append", path, err)
	}

	appended, err := io.Copy(w, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		closeQuietly(w, path)
		return 0, fmt.Errorf("could not append file contents: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("could not flush appended file: %w", err)
	}
	return appended, nil
}

// Delete removes a file or empty directory. A missing path is ErrNotFound; a
// directory that still has children is ErrInvalidArgument.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if storify.IsRoot(path) {
		return fmt.Errorf("%w: cannot delete the storage root", storify.ErrInvalidArgument)
	}

	abs := s.abs(path)
	info, err := s.client.Stat(abs)
	if err != nil {
		return translate("delete", path, err)
	}
	if info.IsDir() {
		entries, err := s.client.ReadDir(abs)
		if err != nil {
			return translate("delete", path, err)
		}
		if len(entries) > 0 {
			return fmt.Errorf("%w: directory %s is not empty", storify.ErrInvalidArgument, path)
		}
	}

	if err := s.client.Remove(abs); err != nil {
		return translate("delete", path, err)
	}
	return nil
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

	abs := s.abs(path)
	if _, err := s.client.Stat(abs); err == nil {
		return storify.ErrAlreadyExists
	}

	var err error
	if recursive {
		err = s.client.MkdirAll(abs, 0o755)
	} else {
		err = s.client.Mkdir(abs, 0o755)
	}
	if err != nil {
		return translate("mkdir", path, err)
	}
	return nil
}

// Copy duplicates a single file from src to dst by streaming through the
// client; HDFS has no server-side copy.
func (s *Store) Copy(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := s.client.Open(s.abs(src))
	if err != nil {
		return translate("open", src, err)
	}
	defer closeQuietly(f, src)

	if f.Stat().IsDir() {
		return fmt.Errorf("%w: %s is a directory", storify.ErrInvalidArgument, src)
	}

	if _, err := s.Write(ctx, dst, f); err != nil {
		return err
	}
	return nil
}

// Rename moves src to dst natively, files and whole directories alike.
func (s *Store) Rename(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.client.Rename(s.abs(src), s.abs(dst)); err != nil {
		return translate("rename", src, err)
	}
	return nil
}

// abs converts a normalized virtual path into a cluster-absolute one under
// the configured root.
func (s *Store) abs(p string) string {
	if storify.IsRoot(p) {
		return s.root
	}
	return path.Join(s.root, strings.TrimPrefix(p, "/"))
}

func (s *Store) removeQuietly(abs string) {
	if err := s.client.Remove(abs); err != nil {
		slog.Warn("failed to remove tmp file", "path", abs, "err", err)
	}
}

// entryFromInfo builds the uniform Entry. HDFS reports directory sizes as
// zero already; symlinks and other exotics surface as KindOther.
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

// translate maps client errors onto the package sentinels at the backend
// boundary. The client mirrors os error values for name node exceptions.
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

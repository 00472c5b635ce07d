// Package objstore holds the keyspace conventions shared by the flat
// object-store connectors. A directory is a zero-byte marker object whose
// key ends in "/", or any prefix at least one object key lives under. The
// helpers here translate between virtual paths and object keys and turn
// ordered key listings back into entries so every flat provider renders
// the same tree as a hierarchical one.
package objstore

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/sagarc03/storify"
)

// Mapper translates virtual paths into object keys under a fixed prefix.
// The zero Mapper maps the storage root onto the bucket root.
type Mapper struct {
	prefix string
}

// NewMapper builds a Mapper for a root path inside the bucket. Empty and
// "/" both mean the bucket root.
func NewMapper(rootPath string) Mapper {
	trimmed := strings.Trim(strings.TrimSpace(rootPath), "/")
	if trimmed == "" {
		return Mapper{}
	}
	return Mapper{prefix: trimmed + "/"}
}

// Key returns the object key for a file at path.
func (m Mapper) Key(path string) string {
	return m.prefix + strings.TrimPrefix(path, "/")
}

// DirKey returns the marker key for a directory at path: the file key with
// a trailing slash. The root maps to the bare prefix, which doubles as the
// listing prefix for the whole store.
func (m Mapper) DirKey(path string) string {
	if storify.IsRoot(path) {
		return m.prefix
	}
	return m.Key(path) + "/"
}

// Path is the inverse of Key and DirKey.
func (m Mapper) Path(key string) string {
	rel := strings.TrimSuffix(strings.TrimPrefix(key, m.prefix), "/")
	return "/" + rel
}

// IsDirKey reports whether key names a directory marker.
func IsDirKey(key string) bool { return strings.HasSuffix(key, "/") }

// Item is one raw listing row before translation into an Entry.
type Item struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// MergeChildren translates one delimiter-listing page into entries in key
// order. Providers return objects and common prefixes as two separately
// sorted lists; interleaving them keeps flat listings in the order a
// hierarchical backend would produce. The directory's own marker is skipped.
func (m Mapper) MergeChildren(dir string, objects []Item, prefixes []string, fn storify.ListFunc) error {
	self := m.DirKey(dir)
	i, j := 0, 0
	for i < len(objects) || j < len(prefixes) {
		if j == len(prefixes) || (i < len(objects) && objects[i].Key < prefixes[j]) {
			it := objects[i]
			i++
			if it.Key == self || IsDirKey(it.Key) {
				continue
			}
			e := storify.Entry{Path: m.Path(it.Key), Kind: storify.KindFile, Size: it.Size, ModTime: it.ModTime}
			if err := fn(e); err != nil {
				return err
			}
			continue
		}
		p := prefixes[j]
		j++
		if err := fn(storify.Entry{Path: m.Path(p), Kind: storify.KindDirectory}); err != nil {
			return err
		}
	}
	return nil
}

// Walker turns a lexicographically ordered recursive key listing into
// entries, inserting synthetic directory entries for prefixes that have no
// marker object so parents always precede their children.
type Walker struct {
	m    Mapper
	base string
	fn   storify.ListFunc
	seen map[string]struct{}
}

// NewWalker prepares a walk of the keys under dir.
func NewWalker(m Mapper, dir string, fn storify.ListFunc) *Walker {
	return &Walker{m: m, base: dir, fn: fn, seen: make(map[string]struct{})}
}

// Offer feeds one listed object in key order. Marker keys become directory
// entries carrying the marker's metadata; other keys become files.
func (w *Walker) Offer(key string, size int64, modTime time.Time) error {
	path := w.m.Path(key)
	if path == w.base {
		return nil
	}
	if err := w.emitAncestors(path); err != nil {
		return err
	}
	if IsDirKey(key) {
		if _, ok := w.seen[path]; ok {
			return nil
		}
		w.seen[path] = struct{}{}
		return w.fn(storify.Entry{Path: path, Kind: storify.KindDirectory, ModTime: modTime})
	}
	return w.fn(storify.Entry{Path: path, Kind: storify.KindFile, Size: size, ModTime: modTime})
}

// emitAncestors announces the directories between base and path that no
// marker introduced yet, top-down.
func (w *Walker) emitAncestors(path string) error {
	var missing []string
	for p := storify.ParentDir(path); p != w.base && !storify.IsRoot(p); p = storify.ParentDir(p) {
		if _, ok := w.seen[p]; ok {
			break
		}
		missing = append(missing, p)
	}
	for i := len(missing) - 1; i >= 0; i-- {
		w.seen[missing[i]] = struct{}{}
		if err := w.fn(storify.Entry{Path: missing[i], Kind: storify.KindDirectory}); err != nil {
			return err
		}
	}
	return nil
}

// CountingReader counts the bytes its wrapped reader delivers, for
// connectors whose SDK does not report an upload size.
type CountingReader struct {
	R io.Reader
	N int64
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	c.N += int64(n)
	return n, err
}

// ContextReader aborts a stream once ctx is done, for SDKs whose calls do
// not take a context themselves.
type ContextReader struct {
	Ctx context.Context
	R   io.Reader
}

func (r *ContextReader) Read(p []byte) (int, error) {
	if err := r.Ctx.Err(); err != nil {
		return 0, err
	}
	return r.R.Read(p)
}

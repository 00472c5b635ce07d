package storify

import (
	"context"
	"io"
)

// Capabilities describes what a backend can do beyond the core contract.
// Commands consult it to pick strategies instead of probing with trial calls.
type Capabilities struct {
	// RangedRead is true when OpenRead honors a ByteRange. Backends without
	// it receive rng == nil and callers fall back to forward streaming.
	RangedRead bool
	// HierarchicalDirs is true when directories exist as real objects that
	// must be created before children and removed after them. Flat object
	// stores synthesize directories from key prefixes instead.
	HierarchicalDirs bool
}

// Backend is the uniform surface every storage connector implements. All
// paths are virtual: rooted at the configured prefix, separated by forward
// slashes, never carrying a trailing slash. Every method translates its
// provider's failures into the package sentinel errors exactly once, at this
// boundary, so callers never see SDK error types.
type Backend interface {
	// Provider identifies which connector this is.
	Provider() Provider

	// Capabilities reports the optional behaviors this backend supports.
	Capabilities() Capabilities

	// List walks the entries under dir, calling fn once per entry in the
	// backend's natural order. With recursive false only immediate children
	// are visited; with recursive true the whole subtree is. Listing never
	// buffers the full result: entries stream to fn as the backend yields
	// them, and an error from fn stops the walk. Listing a path that is a
	// file returns ErrInvalidArgument; a missing path returns ErrNotFound.
	List(ctx context.Context, dir string, recursive bool, fn ListFunc) error

	// Stat returns the entry for a single path, directories included.
	Stat(ctx context.Context, path string) (Entry, error)

	// OpenRead opens the object at path for streaming reads. A non-nil rng
	// restricts the stream to that byte window; passing one to a backend
	// without RangedRead is a caller bug. The returned reader must be closed.
	OpenRead(ctx context.Context, path string, rng *ByteRange) (io.ReadCloser, error)

	// Write stores the contents of r at path, replacing whatever was there.
	// The object becomes visible only on success: connectors stage to a
	// temporary name or rely on atomic puts so readers never observe a
	// half-written object under the final path. Returns the byte count.
	Write(ctx context.Context, path string, r io.Reader) (int64, error)

	// Delete removes the object or empty directory at path. Deleting a
	// non-empty directory returns ErrInvalidArgument; missing paths return
	// ErrNotFound.
	Delete(ctx context.Context, path string) error

	// CreateDir creates a directory at path. With recursive true missing
	// parents are created too; without it a missing parent is ErrNotFound.
	// An existing directory at path returns ErrAlreadyExists.
	CreateDir(ctx context.Context, path string, recursive bool) error

	// Copy duplicates a single object from src to dst within this backend,
	// server-side where the provider supports it.
	Copy(ctx context.Context, src, dst string) error

	// Rename moves a single object from src to dst within this backend.
	// Connectors without a native rename implement copy-then-delete.
	Rename(ctx context.Context, src, dst string) error
}

// Appender is implemented by backends whose provider supports appending to
// an existing object. Callers check for it with a type assertion and fall
// back to read-concat-rewrite when the assertion misses.
type Appender interface {
	// Append writes the contents of r after the current end of the object
	// at path, creating the object when absent. Returns the bytes appended.
	Append(ctx context.Context, path string, r io.Reader) (int64, error)
}

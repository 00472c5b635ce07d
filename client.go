package storify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Client is the command engine: every CLI verb implemented as a method over
// one Backend, so a verb behaves identically no matter which provider serves
// it. Methods normalize paths once at the boundary, pick strategies from the
// backend's capabilities, and stream results instead of buffering subtrees.
type Client struct {
	backend Backend
}

// NewClient returns a command engine over the given backend.
func NewClient(b Backend) *Client {
	return &Client{backend: b}
}

// Provider identifies the connector behind this client.
func (c *Client) Provider() Provider {
	return c.backend.Provider()
}

// Stat returns the entry at path.
func (c *Client) Stat(ctx context.Context, path string) (Entry, error) {
	p, err := CleanPath(path)
	if err != nil {
		return Entry{}, err
	}
	return c.backend.Stat(ctx, p)
}

// ListOptions configures List.
type ListOptions struct {
	// Recursive walks the whole subtree instead of one level.
	Recursive bool
}

// List streams the entries at path to fn. A file path yields exactly its own
// entry, so ls doubles as an existence probe; a directory yields its
// children, the whole subtree when recursive. An empty directory yields
// nothing and is not an error.
func (c *Client) List(ctx context.Context, path string, opts ListOptions, fn ListFunc) error {
	p, err := CleanPath(path)
	if err != nil {
		return err
	}
	e, err := c.backend.Stat(ctx, p)
	if err != nil {
		return err
	}
	if !e.IsDir() {
		return fn(e)
	}
	return c.backend.List(ctx, p, opts.Recursive, fn)
}

// statIfExists separates "missing" from real failures so verbs with explicit
// not-found behavior (touch -c, mkdir, append) branch without re-matching.
func (c *Client) statIfExists(ctx context.Context, path string) (Entry, bool, error) {
	e, err := c.backend.Stat(ctx, path)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	return e, true, nil
}

// listChildren buffers the immediate children of one directory. Verbs that
// need per-level ordering or delete as they walk use it; memory is bounded
// by the widest directory, never the subtree.
func (c *Client) listChildren(ctx context.Context, dir string) ([]Entry, error) {
	var children []Entry
	err := c.backend.List(ctx, dir, false, func(e Entry) error {
		children = append(children, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return children, nil
}

// readAll buffers one whole object. Only verbs that need full content in
// memory (diff, append rewrite) use it; streaming verbs hold OpenRead
// readers instead.
func (c *Client) readAll(ctx context.Context, path string) ([]byte, error) {
	rc, err := c.backend.OpenRead(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(rc, path)

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func closeQuietly(c io.Closer, path string) {
	if err := c.Close(); err != nil {
		slog.Warn("failed to close reader", "path", path, "err", err)
	}
}

func isInterrupt(err error) bool {
	return errors.Is(err, ErrInterrupted) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

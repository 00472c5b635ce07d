package storify

import (
	"context"
	"fmt"
	"io"
	"sort"
)

// TreeOptions configures Tree.
type TreeOptions struct {
	// Depth limits how many levels below the root are rendered. Zero prints
	// the root alone; negative means unlimited.
	Depth int
	// DirsOnly hides files and other entries, leaving the directory skeleton.
	DirsOnly bool
}

// Tree writes the subtree at path to w as an indented box-drawing listing.
// One directory is buffered at a time so the render needs to know which
// child is last; children sort directories first, then the rest, each group
// alphabetically. Directories carry a trailing slash.
func (c *Client) Tree(ctx context.Context, path string, opts TreeOptions, w io.Writer) error {
	p, err := CleanPath(path)
	if err != nil {
		return err
	}
	e, err := c.backend.Stat(ctx, p)
	if err != nil {
		return err
	}
	if !e.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidArgument, p)
	}

	label := p
	if !IsRoot(p) {
		label += "/"
	}
	if _, err := fmt.Fprintln(w, label); err != nil {
		return err
	}
	return c.treeLevel(ctx, p, "", 0, opts, w)
}

func (c *Client) treeLevel(ctx context.Context, dir, prefix string, depth int, opts TreeOptions, w io.Writer) error {
	if opts.Depth >= 0 && depth >= opts.Depth {
		return nil
	}

	children, err := c.listChildren(ctx, dir)
	if err != nil {
		return err
	}
	if opts.DirsOnly {
		kept := children[:0]
		for _, e := range children {
			if e.IsDir() {
				kept = append(kept, e)
			}
		}
		children = kept
	}
	sortForTree(children)

	for i, e := range children {
		connector, childPrefix := "├── ", prefix+"│   "
		if i == len(children)-1 {
			connector, childPrefix = "└── ", prefix+"    "
		}

		name := BaseName(e.Path)
		if e.IsDir() {
			name += "/"
		}
		if _, err := fmt.Fprintf(w, "%s%s%s\n", prefix, connector, name); err != nil {
			return err
		}

		if e.IsDir() {
			if err := c.treeLevel(ctx, e.Path, childPrefix, depth+1, opts, w); err != nil {
				return err
			}
		}
	}
	return nil
}

func sortForTree(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		di, dj := entries[i].IsDir(), entries[j].IsDir()
		if di != dj {
			return di
		}
		return entries[i].Path < entries[j].Path
	})
}

// DuOptions configures DiskUsage.
type DuOptions struct {
	// Summary suppresses the per-directory rows, keeping only the total.
	Summary bool
}

// DuRow is one cumulative directory total.
type DuRow struct {
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
	Files int64  `json:"files"`
}

// DuFunc receives one row per directory, children before their parent.
type DuFunc func(DuRow) error

// DiskUsage accumulates file sizes under path into per-directory cumulative
// totals. Rows stream depth-first with children before their parent and the
// argument itself last; Summary emits only that final row. The returned row
// repeats the total. Entries without a reported size count zero bytes but
// still count as files; a file argument produces a single row for itself.
func (c *Client) DiskUsage(ctx context.Context, path string, opts DuOptions, fn DuFunc) (DuRow, error) {
	p, err := CleanPath(path)
	if err != nil {
		return DuRow{}, err
	}
	e, err := c.backend.Stat(ctx, p)
	if err != nil {
		return DuRow{}, err
	}

	if !e.IsDir() {
		row := DuRow{Path: p, Bytes: entrySize(e), Files: 1}
		if fn != nil {
			if err := fn(row); err != nil {
				return DuRow{}, err
			}
		}
		return row, nil
	}

	row, err := c.duDir(ctx, p, opts.Summary, fn)
	if err != nil {
		return DuRow{}, err
	}
	if opts.Summary && fn != nil {
		if err := fn(row); err != nil {
			return DuRow{}, err
		}
	}
	return row, nil
}

func (c *Client) duDir(ctx context.Context, dir string, summary bool, fn DuFunc) (DuRow, error) {
	row := DuRow{Path: dir}

	children, err := c.listChildren(ctx, dir)
	if err != nil {
		return DuRow{}, err
	}
	for _, e := range children {
		if e.IsDir() {
			sub, err := c.duDir(ctx, e.Path, summary, fn)
			if err != nil {
				return DuRow{}, err
			}
			row.Bytes += sub.Bytes
			row.Files += sub.Files
			continue
		}
		row.Bytes += entrySize(e)
		row.Files++
	}

	if !summary && fn != nil {
		if err := fn(row); err != nil {
			return DuRow{}, err
		}
	}
	return row, nil
}

// entrySize counts unknown (-1) sizes as zero.
func entrySize(e Entry) int64 {
	if e.Size < 0 {
		return 0
	}
	return e.Size
}

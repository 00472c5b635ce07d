package storify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MakeDir ensures a directory exists at path. Creating an already-existing
// directory succeeds without effect; a file at path is ErrAlreadyExists.
// With parents, missing ancestors are created too.
func (c *Client) MakeDir(ctx context.Context, path string, parents bool) error {
	p, err := CleanPath(path)
	if err != nil {
		return err
	}
	e, found, err := c.statIfExists(ctx, p)
	if err != nil {
		return err
	}
	if found {
		if e.IsDir() {
			return nil
		}
		return fmt.Errorf("%w: %s is a file", ErrAlreadyExists, p)
	}
	if err := c.backend.CreateDir(ctx, p, parents); err != nil && !errors.Is(err, ErrAlreadyExists) {
		return err
	}
	return nil
}

// TouchOutcome says what Touch did to one path.
type TouchOutcome string

const (
	TouchCreated   TouchOutcome = "created"
	TouchTruncated TouchOutcome = "truncated"
	TouchNoop      TouchOutcome = "noop"
)

// TouchOptions configures Touch.
type TouchOptions struct {
	// NoCreate turns a missing target into a silent no-op.
	NoCreate bool
	// Truncate empties a target that already exists.
	Truncate bool
	// Parents creates missing parent directories before writing.
	Parents bool
}

// TouchResult is the outcome for one touch argument.
type TouchResult struct {
	Path    string       `json:"path"`
	Outcome TouchOutcome `json:"outcome"`
	Err     error        `json:"-"`
}

// Touch ensures each path exists as a zero-byte file, honoring NoCreate and
// Truncate. Directory paths, including ones spelled with a trailing slash,
// are rejected with a hint to use mkdir. One failing path does not stop the
// others; per-path errors live on the results and the returned error only
// summarizes.
func (c *Client) Touch(ctx context.Context, paths []string, opts TouchOptions) ([]TouchResult, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no paths given", ErrInvalidArgument)
	}

	results := make([]TouchResult, 0, len(paths))
	failed := 0
	for _, raw := range paths {
		res := c.touchOne(ctx, raw, opts)
		results = append(results, res)
		if res.Err != nil {
			if isInterrupt(res.Err) {
				return results, res.Err
			}
			failed++
		}
	}

	switch {
	case failed == 0:
		return results, nil
	case len(paths) == 1:
		return results, results[0].Err
	default:
		return results, fmt.Errorf("touch: %d of %d path(s) failed", failed, len(paths))
	}
}

func (c *Client) touchOne(ctx context.Context, raw string, opts TouchOptions) TouchResult {
	if strings.HasSuffix(raw, "/") {
		return TouchResult{Path: raw, Err: fmt.Errorf("%w: %s is a directory (use mkdir)", ErrInvalidArgument, raw)}
	}
	p, err := CleanPath(raw)
	if err != nil {
		return TouchResult{Path: raw, Err: err}
	}

	res := TouchResult{Path: p}
	e, found, err := c.statIfExists(ctx, p)
	if err != nil {
		res.Err = err
		return res
	}

	switch {
	case found && e.IsDir():
		res.Err = fmt.Errorf("%w: %s is a directory (use mkdir)", ErrInvalidArgument, p)
	case found && opts.Truncate:
		if _, werr := c.backend.Write(ctx, p, strings.NewReader("")); werr != nil {
			res.Err = werr
			return res
		}
		res.Outcome = TouchTruncated
	case found:
		res.Outcome = TouchNoop
	case opts.NoCreate:
		res.Outcome = TouchNoop
	default:
		if opts.Parents {
			if perr := c.ensureParents(ctx, p); perr != nil {
				res.Err = perr
				return res
			}
		}
		if _, werr := c.backend.Write(ctx, p, strings.NewReader("")); werr != nil {
			res.Err = werr
			return res
		}
		res.Outcome = TouchCreated
	}
	return res
}

// ensureParents creates the missing ancestors of path on hierarchical
// backends. Flat stores materialize directories from key prefixes, so this
// is a no-op there.
func (c *Client) ensureParents(ctx context.Context, path string) error {
	if !c.backend.Capabilities().HierarchicalDirs {
		return nil
	}
	parent := ParentDir(path)
	if IsRoot(parent) {
		return nil
	}
	if err := c.backend.CreateDir(ctx, parent, true); err != nil && !errors.Is(err, ErrAlreadyExists) {
		return err
	}
	return nil
}

// RemoveOptions configures Remove. Confirmation is the CLI's concern; the
// engine deletes whatever it is handed.
type RemoveOptions struct {
	// Recursive deletes directory arguments with everything under them.
	Recursive bool
}

// RemoveResult is the outcome for one remove argument.
type RemoveResult struct {
	Path string `json:"path"`
	// Removed counts the objects deleted under this argument.
	Removed int64 `json:"removed"`
	Err     error `json:"-"`
}

// Remove deletes each path. A missing path is ErrNotFound, never silently
// ignored; a directory requires Recursive and is emptied children before
// parent, one level buffered at a time so the walk never races its own
// deletions. The storage root itself is never deleted. One failing argument
// does not stop the others.
func (c *Client) Remove(ctx context.Context, paths []string, opts RemoveOptions) ([]RemoveResult, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no paths given", ErrInvalidArgument)
	}

	results := make([]RemoveResult, 0, len(paths))
	failed := 0
	for _, raw := range paths {
		res := c.removeOne(ctx, raw, opts)
		results = append(results, res)
		if res.Err != nil {
			if isInterrupt(res.Err) {
				return results, res.Err
			}
			failed++
		}
	}

	switch {
	case failed == 0:
		return results, nil
	case len(paths) == 1:
		return results, results[0].Err
	default:
		return results, fmt.Errorf("rm: %d of %d path(s) failed", failed, len(paths))
	}
}

func (c *Client) removeOne(ctx context.Context, raw string, opts RemoveOptions) RemoveResult {
	p, err := CleanPath(raw)
	if err != nil {
		return RemoveResult{Path: raw, Err: err}
	}
	res := RemoveResult{Path: p}
	if IsRoot(p) {
		res.Err = fmt.Errorf("%w: refusing to remove the storage root", ErrInvalidArgument)
		return res
	}

	e, err := c.backend.Stat(ctx, p)
	if err != nil {
		res.Err = err
		return res
	}

	if !e.IsDir() {
		if err := c.backend.Delete(ctx, p); err != nil {
			res.Err = err
			return res
		}
		res.Removed = 1
		return res
	}

	if !opts.Recursive {
		res.Err = fmt.Errorf("%w: %s is a directory (use -R)", ErrInvalidArgument, p)
		return res
	}
	res.Removed, res.Err = c.removeTree(ctx, p)
	return res
}

func (c *Client) removeTree(ctx context.Context, dir string) (int64, error) {
	children, err := c.listChildren(ctx, dir)
	if err != nil {
		return 0, err
	}

	var removed int64
	for _, e := range children {
		if e.IsDir() {
			n, err := c.removeTree(ctx, e.Path)
			removed += n
			if err != nil {
				return removed, err
			}
			continue
		}
		if err := c.backend.Delete(ctx, e.Path); err != nil {
			return removed, fmt.Errorf("delete %s: %w", e.Path, err)
		}
		removed++
	}

	// Flat stores synthesize directories from prefixes; once the last child
	// is gone there may be no marker object left to delete.
	if err := c.backend.Delete(ctx, dir); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return removed, fmt.Errorf("delete %s: %w", dir, err)
		}
		return removed, nil
	}
	return removed + 1, nil
}

// AppendOptions configures Append.
type AppendOptions struct {
	// NoCreate fails with ErrNotFound instead of creating a missing target.
	NoCreate bool
	// Parents creates missing parent directories before writing.
	Parents bool
}

// Append adds the contents of r to the end of path, creating the object
// unless NoCreate. Backends with native append get the bytes streamed; the
// rest fall back to read-concat-rewrite, which stays safe because the
// rewrite goes through the atomic Write contract. Returns the number of
// bytes appended.
func (c *Client) Append(ctx context.Context, path string, r io.Reader, opts AppendOptions) (int64, error) {
	p, err := CleanPath(path)
	if err != nil {
		return 0, err
	}

	e, found, err := c.statIfExists(ctx, p)
	if err != nil {
		return 0, err
	}
	if found && e.IsDir() {
		return 0, fmt.Errorf("%w: %s is a directory", ErrInvalidArgument, p)
	}
	if !found {
		if opts.NoCreate {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		if opts.Parents {
			if err := c.ensureParents(ctx, p); err != nil {
				return 0, err
			}
		}
	}

	if ap, ok := c.backend.(Appender); ok {
		return ap.Append(ctx, p, r)
	}

	var existing []byte
	if found {
		existing, err = c.readAll(ctx, p)
		if err != nil {
			return 0, err
		}
	}
	added, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read append source: %w", err)
	}
	if _, err := c.backend.Write(ctx, p, io.MultiReader(bytes.NewReader(existing), bytes.NewReader(added))); err != nil {
		return 0, err
	}
	return int64(len(added)), nil
}

// CopyOptions configures Copy.
type CopyOptions struct {
	// Jobs bounds the worker count for directory copies; zero means 4.
	Jobs int
}

// Copy duplicates src to dst within the backend, server-side where the
// provider supports it. Copying onto an existing directory places the source
// inside it under its base name. A directory source copies recursively
// through the transfer pool; the report carries one intra-copy task per
// file, and per-file failures do not stop siblings.
func (c *Client) Copy(ctx context.Context, src, dst string, opts CopyOptions) (*TransferReport, error) {
	sp, dp, se, err := c.prepareSrcDst(ctx, src, dst)
	if err != nil {
		return nil, err
	}

	if !se.IsDir() {
		task := newTask(sp, dp, DirectionIntraCopy, se.Size)
		report := c.runTransfers(ctx, opts.Jobs, []TransferTask{task}, c.copyTask)
		return report, ctx.Err()
	}

	if IsAncestor(sp, dp) {
		return nil, fmt.Errorf("%w: cannot copy %s into itself", ErrInvalidArgument, sp)
	}

	var tasks []TransferTask
	var dirs []string
	err = c.backend.List(ctx, sp, true, func(e Entry) error {
		target, jerr := JoinPath(dp, RelPath(sp, e.Path))
		if jerr != nil {
			return jerr
		}
		if e.IsDir() {
			dirs = append(dirs, target)
			return nil
		}
		tasks = append(tasks, newTask(e.Path, target, DirectionIntraCopy, e.Size))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := c.MakeDir(ctx, dp, true); err != nil {
		return nil, err
	}
	for _, d := range dirs {
		if err := c.MakeDir(ctx, d, true); err != nil {
			return nil, err
		}
	}
	report := c.runTransfers(ctx, opts.Jobs, tasks, c.copyTask)
	return report, ctx.Err()
}

// Move renames src to dst. Moving onto an existing directory places the
// source inside it under its base name. A directory moves via one native
// rename on hierarchical backends; flat stores rename object by object,
// deepest first, so emptied prefixes disappear cleanly. Unlike Copy this
// fails fast: a failure mid-move leaves the remainder at the source.
func (c *Client) Move(ctx context.Context, src, dst string) error {
	sp, dp, se, err := c.prepareSrcDst(ctx, src, dst)
	if err != nil {
		return err
	}

	if !se.IsDir() {
		return c.backend.Rename(ctx, sp, dp)
	}

	if IsAncestor(sp, dp) {
		return fmt.Errorf("%w: cannot move %s into itself", ErrInvalidArgument, sp)
	}
	if c.backend.Capabilities().HierarchicalDirs {
		return c.backend.Rename(ctx, sp, dp)
	}
	return c.moveTree(ctx, sp, dp)
}

func (c *Client) moveTree(ctx context.Context, src, dst string) error {
	if err := c.MakeDir(ctx, dst, true); err != nil {
		return err
	}

	children, err := c.listChildren(ctx, src)
	if err != nil {
		return err
	}
	for _, e := range children {
		target, jerr := JoinPath(dst, BaseName(e.Path))
		if jerr != nil {
			return jerr
		}
		if e.IsDir() {
			if err := c.moveTree(ctx, e.Path, target); err != nil {
				return err
			}
			continue
		}
		if err := c.backend.Rename(ctx, e.Path, target); err != nil {
			return err
		}
	}

	// The source directory is empty now; drop its marker if one remains.
	if err := c.backend.Delete(ctx, src); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// prepareSrcDst normalizes both ends of a copy or move, refuses to operate
// on the storage root, stats the source, and applies the cp convention of
// landing inside an existing directory destination.
func (c *Client) prepareSrcDst(ctx context.Context, src, dst string) (string, string, Entry, error) {
	sp, err := CleanPath(src)
	if err != nil {
		return "", "", Entry{}, err
	}
	dp, err := CleanPath(dst)
	if err != nil {
		return "", "", Entry{}, err
	}
	if IsRoot(sp) {
		return "", "", Entry{}, fmt.Errorf("%w: cannot use the storage root as a source", ErrInvalidArgument)
	}

	se, err := c.backend.Stat(ctx, sp)
	if err != nil {
		return "", "", Entry{}, err
	}

	de, found, err := c.statIfExists(ctx, dp)
	if err != nil {
		return "", "", Entry{}, err
	}
	if found && de.IsDir() {
		dp, err = JoinPath(dp, BaseName(sp))
		if err != nil {
			return "", "", Entry{}, err
		}
	}

	if sp == dp {
		return "", "", Entry{}, fmt.Errorf("%w: source and destination are the same path", ErrInvalidArgument)
	}
	return sp, dp, se, nil
}

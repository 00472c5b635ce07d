package storify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
)

const defaultDiffLimitMB = 10

// DiffOptions configures Diff.
type DiffOptions struct {
	// Context is the number of unchanged lines shown around each hunk.
	Context int
	// IgnoreTrailingSpace right-trims spaces and tabs from every line before
	// comparing, so trailing-whitespace churn stops showing up as changes.
	IgnoreTrailingSpace bool
	// SizeLimit caps how many bytes either file may hold, in megabytes.
	// Zero applies the 10 MB default; Force disables the guard entirely.
	SizeLimit int64
	Force     bool
}

// Diff compares two files line by line and writes a unified diff to w,
// consumable by standard patch tooling. Identical inputs produce no output
// at all. Both files load fully into memory under the SizeLimit guard;
// directories, binary content, and non-UTF-8 content are rejected.
func (c *Client) Diff(ctx context.Context, left, right string, opts DiffOptions, w io.Writer) error {
	if opts.Context < 0 {
		return fmt.Errorf("%w: context lines must not be negative", ErrInvalidArgument)
	}
	limit := opts.SizeLimit
	if limit == 0 {
		limit = defaultDiffLimitMB
	}
	limitBytes := limit * 1024 * 1024

	lp, err := CleanPath(left)
	if err != nil {
		return err
	}
	rp, err := CleanPath(right)
	if err != nil {
		return err
	}

	ltext, err := c.readDiffSide(ctx, lp, limitBytes, opts.Force)
	if err != nil {
		return err
	}
	rtext, err := c.readDiffSide(ctx, rp, limitBytes, opts.Force)
	if err != nil {
		return err
	}

	if opts.IgnoreTrailingSpace {
		ltext = trimLineTrailing(ltext)
		rtext = trimLineTrailing(rtext)
	}
	if ltext == rtext {
		return nil
	}

	ud := difflib.UnifiedDiff{
		A:        splitKeepNewlines(ltext),
		B:        splitKeepNewlines(rtext),
		FromFile: lp,
		ToFile:   rp,
		Context:  opts.Context,
	}
	if err := difflib.WriteUnifiedDiff(w, ud); err != nil {
		return fmt.Errorf("write diff: %w", err)
	}
	return nil
}

// readDiffSide loads one side of the comparison, enforcing the size guard
// and the text-only rule.
func (c *Client) readDiffSide(ctx context.Context, path string, limitBytes int64, force bool) (string, error) {
	e, err := c.backend.Stat(ctx, path)
	if err != nil {
		return "", err
	}
	if e.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrInvalidArgument, path)
	}
	if !force && e.Size > limitBytes {
		return "", fmt.Errorf("%w: %s is %s, over the %s diff limit (use -f to override)",
			ErrSizeLimitExceeded, path, FormatSize(e.Size), FormatSize(limitBytes))
	}

	data, err := c.readAll(ctx, path)
	if err != nil {
		return "", err
	}
	// Backends that report no size get checked after the read instead.
	if !force && int64(len(data)) > limitBytes {
		return "", fmt.Errorf("%w: %s is %s, over the %s diff limit (use -f to override)",
			ErrSizeLimitExceeded, path, FormatSize(int64(len(data))), FormatSize(limitBytes))
	}
	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s: binary or non-UTF-8 content cannot be diffed", ErrInvalidArgument, path)
	}
	return string(data), nil
}

// splitKeepNewlines splits into lines retaining each terminator, the shape
// the diff writer expects. A final line without a newline stays bare.
func splitKeepNewlines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func trimLineTrailing(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.Join(lines, "\n")
}

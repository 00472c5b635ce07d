package storify

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

const (
	defaultHeadBytes = 1024
	defaultTailLines = 10
)

// ReadOptions configures Head and Tail. Lines and Bytes are mutually
// exclusive; leaving both zero applies the verb's default (1024 bytes for
// head, 10 lines for tail).
type ReadOptions struct {
	Lines int64
	Bytes int64
	// Quiet suppresses the per-file header even with several paths.
	Quiet bool
	// Verbose forces the header even for a single path.
	Verbose bool
}

func normalizeReadOptions(opts ReadOptions, defaultLines, defaultBytes int64) (ReadOptions, error) {
	if opts.Lines > 0 && opts.Bytes > 0 {
		return opts, fmt.Errorf("%w: --lines and --bytes are mutually exclusive", ErrInvalidArgument)
	}
	if opts.Lines < 0 || opts.Bytes < 0 {
		return opts, fmt.Errorf("%w: line and byte counts must be positive", ErrInvalidArgument)
	}
	if opts.Quiet && opts.Verbose {
		return opts, fmt.Errorf("%w: --quiet and --verbose are mutually exclusive", ErrInvalidArgument)
	}
	if opts.Lines == 0 && opts.Bytes == 0 {
		opts.Lines, opts.Bytes = defaultLines, defaultBytes
	}
	return opts, nil
}

// Head writes the first part of each path to w: the first Lines lines or the
// first Bytes bytes, 1024 bytes by default. With several paths each file is
// introduced by a ==> path <== header unless Quiet; Verbose forces the
// header for a single path too. One failing path is reported after the rest
// have printed.
func (c *Client) Head(ctx context.Context, paths []string, opts ReadOptions, w io.Writer) error {
	opts, err := normalizeReadOptions(opts, 0, defaultHeadBytes)
	if err != nil {
		return err
	}
	return c.readMany(ctx, paths, opts, w, c.headOne)
}

// Tail writes the last part of each path to w: the last Lines lines (10 by
// default) or the last Bytes bytes. Line mode streams the file forward
// through a bounded ring of the most recent lines, so it never needs random
// access; byte mode takes one ranged read from the end where the backend
// supports that and falls back to the same forward scan elsewhere. Header
// rules match Head.
func (c *Client) Tail(ctx context.Context, paths []string, opts ReadOptions, w io.Writer) error {
	opts, err := normalizeReadOptions(opts, defaultTailLines, 0)
	if err != nil {
		return err
	}
	return c.readMany(ctx, paths, opts, w, c.tailOne)
}

// Cat streams each path to w in full, in argument order, with no headers.
func (c *Client) Cat(ctx context.Context, paths []string, w io.Writer) error {
	if len(paths) == 0 {
		return fmt.Errorf("%w: no paths given", ErrInvalidArgument)
	}
	for _, raw := range paths {
		p, err := CleanPath(raw)
		if err != nil {
			return err
		}
		rc, err := c.backend.OpenRead(ctx, p, nil)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, rc)
		closeQuietly(rc, p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
	}
	return nil
}

func (c *Client) readMany(ctx context.Context, paths []string, opts ReadOptions, w io.Writer,
	one func(context.Context, string, ReadOptions, io.Writer) error) error {
	if len(paths) == 0 {
		return fmt.Errorf("%w: no paths given", ErrInvalidArgument)
	}

	showHeader := (len(paths) > 1 && !opts.Quiet) || opts.Verbose
	var failed []error
	for i, raw := range paths {
		p, err := CleanPath(raw)
		if err != nil {
			return err
		}
		if showHeader {
			sep := ""
			if i > 0 {
				sep = "\n"
			}
			if _, err := fmt.Fprintf(w, "%s==> %s <==\n", sep, p); err != nil {
				return err
			}
		}
		if err := one(ctx, p, opts, w); err != nil {
			if isInterrupt(err) || len(paths) == 1 {
				return err
			}
			slog.Warn("read failed", "path", p, "err", err)
			failed = append(failed, fmt.Errorf("%s: %w", p, err))
		}
	}
	if len(failed) > 0 {
		return errors.Join(failed...)
	}
	return nil
}

func (c *Client) headOne(ctx context.Context, path string, opts ReadOptions, w io.Writer) error {
	if opts.Lines > 0 {
		return c.headLines(ctx, path, opts.Lines, w)
	}
	return c.headBytes(ctx, path, opts.Bytes, w)
}

func (c *Client) headBytes(ctx context.Context, path string, n int64, w io.Writer) error {
	var rng *ByteRange
	if c.backend.Capabilities().RangedRead {
		rng = &ByteRange{Offset: 0, Length: n}
	}
	rc, err := c.backend.OpenRead(ctx, path, rng)
	if err != nil {
		return err
	}
	defer closeQuietly(rc, path)

	if _, err := io.CopyN(w, rc, n); err != nil && err != io.EOF {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func (c *Client) headLines(ctx context.Context, path string, n int64, w io.Writer) error {
	rc, err := c.backend.OpenRead(ctx, path, nil)
	if err != nil {
		return err
	}
	defer closeQuietly(rc, path)

	br := bufio.NewReader(rc)
	for written := int64(0); written < n; {
		line, err := br.ReadString('\n')
		if line != "" {
			if _, werr := io.WriteString(w, line); werr != nil {
				return werr
			}
			written++
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read %s: %w", path, err)
		}
	}
	return nil
}

func (c *Client) tailOne(ctx context.Context, path string, opts ReadOptions, w io.Writer) error {
	if opts.Lines > 0 {
		return c.tailLines(ctx, path, opts.Lines, w)
	}
	return c.tailBytes(ctx, path, opts.Bytes, w)
}

func (c *Client) tailLines(ctx context.Context, path string, n int64, w io.Writer) error {
	rc, err := c.backend.OpenRead(ctx, path, nil)
	if err != nil {
		return err
	}
	defer closeQuietly(rc, path)

	// Bounded ring of the most recent n lines, terminators included. A file
	// shorter than n lines comes back whole.
	ring := make([]string, n)
	var total int64

	br := bufio.NewReader(rc)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			ring[total%n] = line
			total++
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("read %s: %w", path, err)
		}
	}

	start := int64(0)
	if total > n {
		start = total - n
	}
	for i := start; i < total; i++ {
		if _, err := io.WriteString(w, ring[i%n]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) tailBytes(ctx context.Context, path string, n int64, w io.Writer) error {
	if c.backend.Capabilities().RangedRead {
		e, err := c.backend.Stat(ctx, path)
		if err != nil {
			return err
		}
		if e.IsDir() {
			return fmt.Errorf("%w: %s is a directory", ErrInvalidArgument, path)
		}
		if e.Size >= 0 {
			offset := e.Size - n
			length := n
			if offset < 0 {
				offset, length = 0, e.Size
			}
			if length == 0 {
				return nil
			}
			rc, err := c.backend.OpenRead(ctx, path, &ByteRange{Offset: offset, Length: length})
			if err != nil {
				return err
			}
			defer closeQuietly(rc, path)
			if _, err := io.Copy(w, rc); err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			return nil
		}
	}

	// Forward scan keeping a sliding window of the last n bytes.
	rc, err := c.backend.OpenRead(ctx, path, nil)
	if err != nil {
		return err
	}
	defer closeQuietly(rc, path)

	keep := make([]byte, 0, n)
	buf := make([]byte, 32*1024)
	for {
		m, err := rc.Read(buf)
		if m > 0 {
			keep = append(keep, buf[:m]...)
			if int64(len(keep)) > n {
				keep = keep[int64(len(keep))-n:]
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("read %s: %w", path, err)
		}
	}
	_, err = w.Write(keep)
	return err
}

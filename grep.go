package storify

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// binaryProbeSize is how much of a file's head grep inspects for NUL bytes
// before treating it as binary and skipping it.
const binaryProbeSize = 8 * 1024

// GrepOptions configures Grep.
type GrepOptions struct {
	// IgnoreCase folds both needle and lines before matching.
	IgnoreCase bool
	// LineNumbers prefixes each match with its 1-based line number.
	LineNumbers bool
	// Recursive searches every file under a directory argument.
	Recursive bool
}

// Grep scans path for lines containing needle, writing matches to w. A file
// argument prints bare lines; a directory requires Recursive, scans every
// file beneath it, and prefixes matches with the file path. Files with a NUL
// byte in their first 8 KiB are skipped as binary, and a file that fails
// mid-scan is reported without stopping its siblings.
func (c *Client) Grep(ctx context.Context, path, needle string, opts GrepOptions, w io.Writer) error {
	if needle == "" {
		return fmt.Errorf("%w: empty search pattern", ErrInvalidArgument)
	}
	p, err := CleanPath(path)
	if err != nil {
		return err
	}
	e, err := c.backend.Stat(ctx, p)
	if err != nil {
		return err
	}

	if !e.IsDir() {
		return c.grepFile(ctx, p, needle, opts, false, w)
	}
	if !opts.Recursive {
		return fmt.Errorf("%w: %s is a directory (use -R to search recursively)", ErrInvalidArgument, p)
	}

	var failed []error
	err = c.backend.List(ctx, p, true, func(e Entry) error {
		if e.Kind != KindFile {
			return nil
		}
		if gerr := c.grepFile(ctx, e.Path, needle, opts, true, w); gerr != nil {
			if isInterrupt(gerr) {
				return gerr
			}
			slog.Warn("grep failed", "path", e.Path, "err", gerr)
			failed = append(failed, fmt.Errorf("%s: %w", e.Path, gerr))
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		return errors.Join(failed...)
	}
	return nil
}

func (c *Client) grepFile(ctx context.Context, path, needle string, opts GrepOptions, withName bool, w io.Writer) error {
	rc, err := c.backend.OpenRead(ctx, path, nil)
	if err != nil {
		return err
	}
	defer closeQuietly(rc, path)

	br := bufio.NewReaderSize(rc, binaryProbeSize)
	// A short probe near EOF is fine; real read errors resurface below.
	head, _ := br.Peek(binaryProbeSize)
	if bytes.IndexByte(head, 0) >= 0 {
		slog.Warn("skipping binary file", "path", path)
		return nil
	}

	if opts.IgnoreCase {
		needle = strings.ToLower(needle)
	}

	lineNo := 0
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			lineNo++
			text := strings.TrimRight(line, "\r\n")
			hay := text
			if opts.IgnoreCase {
				hay = strings.ToLower(text)
			}
			if strings.Contains(hay, needle) {
				if werr := writeGrepMatch(w, path, lineNo, text, withName, opts.LineNumbers); werr != nil {
					return werr
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read %s: %w", path, err)
		}
	}
}

func writeGrepMatch(w io.Writer, path string, lineNo int, text string, withName, withNumber bool) error {
	var b strings.Builder
	if withName {
		b.WriteString(path)
		b.WriteByte(':')
	}
	if withNumber {
		b.WriteString(strconv.Itoa(lineNo))
		b.WriteByte(':')
	}
	b.WriteString(text)
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}

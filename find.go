package storify

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// FindOptions configures Find. Name and Regex are mutually exclusive.
type FindOptions struct {
	// Name is a glob tested against the root-relative path: ** crosses
	// directory levels, * and ? stay within one segment.
	Name string
	// Regex is a Go regular expression tested against the same path.
	Regex string
	// Kind keeps only entries of one kind: "f" files, "d" directories,
	// "o" other. Empty keeps every kind.
	Kind string
}

// Find streams the entries under path whose root-relative path matches the
// options. Both patterns are compiled once before the walk, so a malformed
// pattern fails before any backend call. A file argument is tested directly,
// making find an existence probe too. Results arrive in listing order.
func (c *Client) Find(ctx context.Context, path string, opts FindOptions, fn ListFunc) error {
	m, err := compileMatcher(opts)
	if err != nil {
		return err
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
		if m.matches(e) {
			return fn(e)
		}
		return nil
	}
	return c.backend.List(ctx, p, true, func(e Entry) error {
		if m.matches(e) {
			return fn(e)
		}
		return nil
	})
}

type entryMatcher struct {
	re   *regexp.Regexp
	kind EntryKind
}

func compileMatcher(opts FindOptions) (*entryMatcher, error) {
	if opts.Name != "" && opts.Regex != "" {
		return nil, fmt.Errorf("%w: --name and --regex are mutually exclusive", ErrInvalidArgument)
	}

	m := &entryMatcher{}
	switch {
	case opts.Name != "":
		re, err := regexp.Compile(globToRegexp(opts.Name))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid glob %q", ErrInvalidArgument, opts.Name)
		}
		m.re = re
	case opts.Regex != "":
		re, err := regexp.Compile(opts.Regex)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid regex %q: %v", ErrInvalidArgument, opts.Regex, err)
		}
		m.re = re
	}

	if opts.Kind != "" {
		kind, err := parseKindFilter(opts.Kind)
		if err != nil {
			return nil, err
		}
		m.kind = kind
	}
	return m, nil
}

func parseKindFilter(s string) (EntryKind, error) {
	switch s {
	case "f":
		return KindFile, nil
	case "d":
		return KindDirectory, nil
	case "o":
		return KindOther, nil
	default:
		return "", fmt.Errorf("%w: unknown type filter %q (use f, d, or o)", ErrInvalidArgument, s)
	}
}

func (m *entryMatcher) matches(e Entry) bool {
	if m.kind != "" && e.Kind != m.kind {
		return false
	}
	if m.re != nil && !m.re.MatchString(strings.TrimPrefix(e.Path, "/")) {
		return false
	}
	return true
}

// globToRegexp compiles the find glob dialect to an anchored Go regexp.
// A ** followed by a separator also matches zero levels, so **/*.log finds
// top-level logs too.
func globToRegexp(glob string) string {
	var b strings.Builder
	b.WriteString(`\A`)

	runes := []rune(glob)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				i++
				if i+1 < len(runes) && runes[i+1] == '/' {
					i++
					b.WriteString(`(?:.*/)?`)
				} else {
					b.WriteString(`.*`)
				}
			} else {
				b.WriteString(`[^/]*`)
			}
		case '?':
			b.WriteString(`[^/]`)
		default:
			b.WriteString(regexp.QuoteMeta(string(runes[i])))
		}
	}

	b.WriteString(`\z`)
	return b.String()
}

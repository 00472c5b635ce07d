package storify

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"
)

// CleanPath normalizes a user-supplied virtual path into canonical form:
//   - separators become single forward slashes ("a//b" -> "a/b")
//   - "." and ".." segments are resolved before any backend call
//   - the result is absolute ("/a/b") with no trailing slash, except "/"
//
// Paths that resolve above the root, contain NUL or other control
// characters, or are not valid UTF-8 fail with ErrInvalidArgument.
func CleanPath(p string) (string, error) {
	if !utf8.ValidString(p) {
		return "", fmt.Errorf("%w: path is not valid UTF-8", ErrInvalidArgument)
	}
	for _, r := range p {
		if r < 0x20 || r == 0x7f {
			return "", fmt.Errorf("%w: path contains control characters", ErrInvalidArgument)
		}
	}

	// path.Clean would silently clamp "a/../../b" to the root, so escapes
	// are detected on the raw segments first.
	trimmed := strings.TrimSpace(p)
	depth := 0
	for _, seg := range strings.Split(trimmed, "/") {
		switch seg {
		case "", ".":
		case "..":
			depth--
			if depth < 0 {
				return "", fmt.Errorf("%w: path %q escapes the root", ErrInvalidArgument, p)
			}
		default:
			depth++
		}
	}

	return path.Clean("/" + trimmed), nil
}

// JoinPath joins elem onto dir and normalizes the result. It fails the same
// way CleanPath does when the joined path is invalid. The pieces are joined
// raw so an escaping element is still caught.
func JoinPath(dir string, elem ...string) (string, error) {
	return CleanPath(strings.Join(append([]string{dir}, elem...), "/"))
}

// BaseName returns the last element of a normalized virtual path. The root
// "/" has base "/".
func BaseName(p string) string {
	return path.Base(p)
}

// ParentDir returns the directory containing a normalized virtual path. The
// parent of "/" is "/".
func ParentDir(p string) string {
	return path.Dir(p)
}

// IsRoot reports whether p is the namespace root.
func IsRoot(p string) bool {
	return p == "/"
}

// IsAncestor reports whether dir is an ancestor of p (or equal to it). Both
// arguments must already be normalized.
func IsAncestor(dir, p string) bool {
	if dir == p {
		return true
	}
	if dir == "/" {
		return true
	}
	return strings.HasPrefix(p, dir+"/")
}

// RelPath strips the dir prefix from p, both already normalized, returning
// the remainder without a leading slash. When p is not under dir it is
// returned unchanged.
func RelPath(dir, p string) string {
	if dir == "/" {
		return strings.TrimPrefix(p, "/")
	}
	if strings.HasPrefix(p, dir+"/") {
		return p[len(dir)+1:]
	}
	if p == dir {
		return ""
	}
	return p
}

// Depth returns the number of segments in a normalized virtual path; the
// root has depth zero.
func Depth(p string) int {
	if p == "/" {
		return 0
	}
	return strings.Count(p, "/")
}

// Package ninepath implements the 9S path grammar: validation, glob
// matching with `*`/`**`, and the segment-boundary prefix test every
// backend, kernel, and watcher table relies on for security.
package ninepath

import (
	"fmt"
	"strings"

	"github.com/obiverse/beewallet-core/internal/nineerr"
)

// isAllowedChar reports whether r is permitted in a path segment:
// alphanumeric, '_', '-', '.', or '*' (the last only meaningful in watch
// patterns, but the grammar does not special-case it away from plain paths).
func isAllowedChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-' || r == '.' || r == '*':
		return true
	}
	return false
}

// Validate succeeds iff p starts with "/" and every non-empty segment is
// neither "." nor ".." and consists only of the allowed character set.
func Validate(p string) error {
	if p == "" || p[0] != '/' {
		return fmt.Errorf("%w: path must start with '/': %q", nineerr.ErrInvalidPath, p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" {
			continue
		}
		if seg == "." || seg == ".." {
			return fmt.Errorf("%w: path segment %q not allowed", nineerr.ErrInvalidPath, seg)
		}
		for _, r := range seg {
			if !isAllowedChar(r) {
				return fmt.Errorf("%w: invalid character %q in path %q", nineerr.ErrInvalidPath, r, p)
			}
		}
	}
	return nil
}

// Matches reports whether path satisfies pattern:
//   - exact equality always matches
//   - a pattern ending in "/*" matches paths whose remainder after the
//     common prefix contains no further "/"
//   - a pattern ending in "/**" matches any path sharing that prefix
//   - anything else is a literal (non-matching unless equal)
func Matches(path, pattern string) bool {
	if path == pattern {
		return true
	}
	switch {
	case strings.HasSuffix(pattern, "/**"):
		prefix := strings.TrimSuffix(pattern, "/**")
		return IsUnderPrefix(path, prefix)
	case strings.HasSuffix(pattern, "/*"):
		prefix := strings.TrimSuffix(pattern, "/*")
		if !IsUnderPrefix(path, prefix) {
			return false
		}
		remainder := strings.TrimPrefix(path, prefix)
		remainder = strings.TrimPrefix(remainder, "/")
		return !strings.Contains(remainder, "/")
	default:
		return false
	}
}

// IsUnderPrefix reports whether path sits under prefix on a segment
// boundary: prefix == "/" (matches everything), path == prefix (exact), or
// path begins with prefix followed by "/". A plain strings.HasPrefix check
// would let "/foobar" match a mount at "/foo" — that is the exact attack
// this function exists to prevent; never replace it with one.
func IsUnderPrefix(path, prefix string) bool {
	if prefix == "/" {
		return strings.HasPrefix(path, "/")
	}
	if path == prefix {
		return true
	}
	if strings.HasPrefix(path, prefix) {
		remainder := path[len(prefix):]
		return strings.HasPrefix(remainder, "/")
	}
	return false
}

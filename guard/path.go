package guard

import "path"

// fastPathClean is an optimized version of path.Clean for HTTP request paths.
// It avoids allocations for paths that are already clean (which is the common case).
// It falls back to path.Clean for dirty paths.
func fastPathClean(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		return path.Clean("/" + p)
	}

	n := len(p)
	for i := 1; i < n; i++ {
		if p[i] == '/' {
			// "//"
			if p[i-1] == '/' {
				return path.Clean(p)
			}
		} else if p[i] == '.' {
			// "/." covers "/./" and "/.."
			if p[i-1] == '/' {
				return path.Clean(p)
			}
		}
	}

	if n > 1 && p[n-1] == '/' {
		return path.Clean(p)
	}

	return p
}

// matchPath checks if a request path matches a pattern.
// Supports exact match and prefix match (pattern ending with *).
// A pattern ending in "/*" also matches its base path.
func matchPath(p, pattern string) bool {
	n := len(pattern)
	if n > 0 && pattern[n-1] == '*' {
		prefixLen := n - 1

		if len(p) >= prefixLen && p[:prefixLen] == pattern[:prefixLen] {
			return true
		}

		if prefixLen > 0 && pattern[prefixLen-1] == '/' {
			baseLen := prefixLen - 1
			if len(p) == baseLen && p == pattern[:baseLen] {
				return true
			}
		}
		return false
	}
	return p == pattern
}

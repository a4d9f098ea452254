package filter

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// compiledPattern is an rsync-style glob evaluated with doublestar.
type compiledPattern struct {
	glob     string
	original string
	dirOnly  bool // pattern ends with /
}

// compilePattern normalises an rsync-style pattern into a doublestar glob.
// A leading "/" or an inner "/" anchors the pattern at the root; otherwise
// it may match at any depth.
func compilePattern(pattern string) (*compiledPattern, error) {
	cp := &compiledPattern{original: pattern}

	if strings.HasSuffix(pattern, "/") {
		cp.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}

	switch {
	case strings.HasPrefix(pattern, "/"):
		pattern = strings.TrimPrefix(pattern, "/")
	case strings.Contains(pattern, "/"):
	default:
		pattern = "**/" + pattern
	}

	if pattern == "" || !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", cp.original)
	}
	cp.glob = pattern
	return cp, nil
}

// match tests whether a slash-separated relative path matches.
func (cp *compiledPattern) match(relPath string, isDir bool) bool {
	if cp.dirOnly && !isDir {
		return false
	}
	ok, _ := doublestar.Match(cp.glob, relPath)
	return ok
}

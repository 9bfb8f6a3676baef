package filter

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// compiledPattern is a glob matched against root-relative paths.
type compiledPattern struct {
	full     glob.Glob // matches the whole relative path
	alt      glob.Glob // second form; nil when the pattern has only one
	original string
	anchored bool // pattern starts with / or contains a /
	dirOnly  bool // pattern ends with /
}

// compilePattern compiles an ignore pattern. "*" and "?" stop at "/", "**"
// crosses directories, a leading "/" anchors to the root, and a trailing "/"
// restricts the rule to directories. A pattern with no "/" matches the entry
// name at any depth.
func compilePattern(pattern string) (*compiledPattern, error) {
	cp := &compiledPattern{original: pattern}
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("empty pattern")
	}

	if strings.HasSuffix(pattern, "/") {
		cp.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		cp.anchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	} else if strings.Contains(pattern, "/") {
		cp.anchored = true
	}

	var err error
	if cp.full, err = glob.Compile(pattern, '/'); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", cp.original, err)
	}
	// "**/x" also matches x at the root; an unanchored x also matches below it.
	alt := ""
	switch {
	case strings.HasPrefix(pattern, "**/"):
		alt = pattern[3:]
	case !cp.anchored:
		alt = "**/" + pattern
	}
	if alt != "" {
		if cp.alt, err = glob.Compile(alt, '/'); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", cp.original, err)
		}
	}
	return cp, nil
}

func (cp *compiledPattern) match(relPath string, isDir bool) bool {
	if cp.dirOnly && !isDir {
		return false
	}
	if cp.full.Match(relPath) {
		return true
	}
	return cp.alt != nil && cp.alt.Match(relPath)
}

func (cp *compiledPattern) String() string {
	return cp.original
}

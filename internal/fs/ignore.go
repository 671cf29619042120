package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the per-directory ignore file read when a directory is
// uploaded. It is itself always ignored.
const IgnoreFileName = ".galleryignore"

type ignorePattern struct {
	pattern   string
	matchPath bool // match the relative path instead of the basename
}

// IgnoreMatcher checks relative paths against ignore patterns.
// Patterns without '/' match the basename; patterns with '/' match the
// whole path relative to the uploaded directory.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher parses raw patterns. Blank lines and lines starting
// with '#' are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, raw := range append([]string{IgnoreFileName}, rawPatterns...) {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		m.patterns = append(m.patterns, ignorePattern{
			pattern:   raw,
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return m
}

// Match reports whether relativePath is ignored.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	if relativePath == "" {
		return false
	}
	slashed := filepath.ToSlash(relativePath)
	base := filepath.Base(relativePath)

	for _, p := range m.patterns {
		subject := base
		if p.matchPath {
			subject = slashed
		}
		// malformed patterns never match
		if ok, err := filepath.Match(p.pattern, subject); err == nil && ok {
			return true
		}
	}
	return false
}

// ReadIgnoreFile returns the lines of the ignore file in dir, or nil if
// there is none.
func ReadIgnoreFile(dir string) ([]string, error) {
	f, err := os.Open(filepath.Join(dir, IgnoreFileName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return lines, nil
}

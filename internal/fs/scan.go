// Package fs expands the local paths given to an upload into the files to
// read.
package fs

import (
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"

	"gallery-go/internal/gallery"
)

// Scanner expands upload arguments. Files are taken as given; directories
// contribute the image files they contain, minus ignored ones.
type Scanner struct {
	patterns []string
	logger   gallery.Logger
}

// NewScanner creates a Scanner applying patterns to every directory in
// addition to that directory's own ignore file.
func NewScanner(patterns []string, logger gallery.Logger) *Scanner {
	if logger == nil {
		logger = gallery.NewNopLogger()
	}
	return &Scanner{patterns: patterns, logger: logger}
}

// Scan returns the files to upload for rawPaths, in argument order.
// A path that cannot be stat'ed is returned unchanged so that reading it
// reports the error against that file alone. Device files, pipes and
// sockets are rejected.
func (s *Scanner) Scan(rawPaths []string, recursive bool) ([]string, error) {
	var files []string
	for _, raw := range rawPaths {
		info, err := os.Stat(raw)
		if err != nil {
			files = append(files, raw)
			continue
		}

		mode := info.Mode()
		switch {
		case mode&os.ModeDevice != 0:
			return nil, fmt.Errorf("device files not supported: %s", raw)
		case mode&os.ModeNamedPipe != 0:
			return nil, fmt.Errorf("named pipes not supported: %s", raw)
		case mode&os.ModeSocket != 0:
			return nil, fmt.Errorf("sockets not supported: %s", raw)
		case info.IsDir():
			found, err := s.scanDir(raw, recursive)
			if err != nil {
				return nil, err
			}
			files = append(files, found...)
		default:
			files = append(files, raw)
		}
	}
	return files, nil
}

func (s *Scanner) scanDir(dir string, recursive bool) ([]string, error) {
	local, err := ReadIgnoreFile(dir)
	if err != nil {
		return nil, err
	}
	matcher := NewIgnoreMatcher(append(append([]string(nil), s.patterns...), local...))

	var files []string
	err = filepath.WalkDir(dir, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}

		if d.IsDir() {
			if !recursive || matcher.Match(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !gallery.IsImageName(d.Name()) {
			return nil
		}
		if matcher.Match(rel) {
			s.logger.Debug("ignoring file", "path", p)
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	return files, nil
}

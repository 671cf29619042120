package contents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gallery-go/internal/gallery"
)

// FileSystemStore is a gallery.ContentStore backed by a local directory.
// Hashes are git blob hashes computed from file content, and the history of
// a file is a single entry carrying its modification time. Writes go to a
// temp file that is renamed into place.
type FileSystemStore struct {
	root string
	mu   sync.Mutex
}

// NewFileSystemStore creates a store rooted at root, creating it if needed.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving store root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}
	return &FileSystemStore{root: abs}, nil
}

// ListDirectory returns the immediate children of dir. Temp files and
// dot-directories are skipped.
func (s *FileSystemStore) ListDirectory(_ context.Context, dir string) ([]gallery.Entry, error) {
	dir, full, err := s.resolve(dir)
	if err != nil {
		return nil, err
	}

	items, err := os.ReadDir(full)
	if err != nil {
		return nil, s.mapError(dir, err)
	}

	var entries []gallery.Entry
	for _, item := range items {
		name := item.Name()
		if strings.HasPrefix(name, ".tmp-") {
			continue
		}
		p := joinPath(dir, name)
		if item.IsDir() {
			if strings.HasPrefix(name, ".") {
				continue
			}
			entries = append(entries, gallery.Entry{Name: name, Path: p, Type: gallery.EntryDir})
			continue
		}
		if !item.Type().IsRegular() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(full, name))
		if err != nil {
			return nil, s.mapError(p, err)
		}
		entries = append(entries, gallery.Entry{
			Name: name,
			Path: p,
			Type: gallery.EntryFile,
			Hash: BlobHash(data),
			Size: int64(len(data)),
			URL:  "file://" + filepath.ToSlash(filepath.Join(full, name)),
		})
	}
	return entries, nil
}

// ReadFile returns the content and hash of the file at p.
func (s *FileSystemStore) ReadFile(_ context.Context, p string) (*gallery.FileContent, error) {
	p, full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, s.mapError(p, err)
	}
	return &gallery.FileContent{Path: p, Content: data, Hash: BlobHash(data)}, nil
}

// WriteFile stores content at p. A non-empty hash must match the current
// file content.
func (s *FileSystemStore) WriteFile(_ context.Context, p string, content []byte, hash string, _ string) (string, error) {
	p, full, err := s.resolve(p)
	if err != nil {
		return "", err
	}
	if p == "" {
		return "", &gallery.TransportError{Message: "cannot write the store root"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if hash != "" {
		current, err := os.ReadFile(full)
		if err != nil || BlobHash(current) != hash {
			return "", gallery.NewConflictError(p)
		}
	}

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", &gallery.TransportError{Message: fmt.Sprintf("failed to create directory: %v", err)}
	}
	if err := writeFileAtomic(full, content); err != nil {
		return "", &gallery.TransportError{Message: err.Error()}
	}
	return BlobHash(content), nil
}

// DeleteFile removes the file at p if hash is current. Directories left
// empty are removed so they stop being listed.
func (s *FileSystemStore) DeleteFile(_ context.Context, p string, hash string, _ string) error {
	p, full, err := s.resolve(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := os.ReadFile(full)
	if err != nil {
		return s.mapError(p, err)
	}
	if BlobHash(current) != hash {
		return gallery.NewConflictError(p)
	}
	if err := os.Remove(full); err != nil {
		return s.mapError(p, err)
	}

	for dir := filepath.Dir(full); dir != s.root; dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			break // not empty
		}
	}
	return nil
}

// ListHistory returns one entry stamped with the file's modification time.
func (s *FileSystemStore) ListHistory(_ context.Context, p string, limit int) ([]gallery.HistoryEntry, error) {
	p, full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, s.mapError(p, err)
	}
	if limit == 0 {
		return nil, nil
	}
	return []gallery.HistoryEntry{{Time: info.ModTime()}}, nil
}

// Verify checks that the root directory is accessible.
func (s *FileSystemStore) Verify(context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return &gallery.TransportError{Message: fmt.Sprintf("store root not accessible: %v", err)}
	}
	if !info.IsDir() {
		return &gallery.TransportError{Message: fmt.Sprintf("store root is not a directory: %s", s.root)}
	}
	return nil
}

// resolve validates p and returns it cleaned along with its absolute path.
func (s *FileSystemStore) resolve(p string) (string, string, error) {
	p, err := cleanPath(p)
	if err != nil {
		return "", "", &gallery.TransportError{Message: err.Error()}
	}
	return p, filepath.Join(s.root, filepath.FromSlash(p)), nil
}

func (s *FileSystemStore) mapError(p string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", p, gallery.ErrNotFound)
	}
	return &gallery.TransportError{Message: err.Error()}
}

// writeFileAtomic writes data to a temp file in the destination directory
// and renames it into place.
func writeFileAtomic(destPath string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := bytes.NewReader(data).WriteTo(tmpFile); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemStore implements gallery.ContentStore
var _ gallery.ContentStore = (*FileSystemStore)(nil)

package gallery

import (
	"context"
	"time"
)

// EntryType distinguishes files from directories in a listing.
type EntryType string

const (
	EntryFile EntryType = "file"
	EntryDir  EntryType = "dir"
)

// Entry is one item of a directory listing.
type Entry struct {
	Name string
	Path string
	Type EntryType
	Hash string
	Size int64
	URL  string
}

// IsDir returns true if the entry is a directory.
func (e Entry) IsDir() bool { return e.Type == EntryDir }

// FileContent is the decoded content of a blob plus its current hash.
type FileContent struct {
	Path    string
	Content []byte
	Hash    string
}

// HistoryEntry is one version record for a path, newest first.
type HistoryEntry struct {
	Hash    string
	Message string
	Author  string
	Time    time.Time
}

// ContentStore is the contents API the engine synchronizes against.
// Paths are slash separated and relative to the repository root; the
// root itself is "".
//
// Implementations must return errors that match ErrNotFound when the path
// does not exist, ErrUnauthorized when the credential is rejected, and
// ErrTransport (usually via *TransportError) for everything else.
// Implementations never retry.
type ContentStore interface {
	// ListDirectory returns the immediate children of path.
	ListDirectory(ctx context.Context, path string) ([]Entry, error)

	// ReadFile returns the content and current hash of a blob.
	ReadFile(ctx context.Context, path string) (*FileContent, error)

	// WriteFile stores content at path and returns the new hash.
	// hash is empty for a create and the last-known hash for an overwrite.
	WriteFile(ctx context.Context, path string, content []byte, hash string, message string) (string, error)

	// DeleteFile removes the blob at path. hash must be the last-known hash.
	DeleteFile(ctx context.Context, path string, hash string, message string) error

	// ListHistory returns up to limit version records for path, newest first.
	ListHistory(ctx context.Context, path string, limit int) ([]HistoryEntry, error)

	// Verify performs one lightweight call to check that the store is
	// reachable with the current credential.
	Verify(ctx context.Context) error
}

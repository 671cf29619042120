package gallery

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. Use with errors.Is.
var (
	ErrDuplicate       = errors.New("already exists")
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrTransport       = errors.New("transport failure")
	ErrConflict        = errors.New("content hash is stale")
	ErrInvalidName     = errors.New("invalid name")
	ErrNoActiveFolder  = errors.New("no active folder")
	ErrUnsupportedType = errors.New("not an image file")
)

// TransportError is a network or service failure reported by a ContentStore.
// Status is the HTTP status code when one was received, otherwise 0.
type TransportError struct {
	Status  int
	Message string
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("backend error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend error: %s", e.Message)
}

// Is matches ErrTransport, and ErrConflict for stale-hash rejections.
func (e *TransportError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return true
	case ErrConflict:
		return e.Status == http.StatusConflict
	}
	return false
}

// NewConflictError returns the error a store reports when the presented hash
// does not match the current one.
func NewConflictError(path string) *TransportError {
	return &TransportError{
		Status:  http.StatusConflict,
		Message: fmt.Sprintf("%s does not match the presented hash", path),
	}
}

// DuplicateError reports a name collision detected before any backend call.
type DuplicateError struct {
	Kind string // "folder" or "image"
	Name string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.Name)
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

// MoveError reports a folder rename that stopped part way. Moved files are
// under To, the remaining Total-Moved files are still under From.
type MoveError struct {
	From  string
	To    string
	Moved int
	Total int
	Err   error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("moving %s to %s stopped after %d of %d files: %v", e.From, e.To, e.Moved, e.Total, e.Err)
}

func (e *MoveError) Unwrap() error { return e.Err }

// DeleteFolderError reports a folder delete that stopped part way.
type DeleteFolderError struct {
	Folder  string
	Deleted int
	Total   int
	Err     error
}

func (e *DeleteFolderError) Error() string {
	return fmt.Sprintf("deleting %s stopped after %d of %d files: %v", e.Folder, e.Deleted, e.Total, e.Err)
}

func (e *DeleteFolderError) Unwrap() error { return e.Err }

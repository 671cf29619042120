package gallery

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// CreateFolder normalizes name and creates the folder by writing its
// placeholder blob. On success the folder is added and selected. It returns
// the folder identifier.
func (e *Engine) CreateFolder(ctx context.Context, name string) (string, error) {
	id, err := FolderID(name)
	if err != nil {
		err = fmt.Errorf("folder name %q: %w", name, err)
		e.fail("creating folder", err)
		return "", err
	}
	if e.index.HasFolder(id) {
		err := &DuplicateError{Kind: "folder", Name: id}
		e.fail("creating folder", err)
		return "", err
	}

	op := e.startOperation(OpCreateFolder, id, "")
	op.Total = 1

	msg := fmt.Sprintf("Create folder '%s'", id)
	if _, err := e.store.WriteFile(ctx, PlaceholderPath(id), nil, "", msg); err != nil {
		err = fmt.Errorf("writing placeholder: %w", err)
		e.finishOperation(op, err)
		e.fail(fmt.Sprintf("creating folder %s", id), err)
		return "", err
	}
	op.Done = 1
	e.finishOperation(op, nil)

	e.index.AddFolder(id)
	e.succeed("Folder %q created", id)
	if err := e.SelectFolder(ctx, id); err != nil {
		e.logger.Warn("loading new folder failed", "folder", id, "error", err)
	}
	return id, nil
}

// DeleteFolder removes every blob under id, one at a time. A folder that is
// already absent from the store counts as deleted. If a blob deletion fails
// the remaining blobs are left in place, nothing is rolled back, id stays in
// the folder set and the folder set is re-synchronized from the store;
// retrying the delete is the recovery path.
func (e *Engine) DeleteFolder(ctx context.Context, id string) error {
	op := e.startOperation(OpDeleteFolder, id, "")

	blobs, err := e.collectBlobs(ctx, id)
	if errors.Is(err, ErrNotFound) {
		e.logger.Info("folder already absent", "folder", id)
		e.finishOperation(op, nil)
		e.removeFolder(ctx, id)
		e.succeed("Folder %q deleted", id)
		return nil
	}
	if err != nil {
		e.finishOperation(op, err)
		e.fail(fmt.Sprintf("deleting folder %s", id), err)
		return err
	}

	op.Total = len(blobs)
	for _, blob := range blobs {
		msg := fmt.Sprintf("Delete %s", blob.Path)
		if err := e.store.DeleteFile(ctx, blob.Path, blob.Hash, msg); err != nil {
			derr := &DeleteFolderError{Folder: id, Deleted: op.Done, Total: op.Total, Err: err}
			e.finishOperation(op, derr)
			e.fail(fmt.Sprintf("deleting folder %s", id), derr)
			e.resync(ctx)
			return derr
		}
		op.Done++
		e.logger.Debug("blob deleted", "path", blob.Path)
	}

	e.finishOperation(op, nil)
	e.removeFolder(ctx, id)
	e.succeed("Folder %q deleted", id)
	return nil
}

// removeFolder drops id locally. If it was active the first remaining
// folder is selected.
func (e *Engine) removeFolder(ctx context.Context, id string) {
	wasActive := e.index.Active() == id
	e.index.RemoveFolder(id)
	if !wasActive {
		return
	}
	if folders := e.index.Folders(); len(folders) > 0 {
		if err := e.SelectFolder(ctx, folders[0]); err != nil {
			e.logger.Warn("selecting folder after delete failed", "folder", folders[0], "error", err)
		}
	}
}

// RenameFolder moves every blob of oldID under the normalized newName by
// reading it, writing it under the new folder and deleting the original,
// one file at a time. The first failure aborts the remaining files: moved
// files stay under the new identifier, the rest under the old one, and the
// folder set is re-synchronized from the store. A folder missing from the
// folder set, or gone from the store by the time it is listed, fails with
// ErrNotFound and nothing is written. It returns the new identifier.
func (e *Engine) RenameFolder(ctx context.Context, oldID, newName string) (string, error) {
	newID, err := FolderID(newName)
	if err != nil {
		err = fmt.Errorf("folder name %q: %w", newName, err)
		e.fail("renaming folder", err)
		return "", err
	}
	if !e.index.HasFolder(oldID) {
		err := fmt.Errorf("folder %q: %w", oldID, ErrNotFound)
		e.fail("renaming folder", err)
		return "", err
	}
	if newID == oldID {
		e.finishOperation(e.startOperation(OpRenameFolder, oldID, newID), nil)
		return oldID, nil
	}
	if e.index.HasFolder(newID) {
		err := &DuplicateError{Kind: "folder", Name: newID}
		e.fail("renaming folder", err)
		return "", err
	}

	op := e.startOperation(OpRenameFolder, oldID, newID)

	blobs, err := e.collectBlobs(ctx, oldID)
	if errors.Is(err, ErrNotFound) {
		merr := &MoveError{From: oldID, To: newID, Err: err}
		e.finishOperation(op, merr)
		e.fail(fmt.Sprintf("renaming folder %s", oldID), merr)
		e.resync(ctx)
		return "", merr
	}
	if err != nil {
		e.finishOperation(op, err)
		e.fail(fmt.Sprintf("renaming folder %s", oldID), err)
		return "", err
	}

	if isEmptyFolder(blobs) {
		err = e.renameEmpty(ctx, op, oldID, newID, blobs)
	} else {
		err = e.moveBlobs(ctx, op, oldID, newID, blobs)
	}
	if err != nil {
		e.finishOperation(op, err)
		e.fail(fmt.Sprintf("renaming folder %s", oldID), err)
		e.resync(ctx)
		return "", err
	}

	e.finishOperation(op, nil)
	e.index.ReplaceFolder(oldID, newID)
	e.succeed("Folder %q renamed to %q", oldID, newID)
	if err := e.SelectFolder(ctx, newID); err != nil {
		e.logger.Warn("loading renamed folder failed", "folder", newID, "error", err)
	}
	return newID, nil
}

// renameEmpty creates the new placeholder, then deletes the old one if the
// store has it.
func (e *Engine) renameEmpty(ctx context.Context, op *Operation, oldID, newID string, blobs []Entry) error {
	op.Total = 1
	msg := fmt.Sprintf("Move %s to %s", oldID, newID)
	if _, err := e.store.WriteFile(ctx, PlaceholderPath(newID), nil, "", msg); err != nil {
		return &MoveError{From: oldID, To: newID, Total: 1, Err: fmt.Errorf("writing placeholder: %w", err)}
	}
	for _, blob := range blobs {
		if err := e.store.DeleteFile(ctx, blob.Path, blob.Hash, msg); err != nil && !errors.Is(err, ErrNotFound) {
			return &MoveError{From: oldID, To: newID, Total: 1, Err: fmt.Errorf("deleting placeholder: %w", err)}
		}
	}
	op.Done = 1
	return nil
}

// moveBlobs moves each blob with read, write, delete, strictly in order.
func (e *Engine) moveBlobs(ctx context.Context, op *Operation, oldID, newID string, blobs []Entry) error {
	op.Total = len(blobs)
	msg := fmt.Sprintf("Move %s to %s", oldID, newID)
	abort := func(step string, path string, err error) error {
		return &MoveError{
			From:  oldID,
			To:    newID,
			Moved: op.Done,
			Total: op.Total,
			Err:   fmt.Errorf("%s %s: %w", step, path, err),
		}
	}

	for _, blob := range blobs {
		file, err := e.store.ReadFile(ctx, blob.Path)
		if err != nil {
			return abort("reading", blob.Path, err)
		}

		dest := newID + "/" + strings.TrimPrefix(blob.Path, oldID+"/")
		if _, err := e.store.WriteFile(ctx, dest, file.Content, "", msg); err != nil {
			return abort("writing", dest, err)
		}

		if err := e.store.DeleteFile(ctx, blob.Path, file.Hash, msg); err != nil {
			return abort("deleting", blob.Path, err)
		}

		op.Done++
		e.logger.Debug("blob moved", "from", blob.Path, "to", dest)
	}
	return nil
}

// collectBlobs lists every file under dir, descending into subdirectories,
// in listing order.
func (e *Engine) collectBlobs(ctx context.Context, dir string) ([]Entry, error) {
	entries, err := e.store.ListDirectory(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	var blobs []Entry
	for _, entry := range entries {
		if !entry.IsDir() {
			blobs = append(blobs, entry)
			continue
		}
		nested, err := e.collectBlobs(ctx, entry.Path)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		blobs = append(blobs, nested...)
	}
	return blobs, nil
}

// isEmptyFolder reports whether blobs holds nothing but placeholders.
func isEmptyFolder(blobs []Entry) bool {
	for _, blob := range blobs {
		if !IsPlaceholder(blob.Name) {
			return false
		}
	}
	return true
}

// resync reloads the folder set and the active folder's images after a
// multi-step operation stopped part way.
func (e *Engine) resync(ctx context.Context) {
	if err := e.Refresh(ctx); err != nil {
		e.logger.Warn("re-synchronizing after failure failed", "error", err)
	}
}

package gallery

import (
	"context"
	"errors"
	"fmt"
	"path"

	"golang.org/x/sync/errgroup"
)

// UploadFile is one file of an upload batch.
type UploadFile struct {
	Name    string
	Content []byte
}

// UploadResult is the outcome of one file of an upload batch.
type UploadResult struct {
	Name string
	Path string
	Hash string
	Err  error
}

// Upload writes a batch of files into folder, which must be the active
// folder. Every file is handled independently and concurrently: a name
// already in the loaded image set is rejected with ErrDuplicate without a
// backend call, and one file's failure never affects the others. Once every
// file has settled and at least one succeeded, the active folder is
// reloaded from the store exactly once.
//
// Writes are creates with no hash, so a same-named blob the index does not
// know about yet is overwritten by the store.
func (e *Engine) Upload(ctx context.Context, folder string, files []UploadFile) ([]UploadResult, error) {
	if folder == "" || e.index.Active() != folder {
		err := fmt.Errorf("uploading to %q: %w", folder, ErrNoActiveFolder)
		e.fail("uploading", err)
		return nil, err
	}

	op := e.startOperation(OpUpload, folder, "")
	op.Total = len(files)

	results := make([]UploadResult, len(files))
	seen := make(map[string]bool, len(files))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, f := range files {
		results[i] = UploadResult{Name: f.Name, Path: ImagePath(folder, f.Name)}

		if err := e.checkUpload(f.Name, seen); err != nil {
			results[i].Err = err
			continue
		}
		seen[f.Name] = true

		g.Go(func() error {
			msg := fmt.Sprintf("Add image %s", f.Name)
			hash, err := e.store.WriteFile(ctx, results[i].Path, f.Content, "", msg)
			if err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Hash = hash
			return nil
		})
	}
	_ = g.Wait() // failures are recorded per file

	var failed []error
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", r.Name, r.Err))
			e.fail(fmt.Sprintf("uploading %s", r.Name), r.Err)
			continue
		}
		op.Done++
		e.succeed("Uploaded %s", r.Name)
	}
	e.finishOperation(op, errors.Join(failed...))

	if op.Done > 0 {
		if err := e.LoadImages(ctx); err != nil {
			e.logger.Warn("reloading after upload failed", "folder", folder, "error", err)
		}
	}
	return results, nil
}

// checkUpload rejects a file before any backend call is made.
func (e *Engine) checkUpload(name string, seen map[string]bool) error {
	if name == "" || name != path.Base(name) || IsPlaceholder(name) {
		return fmt.Errorf("file name %q: %w", name, ErrInvalidName)
	}
	if !IsImageName(name) {
		return fmt.Errorf("file %q: %w", name, ErrUnsupportedType)
	}
	if seen[name] || e.index.HasImage(name) {
		return &DuplicateError{Kind: "image", Name: name}
	}
	return nil
}

// DeleteImage deletes img from the store, presenting its last-known hash.
// The image set changes only if the store confirmed the delete.
func (e *Engine) DeleteImage(ctx context.Context, img Image) error {
	op := e.startOperation(OpDeleteImage, path.Dir(img.Path), img.Name)
	op.Total = 1

	msg := fmt.Sprintf("Delete image %s", img.Name)
	if err := e.store.DeleteFile(ctx, img.Path, img.Hash, msg); err != nil {
		e.finishOperation(op, err)
		e.fail(fmt.Sprintf("deleting %s", img.Name), err)
		return err
	}
	op.Done = 1
	e.finishOperation(op, nil)

	e.index.RemoveImage(img.Path)
	e.succeed("Deleted %s", img.Name)
	return nil
}

// LookupImage returns the loaded image called name in the active folder.
func (e *Engine) LookupImage(name string) (Image, error) {
	img, ok := e.index.LookupImage(name)
	if !ok {
		return Image{}, fmt.Errorf("image %q: %w", name, ErrNotFound)
	}
	return img, nil
}

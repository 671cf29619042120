package gallery

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// LoadImages reloads the active folder's images in two phases: list the
// folder keeping image files, then fetch the latest history entry of every
// image concurrently. A failed history fetch leaves that image's
// modification time unresolved without failing the load. The result is
// published only after every fetch has settled, and discarded if another
// folder was selected in the meantime.
func (e *Engine) LoadImages(ctx context.Context) error {
	gen, folder := e.index.BeginLoad()
	if folder == "" {
		return ErrNoActiveFolder
	}

	images, err := e.fetchImages(ctx, folder)
	if err != nil {
		e.fail(fmt.Sprintf("loading %s", folder), err)
		return err
	}

	if !e.index.PublishImages(gen, folder, images) {
		e.logger.Debug("discarding stale image load", "folder", folder)
		return nil
	}
	e.logger.Debug("images loaded", "folder", folder, "count", len(images))
	return nil
}

func (e *Engine) fetchImages(ctx context.Context, folder string) ([]Image, error) {
	entries, err := e.store.ListDirectory(ctx, folder)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", folder, err)
	}

	var images []Image
	for _, entry := range entries {
		if entry.IsDir() || !IsImageName(entry.Name) {
			continue
		}
		images = append(images, Image{
			Path: entry.Path,
			Name: entry.Name,
			Hash: entry.Hash,
			URL:  entry.URL,
			Size: entry.Size,
		})
	}

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i := range images {
		g.Go(func() error {
			history, err := e.store.ListHistory(ctx, images[i].Path, 1)
			if err != nil {
				e.logger.Warn("history lookup failed", "path", images[i].Path, "error", err)
				return nil
			}
			if len(history) > 0 {
				images[i].ModifiedAt = history[0].Time
			}
			return nil
		})
	}
	_ = g.Wait() // per-image failures are absorbed above

	return images, nil
}

package gallery

import (
	"context"
	"errors"
	"fmt"
)

// DefaultMaxConcurrency bounds the per-item fan-out of loads and uploads.
const DefaultMaxConcurrency = 8

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	PageSize       int
	MaxConcurrency int
	Logger         Logger
	Notifier       Notifier
	Session        Session
	Recorder       OperationRecorder
	Clock          Clock
	IDGen          IDGenerator
}

// Engine is the orchestration layer that presents folders and images on top
// of a ContentStore. Lifecycle operations go through the store first and
// only update the Index once the store has confirmed them.
type Engine struct {
	store       ContentStore
	index       *Index
	concurrency int
	logger      Logger
	notifier    Notifier
	session     Session
	recorder    OperationRecorder
	clock       Clock
	idgen       IDGenerator
}

// NewEngine creates an Engine over store.
func NewEngine(store ContentStore, opts Options) *Engine {
	e := &Engine{
		store:       store,
		index:       NewIndex(opts.PageSize),
		concurrency: opts.MaxConcurrency,
		logger:      opts.Logger,
		notifier:    opts.Notifier,
		session:     opts.Session,
		recorder:    opts.Recorder,
		clock:       opts.Clock,
		idgen:       opts.IDGen,
	}
	if e.concurrency < 1 {
		e.concurrency = DefaultMaxConcurrency
	}
	if e.logger == nil {
		e.logger = NewNopLogger()
	}
	if e.notifier == nil {
		e.notifier = NopNotifier{}
	}
	if e.session == nil {
		e.session = nopSession{}
	}
	if e.recorder == nil {
		e.recorder = NopRecorder{}
	}
	if e.clock == nil {
		e.clock = RealClock{}
	}
	if e.idgen == nil {
		e.idgen = UUIDGenerator{}
	}
	return e
}

// Index returns the engine's gallery index.
func (e *Engine) Index() *Index {
	return e.index
}

// LoadFolders lists the repository root and replaces the folder set with
// its top-level directories. When nothing is active and at least one folder
// exists, the first folder becomes active and its images are loaded.
func (e *Engine) LoadFolders(ctx context.Context) error {
	if err := e.reloadFolders(ctx); err != nil {
		e.fail("loading folders", err)
		return err
	}

	if e.index.Active() == "" {
		if folders := e.index.Folders(); len(folders) > 0 {
			return e.SelectFolder(ctx, folders[0])
		}
	}
	return nil
}

func (e *Engine) reloadFolders(ctx context.Context) error {
	entries, err := e.store.ListDirectory(ctx, "")
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.index.SetFolders(nil)
			return nil
		}
		return fmt.Errorf("listing folders: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name)
		}
	}
	e.index.SetFolders(ids)
	e.logger.Debug("folders loaded", "count", len(ids))
	return nil
}

// SelectFolder makes id the active folder and loads its images.
func (e *Engine) SelectFolder(ctx context.Context, id string) error {
	if !e.index.HasFolder(id) {
		return fmt.Errorf("selecting folder %q: %w", id, ErrNotFound)
	}
	e.index.SetActive(id)
	return e.LoadImages(ctx)
}

// Refresh reloads the folder set and the active folder's images from the
// store. An active folder that disappeared is deselected.
func (e *Engine) Refresh(ctx context.Context) error {
	if err := e.reloadFolders(ctx); err != nil {
		e.fail("refreshing folders", err)
		return err
	}

	active := e.index.Active()
	if active == "" {
		return nil
	}
	if !e.index.HasFolder(active) {
		e.index.SetActive("")
		return nil
	}
	return e.LoadImages(ctx)
}

// succeed reports a successful operation to the notifier.
func (e *Engine) succeed(format string, args ...any) {
	e.notifier.Notify(Notification{Level: LevelSuccess, Message: fmt.Sprintf(format, args...)})
}

// fail reports a failed operation to the notifier and, for rejected
// credentials, to the session.
func (e *Engine) fail(action string, err error) {
	e.logger.Error(action+" failed", "error", err)
	e.notifier.Notify(Notification{Level: LevelError, Message: fmt.Sprintf("%s: %v", action, err)})
	if errors.Is(err, ErrUnauthorized) {
		e.session.Invalidate(err)
	}
}

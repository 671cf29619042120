package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gallery-go/internal/config"
	"gallery-go/internal/contents"
	"gallery-go/internal/database"
	"gallery-go/internal/encryption"
	"gallery-go/internal/fs"
	"gallery-go/internal/gallery"
	"gallery-go/internal/session"
)

// ErrNotLoggedIn is returned when the store needs a credential and none is
// active.
var ErrNotLoggedIn = errors.New("not logged in")

// Options configures a GalleryApp. Zero values select defaults.
type Options struct {
	// Out receives notifications. Nil discards them.
	Out io.Writer
	// Verbose mirrors the log file to stderr.
	Verbose bool
	Clock   gallery.Clock
}

// ViewOptions selects the page of images returned by Images.
type ViewOptions struct {
	Filter string
	Sort   gallery.SortKey
	Page   int
}

// GalleryApp is the application layer between the CLI and the gallery
// engine. It constructs all dependencies from config, exposes high-level
// operations that accept raw names and paths, and manages the DB lifecycle
// on Close.
type GalleryApp struct {
	cfg     *config.Config
	db      *database.SQLiteDatabase
	session *session.Manager
	store   gallery.ContentStore
	engine  *gallery.Engine
	scanner *fs.Scanner
	logger  gallery.Logger
	logFile *os.File
}

// NewGalleryApp creates a fully wired GalleryApp from the given config.
// The caller must call Close when done.
func NewGalleryApp(ctx context.Context, cfg *config.Config, opts Options) (*GalleryApp, error) {
	clock := opts.Clock
	if clock == nil {
		clock = gallery.RealClock{}
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date (run 'gallery db migrate'): %w", err)
	}

	runID := clock.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, runID, opts.Verbose)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	a := &GalleryApp{
		cfg:     cfg,
		db:      db,
		scanner: fs.NewScanner(cfg.Gallery.Ignore, logger),
		logger:  logger,
		logFile: logFile,
	}

	sealer, err := encryption.NewSealerFromConfig(cfg.Encryption)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating sealer: %w", err)
	}

	sessOpts := session.Options{Mode: session.ModeToken, Clock: clock, Logger: logger}
	if cfg.Store.Type == "proxy" {
		sessOpts.Mode = session.ModeSession
	}
	if cfg.Session.LoginURL != "" {
		sessOpts.Login = session.NewLoginClient(cfg.Session.LoginURL, cfg.Gallery.RequestTimeout)
	}
	a.session = session.NewManager(db, sealer, sessOpts)

	store, err := contents.NewStoreFromConfig(ctx, cfg.Store, a.session, cfg.Gallery.RequestTimeout)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating store: %w", err)
	}
	a.store = store
	a.session.Attach(store)

	var notifier gallery.Notifier
	if opts.Out != nil {
		notifier = NewConsoleNotifier(opts.Out)
	}
	var engineSession gallery.Session
	if contents.NeedsToken(cfg.Store.Type) {
		engineSession = a.session
	}

	a.engine = gallery.NewEngine(store, gallery.Options{
		PageSize:       cfg.Gallery.PageSize,
		MaxConcurrency: cfg.Gallery.MaxConcurrency,
		Logger:         logger,
		Notifier:       notifier,
		Session:        engineSession,
		Recorder:       &operationRecorder{log: db, clock: clock, logger: logger},
		Clock:          clock,
	})
	return a, nil
}

// MigrateDatabase brings the configured database schema up to date.
func MigrateDatabase(cfg *config.Config) error {
	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

// Connect makes the store usable for this command. Stores that need a
// credential restore and verify the stored one; the others are verified
// directly.
func (a *GalleryApp) Connect(ctx context.Context) error {
	if !contents.NeedsToken(a.cfg.Store.Type) {
		if err := a.store.Verify(ctx); err != nil {
			return fmt.Errorf("verifying store: %w", err)
		}
		return nil
	}

	if err := a.session.Start(ctx); err != nil {
		if errors.Is(err, session.ErrExpired) {
			return fmt.Errorf("session expired, run 'gallery login': %w", ErrNotLoggedIn)
		}
		return fmt.Errorf("restoring session: %w", err)
	}
	if a.session.State() != session.Authenticated {
		return fmt.Errorf("run 'gallery login' first: %w", ErrNotLoggedIn)
	}
	return nil
}

// Login verifies token against the store and stores it. Session tokens
// carry their expiry in the exp claim; personal access tokens do not expire.
func (a *GalleryApp) Login(ctx context.Context, token string) error {
	if !contents.NeedsToken(a.cfg.Store.Type) {
		return fmt.Errorf("store type %q does not use a login", a.cfg.Store.Type)
	}

	var expiresAt time.Time
	if a.cfg.Store.Type == "proxy" {
		exp, err := session.TokenExpiry(token)
		if err != nil {
			return err
		}
		expiresAt = exp
	}
	return a.session.Login(ctx, token, expiresAt)
}

// LoginWithPassword exchanges user and pass at the configured login
// endpoint for a session token and stores it.
func (a *GalleryApp) LoginWithPassword(ctx context.Context, user, pass string) error {
	if a.cfg.Session.LoginURL == "" {
		return fmt.Errorf("session.login_url is not configured")
	}
	return a.session.LoginWithPassword(ctx, user, pass)
}

// Logout deletes the stored credential.
func (a *GalleryApp) Logout(ctx context.Context) error {
	return a.session.Logout(ctx)
}

// SessionState returns the session state and expiry after Connect.
func (a *GalleryApp) SessionState() (session.State, time.Time) {
	return a.session.State(), a.session.ExpiresAt()
}

// Folders loads the folder set. It returns the folder identifiers and the
// folder that is active afterwards.
func (a *GalleryApp) Folders(ctx context.Context) ([]string, string, error) {
	if err := a.engine.LoadFolders(ctx); err != nil {
		return nil, "", err
	}
	idx := a.engine.Index()
	return idx.Folders(), idx.Active(), nil
}

// CreateFolder creates a folder from a raw name and returns its identifier.
func (a *GalleryApp) CreateFolder(ctx context.Context, name string) (string, error) {
	if err := a.engine.Refresh(ctx); err != nil {
		return "", err
	}
	return a.engine.CreateFolder(ctx, name)
}

// RenameFolder renames folder id to the normalized newName and returns the
// new identifier.
func (a *GalleryApp) RenameFolder(ctx context.Context, id, newName string) (string, error) {
	if err := a.engine.Refresh(ctx); err != nil {
		return "", err
	}
	return a.engine.RenameFolder(ctx, id, newName)
}

// DeleteFolder deletes folder id and everything in it.
func (a *GalleryApp) DeleteFolder(ctx context.Context, id string) error {
	if err := a.engine.Refresh(ctx); err != nil {
		return err
	}
	return a.engine.DeleteFolder(ctx, id)
}

// Images selects folder and returns one page of its images.
func (a *GalleryApp) Images(ctx context.Context, folder string, opts ViewOptions) (gallery.View, error) {
	if err := a.selectFolder(ctx, folder); err != nil {
		return gallery.View{}, err
	}

	idx := a.engine.Index()
	if opts.Sort != "" {
		idx.SetSort(opts.Sort)
	}
	idx.SetFilter(opts.Filter)
	if opts.Page > 0 {
		idx.SetPage(opts.Page)
	}
	return idx.View(), nil
}

// Upload reads the files at paths and uploads them into folder under their
// base names. Directories contribute their image files, descending into
// subdirectories when recursive is set. Files that cannot be read are
// reported in the results without stopping the others.
func (a *GalleryApp) Upload(ctx context.Context, folder string, paths []string, recursive bool) ([]gallery.UploadResult, error) {
	expanded, err := a.scanner.Scan(paths, recursive)
	if err != nil {
		return nil, err
	}
	if err := a.selectFolder(ctx, folder); err != nil {
		return nil, err
	}

	var files []gallery.UploadFile
	var unreadable []gallery.UploadResult
	for _, p := range expanded {
		name := filepath.Base(p)
		content, err := os.ReadFile(p)
		if err != nil {
			unreadable = append(unreadable, gallery.UploadResult{Name: name, Err: fmt.Errorf("reading %s: %w", p, err)})
			continue
		}
		files = append(files, gallery.UploadFile{Name: name, Content: content})
	}

	var results []gallery.UploadResult
	if len(files) > 0 {
		var err error
		results, err = a.engine.Upload(ctx, folder, files)
		if err != nil {
			return nil, err
		}
	}
	return append(results, unreadable...), nil
}

// DeleteImage deletes the image called name from folder.
func (a *GalleryApp) DeleteImage(ctx context.Context, folder, name string) error {
	if err := a.selectFolder(ctx, folder); err != nil {
		return err
	}
	img, err := a.engine.LookupImage(name)
	if err != nil {
		return err
	}
	return a.engine.DeleteImage(ctx, img)
}

// ImageURL returns the content URL of the image called name in folder.
func (a *GalleryApp) ImageURL(ctx context.Context, folder, name string) (string, error) {
	if err := a.selectFolder(ctx, folder); err != nil {
		return "", err
	}
	img, err := a.engine.LookupImage(name)
	if err != nil {
		return "", err
	}
	return img.URL, nil
}

// History returns the most recent recorded operations, newest first.
func (a *GalleryApp) History(ctx context.Context, limit int) ([]*database.OperationRecord, error) {
	return a.db.ListOperations(ctx, limit)
}

func (a *GalleryApp) selectFolder(ctx context.Context, folder string) error {
	if err := a.engine.Refresh(ctx); err != nil {
		return err
	}
	return a.engine.SelectFolder(ctx, folder)
}

// Close closes the database and the log file.
func (a *GalleryApp) Close() error {
	var firstErr error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

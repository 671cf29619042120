package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gallery-go/internal/database/migrations"
	"gallery-go/internal/gallery"
	"gallery-go/internal/session"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// OperationRecord is a row of the operation log.
type OperationRecord struct {
	ID         string
	Kind       string
	Folder     string
	Target     string
	State      string
	Done       int
	Total      int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
	RecordedAt time.Time
}

// SQLiteDatabase stores the session credential and the operation log.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase opens the database at path, which may be ":memory:".
// The schema is not migrated; see Migrate and CheckMigrations.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing, already configured connection.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite connection.
// An in-memory database lives only as long as its connection, so the pool
// is limited to one.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// Credential operations

// LoadCredential returns the stored credential or session.ErrNoCredential.
func (s *SQLiteDatabase) LoadCredential(ctx context.Context) (*session.StoredCredential, error) {
	var (
		cred      session.StoredCredential
		mode      string
		expiresAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT sealed, mode, expires_at, created_at FROM credentials WHERE id = 1",
	).Scan(&cred.Sealed, &mode, &expiresAt, &cred.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNoCredential
	}
	if err != nil {
		return nil, fmt.Errorf("loading credential: %w", err)
	}
	cred.Mode = session.Mode(mode)
	if expiresAt.Valid {
		cred.ExpiresAt = expiresAt.Time
	}
	return &cred, nil
}

// SaveCredential replaces the stored credential.
func (s *SQLiteDatabase) SaveCredential(ctx context.Context, cred session.StoredCredential) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (id, sealed, mode, expires_at, created_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sealed = excluded.sealed,
			mode = excluded.mode,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at`,
		cred.Sealed, string(cred.Mode), nullTime(cred.ExpiresAt), cred.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}
	return nil
}

// DeleteCredential removes the stored credential, if any.
func (s *SQLiteDatabase) DeleteCredential(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM credentials WHERE id = 1"); err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	return nil
}

// Operation log

// RecordOperation inserts op or updates its row with the latest state.
func (s *SQLiteDatabase) RecordOperation(ctx context.Context, op gallery.Operation, recordedAt time.Time) error {
	errMsg := ""
	if op.Err != nil {
		errMsg = op.Err.Error()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operations (id, kind, folder, target, state, done, total, error, started_at, finished_at, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			done = excluded.done,
			total = excluded.total,
			error = excluded.error,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			recorded_at = excluded.recorded_at`,
		op.ID, string(op.Kind), op.Folder, op.Target, string(op.State), op.Done, op.Total, errMsg,
		nullTime(op.StartedAt), nullTime(op.FinishedAt), recordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording operation %s: %w", op.ID, err)
	}
	return nil
}

// ListOperations returns up to limit operations, most recently recorded
// first.
func (s *SQLiteDatabase) ListOperations(ctx context.Context, limit int) ([]*OperationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, folder, target, state, done, total, error, started_at, finished_at, recorded_at
		FROM operations
		ORDER BY recorded_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var out []*OperationRecord
	for rows.Next() {
		var (
			rec               OperationRecord
			started, finished sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.Folder, &rec.Target, &rec.State,
			&rec.Done, &rec.Total, &rec.Error, &started, &finished, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		if started.Valid {
			rec.StartedAt = started.Time
		}
		if finished.Valid {
			rec.FinishedAt = finished.Time
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return out, nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Migrate applies pending schema migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// Compile-time check that SQLiteDatabase can hold the session credential
var _ session.CredentialStore = (*SQLiteDatabase)(nil)

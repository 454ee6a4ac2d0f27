package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get for an unknown attempt ID
var ErrNotFound = errors.New("attempt not found")

const schemaVersion = 1

// DB represents the history database with separate read/write pools
type DB struct {
	write *sql.DB
	read  *sql.DB
	path  string
}

// New opens (and creates if needed) the history database at dbPath
func New(ctx context.Context, dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)

	// Write pool: MUST be 1 connection only
	write, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open write connection: %w", err)
	}
	write.SetMaxOpenConns(1)
	write.SetMaxIdleConns(1)
	write.SetConnMaxIdleTime(time.Minute)

	read, err := sql.Open("sqlite", connStr)
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("open read connection: %w", err)
	}
	read.SetMaxOpenConns(4)
	read.SetMaxIdleConns(2)
	read.SetConnMaxIdleTime(time.Minute)

	db := &DB{
		write: write,
		read:  read,
		path:  dbPath,
	}

	if err := db.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return db, nil
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Close closes both database connections
func (db *DB) Close() error {
	writeErr := db.write.Close()
	readErr := db.read.Close()
	if writeErr != nil {
		return writeErr
	}
	return readErr
}

func (db *DB) initSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS attempts (
    attempt_id TEXT PRIMARY KEY,
    started_at DATETIME NOT NULL,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    interpreter TEXT,
    python_version TEXT,
    version_check TEXT,
    mode TEXT,
    root TEXT,
    source TEXT,
    outcome TEXT NOT NULL,
    error_kind TEXT,
    error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_attempts_started ON attempts(started_at);

CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    applied_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    description TEXT
);
	`

	if _, err := db.write.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	_, err := db.write.ExecContext(ctx,
		"INSERT OR IGNORE INTO schema_migrations (version, description) VALUES (?, ?)",
		schemaVersion, "attempts table")
	if err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return nil
}

// Outcome of a recorded attempt
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDryRun  = "dry-run"
)

// Attempt is one recorded bootstrap run
type Attempt struct {
	AttemptID     string        `json:"attempt_id"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Interpreter   string        `json:"interpreter,omitempty"`
	PythonVersion string        `json:"python_version,omitempty"`
	VersionCheck  string        `json:"version_check,omitempty"`
	Mode          string        `json:"mode,omitempty"`
	Root          string        `json:"root,omitempty"`
	Source        string        `json:"source,omitempty"`
	Outcome       string        `json:"outcome"`
	ErrorKind     string        `json:"error_kind,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
}

// NewAttemptID returns a lexically sortable attempt identifier
func NewAttemptID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.Monotonic(rand.Reader, 0)).String()
}

// Create inserts an attempt, assigning an ID when AttemptID is empty
func (db *DB) Create(ctx context.Context, a *Attempt) error {
	if a.StartedAt.IsZero() {
		a.StartedAt = time.Now()
	}
	if a.AttemptID == "" {
		a.AttemptID = NewAttemptID(a.StartedAt)
	}
	if a.Outcome == "" {
		return fmt.Errorf("attempt outcome is required")
	}

	query := `
INSERT INTO attempts (attempt_id, started_at, duration_ms, interpreter, python_version, version_check, mode, root, source, outcome, error_kind, error_message)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.write.ExecContext(ctx, query,
		a.AttemptID,
		a.StartedAt.UTC(),
		a.Duration.Milliseconds(),
		a.Interpreter,
		a.PythonVersion,
		a.VersionCheck,
		a.Mode,
		a.Root,
		a.Source,
		a.Outcome,
		a.ErrorKind,
		a.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}

	return nil
}

const selectAttempt = `
SELECT attempt_id, started_at, duration_ms, interpreter, python_version, version_check, mode, root, source, outcome, error_kind, error_message
FROM attempts`

type scanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row scanner) (Attempt, error) {
	var a Attempt
	var durationMS int64
	var interpreter, pythonVersion, versionCheck, mode, root, source, errorKind, errorMessage sql.NullString

	err := row.Scan(
		&a.AttemptID,
		&a.StartedAt,
		&durationMS,
		&interpreter,
		&pythonVersion,
		&versionCheck,
		&mode,
		&root,
		&source,
		&a.Outcome,
		&errorKind,
		&errorMessage,
	)
	if err != nil {
		return a, err
	}

	a.Duration = time.Duration(durationMS) * time.Millisecond
	a.Interpreter = interpreter.String
	a.PythonVersion = pythonVersion.String
	a.VersionCheck = versionCheck.String
	a.Mode = mode.String
	a.Root = root.String
	a.Source = source.String
	a.ErrorKind = errorKind.String
	a.ErrorMessage = errorMessage.String

	return a, nil
}

// Get retrieves an attempt by ID
func (db *DB) Get(ctx context.Context, attemptID string) (*Attempt, error) {
	a, err := scanAttempt(db.read.QueryRowContext(ctx, selectAttempt+" WHERE attempt_id = ?", attemptID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, attemptID)
	}
	if err != nil {
		return nil, fmt.Errorf("query attempt: %w", err)
	}
	return &a, nil
}

// List returns the most recent attempts first; limit <= 0 returns all
func (db *DB) List(ctx context.Context, limit int) ([]Attempt, error) {
	query := selectAttempt + " ORDER BY started_at DESC, attempt_id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.read.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return attempts, nil
}

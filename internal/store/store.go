package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const currentVersion = 1

// timeLayout is fixed width so that lexical order of stored timestamps equals
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

type Store struct {
	db    *sql.DB
	clock func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides time.Now, mostly for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
func New(dbPath string, opts ...Option) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	// Transactions take the write lock up front so a writer in another
	// process makes us wait on busy_timeout rather than fail the upgrade.
	dsn := dbPath + "?_txlock=immediate&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection serializes transactions inside the process. The partial
	// unique index on open entries covers other processes.
	db.SetMaxOpenConns(1)

	// Configure pragmas.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory(opts ...Option) (*Store, error) {
	return New(":memory:", opts...)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping() error {
	return s.db.Ping()
}

func (s *Store) now() time.Time {
	return s.clock().UTC().Truncate(time.Millisecond)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	_, err = s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

func (s *Store) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS users (
		id          TEXT PRIMARY KEY,
		email       TEXT NOT NULL UNIQUE,
		name        TEXT NOT NULL DEFAULT '',
		token_hash  TEXT NOT NULL UNIQUE,
		created_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS projects (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name        TEXT NOT NULL,
		client_name TEXT,
		status      TEXT NOT NULL DEFAULT 'ACTIVE',
		hourly_rate REAL,
		tags        TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_projects_user ON projects(user_id);

	CREATE TABLE IF NOT EXISTS tasks (
		id               TEXT PRIMARY KEY,
		project_id       TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		title            TEXT NOT NULL,
		description      TEXT,
		status           TEXT NOT NULL DEFAULT 'TODO',
		priority         TEXT NOT NULL DEFAULT 'MEDIUM',
		tags             TEXT NOT NULL DEFAULT '',
		estimate_minutes INTEGER,
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);

	CREATE TABLE IF NOT EXISTS time_entries (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		project_id  TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		task_id     TEXT REFERENCES tasks(id) ON DELETE SET NULL,
		start_time  TEXT NOT NULL,
		end_time    TEXT,
		duration    INTEGER NOT NULL DEFAULT 0,
		note        TEXT,
		is_manual   INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_one_open ON time_entries(user_id) WHERE end_time IS NULL;
	CREATE INDEX IF NOT EXISTS idx_entries_user_start ON time_entries(user_id, start_time);
	CREATE INDEX IF NOT EXISTS idx_entries_project ON time_entries(project_id);

	CREATE TABLE IF NOT EXISTS attachments (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		project_id   TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		task_id      TEXT REFERENCES tasks(id) ON DELETE SET NULL,
		filename     TEXT NOT NULL,
		storage_key  TEXT NOT NULL UNIQUE,
		mime_type    TEXT NOT NULL,
		size_bytes   INTEGER NOT NULL,
		created_at   TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attachments_project ON attachments(project_id);

	CREATE TABLE IF NOT EXISTS user_settings (
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		key     TEXT NOT NULL,
		value   TEXT NOT NULL,
		PRIMARY KEY (user_id, key)
	);
	`
	_, err := s.db.Exec(ddl)
	return err
}

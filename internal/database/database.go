package database

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
	logger *zap.Logger
}

func New(storagePath string, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("sqlite", storagePath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if storagePath == ":memory:" {
		// Each new pooled connection would open its own empty in-memory
		// database, so keep a single shared connection.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to exec pragma %q: %w", p, err)
		}
	}

	database := &DB{
		DB:     db,
		logger: logger,
	}

	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Database connection established", zap.String("path", storagePath))
	return database, nil
}

// NewMemory creates an in-memory database for testing.
func NewMemory(logger *zap.Logger) (*DB, error) {
	return New(":memory:", logger)
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'EMPLOYEE',
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			auto_stop_limit_minutes INTEGER NOT NULL DEFAULT 30,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL REFERENCES projects(id),
			name TEXT NOT NULL,
			is_open_to_all INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS task_assignees (
			task_id INTEGER NOT NULL REFERENCES tasks(id),
			user_id INTEGER NOT NULL REFERENCES users(id),
			PRIMARY KEY (task_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS time_sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id),
			task_id INTEGER NOT NULL REFERENCES tasks(id),
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP,
			duration INTEGER NOT NULL DEFAULT 0,
			idle_duration INTEGER NOT NULL DEFAULT 0,
			notes TEXT,
			is_manual INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		// At most one running session per user. Concurrent starts race on
		// this index instead of on an application-level existence check.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_one_active
			ON time_sessions(user_id) WHERE end_time IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user_start ON time_sessions(user_id, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_start ON time_sessions(start_time)`,
		`CREATE TABLE IF NOT EXISTS screenshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			time_session_id INTEGER NOT NULL REFERENCES time_sessions(id),
			image_url TEXT NOT NULL,
			captured_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_screenshots_session ON screenshots(time_session_id)`,
		// Agent-side retry queue for screenshot uploads that failed mid-flight.
		`CREATE TABLE IF NOT EXISTS pending_uploads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL,
			blob_key TEXT NOT NULL,
			image_data BLOB NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			retry_count INTEGER DEFAULT 0,
			last_attempt TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_uploads_created ON pending_uploads(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	db.logger.Info("Database migrations completed")
	return nil
}

func (db *DB) Close() error {
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db.logger.Info("Database connection closed")
	return nil
}

package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// New opens a SQLite database connection at the given path.
// Writes are serialized on a single connection and wait on locks held by
// other processes instead of failing.
func New(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate creates the governance tables. It is idempotent.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			document_id TEXT PRIMARY KEY,
			source_url TEXT NOT NULL DEFAULT '',
			document_type TEXT NOT NULL,
			classification TEXT NOT NULL,
			added_date TEXT NOT NULL,
			version TEXT NOT NULL,
			last_verified TEXT NOT NULL,
			last_updated TEXT NOT NULL,
			times_referenced INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			retention_years INTEGER NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]',
			archived_date TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);`,
		`CREATE TABLE IF NOT EXISTS users (
			user_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL,
			department TEXT NOT NULL DEFAULT '',
			permissions TEXT NOT NULL DEFAULT '[]',
			access_level TEXT NOT NULL,
			created_date TEXT NOT NULL,
			last_active TEXT,
			query_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			deactivated_date TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

// Package storage persists conversations and tool-provider registrations in
// a single SQLite database under the data directory.
package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps the chatd database. One Store is shared by all scopes; every
// query is scoped explicitly by the caller's identity.
type Store struct {
	db *sql.DB
}

func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "chatd.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{db: db}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chats (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chats_scope ON chats(scope);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		reasoning TEXT NOT NULL DEFAULT '[]',
		tool_calls TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, created_at);

	CREATE TABLE IF NOT EXISTS providers (
		id TEXT NOT NULL,
		scope TEXT NOT NULL,
		name TEXT NOT NULL,
		transport TEXT NOT NULL,
		command TEXT NOT NULL DEFAULT '',
		args TEXT NOT NULL DEFAULT '[]',
		env TEXT NOT NULL DEFAULT '{}',
		base_url TEXT NOT NULL DEFAULT '',
		sub_paths TEXT NOT NULL DEFAULT '{}',
		auth_type TEXT NOT NULL DEFAULT 'none',
		connect_timeout_secs INTEGER NOT NULL DEFAULT 0,
		call_timeout_secs INTEGER NOT NULL DEFAULT 0,
		max_retries INTEGER NOT NULL DEFAULT 0,
		retry_delay_ms INTEGER NOT NULL DEFAULT 0,
		enabled INTEGER NOT NULL DEFAULT 1,
		auto_connect INTEGER NOT NULL DEFAULT 0,
		last_connected_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (id, scope)
	);
	CREATE INDEX IF NOT EXISTS idx_providers_scope ON providers(scope);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	if err := s.migrateSchema(); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	return nil
}

// migrateSchema adds columns introduced after the initial release to
// databases created by older builds.
func (s *Store) migrateSchema() error {
	hasAutoConnect, err := s.columnExists("providers", "auto_connect")
	if err != nil {
		return fmt.Errorf("failed to check for auto_connect column: %w", err)
	}
	if !hasAutoConnect {
		if _, err := s.db.Exec(`ALTER TABLE providers ADD COLUMN auto_connect INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("failed to add auto_connect column: %w", err)
		}
	}

	hasSubPaths, err := s.columnExists("providers", "sub_paths")
	if err != nil {
		return fmt.Errorf("failed to check for sub_paths column: %w", err)
	}
	if !hasSubPaths {
		if _, err := s.db.Exec(`ALTER TABLE providers ADD COLUMN sub_paths TEXT NOT NULL DEFAULT '{}'`); err != nil {
			return fmt.Errorf("failed to add sub_paths column: %w", err)
		}
	}

	hasLastConnected, err := s.columnExists("providers", "last_connected_at")
	if err != nil {
		return fmt.Errorf("failed to check for last_connected_at column: %w", err)
	}
	if !hasLastConnected {
		if _, err := s.db.Exec(`ALTER TABLE providers ADD COLUMN last_connected_at DATETIME`); err != nil {
			return fmt.Errorf("failed to add last_connected_at column: %w", err)
		}
	}

	return nil
}

func (s *Store) columnExists(tableName, columnName string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull, pk int
		var dfltValue sql.NullString

		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == columnName {
			return true, nil
		}
	}

	return false, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/heartcare-ai/heartcare/internal/domain"
	_ "modernc.org/sqlite"
)

// MemoryPath selects a private in-memory SQLite database.
const MemoryPath = ":memory:"

// openSQLite opens a SQLite database through the pure Go modernc driver.
func openSQLite(cfg domain.RepositoryConfig) (*sql.DB, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = "./heartcare.db"
	}

	var dsn string
	if path == MemoryPath {
		dsn = "file::memory:?_pragma=foreign_keys(ON)"
	} else {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// Each in-memory connection is its own database, so keep exactly one.
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return db, nil
}

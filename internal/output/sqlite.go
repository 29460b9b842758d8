// internal/output/sqlite.go
package output

import (
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

var sqliteDialect = dialect{
	name:       "sqlite",
	driver:     "sqlite3",
	rowID:      "INTEGER PRIMARY KEY AUTOINCREMENT",
	textType:   "TEXT",
	quote:      quoteDouble,
	bind:       bindQuestion,
	tableQuery: "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
}

// NewSQLiteStore opens or creates the database file at path.
func NewSQLiteStore(path string) (*SQLStore, error) {
	if path == "" {
		return nil, fmt.Errorf("SQLite database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	s, err := openSQLStore(sqliteDialect, path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	// single writer
	s.db.SetMaxOpenConns(1)
	return s, nil
}

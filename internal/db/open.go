package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// OpenSQLite opens (creating if needed) the database file at path, applies
// pending migrations and returns a ready store.
func OpenSQLite(path, migrationsDir string, logger *zap.Logger) (*SQLiteStore, *sql.DB, error) {
	if path == "" {
		return nil, nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_txlock=immediate", filepath.ToSlash(path))
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := RunMigrations(conn, migrationsDir); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	store, err := NewSQLiteStore(conn, logger)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return store, conn, nil
}

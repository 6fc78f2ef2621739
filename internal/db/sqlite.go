// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the collector's SQLite database
type DB struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at dbPath and applies pending
// migrations
func Open(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := openWithWAL(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := NewMigrationRunner(db).Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &DB{db: db, path: dbPath}, nil
}

// openWithWAL opens a SQLite database in WAL mode
func openWithWAL(dbPath string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Writers serialize on one connection, readers share it
	db.SetMaxOpenConns(1)

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Close closes the database
func (d *DB) Close() error {
	return d.db.Close()
}

// SchemaVersion returns the highest applied migration
func (d *DB) SchemaVersion() (int, error) {
	return NewMigrationRunner(d.db).Version()
}

// Path returns the database path
func (d *DB) Path() string {
	return d.path
}

// DefaultPath returns the database location under the user's Documents
// directory, or the working directory when home is unknown
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "web_activity.sqlite"
	}
	return filepath.Join(home, "Documents", "web_activity.sqlite")
}

/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

// Package latticestore persists finalized decoding lattices to SQLite,
// compressed with zstd, keyed by session id.
package latticestore

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
	"go.uber.org/zap"

	"github.com/loqalabs/loqa-decoder/internal/logging"
)

//go:embed schema.sql
var schemaFiles embed.FS

// Database wraps a SQLite connection.
type Database struct {
	db   *sql.DB
	path string
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string
}

// NewDatabase opens (creating if necessary) the lattice database at
// config.Path and applies the embedded schema.
func NewDatabase(config DatabaseConfig) (*Database, error) {
	if config.Path == "" {
		config.Path = "./data/loqa-decoder.db"
	}

	if err := ensureDir(filepath.Dir(config.Path)); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := configureSQLite(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure sqlite: %w", err)
	}

	database := &Database{db: db, path: config.Path}
	if err := database.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if logging.Logger != nil {
		logging.Logger.Info("lattice database connected", zap.String("path", config.Path))
	}
	return database, nil
}

// NewInMemoryDatabase opens a ":memory:" database, primarily for tests.
func NewInMemoryDatabase() (*Database, error) {
	return NewDatabase(DatabaseConfig{Path: ":memory:"})
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." || dir == ":memory:" {
		return nil
	}
	return os.MkdirAll(dir, 0750)
}

func configureSQLite(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %q: %w", pragma, err)
		}
	}
	return nil
}

func (d *Database) migrate() error {
	schemaSQL, err := schemaFiles.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := d.db.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// DB returns the underlying *sql.DB.
func (d *Database) DB() *sql.DB { return d.db }

// Close closes the database connection.
func (d *Database) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// Ping verifies the connection is alive.
func (d *Database) Ping() error { return d.db.Ping() }

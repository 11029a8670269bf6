package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// note: as per SQLites's manual suggestions, we do not use 'AUTOINCREMENT' on
// the 'INTEGER PRIMARY KEY' columns.
var schema_stmts = []string{
	`PRAGMA journal_mode=WAL;`,
	`PRAGMA foreign_keys=ON;`,
	`CREATE TABLE IF NOT EXISTS books (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		source_path TEXT NOT NULL DEFAULT '',
		saved_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		UNIQUE(name)
	);`,
	// zobrist_key holds the bit pattern of the unsigned key; seq keeps the
	// per-key entry order.
	`CREATE TABLE IF NOT EXISTS book_entries (
		book_id INTEGER NOT NULL REFERENCES books(id) ON UPDATE CASCADE ON DELETE CASCADE,
		zobrist_key INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		move INTEGER NOT NULL CHECK (move BETWEEN 0 AND 65535),
		weight INTEGER NOT NULL CHECK (weight BETWEEN 0 AND 65535),
		learn INTEGER NOT NULL DEFAULT 0 CHECK (learn BETWEEN 0 AND 4294967295),
		PRIMARY KEY (book_id, zobrist_key, seq)
	);`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value
	);`,
	`CREATE INDEX IF NOT EXISTS idx_book_entries_key ON book_entries(zobrist_key);`,
}

type Store struct {
	db *sqlx.DB
}

func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// keep it predictable; a single writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	for _, stmt := range schema_stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	if err := insertDefaultSettings(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func insertDefaultSettings(ctx context.Context, db *sqlx.DB) error {
	stmts := []string{
		`INSERT OR IGNORE INTO settings (key, value) VALUES ('prune_lower', 0)`,
		`INSERT OR IGNORE INTO settings (key, value) VALUES ('prune_upper', 65535)`,
		`INSERT OR IGNORE INTO settings (key, value) VALUES ('default_book', '')`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("insert default settings: %w", err)
		}
	}
	return nil
}

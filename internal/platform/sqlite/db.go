package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const memoryPath = ":memory:"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY,
		sending_account_id INTEGER NOT NULL,
		receiving_account_id INTEGER NOT NULL,
		amount TEXT NOT NULL,
		comment TEXT NOT NULL DEFAULT '',
		sender_phone_number TEXT NOT NULL DEFAULT '',
		receiver_phone_number TEXT NOT NULL DEFAULT '',
		transaction_time INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_time ON transactions (transaction_time DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS session (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		account_id INTEGER NOT NULL,
		phone_number TEXT NOT NULL DEFAULT '',
		balance TEXT NOT NULL,
		logged_in_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pending_deltas (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		amount TEXT NOT NULL,
		transaction_id INTEGER NOT NULL DEFAULT 0,
		receiver_phone_number TEXT NOT NULL DEFAULT '',
		baseline INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,
}

// Open opens the database at path, creating parent directories and the
// schema when missing. ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := memoryPath
	if path != memoryPath {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = path + "?_journal=WAL&_busy_timeout=5000&_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	if path == memoryPath {
		// every connection to :memory: is a new database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

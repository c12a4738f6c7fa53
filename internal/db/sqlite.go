package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username TEXT UNIQUE,
    email TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS news (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    slug TEXT NOT NULL,
    content BLOB NOT NULL,
    content_hash TEXT NOT NULL,
    user_id TEXT,
    created_at DATETIME NOT NULL,
    modified_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS news_created_at ON news (created_at DESC);

CREATE TABLE IF NOT EXISTS news_images (
    id TEXT PRIMARY KEY,
    news_id TEXT NOT NULL REFERENCES news(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    content_type TEXT NOT NULL,
    size INTEGER NOT NULL,
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    blob_key TEXT NOT NULL,
    UNIQUE (news_id, position)
);`

type SQLite struct {
	path string
	conn *sql.DB
}

// NewSQLite returns an unopened database; ":memory:" is accepted for tests.
func NewSQLite(path string) *SQLite {
	return &SQLite{
		path: path,
		conn: nil,
	}
}

func (s *SQLite) dsn() string {
	if s.path == ":memory:" || strings.HasPrefix(s.path, "file:") {
		return s.path + "?_foreign_keys=on"
	}
	return "file:" + s.path + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
}

func (s *SQLite) InitDB(ctx context.Context) error {
	conn, err := sql.Open("sqlite3", s.dsn())
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	// One writer; also keeps ":memory:" on a single shared connection.
	conn.SetMaxOpenConns(1)
	s.conn = conn

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	dbLogger.Info().Str("path", s.path).Msg("Database initialized")
	return nil
}

func (s *SQLite) Get() *sql.DB {
	return s.conn
}

func (s *SQLite) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *SQLite) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	dbLogger.Debug().Str("query", query).Msg("Query")
	return s.conn.QueryContext(ctx, query, args...)
}

func (s *SQLite) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	dbLogger.Debug().Str("query", query).Msg("Exec")
	return s.conn.ExecContext(ctx, query, args...)
}

func (s *SQLite) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.conn.BeginTx(ctx, nil)
}

package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const failedToInitDB = "Failed to initialize database: %v"

func init() {
	SetLogger(zerolog.New(os.Stdout).Level(zerolog.ErrorLevel))
}

func TestNewSQLite(t *testing.T) {
	db := NewSQLite(":memory:")
	if db == nil {
		t.Fatal("Expected non-nil SQLite instance")
	}
	if db.conn != nil {
		t.Error("Expected connection to be nil initially")
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close on unopened database should be a no-op, got %v", err)
	}
}

func TestSQLiteDSN(t *testing.T) {
	testCases := []struct {
		path string
		want string
	}{
		{":memory:", ":memory:?_foreign_keys=on"},
		{"file:x.db", "file:x.db?_foreign_keys=on"},
		{"./news.db", "file:./news.db?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"},
	}
	for _, tc := range testCases {
		if got := NewSQLite(tc.path).dsn(); got != tc.want {
			t.Errorf("dsn(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestSQLiteInitDB(t *testing.T) {
	ctx := context.Background()
	db := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	defer db.Close()

	if err := db.InitDB(ctx); err != nil {
		t.Fatalf(failedToInitDB, err)
	}

	t.Run("Tables exist", func(t *testing.T) {
		for _, table := range []string{"users", "news", "news_images"} {
			var name string
			row := db.Get().QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table)
			if err := row.Scan(&name); err != nil {
				t.Errorf("Expected table %s to exist: %v", table, err)
			}
		}
	})

	t.Run("InitDB is idempotent", func(t *testing.T) {
		again := NewSQLite(db.path)
		defer again.Close()
		if err := again.InitDB(ctx); err != nil {
			t.Errorf("Second InitDB failed: %v", err)
		}
	})

	t.Run("Images cascade with their record", func(t *testing.T) {
		now := time.Now().UTC()
		if _, err := db.ExecContext(ctx,
			`INSERT INTO news (id, title, slug, content, content_hash, created_at, modified_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			"n1", "Launch", "launch", []byte("x"), "h", now, now); err != nil {
			t.Fatalf("insert news: %v", err)
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO news_images (id, news_id, position, name, content_type, size, blob_key) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			"i1", "n1", 0, "a.png", "image/png", 10, "k"); err != nil {
			t.Fatalf("insert image: %v", err)
		}
		if _, err := db.ExecContext(ctx, `DELETE FROM news WHERE id = ?`, "n1"); err != nil {
			t.Fatalf("delete news: %v", err)
		}

		var count int
		if err := db.Get().QueryRowContext(ctx, `SELECT COUNT(*) FROM news_images`).Scan(&count); err != nil {
			t.Fatal(err)
		}
		if count != 0 {
			t.Errorf("Expected images to cascade, %d left", count)
		}
	})

	t.Run("Orphan images are rejected", func(t *testing.T) {
		_, err := db.ExecContext(ctx,
			`INSERT INTO news_images (id, news_id, position, name, content_type, size, blob_key) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			"i2", "missing", 0, "a.png", "image/png", 10, "k")
		if err == nil {
			t.Error("Expected foreign key violation")
		}
	})
}

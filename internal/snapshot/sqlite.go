package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/resilience"
)

// SQLiteStore keeps the latest snapshot in a single-row table of a local
// SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS crawl_snapshot (
		id          INTEGER PRIMARY KEY CHECK (id = 1),
		data        TEXT NOT NULL,
		documents   INTEGER NOT NULL,
		captured_at DATETIME NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating crawl_snapshot table: %w", err)
	}
	return &SQLiteStore{
		db:     db,
		path:   path,
		logger: slog.Default().With("component", "snapshot-sqlite", "path", path),
	}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM crawl_snapshot WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}
	return Decode([]byte(data))
}

func (s *SQLiteStore) Save(ctx context.Context, snap *Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	return resilience.Retry(ctx, "snapshot-sqlite-save", resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 50 * time.Millisecond,
		Retryable:    retryable,
	}, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO crawl_snapshot (id, data, documents, captured_at) VALUES (1, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET data = excluded.data, documents = excluded.documents, captured_at = excluded.captured_at`,
			string(data), len(snap.Documents), time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("writing snapshot: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

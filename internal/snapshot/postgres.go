package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/resilience"
)

// PostgresStore keeps the snapshot as JSONB in the crawl_snapshots table.
// Every save appends a row; Load reads the newest.
//
//	CREATE TABLE crawl_snapshots (
//	    id          BIGSERIAL PRIMARY KEY,
//	    data        JSONB NOT NULL,
//	    documents   INTEGER NOT NULL,
//	    captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type PostgresStore struct {
	db     *postgres.Client
	keep   int
	logger *slog.Logger
}

const postgresSchema = `CREATE TABLE IF NOT EXISTS crawl_snapshots (
	id          BIGSERIAL PRIMARY KEY,
	data        JSONB NOT NULL,
	documents   INTEGER NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// NewPostgresStore ensures the table exists. keep bounds how many historical
// rows survive each save; zero keeps them all.
func NewPostgresStore(ctx context.Context, db *postgres.Client, keep int) (*PostgresStore, error) {
	if err := db.Migrate(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("creating crawl_snapshots: %w", err)
	}
	return &PostgresStore{
		db:     db,
		keep:   keep,
		logger: slog.Default().With("component", "snapshot-postgres"),
	}, nil
}

func (s *PostgresStore) Load(ctx context.Context) (*Snapshot, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM crawl_snapshots ORDER BY id DESC LIMIT 1`,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	return Decode(data)
}

// Save inserts the snapshot and prunes old rows in one transaction, retrying
// transient failures.
func (s *PostgresStore) Save(ctx context.Context, snap *Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	return resilience.Retry(ctx, "snapshot-postgres-save", resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		Retryable:    retryable,
	}, func() error {
		return s.db.InTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO crawl_snapshots (data, documents, captured_at) VALUES ($1, $2, $3)`,
				data, len(snap.Documents), time.Now().UTC(),
			); err != nil {
				return fmt.Errorf("inserting snapshot: %w", err)
			}
			if s.keep > 0 {
				if _, err := tx.ExecContext(ctx,
					`DELETE FROM crawl_snapshots WHERE id NOT IN (
						SELECT id FROM crawl_snapshots ORDER BY id DESC LIMIT $1)`,
					s.keep,
				); err != nil {
					return fmt.Errorf("pruning snapshots: %w", err)
				}
			}
			return nil
		})
	})
}

// Close is a no-op; the caller owns the postgres client.
func (s *PostgresStore) Close() error { return nil }

// Package sqlite persists decision records in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zen-systems/tierroute/pkg/classifier"
	"github.com/zen-systems/tierroute/pkg/router"
	"github.com/zen-systems/tierroute/pkg/store"
)

const createTable = `
CREATE TABLE IF NOT EXISTS decisions (
	id TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	prompt_preview TEXT NOT NULL,
	tier TEXT NOT NULL,
	rationale TEXT NOT NULL,
	backend TEXT NOT NULL,
	cost_usd REAL NOT NULL,
	tokens_used INTEGER NOT NULL,
	latency_ms REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_created ON decisions(created_at);
`

// Store implements store.Store on SQLite. created_at holds Unix nanoseconds.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// New opens dbPath and runs the migration.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open decisions db: %w", err)
	}
	// Pragmas below are per connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate decisions db: %w", err)
	}
	return &Store{db: db}, nil
}

// Append inserts rec. A duplicate ID is an error.
func (s *Store) Append(ctx context.Context, rec router.DecisionRecord) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions (id, created_at, prompt_preview, tier, rationale, backend, cost_usd, tokens_used, latency_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, ts.UTC().UnixNano(), rec.PromptPreview, string(rec.Tier), rec.Rationale,
		rec.Backend, rec.CostUSD, rec.TokensUsed, rec.LatencyMs,
	)
	if err != nil {
		return fmt.Errorf("append decision: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]router.DecisionRecord, error) {
	if limit <= 0 {
		limit = store.DefaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, prompt_preview, tier, rationale, backend, cost_usd, tokens_used, latency_ms
		 FROM decisions ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	records := make([]router.DecisionRecord, 0, limit)
	for rows.Next() {
		var (
			rec  router.DecisionRecord
			ns   int64
			tier string
		)
		if err := rows.Scan(&rec.ID, &ns, &rec.PromptPreview, &tier, &rec.Rationale,
			&rec.Backend, &rec.CostUSD, &rec.TokensUsed, &rec.LatencyMs); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		rec.Timestamp = time.Unix(0, ns).UTC()
		rec.Tier = classifier.Tier(tier)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Stats aggregates per backend.
func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT backend, COUNT(*), COALESCE(SUM(cost_usd), 0) FROM decisions GROUP BY backend`,
	)
	if err != nil {
		return store.Stats{}, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	stats := store.Stats{Breakdown: make(map[string]store.BackendStats)}
	for rows.Next() {
		var (
			backend string
			b       store.BackendStats
		)
		if err := rows.Scan(&backend, &b.Count, &b.CostUSD); err != nil {
			return store.Stats{}, fmt.Errorf("scan stats: %w", err)
		}
		stats.Breakdown[backend] = b
		stats.TotalRequests += b.Count
		stats.TotalCostUSD += b.CostUSD
	}
	return stats, rows.Err()
}

// Cleanup deletes records created before cutoff and returns how many
// were removed.
func (s *Store) Cleanup(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM decisions WHERE created_at < ?`, cutoff.UTC().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup decisions: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

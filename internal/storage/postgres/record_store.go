// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fitsched/schedule-crawler/internal/crawl"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RecordStoreConfig controls the Postgres connection pool used for
// crawl record rows.
type RecordStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// RecordStore writes crawl records into Postgres. Each record lands as
// one row with its tallies in columns and the full record as JSONB.
type RecordStore struct {
	pool  pool
	table string
}

// NewRecordStore creates a Postgres-backed RecordStore using the provided config.
func NewRecordStore(ctx context.Context, cfg RecordStoreConfig) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "crawl_records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RecordStore{pool: p, table: table}, nil
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRecordStoreWithPool(p pool, table string) (*RecordStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "crawl_records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RecordStore{pool: p, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Append inserts a crawl record row.
func (s *RecordStore) Append(ctx context.Context, rec crawl.CrawlRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("record store is not configured")
	}
	if rec.RunID == "" {
		return fmt.Errorf("record run id is required")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal crawl record: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	crawled_at,
	total_clubs,
	successful_clubs,
	failed_clubs,
	payload
) VALUES (
	$1,$2,$3,$4,$5,$6
)`, s.table)

	args := []any{
		rec.RunID,
		rec.CrawledAt,
		rec.TotalClubs,
		rec.Succeeded,
		rec.Failed,
		payload,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert crawl record: %w", err)
	}
	return nil
}

// Latest returns the most recently crawled record, if any.
func (s *RecordStore) Latest(ctx context.Context) (crawl.CrawlRecord, bool, error) {
	if s == nil || s.pool == nil {
		return crawl.CrawlRecord{}, false, fmt.Errorf("record store is not configured")
	}
	query := fmt.Sprintf(`SELECT payload FROM %s ORDER BY crawled_at DESC LIMIT 1`, s.table)

	var payload []byte
	if err := s.pool.QueryRow(ctx, query).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return crawl.CrawlRecord{}, false, nil
		}
		return crawl.CrawlRecord{}, false, fmt.Errorf("select latest crawl record: %w", err)
	}
	var rec crawl.CrawlRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return crawl.CrawlRecord{}, false, fmt.Errorf("decode crawl record: %w", err)
	}
	return rec, true, nil
}

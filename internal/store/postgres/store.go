// Package postgres keeps run reports in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/bulkimport/internal/config"
	"github.com/JonMunkholm/bulkimport/internal/core"
)

// DBTX is the subset of pgx used by the store.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS run_reports (
	run_id      TEXT PRIMARY KEY,
	pipeline    TEXT NOT NULL,
	file_name   TEXT NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	abandoned   BOOLEAN NOT NULL DEFAULT FALSE,
	total_value TEXT NOT NULL DEFAULT '',
	counts      JSONB NOT NULL,
	report      JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS run_reports_pipeline_finished_idx
	ON run_reports (pipeline, finished_at DESC);
`

// ReportStore implements core.ReportStore.
type ReportStore struct {
	db DBTX
}

var _ core.ReportStore = (*ReportStore)(nil)

// NewReportStore wraps db. Call EnsureSchema once before use.
func NewReportStore(db DBTX) *ReportStore {
	return &ReportStore{db: db}
}

// PoolConfig builds a pool configuration from the database settings.
func PoolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	return poolConfig, nil
}

// Connect opens and pings a pool.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the reports table if it does not exist.
func (s *ReportStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create run_reports: %w", err)
	}
	return nil
}

// SaveReport inserts or replaces the report for r.RunID.
func (s *ReportStore) SaveReport(ctx context.Context, r *core.RunReport) error {
	report, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	counts, err := json.Marshal(r.Counts)
	if err != nil {
		return fmt.Errorf("encode counts: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO run_reports (run_id, pipeline, file_name, finished_at, abandoned, total_value, counts, report)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			abandoned   = EXCLUDED.abandoned,
			total_value = EXCLUDED.total_value,
			counts      = EXCLUDED.counts,
			report      = EXCLUDED.report`,
		r.RunID, r.Pipeline, r.FileName, r.FinishedAt, r.Abandoned, r.TotalValue, string(counts), string(report),
	)
	if err != nil {
		return fmt.Errorf("save report %s: %w", r.RunID, err)
	}
	return nil
}

// GetReport loads a report by run id.
func (s *ReportStore) GetReport(ctx context.Context, runID string) (*core.RunReport, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, `SELECT report FROM run_reports WHERE run_id = $1`, runID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", runID, err)
	}

	var r core.RunReport
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", runID, err)
	}
	return &r, nil
}

// ListReports returns newest first, optionally filtered by pipeline.
func (s *ReportStore) ListReports(ctx context.Context, pipeline string, limit int) ([]core.HistoryEntry, error) {
	if limit <= 0 {
		limit = core.DefaultHistoryLimit
	}

	rows, err := s.db.Query(ctx, `
		SELECT run_id, pipeline, file_name, finished_at, abandoned, total_value, counts
		FROM run_reports
		WHERE $1::text = '' OR pipeline = $1
		ORDER BY finished_at DESC
		LIMIT $2`, pipeline, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	entries := []core.HistoryEntry{}
	for rows.Next() {
		var e core.HistoryEntry
		var counts []byte
		if err := rows.Scan(&e.RunID, &e.Pipeline, &e.FileName, &e.FinishedAt, &e.Abandoned, &e.TotalValue, &counts); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		if err := json.Unmarshal(counts, &e.Counts); err != nil {
			return nil, fmt.Errorf("decode counts for %s: %w", e.RunID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return entries, nil
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS action_logs (
	id TEXT PRIMARY KEY,
	module TEXT NOT NULL,
	action_type TEXT NOT NULL,
	automation_level TEXT NOT NULL,
	input JSONB NOT NULL DEFAULT '{}'::jsonb,
	output JSONB,
	human_decision TEXT NOT NULL DEFAULT 'pending',
	modified_content TEXT,
	decided_by TEXT,
	tokens_used INTEGER NOT NULL DEFAULT 0,
	latency_ms BIGINT NOT NULL DEFAULT 0,
	provider TEXT,
	model TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	responded_at TIMESTAMPTZ,
	decided_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_action_logs_module_type ON action_logs(module, action_type);
CREATE INDEX IF NOT EXISTS idx_action_logs_decision ON action_logs(human_decision);
CREATE INDEX IF NOT EXISTS idx_action_logs_created_at ON action_logs(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

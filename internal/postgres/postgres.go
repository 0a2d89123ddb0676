package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

/* Shared pgx pool construction and schema for the durable stores
 * workflow/postgres, webhook/postgres, job/postgres and scheduler/postgres all accept the same pool
 */

// NewPool opens a pgx pool and pings it
func NewPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	cfg.MaxConns = 25
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return pool, nil
}

// Migrate creates every table the stores need; safe to run on each start
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Schema is the DDL for all stores
const Schema = `
CREATE TABLE IF NOT EXISTS workflows (
	id TEXT NOT NULL,
	version INTEGER NOT NULL,
	tenant_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	nodes JSONB NOT NULL,
	edges JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (id, version)
);

CREATE TABLE IF NOT EXISTS workflow_status (
	workflow_id TEXT PRIMARY KEY,
	status TEXT NOT NULL DEFAULT 'active'
);

CREATE TABLE IF NOT EXISTS executions (
	id TEXT PRIMARY KEY,
	workflow_id TEXT NOT NULL,
	workflow_version INTEGER NOT NULL,
	tenant_id TEXT NOT NULL,
	status TEXT NOT NULL,
	start_node_id TEXT NOT NULL,
	start_job_id TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ NOT NULL,
	ended_at TIMESTAMPTZ
);
ALTER TABLE executions ADD COLUMN IF NOT EXISTS start_job_id TEXT NOT NULL DEFAULT '';

CREATE TABLE IF NOT EXISTS execution_jobs (
	execution_id TEXT NOT NULL REFERENCES executions (id) ON DELETE CASCADE,
	job_id TEXT NOT NULL,
	settled BOOLEAN NOT NULL DEFAULT false,
	PRIMARY KEY (execution_id, job_id)
);

CREATE TABLE IF NOT EXISTS node_executions (
	id TEXT PRIMARY KEY,
	execution_id TEXT NOT NULL,
	node_id TEXT NOT NULL,
	node_type TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	attempt INTEGER NOT NULL DEFAULT 0,
	input JSONB,
	output JSONB,
	error TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	settled BOOLEAN NOT NULL DEFAULT false
);
CREATE INDEX IF NOT EXISTS node_executions_execution_idx ON node_executions (execution_id);

CREATE TABLE IF NOT EXISTS webhook_registrations (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	provider TEXT NOT NULL,
	workflow_id TEXT NOT NULL,
	node_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	last_triggered_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS webhook_events (
	job_id TEXT PRIMARY KEY,
	queue TEXT NOT NULL,
	workflow_id TEXT NOT NULL,
	tenant_id TEXT NOT NULL,
	event_type TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS webhook_events_tenant_idx ON webhook_events (tenant_id, workflow_id);

CREATE TABLE IF NOT EXISTS scheduled_events (
	id TEXT PRIMARY KEY,
	workflow_id TEXT NOT NULL,
	node_id TEXT NOT NULL,
	tenant_id TEXT NOT NULL,
	schedule TEXT NOT NULL,
	timezone TEXT NOT NULL DEFAULT '',
	input JSONB,
	status TEXT NOT NULL DEFAULT 'active',
	error TEXT NOT NULL DEFAULT '',
	last_run_at TIMESTAMPTZ,
	next_run_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS scheduled_events_due_idx ON scheduled_events (status, next_run_at);
`

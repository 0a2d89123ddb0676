package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marcelsud/webhook-flow/workflow"
)

/* PostgreSQL implementation of workflow.Repository
 * Definitions are append-only rows keyed by (id, version); status lives in workflow_status
 * Nodes, edges, inputs and outputs are stored as JSONB
 */
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a repository on an existing pool
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const definitionColumns = `w.id, w.version, w.tenant_id, w.name, w.nodes, w.edges, w.created_at, COALESCE(s.status, 'active')`

func (r *Repository) GetWorkflow(ctx context.Context, id string) (workflow.Definition, error) {
	query := `SELECT ` + definitionColumns + `
		FROM workflows w LEFT JOIN workflow_status s ON s.workflow_id = w.id
		WHERE w.id = $1 ORDER BY w.version DESC LIMIT 1`

	def, err := scanDefinition(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return workflow.Definition{}, fmt.Errorf("workflow %s: %w", id, workflow.ErrNotFound)
	}
	if err != nil {
		return workflow.Definition{}, fmt.Errorf("selecting workflow: %w", err)
	}
	return def, nil
}

func (r *Repository) GetWorkflowVersion(ctx context.Context, id string, version int) (workflow.Definition, error) {
	query := `SELECT ` + definitionColumns + `
		FROM workflows w LEFT JOIN workflow_status s ON s.workflow_id = w.id
		WHERE w.id = $1 AND w.version = $2`

	def, err := scanDefinition(r.db.QueryRow(ctx, query, id, version))
	if errors.Is(err, pgx.ErrNoRows) {
		return workflow.Definition{}, fmt.Errorf("workflow %s version %d: %w", id, version, workflow.ErrNotFound)
	}
	if err != nil {
		return workflow.Definition{}, fmt.Errorf("selecting workflow version: %w", err)
	}
	return def, nil
}

func scanDefinition(row pgx.Row) (workflow.Definition, error) {
	var (
		def          workflow.Definition
		nodes, edges []byte
		status       string
	)
	if err := row.Scan(&def.ID, &def.Version, &def.TenantID, &def.Name, &nodes, &edges, &def.CreatedAt, &status); err != nil {
		return workflow.Definition{}, err
	}
	if err := json.Unmarshal(nodes, &def.Nodes); err != nil {
		return workflow.Definition{}, fmt.Errorf("unmarshaling nodes: %w", err)
	}
	if err := json.Unmarshal(edges, &def.Edges); err != nil {
		return workflow.Definition{}, fmt.Errorf("unmarshaling edges: %w", err)
	}
	def.Status = workflow.NewDefinitionStatus(status)
	return def, nil
}

// SaveWorkflow serializes concurrent saves of the same id with an advisory lock
func (r *Repository) SaveWorkflow(ctx context.Context, def workflow.Definition) (int, error) {
	if err := def.Validate(); err != nil {
		return 0, fmt.Errorf("validating workflow: %w", err)
	}
	nodes, err := json.Marshal(def.Nodes)
	if err != nil {
		return 0, fmt.Errorf("marshaling nodes: %w", err)
	}
	edges, err := json.Marshal(def.Edges)
	if err != nil {
		return 0, fmt.Errorf("marshaling edges: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, def.ID); err != nil {
		return 0, fmt.Errorf("locking workflow: %w", err)
	}
	var version int
	err = tx.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) + 1 FROM workflows WHERE id = $1`, def.ID).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("computing next version: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO workflows (id, version, tenant_id, name, nodes, edges)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		def.ID, version, def.TenantID, def.Name, nodes, edges)
	if err != nil {
		return 0, fmt.Errorf("inserting workflow: %w", err)
	}

	// an unset status keeps the stored one, new workflows start active
	onConflict := `DO UPDATE SET status = EXCLUDED.status`
	status := def.Status
	if status == 0 {
		status = workflow.Active
		onConflict = `DO NOTHING`
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO workflow_status (workflow_id, status) VALUES ($1, $2)
		ON CONFLICT (workflow_id) `+onConflict,
		def.ID, status.String())
	if err != nil {
		return 0, fmt.Errorf("storing workflow status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing workflow: %w", err)
	}
	return version, nil
}

func (r *Repository) SetWorkflowStatus(ctx context.Context, id string, status workflow.DefinitionStatus) error {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO workflow_status (workflow_id, status)
		SELECT $1, $2 WHERE EXISTS (SELECT 1 FROM workflows WHERE id = $1)
		ON CONFLICT (workflow_id) DO UPDATE SET status = EXCLUDED.status`,
		id, status.String())
	if err != nil {
		return fmt.Errorf("updating workflow status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("workflow %s: %w", id, workflow.ErrNotFound)
	}
	return nil
}

// CreateExecution inserts the execution and tracks its start job in one transaction
func (r *Repository) CreateExecution(ctx context.Context, exec workflow.Execution) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO executions (id, workflow_id, workflow_version, tenant_id, status, start_node_id, start_job_id, source, error, started_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO NOTHING`,
			exec.ID, exec.WorkflowID, exec.WorkflowVersion, exec.TenantID, exec.Status.String(),
			exec.StartNodeID, exec.StartJobID, exec.Source, exec.Error, exec.StartedAt)
		if err != nil {
			return fmt.Errorf("inserting execution: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("execution %s: %w", exec.ID, workflow.ErrDuplicate)
		}
		if exec.StartJobID == "" {
			return nil
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO execution_jobs (execution_id, job_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			exec.ID, exec.StartJobID)
		if err != nil {
			return fmt.Errorf("tracking start job: %w", err)
		}
		return nil
	})
}

func (r *Repository) GetExecution(ctx context.Context, id string) (workflow.Execution, error) {
	var (
		exec    workflow.Execution
		status  string
		endedAt *time.Time
	)
	err := r.db.QueryRow(ctx, `
		SELECT e.id, e.workflow_id, e.workflow_version, e.tenant_id, e.status, e.start_node_id, e.start_job_id, e.source,
			(SELECT count(*) FROM execution_jobs j WHERE j.execution_id = e.id AND NOT j.settled),
			e.error, e.started_at, e.ended_at
		FROM executions e WHERE e.id = $1`, id).Scan(
		&exec.ID, &exec.WorkflowID, &exec.WorkflowVersion, &exec.TenantID, &status,
		&exec.StartNodeID, &exec.StartJobID, &exec.Source, &exec.Pending, &exec.Error, &exec.StartedAt, &endedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return workflow.Execution{}, fmt.Errorf("execution %s: %w", id, workflow.ErrNotFound)
	}
	if err != nil {
		return workflow.Execution{}, fmt.Errorf("selecting execution: %w", err)
	}
	exec.Status = workflow.NewExecutionStatus(status)
	if endedAt != nil {
		exec.EndedAt = *endedAt
	}
	return exec, nil
}

/* TrackJobs and SettleJob lock the execution row first
 * Concurrent siblings settling at once then see each other's writes when counting
 */
func (r *Repository) TrackJobs(ctx context.Context, executionID string, jobIDs ...string) (int, error) {
	var pending int
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := lockExecution(ctx, tx, executionID); err != nil {
			return err
		}
		if len(jobIDs) > 0 {
			_, err := tx.Exec(ctx, `
				INSERT INTO execution_jobs (execution_id, job_id)
				SELECT $1, unnest($2::text[])
				ON CONFLICT (execution_id, job_id) DO NOTHING`, executionID, jobIDs)
			if err != nil {
				return fmt.Errorf("tracking jobs: %w", err)
			}
		}
		var err error
		pending, err = countPending(ctx, tx, executionID)
		return err
	})
	return pending, err
}

func (r *Repository) SettleJob(ctx context.Context, executionID, jobID string) (int, error) {
	var pending int
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := lockExecution(ctx, tx, executionID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO execution_jobs (execution_id, job_id, settled) VALUES ($1, $2, true)
			ON CONFLICT (execution_id, job_id) DO UPDATE SET settled = true`, executionID, jobID)
		if err != nil {
			return fmt.Errorf("settling job: %w", err)
		}
		pending, err = countPending(ctx, tx, executionID)
		return err
	})
	return pending, err
}

func lockExecution(ctx context.Context, tx pgx.Tx, id string) error {
	var one int
	err := tx.QueryRow(ctx, `SELECT 1 FROM executions WHERE id = $1 FOR UPDATE`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("execution %s: %w", id, workflow.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("locking execution: %w", err)
	}
	return nil
}

func countPending(ctx context.Context, tx pgx.Tx, id string) (int, error) {
	var pending int
	err := tx.QueryRow(ctx,
		`SELECT count(*) FROM execution_jobs WHERE execution_id = $1 AND NOT settled`, id).Scan(&pending)
	if err != nil {
		return 0, fmt.Errorf("counting pending jobs: %w", err)
	}
	return pending, nil
}

// FinishExecution only moves a running execution, so the first terminal status wins
func (r *Repository) FinishExecution(ctx context.Context, id string, status workflow.ExecutionStatus, errMsg string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE executions SET status = $2, error = $3, ended_at = $4
		WHERE id = $1 AND status = 'running'`,
		id, status.String(), errMsg, at)
	if err != nil {
		return fmt.Errorf("finishing execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetExecution(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) SaveNodeExecution(ctx context.Context, rec workflow.NodeExecution) error {
	input, err := marshalNullable(rec.Input)
	if err != nil {
		return fmt.Errorf("marshaling input: %w", err)
	}
	output, err := marshalNullable(rec.Output)
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	startedAt := rec.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	var finishedAt *time.Time
	if !rec.FinishedAt.IsZero() {
		finishedAt = &rec.FinishedAt
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO node_executions (id, execution_id, node_id, node_type, status, attempt, input, output, error, started_at, finished_at, settled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			attempt = EXCLUDED.attempt,
			output = EXCLUDED.output,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at,
			settled = node_executions.settled OR EXCLUDED.settled`,
		rec.ID, rec.ExecutionID, rec.NodeID, rec.NodeType, rec.Status.String(), rec.Attempt,
		input, output, rec.Error, startedAt, finishedAt, rec.Settled)
	if err != nil {
		return fmt.Errorf("upserting node execution: %w", err)
	}
	return nil
}

const nodeExecutionColumns = `id, execution_id, node_id, node_type, status, attempt, input, output, error, started_at, finished_at, settled`

func (r *Repository) GetNodeExecution(ctx context.Context, id string) (workflow.NodeExecution, error) {
	rec, err := scanNodeExecution(r.db.QueryRow(ctx,
		`SELECT `+nodeExecutionColumns+` FROM node_executions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return workflow.NodeExecution{}, fmt.Errorf("node execution %s: %w", id, workflow.ErrNotFound)
	}
	if err != nil {
		return workflow.NodeExecution{}, fmt.Errorf("selecting node execution: %w", err)
	}
	return rec, nil
}

func (r *Repository) ListNodeExecutions(ctx context.Context, executionID string) ([]workflow.NodeExecution, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+nodeExecutionColumns+` FROM node_executions WHERE execution_id = $1 ORDER BY started_at, id`, executionID)
	if err != nil {
		return nil, fmt.Errorf("selecting node executions: %w", err)
	}
	defer rows.Close()

	var out []workflow.NodeExecution
	for rows.Next() {
		rec, err := scanNodeExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning node execution: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating node executions: %w", err)
	}
	return out, nil
}

func scanNodeExecution(row pgx.Row) (workflow.NodeExecution, error) {
	var (
		rec           workflow.NodeExecution
		status        string
		input, output []byte
		finishedAt    *time.Time
	)
	err := row.Scan(&rec.ID, &rec.ExecutionID, &rec.NodeID, &rec.NodeType, &status, &rec.Attempt,
		&input, &output, &rec.Error, &rec.StartedAt, &finishedAt, &rec.Settled)
	if err != nil {
		return workflow.NodeExecution{}, err
	}
	rec.Status = workflow.NewNodeStatus(status)
	if len(input) > 0 {
		if err := json.Unmarshal(input, &rec.Input); err != nil {
			return workflow.NodeExecution{}, fmt.Errorf("unmarshaling input: %w", err)
		}
	}
	if len(output) > 0 {
		if err := json.Unmarshal(output, &rec.Output); err != nil {
			return workflow.NodeExecution{}, fmt.Errorf("unmarshaling output: %w", err)
		}
	}
	if finishedAt != nil {
		rec.FinishedAt = *finishedAt
	}
	return rec, nil
}

func marshalNullable(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Close is a no-op; the pool is owned by the caller
func (r *Repository) Close(ctx context.Context) error {
	return nil
}

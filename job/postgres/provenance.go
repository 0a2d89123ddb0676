package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marcelsud/webhook-flow/job"
)

/* PostgreSQL implementation of job.ProvenanceStore backed by the webhook_events table
 * Rows are keyed by job id and only ever touched by the job they describe
 */
type ProvenanceStore struct {
	db *pgxpool.Pool
}

func NewProvenanceStore(db *pgxpool.Pool) *ProvenanceStore {
	return &ProvenanceStore{db: db}
}

// SaveProvenance keeps created_at of an existing row
func (s *ProvenanceStore) SaveProvenance(ctx context.Context, p job.Provenance) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO webhook_events (job_id, queue, workflow_id, tenant_id, event_type, status, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (job_id) DO UPDATE SET
			queue = EXCLUDED.queue,
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at`,
		p.JobID, p.Queue, p.WorkflowID, p.TenantID, p.EventType, p.Status, p.Error, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting provenance: %w", err)
	}
	return nil
}

func (s *ProvenanceStore) UpdateProvenanceStatus(ctx context.Context, jobID string, status string, errMsg string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE webhook_events SET status = $2, error = $3, updated_at = now() WHERE job_id = $1`,
		jobID, status, errMsg)
	if err != nil {
		return fmt.Errorf("updating provenance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", jobID, job.ErrNotFound)
	}
	return nil
}

func (s *ProvenanceStore) GetProvenance(ctx context.Context, jobID string) (job.Provenance, error) {
	var p job.Provenance
	err := s.db.QueryRow(ctx, `
		SELECT job_id, queue, workflow_id, tenant_id, event_type, status, error, created_at, updated_at
		FROM webhook_events WHERE job_id = $1`, jobID).Scan(
		&p.JobID, &p.Queue, &p.WorkflowID, &p.TenantID, &p.EventType, &p.Status, &p.Error, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return job.Provenance{}, fmt.Errorf("%s: %w", jobID, job.ErrNotFound)
	}
	if err != nil {
		return job.Provenance{}, fmt.Errorf("selecting provenance: %w", err)
	}
	return p, nil
}

// CountByTenant returns provenance rows per status for one tenant and workflow
func (s *ProvenanceStore) CountByTenant(ctx context.Context, tenantID, workflowID string) (map[string]int64, error) {
	rows, err := s.db.Query(ctx, `
		SELECT status, COUNT(*) FROM webhook_events
		WHERE tenant_id = $1 AND workflow_id = $2 GROUP BY status`, tenantID, workflowID)
	if err != nil {
		return nil, fmt.Errorf("counting provenance: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning provenance count: %w", err)
		}
		out[job.ParseProviderStatus(status).String()] += n
	}
	return out, rows.Err()
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marcelsud/webhook-flow/webhook"
)

// Repository stores registrations in the webhook_registrations table
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const selectRegistration = `
	SELECT id, tenant_id, provider, workflow_id, node_id, status, last_triggered_at, created_at
	FROM webhook_registrations`

func (r *Repository) GetRegistration(ctx context.Context, id string) (webhook.Registration, error) {
	reg, err := scanRegistration(r.db.QueryRow(ctx, selectRegistration+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return webhook.Registration{}, fmt.Errorf("%s: %w", id, webhook.ErrNotFound)
	}
	if err != nil {
		return webhook.Registration{}, fmt.Errorf("selecting registration: %w", err)
	}
	return reg, nil
}

func (r *Repository) ListRegistrations(ctx context.Context, tenantID string) ([]webhook.Registration, error) {
	rows, err := r.db.Query(ctx, selectRegistration+` WHERE tenant_id = $1 ORDER BY id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing registrations: %w", err)
	}
	defer rows.Close()

	var out []webhook.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning registration: %w", err)
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

func scanRegistration(row pgx.Row) (webhook.Registration, error) {
	var (
		reg       webhook.Registration
		status    string
		triggered *time.Time
	)
	err := row.Scan(&reg.ID, &reg.TenantID, &reg.Provider, &reg.WorkflowID, &reg.NodeID, &status, &triggered, &reg.CreatedAt)
	if err != nil {
		return webhook.Registration{}, err
	}
	reg.Status = webhook.NewRegistrationStatus(status)
	if triggered != nil {
		reg.LastTriggeredAt = *triggered
	}
	return reg, nil
}

func (r *Repository) SaveRegistration(ctx context.Context, reg webhook.Registration) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO webhook_registrations (id, tenant_id, provider, workflow_id, node_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			node_id = EXCLUDED.node_id,
			status = EXCLUDED.status`,
		reg.ID, reg.TenantID, reg.Provider, reg.WorkflowID, reg.NodeID, reg.Status.String(), reg.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting registration: %w", err)
	}
	return nil
}

func (r *Repository) UpdateLastTriggeredAt(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, `UPDATE webhook_registrations SET last_triggered_at = $2 WHERE id = $1`, id, at)
}

func (r *Repository) SetRegistrationStatus(ctx context.Context, id string, status webhook.RegistrationStatus) error {
	if err := status.Validate(); err != nil {
		return err
	}
	return r.update(ctx, `UPDATE webhook_registrations SET status = $2 WHERE id = $1`, id, status.String())
}

func (r *Repository) update(ctx context.Context, sql, id string, value any) error {
	tag, err := r.db.Exec(ctx, sql, id, value)
	if err != nil {
		return fmt.Errorf("updating registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", id, webhook.ErrNotFound)
	}
	return nil
}

func (r *Repository) DeactivateWorkflow(ctx context.Context, workflowID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE webhook_registrations SET status = 'inactive' WHERE workflow_id = $1`, workflowID)
	if err != nil {
		return fmt.Errorf("deactivating registrations: %w", err)
	}
	return nil
}

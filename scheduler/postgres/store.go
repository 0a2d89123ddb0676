package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marcelsud/webhook-flow/scheduler"
)

// Store keeps scheduled events in the scheduled_events table
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const selectEvent = `
	SELECT id, workflow_id, node_id, tenant_id, schedule, timezone, input, status, error,
		last_run_at, next_run_at, created_at
	FROM scheduled_events`

func (s *Store) Get(ctx context.Context, id string) (scheduler.Event, error) {
	ev, err := scanEvent(s.db.QueryRow(ctx, selectEvent+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return scheduler.Event{}, fmt.Errorf("%s: %w", id, scheduler.ErrNotFound)
	}
	if err != nil {
		return scheduler.Event{}, fmt.Errorf("selecting scheduled event: %w", err)
	}
	return ev, nil
}

func (s *Store) List(ctx context.Context, tenantID string) ([]scheduler.Event, error) {
	if tenantID == "" {
		return s.query(ctx, selectEvent+` ORDER BY created_at, id`)
	}
	return s.query(ctx, selectEvent+` WHERE tenant_id = $1 ORDER BY created_at, id`, tenantID)
}

func (s *Store) Due(ctx context.Context, now time.Time, limit int) ([]scheduler.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.query(ctx, selectEvent+`
		WHERE status = 'active' AND next_run_at IS NOT NULL AND next_run_at <= $1
		ORDER BY next_run_at, id LIMIT $2`, now, limit)
}

func (s *Store) Uninitialized(ctx context.Context) ([]scheduler.Event, error) {
	return s.query(ctx, selectEvent+` WHERE status = 'active' AND next_run_at IS NULL ORDER BY created_at, id`)
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]scheduler.Event, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting scheduled events: %w", err)
	}
	defer rows.Close()

	var out []scheduler.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning scheduled event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *Store) Save(ctx context.Context, ev scheduler.Event) error {
	var input []byte
	if ev.Input != nil {
		b, err := json.Marshal(ev.Input)
		if err != nil {
			return fmt.Errorf("marshaling input: %w", err)
		}
		input = b
	}
	status := ev.Status
	if status == 0 {
		status = scheduler.Active
	}
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO scheduled_events (id, workflow_id, node_id, tenant_id, schedule, timezone, input, status, error,
			last_run_at, next_run_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			workflow_id = EXCLUDED.workflow_id,
			node_id = EXCLUDED.node_id,
			schedule = EXCLUDED.schedule,
			timezone = EXCLUDED.timezone,
			input = EXCLUDED.input,
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			last_run_at = COALESCE(EXCLUDED.last_run_at, scheduled_events.last_run_at),
			next_run_at = COALESCE(EXCLUDED.next_run_at, scheduled_events.next_run_at)`,
		ev.ID, ev.WorkflowID, ev.NodeID, ev.TenantID, ev.Schedule, ev.Timezone, input, status.String(), ev.Error,
		nullTime(ev.LastRun), nullTime(ev.NextRun), createdAt)
	if err != nil {
		return fmt.Errorf("upserting scheduled event: %w", err)
	}
	return nil
}

// Claim is a conditional update, so two schedulers racing on the same row cannot both win
func (s *Store) Claim(ctx context.Context, id string, now, next time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE scheduled_events SET last_run_at = $2, next_run_at = $3
		WHERE id = $1 AND status = 'active' AND next_run_at IS NOT NULL AND next_run_at <= $2`,
		id, now, next)
	if err != nil {
		return false, fmt.Errorf("claiming scheduled event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) SetNextRun(ctx context.Context, id string, next time.Time) error {
	return s.exec(ctx, id, `UPDATE scheduled_events SET next_run_at = $2 WHERE id = $1`, id, next)
}

func (s *Store) SetStatus(ctx context.Context, id string, status scheduler.Status, errMsg string) error {
	return s.exec(ctx, id, `UPDATE scheduled_events SET status = $2, error = $3 WHERE id = $1`, id, status.String(), errMsg)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.exec(ctx, id, `DELETE FROM scheduled_events WHERE id = $1`, id)
}

func (s *Store) exec(ctx context.Context, id, sql string, args ...any) error {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("updating scheduled event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", id, scheduler.ErrNotFound)
	}
	return nil
}

func scanEvent(row pgx.Row) (scheduler.Event, error) {
	var (
		ev               scheduler.Event
		input            []byte
		status           string
		lastRun, nextRun *time.Time
	)
	err := row.Scan(&ev.ID, &ev.WorkflowID, &ev.NodeID, &ev.TenantID, &ev.Schedule, &ev.Timezone,
		&input, &status, &ev.Error, &lastRun, &nextRun, &ev.CreatedAt)
	if err != nil {
		return scheduler.Event{}, err
	}
	ev.Status = scheduler.NewStatus(status)
	if len(input) > 0 {
		if err := json.Unmarshal(input, &ev.Input); err != nil {
			return scheduler.Event{}, fmt.Errorf("unmarshaling input: %w", err)
		}
	}
	if lastRun != nil {
		ev.LastRun = lastRun.UTC()
	}
	if nextRun != nil {
		ev.NextRun = nextRun.UTC()
	}
	return ev, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

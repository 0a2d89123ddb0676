// Package scheduler fires workflow executions from cron-style scheduled events.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("scheduled event not found")

/* Event is a recurring trigger of one workflow node
 * LastRun and NextRun are written by the scheduler only; a zero NextRun means not yet computed
 */
type Event struct {
	ID         string
	WorkflowID string
	NodeID     string
	TenantID   string
	Schedule   string
	Timezone   string
	Input      map[string]any
	Status     Status
	Error      string
	LastRun    time.Time
	NextRun    time.Time
	CreatedAt  time.Time
}

// NewEvent builds an active event with a fresh id; the schedule is validated
func NewEvent(tenantID, workflowID, nodeID, schedule, timezone string, input map[string]any) (Event, error) {
	ev := Event{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		NodeID:     nodeID,
		TenantID:   tenantID,
		Schedule:   strings.TrimSpace(schedule),
		Timezone:   strings.TrimSpace(timezone),
		Input:      input,
		Status:     Active,
		CreatedAt:  time.Now().UTC(),
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func (e Event) Validate() error {
	if strings.TrimSpace(e.TenantID) == "" {
		return fmt.Errorf("tenant id is required")
	}
	if strings.TrimSpace(e.WorkflowID) == "" {
		return fmt.Errorf("workflow id is required")
	}
	if _, err := ParseSchedule(e.Schedule, e.Timezone); err != nil {
		return err
	}
	return nil
}

// Status of a scheduled event; only Active events fire
type Status int

const (
	Active Status = iota + 1
	Paused
	Error
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Paused:
		return "paused"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// NewStatus creates a Status from a string
func NewStatus(s string) Status {
	switch s {
	case "paused":
		return Paused
	case "error":
		return Error
	default:
		return Active
	}
}

// Reader provides read access to scheduled events
type Reader interface {
	Get(ctx context.Context, id string) (Event, error)
	// List returns the events of a tenant, or of every tenant when tenantID is empty
	List(ctx context.Context, tenantID string) ([]Event, error)
	// Due returns active events whose next run is at or before now, oldest first
	Due(ctx context.Context, now time.Time, limit int) ([]Event, error)
	// Uninitialized returns active events that have no next run yet
	Uninitialized(ctx context.Context) ([]Event, error)
}

// Writer changes scheduled events
type Writer interface {
	// Save upserts the definition fields; LastRun/NextRun of an existing event are kept unless set
	Save(ctx context.Context, ev Event) error
	/* Claim moves the event to its next run if it is still active and due at now
	 * false means another tick or instance claimed it first
	 */
	Claim(ctx context.Context, id string, now, next time.Time) (bool, error)
	SetNextRun(ctx context.Context, id string, next time.Time) error
	SetStatus(ctx context.Context, id string, status Status, errMsg string) error
	Delete(ctx context.Context, id string) error
}

// Store is the scheduled events storage contract
type Store interface {
	Reader
	Writer
}

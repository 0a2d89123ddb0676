package job

import (
	"errors"
	"time"
)

// ErrNotFound is returned when neither the live queue nor the provenance store knows a job id
var ErrNotFound = errors.New("job not found")

/* Job is one queued node execution request
 * Attempt counts deliveries to a worker, so it is 1 while the first attempt runs
 */
type Job struct {
	ID        string
	Queue     string
	Payload   Payload
	Options   Options
	Attempt   int
	Status    Status
	LastError string
	ProcessAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Payload is what a worker needs to run one node of one execution
type Payload struct {
	NodeID          string            `json:"node_id"`
	NodeType        string            `json:"node_type"`
	WorkflowID      string            `json:"workflow_id"`
	WorkflowVersion int               `json:"workflow_version"`
	ExecutionID     string            `json:"execution_id"`
	TenantID        string            `json:"tenant_id"`
	ParentNodeID    string            `json:"parent_node_id,omitempty"`
	Hop             int               `json:"hop"`
	Input           map[string]any    `json:"input,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Attempts returns the configured attempts, falling back to the default
func (j Job) Attempts() int {
	if j.Options.MaxAttempts < 1 {
		return DefaultMaxAttempts
	}
	return j.Options.MaxAttempts
}

// Exhausted reports whether the current attempt is the last one allowed
func (j Job) Exhausted() bool {
	return j.Attempt >= j.Attempts()
}

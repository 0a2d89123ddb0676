// Package trigger starts executions and dispatches node jobs.
// Webhooks, the scheduler and the workers all enqueue through Service, so there is one dispatch path.
package trigger

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrWorkflowDisabled = errors.New("workflow disabled")
	ErrTenantMismatch   = errors.New("workflow belongs to another tenant")
	ErrNodeNotFound     = errors.New("start node not found")
)

// Source names what started an execution
type Source string

const (
	SourceWebhook  Source = "webhook"
	SourceSchedule Source = "schedule"
	SourceManual   Source = "manual"
)

// Request asks for a new execution
type Request struct {
	// ExecutionID is optional; a second Start with the same id is reported as Duplicate
	ExecutionID string
	TenantID    string
	WorkflowID  string
	// NodeID defaults to the first trigger node of the workflow
	NodeID    string
	Source    Source
	EventType string
	Input     map[string]any
	Metadata  map[string]string
}

// Result describes the started execution
type Result struct {
	ExecutionID string
	JobID       string
	Queue       string
	Duplicate   bool
}

// NodeRequest asks for one node job of an existing execution
type NodeRequest struct {
	ExecutionID     string
	TenantID        string
	WorkflowID      string
	WorkflowVersion int
	ParentJobID     string
	ParentNodeID    string
	Hop             int
	EventType       string
	Input           map[string]any
	Metadata        map[string]string
	Delay           time.Duration
}

var jobNamespace = uuid.MustParse("c4e2b8f1-2d6a-4b39-8f0e-71a5d3c9e6b2")

/* NodeJobID derives the job id of a node inside an execution
 * The same predecessor job dispatching the same node always yields the same id,
 * so a retried predecessor cannot enqueue its successors twice
 */
func NodeJobID(executionID, parentJobID, nodeID string) string {
	return uuid.NewSHA1(jobNamespace, []byte(executionID+"/"+parentJobID+"/"+nodeID)).String()
}

package workflow

import "time"

/* Execution is one end-to-end run of a workflow started by a single trigger
 * Pending counts tracked node jobs not yet settled; the run completes when it reaches zero
 */
type Execution struct {
	ID              string
	WorkflowID      string
	WorkflowVersion int
	TenantID        string
	Status          ExecutionStatus
	StartNodeID     string
	StartJobID      string
	Source          string // webhook, schedule, manual
	Pending         int
	Error           string
	StartedAt       time.Time
	EndedAt         time.Time
}

// ExecutionStatus follows the lifecycle: Running -> Completed/Failed
type ExecutionStatus int

const (
	ExecutionRunning ExecutionStatus = iota + 1
	ExecutionCompleted
	ExecutionFailed
)

// String returns the string representation of the status
func (s ExecutionStatus) String() string {
	switch s {
	case ExecutionRunning:
		return "running"
	case ExecutionCompleted:
		return "completed"
	case ExecutionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// NewExecutionStatus creates an ExecutionStatus from a string
func NewExecutionStatus(s string) ExecutionStatus {
	switch s {
	case "completed":
		return ExecutionCompleted
	case "failed":
		return ExecutionFailed
	default:
		return ExecutionRunning
	}
}

// IsFinal returns true if the status is a terminal state
func (s ExecutionStatus) IsFinal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed
}

/* NodeExecution records one node invocation inside an execution
 * ID is the job id, so every retry of the same job updates the same record
 */
type NodeExecution struct {
	ID          string
	ExecutionID string
	NodeID      string
	NodeType    string
	Status      NodeStatus
	Attempt     int
	Input       map[string]any
	Output      map[string]any
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
	// Settled is set once the node's successors were dispatched and its job settled
	Settled bool
}

// NodeStatus follows the lifecycle: Pending -> Running -> Completed/Failed
type NodeStatus int

const (
	NodePending NodeStatus = iota + 1
	NodeRunning
	NodeCompleted
	NodeFailed
)

// String returns the string representation of the status
func (s NodeStatus) String() string {
	switch s {
	case NodePending:
		return "pending"
	case NodeRunning:
		return "running"
	case NodeCompleted:
		return "completed"
	case NodeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// NewNodeStatus creates a NodeStatus from a string
func NewNodeStatus(s string) NodeStatus {
	switch s {
	case "running":
		return NodeRunning
	case "completed":
		return NodeCompleted
	case "failed":
		return NodeFailed
	default:
		return NodePending
	}
}

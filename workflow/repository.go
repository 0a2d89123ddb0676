package workflow

import (
	"context"
	"time"
)

// Reader provides read access to workflow definitions
type Reader interface {
	// GetWorkflow returns the latest version of a workflow
	GetWorkflow(ctx context.Context, id string) (Definition, error)
	// GetWorkflowVersion returns a pinned version, used by workers for in-flight executions
	GetWorkflowVersion(ctx context.Context, id string, version int) (Definition, error)
}

// Writer stores workflow definitions
type Writer interface {
	/* SaveWorkflow stores the definition as a new version and returns that version
	 * Existing versions are never modified
	 */
	SaveWorkflow(ctx context.Context, def Definition) (int, error)
	SetWorkflowStatus(ctx context.Context, id string, status DefinitionStatus) error
}

// ExecutionStore persists executions and their node records
type ExecutionStore interface {
	// CreateExecution stores the execution and tracks its StartJobID
	CreateExecution(ctx context.Context, exec Execution) error
	GetExecution(ctx context.Context, id string) (Execution, error)
	/* TrackJobs records node jobs the execution waits on and returns the pending count
	 * Ids already tracked, settled or not, are left as they are
	 */
	TrackJobs(ctx context.Context, executionID string, jobIDs ...string) (int, error)
	/* SettleJob marks a tracked job as done and returns the jobs still pending
	 * Settling the same job again changes nothing, so redeliveries never count twice
	 */
	SettleJob(ctx context.Context, executionID, jobID string) (int, error)
	FinishExecution(ctx context.Context, id string, status ExecutionStatus, errMsg string, at time.Time) error
	// SaveNodeExecution upserts by NodeExecution.ID
	SaveNodeExecution(ctx context.Context, rec NodeExecution) error
	GetNodeExecution(ctx context.Context, id string) (NodeExecution, error)
	ListNodeExecutions(ctx context.Context, executionID string) ([]NodeExecution, error)
}

// Repository combines definition and execution storage
type Repository interface {
	Reader
	Writer
	ExecutionStore
	Close(ctx context.Context) error
}

package worker

import "context"

// Failure describes a conversational node that failed for good
type Failure struct {
	ExecutionID string
	WorkflowID  string
	TenantID    string
	NodeID      string
	NodeType    string
	Input       map[string]any
	Metadata    map[string]string
	Error       string
}

/* Notifier tells the end user that their conversation hit a failure
 * Calls are best effort: errors are logged and never change the job outcome
 */
type Notifier interface {
	Notify(ctx context.Context, f Failure) error
}

package worker

import "time"

// EventKind names a job or execution lifecycle transition
type EventKind int

const (
	JobStarted EventKind = iota + 1
	JobCompleted
	JobRetrying
	JobFailed
	NodeDispatched
	ExecutionFinished
)

// String returns the string representation of the kind
func (k EventKind) String() string {
	switch k {
	case JobStarted:
		return "started"
	case JobCompleted:
		return "completed"
	case JobRetrying:
		return "retrying"
	case JobFailed:
		return "failed"
	case NodeDispatched:
		return "dispatched"
	case ExecutionFinished:
		return "execution_finished"
	default:
		return "unknown"
	}
}

/* Event is published by workers for the monitor
 * For NodeDispatched, Queue/JobID/NodeID describe the successor that was enqueued
 */
type Event struct {
	Kind        EventKind
	Queue       string
	JobID       string
	ExecutionID string
	WorkflowID  string
	TenantID    string
	NodeID      string
	NodeType    string
	Attempt     int
	Status      string
	Error       string
	Duration    time.Duration
	At          time.Time
}

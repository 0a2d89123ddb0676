package job

import (
	"fmt"
	"strings"
)

/* Status is the canonical job state exposed by GetJobStatus
 * Follows the lifecycle: Waiting/Delayed -> Active -> Completed/Failed, with Delayed between retries
 */
type Status int

const (
	Waiting Status = iota + 1
	Active
	Completed
	Failed
	Delayed
	Paused
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Active:
		return "active"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Delayed:
		return "delayed"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// NewStatus creates a Status from its canonical string
func NewStatus(str string) Status {
	switch str {
	case "active":
		return Active
	case "completed":
		return Completed
	case "failed":
		return Failed
	case "delayed":
		return Delayed
	case "paused":
		return Paused
	default:
		return Waiting
	}
}

// Validate checks if the status is valid
func (s Status) Validate() error {
	if s < Waiting || s > Paused {
		return fmt.Errorf("invalid status: %d", s)
	}
	return nil
}

// IsFinal returns true if the status is a terminal state
func (s Status) IsFinal() bool {
	return s == Completed || s == Failed
}

// providerStatuses maps vocabulary found in provenance rows and queue backends to canonical statuses
var providerStatuses = map[string]Status{
	"waiting":     Waiting,
	"wait":        Waiting,
	"pending":     Waiting,
	"queued":      Waiting,
	"received":    Waiting,
	"active":      Active,
	"processing":  Active,
	"running":     Active,
	"in_progress": Active,
	"completed":   Completed,
	"complete":    Completed,
	"success":     Completed,
	"succeeded":   Completed,
	"done":        Completed,
	"failed":      Failed,
	"failure":     Failed,
	"error":       Failed,
	"delayed":     Delayed,
	"scheduled":   Delayed,
	"retrying":    Delayed,
	"paused":      Paused,
}

// ParseProviderStatus translates a provider specific status word; unknown words map to Waiting
func ParseProviderStatus(s string) Status {
	if st, ok := providerStatuses[strings.ToLower(strings.TrimSpace(s))]; ok {
		return st
	}
	return Waiting
}

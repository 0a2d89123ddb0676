package job

import (
	"fmt"
	"time"
)

const (
	DefaultMaxAttempts  = 3
	DefaultBackoffDelay = 5 * time.Second
	maxBackoff          = time.Hour
)

/* Options control retry policy, scheduling and provenance for a single job
 * WorkflowID and TenantID together enable the durable provenance mirror
 */
type Options struct {
	JobID       string        `json:"job_id,omitempty"`
	MaxAttempts int           `json:"max_attempts"`
	Backoff     Backoff       `json:"backoff"`
	Delay       time.Duration `json:"delay,omitempty"`
	WorkflowID  string        `json:"workflow_id,omitempty"`
	TenantID    string        `json:"tenant_id,omitempty"`
	EventType   string        `json:"event_type,omitempty"`
}

// WithDefaults fills in the retry defaults
func (o Options) WithDefaults() Options {
	if o.MaxAttempts < 1 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Backoff.Strategy == "" {
		o.Backoff.Strategy = Exponential
	}
	if o.Backoff.Delay <= 0 {
		o.Backoff.Delay = DefaultBackoffDelay
	}
	return o
}

// TracksProvenance reports whether the job should be mirrored into the provenance store
func (o Options) TracksProvenance() bool {
	return o.WorkflowID != "" && o.TenantID != ""
}

// BackoffStrategy names how the retry delay grows
type BackoffStrategy string

const (
	Exponential BackoffStrategy = "exponential"
	Fixed       BackoffStrategy = "fixed"
	Linear      BackoffStrategy = "linear"
)

// ParseBackoffStrategy accepts the strategy names used in queues.yaml
func ParseBackoffStrategy(s string) (BackoffStrategy, error) {
	switch BackoffStrategy(s) {
	case "":
		return Exponential, nil
	case Exponential, Fixed, Linear:
		return BackoffStrategy(s), nil
	default:
		return "", fmt.Errorf("unknown backoff strategy: %s", s)
	}
}

// Backoff is the retry delay policy
type Backoff struct {
	Strategy BackoffStrategy `json:"strategy"`
	Delay    time.Duration   `json:"delay"`
}

/* Next returns the wait before retrying after the given failed attempt (1-based)
 * exponential: delay * 2^(attempt-1), linear: delay * attempt, fixed: delay; capped at one hour
 */
func (b Backoff) Next(attempt int) time.Duration {
	base := b.Delay
	if base <= 0 {
		base = DefaultBackoffDelay
	}
	if attempt < 1 {
		attempt = 1
	}
	var d time.Duration
	switch b.Strategy {
	case Fixed:
		d = base
	case Linear:
		if base > maxBackoff/time.Duration(attempt) {
			return maxBackoff
		}
		d = base * time.Duration(attempt)
	default:
		// checked before shifting: an overflowed shift can wrap to a small positive value
		shift := attempt - 1
		if shift > 20 || base > maxBackoff>>shift {
			return maxBackoff
		}
		d = base << shift
	}
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}

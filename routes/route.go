package routes

import (
	"fmt"
	"strings"
	"time"

	"github.com/marcelsud/webhook-flow/config"
	"github.com/marcelsud/webhook-flow/job"
	"github.com/marcelsud/webhook-flow/workflow"
)

/* Queue is the execution policy of one lane
 * Concurrency bounds in-flight jobs per worker, Timeout bounds a single attempt
 */
type Queue struct {
	Name        string
	Concurrency int
	MaxAttempts int
	Backoff     job.Backoff
	Timeout     time.Duration
	NodeTypes   []workflow.NodeType // extra node types routed to this queue
}

// Validate checks if the queue policy is valid
func (q *Queue) Validate() error {
	if strings.TrimSpace(q.Name) == "" {
		return fmt.Errorf("queue name cannot be empty")
	}
	if q.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1 for queue %s", q.Name)
	}
	if q.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1 for queue %s", q.Name)
	}
	if q.Backoff.Delay < 0 {
		return fmt.Errorf("backoff_delay cannot be negative for queue %s", q.Name)
	}
	if q.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive for queue %s", q.Name)
	}
	return nil
}

// JobOptions returns the dispatch options this policy implies
func (q *Queue) JobOptions() job.Options {
	return job.Options{
		MaxAttempts: q.MaxAttempts,
		Backoff:     q.Backoff,
	}.WithDefaults()
}

// DefaultQueuePolicy builds the policy used for a queue that queues.yaml does not mention
// Priority: config > built-in defaults
func DefaultQueuePolicy(name string, cfg *config.Config) Queue {
	q := Queue{
		Name:        name,
		Concurrency: 5,
		MaxAttempts: job.DefaultMaxAttempts,
		Backoff:     job.Backoff{Strategy: job.Exponential, Delay: job.DefaultBackoffDelay},
		Timeout:     30 * time.Second,
	}
	if cfg != nil {
		q.Concurrency = cfg.GetWorkerConcurrency()
		q.Timeout = cfg.GetJobTimeout()
	}
	return q
}

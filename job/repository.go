package job

import (
	"context"
	"time"
)

// Reader provides read access to live jobs
type Reader interface {
	// Get returns ErrNotFound once the job has left the queue's retention
	Get(ctx context.Context, id string) (Job, error)
}

// Writer adds jobs to a queue
type Writer interface {
	/* Enqueue stores the job and makes it available to consumers, or schedules it when ProcessAt is in the future
	 * created is false when a job with the same id already exists; the existing job is left untouched
	 */
	Enqueue(ctx context.Context, j Job) (created bool, err error)
}

// Consumer is the worker side of the queue
type Consumer interface {
	/* Consume returns up to count jobs ready on the queue, blocking briefly when none are
	 * Returned jobs are Active with Attempt incremented
	 */
	Consume(ctx context.Context, queue string, count int) ([]Job, error)
	Complete(ctx context.Context, j Job) error
	// Retry makes the job available again after delay
	Retry(ctx context.Context, j Job, delay time.Duration, cause string) error
	Fail(ctx context.Context, j Job, cause string) error
}

// Repository is the queue infrastructure contract
type Repository interface {
	Reader
	Writer
	Consumer
	Close(ctx context.Context) error
}

/* Provenance mirrors a job's tenant/workflow linkage and status into durable storage
 * so the status stays queryable after the queue forgets the job
 */
type Provenance struct {
	JobID      string
	Queue      string
	WorkflowID string
	TenantID   string
	EventType  string
	Status     string
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ProvenanceStore persists provenance rows; writes are upserts keyed by job id
type ProvenanceStore interface {
	SaveProvenance(ctx context.Context, p Provenance) error
	UpdateProvenanceStatus(ctx context.Context, jobID string, status string, errMsg string) error
	GetProvenance(ctx context.Context, jobID string) (Provenance, error)
}

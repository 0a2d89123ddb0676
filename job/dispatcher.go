package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Provenance status vocabulary, kept compatible with rows written by other producers of webhook_events
const (
	provenanceReceived   = "received"
	provenanceProcessing = "processing"
	provenanceRetrying   = "retrying"
	provenanceSuccess    = "success"
	provenanceError      = "error"
)

// UseCase is the job client used by the ingestion service, workers and the scheduler
type UseCase interface {
	AddJob(ctx context.Context, queue string, payload Payload, opts Options) (string, error)
	// Submit is AddJob that also reports whether the job was new
	Submit(ctx context.Context, queue string, payload Payload, opts Options) (id string, created bool, err error)
	GetJobStatus(ctx context.Context, id string) (Status, error)
	// Track mirrors a lifecycle change into provenance; failures are logged, never returned
	Track(ctx context.Context, j Job, status Status, cause string)
}

// Dispatcher enqueues jobs and mirrors provenance
type Dispatcher struct {
	queue      Repository
	provenance ProvenanceStore
	logger     *slog.Logger
	now        func() time.Time
}

// NewDispatcher creates a dispatcher; provenance may be nil to disable the durable mirror
func NewDispatcher(queue Repository, provenance ProvenanceStore, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		queue:      queue,
		provenance: provenance,
		logger:     logger,
		now:        time.Now,
	}
}

// AddJob enqueues a job and returns its id
func (d *Dispatcher) AddJob(ctx context.Context, queue string, payload Payload, opts Options) (string, error) {
	id, _, err := d.Submit(ctx, queue, payload, opts)
	return id, err
}

/* Submit enqueues a job with default retry options applied
 * A caller supplied JobID makes the call idempotent: a second Submit with the same id
 * returns created=false and does not touch the queued job
 */
func (d *Dispatcher) Submit(ctx context.Context, queue string, payload Payload, opts Options) (string, bool, error) {
	if strings.TrimSpace(queue) == "" {
		return "", false, fmt.Errorf("queue name is required")
	}
	opts = opts.WithDefaults()
	id := opts.JobID
	if id == "" {
		id = uuid.NewString()
	}
	now := d.now()
	j := Job{
		ID:        id,
		Queue:     queue,
		Payload:   payload,
		Options:   opts,
		Status:    Waiting,
		ProcessAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if opts.Delay > 0 {
		j.Status = Delayed
		j.ProcessAt = now.Add(opts.Delay)
	}

	created, err := d.queue.Enqueue(ctx, j)
	if err != nil {
		return "", false, fmt.Errorf("enqueueing job on %s: %w", queue, err)
	}
	if created && opts.TracksProvenance() && d.provenance != nil {
		err := d.provenance.SaveProvenance(ctx, Provenance{
			JobID:      id,
			Queue:      queue,
			WorkflowID: opts.WorkflowID,
			TenantID:   opts.TenantID,
			EventType:  opts.EventType,
			Status:     provenanceReceived,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if err != nil {
			// the job is already queued; losing provenance only degrades status lookups
			d.logger.Error("recording job provenance", "job_id", id, "queue", queue, "error", err)
		}
	}
	return id, created, nil
}

// GetJobStatus checks the live queue first and falls back to provenance
func (d *Dispatcher) GetJobStatus(ctx context.Context, id string) (Status, error) {
	j, err := d.queue.Get(ctx, id)
	if err == nil {
		return j.Status, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, fmt.Errorf("getting job from queue: %w", err)
	}
	if d.provenance == nil {
		return 0, ErrNotFound
	}
	p, err := d.provenance.GetProvenance(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("getting job provenance: %w", err)
	}
	return ParseProviderStatus(p.Status), nil
}

func (d *Dispatcher) Track(ctx context.Context, j Job, status Status, cause string) {
	if d.provenance == nil || !j.Options.TracksProvenance() {
		return
	}
	if err := d.provenance.UpdateProvenanceStatus(ctx, j.ID, provenanceWord(status), cause); err != nil {
		d.logger.Warn("updating job provenance", "job_id", j.ID, "queue", j.Queue, "error", err)
	}
}

func provenanceWord(s Status) string {
	switch s {
	case Active:
		return provenanceProcessing
	case Completed:
		return provenanceSuccess
	case Failed:
		return provenanceError
	case Delayed:
		return provenanceRetrying
	default:
		return provenanceReceived
	}
}

package job_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marcelsud/webhook-flow/job"
	"github.com/marcelsud/webhook-flow/job/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func matchJob(matcher func(job.Job) bool) interface{} {
	return mock.MatchedBy(matcher)
}

func TestDispatcher_AddJob(t *testing.T) {
	ctx := context.Background()
	payload := job.Payload{NodeID: "n2", NodeType: "agent", WorkflowID: "wf-1", ExecutionID: "exec-1", TenantID: "t1"}

	t.Run("success - defaults applied", func(t *testing.T) {
		queue := mocks.NewRepository(t)
		d := job.NewDispatcher(queue, nil, nil)

		queue.On("Enqueue", ctx, matchJob(func(j job.Job) bool {
			return j.Queue == "agent-execution" &&
				j.ID != "" &&
				j.Status == job.Waiting &&
				j.Options.MaxAttempts == 3 &&
				j.Options.Backoff.Strategy == job.Exponential &&
				j.Options.Backoff.Delay == 5*time.Second &&
				j.Payload.ExecutionID == "exec-1"
		})).Return(true, nil)

		id, err := d.AddJob(ctx, "agent-execution", payload, job.Options{})

		require.NoError(t, err)
		assert.NotEmpty(t, id)
	})

	t.Run("success - provenance mirrored when workflow and tenant present", func(t *testing.T) {
		queue := mocks.NewRepository(t)
		prov := mocks.NewProvenanceStore(t)
		d := job.NewDispatcher(queue, prov, nil)

		queue.On("Enqueue", ctx, mock.Anything).Return(true, nil)
		prov.On("SaveProvenance", ctx, mock.MatchedBy(func(p job.Provenance) bool {
			return p.JobID == "job-1" && p.WorkflowID == "wf-1" && p.TenantID == "t1" &&
				p.EventType == "message" && p.Status == "received" && p.Queue == "webhook-trigger"
		})).Return(nil)

		id, err := d.AddJob(ctx, "webhook-trigger", payload, job.Options{
			JobID: "job-1", WorkflowID: "wf-1", TenantID: "t1", EventType: "message",
		})

		require.NoError(t, err)
		assert.Equal(t, "job-1", id)
	})

	t.Run("success - duplicate job id is not re-enqueued nor re-recorded", func(t *testing.T) {
		queue := mocks.NewRepository(t)
		prov := mocks.NewProvenanceStore(t)
		d := job.NewDispatcher(queue, prov, nil)

		queue.On("Enqueue", ctx, mock.Anything).Return(false, nil)

		id, created, err := d.Submit(ctx, "agent-execution", payload, job.Options{
			JobID: "job-1", WorkflowID: "wf-1", TenantID: "t1",
		})

		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "job-1", id)
		prov.AssertNotCalled(t, "SaveProvenance", mock.Anything, mock.Anything)
	})

	t.Run("success - delayed job", func(t *testing.T) {
		queue := mocks.NewRepository(t)
		d := job.NewDispatcher(queue, nil, nil)

		queue.On("Enqueue", ctx, matchJob(func(j job.Job) bool {
			return j.Status == job.Delayed && j.ProcessAt.Sub(j.CreatedAt) == time.Minute
		})).Return(true, nil)

		_, err := d.AddJob(ctx, "scheduled-delay", payload, job.Options{Delay: time.Minute})
		require.NoError(t, err)
	})

	t.Run("success - provenance failure does not fail the dispatch", func(t *testing.T) {
		queue := mocks.NewRepository(t)
		prov := mocks.NewProvenanceStore(t)
		d := job.NewDispatcher(queue, prov, nil)

		queue.On("Enqueue", ctx, mock.Anything).Return(true, nil)
		prov.On("SaveProvenance", ctx, mock.Anything).Return(errors.New("db down"))

		_, err := d.AddJob(ctx, "api-call", payload, job.Options{WorkflowID: "wf-1", TenantID: "t1"})
		require.NoError(t, err)
	})

	t.Run("error - queue unavailable", func(t *testing.T) {
		queue := mocks.NewRepository(t)
		d := job.NewDispatcher(queue, nil, nil)

		queue.On("Enqueue", ctx, mock.Anything).Return(false, errors.New("connection refused"))

		_, err := d.AddJob(ctx, "api-call", payload, job.Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "enqueueing job on api-call")
	})

	t.Run("error - empty queue name", func(t *testing.T) {
		d := job.NewDispatcher(mocks.NewRepository(t), nil, nil)

		_, err := d.AddJob(ctx, " ", payload, job.Options{})
		require.Error(t, err)
	})
}

func TestDispatcher_GetJobStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("success - live queue first", func(t *testing.T) {
		queue := mocks.NewRepository(t)
		prov := mocks.NewProvenanceStore(t)
		d := job.NewDispatcher(queue, prov, nil)

		queue.On("Get", ctx, "job-1").Return(job.Job{ID: "job-1", Status: job.Active}, nil)

		status, err := d.GetJobStatus(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, job.Active, status)
	})

	t.Run("success - provenance fallback translates vocabulary", func(t *testing.T) {
		tests := map[string]job.Status{
			"success":    job.Completed,
			"error":      job.Failed,
			"processing": job.Active,
			"received":   job.Waiting,
			"retrying":   job.Delayed,
			"paused":     job.Paused,
		}
		for word, want := range tests {
			queue := mocks.NewRepository(t)
			prov := mocks.NewProvenanceStore(t)
			d := job.NewDispatcher(queue, prov, nil)

			queue.On("Get", ctx, "job-old").Return(job.Job{}, job.ErrNotFound)
			prov.On("GetProvenance", ctx, "job-old").Return(job.Provenance{JobID: "job-old", Status: word}, nil)

			status, err := d.GetJobStatus(ctx, "job-old")
			require.NoError(t, err)
			assert.Equal(t, want, status, word)
		}
	})

	t.Run("error - unknown everywhere", func(t *testing.T) {
		queue := mocks.NewRepository(t)
		prov := mocks.NewProvenanceStore(t)
		d := job.NewDispatcher(queue, prov, nil)

		queue.On("Get", ctx, "nope").Return(job.Job{}, job.ErrNotFound)
		prov.On("GetProvenance", ctx, "nope").Return(job.Provenance{}, job.ErrNotFound)

		_, err := d.GetJobStatus(ctx, "nope")
		assert.ErrorIs(t, err, job.ErrNotFound)
	})

	t.Run("error - queue failure is not masked by provenance", func(t *testing.T) {
		queue := mocks.NewRepository(t)
		d := job.NewDispatcher(queue, mocks.NewProvenanceStore(t), nil)

		queue.On("Get", ctx, "job-1").Return(job.Job{}, errors.New("timeout"))

		_, err := d.GetJobStatus(ctx, "job-1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, job.ErrNotFound)
	})
}

func TestDispatcher_Track(t *testing.T) {
	ctx := context.Background()
	queue := mocks.NewRepository(t)
	prov := mocks.NewProvenanceStore(t)
	d := job.NewDispatcher(queue, prov, nil)

	tracked := job.Job{ID: "job-1", Options: job.Options{WorkflowID: "wf", TenantID: "t"}}
	prov.On("UpdateProvenanceStatus", ctx, "job-1", "error", "boom").Return(nil).Once()

	d.Track(ctx, tracked, job.Failed, "boom")
	d.Track(ctx, job.Job{ID: "job-2"}, job.Failed, "untracked")
}

package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/marcelsud/webhook-flow/job"
	"github.com/marcelsud/webhook-flow/job/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJob(id, queue string) job.Job {
	now := time.Now()
	return job.Job{
		ID:        id,
		Queue:     queue,
		Payload:   job.Payload{NodeID: "n1", ExecutionID: "exec-1"},
		Options:   job.Options{MaxAttempts: 3},
		ProcessAt: now,
		CreatedAt: now,
	}
}

func TestQueue_EnqueueConsume(t *testing.T) {
	ctx := context.Background()

	t.Run("success - consume marks active and counts attempts", func(t *testing.T) {
		q := memory.NewQueue(memory.WithBlock(50 * time.Millisecond))
		defer q.Close(ctx)

		created, err := q.Enqueue(ctx, newJob("job-1", "agent-execution"))
		require.NoError(t, err)
		assert.True(t, created)

		jobs, err := q.Consume(ctx, "agent-execution", 10)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, job.Active, jobs[0].Status)
		assert.Equal(t, 1, jobs[0].Attempt)
		assert.Equal(t, "exec-1", jobs[0].Payload.ExecutionID)
	})

	t.Run("success - duplicate id is ignored", func(t *testing.T) {
		q := memory.NewQueue(memory.WithBlock(50 * time.Millisecond))
		defer q.Close(ctx)

		_, err := q.Enqueue(ctx, newJob("job-1", "api-call"))
		require.NoError(t, err)
		created, err := q.Enqueue(ctx, newJob("job-1", "api-call"))
		require.NoError(t, err)
		assert.False(t, created)

		jobs, err := q.Consume(ctx, "api-call", 10)
		require.NoError(t, err)
		assert.Len(t, jobs, 1)
	})

	t.Run("success - queues are isolated", func(t *testing.T) {
		q := memory.NewQueue(memory.WithBlock(20 * time.Millisecond))
		defer q.Close(ctx)

		_, err := q.Enqueue(ctx, newJob("job-1", "email-sending"))
		require.NoError(t, err)

		jobs, err := q.Consume(ctx, "agent-execution", 10)
		require.NoError(t, err)
		assert.Empty(t, jobs)
	})

	t.Run("success - delayed job waits", func(t *testing.T) {
		q := memory.NewQueue(memory.WithBlock(20 * time.Millisecond))
		defer q.Close(ctx)

		j := newJob("job-d", "scheduled-delay")
		j.ProcessAt = time.Now().Add(100 * time.Millisecond)
		_, err := q.Enqueue(ctx, j)
		require.NoError(t, err)

		got, err := q.Get(ctx, "job-d")
		require.NoError(t, err)
		assert.Equal(t, job.Delayed, got.Status)

		jobs, err := q.Consume(ctx, "scheduled-delay", 1)
		require.NoError(t, err)
		assert.Empty(t, jobs)

		assert.Eventually(t, func() bool {
			jobs, _ := q.Consume(ctx, "scheduled-delay", 1)
			return len(jobs) == 1
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("success - retry redelivers with next attempt", func(t *testing.T) {
		q := memory.NewQueue(memory.WithBlock(20 * time.Millisecond))
		defer q.Close(ctx)

		_, err := q.Enqueue(ctx, newJob("job-r", "api-call"))
		require.NoError(t, err)
		jobs, err := q.Consume(ctx, "api-call", 1)
		require.NoError(t, err)
		require.Len(t, jobs, 1)

		require.NoError(t, q.Retry(ctx, jobs[0], 10*time.Millisecond, "timeout"))

		var again []job.Job
		assert.Eventually(t, func() bool {
			again, _ = q.Consume(ctx, "api-call", 1)
			return len(again) == 1
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, 2, again[0].Attempt)
		assert.Equal(t, "timeout", again[0].LastError)
	})

	t.Run("success - complete and fail are terminal", func(t *testing.T) {
		q := memory.NewQueue()
		defer q.Close(ctx)

		_, _ = q.Enqueue(ctx, newJob("ok", "q"))
		_, _ = q.Enqueue(ctx, newJob("ko", "q"))
		require.NoError(t, q.Complete(ctx, job.Job{ID: "ok"}))
		require.NoError(t, q.Fail(ctx, job.Job{ID: "ko"}, "boom"))

		ok, err := q.Get(ctx, "ok")
		require.NoError(t, err)
		assert.Equal(t, job.Completed, ok.Status)
		ko, err := q.Get(ctx, "ko")
		require.NoError(t, err)
		assert.Equal(t, job.Failed, ko.Status)
		assert.Equal(t, "boom", ko.LastError)

		counts, err := q.StatusCounts(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts["completed"])
		assert.Equal(t, int64(1), counts["failed"])

		recent, err := q.CompletedSince(ctx, time.Now().Add(-time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(1), recent)
		future, err := q.CompletedSince(ctx, time.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.Zero(t, future)
	})

	t.Run("error - get unknown job", func(t *testing.T) {
		q := memory.NewQueue()
		_, err := q.Get(ctx, "nope")
		assert.ErrorIs(t, err, job.ErrNotFound)
	})

	t.Run("error - closed queue", func(t *testing.T) {
		q := memory.NewQueue()
		require.NoError(t, q.Close(ctx))
		_, err := q.Enqueue(ctx, newJob("x", "q"))
		require.Error(t, err)
	})
}

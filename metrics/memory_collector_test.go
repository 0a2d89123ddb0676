package metrics_test

import (
	"context"
	"testing"
	"time"

	"github.com/marcelsud/webhook-flow/job"
	jobmemory "github.com/marcelsud/webhook-flow/job/memory"
	"github.com/marcelsud/webhook-flow/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyJob(id, queue string) job.Job {
	now := time.Now()
	return job.Job{ID: id, Queue: queue, Status: job.Waiting, ProcessAt: now, CreatedAt: now, UpdatedAt: now}
}

func TestMemoryCollector_Collect(t *testing.T) {
	ctx := context.Background()
	queue := jobmemory.NewQueue(jobmemory.WithBlock(10 * time.Millisecond))
	defer queue.Close(ctx)

	_, err := queue.Enqueue(ctx, readyJob("j1", "agent-execution"))
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, readyJob("j2", "agent-execution"))
	require.NoError(t, err)
	jobs, err := queue.Consume(ctx, "agent-execution", 1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NoError(t, queue.Complete(ctx, jobs[0]))

	heartbeats := metrics.NewHeartbeats(time.Minute)
	require.NoError(t, heartbeats.SetWorkerHeartbeat(ctx, "w1", "agent-execution", "idle", 0))

	collector := metrics.NewMemoryCollector(queue, heartbeats)
	m, err := collector.Collect(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), m.QueueLengths["agent-execution"])
	assert.Equal(t, int64(1), m.StatusCounts["completed"])
	assert.Equal(t, int64(1), m.StatusCounts["waiting"])
	assert.Equal(t, int64(0), m.StatusCounts["failed"])
	assert.Equal(t, int64(1), m.Throughput.LastMinute)
	assert.Equal(t, int64(1), m.Throughput.LastFifteenMinutes)
	require.Len(t, m.Workers["agent-execution"], 1)
	assert.Equal(t, "w1", m.Workers["agent-execution"][0].WorkerID)
	assert.False(t, m.Timestamp.IsZero())
}

func TestMemoryCollector_NoHeartbeats(t *testing.T) {
	queue := jobmemory.NewQueue()
	defer queue.Close(context.Background())

	workers, err := metrics.NewMemoryCollector(queue, nil).GetActiveWorkers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, workers)
}

func TestHeartbeats_Expire(t *testing.T) {
	ctx := context.Background()
	h := metrics.NewHeartbeats(5 * time.Millisecond)
	require.NoError(t, h.SetWorkerHeartbeat(ctx, "w1", "q", "busy", 2))

	active := h.Active()
	require.Len(t, active["q"], 1)
	assert.Equal(t, 2, active["q"][0].InFlight)

	assert.Eventually(t, func() bool {
		return len(h.Active()) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestCollector_Interface(t *testing.T) {
	t.Run("implementations satisfy Collector", func(t *testing.T) {
		var _ metrics.Collector = (*metrics.RedisCollector)(nil)
		var _ metrics.Collector = (*metrics.MemoryCollector)(nil)
	})
}

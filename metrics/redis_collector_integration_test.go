//go:build integration

package metrics_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/marcelsud/webhook-flow/job"
	jobredis "github.com/marcelsud/webhook-flow/job/redis"
	"github.com/marcelsud/webhook-flow/metrics"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testcontainersredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisCollector_Integration(t *testing.T) {
	ctx := context.Background()
	container, err := testcontainersredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	defer container.Terminate(ctx)

	addr, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	addr = strings.TrimPrefix(addr, "redis://")

	client := goredis.NewClient(&goredis.Options{Addr: addr})
	defer client.Close()
	repo := jobredis.NewRepositoryWithClient(client, jobredis.WithBlock(100*time.Millisecond))

	now := time.Now()
	for _, id := range []string{"j1", "j2"} {
		_, err := repo.Enqueue(ctx, job.Job{ID: id, Queue: "agent-execution", Status: job.Waiting, ProcessAt: now, CreatedAt: now, UpdatedAt: now})
		require.NoError(t, err)
	}
	_, err = repo.Enqueue(ctx, job.Job{ID: "later", Queue: "scheduled-delay", Status: job.Delayed,
		ProcessAt: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)

	jobs, err := repo.Consume(ctx, "agent-execution", 1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NoError(t, repo.Complete(ctx, jobs[0]))
	require.NoError(t, repo.SetWorkerHeartbeat(ctx, "w1", "agent-execution", "idle", 0))

	collector := metrics.NewRedisCollector(client, []string{"agent-execution", "scheduled-delay", "email-sending"})
	m, err := collector.Collect(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), m.QueueLengths["agent-execution"])
	assert.Equal(t, int64(1), m.QueueLengths["scheduled-delay"])
	assert.Equal(t, int64(0), m.QueueLengths["email-sending"])
	assert.Equal(t, int64(1), m.StatusCounts["completed"])
	assert.Equal(t, int64(1), m.StatusCounts["waiting"])
	assert.Equal(t, int64(1), m.StatusCounts["delayed"])
	assert.Equal(t, int64(1), m.Throughput.LastMinute)
	require.Len(t, m.Workers["agent-execution"], 1)
	assert.Equal(t, "w1", m.Workers["agent-execution"][0].WorkerID)
}

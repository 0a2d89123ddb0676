//go:build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/marcelsud/webhook-flow/job"
	"github.com/marcelsud/webhook-flow/job/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	testcontainersredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// RedisContainer holds the Redis testcontainer and connection details
type RedisContainer struct {
	Container *testcontainersredis.RedisContainer
	Addr      string
}

// SetupRedisContainer creates and starts a Redis testcontainer
func SetupRedisContainer(t *testing.T, ctx context.Context) (*RedisContainer, func()) {
	t.Helper()

	redisContainer, err := testcontainersredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "failed to start Redis container")

	addr, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err, "failed to get Redis connection string")

	// Remove redis:// prefix if present
	if len(addr) > 8 && addr[:8] == "redis://" {
		addr = addr[8:]
	}

	rc := &RedisContainer{
		Container: redisContainer,
		Addr:      addr,
	}

	cleanup := func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
	}
	return rc, cleanup
}

// CreateTestRepository creates a Redis repository with short block and claim timeouts
func CreateTestRepository(t *testing.T, addr string, opts ...redis.Option) *redis.Repository {
	t.Helper()

	opts = append([]redis.Option{redis.WithBlock(100 * time.Millisecond)}, opts...)
	repo, err := redis.NewRepository(addr, "", 0, opts...)
	require.NoError(t, err, "failed to create Redis repository")
	return repo
}

// NewTestJob builds a ready job on the given queue
func NewTestJob(id, queue string) job.Job {
	now := time.Now()
	return job.Job{
		ID:    id,
		Queue: queue,
		Payload: job.Payload{
			NodeID: "n1", NodeType: "agent", WorkflowID: "wf-1", ExecutionID: "exec-1", TenantID: "t1",
			Input: map[string]any{"text": "hello"},
		},
		Options:   job.Options{MaxAttempts: 3, Backoff: job.Backoff{Strategy: job.Exponential, Delay: time.Second}},
		ProcessAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// KeyTTL returns the TTL of a Redis key
func KeyTTL(t *testing.T, addr, key string) time.Duration {
	t.Helper()

	client := goredis.NewClient(&goredis.Options{Addr: addr})
	defer client.Close()

	ttl, err := client.TTL(context.Background(), key).Result()
	require.NoError(t, err)
	return ttl
}

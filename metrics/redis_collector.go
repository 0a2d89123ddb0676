package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

/* RedisCollector reads the job/redis key layout:
 * jobs:{queue} streams, jobs:delayed:{queue} sorted sets, job:{id} hashes and worker:heartbeat:{queue}:{id} keys
 */
type RedisCollector struct {
	client *redis.Client
	queues []string
	now    func() time.Time
}

// NewRedisCollector creates a collector reporting lengths for the given queues
func NewRedisCollector(client *redis.Client, queues []string) *RedisCollector {
	return &RedisCollector{
		client: client,
		queues: queues,
		now:    time.Now,
	}
}

func (c *RedisCollector) Collect(ctx context.Context) (Metrics, error) {
	return collect(ctx, c, c.now())
}

// GetQueueLengths counts stream entries not yet acknowledged plus jobs waiting on a delay
func (c *RedisCollector) GetQueueLengths(ctx context.Context) (map[string]int64, error) {
	pipe := c.client.Pipeline()
	streams := make([]*redis.IntCmd, len(c.queues))
	delayed := make([]*redis.IntCmd, len(c.queues))
	for i, q := range c.queues {
		streams[i] = pipe.XLen(ctx, "jobs:"+q)
		delayed[i] = pipe.ZCard(ctx, "jobs:delayed:"+q)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("executing pipeline: %w", err)
	}

	lengths := make(map[string]int64, len(c.queues))
	for i, q := range c.queues {
		// a queue never consumed has no stream yet
		n, _ := streams[i].Result()
		d, _ := delayed[i].Result()
		lengths[q] = n + d
	}
	return lengths, nil
}

func (c *RedisCollector) GetStatusCounts(ctx context.Context) (map[string]int64, error) {
	counts := emptyStatusCounts()
	err := c.scanJobs(ctx, func(status string, updatedAt time.Time) {
		counts[status]++
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// GetThroughput counts completed job hashes by their last update
func (c *RedisCollector) GetThroughput(ctx context.Context) (ThroughputMetrics, error) {
	now := c.now()
	var tp ThroughputMetrics
	err := c.scanJobs(ctx, func(status string, updatedAt time.Time) {
		if status != "completed" {
			return
		}
		tp.add(now, updatedAt)
	})
	if err != nil {
		return ThroughputMetrics{}, err
	}
	return tp, nil
}

func (c *RedisCollector) scanJobs(ctx context.Context, fn func(status string, updatedAt time.Time)) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, "job:*", 1000).Result()
		if err != nil {
			return fmt.Errorf("scanning job keys: %w", err)
		}

		if len(keys) > 0 {
			pipe := c.client.Pipeline()
			cmds := make([]*redis.SliceCmd, len(keys))
			for i, key := range keys {
				cmds[i] = pipe.HMGet(ctx, key, "status", "updated_at")
			}
			if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
				return fmt.Errorf("executing pipeline: %w", err)
			}
			for _, cmd := range cmds {
				vals, err := cmd.Result()
				if err != nil || len(vals) < 2 {
					continue
				}
				status, ok := vals[0].(string)
				if !ok {
					// expired between scan and read
					continue
				}
				var updated time.Time
				if s, ok := vals[1].(string); ok {
					if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
						updated = time.UnixMilli(ms)
					}
				}
				fn(status, updated)
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (c *RedisCollector) GetActiveWorkers(ctx context.Context) (map[string][]WorkerInfo, error) {
	workers := make(map[string][]WorkerInfo)

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, "worker:heartbeat:*", 1000).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning worker heartbeat keys: %w", err)
		}

		for _, key := range keys {
			data, err := c.client.Get(ctx, key).Result()
			if err != nil {
				continue
			}
			var info WorkerInfo
			if err := json.Unmarshal([]byte(data), &info); err != nil {
				continue
			}
			workers[info.Queue] = append(workers[info.Queue], info)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return workers, nil
}

func (tp *ThroughputMetrics) add(now, at time.Time) {
	age := now.Sub(at)
	if at.IsZero() || age > 15*time.Minute {
		return
	}
	tp.LastFifteenMinutes++
	if age <= 5*time.Minute {
		tp.LastFiveMinutes++
		if age <= time.Minute {
			tp.LastMinute++
		}
	}
}

package metrics

import (
	"context"
	"fmt"
	"time"
)

// QueueStats is what the memory job queue reports about itself
type QueueStats interface {
	QueueLengths(ctx context.Context) (map[string]int64, error)
	StatusCounts(ctx context.Context) (map[string]int64, error)
	CompletedSince(ctx context.Context, since time.Time) (int64, error)
}

// MemoryCollector implements Collector over the in-process queue driver
type MemoryCollector struct {
	queue      QueueStats
	heartbeats *Heartbeats
	now        func() time.Time
}

// NewMemoryCollector creates a collector; heartbeats may be nil when no worker runs in this process
func NewMemoryCollector(queue QueueStats, heartbeats *Heartbeats) *MemoryCollector {
	return &MemoryCollector{queue: queue, heartbeats: heartbeats, now: time.Now}
}

func (c *MemoryCollector) Collect(ctx context.Context) (Metrics, error) {
	return collect(ctx, c, c.now())
}

func (c *MemoryCollector) GetQueueLengths(ctx context.Context) (map[string]int64, error) {
	return c.queue.QueueLengths(ctx)
}

func (c *MemoryCollector) GetStatusCounts(ctx context.Context) (map[string]int64, error) {
	counts, err := c.queue.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}
	out := emptyStatusCounts()
	for status, n := range counts {
		out[status] = n
	}
	return out, nil
}

func (c *MemoryCollector) GetThroughput(ctx context.Context) (ThroughputMetrics, error) {
	now := c.now()
	var tp ThroughputMetrics
	for _, w := range []struct {
		window time.Duration
		into   *int64
	}{
		{time.Minute, &tp.LastMinute},
		{5 * time.Minute, &tp.LastFiveMinutes},
		{15 * time.Minute, &tp.LastFifteenMinutes},
	} {
		n, err := c.queue.CompletedSince(ctx, now.Add(-w.window))
		if err != nil {
			return ThroughputMetrics{}, fmt.Errorf("counting completed jobs: %w", err)
		}
		*w.into = n
	}
	return tp, nil
}

func (c *MemoryCollector) GetActiveWorkers(ctx context.Context) (map[string][]WorkerInfo, error) {
	if c.heartbeats == nil {
		return map[string][]WorkerInfo{}, nil
	}
	return c.heartbeats.Active(), nil
}

// Package metrics collects queue and worker state and watches worker lifecycle events for alerts.
package metrics

import (
	"context"
	"fmt"
	"time"
)

// Metrics represents the current state of the job queues.
type Metrics struct {
	// QueueLengths maps queue name to the number of jobs not yet finished
	QueueLengths map[string]int64 `json:"queue_lengths"`

	// StatusCounts maps job status to count of retained jobs in that status
	StatusCounts map[string]int64 `json:"status_counts"`

	// Throughput represents jobs completed per time window
	Throughput ThroughputMetrics `json:"throughput"`

	// Workers maps queue name to list of live workers
	Workers map[string][]WorkerInfo `json:"workers"`

	// Timestamp when metrics were collected
	Timestamp time.Time `json:"timestamp"`
}

// ThroughputMetrics represents jobs completed over different time windows.
type ThroughputMetrics struct {
	LastMinute         int64 `json:"last_minute"`
	LastFiveMinutes    int64 `json:"last_five_minutes"`
	LastFifteenMinutes int64 `json:"last_fifteen_minutes"`
}

// WorkerInfo mirrors the heartbeat a worker publishes.
type WorkerInfo struct {
	WorkerID      string    `json:"worker_id"`
	Queue         string    `json:"queue"`
	Status        string    `json:"status"` // idle, busy, stopping
	InFlight      int       `json:"in_flight"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// Collector defines the interface for collecting metrics from the job system.
type Collector interface {
	// Collect gathers current metrics from the system
	Collect(ctx context.Context) (Metrics, error)

	// GetQueueLengths returns the number of unfinished jobs per queue
	GetQueueLengths(ctx context.Context) (map[string]int64, error)

	// GetStatusCounts returns the count of jobs by status
	GetStatusCounts(ctx context.Context) (map[string]int64, error)

	// GetThroughput returns jobs completed over time windows
	GetThroughput(ctx context.Context) (ThroughputMetrics, error)

	// GetActiveWorkers returns live workers per queue
	GetActiveWorkers(ctx context.Context) (map[string][]WorkerInfo, error)
}

func collect(ctx context.Context, c Collector, now time.Time) (Metrics, error) {
	queueLengths, err := c.GetQueueLengths(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting queue lengths: %w", err)
	}
	statusCounts, err := c.GetStatusCounts(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting status counts: %w", err)
	}
	throughput, err := c.GetThroughput(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting throughput: %w", err)
	}
	workers, err := c.GetActiveWorkers(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting active workers: %w", err)
	}
	return Metrics{
		QueueLengths: queueLengths,
		StatusCounts: statusCounts,
		Throughput:   throughput,
		Workers:      workers,
		Timestamp:    now,
	}, nil
}

func emptyStatusCounts() map[string]int64 {
	return map[string]int64{
		"waiting":   0,
		"active":    0,
		"delayed":   0,
		"completed": 0,
		"failed":    0,
	}
}

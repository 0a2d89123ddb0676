package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const heartbeatTTL = 60 * time.Second

// WorkerHeartbeat represents the heartbeat data for a worker
type WorkerHeartbeat struct {
	WorkerID      string    `json:"worker_id"`
	Queue         string    `json:"queue"`
	Status        string    `json:"status"` // "idle", "processing"
	InFlight      int       `json:"in_flight"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// HeartbeatKey returns the key a worker heartbeat is stored under
func HeartbeatKey(queue, workerID string) string {
	return fmt.Sprintf("worker:heartbeat:%s:%s", queue, workerID)
}

/* SetWorkerHeartbeat stores or updates a worker's heartbeat in Redis
 * The key expires after 60 seconds, so a worker that stops beating drops out of the active set
 */
func (r *Repository) SetWorkerHeartbeat(ctx context.Context, workerID, queue, status string, inFlight int) error {
	heartbeat := WorkerHeartbeat{
		WorkerID:      workerID,
		Queue:         queue,
		Status:        status,
		InFlight:      inFlight,
		LastHeartbeat: time.Now(),
	}

	data, err := json.Marshal(heartbeat)
	if err != nil {
		return fmt.Errorf("marshaling heartbeat: %w", err)
	}

	if err := r.client.Set(ctx, HeartbeatKey(queue, workerID), data, heartbeatTTL).Err(); err != nil {
		return fmt.Errorf("setting heartbeat: %w", err)
	}
	return nil
}

// GetActiveWorkers retrieves all active workers for a given queue
func (r *Repository) GetActiveWorkers(ctx context.Context, queue string) ([]WorkerHeartbeat, error) {
	byQueue, err := r.scanHeartbeats(ctx, fmt.Sprintf("worker:heartbeat:%s:*", queue))
	if err != nil {
		return nil, err
	}
	return byQueue[queue], nil
}

// GetAllActiveWorkers retrieves all active workers across all queues
func (r *Repository) GetAllActiveWorkers(ctx context.Context) (map[string][]WorkerHeartbeat, error) {
	return r.scanHeartbeats(ctx, "worker:heartbeat:*")
}

func (r *Repository) scanHeartbeats(ctx context.Context, pattern string) (map[string][]WorkerHeartbeat, error) {
	workersByQueue := make(map[string][]WorkerHeartbeat)

	var cursor uint64
	for {
		keys, nextCursor, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning worker keys: %w", err)
		}

		for _, key := range keys {
			data, err := r.client.Get(ctx, key).Result()
			if err == redis.Nil {
				// Key expired between scan and get
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("getting worker heartbeat: %w", err)
			}

			var heartbeat WorkerHeartbeat
			if err := json.Unmarshal([]byte(data), &heartbeat); err != nil {
				continue
			}
			workersByQueue[heartbeat.Queue] = append(workersByQueue[heartbeat.Queue], heartbeat)
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	return workersByQueue, nil
}

package metrics

import (
	"context"
	"sort"
	"sync"
	"time"
)

const defaultHeartbeatTTL = 60 * time.Second

/* Heartbeats is the in-process heartbeat registry for the memory queue driver
 * Entries older than the ttl are treated as dead workers, like the expiring redis keys
 */
type Heartbeats struct {
	mu      sync.Mutex
	ttl     time.Duration
	workers map[string]WorkerInfo
	now     func() time.Time
}

func NewHeartbeats(ttl time.Duration) *Heartbeats {
	if ttl <= 0 {
		ttl = defaultHeartbeatTTL
	}
	return &Heartbeats{
		ttl:     ttl,
		workers: make(map[string]WorkerInfo),
		now:     time.Now,
	}
}

func (h *Heartbeats) SetWorkerHeartbeat(ctx context.Context, workerID, queue, status string, inFlight int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.workers[queue+"/"+workerID] = WorkerInfo{
		WorkerID:      workerID,
		Queue:         queue,
		Status:        status,
		InFlight:      inFlight,
		LastHeartbeat: h.now(),
	}
	return nil
}

// Active returns live workers per queue and forgets expired ones
func (h *Heartbeats) Active() map[string][]WorkerInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	out := make(map[string][]WorkerInfo)
	for key, w := range h.workers {
		if now.Sub(w.LastHeartbeat) > h.ttl {
			delete(h.workers, key)
			continue
		}
		out[w.Queue] = append(out[w.Queue], w)
	}
	for q := range out {
		sort.Slice(out[q], func(i, j int) bool { return out[q][i].WorkerID < out[q][j].WorkerID })
	}
	return out
}

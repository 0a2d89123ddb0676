package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marcelsud/webhook-flow/job"
)

/* In-process implementation of job.Repository
 * Each queue is a buffered channel of job ids; job state lives in a map
 * Delayed jobs and retries are pushed onto the channel by timers
 * Nothing survives a restart, so this driver suits tests and single-process setups
 */

const (
	defaultBuffer    = 1024
	defaultBlock     = time.Second
	defaultRetention = time.Hour
)

var errClosed = errors.New("queue closed")

type Queue struct {
	mu        sync.RWMutex
	jobs      map[string]*job.Job
	channels  map[string]chan string
	timers    map[string]*time.Timer
	buffer    int
	block     time.Duration
	retention time.Duration
	closed    bool
	done      chan struct{}
	now       func() time.Time
}

// Option configures a Queue
type Option func(*Queue)

// WithBlock sets how long Consume waits for a job before returning empty
func WithBlock(d time.Duration) Option {
	return func(q *Queue) { q.block = d }
}

// WithRetention sets how long finished jobs stay visible to Get
func WithRetention(d time.Duration) Option {
	return func(q *Queue) { q.retention = d }
}

// WithBuffer sets the per-queue channel capacity
func WithBuffer(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.buffer = n
		}
	}
}

// NewQueue creates an empty in-memory queue set
func NewQueue(opts ...Option) *Queue {
	q := &Queue{
		jobs:      make(map[string]*job.Job),
		channels:  make(map[string]chan string),
		timers:    make(map[string]*time.Timer),
		buffer:    defaultBuffer,
		block:     defaultBlock,
		retention: defaultRetention,
		done:      make(chan struct{}),
		now:       time.Now,
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// channel must be called with q.mu held for writing
func (q *Queue) channel(name string) chan string {
	ch, ok := q.channels[name]
	if !ok {
		ch = make(chan string, q.buffer)
		q.channels[name] = ch
	}
	return ch
}

func (q *Queue) Enqueue(ctx context.Context, j job.Job) (bool, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false, errClosed
	}
	if _, exists := q.jobs[j.ID]; exists {
		q.mu.Unlock()
		return false, nil
	}
	stored := j
	q.jobs[j.ID] = &stored
	ch := q.channel(j.Queue)
	delay := j.ProcessAt.Sub(q.now())
	if delay > 0 {
		stored.Status = job.Delayed
		q.schedule(j.ID, ch, delay)
		q.mu.Unlock()
		return true, nil
	}
	stored.Status = job.Waiting
	q.mu.Unlock()

	select {
	case ch <- j.ID:
		return true, nil
	case <-ctx.Done():
		q.mu.Lock()
		delete(q.jobs, j.ID)
		q.mu.Unlock()
		return false, ctx.Err()
	}
}

// schedule must be called with q.mu held for writing
func (q *Queue) schedule(id string, ch chan string, delay time.Duration) {
	if t, ok := q.timers[id]; ok {
		t.Stop()
	}
	q.timers[id] = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, id)
		if j, ok := q.jobs[id]; ok && j.Status == job.Delayed {
			j.Status = job.Waiting
		}
		q.mu.Unlock()
		select {
		case ch <- id:
		case <-q.done:
		}
	})
}

func (q *Queue) Get(ctx context.Context, id string) (job.Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	j, ok := q.jobs[id]
	if !ok {
		return job.Job{}, fmt.Errorf("%s: %w", id, job.ErrNotFound)
	}
	return *j, nil
}

func (q *Queue) Consume(ctx context.Context, queue string, count int) ([]job.Job, error) {
	if count < 1 {
		count = 1
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, errClosed
	}
	ch := q.channel(queue)
	q.mu.Unlock()

	timer := time.NewTimer(q.block)
	defer timer.Stop()

	var out []job.Job
	select {
	case id := <-ch:
		if j, ok := q.activate(id); ok {
			out = append(out, j)
		}
	case <-timer.C:
		return []job.Job{}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.done:
		return nil, errClosed
	}

	for len(out) < count {
		select {
		case id := <-ch:
			if j, ok := q.activate(id); ok {
				out = append(out, j)
			}
		default:
			return out, nil
		}
	}
	return out, nil
}

func (q *Queue) activate(id string) (job.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[id]
	if !ok || j.Status != job.Waiting {
		return job.Job{}, false
	}
	j.Status = job.Active
	j.Attempt++
	j.UpdatedAt = q.now()
	return *j, true
}

func (q *Queue) Complete(ctx context.Context, j job.Job) error {
	return q.finish(j.ID, job.Completed, "")
}

func (q *Queue) Fail(ctx context.Context, j job.Job, cause string) error {
	return q.finish(j.ID, job.Failed, cause)
}

func (q *Queue) finish(id string, status job.Status, cause string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	stored, ok := q.jobs[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, job.ErrNotFound)
	}
	stored.Status = status
	stored.LastError = cause
	stored.UpdatedAt = q.now()
	time.AfterFunc(q.retention, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if cur, ok := q.jobs[id]; ok && cur.Status.IsFinal() {
			delete(q.jobs, id)
		}
	})
	return nil
}

func (q *Queue) Retry(ctx context.Context, j job.Job, delay time.Duration, cause string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	stored, ok := q.jobs[j.ID]
	if !ok {
		return fmt.Errorf("%s: %w", j.ID, job.ErrNotFound)
	}
	stored.Status = job.Delayed
	stored.LastError = cause
	stored.ProcessAt = q.now().Add(delay)
	stored.UpdatedAt = q.now()
	if delay <= 0 {
		delay = time.Millisecond
	}
	q.schedule(j.ID, q.channel(stored.Queue), delay)
	return nil
}

// QueueLengths reports jobs waiting on each queue channel
func (q *Queue) QueueLengths(ctx context.Context) (map[string]int64, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make(map[string]int64, len(q.channels))
	for name, ch := range q.channels {
		out[name] = int64(len(ch))
	}
	return out, nil
}

// StatusCounts reports retained jobs by status
func (q *Queue) StatusCounts(ctx context.Context) (map[string]int64, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make(map[string]int64)
	for _, j := range q.jobs {
		out[j.Status.String()]++
	}
	return out, nil
}

// CompletedSince counts retained jobs that completed at or after since
func (q *Queue) CompletedSince(ctx context.Context, since time.Time) (int64, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var n int64
	for _, j := range q.jobs {
		if j.Status == job.Completed && !j.UpdatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	for _, t := range q.timers {
		t.Stop()
	}
	close(q.done)
	return nil
}

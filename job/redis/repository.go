package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/marcelsud/webhook-flow/job"
	"github.com/redis/go-redis/v9"
)

/* Redis Streams implementation of job.Repository
 * Uses one stream per queue with a consumer group for delivery
 * Uses Redis Hashes for job state, a sorted set per queue for delayed jobs and retries
 */

const (
	streamPrefix        = "jobs"         // Stream naming: jobs:{queue}
	delayedPrefix       = "jobs:delayed" // Sorted set naming: jobs:delayed:{queue}, score = process-at unix ms
	hashPrefix          = "job"          // Hash naming: job:{id}
	consumerGroupPrefix = "job-workers"  // Consumer group naming: job-workers-{queue}

	defaultBlock     = time.Second
	defaultClaimIdle = 5 * time.Minute
	completedTTL     = 24 * time.Hour
	failedTTL        = 7 * 24 * time.Hour
	promoteBatch     = 100
)

type Repository struct {
	client    *redis.Client
	consumer  string
	block     time.Duration
	claimIdle time.Duration
}

// Option configures a Repository
type Option func(*Repository)

// WithConsumerName sets the consumer name used inside each consumer group
func WithConsumerName(name string) Option {
	return func(r *Repository) { r.consumer = name }
}

// WithBlock sets the XREADGROUP block timeout
func WithBlock(d time.Duration) Option {
	return func(r *Repository) { r.block = d }
}

// WithClaimIdle sets how long a delivered entry may stay unacknowledged before another consumer reclaims it
func WithClaimIdle(d time.Duration) Option {
	return func(r *Repository) { r.claimIdle = d }
}

// NewRepository creates a new Redis repository
func NewRepository(addr, password string, db int, opts ...Option) (*Repository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return NewRepositoryWithClient(client, opts...), nil
}

// NewRepositoryWithClient wraps an existing client
func NewRepositoryWithClient(client *redis.Client, opts ...Option) *Repository {
	host, _ := os.Hostname()
	if host == "" {
		host = "worker"
	}
	r := &Repository{
		client:    client,
		consumer:  fmt.Sprintf("%s-%s", host, uuid.NewString()[:8]),
		block:     defaultBlock,
		claimIdle: defaultClaimIdle,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

/* enqueueScript claims the job id, publishes it and stores its metadata atomically
 * KEYS[1] job hash, KEYS[2] stream or delayed set
 * ARGV[1] "stream" or "delayed", ARGV[2] delayed score, ARGV[3] job id, ARGV[4..] hash fields
 * A hash without a queue field is an earlier enqueue that never published, so it is taken over
 * When the publish fails the hash is removed and the error returned, leaving the id free to retry
 */
var enqueueScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], 'queue') == 1 then
	return 0
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], unpack(ARGV, 4))
local added
if ARGV[1] == 'delayed' then
	added = redis.pcall('ZADD', KEYS[2], ARGV[2], ARGV[3])
else
	added = redis.pcall('XADD', KEYS[2], '*', 'job_id', ARGV[3])
end
if type(added) == 'table' and added.err then
	redis.call('DEL', KEYS[1])
	return added
end
return 1
`)

// Enqueue stores job metadata and adds the job to its stream or delayed set; a known id is a no-op
func (r *Repository) Enqueue(ctx context.Context, j job.Job) (bool, error) {
	delayed := j.ProcessAt.After(time.Now())
	mode, target := "stream", streamKey(j.Queue)
	if delayed {
		j.Status = job.Delayed
		mode, target = "delayed", delayedKey(j.Queue)
	} else {
		j.Status = job.Waiting
		// Create consumer group if it doesn't exist
		r.client.XGroupCreateMkStream(ctx, target, groupName(j.Queue), "0")
	}
	fields, err := toHash(j)
	if err != nil {
		return false, err
	}

	args := make([]interface{}, 0, 3+2*len(fields))
	args = append(args, mode, j.ProcessAt.UnixMilli(), j.ID)
	for k, v := range fields {
		args = append(args, k, v)
	}
	created, err := enqueueScript.Run(ctx, r.client, []string{jobKey(j.ID), target}, args...).Int()
	if err != nil {
		return false, fmt.Errorf("enqueueing job %s: %w", j.ID, err)
	}
	return created == 1, nil
}

// Get retrieves a job by ID from its hash
func (r *Repository) Get(ctx context.Context, id string) (job.Job, error) {
	data, err := r.client.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return job.Job{}, fmt.Errorf("getting job: %w", err)
	}
	if len(data) == 0 || data["queue"] == "" {
		return job.Job{}, fmt.Errorf("%s: %w", id, job.ErrNotFound)
	}
	return fromHash(data)
}

/* Consume promotes due delayed jobs, reclaims stale deliveries, then reads new entries
 * Each returned job is marked active and its attempt counter incremented
 */
func (r *Repository) Consume(ctx context.Context, queue string, count int) ([]job.Job, error) {
	if count < 1 {
		count = 1
	}
	if err := r.promoteDue(ctx, queue); err != nil {
		return nil, err
	}

	stream := streamKey(queue)
	group := groupName(queue)

	// Create consumer group if it doesn't exist
	r.client.XGroupCreateMkStream(ctx, stream, group, "0")

	messages, _, err := r.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: r.consumer,
		MinIdle:  r.claimIdle,
		Start:    "0-0",
		Count:    int64(count),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("claiming stale entries: %w", err)
	}

	if len(messages) == 0 {
		streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: r.consumer,
			Streams:  []string{stream, ">"},
			Count:    int64(count),
			Block:    r.block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			// No messages available
			return []job.Job{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading from stream: %w", err)
		}
		if len(streams) > 0 {
			messages = streams[0].Messages
		}
	}

	jobs := make([]job.Job, 0, len(messages))
	for _, msg := range messages {
		id, ok := msg.Values["job_id"].(string)
		if !ok {
			r.client.XAck(ctx, stream, group, msg.ID)
			continue
		}
		j, err := r.activate(ctx, id, msg.ID)
		if errors.Is(err, job.ErrNotFound) {
			// hash expired or job already finished: drop the orphan entry
			r.client.XAck(ctx, stream, group, msg.ID)
			continue
		}
		if err != nil {
			return jobs, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func (r *Repository) activate(ctx context.Context, id, msgID string) (job.Job, error) {
	hashKey := jobKey(id)
	j, err := r.Get(ctx, id)
	if err != nil {
		return job.Job{}, err
	}
	if j.Status.IsFinal() {
		return job.Job{}, job.ErrNotFound
	}

	attempt, err := r.client.HIncrBy(ctx, hashKey, "attempt", 1).Result()
	if err != nil {
		return job.Job{}, fmt.Errorf("incrementing attempt: %w", err)
	}
	now := time.Now()
	err = r.client.HSet(ctx, hashKey, map[string]interface{}{
		"status":     job.Active.String(),
		"updated_at": now.UnixMilli(),
		"msg_id":     msgID,
	}).Err()
	if err != nil {
		return job.Job{}, fmt.Errorf("marking job active: %w", err)
	}
	j.Attempt = int(attempt)
	j.Status = job.Active
	j.UpdatedAt = now
	return j, nil
}

/* promoteScript moves one due job from the delayed set onto the stream
 * KEYS[1] delayed set, KEYS[2] stream, KEYS[3] job hash; ARGV[1] job id, ARGV[2] score, ARGV[3] status
 * ZREM decides which consumer owns the promotion; a failed XADD puts the job back
 */
var promoteScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then
	return 0
end
local added = redis.pcall('XADD', KEYS[2], '*', 'job_id', ARGV[1])
if type(added) == 'table' and added.err then
	redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
	return added
end
redis.call('HSET', KEYS[3], 'status', ARGV[3])
return 1
`)

// promoteDue moves delayed jobs whose process-at has passed onto the stream
func (r *Repository) promoteDue(ctx context.Context, queue string) error {
	key := delayedKey(queue)
	due, err := r.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(time.Now().UnixMilli(), 10),
		Count: promoteBatch,
	}).Result()
	if err != nil {
		return fmt.Errorf("reading delayed jobs: %w", err)
	}
	if len(due) == 0 {
		return nil
	}
	stream := streamKey(queue)
	r.client.XGroupCreateMkStream(ctx, stream, groupName(queue), "0")
	for _, z := range due {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		err := promoteScript.Run(ctx, r.client, []string{key, stream, jobKey(id)},
			id, z.Score, job.Waiting.String()).Err()
		if err != nil {
			return fmt.Errorf("promoting delayed job %s: %w", id, err)
		}
	}
	return nil
}

// Complete acknowledges the stream entry and marks the job completed
func (r *Repository) Complete(ctx context.Context, j job.Job) error {
	if err := r.ack(ctx, j); err != nil {
		return err
	}
	err := r.client.HSet(ctx, jobKey(j.ID), map[string]interface{}{
		"status":     job.Completed.String(),
		"last_error": "",
		"updated_at": time.Now().UnixMilli(),
	}).Err()
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	return r.setTTL(ctx, j.ID, completedTTL)
}

// Retry acknowledges the current delivery and schedules the job again
func (r *Repository) Retry(ctx context.Context, j job.Job, delay time.Duration, cause string) error {
	if err := r.ack(ctx, j); err != nil {
		return err
	}
	processAt := time.Now().Add(delay)
	err := r.client.HSet(ctx, jobKey(j.ID), map[string]interface{}{
		"status":     job.Delayed.String(),
		"last_error": cause,
		"process_at": processAt.UnixMilli(),
		"updated_at": time.Now().UnixMilli(),
	}).Err()
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	err = r.client.ZAdd(ctx, delayedKey(j.Queue), redis.Z{
		Score:  float64(processAt.UnixMilli()),
		Member: j.ID,
	}).Err()
	if err != nil {
		return fmt.Errorf("scheduling retry: %w", err)
	}
	return nil
}

// Fail acknowledges the stream entry and marks the job failed
func (r *Repository) Fail(ctx context.Context, j job.Job, cause string) error {
	if err := r.ack(ctx, j); err != nil {
		return err
	}
	err := r.client.HSet(ctx, jobKey(j.ID), map[string]interface{}{
		"status":     job.Failed.String(),
		"last_error": cause,
		"updated_at": time.Now().UnixMilli(),
	}).Err()
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	return r.setTTL(ctx, j.ID, failedTTL)
}

func (r *Repository) ack(ctx context.Context, j job.Job) error {
	hashKey := jobKey(j.ID)
	msgID, err := r.client.HGet(ctx, hashKey, "msg_id").Result()
	if errors.Is(err, redis.Nil) || msgID == "" {
		// Message ID not found, might have been already acknowledged
		return nil
	}
	if err != nil {
		return fmt.Errorf("getting message ID: %w", err)
	}
	if err := r.client.XAck(ctx, streamKey(j.Queue), groupName(j.Queue), msgID).Err(); err != nil {
		return fmt.Errorf("acknowledging message: %w", err)
	}
	r.client.XDel(ctx, streamKey(j.Queue), msgID)
	r.client.HDel(ctx, hashKey, "msg_id")
	return nil
}

// setTTL sets an expiration time on a job hash
func (r *Repository) setTTL(ctx context.Context, id string, ttl time.Duration) error {
	if err := r.client.Expire(ctx, jobKey(id), ttl).Err(); err != nil {
		return fmt.Errorf("setting TTL on job: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Close()
}

// GetClient returns the underlying Redis client for advanced operations
func (r *Repository) GetClient() *redis.Client {
	return r.client
}

// Helper functions

func toHash(j job.Job) (map[string]interface{}, error) {
	payload, err := json.Marshal(j.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}
	opts, err := json.Marshal(j.Options)
	if err != nil {
		return nil, fmt.Errorf("marshaling options: %w", err)
	}
	return map[string]interface{}{
		"id":           j.ID,
		"queue":        j.Queue,
		"payload":      string(payload),
		"options":      string(opts),
		"attempt":      j.Attempt,
		"status":       j.Status.String(),
		"last_error":   j.LastError,
		"execution_id": j.Payload.ExecutionID,
		"tenant_id":    j.Payload.TenantID,
		"process_at":   j.ProcessAt.UnixMilli(),
		"created_at":   j.CreatedAt.UnixMilli(),
		"updated_at":   j.UpdatedAt.UnixMilli(),
	}, nil
}

func fromHash(data map[string]string) (job.Job, error) {
	j := job.Job{
		ID:        data["id"],
		Queue:     data["queue"],
		Attempt:   int(parseInt64(data["attempt"])),
		Status:    job.NewStatus(data["status"]),
		LastError: data["last_error"],
		ProcessAt: time.UnixMilli(parseInt64(data["process_at"])),
		CreatedAt: time.UnixMilli(parseInt64(data["created_at"])),
		UpdatedAt: time.UnixMilli(parseInt64(data["updated_at"])),
	}
	if s := data["payload"]; s != "" {
		if err := json.Unmarshal([]byte(s), &j.Payload); err != nil {
			return job.Job{}, fmt.Errorf("unmarshaling payload: %w", err)
		}
	}
	if s := data["options"]; s != "" {
		if err := json.Unmarshal([]byte(s), &j.Options); err != nil {
			return job.Job{}, fmt.Errorf("unmarshaling options: %w", err)
		}
	}
	return j, nil
}

func jobKey(id string) string {
	return fmt.Sprintf("%s:%s", hashPrefix, id)
}

func streamKey(queue string) string {
	return fmt.Sprintf("%s:%s", streamPrefix, queue)
}

func delayedKey(queue string) string {
	return fmt.Sprintf("%s:%s", delayedPrefix, queue)
}

func groupName(queue string) string {
	return fmt.Sprintf("%s-%s", consumerGroupPrefix, queue)
}

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

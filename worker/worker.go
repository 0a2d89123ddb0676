// Package worker consumes node jobs from one queue, runs the node and dispatches its successors.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/marcelsud/webhook-flow/job"
	"github.com/marcelsud/webhook-flow/routes"
	"github.com/marcelsud/webhook-flow/trigger"
	"github.com/marcelsud/webhook-flow/workflow"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultMaxHops           = 100
	defaultHeartbeatInterval = 10 * time.Second
	defaultPollBackoff       = time.Second
	notifyTimeout            = 10 * time.Second
)

var errIntegrity = errors.New("workflow integrity")

// Store is the slice of workflow storage a worker needs
type Store interface {
	workflow.Reader
	workflow.ExecutionStore
}

// Dispatcher enqueues successor nodes; trigger.Service implements it
type Dispatcher interface {
	Dispatch(ctx context.Context, node workflow.Node, req trigger.NodeRequest) (queue, jobID string, created bool, err error)
}

// Heartbeater records worker liveness; the redis job repository implements it
type Heartbeater interface {
	SetWorkerHeartbeat(ctx context.Context, workerID, queue, status string, inFlight int) error
}

// Deps are the collaborators every worker of a process shares
type Deps struct {
	Queue      job.Consumer
	Jobs       job.UseCase
	Store      Store
	Dispatcher Dispatcher
	Executors  *Executors
	Resolver   *workflow.Resolver
}

// Option configures a Worker
type Option func(*Worker)

func WithID(id string) Option {
	return func(w *Worker) {
		if id != "" {
			w.id = id
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithMaxHops bounds how many edges one execution may traverse
func WithMaxHops(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.maxHops = n
		}
	}
}

// WithHaltDisabled stops dispatching successors once the workflow is disabled
func WithHaltDisabled(halt bool) Option {
	return func(w *Worker) { w.haltDisabled = halt }
}

// WithEvents publishes lifecycle events on ch; a full channel drops events
func WithEvents(ch chan<- Event) Option {
	return func(w *Worker) { w.events = ch }
}

func WithNotifier(n Notifier) Option {
	return func(w *Worker) { w.notifier = n }
}

func WithHeartbeat(h Heartbeater, interval time.Duration) Option {
	return func(w *Worker) {
		w.heartbeat = h
		if interval > 0 {
			w.heartbeatEvery = interval
		}
	}
}

/* Worker runs the jobs of a single queue
 * At most policy.Concurrency jobs are in flight, each executor call is bounded by policy.Timeout
 */
type Worker struct {
	id             string
	policy         routes.Queue
	queue          job.Consumer
	jobs           job.UseCase
	store          Store
	dispatcher     Dispatcher
	executors      *Executors
	resolver       *workflow.Resolver
	notifier       Notifier
	heartbeat      Heartbeater
	heartbeatEvery time.Duration
	events         chan<- Event
	maxHops        int
	haltDisabled   bool
	pollBackoff    time.Duration
	logger         *slog.Logger
	now            func() time.Time
	inFlight       atomic.Int64
	dropped        atomic.Int64
}

func New(policy routes.Queue, deps Deps, opts ...Option) *Worker {
	if policy.Concurrency < 1 {
		policy.Concurrency = 1
	}
	if policy.Timeout <= 0 {
		policy.Timeout = 30 * time.Second
	}
	w := &Worker{
		id:             defaultID(),
		policy:         policy,
		queue:          deps.Queue,
		jobs:           deps.Jobs,
		store:          deps.Store,
		dispatcher:     deps.Dispatcher,
		executors:      deps.Executors,
		resolver:       deps.Resolver,
		heartbeatEvery: defaultHeartbeatInterval,
		maxHops:        DefaultMaxHops,
		pollBackoff:    defaultPollBackoff,
		logger:         slog.Default(),
		now:            time.Now,
	}
	for _, o := range opts {
		o(w)
	}
	if w.executors == nil {
		w.executors = NewExecutors()
	}
	if w.resolver == nil {
		w.resolver = workflow.NewResolver(w.logger)
	}
	w.logger = w.logger.With("queue", policy.Name, "worker_id", w.id)
	return w
}

func defaultID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "-" + uuid.NewString()[:8]
}

// Queue returns the name of the queue this worker consumes
func (w *Worker) Queue() string {
	return w.policy.Name
}

// InFlight returns the number of jobs currently being processed
func (w *Worker) InFlight() int {
	return int(w.inFlight.Load())
}

// Dropped returns how many lifecycle events were dropped because the channel was full
func (w *Worker) Dropped() int64 {
	return w.dropped.Load()
}

/* Run consumes until ctx is cancelled, then waits for in-flight jobs
 * In-flight jobs run on a context detached from ctx so shutdown never aborts a node halfway
 */
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "concurrency", w.policy.Concurrency, "timeout", w.policy.Timeout.String())

	var wg sync.WaitGroup
	if w.heartbeat != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.heartbeatLoop(ctx)
		}()
	}

	sem := semaphore.NewWeighted(int64(w.policy.Concurrency))
	for {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		jobs, err := w.queue.Consume(ctx, w.policy.Name, 1)
		if err != nil {
			sem.Release(1)
			if ctx.Err() != nil {
				break
			}
			w.logger.Error("consuming jobs", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(w.pollBackoff):
			}
			continue
		}
		if len(jobs) == 0 {
			sem.Release(1)
			continue
		}
		j := jobs[0]
		w.inFlight.Add(1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			defer w.inFlight.Add(-1)
			w.Process(context.WithoutCancel(ctx), j)
		}()
	}

	wg.Wait()
	w.logger.Info("worker stopped")
	return nil
}

func (w *Worker) heartbeatLoop(ctx context.Context) {
	beat := func(status string) {
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := w.heartbeat.SetWorkerHeartbeat(hctx, w.id, w.policy.Name, status, w.InFlight()); err != nil {
			w.logger.Warn("sending heartbeat", "error", err)
		}
	}
	ticker := time.NewTicker(w.heartbeatEvery)
	defer ticker.Stop()

	beat("idle")
	for {
		select {
		case <-ctx.Done():
			beat("stopping")
			return
		case <-ticker.C:
			if w.InFlight() > 0 {
				beat("busy")
			} else {
				beat("idle")
			}
		}
	}
}

// attempt carries one delivery of a job through Process
type attempt struct {
	job   job.Job
	def   workflow.Definition
	node  workflow.Node
	start time.Time
	log   *slog.Logger
}

/* Process runs one delivered job to its outcome and acknowledges it on the queue
 * A redelivered job whose node already completed skips the executor and only re-dispatches;
 * successor job ids are deterministic so nothing is enqueued twice
 */
func (w *Worker) Process(ctx context.Context, j job.Job) {
	p := j.Payload
	a := &attempt{
		job:   j,
		start: w.now(),
		log: w.logger.With(
			"job_id", j.ID,
			"execution_id", p.ExecutionID,
			"node_id", p.NodeID,
			"tenant_id", p.TenantID,
			"attempt", j.Attempt,
		),
	}
	w.jobs.Track(ctx, j, job.Active, "")
	w.publish(a, Event{Kind: JobStarted})

	def, node, err := w.load(ctx, p)
	if errors.Is(err, errIntegrity) {
		w.abandon(ctx, a, err)
		return
	}
	if err != nil {
		w.retryOrFail(ctx, a, err)
		return
	}
	a.def, a.node = def, node

	prev, err := w.store.GetNodeExecution(ctx, j.ID)
	switch {
	case err == nil && prev.Status == workflow.NodeCompleted:
		a.log.Info("node already completed, resuming dispatch")
		w.advance(ctx, a, prev)
		return
	case err != nil && !errors.Is(err, workflow.ErrNotFound):
		w.retryOrFail(ctx, a, fmt.Errorf("loading node record: %w", err))
		return
	}

	rec := workflow.NodeExecution{
		ID:          j.ID,
		ExecutionID: p.ExecutionID,
		NodeID:      node.ID,
		NodeType:    node.Kind().String(),
		Status:      workflow.NodeRunning,
		Attempt:     j.Attempt,
		Input:       p.Input,
		StartedAt:   a.start.UTC(),
	}
	if err := w.store.SaveNodeExecution(ctx, rec); err != nil {
		w.retryOrFail(ctx, a, fmt.Errorf("recording node start: %w", err))
		return
	}

	output, err := w.execute(ctx, a)
	if err != nil {
		w.failure(ctx, a, rec, err)
		return
	}
	if output == nil {
		output = map[string]any{}
	}

	rec.Status = workflow.NodeCompleted
	rec.Output = output
	rec.Error = ""
	rec.FinishedAt = w.now().UTC()
	if err := w.store.SaveNodeExecution(ctx, rec); err != nil {
		w.retryOrFail(ctx, a, fmt.Errorf("recording node completion: %w", err))
		return
	}
	w.advance(ctx, a, rec)
}

func (w *Worker) load(ctx context.Context, p job.Payload) (workflow.Definition, workflow.Node, error) {
	def, err := w.store.GetWorkflowVersion(ctx, p.WorkflowID, p.WorkflowVersion)
	if errors.Is(err, workflow.ErrNotFound) {
		return workflow.Definition{}, workflow.Node{}, fmt.Errorf("%w: %v", errIntegrity, err)
	}
	if err != nil {
		return workflow.Definition{}, workflow.Node{}, fmt.Errorf("loading workflow: %w", err)
	}
	node, ok := def.NodeByID(p.NodeID)
	if !ok {
		return workflow.Definition{}, workflow.Node{}, fmt.Errorf("%w: node %s missing from workflow %s version %d",
			errIntegrity, p.NodeID, def.ID, def.Version)
	}
	return def, node, nil
}

func (w *Worker) execute(ctx context.Context, a *attempt) (map[string]any, error) {
	ex, ok := w.executors.For(a.node.Kind())
	if !ok {
		return nil, Permanent(fmt.Errorf("no executor for node type %s", a.node.Kind()))
	}
	ctx, cancel := context.WithTimeout(ctx, w.policy.Timeout)
	defer cancel()

	type result struct {
		out map[string]any
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("executor panic: %v", r)}
			}
		}()
		p := a.job.Payload
		out, err := ex.Execute(ctx, Request{
			ExecutionID: p.ExecutionID,
			WorkflowID:  p.WorkflowID,
			TenantID:    p.TenantID,
			Node:        a.node,
			Input:       p.Input,
			Metadata:    p.Metadata,
			Attempt:     a.job.Attempt,
		})
		done <- result{out: out, err: err}
	}()

	timedOut := func() error {
		return fmt.Errorf("node %s timed out after %s: %w", a.node.ID, w.policy.Timeout, ctx.Err())
	}
	select {
	case r := <-done:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, timedOut()
		}
		return r.out, r.err
	case <-ctx.Done():
		return nil, timedOut()
	}
}

/* advance dispatches the successors of a completed node and settles its job
 * Successor job ids are tracked before they are enqueued and before this job settles,
 * so pending cannot reach zero while a successor is queued, however often this job is redelivered
 */
func (w *Worker) advance(ctx context.Context, a *attempt, rec workflow.NodeExecution) {
	p := a.job.Payload
	next := w.resolver.Next(a.def, a.node.ID, rec.Output)

	var halt error
	switch {
	case len(next) == 0:
	case w.haltDisabled && a.def.Status == workflow.Disabled:
		halt = fmt.Errorf("workflow %s: %w", a.def.ID, trigger.ErrWorkflowDisabled)
	case p.Hop+1 > w.maxHops:
		halt = fmt.Errorf("%w: execution passed %d hops at node %s", workflow.ErrHopLimit, w.maxHops, a.node.ID)
	}
	if halt != nil {
		a.log.Warn("not dispatching successors", "reason", halt.Error(), "successors", len(next))
		next = nil
	}

	successors := make([]string, len(next))
	for i, n := range next {
		successors[i] = trigger.NodeJobID(p.ExecutionID, a.job.ID, n.ID)
	}
	if len(successors) > 0 {
		if _, err := w.store.TrackJobs(ctx, p.ExecutionID, successors...); err != nil {
			w.retryOrFail(ctx, a, fmt.Errorf("tracking successors: %w", err))
			return
		}
	}
	if err := w.dispatchAll(ctx, a, rec.Output, next); err != nil {
		w.retryOrFail(ctx, a, err)
		return
	}

	pending, err := w.store.SettleJob(ctx, p.ExecutionID, a.job.ID)
	if err != nil {
		w.retryOrFail(ctx, a, fmt.Errorf("settling node: %w", err))
		return
	}
	if !rec.Settled {
		rec.Settled = true
		if err := w.store.SaveNodeExecution(ctx, rec); err != nil {
			a.log.Warn("marking node settled", "error", err)
		}
	}
	if halt == nil && pending <= 0 {
		w.finishExecution(ctx, a, workflow.ExecutionCompleted, "")
	}
	if halt != nil {
		w.finishExecution(ctx, a, workflow.ExecutionFailed, halt.Error())
	}

	if err := w.queue.Complete(ctx, a.job); err != nil {
		a.log.Error("acknowledging job", "error", err)
	}
	w.jobs.Track(ctx, a.job, job.Completed, "")
	w.publish(a, Event{Kind: JobCompleted, Duration: w.now().Sub(a.start)})
	a.log.Info("node completed", "successors", len(next), "duration", w.now().Sub(a.start).String())
}

// dispatchAll enqueues siblings concurrently; they share no ordering
func (w *Worker) dispatchAll(ctx context.Context, a *attempt, output map[string]any, next []workflow.Node) error {
	if len(next) == 0 {
		return nil
	}
	p := a.job.Payload
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range next {
		g.Go(func() error {
			queue, jobID, created, err := w.dispatcher.Dispatch(gctx, n, trigger.NodeRequest{
				ExecutionID:     p.ExecutionID,
				TenantID:        p.TenantID,
				WorkflowID:      p.WorkflowID,
				WorkflowVersion: p.WorkflowVersion,
				ParentJobID:     a.job.ID,
				ParentNodeID:    a.node.ID,
				Hop:             p.Hop + 1,
				EventType:       a.job.Options.EventType,
				Input:           output,
				Metadata:        p.Metadata,
				Delay:           n.Delay(),
			})
			if err != nil {
				return err
			}
			if !created {
				return nil
			}
			w.publish(a, Event{Kind: NodeDispatched, Queue: queue, JobID: jobID, NodeID: n.ID, NodeType: n.Kind().String()})
			return nil
		})
	}
	return g.Wait()
}

// failure records the failed attempt, then retries or gives up
func (w *Worker) failure(ctx context.Context, a *attempt, rec workflow.NodeExecution, cause error) {
	rec.Status = workflow.NodeFailed
	rec.Error = cause.Error()
	rec.FinishedAt = w.now().UTC()
	if err := w.store.SaveNodeExecution(ctx, rec); err != nil {
		a.log.Error("recording node failure", "error", err)
	}
	if !w.retryOrFail(ctx, a, cause) {
		return
	}
	if a.node.Kind().IsConversational() && w.notifier != nil {
		w.notify(ctx, a, cause)
	}
}

// retryOrFail reports whether the job failed for good
func (w *Worker) retryOrFail(ctx context.Context, a *attempt, cause error) bool {
	msg := cause.Error()
	if IsPermanent(cause) || a.job.Exhausted() {
		if err := w.queue.Fail(ctx, a.job, msg); err != nil {
			a.log.Error("failing job", "error", err)
		}
		w.jobs.Track(ctx, a.job, job.Failed, msg)
		w.publish(a, Event{Kind: JobFailed, Error: msg, Duration: w.now().Sub(a.start)})
		a.log.Error("node failed", "error", msg, "permanent", IsPermanent(cause))
		w.finishExecution(ctx, a, workflow.ExecutionFailed, fmt.Sprintf("node %s: %s", a.job.Payload.NodeID, msg))
		return true
	}

	delay := a.job.Options.Backoff.Next(a.job.Attempt)
	if err := w.queue.Retry(ctx, a.job, delay, msg); err != nil {
		a.log.Error("scheduling retry", "error", err)
	}
	w.jobs.Track(ctx, a.job, job.Delayed, msg)
	w.publish(a, Event{Kind: JobRetrying, Error: msg, Duration: w.now().Sub(a.start)})
	a.log.Warn("node attempt failed, retrying", "error", msg, "delay", delay.String(), "max_attempts", a.job.Attempts())
	return false
}

// abandon handles a job whose definition or node is gone: nothing to run, nothing to dispatch
func (w *Worker) abandon(ctx context.Context, a *attempt, cause error) {
	p := a.job.Payload
	a.log.Error("workflow integrity error", "workflow_id", p.WorkflowID, "version", p.WorkflowVersion, "error", cause)

	err := w.store.SaveNodeExecution(ctx, workflow.NodeExecution{
		ID:          a.job.ID,
		ExecutionID: p.ExecutionID,
		NodeID:      p.NodeID,
		NodeType:    p.NodeType,
		Status:      workflow.NodeFailed,
		Attempt:     a.job.Attempt,
		Input:       p.Input,
		Error:       cause.Error(),
		StartedAt:   a.start.UTC(),
		FinishedAt:  w.now().UTC(),
		Settled:     true,
	})
	if err != nil {
		a.log.Warn("recording integrity error", "error", err)
	}
	pending, err := w.store.SettleJob(ctx, p.ExecutionID, a.job.ID)
	if err != nil {
		a.log.Warn("settling abandoned node", "error", err)
	} else if pending <= 0 {
		w.finishExecution(ctx, a, workflow.ExecutionCompleted, "")
	}
	if err := w.queue.Complete(ctx, a.job); err != nil {
		a.log.Error("acknowledging job", "error", err)
	}
	w.jobs.Track(ctx, a.job, job.Completed, cause.Error())
	w.publish(a, Event{Kind: JobCompleted, Error: cause.Error(), Duration: w.now().Sub(a.start)})
}

func (w *Worker) finishExecution(ctx context.Context, a *attempt, status workflow.ExecutionStatus, errMsg string) {
	id := a.job.Payload.ExecutionID
	if err := w.store.FinishExecution(ctx, id, status, errMsg, w.now().UTC()); err != nil {
		a.log.Error("finishing execution", "status", status.String(), "error", err)
		return
	}
	w.publish(a, Event{Kind: ExecutionFinished, Status: status.String(), Error: errMsg})
	a.log.Info("execution finished", "status", status.String())
}

func (w *Worker) notify(ctx context.Context, a *attempt, cause error) {
	p := a.job.Payload
	nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	err := w.notifier.Notify(nctx, Failure{
		ExecutionID: p.ExecutionID,
		WorkflowID:  p.WorkflowID,
		TenantID:    p.TenantID,
		NodeID:      a.node.ID,
		NodeType:    a.node.Kind().String(),
		Input:       p.Input,
		Metadata:    p.Metadata,
		Error:       cause.Error(),
	})
	if err != nil {
		a.log.Warn("sending failure notice", "error", err)
	}
}

// publish never blocks; events are dropped while the consumer lags
func (w *Worker) publish(a *attempt, e Event) {
	if w.events == nil {
		return
	}
	p := a.job.Payload
	if e.Queue == "" {
		e.Queue = w.policy.Name
	}
	if e.JobID == "" {
		e.JobID = a.job.ID
	}
	if e.NodeID == "" {
		e.NodeID = p.NodeID
		e.NodeType = p.NodeType
	}
	e.ExecutionID = p.ExecutionID
	e.WorkflowID = p.WorkflowID
	e.TenantID = p.TenantID
	e.Attempt = a.job.Attempt
	e.At = w.now()
	select {
	case w.events <- e:
	default:
		w.dropped.Add(1)
	}
}

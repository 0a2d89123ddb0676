package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/marcelsud/webhook-flow/trigger"
)

const (
	DefaultInterval = 10 * time.Second
	defaultBatch    = 100
	eventType       = "schedule"
)

var executionNamespace = uuid.MustParse("1b9e0c47-5f2d-4e8a-b6c3-93d7a2e45f18")

// Starter starts executions; trigger.Service implements it
type Starter interface {
	Start(ctx context.Context, req trigger.Request) (trigger.Result, error)
}

// Scheduler polls the store on a fixed interval and starts due executions
type Scheduler struct {
	store    Store
	starter  Starter
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
	running  atomic.Bool
	ticks    sync.WaitGroup
}

// New creates a scheduler; a non-positive interval uses DefaultInterval
func New(store Store, starter Starter, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:    store,
		starter:  starter,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// ExecutionID derives the execution id of one firing, so a replayed firing is started once
func ExecutionID(eventID string, scheduledFor time.Time) string {
	return uuid.NewSHA1(executionNamespace, []byte(eventID+"@"+scheduledFor.UTC().Format(time.RFC3339Nano))).String()
}

// Add validates the event, computes its first run and stores it
func (s *Scheduler) Add(ctx context.Context, ev Event) (Event, error) {
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	if ev.Status == 0 {
		ev.Status = Active
	}
	next, err := NextRun(ev.Schedule, ev.Timezone, s.now())
	if err != nil {
		return Event{}, err
	}
	ev.NextRun = next
	if err := s.store.Save(ctx, ev); err != nil {
		return Event{}, fmt.Errorf("saving scheduled event: %w", err)
	}
	return ev, nil
}

/* Run initializes missing next runs, ticks once immediately and then on every interval
 * A tick that is still running when the next one is due causes that one to be skipped
 */
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval.String())
	if err := s.InitNextRuns(ctx); err != nil {
		s.logger.Error("initializing next runs", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tryTick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.ticks.Wait()
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.tryTick(ctx)
		}
	}
}

func (s *Scheduler) tryTick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous tick still running, skipping")
		return
	}
	s.ticks.Add(1)
	go func() {
		defer s.ticks.Done()
		defer s.running.Store(false)
		s.Tick(ctx)
	}()
}

// InitNextRuns computes the next run of events stored without one
func (s *Scheduler) InitNextRuns(ctx context.Context) error {
	events, err := s.store.Uninitialized(ctx)
	if err != nil {
		return fmt.Errorf("listing uninitialized events: %w", err)
	}
	now := s.now()
	for _, ev := range events {
		next, err := NextRun(ev.Schedule, ev.Timezone, now)
		if err != nil {
			s.markError(ctx, ev, err)
			continue
		}
		if err := s.store.SetNextRun(ctx, ev.ID, next); err != nil {
			s.logger.Error("setting next run", "schedule_id", ev.ID, "error", err)
		}
	}
	return nil
}

// Tick fires every due event once and returns how many executions were started
func (s *Scheduler) Tick(ctx context.Context) int {
	now := s.now().UTC()
	due, err := s.store.Due(ctx, now, defaultBatch)
	if err != nil {
		s.logger.Error("loading due events", "error", err)
		return 0
	}
	started := 0
	for _, ev := range due {
		if s.fire(ctx, ev, now) {
			started++
		}
	}
	return started
}

func (s *Scheduler) fire(ctx context.Context, ev Event, now time.Time) bool {
	log := s.logger.With("schedule_id", ev.ID, "workflow_id", ev.WorkflowID, "tenant_id", ev.TenantID)

	next, err := NextRun(ev.Schedule, ev.Timezone, now)
	if err != nil {
		s.markError(ctx, ev, err)
		return false
	}
	claimed, err := s.store.Claim(ctx, ev.ID, now, next)
	if err != nil {
		log.Error("claiming event", "error", err)
		return false
	}
	if !claimed {
		return false
	}

	input := make(map[string]any, len(ev.Input)+2)
	for k, v := range ev.Input {
		input[k] = v
	}
	input["schedule_id"] = ev.ID
	input["scheduled_at"] = ev.NextRun.UTC().Format(time.RFC3339)

	res, err := s.starter.Start(ctx, trigger.Request{
		ExecutionID: ExecutionID(ev.ID, ev.NextRun),
		TenantID:    ev.TenantID,
		WorkflowID:  ev.WorkflowID,
		NodeID:      ev.NodeID,
		Source:      trigger.SourceSchedule,
		EventType:   eventType,
		Input:       input,
		Metadata:    map[string]string{"schedule_id": ev.ID},
	})
	switch {
	case errors.Is(err, trigger.ErrWorkflowDisabled):
		log.Warn("workflow disabled, skipping run", "next_run", next)
		return false
	case err != nil:
		log.Error("starting scheduled execution, retrying next tick", "error", err)
		if rerr := s.store.SetNextRun(ctx, ev.ID, now); rerr != nil {
			log.Error("resetting next run", "error", rerr)
		}
		return false
	case res.Duplicate:
		log.Info("scheduled run already started", "execution_id", res.ExecutionID)
		return false
	}
	log.Info("scheduled execution started", "execution_id", res.ExecutionID, "next_run", next)
	return true
}

func (s *Scheduler) markError(ctx context.Context, ev Event, cause error) {
	s.logger.Error("invalid schedule", "schedule_id", ev.ID, "schedule", ev.Schedule, "error", cause)
	if err := s.store.SetStatus(ctx, ev.ID, Error, cause.Error()); err != nil {
		s.logger.Error("marking schedule as error", "schedule_id", ev.ID, "error", err)
	}
}

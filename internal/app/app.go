// Package app wires configuration into the stores, queue and services shared by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/marcelsud/webhook-flow/config"
	"github.com/marcelsud/webhook-flow/internal/postgres"
	"github.com/marcelsud/webhook-flow/job"
	jobmemory "github.com/marcelsud/webhook-flow/job/memory"
	jobpostgres "github.com/marcelsud/webhook-flow/job/postgres"
	jobredis "github.com/marcelsud/webhook-flow/job/redis"
	"github.com/marcelsud/webhook-flow/metrics"
	"github.com/marcelsud/webhook-flow/routes"
	"github.com/marcelsud/webhook-flow/scheduler"
	schedmemory "github.com/marcelsud/webhook-flow/scheduler/memory"
	schedpostgres "github.com/marcelsud/webhook-flow/scheduler/postgres"
	"github.com/marcelsud/webhook-flow/trigger"
	"github.com/marcelsud/webhook-flow/webhook"
	whmemory "github.com/marcelsud/webhook-flow/webhook/memory"
	whpostgres "github.com/marcelsud/webhook-flow/webhook/postgres"
	"github.com/marcelsud/webhook-flow/worker"
	"github.com/marcelsud/webhook-flow/workflow"
	wfmemory "github.com/marcelsud/webhook-flow/workflow/memory"
	wfpostgres "github.com/marcelsud/webhook-flow/workflow/postgres"
)

/* App holds everything a process needs to ingest, schedule and execute workflows
 * Stores are Postgres when DATABASE_URL is set and in-memory otherwise
 */
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Workflows     workflow.Repository
	Registrations webhook.RegistrationStore
	Schedules     scheduler.Store
	Provenance    job.ProvenanceStore
	Queue         job.Repository
	Jobs          *job.Dispatcher
	Router        *routes.Router
	Policies      *routes.Loader
	Trigger       *trigger.Service
	Collector     metrics.Collector
	Heartbeats    worker.Heartbeater

	redis   *jobredis.Repository
	closers []func(context.Context) error
}

// Open builds the App; consumerName names this process in the redis consumer groups
func Open(ctx context.Context, cfg *config.Config, consumerName string, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger}
	if err := a.openStores(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if err := a.openQueue(consumerName); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if err := a.loadPolicies(); err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Jobs = job.NewDispatcher(a.Queue, a.Provenance, logger)
	a.Trigger = trigger.NewService(a.Workflows, a.Workflows, a.Router, a.Policies, a.Jobs, logger)
	return a, nil
}

func (a *App) openStores(ctx context.Context) error {
	if a.Config.DatabaseURL == "" {
		a.Logger.Warn("DATABASE_URL not set, using in-memory stores")
		a.Workflows = wfmemory.NewRepository()
		a.Registrations = whmemory.NewRepository()
		a.Schedules = schedmemory.NewStore()
		a.Provenance = jobmemory.NewProvenanceStore()
		return nil
	}
	pool, err := postgres.NewPool(ctx, a.Config.DatabaseURL)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func(context.Context) error {
		pool.Close()
		return nil
	})
	if err := postgres.Migrate(ctx, pool); err != nil {
		return err
	}
	a.Workflows = wfpostgres.NewRepository(pool)
	a.Registrations = whpostgres.NewRepository(pool)
	a.Schedules = schedpostgres.NewStore(pool)
	a.Provenance = jobpostgres.NewProvenanceStore(pool)
	return nil
}

func (a *App) openQueue(consumerName string) error {
	if a.Memory() {
		a.Logger.Warn("QUEUE_DRIVER=memory, jobs are lost on restart and cannot be shared between processes")
		q := jobmemory.NewQueue()
		hb := metrics.NewHeartbeats(0)
		a.Queue = q
		a.Heartbeats = hb
		a.Collector = metrics.NewMemoryCollector(q, hb)
		a.closers = append(a.closers, q.Close)
		return nil
	}
	repo, err := jobredis.NewRepository(a.Config.GetRedisAddr(), a.Config.RedisPassword, a.Config.RedisDB,
		jobredis.WithConsumerName(consumerName))
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	a.redis = repo
	a.Queue = repo
	a.Heartbeats = repo
	a.closers = append(a.closers, repo.Close)
	return nil
}

func (a *App) loadPolicies() error {
	a.Router = routes.NewRouter()
	a.Policies = routes.NewLoader(a.Config)
	file := a.Config.GetQueuesFile()
	if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
		a.Logger.Warn("queues file not found, using default policies", "file", file)
	} else if err := a.Policies.Load(file); err != nil {
		return err
	}
	if err := a.Policies.Apply(a.Router); err != nil {
		return fmt.Errorf("applying queue overrides: %w", err)
	}
	if a.redis != nil {
		a.Collector = metrics.NewRedisCollector(a.redis.GetClient(), a.QueueNames())
	}
	return nil
}

// Memory reports whether jobs live in process memory
func (a *App) Memory() bool {
	return a.Config.GetQueueDriver() == "memory"
}

// QueueNames lists every queue a worker process serves
func (a *App) QueueNames() []string {
	return a.Policies.Queues(a.Router)
}

// Pool builds one worker per queue; events may be nil
func (a *App) Pool(workerID string, events chan<- worker.Event) (*worker.Pool, error) {
	names := a.QueueNames()
	policies := make([]routes.Queue, 0, len(names))
	for _, name := range names {
		policies = append(policies, a.Policies.Policy(name))
	}

	executors := worker.NewExecutors()
	registerExecutors(executors, a.Config)

	opts := []worker.Option{
		worker.WithID(workerID),
		worker.WithLogger(a.Logger),
		worker.WithMaxHops(a.Config.GetMaxHops()),
		worker.WithHaltDisabled(a.Config.HaltDisabled),
		worker.WithHeartbeat(a.Heartbeats, 0),
	}
	if events != nil {
		opts = append(opts, worker.WithEvents(events))
	}
	if n := notifier(a.Config); n != nil {
		opts = append(opts, worker.WithNotifier(n))
	}
	return worker.Build(policies, worker.Deps{
		Queue:      a.Queue,
		Jobs:       a.Jobs,
		Store:      a.Workflows,
		Dispatcher: a.Trigger,
		Executors:  executors,
		Resolver:   workflow.NewResolver(a.Logger),
	}, opts...)
}

// Scheduler creates the scheduler over the configured store
func (a *App) Scheduler() *scheduler.Scheduler {
	return scheduler.New(a.Schedules, a.Trigger, a.Config.GetSchedulerInterval(), a.Logger)
}

// Close releases resources in reverse order of acquisition
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewLogger returns a JSON slog logger at LOG_LEVEL
func NewLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}

package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marcelsud/webhook-flow/worker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	defaultFailureThreshold = 10
	defaultQueueThreshold   = 1000
	defaultWindow           = 5 * time.Minute
	defaultPollInterval     = 15 * time.Second
	sendTimeout             = 5 * time.Second
)

// Thresholds configures when the monitor raises alerts
type Thresholds struct {
	// Failures is the number of failed jobs on one queue within Window
	Failures int
	// QueueLength is the backlog of one queue that raises an alert
	QueueLength int64
	// Window bounds failure counting and is the minimum gap between two alerts of the same kind and queue
	Window time.Duration
}

func (t Thresholds) withDefaults() Thresholds {
	if t.Failures < 1 {
		t.Failures = defaultFailureThreshold
	}
	if t.QueueLength < 1 {
		t.QueueLength = defaultQueueThreshold
	}
	if t.Window <= 0 {
		t.Window = defaultWindow
	}
	return t
}

type MonitorOption func(*Monitor)

// WithMeter records lifecycle counters on the meter; the default is a no-op meter
func WithMeter(m metric.Meter) MonitorOption {
	return func(mo *Monitor) { mo.meter = m }
}

// WithCollector makes Run poll queue lengths against the backlog threshold
func WithCollector(c Collector, interval time.Duration) MonitorOption {
	return func(mo *Monitor) {
		mo.collector = c
		if interval > 0 {
			mo.pollEvery = interval
		}
	}
}

func WithLogger(l *slog.Logger) MonitorOption {
	return func(mo *Monitor) { mo.logger = l }
}

/* Monitor consumes worker lifecycle events, counts them and raises threshold alerts
 * Failures are kept per queue in a sliding window
 */
type Monitor struct {
	sink       AlertSink
	thresholds Thresholds
	meter      metric.Meter
	collector  Collector
	pollEvery  time.Duration
	logger     *slog.Logger
	now        func() time.Time

	jobs       metric.Int64Counter
	executions metric.Int64Counter
	duration   metric.Float64Histogram

	mu       sync.Mutex
	failures map[string][]time.Time
	lastSent map[string]time.Time
}

func NewMonitor(sink AlertSink, thresholds Thresholds, opts ...MonitorOption) (*Monitor, error) {
	m := &Monitor{
		sink:       sink,
		thresholds: thresholds.withDefaults(),
		meter:      noop.NewMeterProvider().Meter(meterName),
		pollEvery:  defaultPollInterval,
		logger:     slog.Default(),
		now:        time.Now,
		failures:   make(map[string][]time.Time),
		lastSent:   make(map[string]time.Time),
	}
	for _, o := range opts {
		o(m)
	}
	if m.sink == nil {
		m.sink = NewLogSink(m.logger)
	}

	var err error
	m.jobs, err = m.meter.Int64Counter(
		"workflow.jobs",
		metric.WithDescription("Job lifecycle transitions by queue and event"),
		metric.WithUnit("{jobs}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating jobs counter: %w", err)
	}
	m.executions, err = m.meter.Int64Counter(
		"workflow.executions.finished",
		metric.WithDescription("Executions reaching a terminal status"),
		metric.WithUnit("{executions}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating executions counter: %w", err)
	}
	m.duration, err = m.meter.Float64Histogram(
		"workflow.job.duration",
		metric.WithDescription("Time from job start to its outcome"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	return m, nil
}

// Run consumes events until ctx is cancelled or the channel is closed
func (m *Monitor) Run(ctx context.Context, events <-chan worker.Event) error {
	var poll <-chan time.Time
	if m.collector != nil {
		ticker := time.NewTicker(m.pollEvery)
		defer ticker.Stop()
		poll = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			m.Observe(ctx, e)
		case <-poll:
			m.CheckQueues(ctx)
		}
	}
}

// Observe records one event and raises a failure alert when the window fills up
func (m *Monitor) Observe(ctx context.Context, e worker.Event) {
	switch e.Kind {
	case worker.ExecutionFinished:
		m.executions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", e.Status)))
		return
	case worker.JobCompleted, worker.JobFailed, worker.JobRetrying:
		m.duration.Record(ctx, e.Duration.Seconds(), metric.WithAttributes(
			attribute.String("queue", e.Queue),
			attribute.String("event", e.Kind.String()),
		))
	}
	m.jobs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("queue", e.Queue),
		attribute.String("event", e.Kind.String()),
	))

	if e.Kind != worker.JobFailed {
		return
	}
	count := m.recordFailure(e.Queue)
	if count < m.thresholds.Failures {
		return
	}
	m.raise(ctx, Alert{
		Kind:      FailureThreshold,
		Queue:     e.Queue,
		Value:     int64(count),
		Threshold: int64(m.thresholds.Failures),
		Window:    m.thresholds.Window.String(),
		Message:   fmt.Sprintf("%d jobs failed on %s within %s, last: %s", count, e.Queue, m.thresholds.Window, e.Error),
	})
}

func (m *Monitor) recordFailure(queue string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-m.thresholds.Window)
	kept := m.failures[queue][:0]
	for _, at := range m.failures[queue] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	kept = append(kept, now)
	m.failures[queue] = kept
	return len(kept)
}

// CheckQueues compares every queue length against the backlog threshold
func (m *Monitor) CheckQueues(ctx context.Context) {
	if m.collector == nil {
		return
	}
	lengths, err := m.collector.GetQueueLengths(ctx)
	if err != nil {
		m.logger.Error("reading queue lengths", "error", err)
		return
	}
	for queue, n := range lengths {
		if n < m.thresholds.QueueLength {
			continue
		}
		m.raise(ctx, Alert{
			Kind:      QueueBacklog,
			Queue:     queue,
			Value:     n,
			Threshold: m.thresholds.QueueLength,
			Message:   fmt.Sprintf("%d jobs waiting on %s", n, queue),
		})
	}
}

func (m *Monitor) raise(ctx context.Context, a Alert) {
	key := string(a.Kind) + "/" + a.Queue
	m.mu.Lock()
	now := m.now()
	if last, ok := m.lastSent[key]; ok && now.Sub(last) < m.thresholds.Window {
		m.mu.Unlock()
		return
	}
	m.lastSent[key] = now
	m.mu.Unlock()

	a.At = now.UTC()
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()
	if err := m.sink.Send(sctx, a); err != nil {
		m.logger.Error("sending alert", "kind", string(a.Kind), "queue", a.Queue, "error", err)
	}
}

package metrics

import (
	"context"
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "webhook-flow"

// OTelExporter exports collector state as OpenTelemetry gauges in Prometheus format
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	collector     Collector
	registry      *promclient.Registry

	meter              metric.Meter
	queueLengthGauge   metric.Int64ObservableGauge
	statusCountGauge   metric.Int64ObservableGauge
	throughputGauge    metric.Int64ObservableGauge
	activeWorkersGauge metric.Int64ObservableGauge
}

/* NewOTelExporter creates the exporter and installs its meter provider globally
 * A nil registry registers with the default Prometheus registerer
 */
func NewOTelExporter(collector Collector, registry *promclient.Registry) (*OTelExporter, error) {
	var opts []prometheus.Option
	if registry != nil {
		opts = append(opts, prometheus.WithRegisterer(registry))
	}
	exporter, err := prometheus.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	meter := meterProvider.Meter(
		meterName,
		metric.WithInstrumentationVersion("1.0.0"),
	)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		collector:     collector,
		registry:      registry,
		meter:         meter,
	}
	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}
	return oe, nil
}

// Meter is shared with the Monitor so its counters land on the same endpoint
func (oe *OTelExporter) Meter() metric.Meter {
	return oe.meter
}

func (oe *OTelExporter) registerInstruments() error {
	var err error

	oe.queueLengthGauge, err = oe.meter.Int64ObservableGauge(
		"workflow.queue.length",
		metric.WithDescription("Number of unfinished jobs per queue"),
		metric.WithUnit("{jobs}"),
		metric.WithInt64Callback(oe.observeQueueLengths),
	)
	if err != nil {
		return fmt.Errorf("creating queue length gauge: %w", err)
	}

	oe.statusCountGauge, err = oe.meter.Int64ObservableGauge(
		"workflow.job.status.count",
		metric.WithDescription("Number of retained jobs by status"),
		metric.WithUnit("{jobs}"),
		metric.WithInt64Callback(oe.observeStatusCounts),
	)
	if err != nil {
		return fmt.Errorf("creating status count gauge: %w", err)
	}

	oe.throughputGauge, err = oe.meter.Int64ObservableGauge(
		"workflow.job.throughput",
		metric.WithDescription("Number of jobs completed over time window"),
		metric.WithUnit("{jobs}"),
		metric.WithInt64Callback(oe.observeThroughput),
	)
	if err != nil {
		return fmt.Errorf("creating throughput gauge: %w", err)
	}

	oe.activeWorkersGauge, err = oe.meter.Int64ObservableGauge(
		"workflow.workers.active",
		metric.WithDescription("Number of live workers per queue"),
		metric.WithUnit("{workers}"),
		metric.WithInt64Callback(oe.observeActiveWorkers),
	)
	if err != nil {
		return fmt.Errorf("creating active workers gauge: %w", err)
	}

	return nil
}

func (oe *OTelExporter) observeQueueLengths(ctx context.Context, observer metric.Int64Observer) error {
	lengths, err := oe.collector.GetQueueLengths(ctx)
	if err != nil {
		return err
	}
	for queue, n := range lengths {
		observer.Observe(n, metric.WithAttributes(attribute.String("queue", queue)))
	}
	return nil
}

func (oe *OTelExporter) observeStatusCounts(ctx context.Context, observer metric.Int64Observer) error {
	counts, err := oe.collector.GetStatusCounts(ctx)
	if err != nil {
		return err
	}
	for status, n := range counts {
		observer.Observe(n, metric.WithAttributes(attribute.String("job.status", status)))
	}
	return nil
}

func (oe *OTelExporter) observeThroughput(ctx context.Context, observer metric.Int64Observer) error {
	tp, err := oe.collector.GetThroughput(ctx)
	if err != nil {
		return err
	}
	observer.Observe(tp.LastMinute, metric.WithAttributes(attribute.String("time.window", "1m")))
	observer.Observe(tp.LastFiveMinutes, metric.WithAttributes(attribute.String("time.window", "5m")))
	observer.Observe(tp.LastFifteenMinutes, metric.WithAttributes(attribute.String("time.window", "15m")))
	return nil
}

func (oe *OTelExporter) observeActiveWorkers(ctx context.Context, observer metric.Int64Observer) error {
	workers, err := oe.collector.GetActiveWorkers(ctx)
	if err != nil {
		return err
	}
	for queue, list := range workers {
		observer.Observe(int64(len(list)), metric.WithAttributes(attribute.String("queue", queue)))
	}
	return nil
}

// Handler serves the Prometheus exposition of every registered instrument
func (oe *OTelExporter) Handler() http.Handler {
	if oe.registry != nil {
		return promhttp.HandlerFor(oe.registry, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}

package app

import (
	"context"

	"github.com/marcelsud/webhook-flow/metrics"
	metricsnats "github.com/marcelsud/webhook-flow/metrics/nats"
)

// Monitor builds the alerting monitor, publishing to NATS when NATS_URL is set and logging otherwise
func (a *App) Monitor(exporter *metrics.OTelExporter, name string) (*metrics.Monitor, error) {
	var sink metrics.AlertSink = metrics.NewLogSink(a.Logger)
	if a.Config.NatsURL != "" {
		nc, err := metricsnats.Connect(a.Config.NatsURL, name, a.Logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error {
			return nc.Drain()
		})
		sink = metricsnats.NewSink(nc, metricsnats.DefaultSubject)
	}

	opts := []metrics.MonitorOption{
		metrics.WithLogger(a.Logger),
		metrics.WithCollector(a.Collector, 0),
	}
	if exporter != nil {
		opts = append(opts, metrics.WithMeter(exporter.Meter()))
	}
	return metrics.NewMonitor(sink, metrics.Thresholds{
		Failures:    a.Config.GetAlertFailureThreshold(),
		QueueLength: a.Config.GetAlertQueueThreshold(),
		Window:      a.Config.GetAlertWindow(),
	}, opts...)
}

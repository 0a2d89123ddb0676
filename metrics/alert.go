package metrics

import (
	"context"
	"log/slog"
	"time"
)

// AlertKind names the threshold that was crossed
type AlertKind string

const (
	FailureThreshold AlertKind = "failure_threshold"
	QueueBacklog     AlertKind = "queue_backlog"
)

type Alert struct {
	Kind      AlertKind `json:"kind"`
	Queue     string    `json:"queue"`
	Value     int64     `json:"value"`
	Threshold int64     `json:"threshold"`
	Window    string    `json:"window,omitempty"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

// AlertSink delivers alerts; metrics/nats publishes them, LogSink writes them to the log
type AlertSink interface {
	Send(ctx context.Context, a Alert) error
}

type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(ctx context.Context, a Alert) error {
	s.logger.WarnContext(ctx, "alert",
		"kind", string(a.Kind),
		"queue", a.Queue,
		"value", a.Value,
		"threshold", a.Threshold,
		"window", a.Window,
		"message", a.Message,
	)
	return nil
}

// Package nats publishes monitor alerts on a NATS subject.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/marcelsud/webhook-flow/metrics"
	natsgo "github.com/nats-io/nats.go"
)

// DefaultSubject is where alerts are published unless configured otherwise
const DefaultSubject = "workflow.alerts"

// Connect dials NATS with unlimited reconnects so a broker restart does not lose the sink
func Connect(url, name string, logger *slog.Logger) (*natsgo.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := natsgo.Connect(url,
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
		natsgo.Name(name),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	logger.Info("nats connected", "url", nc.ConnectedUrl())
	return nc, nil
}

// Publisher is the part of *nats.Conn the sink uses
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Sink implements metrics.AlertSink
type Sink struct {
	pub     Publisher
	subject string
}

func NewSink(pub Publisher, subject string) *Sink {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Sink{pub: pub, subject: subject}
}

func (s *Sink) Send(ctx context.Context, a metrics.Alert) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling alert: %w", err)
	}
	if err := s.pub.Publish(s.subject, data); err != nil {
		return fmt.Errorf("publishing alert: %w", err)
	}
	return nil
}

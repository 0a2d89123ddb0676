package nats_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/marcelsud/webhook-flow/metrics"
	"github.com/marcelsud/webhook-flow/metrics/nats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.subject = subject
	p.data = data
	return p.err
}

func TestSink_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("success - publishes json on the default subject", func(t *testing.T) {
		pub := &fakePublisher{}
		sink := nats.NewSink(pub, "")

		err := sink.Send(ctx, metrics.Alert{Kind: metrics.QueueBacklog, Queue: "api-call", Value: 50, Threshold: 10})
		require.NoError(t, err)

		assert.Equal(t, nats.DefaultSubject, pub.subject)
		var got metrics.Alert
		require.NoError(t, json.Unmarshal(pub.data, &got))
		assert.Equal(t, metrics.QueueBacklog, got.Kind)
		assert.Equal(t, "api-call", got.Queue)
		assert.Equal(t, int64(50), got.Value)
	})

	t.Run("error - publish failure is returned", func(t *testing.T) {
		sink := nats.NewSink(&fakePublisher{err: errors.New("nats: connection closed")}, "ops.alerts")
		err := sink.Send(ctx, metrics.Alert{Kind: metrics.FailureThreshold})
		assert.ErrorContains(t, err, "publishing alert")
	})
}

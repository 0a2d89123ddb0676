package executor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/marcelsud/webhook-flow/webhook/payload"
	"github.com/marcelsud/webhook-flow/webhook/signature"
	"github.com/marcelsud/webhook-flow/worker"
)

const defaultOutboundType = "workflow.node"

var messageNamespace = uuid.MustParse("7d3f6a52-9b1e-4c0d-a8e4-2f5b61c7d930")

/* Webhook serves webhook nodes
 * As the start node of an execution it passes the event through like Trigger.
 * With config "url" it delivers the input as a Standard Webhooks envelope, signed when config
 * "secret" holds a whsec_ or raw secret. The message id is stable across retries of the same node
 */
type Webhook struct {
	client *http.Client
	now    func() time.Time
}

func NewWebhook(client *http.Client) *Webhook {
	return &Webhook{client: defaultClient(client), now: time.Now}
}

func (w *Webhook) Execute(ctx context.Context, req worker.Request) (map[string]any, error) {
	url := configString(req.Node.Config, "url")
	if url == "" {
		return Trigger{}.Execute(ctx, req)
	}
	eventType := configString(req.Node.Config, "event_type")
	if eventType == "" {
		eventType = defaultOutboundType
	}
	env, err := payload.New(eventType, req.Input)
	if err != nil {
		return nil, worker.Permanent(fmt.Errorf("webhook node %s: %w", req.Node.ID, err))
	}
	body, err := env.Bytes()
	if err != nil {
		return nil, worker.Permanent(fmt.Errorf("encoding envelope: %w", err))
	}

	msgID := "msg_" + uuid.NewSHA1(messageNamespace, []byte(req.ExecutionID+"/"+req.Node.ID)).String()
	ts := w.now()
	header := http.Header{}
	if raw := configString(req.Node.Config, "secret"); raw != "" {
		secret, err := signature.SecretFromString(raw)
		if err != nil {
			return nil, worker.Permanent(fmt.Errorf("webhook node %s secret: %w", req.Node.ID, err))
		}
		header, err = signature.Headers(secret, msgID, ts, body)
		if err != nil {
			return nil, fmt.Errorf("signing delivery: %w", err)
		}
	} else {
		header.Set(signature.HeaderID, msgID)
		header.Set(signature.HeaderTimestamp, fmt.Sprintf("%d", ts.Unix()))
	}

	resp, err := send(ctx, w.client, http.MethodPost, url, header, body)
	if err != nil {
		return nil, err
	}
	if err := statusError(resp); err != nil {
		return nil, err
	}
	return map[string]any{
		"status":     resp.Status,
		"webhook_id": msgID,
		"event_type": eventType,
	}, nil
}

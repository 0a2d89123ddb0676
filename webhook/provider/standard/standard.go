// Package standard adapts senders that follow the Standard Webhooks specification.
package standard

import (
	"net/http"
	"net/url"
	"time"

	"github.com/marcelsud/webhook-flow/webhook"
	"github.com/marcelsud/webhook-flow/webhook/payload"
	"github.com/marcelsud/webhook-flow/webhook/signature"
)

const Provider = "standard"

type Adapter struct {
	tolerance time.Duration
	now       func() time.Time
}

func New() *Adapter {
	return &Adapter{tolerance: signature.DefaultTolerance, now: time.Now}
}

// NewWithClock is used by tests that sign requests with fixed timestamps
func NewWithClock(now func() time.Time) *Adapter {
	return &Adapter{tolerance: signature.DefaultTolerance, now: now}
}

func (a *Adapter) Provider() string {
	return Provider
}

// HandleChallenge always reports no challenge; Standard Webhooks has no handshake
func (a *Adapter) HandleChallenge(query url.Values, body []byte, headers http.Header) webhook.Challenge {
	return webhook.Challenge{}
}

// VerifySignature accepts whsec_ secrets and raw shared secrets
func (a *Adapter) VerifySignature(body []byte, headers http.Header, secret string) bool {
	s, err := signature.SecretFromString(secret)
	if err != nil {
		return false
	}
	return signature.VerifyRequest(s, headers, body, a.now(), a.tolerance) == nil
}

// Normalize reads the {"type","timestamp","data"} envelope; the webhook-id header is the delivery id
func (a *Adapter) Normalize(raw []byte, headers http.Header, tenantID string) webhook.Event {
	event := webhook.UnknownFrom(Provider, tenantID, raw, headers)
	event.ID = headers.Get(signature.HeaderID)

	env, err := payload.Parse(raw)
	if err != nil {
		return event
	}
	event.Type = env.Type
	event.Timestamp = env.Timestamp.UTC()
	event.Data = env.DataMap()
	if id, ok := event.Data["customer_id"].(string); ok {
		event.CustomerID = id
	}
	return event
}

package webhook

import (
	"net/http"
	"strings"
	"time"
)

// UnknownEvent is the event type used when a payload cannot be classified
const UnknownEvent = "unknown"

/* Event is the canonical shape every provider payload is normalized into
 * Uses value semantics as it represents data, not behavior
 */
type Event struct {
	// ID is the provider delivery id when one exists; used to detect redeliveries
	ID         string            `json:"id,omitempty"`
	Type       string            `json:"type"`
	TenantID   string            `json:"tenant_id"`
	CustomerID string            `json:"customer_id,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Provider   string            `json:"provider"`
	Data       map[string]any    `json:"data"`
	Raw        []byte            `json:"-"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// UnknownFrom builds the fallback event for payloads an adapter cannot read
func UnknownFrom(provider, tenantID string, raw []byte, headers http.Header) Event {
	return Event{
		Type:      UnknownEvent,
		TenantID:  tenantID,
		Timestamp: time.Now().UTC(),
		Provider:  provider,
		Data:      map[string]any{},
		Raw:       raw,
		Metadata:  HeaderSubset(headers),
	}
}

// Input returns the map handed to the start node of an execution
func (e Event) Input() map[string]any {
	data := e.Data
	if data == nil {
		data = map[string]any{}
	}
	return map[string]any{
		"event_type":  e.Type,
		"provider":    e.Provider,
		"tenant_id":   e.TenantID,
		"customer_id": e.CustomerID,
		"timestamp":   e.Timestamp.Format(time.RFC3339Nano),
		"data":        data,
	}
}

// auditHeaders are kept on the event; signatures and auth headers are not
var auditHeaders = []string{
	"Content-Type",
	"User-Agent",
	"X-Forwarded-For",
	"X-Request-Id",
	"X-Slack-Request-Timestamp",
	"X-Slack-Retry-Num",
	"X-Slack-Retry-Reason",
	"Webhook-Id",
	"Webhook-Timestamp",
}

// HeaderSubset copies the audit relevant headers, lowercasing their names
func HeaderSubset(headers http.Header) map[string]string {
	out := make(map[string]string)
	for _, name := range auditHeaders {
		if v := headers.Get(name); v != "" {
			out[strings.ToLower(name)] = v
		}
	}
	return out
}

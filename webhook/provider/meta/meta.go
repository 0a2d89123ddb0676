// Package meta adapts Facebook Messenger, Instagram and WhatsApp Cloud API webhooks.
package meta

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/marcelsud/webhook-flow/webhook"
	"github.com/ohler55/ojg/jp"
)

const (
	Provider = "meta"

	SignatureHeader = "X-Hub-Signature-256"
	signaturePrefix = "sha256="
)

// Event types produced by Normalize
const (
	EventMessage       = "message"
	EventPostback      = "postback"
	EventMessageStatus = "message_status"
)

var (
	messagingPath = jp.MustParseString("$.entry[0].messaging[0]")
	changePath    = jp.MustParseString("$.entry[0].changes[0].value")
	entryIDPath   = jp.MustParseString("$.entry[0].id")

	// every item Meta may batch into one delivery
	batchPaths = []jp.Expr{
		jp.MustParseString("$.entry[*].messaging[*]"),
		jp.MustParseString("$.entry[*].changes[*].value.messages[*]"),
		jp.MustParseString("$.entry[*].changes[*].value.statuses[*]"),
	}
)

// BatchSizeKey is the metadata key holding how many items the delivery carried
const BatchSizeKey = "batch_size"

// Adapter handles every Graph API product that posts an "object"/"entry" envelope
type Adapter struct {
	// VerifyToken, when set, must match hub.verify_token during the subscription handshake
	VerifyToken string
	provider    string
}

// New creates the adapter registered under "meta"
func New(verifyToken string) *Adapter {
	return &Adapter{VerifyToken: verifyToken, provider: Provider}
}

// NewAlias registers the same adapter under another id, e.g. "facebook" or "whatsapp"
func NewAlias(provider, verifyToken string) *Adapter {
	return &Adapter{VerifyToken: verifyToken, provider: strings.ToLower(provider)}
}

func (a *Adapter) Provider() string {
	return a.provider
}

/* HandleChallenge answers the subscription handshake
 * Meta sends hub.mode, hub.challenge and hub.verify_token in the query; some relays forward them as JSON
 */
func (a *Adapter) HandleChallenge(query url.Values, body []byte, headers http.Header) webhook.Challenge {
	mode, challenge, token := query.Get("hub.mode"), query.Get("hub.challenge"), query.Get("hub.verify_token")
	if mode == "" && len(body) > 0 {
		var b struct {
			Mode        string `json:"mode"`
			Challenge   string `json:"challenge"`
			VerifyToken string `json:"verify_token"`
			HubMode     string `json:"hub.mode"`
			HubChall    string `json:"hub.challenge"`
			HubToken    string `json:"hub.verify_token"`
		}
		if err := json.Unmarshal(body, &b); err == nil {
			mode, challenge, token = first(b.Mode, b.HubMode), first(b.Challenge, b.HubChall), first(b.VerifyToken, b.HubToken)
		}
	}
	if mode != "subscribe" || challenge == "" {
		return webhook.Challenge{}
	}
	if a.VerifyToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(a.VerifyToken)) != 1 {
		return webhook.Challenge{IsChallenge: true, Denied: true}
	}
	return webhook.Challenge{IsChallenge: true, Response: challenge, ContentType: "text/plain"}
}

// VerifySignature checks X-Hub-Signature-256, an HMAC-SHA256 of the raw body keyed by the app secret
func (a *Adapter) VerifySignature(payload []byte, headers http.Header, secret string) bool {
	header := headers.Get(SignatureHeader)
	if header == "" || secret == "" || !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return subtle.ConstantTimeCompare(got, mac.Sum(nil)) == 1
}

/* Normalize reads the first messaging item or change of the first entry
 * Meta can batch several entries and messages into one POST; only the first becomes the event.
 * Metadata[BatchSizeKey] records the item count when it is above one, and Raw keeps the rest
 */
func (a *Adapter) Normalize(raw []byte, headers http.Header, tenantID string) webhook.Event {
	event := webhook.UnknownFrom(a.provider, tenantID, raw, headers)

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return event
	}
	if obj, _ := doc["object"].(string); obj != "" {
		event.Metadata["object"] = obj
	}
	if id, ok := firstString(entryIDPath, doc); ok {
		event.Metadata["entry_id"] = id
	}
	if n := batchSize(doc); n > 1 {
		event.Metadata[BatchSizeKey] = strconv.Itoa(n)
	}

	if m, ok := firstMap(messagingPath, doc); ok {
		normalizeMessaging(&event, m)
		return event
	}
	if v, ok := firstMap(changePath, doc); ok {
		normalizeWhatsApp(&event, v)
	}
	return event
}

func normalizeMessaging(event *webhook.Event, m map[string]any) {
	event.CustomerID = nestedString(m, "sender", "id")
	if ts, ok := toInt64(m["timestamp"]); ok && ts > 0 {
		event.Timestamp = time.UnixMilli(ts).UTC()
	}
	switch {
	case m["message"] != nil:
		msg, _ := m["message"].(map[string]any)
		event.Type = EventMessage
		event.ID = nestedString(m, "message", "mid")
		event.Data = map[string]any{
			"text":         msg["text"],
			"attachments":  msg["attachments"],
			"sender_id":    event.CustomerID,
			"recipient_id": nestedString(m, "recipient", "id"),
		}
	case m["postback"] != nil:
		pb, _ := m["postback"].(map[string]any)
		event.Type = EventPostback
		event.ID = nestedString(m, "postback", "mid")
		event.Data = map[string]any{
			"payload":      pb["payload"],
			"title":        pb["title"],
			"sender_id":    event.CustomerID,
			"recipient_id": nestedString(m, "recipient", "id"),
		}
	case m["delivery"] != nil || m["read"] != nil:
		event.Type = EventMessageStatus
		status := "delivered"
		if m["read"] != nil {
			status = "read"
		}
		event.Data = map[string]any{"status": status, "sender_id": event.CustomerID}
	}
}

func normalizeWhatsApp(event *webhook.Event, v map[string]any) {
	if msgs, ok := v["messages"].([]any); ok && len(msgs) > 0 {
		msg, _ := msgs[0].(map[string]any)
		event.Type = EventMessage
		event.ID, _ = msg["id"].(string)
		event.CustomerID, _ = msg["from"].(string)
		if ts, ok := toInt64(msg["timestamp"]); ok && ts > 0 {
			event.Timestamp = time.Unix(ts, 0).UTC()
		}
		event.Data = map[string]any{
			"text":            nestedString(msg, "text", "body"),
			"message_type":    msg["type"],
			"sender_id":       event.CustomerID,
			"phone_number_id": nestedString(v, "metadata", "phone_number_id"),
		}
		return
	}
	if statuses, ok := v["statuses"].([]any); ok && len(statuses) > 0 {
		st, _ := statuses[0].(map[string]any)
		event.Type = EventMessageStatus
		event.CustomerID, _ = st["recipient_id"].(string)
		event.Data = map[string]any{
			"status":     st["status"],
			"message_id": st["id"],
		}
	}
}

func batchSize(doc any) int {
	n := 0
	for _, x := range batchPaths {
		n += len(x.Get(doc))
	}
	return n
}

func firstMap(x jp.Expr, doc any) (map[string]any, bool) {
	m, ok := x.First(doc).(map[string]any)
	return m, ok
}

func firstString(x jp.Expr, doc any) (string, bool) {
	s, ok := x.First(doc).(string)
	return s, ok && s != ""
}

func nestedString(m map[string]any, keys ...string) string {
	var cur any = m
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = obj[k]
	}
	s, _ := cur.(string)
	return s
}

// toInt64 accepts JSON numbers and numeric strings; WhatsApp sends timestamps as strings
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Package slack adapts Slack Events API, interactivity and slash command requests.
package slack

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
)

const (
	Provider = "slack"

	SignatureHeader = "X-Slack-Signature"
	TimestampHeader = "X-Slack-Request-Timestamp"
	version         = "v0"

	// MaxSkew rejects replays of captured requests
	MaxSkew = 5 * time.Minute
)

// Event types produced by Normalize besides the inner Events API type
const (
	EventInteraction  = "interaction"
	EventSlashCommand = "slash_command"
)

type Adapter struct {
	now func() time.Time
}

func New() *Adapter {
	return &Adapter{now: time.Now}
}

// NewWithClock is used by tests that sign requests with fixed timestamps
func NewWithClock(now func() time.Time) *Adapter {
	return &Adapter{now: now}
}

func (a *Adapter) Provider() string {
	return Provider
}

// HandleChallenge answers url_verification with the JSON body Slack expects
func (a *Adapter) HandleChallenge(query url.Values, body []byte, headers http.Header) webhook.Challenge {
	if len(body) == 0 {
		return webhook.Challenge{}
	}
	var b struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
	}
	if err := json.Unmarshal(body, &b); err != nil || b.Type != "url_verification" || b.Challenge == "" {
		return webhook.Challenge{}
	}
	resp, _ := json.Marshal(map[string]string{"challenge": b.Challenge})
	return webhook.Challenge{IsChallenge: true, Response: string(resp), ContentType: "application/json"}
}

/* VerifySignature checks v0=HMAC-SHA256("v0:{timestamp}:{body}")
 * Requests whose timestamp is more than five minutes away from now are rejected
 */
func (a *Adapter) VerifySignature(payload []byte, headers http.Header, secret string) bool {
	header, rawTS := headers.Get(SignatureHeader), headers.Get(TimestampHeader)
	if header == "" || rawTS == "" || secret == "" {
		return false
	}
	ts, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		return false
	}
	skew := a.now().Sub(time.Unix(ts, 0))
	if skew > MaxSkew || skew < -MaxSkew {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, version+"="))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(version + ":" + rawTS + ":"))
	mac.Write(payload)
	return subtle.ConstantTimeCompare(got, mac.Sum(nil)) == 1
}

// Sign builds the signature header value for a body; used by tests and local tooling
func Sign(secret string, ts time.Time, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(version + ":" + strconv.FormatInt(ts.Unix(), 10) + ":"))
	mac.Write(body)
	return version + "=" + hex.EncodeToString(mac.Sum(nil))
}

// Normalize handles JSON event callbacks and form encoded interactivity or slash command posts
func (a *Adapter) Normalize(raw []byte, headers http.Header, tenantID string) webhook.Event {
	event := webhook.UnknownFrom(Provider, tenantID, raw, headers)

	if strings.HasPrefix(headers.Get("Content-Type"), "application/x-www-form-urlencoded") {
		form, err := url.ParseQuery(string(raw))
		if err != nil {
			return event
		}
		if p := form.Get("payload"); p != "" {
			normalizeInteraction(&event, []byte(p))
			return event
		}
		if form.Get("command") != "" {
			event.Type = EventSlashCommand
			event.CustomerID = form.Get("user_id")
			event.ID = form.Get("trigger_id")
			event.Data = map[string]any{
				"command":    form.Get("command"),
				"text":       form.Get("text"),
				"channel_id": form.Get("channel_id"),
				"team_id":    form.Get("team_id"),
				"user_id":    form.Get("user_id"),
			}
		}
		return event
	}

	var cb struct {
		Type      string         `json:"type"`
		TeamID    string         `json:"team_id"`
		EventID   string         `json:"event_id"`
		EventTime int64          `json:"event_time"`
		Event     map[string]any `json:"event"`
	}
	if err := json.Unmarshal(raw, &cb); err != nil || cb.Type != "event_callback" || cb.Event == nil {
		return event
	}
	if t, _ := cb.Event["type"].(string); t != "" {
		event.Type = t
	}
	event.ID = cb.EventID
	event.CustomerID, _ = cb.Event["user"].(string)
	if cb.EventTime > 0 {
		event.Timestamp = time.Unix(cb.EventTime, 0).UTC()
	}
	event.Data = cb.Event
	event.Metadata["team_id"] = cb.TeamID
	return event
}

func normalizeInteraction(event *webhook.Event, payload []byte) {
	var p map[string]any
	if err := json.Unmarshal(payload, &p); err != nil {
		return
	}
	event.Type = EventInteraction
	if user, ok := p["user"].(map[string]any); ok {
		event.CustomerID, _ = user["id"].(string)
	}
	event.ID, _ = p["trigger_id"].(string)
	event.Data = p
}

package payload

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// event types are full-stop delimited, e.g. "invoice.paid"
var eventTypePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+(\.[a-zA-Z0-9_]+)*$`)

// Envelope is the Standard Webhooks body: {"type", "timestamp", "data"}
type Envelope struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func (e Envelope) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("type is required")
	}
	if !eventTypePattern.MatchString(e.Type) {
		return fmt.Errorf("type must be hierarchical and contain only [a-zA-Z0-9_.]: %s", e.Type)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	if len(e.Data) == 0 {
		return fmt.Errorf("data is required")
	}
	if !json.Valid(e.Data) {
		return fmt.Errorf("data must be valid JSON")
	}
	return nil
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	type alias Envelope
	return json.Marshal(&struct {
		Timestamp string `json:"timestamp"`
		*alias
	}{
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		alias:     (*alias)(&e),
	})
}

// UnmarshalJSON leaves Timestamp zero when the field is absent
func (e *Envelope) UnmarshalJSON(data []byte) error {
	type alias Envelope
	aux := &struct {
		Timestamp string `json:"timestamp"`
		*alias
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("unmarshaling envelope: %w", err)
	}
	if aux.Timestamp == "" {
		e.Timestamp = time.Time{}
		return nil
	}
	ts, err := time.Parse(time.RFC3339Nano, aux.Timestamp)
	if err != nil {
		return fmt.Errorf("parsing timestamp: %w", err)
	}
	e.Timestamp = ts
	return nil
}

// New builds a validated envelope stamped with now
func New(eventType string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshaling data: %w", err)
	}
	e := Envelope{Type: eventType, Timestamp: time.Now().UTC(), Data: raw}
	if err := e.Validate(); err != nil {
		return Envelope{}, fmt.Errorf("validating envelope: %w", err)
	}
	return e, nil
}

// Parse decodes and validates
func Parse(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, err
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, fmt.Errorf("validating envelope: %w", err)
	}
	return e, nil
}

/* DataMap returns the data field as a generic map
 * Non-object data is wrapped under "value"; missing or invalid data yields an empty map
 */
func (e Envelope) DataMap() map[string]any {
	out := map[string]any{}
	if len(e.Data) == 0 {
		return out
	}
	var v any
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return out
	}
	if m, ok := v.(map[string]any); ok {
		return m
	}
	out["value"] = v
	return out
}

func (e Envelope) Bytes() ([]byte, error) {
	return json.Marshal(e)
}

package payload

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("success - node output becomes the data field", func(t *testing.T) {
		env, err := New("workflow.node.completed", map[string]any{"execution_id": "e1", "reply": "hi"})
		require.NoError(t, err)
		assert.Equal(t, "workflow.node.completed", env.Type)
		assert.WithinDuration(t, time.Now(), env.Timestamp, 5*time.Second)
		assert.JSONEq(t, `{"execution_id":"e1","reply":"hi"}`, string(env.Data))
	})

	t.Run("error - type with dashes", func(t *testing.T) {
		_, err := New("node-completed", map[string]any{})
		assert.ErrorContains(t, err, "validating envelope")
	})

	t.Run("error - data cannot be marshaled", func(t *testing.T) {
		_, err := New("workflow.failed", make(chan int))
		assert.ErrorContains(t, err, "marshaling data")
	})
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "valid", body: `{"type":"invoice.paid","timestamp":"2026-01-01T12:00:00.5Z","data":{"id":"inv_1"}}`},
		{name: "missing type", body: `{"timestamp":"2026-01-01T12:00:00Z","data":{}}`, wantErr: "type is required"},
		{name: "leading period", body: `{"type":".paid","timestamp":"2026-01-01T12:00:00Z","data":{}}`, wantErr: "hierarchical"},
		{name: "double period", body: `{"type":"invoice..paid","timestamp":"2026-01-01T12:00:00Z","data":{}}`, wantErr: "hierarchical"},
		{name: "missing timestamp", body: `{"type":"invoice.paid","data":{}}`, wantErr: "timestamp is required"},
		{name: "bad timestamp", body: `{"type":"invoice.paid","timestamp":"yesterday","data":{}}`, wantErr: "parsing timestamp"},
		{name: "missing data", body: `{"type":"invoice.paid","timestamp":"2026-01-01T12:00:00Z"}`, wantErr: "data is required"},
		{name: "not json", body: `{invalid`, wantErr: "invalid character"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Parse([]byte(tt.body))
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "invoice.paid", env.Type)
			assert.Equal(t, 500*time.Millisecond, time.Duration(env.Timestamp.Nanosecond()))
		})
	}
}

func TestEnvelope_DataMap(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("success - object data", func(t *testing.T) {
		env := Envelope{Type: "a.b", Timestamp: ts, Data: json.RawMessage(`{"customer_id":"c1","n":2}`)}
		assert.Equal(t, map[string]any{"customer_id": "c1", "n": float64(2)}, env.DataMap())
	})

	t.Run("success - scalar data is wrapped", func(t *testing.T) {
		env := Envelope{Type: "a.b", Timestamp: ts, Data: json.RawMessage(`"ping"`)}
		assert.Equal(t, map[string]any{"value": "ping"}, env.DataMap())
	})

	t.Run("success - missing or invalid data yields an empty map", func(t *testing.T) {
		assert.Empty(t, Envelope{}.DataMap())
		assert.Empty(t, Envelope{Data: json.RawMessage(`{oops`)}.DataMap())
	})
}

func TestEnvelope_Bytes(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("BRT", -3*3600))
	env := Envelope{Type: "workflow.completed", Timestamp: ts, Data: json.RawMessage(`{"ok":true}`)}

	b, err := env.Bytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"workflow.completed","timestamp":"2026-03-04T08:06:07Z","data":{"ok":true}}`, string(b))

	back, err := Parse(b)
	require.NoError(t, err)
	assert.True(t, ts.Equal(back.Timestamp))
}

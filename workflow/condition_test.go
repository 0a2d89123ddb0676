package workflow_test

import (
	"testing"

	"github.com/marcelsud/webhook-flow/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateCondition(t *testing.T) {
	output := map[string]any{
		"intent":  "purchase",
		"score":   float64(0.82),
		"count":   3,
		"ok":      true,
		"message": map[string]any{"text": "hello", "lang": "en"},
		"tags":    []any{"vip"},
		"empty":   "",
	}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"string equality with jsonpath", "$.intent == 'purchase'", true},
		{"string inequality", "$.intent != 'purchase'", false},
		{"bare key", "intent == \"purchase\"", true},
		{"nested path", "$.message.lang == 'en'", true},
		{"bare nested key", "message.text == 'hello'", true},
		{"float comparison", "$.score >= 0.8", true},
		{"int comparison", "$.count < 3", false},
		{"int equality with float literal", "$.count == 3", true},
		{"bool equality", "$.ok == true", true},
		{"missing path equals null", "$.missing == null", true},
		{"missing path is not a string", "$.missing == 'x'", false},
		{"truthiness of bool", "$.ok", true},
		{"truthiness of empty string", "$.empty", false},
		{"truthiness of list", "$.tags", true},
		{"truthiness of missing", "$.nope", false},
		{"operator inside quotes", "$.intent == 'a>=b'", false},
		{"array index", "$.tags[0] == 'vip'", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := workflow.EvaluateCondition(tc.expr, output)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("error - ordering on strings", func(t *testing.T) {
		_, err := workflow.EvaluateCondition("$.intent > 3", output)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "numeric operands")
	})

	t.Run("error - empty expression", func(t *testing.T) {
		_, err := workflow.ParseCondition("   ")
		require.Error(t, err)
	})

	t.Run("error - missing right operand", func(t *testing.T) {
		_, err := workflow.ParseCondition("$.intent ==")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "right operand")
	})
}

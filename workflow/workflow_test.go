package workflow_test

import (
	"testing"

	"github.com/marcelsud/webhook-flow/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinition_Validate(t *testing.T) {
	valid := func() workflow.Definition {
		return workflow.Definition{
			ID:       "wf-1",
			TenantID: "tenant-1",
			Nodes:    []workflow.Node{{ID: "n1", Type: "webhook"}, {ID: "n2", Type: "agent"}},
			Edges:    []workflow.Edge{{Source: "n1", Target: "n2"}},
		}
	}

	t.Run("success", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("error - duplicate node id", func(t *testing.T) {
		def := valid()
		def.Nodes = append(def.Nodes, workflow.Node{ID: "n1"})
		err := def.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate node id")
	})

	t.Run("error - dangling edge target", func(t *testing.T) {
		def := valid()
		def.Edges = append(def.Edges, workflow.Edge{Source: "n2", Target: "n9"})
		err := def.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "edge target node not found")
	})

	t.Run("error - dangling edge source", func(t *testing.T) {
		def := valid()
		def.Edges = append(def.Edges, workflow.Edge{Source: "n0", Target: "n2"})
		err := def.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "edge source node not found")
	})

	t.Run("error - malformed condition", func(t *testing.T) {
		def := valid()
		def.Edges[0].Condition = "$.a =="
		require.Error(t, def.Validate())
	})

	t.Run("error - missing tenant", func(t *testing.T) {
		def := valid()
		def.TenantID = ""
		require.Error(t, def.Validate())
	})

	t.Run("error - no nodes", func(t *testing.T) {
		def := valid()
		def.Nodes = nil
		def.Edges = nil
		require.Error(t, def.Validate())
	})
}

func TestDefinition_TriggerNodes(t *testing.T) {
	def := workflow.Definition{
		Nodes: []workflow.Node{{ID: "hook", Type: "Webhook"}, {ID: "tick", Type: "cron"}, {ID: "a", Type: "agent"}},
	}

	triggers := def.TriggerNodes()

	require.Len(t, triggers, 2)
	assert.Equal(t, "hook", triggers[0].ID)
	assert.Equal(t, "tick", triggers[1].ID)
}

func TestParseNodeType(t *testing.T) {
	tests := map[string]workflow.NodeType{
		"email":        workflow.EmailNode,
		"EMAIL":        workflow.EmailNode,
		" send_email ": workflow.EmailNode,
		"agent":        workflow.AgentNode,
		"http_request": workflow.APINode,
		"wait":         workflow.DelayNode,
		"branch":       workflow.ConditionNode,
		"webhook":      workflow.WebhookNode,
		"foobar":       workflow.UnknownNode,
		"":             workflow.UnknownNode,
	}
	for in, want := range tests {
		assert.Equal(t, want, workflow.ParseNodeType(in), in)
	}

	assert.Equal(t, "unknown", workflow.UnknownNode.String())
	assert.True(t, workflow.MessageNode.IsConversational())
	assert.False(t, workflow.EmailNode.IsConversational())
	assert.True(t, workflow.ScheduleNode.IsTrigger())
}

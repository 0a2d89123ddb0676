package routes_test

import (
	"testing"

	"github.com/marcelsud/webhook-flow/routes"
	"github.com/marcelsud/webhook-flow/workflow"
	"github.com/stretchr/testify/assert"
)

func TestRouter_QueueFor(t *testing.T) {
	router := routes.NewRouter()

	tests := []struct {
		nodeType string
		want     string
	}{
		{"webhook", routes.WebhookTriggerQueue},
		{"schedule", routes.WebhookTriggerQueue},
		{"agent", routes.AgentExecutionQueue},
		{"message", routes.ResponseDeliveryQueue},
		{"api", routes.APICallQueue},
		{"condition", routes.ConditionEvaluationQueue},
		{"transform", routes.DataTransformQueue},
		{"delay", routes.ScheduledDelayQueue},
		{"email", "email-sending"},
		{"foobar", "workflow-node-execution"},
		{"EMAIL", "email-sending"},
	}
	for _, tt := range tests {
		t.Run(tt.nodeType, func(t *testing.T) {
			assert.Equal(t, tt.want, router.QueueForNode(workflow.Node{ID: "n", Type: tt.nodeType}))
		})
	}
}

func TestRouter_Register(t *testing.T) {
	t.Run("success - override", func(t *testing.T) {
		router := routes.NewRouter()
		assert.NoError(t, router.Register(workflow.EmailNode, "bulk-email"))
		assert.Equal(t, "bulk-email", router.QueueFor(workflow.EmailNode))
		assert.Equal(t, routes.AgentExecutionQueue, router.QueueFor(workflow.AgentNode))
	})

	t.Run("error - empty queue", func(t *testing.T) {
		router := routes.NewRouter()
		assert.Error(t, router.Register(workflow.EmailNode, " "))
		assert.Equal(t, routes.EmailSendingQueue, router.QueueFor(workflow.EmailNode))
	})
}

func TestRouter_Queues(t *testing.T) {
	queues := routes.NewRouter().Queues()
	assert.Len(t, queues, 9)
	assert.Contains(t, queues, routes.DefaultQueue)
}

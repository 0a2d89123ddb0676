package executor

import (
	"net/http"

	"github.com/marcelsud/webhook-flow/worker"
	"github.com/marcelsud/webhook-flow/workflow"
)

// URLs locates the external collaborators
type URLs struct {
	Agent   string
	Message string
	Email   string
}

// Register binds the default executor of every node type; unknown types pass their input through
func Register(e *worker.Executors, urls URLs, client *http.Client) {
	client = defaultClient(client)
	e.Register(workflow.WebhookNode, NewWebhook(client))
	e.Register(workflow.ScheduleNode, Trigger{})
	e.Register(workflow.AgentNode, NewService("agent", urls.Agent, client))
	e.Register(workflow.MessageNode, NewService("message", urls.Message, client))
	e.Register(workflow.EmailNode, NewService("email", urls.Email, client))
	e.Register(workflow.APINode, NewRequest(client))
	e.Register(workflow.ConditionNode, Condition{})
	e.Register(workflow.TransformNode, Transform{})
	e.Register(workflow.DelayNode, Delay{})
	e.Fallback(Trigger{})
}

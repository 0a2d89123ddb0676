package routes

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/marcelsud/webhook-flow/workflow"
)

// Queue names of the default execution lanes
const (
	WebhookTriggerQueue      = "webhook-trigger"
	AgentExecutionQueue      = "agent-execution"
	ResponseDeliveryQueue    = "response-delivery"
	APICallQueue             = "api-call"
	ConditionEvaluationQueue = "condition-evaluation"
	DataTransformQueue       = "data-transform"
	ScheduledDelayQueue      = "scheduled-delay"
	EmailSendingQueue        = "email-sending"
	DefaultQueue             = "workflow-node-execution"
)

func defaultTable() map[workflow.NodeType]string {
	return map[workflow.NodeType]string{
		workflow.WebhookNode:   WebhookTriggerQueue,
		workflow.ScheduleNode:  WebhookTriggerQueue,
		workflow.AgentNode:     AgentExecutionQueue,
		workflow.MessageNode:   ResponseDeliveryQueue,
		workflow.APINode:       APICallQueue,
		workflow.ConditionNode: ConditionEvaluationQueue,
		workflow.TransformNode: DataTransformQueue,
		workflow.DelayNode:     ScheduledDelayQueue,
		workflow.EmailNode:     EmailSendingQueue,
		workflow.UnknownNode:   DefaultQueue,
	}
}

/* Router maps a node type to the queue that executes it
 * Overrides are registered at startup; lookups never fail and fall back to DefaultQueue
 */
type Router struct {
	mu    sync.RWMutex
	table map[workflow.NodeType]string
}

// NewRouter creates a router with the default table
func NewRouter() *Router {
	return &Router{table: defaultTable()}
}

// Register routes a node type to a different queue
func (r *Router) Register(t workflow.NodeType, queue string) error {
	queue = strings.TrimSpace(queue)
	if queue == "" {
		return fmt.Errorf("queue name cannot be empty for node type %s", t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table[t] = queue
	return nil
}

// QueueFor returns the queue for a node type
func (r *Router) QueueFor(t workflow.NodeType) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if q, ok := r.table[t]; ok {
		return q
	}
	if q, ok := r.table[workflow.UnknownNode]; ok {
		return q
	}
	return DefaultQueue
}

// QueueForNode parses the declared type of n and returns its queue
func (r *Router) QueueForNode(n workflow.Node) string {
	return r.QueueFor(n.Kind())
}

// Queues returns every distinct queue name in the table, sorted
func (r *Router) Queues() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.table))
	for _, q := range r.table {
		seen[q] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for q := range seen {
		out = append(out, q)
	}
	sort.Strings(out)
	return out
}

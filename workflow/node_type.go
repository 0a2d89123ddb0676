package workflow

import "strings"

/* NodeType is the closed set of node categories the engine knows how to run
 * Anything the parser does not recognize becomes UnknownNode and is still routable
 */
type NodeType int

const (
	UnknownNode NodeType = iota
	WebhookNode
	ScheduleNode
	AgentNode
	MessageNode
	APINode
	ConditionNode
	TransformNode
	DelayNode
	EmailNode
)

// nodeTypeAliases maps lowercased type names used by the flow builder to a NodeType
var nodeTypeAliases = map[string]NodeType{
	"webhook":         WebhookNode,
	"webhook_trigger": WebhookNode,
	"trigger":         WebhookNode,
	"schedule":        ScheduleNode,
	"scheduled":       ScheduleNode,
	"cron":            ScheduleNode,
	"agent":           AgentNode,
	"ai_agent":        AgentNode,
	"character":       AgentNode,
	"message":         MessageNode,
	"send_message":    MessageNode,
	"response":        MessageNode,
	"reply":           MessageNode,
	"api":             APINode,
	"http":            APINode,
	"http_request":    APINode,
	"condition":       ConditionNode,
	"branch":          ConditionNode,
	"if":              ConditionNode,
	"transform":       TransformNode,
	"data_transform":  TransformNode,
	"set":             TransformNode,
	"delay":           DelayNode,
	"wait":            DelayNode,
	"email":           EmailNode,
	"send_email":      EmailNode,
}

// String returns the canonical name of the node type
func (t NodeType) String() string {
	switch t {
	case WebhookNode:
		return "webhook"
	case ScheduleNode:
		return "schedule"
	case AgentNode:
		return "agent"
	case MessageNode:
		return "message"
	case APINode:
		return "api"
	case ConditionNode:
		return "condition"
	case TransformNode:
		return "transform"
	case DelayNode:
		return "delay"
	case EmailNode:
		return "email"
	default:
		return "unknown"
	}
}

// ParseNodeType maps a declared node type (any case) to a NodeType
func ParseNodeType(s string) NodeType {
	if t, ok := nodeTypeAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t
	}
	return UnknownNode
}

// IsTrigger reports whether the node starts an execution rather than acting inside one
func (t NodeType) IsTrigger() bool {
	return t == WebhookNode || t == ScheduleNode
}

// IsConversational reports whether a failure of this node should be surfaced to the end user
func (t NodeType) IsConversational() bool {
	return t == AgentNode || t == MessageNode
}

// NodeTypes returns every known node type, UnknownNode last
func NodeTypes() []NodeType {
	return []NodeType{
		WebhookNode, ScheduleNode, AgentNode, MessageNode, APINode,
		ConditionNode, TransformNode, DelayNode, EmailNode, UnknownNode,
	}
}

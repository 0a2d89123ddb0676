package executor

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/marcelsud/webhook-flow/worker"
)

// serviceCall is the body posted to agent, message and email collaborators
type serviceCall struct {
	ExecutionID string            `json:"execution_id"`
	WorkflowID  string            `json:"workflow_id"`
	TenantID    string            `json:"tenant_id"`
	NodeID      string            `json:"node_id"`
	NodeType    string            `json:"node_type"`
	Attempt     int               `json:"attempt"`
	Config      map[string]any    `json:"config,omitempty"`
	Input       map[string]any    `json:"input"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

/* Service hands a node to an external collaborator (agent runtime, messaging, email)
 * The reply's "output" object, or the whole reply when absent, becomes the node output.
 * The output always carries "sent", taken from the reply and defaulting to true on 2xx
 */
type Service struct {
	name   string
	url    string
	client *http.Client
}

// NewService creates a collaborator executor; a nil client uses a 30s timeout client
func NewService(name, url string, client *http.Client) *Service {
	return &Service{name: name, url: strings.TrimRight(url, "/"), client: defaultClient(client)}
}

func (s *Service) Execute(ctx context.Context, req worker.Request) (map[string]any, error) {
	if s.url == "" {
		return nil, worker.Permanent(fmt.Errorf("%s service url is not configured", s.name))
	}
	resp, err := postJSON(ctx, s.client, s.url, nil, serviceCall{
		ExecutionID: req.ExecutionID,
		WorkflowID:  req.WorkflowID,
		TenantID:    req.TenantID,
		NodeID:      req.Node.ID,
		NodeType:    req.Node.Kind().String(),
		Attempt:     req.Attempt,
		Config:      req.Node.Config,
		Input:       req.Input,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("calling %s service: %w", s.name, err)
	}
	if err := statusError(resp); err != nil {
		return nil, fmt.Errorf("calling %s service: %w", s.name, err)
	}

	output := map[string]any{}
	if nested, ok := resp.Body["output"].(map[string]any); ok {
		output = copyMap(nested)
	} else if resp.Body != nil {
		output = copyMap(resp.Body)
	}
	sent := true
	if v, ok := resp.Body["sent"].(bool); ok {
		sent = v
	}
	output["sent"] = sent
	return output, nil
}

const defaultApology = "Sorry, something went wrong while handling your message. Please try again in a moment."

// ServiceNotifier posts an apology through the messaging collaborator
type ServiceNotifier struct {
	url    string
	text   string
	client *http.Client
}

// NewServiceNotifier creates the notifier; an empty text uses a generic apology
func NewServiceNotifier(url, text string, client *http.Client) *ServiceNotifier {
	if text == "" {
		text = defaultApology
	}
	return &ServiceNotifier{url: strings.TrimRight(url, "/"), text: text, client: defaultClient(client)}
}

type notice struct {
	Type        string `json:"type"`
	TenantID    string `json:"tenant_id"`
	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	NodeID      string `json:"node_id"`
	CustomerID  string `json:"customer_id,omitempty"`
	Provider    string `json:"provider,omitempty"`
	Text        string `json:"text"`
}

func (n *ServiceNotifier) Notify(ctx context.Context, f worker.Failure) error {
	if n.url == "" {
		return fmt.Errorf("message service url is not configured")
	}
	customer := f.Metadata["customer_id"]
	if customer == "" {
		customer, _ = f.Input["customer_id"].(string)
	}
	resp, err := postJSON(ctx, n.client, n.url, nil, notice{
		Type:        "failure_notice",
		TenantID:    f.TenantID,
		ExecutionID: f.ExecutionID,
		WorkflowID:  f.WorkflowID,
		NodeID:      f.NodeID,
		CustomerID:  customer,
		Provider:    f.Metadata["provider"],
		Text:        n.text,
	})
	if err != nil {
		return fmt.Errorf("sending failure notice: %w", err)
	}
	return statusError(resp)
}

package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/marcelsud/webhook-flow/worker"
)

/* Request runs the HTTP call an api node describes in its config:
 *   url      required
 *   method   defaults to POST
 *   headers  string map
 *   body     sent as JSON; the node input is sent when absent (GET and HEAD send nothing)
 * Output: {"status": code, "body": decoded JSON or text, "headers": first value per header}
 */
type Request struct {
	client *http.Client
}

func NewRequest(client *http.Client) *Request {
	return &Request{client: defaultClient(client)}
}

func (r *Request) Execute(ctx context.Context, req worker.Request) (map[string]any, error) {
	cfg := req.Node.Config
	url := configString(cfg, "url")
	if url == "" {
		return nil, worker.Permanent(fmt.Errorf("api node %s has no url", req.Node.ID))
	}
	method := strings.ToUpper(configString(cfg, "method"))
	if method == "" {
		method = http.MethodPost
	}

	header := http.Header{}
	if hs, ok := cfg["headers"].(map[string]any); ok {
		for k, v := range hs {
			header.Set(k, fmt.Sprint(v))
		}
	}

	var body []byte
	if method != http.MethodGet && method != http.MethodHead {
		payload, ok := cfg["body"]
		if !ok {
			payload = req.Input
		}
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, worker.Permanent(fmt.Errorf("marshaling body: %w", err))
		}
		body = b
	}

	resp, err := send(ctx, r.client, method, url, header, body)
	if err != nil {
		return nil, err
	}
	if err := statusError(resp); err != nil {
		return nil, err
	}

	headers := make(map[string]any, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	var decoded any = string(resp.Raw)
	if resp.Decoded != nil {
		decoded = resp.Decoded
	}
	return map[string]any{
		"status":  resp.Status,
		"body":    decoded,
		"headers": headers,
	}, nil
}

// Package executor holds the node executors a worker process registers by node type.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marcelsud/webhook-flow/worker"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

func defaultClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: defaultTimeout}
}

// response is a decoded collaborator reply; Body is nil when the reply was not a JSON object
type response struct {
	Status  int
	Header  http.Header
	Body    map[string]any
	Decoded any
	Raw     []byte
}

func send(ctx context.Context, client *http.Client, method, url string, header http.Header, body []byte) (response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return response{}, worker.Permanent(fmt.Errorf("building request: %w", err))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return response{}, fmt.Errorf("reading response: %w", err)
	}
	out := response{Status: resp.StatusCode, Header: resp.Header, Raw: raw}
	if len(bytes.TrimSpace(raw)) > 0 {
		var v any
		if json.Unmarshal(raw, &v) == nil {
			out.Decoded = v
			out.Body, _ = v.(map[string]any)
		}
	}
	return out, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, header http.Header, v any) (response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return response{}, worker.Permanent(fmt.Errorf("marshaling request: %w", err))
	}
	return send(ctx, client, http.MethodPost, url, header, body)
}

/* statusError maps a non-2xx reply to an error
 * Client errors are permanent except 408 and 429, which are worth another attempt
 */
func statusError(resp response) error {
	if resp.Status >= 200 && resp.Status <= 299 {
		return nil
	}
	snippet := string(resp.Raw)
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}
	err := fmt.Errorf("unexpected status %d: %s", resp.Status, snippet)
	if resp.Status >= 400 && resp.Status < 500 && resp.Status != http.StatusRequestTimeout && resp.Status != http.StatusTooManyRequests {
		return worker.Permanent(err)
	}
	return err
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func configString(cfg map[string]any, key string) string {
	if cfg == nil {
		return ""
	}
	s, _ := cfg[key].(string)
	return s
}

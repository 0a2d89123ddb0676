package executor_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marcelsud/webhook-flow/webhook/payload"
	"github.com/marcelsud/webhook-flow/webhook/signature"
	"github.com/marcelsud/webhook-flow/worker"
	"github.com/marcelsud/webhook-flow/worker/executor"
	"github.com/marcelsud/webhook-flow/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(nodeType string, cfg map[string]any, input map[string]any) worker.Request {
	return worker.Request{
		ExecutionID: "exec-1",
		WorkflowID:  "wf-1",
		TenantID:    "t1",
		Node:        workflow.Node{ID: "n2", Type: nodeType, Config: cfg},
		Input:       input,
		Metadata:    map[string]string{"provider": "meta", "customer_id": "c1"},
		Attempt:     1,
	}
}

func TestService_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("success - nested output and sent flag", func(t *testing.T) {
		var got map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Write([]byte(`{"output":{"reply":"hello"},"sent":false}`))
		}))
		defer srv.Close()

		out, err := executor.NewService("agent", srv.URL, nil).Execute(ctx, request("agent", nil, map[string]any{"text": "hi"}))

		require.NoError(t, err)
		assert.Equal(t, "hello", out["reply"])
		assert.Equal(t, false, out["sent"])
		assert.Equal(t, "exec-1", got["execution_id"])
		assert.Equal(t, "agent", got["node_type"])
		assert.Equal(t, "hi", got["input"].(map[string]any)["text"])
	})

	t.Run("success - flat reply defaults sent to true", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"message_id":"m1"}`))
		}))
		defer srv.Close()

		out, err := executor.NewService("message", srv.URL, nil).Execute(ctx, request("message", nil, nil))

		require.NoError(t, err)
		assert.Equal(t, "m1", out["message_id"])
		assert.Equal(t, true, out["sent"])
	})

	t.Run("error - server error is retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := executor.NewService("agent", srv.URL, nil).Execute(ctx, request("agent", nil, nil))

		require.Error(t, err)
		assert.False(t, worker.IsPermanent(err))
	})

	t.Run("error - client error is permanent", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad input", http.StatusUnprocessableEntity)
		}))
		defer srv.Close()

		_, err := executor.NewService("agent", srv.URL, nil).Execute(ctx, request("agent", nil, nil))

		require.Error(t, err)
		assert.True(t, worker.IsPermanent(err))
		assert.Contains(t, err.Error(), "bad input")
	})

	t.Run("error - rate limited is retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		_, err := executor.NewService("email", srv.URL, nil).Execute(ctx, request("email", nil, nil))

		require.Error(t, err)
		assert.False(t, worker.IsPermanent(err))
	})

	t.Run("error - missing url is permanent", func(t *testing.T) {
		_, err := executor.NewService("email", "", nil).Execute(ctx, request("email", nil, nil))
		assert.True(t, worker.IsPermanent(err))
	})
}

func TestRequest_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("success - GET with headers and JSON reply", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "Bearer x", r.Header.Get("Authorization"))
			body, _ := io.ReadAll(r.Body)
			assert.Empty(t, body)
			w.Header().Set("X-Request-Id", "r1")
			w.Write([]byte(`{"plan":"pro"}`))
		}))
		defer srv.Close()

		out, err := executor.NewRequest(nil).Execute(ctx, request("api", map[string]any{
			"url": srv.URL, "method": "get", "headers": map[string]any{"Authorization": "Bearer x"},
		}, map[string]any{"ignored": true}))

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, out["status"])
		assert.Equal(t, "pro", out["body"].(map[string]any)["plan"])
		assert.Equal(t, "r1", out["headers"].(map[string]any)["X-Request-Id"])
	})

	t.Run("success - POST sends the input when no body is configured", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var got map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			assert.Equal(t, "hi", got["text"])
			w.Write([]byte("ok"))
		}))
		defer srv.Close()

		out, err := executor.NewRequest(nil).Execute(ctx, request("api", map[string]any{"url": srv.URL}, map[string]any{"text": "hi"}))

		require.NoError(t, err)
		assert.Equal(t, "ok", out["body"])
	})

	t.Run("error - not found is permanent", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		_, err := executor.NewRequest(nil).Execute(ctx, request("api", map[string]any{"url": srv.URL}, nil))

		assert.True(t, worker.IsPermanent(err))
	})

	t.Run("error - missing url", func(t *testing.T) {
		_, err := executor.NewRequest(nil).Execute(ctx, request("api", nil, nil))
		assert.True(t, worker.IsPermanent(err))
	})
}

func TestCondition_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("success - result added to the input", func(t *testing.T) {
		out, err := executor.Condition{}.Execute(ctx, request("condition",
			map[string]any{"expression": "$.intent == 'buy'"}, map[string]any{"intent": "buy"}))

		require.NoError(t, err)
		assert.Equal(t, true, out["result"])
		assert.Equal(t, "buy", out["intent"])
	})

	t.Run("success - false result", func(t *testing.T) {
		out, err := executor.Condition{}.Execute(ctx, request("condition",
			map[string]any{"condition": "score > 10"}, map[string]any{"score": 3}))

		require.NoError(t, err)
		assert.Equal(t, false, out["result"])
	})

	t.Run("error - missing expression", func(t *testing.T) {
		_, err := executor.Condition{}.Execute(ctx, request("condition", nil, nil))
		assert.True(t, worker.IsPermanent(err))
	})
}

func TestTransform_Execute(t *testing.T) {
	ctx := context.Background()
	input := map[string]any{
		"message": map[string]any{"text": "hi", "from": "c1"},
		"items":   []any{map[string]any{"sku": "a"}, map[string]any{"sku": "b"}},
	}

	t.Run("success - paths and literals", func(t *testing.T) {
		out, err := executor.Transform{}.Execute(ctx, request("transform", map[string]any{
			"mapping": map[string]any{
				"text":    "$.message.text",
				"skus":    "$.items[*].sku",
				"missing": "$.nope",
				"channel": "whatsapp",
			},
		}, input))

		require.NoError(t, err)
		assert.Equal(t, "hi", out["text"])
		assert.Equal(t, []any{"a", "b"}, out["skus"])
		assert.Nil(t, out["missing"])
		assert.Equal(t, "whatsapp", out["channel"])
		assert.NotContains(t, out, "message")
	})

	t.Run("success - merge keeps the input", func(t *testing.T) {
		out, err := executor.Transform{}.Execute(ctx, request("transform", map[string]any{
			"merge":   true,
			"mapping": map[string]any{"from": "$.message.from"},
		}, input))

		require.NoError(t, err)
		assert.Equal(t, "c1", out["from"])
		assert.Contains(t, out, "message")
	})

	t.Run("error - missing mapping", func(t *testing.T) {
		_, err := executor.Transform{}.Execute(ctx, request("transform", nil, input))
		assert.True(t, worker.IsPermanent(err))
	})
}

func TestDelayAndTrigger(t *testing.T) {
	ctx := context.Background()

	out, err := executor.Delay{}.Execute(ctx, request("delay", map[string]any{"delay": "90s"}, map[string]any{"a": 1}))
	require.NoError(t, err)
	assert.Equal(t, "1m30s", out["delayed"])
	assert.Equal(t, 1, out["a"])

	in := map[string]any{"text": "hi"}
	out, err = executor.Trigger{}.Execute(ctx, request("webhook", nil, in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
	out["text"] = "changed"
	assert.Equal(t, "hi", in["text"])
}

func TestWebhook_Execute(t *testing.T) {
	ctx := context.Background()
	secret, err := signature.GenerateSecret(24)
	require.NoError(t, err)

	t.Run("success - signed Standard Webhooks delivery", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			assert.NoError(t, signature.VerifyRequest(secret, r.Header, body, time.Now(), signature.DefaultTolerance))
			env, err := payload.Parse(body)
			assert.NoError(t, err)
			assert.Equal(t, "order.created", env.Type)
			assert.Equal(t, "o1", env.DataMap()["order"])
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		ex := executor.NewWebhook(nil)
		cfg := map[string]any{"url": srv.URL, "secret": secret.String(), "event_type": "order.created"}
		out, err := ex.Execute(ctx, request("webhook", cfg, map[string]any{"order": "o1"}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, out["status"])

		again, err := ex.Execute(ctx, request("webhook", cfg, map[string]any{"order": "o1"}))
		require.NoError(t, err)
		assert.Equal(t, out["webhook_id"], again["webhook_id"])
	})

	t.Run("success - without url acts as trigger", func(t *testing.T) {
		out, err := executor.NewWebhook(nil).Execute(ctx, request("webhook", nil, map[string]any{"text": "hi"}))
		require.NoError(t, err)
		assert.Equal(t, "hi", out["text"])
	})
}

func TestServiceNotifier_Notify(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := executor.NewServiceNotifier(srv.URL, "", nil).Notify(context.Background(), worker.Failure{
		ExecutionID: "exec-1", TenantID: "t1", NodeID: "n2", NodeType: "agent",
		Metadata: map[string]string{"customer_id": "c1", "provider": "meta"},
	})

	require.NoError(t, err)
	assert.Equal(t, "failure_notice", got["type"])
	assert.Equal(t, "c1", got["customer_id"])
	assert.Equal(t, "meta", got["provider"])
	assert.NotEmpty(t, got["text"])
}

func TestRegister(t *testing.T) {
	e := worker.NewExecutors()
	executor.Register(e, executor.URLs{}, nil)

	for _, nt := range workflow.NodeTypes() {
		_, ok := e.For(nt)
		assert.True(t, ok, nt.String())
	}
}

package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/marcelsud/webhook-flow/job"
	"github.com/marcelsud/webhook-flow/webhook"
	"github.com/marcelsud/webhook-flow/workflow"
)

// SecretSource resolves a tenant's provider secret; config.Config implements it
type SecretSource interface {
	SecretFor(tenantID, provider string) (string, bool)
}

// JobStatus answers job lookups; job.Dispatcher implements it
type JobStatus interface {
	GetJobStatus(ctx context.Context, id string) (job.Status, error)
}

// ExecutionReader is the read side of the execution store
type ExecutionReader interface {
	GetExecution(ctx context.Context, id string) (workflow.Execution, error)
	ListNodeExecutions(ctx context.Context, executionID string) ([]workflow.NodeExecution, error)
}

// Deps are the services behind the HTTP surface; Metrics may be nil
type Deps struct {
	Webhooks   webhook.UseCase
	Adapters   *webhook.Registry
	Secrets    SecretSource
	Jobs       JobStatus
	Executions ExecutionReader
	Metrics    http.Handler
}

func Handlers(ctx context.Context, d Deps) *chi.Mux {
	logger := httplog.NewLogger("webhook-flow", httplog.Options{
		JSON: true,
	})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	ingest := handleWebhook(d.Webhooks, d.Adapters, d.Secrets)
	r.Method(http.MethodGet, "/webhooks/{tenantId}/{provider}/{workflowId}", ingest)
	r.Method(http.MethodPost, "/webhooks/{tenantId}/{provider}/{workflowId}", ingest)

	r.Route("/v1", func(r chi.Router) {
		r.Method(http.MethodGet, "/jobs/{id}", getJob(d.Jobs))
		r.Method(http.MethodGet, "/executions/{id}", getExecution(d.Executions))
	})

	return r
}

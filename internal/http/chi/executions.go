package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/marcelsud/webhook-flow/job"
	"github.com/marcelsud/webhook-flow/workflow"
)

type jobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type nodeExecutionResponse struct {
	NodeID     string         `json:"node_id"`
	NodeType   string         `json:"node_type"`
	Status     string         `json:"status"`
	Attempt    int            `json:"attempt"`
	Output     map[string]any `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

type executionResponse struct {
	ID              string                  `json:"id"`
	WorkflowID      string                  `json:"workflow_id"`
	WorkflowVersion int                     `json:"workflow_version"`
	TenantID        string                  `json:"tenant_id"`
	Status          string                  `json:"status"`
	Source          string                  `json:"source"`
	Pending         int                     `json:"pending"`
	Error           string                  `json:"error,omitempty"`
	StartedAt       time.Time               `json:"started_at"`
	EndedAt         *time.Time              `json:"ended_at,omitempty"`
	Nodes           []nodeExecutionResponse `json:"nodes"`
}

// getJob handles GET /v1/jobs/{id}
func getJob(jobs JobStatus) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		status, err := jobs.GetJobStatus(r.Context(), id)
		if errors.Is(err, job.ErrNotFound) {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, jobResponse{ID: id, Status: status.String()})
	})
}

// getExecution handles GET /v1/executions/{id}
func getExecution(executions ExecutionReader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		exec, err := executions.GetExecution(r.Context(), id)
		if errors.Is(err, workflow.ErrNotFound) {
			http.Error(w, "execution not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		nodes, err := executions.ListNodeExecutions(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		resp := executionResponse{
			ID:              exec.ID,
			WorkflowID:      exec.WorkflowID,
			WorkflowVersion: exec.WorkflowVersion,
			TenantID:        exec.TenantID,
			Status:          exec.Status.String(),
			Source:          exec.Source,
			Pending:         exec.Pending,
			Error:           exec.Error,
			StartedAt:       exec.StartedAt,
			EndedAt:         optionalTime(exec.EndedAt),
			Nodes:           make([]nodeExecutionResponse, 0, len(nodes)),
		}
		for _, n := range nodes {
			resp.Nodes = append(resp.Nodes, nodeExecutionResponse{
				NodeID:     n.NodeID,
				NodeType:   n.NodeType,
				Status:     n.Status.String(),
				Attempt:    n.Attempt,
				Output:     n.Output,
				Error:      n.Error,
				StartedAt:  n.StartedAt,
				FinishedAt: optionalTime(n.FinishedAt),
			})
		}
		writeJSON(w, resp)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

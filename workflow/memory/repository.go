package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/marcelsud/webhook-flow/workflow"
)

/* In-memory implementation of workflow.Repository
 * Used by tests and by single-process deployments without DATABASE_URL
 */
type Repository struct {
	mu         sync.RWMutex
	versions   map[string][]workflow.Definition
	status     map[string]workflow.DefinitionStatus
	executions map[string]workflow.Execution
	// settled flag per tracked job id, per execution
	jobs       map[string]map[string]bool
	nodes      map[string]workflow.NodeExecution
	now        func() time.Time
}

// NewRepository creates an empty store
func NewRepository() *Repository {
	return &Repository{
		versions:   make(map[string][]workflow.Definition),
		status:     make(map[string]workflow.DefinitionStatus),
		executions: make(map[string]workflow.Execution),
		jobs:       make(map[string]map[string]bool),
		nodes:      make(map[string]workflow.NodeExecution),
		now:        time.Now,
	}
}

func (r *Repository) GetWorkflow(ctx context.Context, id string) (workflow.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.versions[id]
	if len(versions) == 0 {
		return workflow.Definition{}, fmt.Errorf("workflow %s: %w", id, workflow.ErrNotFound)
	}
	return r.withStatus(versions[len(versions)-1]), nil
}

func (r *Repository) GetWorkflowVersion(ctx context.Context, id string, version int) (workflow.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.versions[id]
	if version < 1 || version > len(versions) {
		return workflow.Definition{}, fmt.Errorf("workflow %s version %d: %w", id, version, workflow.ErrNotFound)
	}
	return r.withStatus(versions[version-1]), nil
}

// withStatus applies the workflow-level status, which spans every version
func (r *Repository) withStatus(def workflow.Definition) workflow.Definition {
	if s, ok := r.status[def.ID]; ok {
		def.Status = s
	}
	return def
}

func (r *Repository) SaveWorkflow(ctx context.Context, def workflow.Definition) (int, error) {
	if err := def.Validate(); err != nil {
		return 0, fmt.Errorf("validating workflow: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	def.Version = len(r.versions[def.ID]) + 1
	def.CreatedAt = r.now()
	def.Nodes = append([]workflow.Node(nil), def.Nodes...)
	def.Edges = append([]workflow.Edge(nil), def.Edges...)
	r.versions[def.ID] = append(r.versions[def.ID], def)
	if def.Status != 0 {
		r.status[def.ID] = def.Status
	} else if _, ok := r.status[def.ID]; !ok {
		r.status[def.ID] = workflow.Active
	}
	return def.Version, nil
}

func (r *Repository) SetWorkflowStatus(ctx context.Context, id string, status workflow.DefinitionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.versions[id]) == 0 {
		return fmt.Errorf("workflow %s: %w", id, workflow.ErrNotFound)
	}
	r.status[id] = status
	return nil
}

func (r *Repository) CreateExecution(ctx context.Context, exec workflow.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.executions[exec.ID]; exists {
		return fmt.Errorf("execution %s: %w", exec.ID, workflow.ErrDuplicate)
	}
	exec.Pending = 0
	r.executions[exec.ID] = exec
	r.jobs[exec.ID] = make(map[string]bool)
	if exec.StartJobID != "" {
		r.jobs[exec.ID][exec.StartJobID] = false
	}
	return nil
}

func (r *Repository) GetExecution(ctx context.Context, id string) (workflow.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exec, ok := r.executions[id]
	if !ok {
		return workflow.Execution{}, fmt.Errorf("execution %s: %w", id, workflow.ErrNotFound)
	}
	exec.Pending = r.pending(id)
	return exec, nil
}

func (r *Repository) TrackJobs(ctx context.Context, executionID string, jobIDs ...string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.executions[executionID]; !ok {
		return 0, fmt.Errorf("execution %s: %w", executionID, workflow.ErrNotFound)
	}
	for _, id := range jobIDs {
		if _, tracked := r.jobs[executionID][id]; !tracked {
			r.jobs[executionID][id] = false
		}
	}
	return r.pending(executionID), nil
}

func (r *Repository) SettleJob(ctx context.Context, executionID, jobID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.executions[executionID]; !ok {
		return 0, fmt.Errorf("execution %s: %w", executionID, workflow.ErrNotFound)
	}
	r.jobs[executionID][jobID] = true
	return r.pending(executionID), nil
}

// pending must be called with the lock held
func (r *Repository) pending(executionID string) int {
	n := 0
	for _, settled := range r.jobs[executionID] {
		if !settled {
			n++
		}
	}
	return n
}

func (r *Repository) FinishExecution(ctx context.Context, id string, status workflow.ExecutionStatus, errMsg string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exec, ok := r.executions[id]
	if !ok {
		return fmt.Errorf("execution %s: %w", id, workflow.ErrNotFound)
	}
	// the first terminal status wins
	if exec.Status.IsFinal() {
		return nil
	}
	exec.Status = status
	exec.Error = errMsg
	exec.EndedAt = at
	r.executions[id] = exec
	return nil
}

func (r *Repository) SaveNodeExecution(ctx context.Context, rec workflow.NodeExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.nodes[rec.ID]; ok {
		if rec.StartedAt.IsZero() {
			rec.StartedAt = prev.StartedAt
		}
		if rec.Input == nil {
			rec.Input = prev.Input
		}
		rec.Settled = rec.Settled || prev.Settled
	}
	r.nodes[rec.ID] = rec
	return nil
}

func (r *Repository) GetNodeExecution(ctx context.Context, id string) (workflow.NodeExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.nodes[id]
	if !ok {
		return workflow.NodeExecution{}, fmt.Errorf("node execution %s: %w", id, workflow.ErrNotFound)
	}
	return rec, nil
}

func (r *Repository) ListNodeExecutions(ctx context.Context, executionID string) ([]workflow.NodeExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []workflow.NodeExecution
	for _, rec := range r.nodes {
		if rec.ExecutionID == executionID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

func (r *Repository) Close(ctx context.Context) error {
	return nil
}

package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/marcelsud/webhook-flow/workflow"
)

// Request is what an executor sees of one node job
type Request struct {
	ExecutionID string
	WorkflowID  string
	TenantID    string
	Node        workflow.Node
	Input       map[string]any
	Metadata    map[string]string
	Attempt     int
}

/* Executor runs the side effect of one node and returns its output
 * The output becomes the input of every successor and the data edge conditions are evaluated against
 */
type Executor interface {
	Execute(ctx context.Context, req Request) (map[string]any, error)
}

// ExecutorFunc adapts a function to Executor
type ExecutorFunc func(ctx context.Context, req Request) (map[string]any, error)

func (f ExecutorFunc) Execute(ctx context.Context, req Request) (map[string]any, error) {
	return f(ctx, req)
}

// Executors is the node type -> executor table used by every worker of a process
type Executors struct {
	mu       sync.RWMutex
	byType   map[workflow.NodeType]Executor
	fallback Executor
}

func NewExecutors() *Executors {
	return &Executors{byType: make(map[workflow.NodeType]Executor)}
}

// Register binds an executor to a node type, replacing any previous one
func (e *Executors) Register(t workflow.NodeType, ex Executor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.byType[t] = ex
}

// Fallback sets the executor used for node types nothing was registered for
func (e *Executors) Fallback(ex Executor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fallback = ex
}

func (e *Executors) For(t workflow.NodeType) (Executor, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if ex, ok := e.byType[t]; ok {
		return ex, true
	}
	return e.fallback, e.fallback != nil
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks an executor error as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or anything it wraps, was marked Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

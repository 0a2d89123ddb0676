package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/marcelsud/webhook-flow/job"
	"github.com/marcelsud/webhook-flow/routes"
	"github.com/marcelsud/webhook-flow/workflow"
)

// Policies resolves the retry policy of a queue; routes.Loader implements it
type Policies interface {
	Policy(name string) routes.Queue
}

type Service struct {
	workflows  workflow.Reader
	executions workflow.ExecutionStore
	router     *routes.Router
	policies   Policies
	jobs       job.UseCase
	logger     *slog.Logger
	now        func() time.Time
}

// NewService wires the dispatch path; policies may be nil to use the default queue policy
func NewService(workflows workflow.Reader, executions workflow.ExecutionStore, router *routes.Router, policies Policies, jobs job.UseCase, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		workflows:  workflows,
		executions: executions,
		router:     router,
		policies:   policies,
		jobs:       jobs,
		logger:     logger,
		now:        time.Now,
	}
}

/* Start creates the execution and enqueues its start node
 * The execution pins the workflow version that is current right now
 */
func (s *Service) Start(ctx context.Context, req Request) (Result, error) {
	def, err := s.workflows.GetWorkflow(ctx, req.WorkflowID)
	if err != nil {
		return Result{}, fmt.Errorf("getting workflow: %w", err)
	}
	if def.TenantID != req.TenantID {
		return Result{}, fmt.Errorf("workflow %s: %w", def.ID, ErrTenantMismatch)
	}
	if def.Status == workflow.Disabled {
		return Result{}, fmt.Errorf("workflow %s: %w", def.ID, ErrWorkflowDisabled)
	}
	node, err := startNode(def, req.NodeID)
	if err != nil {
		return Result{}, err
	}

	execID := req.ExecutionID
	if execID == "" {
		execID = uuid.NewString()
	}
	source := req.Source
	if source == "" {
		source = SourceManual
	}
	err = s.executions.CreateExecution(ctx, workflow.Execution{
		ID:              execID,
		WorkflowID:      def.ID,
		WorkflowVersion: def.Version,
		TenantID:        def.TenantID,
		Status:          workflow.ExecutionRunning,
		StartNodeID:     node.ID,
		StartJobID:      NodeJobID(execID, "", node.ID),
		Source:          string(source),
		StartedAt:       s.now().UTC(),
	})
	if errors.Is(err, workflow.ErrDuplicate) {
		return Result{ExecutionID: execID, Duplicate: true}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("creating execution: %w", err)
	}

	queue, jobID, _, err := s.Dispatch(ctx, node, NodeRequest{
		ExecutionID:     execID,
		TenantID:        def.TenantID,
		WorkflowID:      def.ID,
		WorkflowVersion: def.Version,
		EventType:       req.EventType,
		Input:           req.Input,
		Metadata:        req.Metadata,
	})
	if err != nil {
		if ferr := s.executions.FinishExecution(ctx, execID, workflow.ExecutionFailed, err.Error(), s.now().UTC()); ferr != nil {
			s.logger.Error("failing undispatched execution", "execution_id", execID, "error", ferr)
		}
		return Result{}, err
	}

	s.logger.Info("execution started",
		"execution_id", execID,
		"workflow_id", def.ID,
		"version", def.Version,
		"tenant_id", def.TenantID,
		"node_id", node.ID,
		"source", string(source),
		"queue", queue,
	)
	return Result{ExecutionID: execID, JobID: jobID, Queue: queue}, nil
}

/* Dispatch routes the node to its queue and enqueues it with that queue's retry policy
 * created is false when the derived job id was already enqueued
 */
func (s *Service) Dispatch(ctx context.Context, node workflow.Node, req NodeRequest) (queue, jobID string, created bool, err error) {
	queue = s.router.QueueForNode(node)
	policy := routes.DefaultQueuePolicy(queue, nil)
	if s.policies != nil {
		policy = s.policies.Policy(queue)
	}
	opts := policy.JobOptions()
	opts.JobID = NodeJobID(req.ExecutionID, req.ParentJobID, node.ID)
	opts.Delay = req.Delay
	opts.WorkflowID = req.WorkflowID
	opts.TenantID = req.TenantID
	opts.EventType = req.EventType

	jobID, created, err = s.jobs.Submit(ctx, queue, job.Payload{
		NodeID:          node.ID,
		NodeType:        node.Kind().String(),
		WorkflowID:      req.WorkflowID,
		WorkflowVersion: req.WorkflowVersion,
		ExecutionID:     req.ExecutionID,
		TenantID:        req.TenantID,
		ParentNodeID:    req.ParentNodeID,
		Hop:             req.Hop,
		Input:           req.Input,
		Metadata:        req.Metadata,
	}, opts)
	if err != nil {
		return queue, "", false, fmt.Errorf("dispatching node %s: %w", node.ID, err)
	}
	return queue, jobID, created, nil
}

func startNode(def workflow.Definition, nodeID string) (workflow.Node, error) {
	if nodeID != "" {
		n, ok := def.NodeByID(nodeID)
		if !ok {
			return workflow.Node{}, fmt.Errorf("%s in workflow %s: %w", nodeID, def.ID, ErrNodeNotFound)
		}
		return n, nil
	}
	triggers := def.TriggerNodes()
	if len(triggers) == 0 {
		return workflow.Node{}, fmt.Errorf("no trigger node in workflow %s: %w", def.ID, ErrNodeNotFound)
	}
	return triggers[0], nil
}

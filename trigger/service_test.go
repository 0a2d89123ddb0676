package trigger_test

import (
	"context"
	"testing"
	"time"

	"github.com/marcelsud/webhook-flow/job"
	jobmemory "github.com/marcelsud/webhook-flow/job/memory"
	"github.com/marcelsud/webhook-flow/routes"
	"github.com/marcelsud/webhook-flow/trigger"
	"github.com/marcelsud/webhook-flow/workflow"
	wfmemory "github.com/marcelsud/webhook-flow/workflow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *wfmemory.Repository
	queue   *jobmemory.Queue
	service *trigger.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := wfmemory.NewRepository()
	queue := jobmemory.NewQueue(jobmemory.WithBlock(20 * time.Millisecond))
	t.Cleanup(func() { queue.Close(context.Background()) })
	dispatcher := job.NewDispatcher(queue, jobmemory.NewProvenanceStore(), nil)
	return fixture{
		store:   store,
		queue:   queue,
		service: trigger.NewService(store, store, routes.NewRouter(), nil, dispatcher, nil),
	}
}

func saveWorkflow(t *testing.T, store *wfmemory.Repository) {
	t.Helper()
	_, err := store.SaveWorkflow(context.Background(), workflow.Definition{
		ID: "wf-1", TenantID: "t1",
		Nodes: []workflow.Node{{ID: "n1", Type: "webhook"}, {ID: "n2", Type: "agent"}},
		Edges: []workflow.Edge{{Source: "n1", Target: "n2"}},
	})
	require.NoError(t, err)
}

func TestService_Start(t *testing.T) {
	ctx := context.Background()

	t.Run("success - start node enqueued on its lane", func(t *testing.T) {
		f := newFixture(t)
		saveWorkflow(t, f.store)

		res, err := f.service.Start(ctx, trigger.Request{
			TenantID: "t1", WorkflowID: "wf-1", Source: trigger.SourceWebhook,
			EventType: "message", Input: map[string]any{"text": "hi"},
		})

		require.NoError(t, err)
		assert.Equal(t, routes.WebhookTriggerQueue, res.Queue)
		assert.False(t, res.Duplicate)

		exec, err := f.store.GetExecution(ctx, res.ExecutionID)
		require.NoError(t, err)
		assert.Equal(t, workflow.ExecutionRunning, exec.Status)
		assert.Equal(t, 1, exec.Pending)
		assert.Equal(t, 1, exec.WorkflowVersion)
		assert.Equal(t, "n1", exec.StartNodeID)
		assert.Equal(t, res.JobID, exec.StartJobID)

		jobs, err := f.queue.Consume(ctx, routes.WebhookTriggerQueue, 10)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, res.JobID, jobs[0].ID)
		assert.Equal(t, res.ExecutionID, jobs[0].Payload.ExecutionID)
		assert.Equal(t, "hi", jobs[0].Payload.Input["text"])
		assert.Equal(t, 0, jobs[0].Payload.Hop)
	})

	t.Run("success - same execution id is started once", func(t *testing.T) {
		f := newFixture(t)
		saveWorkflow(t, f.store)
		req := trigger.Request{ExecutionID: "exec-1", TenantID: "t1", WorkflowID: "wf-1"}

		_, err := f.service.Start(ctx, req)
		require.NoError(t, err)
		res, err := f.service.Start(ctx, req)
		require.NoError(t, err)

		assert.True(t, res.Duplicate)
		jobs, err := f.queue.Consume(ctx, routes.WebhookTriggerQueue, 10)
		require.NoError(t, err)
		assert.Len(t, jobs, 1)
	})

	t.Run("error - disabled workflow", func(t *testing.T) {
		f := newFixture(t)
		saveWorkflow(t, f.store)
		require.NoError(t, f.store.SetWorkflowStatus(ctx, "wf-1", workflow.Disabled))

		_, err := f.service.Start(ctx, trigger.Request{TenantID: "t1", WorkflowID: "wf-1"})

		assert.ErrorIs(t, err, trigger.ErrWorkflowDisabled)
	})

	t.Run("error - other tenant", func(t *testing.T) {
		f := newFixture(t)
		saveWorkflow(t, f.store)

		_, err := f.service.Start(ctx, trigger.Request{TenantID: "t2", WorkflowID: "wf-1"})

		assert.ErrorIs(t, err, trigger.ErrTenantMismatch)
	})

	t.Run("error - unknown start node", func(t *testing.T) {
		f := newFixture(t)
		saveWorkflow(t, f.store)

		_, err := f.service.Start(ctx, trigger.Request{TenantID: "t1", WorkflowID: "wf-1", NodeID: "missing"})

		assert.ErrorIs(t, err, trigger.ErrNodeNotFound)
	})

	t.Run("error - missing workflow", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.Start(ctx, trigger.Request{TenantID: "t1", WorkflowID: "nope"})

		assert.ErrorIs(t, err, workflow.ErrNotFound)
	})
}

func TestService_Dispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("success - derived job id makes dispatch idempotent", func(t *testing.T) {
		f := newFixture(t)
		node := workflow.Node{ID: "n3", Type: "email"}
		req := trigger.NodeRequest{ExecutionID: "exec-1", TenantID: "t1", WorkflowID: "wf-1", ParentJobID: "job-a", Hop: 1}

		queue, id1, created, err := f.service.Dispatch(ctx, node, req)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, routes.EmailSendingQueue, queue)

		_, id2, created, err := f.service.Dispatch(ctx, node, req)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, id1, id2)
		assert.Equal(t, trigger.NodeJobID("exec-1", "job-a", "n3"), id1)
	})

	t.Run("success - unknown type goes to the default lane", func(t *testing.T) {
		f := newFixture(t)

		queue, _, _, err := f.service.Dispatch(ctx, workflow.Node{ID: "x", Type: "foobar"}, trigger.NodeRequest{ExecutionID: "exec-1"})

		require.NoError(t, err)
		assert.Equal(t, routes.DefaultQueue, queue)
	})

	t.Run("success - delay is applied", func(t *testing.T) {
		f := newFixture(t)

		_, id, _, err := f.service.Dispatch(ctx, workflow.Node{ID: "d", Type: "delay"}, trigger.NodeRequest{
			ExecutionID: "exec-1", Delay: time.Minute,
		})
		require.NoError(t, err)

		j, err := f.queue.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, job.Delayed, j.Status)
	})
}

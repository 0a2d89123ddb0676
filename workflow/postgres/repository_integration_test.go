//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	pgstore "github.com/marcelsud/webhook-flow/internal/postgres"
	"github.com/marcelsud/webhook-flow/workflow"
	"github.com/marcelsud/webhook-flow/workflow/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_Integration(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := pgstore.SetupTestPool(t, ctx)
	defer cleanup()

	repo := postgres.NewRepository(pool)
	defer repo.Close(ctx)

	def := workflow.Definition{
		ID:       "wf-int",
		TenantID: "tenant-1",
		Name:     "onboarding",
		Nodes: []workflow.Node{
			{ID: "n1", Type: "webhook"},
			{ID: "n2", Type: "agent", Config: map[string]any{"character": "sam"}},
		},
		Edges: []workflow.Edge{{Source: "n1", Target: "n2", Condition: "$.intent == 'help'"}},
	}

	t.Run("versions are immutable", func(t *testing.T) {
		v1, err := repo.SaveWorkflow(ctx, def)
		require.NoError(t, err)
		edited := def
		edited.Nodes = append(append([]workflow.Node(nil), def.Nodes...), workflow.Node{ID: "n3", Type: "email"})
		v2, err := repo.SaveWorkflow(ctx, edited)
		require.NoError(t, err)
		assert.Equal(t, v1+1, v2)

		pinned, err := repo.GetWorkflowVersion(ctx, def.ID, v1)
		require.NoError(t, err)
		assert.Len(t, pinned.Nodes, 2)
		assert.Equal(t, "sam", pinned.Nodes[1].Config["character"])
		assert.Equal(t, "$.intent == 'help'", pinned.Edges[0].Condition)

		latest, err := repo.GetWorkflow(ctx, def.ID)
		require.NoError(t, err)
		assert.Equal(t, v2, latest.Version)
		assert.Equal(t, workflow.Active, latest.Status)
	})

	t.Run("concurrent saves get distinct versions", func(t *testing.T) {
		var wg sync.WaitGroup
		versions := make(chan int, 5)
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := repo.SaveWorkflow(ctx, workflow.Definition{
					ID: "wf-race", TenantID: "t", Nodes: []workflow.Node{{ID: "a"}},
				})
				assert.NoError(t, err)
				versions <- v
			}()
		}
		wg.Wait()
		close(versions)

		seen := map[int]bool{}
		for v := range versions {
			seen[v] = true
		}
		assert.Len(t, seen, 5)
	})

	t.Run("disable workflow", func(t *testing.T) {
		require.NoError(t, repo.SetWorkflowStatus(ctx, def.ID, workflow.Disabled))
		got, err := repo.GetWorkflow(ctx, def.ID)
		require.NoError(t, err)
		assert.Equal(t, workflow.Disabled, got.Status)

		err = repo.SetWorkflowStatus(ctx, "missing", workflow.Disabled)
		assert.ErrorIs(t, err, workflow.ErrNotFound)
	})

	t.Run("execution lifecycle", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Millisecond)
		require.NoError(t, repo.CreateExecution(ctx, workflow.Execution{
			ID: "exec-int", WorkflowID: def.ID, WorkflowVersion: 1, TenantID: "tenant-1",
			Status: workflow.ExecutionRunning, StartNodeID: "n1", StartJobID: "job-int", Source: "webhook", StartedAt: now,
		}))

		pending, err := repo.TrackJobs(ctx, "exec-int", "job-next", "job-next")
		require.NoError(t, err)
		assert.Equal(t, 2, pending)

		pending, err = repo.SettleJob(ctx, "exec-int", "job-int")
		require.NoError(t, err)
		assert.Equal(t, 1, pending)
		pending, err = repo.SettleJob(ctx, "exec-int", "job-int")
		require.NoError(t, err)
		assert.Equal(t, 1, pending)

		pending, err = repo.SettleJob(ctx, "exec-int", "job-next")
		require.NoError(t, err)
		assert.Equal(t, 0, pending)
		pending, err = repo.TrackJobs(ctx, "exec-int", "job-next")
		require.NoError(t, err)
		assert.Equal(t, 0, pending, "a settled job stays settled")

		_, err = repo.SettleJob(ctx, "exec-missing", "job-int")
		assert.ErrorIs(t, err, workflow.ErrNotFound)

		require.NoError(t, repo.SaveNodeExecution(ctx, workflow.NodeExecution{
			ID: "job-int", ExecutionID: "exec-int", NodeID: "n1", NodeType: "webhook",
			Status: workflow.NodeRunning, Attempt: 1, Input: map[string]any{"text": "hi"}, StartedAt: now,
		}))
		require.NoError(t, repo.SaveNodeExecution(ctx, workflow.NodeExecution{
			ID: "job-int", ExecutionID: "exec-int", NodeID: "n1", NodeType: "webhook",
			Status: workflow.NodeCompleted, Attempt: 1, Output: map[string]any{"ok": true}, FinishedAt: now,
		}))

		rec, err := repo.GetNodeExecution(ctx, "job-int")
		require.NoError(t, err)
		assert.Equal(t, workflow.NodeCompleted, rec.Status)
		assert.Equal(t, "hi", rec.Input["text"])
		assert.Equal(t, true, rec.Output["ok"])

		require.NoError(t, repo.FinishExecution(ctx, "exec-int", workflow.ExecutionCompleted, "", now))
		require.NoError(t, repo.FinishExecution(ctx, "exec-int", workflow.ExecutionFailed, "late", now))

		exec, err := repo.GetExecution(ctx, "exec-int")
		require.NoError(t, err)
		assert.Equal(t, workflow.ExecutionCompleted, exec.Status)
		assert.Empty(t, exec.Error)

		list, err := repo.ListNodeExecutions(ctx, "exec-int")
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

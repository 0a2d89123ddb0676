//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	pgstore "github.com/marcelsud/webhook-flow/internal/postgres"
	"github.com/marcelsud/webhook-flow/scheduler"
	"github.com/marcelsud/webhook-flow/scheduler/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Integration(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := pgstore.SetupTestPool(t, ctx)
	defer cleanup()

	store := postgres.NewStore(pool)
	now := time.Now().UTC().Truncate(time.Millisecond)

	ev := scheduler.Event{
		ID: "ev-1", TenantID: "t1", WorkflowID: "wf-1", NodeID: "n1",
		Schedule: "*/5 * * * *", Timezone: "UTC",
		Input:   map[string]any{"report": "daily"},
		NextRun: now.Add(-time.Minute),
	}

	t.Run("success - save and get", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, ev))
		got, err := store.Get(ctx, "ev-1")
		require.NoError(t, err)
		assert.Equal(t, scheduler.Active, got.Status)
		assert.Equal(t, "daily", got.Input["report"])
		assert.True(t, got.LastRun.IsZero())
		assert.True(t, got.NextRun.Equal(ev.NextRun))
	})

	t.Run("success - due and uninitialized", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, scheduler.Event{ID: "ev-2", TenantID: "t2", WorkflowID: "wf-2", Schedule: "@daily"}))

		due, err := store.Due(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, "ev-1", due[0].ID)

		fresh, err := store.Uninitialized(ctx)
		require.NoError(t, err)
		require.Len(t, fresh, 1)
		assert.Equal(t, "ev-2", fresh[0].ID)

		t2, err := store.List(ctx, "t2")
		require.NoError(t, err)
		assert.Len(t, t2, 1)
	})

	t.Run("success - concurrent claims have one winner", func(t *testing.T) {
		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := store.Claim(ctx, "ev-1", now, now.Add(5*time.Minute))
				assert.NoError(t, err)
				if ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())

		got, err := store.Get(ctx, "ev-1")
		require.NoError(t, err)
		assert.True(t, got.LastRun.Equal(now))
		assert.True(t, got.NextRun.Equal(now.Add(5*time.Minute)))
	})

	t.Run("success - status and next run updates", func(t *testing.T) {
		require.NoError(t, store.SetStatus(ctx, "ev-2", scheduler.Error, "invalid schedule"))
		require.NoError(t, store.SetNextRun(ctx, "ev-2", now))
		got, err := store.Get(ctx, "ev-2")
		require.NoError(t, err)
		assert.Equal(t, scheduler.Error, got.Status)
		assert.Equal(t, "invalid schedule", got.Error)

		due, err := store.Due(ctx, now, 10)
		require.NoError(t, err)
		assert.Empty(t, due)
	})

	t.Run("error - unknown event", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, scheduler.ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, "missing"), scheduler.ErrNotFound)
	})

	t.Run("success - delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "ev-2"))
		_, err := store.Get(ctx, "ev-2")
		assert.ErrorIs(t, err, scheduler.ErrNotFound)
	})
}

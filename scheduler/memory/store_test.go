package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/marcelsud/webhook-flow/scheduler"
	"github.com/marcelsud/webhook-flow/scheduler/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store := memory.NewStore()
	require.NoError(t, store.Save(ctx, scheduler.Event{ID: "late", TenantID: "t1", WorkflowID: "wf", Schedule: "@hourly", NextRun: now.Add(time.Hour)}))
	require.NoError(t, store.Save(ctx, scheduler.Event{ID: "due", TenantID: "t1", WorkflowID: "wf", Schedule: "@hourly", NextRun: now.Add(-time.Minute)}))
	require.NoError(t, store.Save(ctx, scheduler.Event{ID: "new", TenantID: "t2", WorkflowID: "wf", Schedule: "@hourly"}))

	t.Run("success - due only returns active events at or before now", func(t *testing.T) {
		due, err := store.Due(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, "due", due[0].ID)
	})

	t.Run("success - list filters by tenant", func(t *testing.T) {
		all, err := store.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 3)
		t2, err := store.List(ctx, "t2")
		require.NoError(t, err)
		require.Len(t, t2, 1)
		assert.Equal(t, "new", t2[0].ID)
	})

	t.Run("success - uninitialized events have no next run", func(t *testing.T) {
		got, err := store.Uninitialized(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "new", got[0].ID)
	})

	t.Run("success - claim wins once", func(t *testing.T) {
		ok, err := store.Claim(ctx, "due", now, now.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Claim(ctx, "due", now, now.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, ok)

		ev, err := store.Get(ctx, "due")
		require.NoError(t, err)
		assert.Equal(t, now, ev.LastRun)
		assert.Equal(t, now.Add(time.Hour), ev.NextRun)
	})

	t.Run("success - save keeps run times when omitted", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, scheduler.Event{ID: "due", TenantID: "t1", WorkflowID: "wf", Schedule: "@daily"}))
		ev, err := store.Get(ctx, "due")
		require.NoError(t, err)
		assert.Equal(t, "@daily", ev.Schedule)
		assert.Equal(t, now, ev.LastRun)
		assert.Equal(t, scheduler.Active, ev.Status)
	})

	t.Run("success - paused events cannot be claimed", func(t *testing.T) {
		require.NoError(t, store.SetNextRun(ctx, "late", now))
		require.NoError(t, store.SetStatus(ctx, "late", scheduler.Paused, ""))
		ok, err := store.Claim(ctx, "late", now, now.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("error - unknown event", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, scheduler.ErrNotFound)
		assert.ErrorIs(t, store.SetNextRun(ctx, "missing", now), scheduler.ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, "missing"), scheduler.ErrNotFound)
	})

	t.Run("success - delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "new"))
		_, err := store.Get(ctx, "new")
		assert.ErrorIs(t, err, scheduler.ErrNotFound)
	})
}

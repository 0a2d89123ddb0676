//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	pgstore "github.com/marcelsud/webhook-flow/internal/postgres"
	"github.com/marcelsud/webhook-flow/webhook"
	"github.com/marcelsud/webhook-flow/webhook/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_Integration(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := pgstore.SetupTestPool(t, ctx)
	defer cleanup()

	repo := postgres.NewRepository(pool)

	t.Run("save get update", func(t *testing.T) {
		reg, err := webhook.NewRegistration("t1", "meta", "wf-1", "n1")
		require.NoError(t, err)
		require.NoError(t, repo.SaveRegistration(ctx, reg))

		at := time.Now().UTC().Truncate(time.Millisecond)
		require.NoError(t, repo.UpdateLastTriggeredAt(ctx, reg.ID, at))

		got, err := repo.GetRegistration(ctx, reg.ID)
		require.NoError(t, err)
		assert.Equal(t, "meta", got.Provider)
		assert.Equal(t, webhook.RegistrationActive, got.Status)
		assert.WithinDuration(t, at, got.LastTriggeredAt, time.Millisecond)

		reg.NodeID = "n2"
		require.NoError(t, repo.SaveRegistration(ctx, reg))
		got, err = repo.GetRegistration(ctx, reg.ID)
		require.NoError(t, err)
		assert.Equal(t, "n2", got.NodeID)
		assert.WithinDuration(t, at, got.LastTriggeredAt, time.Millisecond)
	})

	t.Run("status changes", func(t *testing.T) {
		reg, _ := webhook.NewRegistration("t2", "slack", "wf-2", "n1")
		require.NoError(t, repo.SaveRegistration(ctx, reg))

		require.NoError(t, repo.SetRegistrationStatus(ctx, reg.ID, webhook.RegistrationError))
		require.NoError(t, repo.DeactivateWorkflow(ctx, "wf-2"))

		regs, err := repo.ListRegistrations(ctx, "t2")
		require.NoError(t, err)
		require.Len(t, regs, 1)
		assert.Equal(t, webhook.RegistrationInactive, regs[0].Status)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := repo.GetRegistration(ctx, "missing")
		assert.ErrorIs(t, err, webhook.ErrNotFound)
		assert.ErrorIs(t, repo.UpdateLastTriggeredAt(ctx, "missing", time.Now()), webhook.ErrNotFound)
	})
}

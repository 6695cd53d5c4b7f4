package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodia/internal/ledger/models"
	"custodia/internal/ledger/roles"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/audit"
	"custodia/pkg/platform/audit/publisher"
	auditmem "custodia/pkg/platform/audit/store/memory"
)

type lifecycleFixture struct {
	svc    *Service
	events *auditmem.InMemoryStore
	admin  id.Address
	pauser id.Address
	nobody id.Address
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	ctx := context.Background()

	roleStore := roles.NewInMemoryStore()
	access, err := roles.New(roleStore)
	require.NoError(t, err)

	f := &lifecycleFixture{
		events: auditmem.NewInMemoryStore(),
	}
	f.admin = mustAddr(t, "0x00000000000000000000000000000000000000ad")
	f.pauser = mustAddr(t, "0x00000000000000000000000000000000000000c1")
	f.nobody = mustAddr(t, "0x000000000000000000000000000000000000000f")

	_, err = roleStore.SetGrant(ctx, id.RoleDefaultAdmin, f.admin, true)
	require.NoError(t, err)
	_, err = roleStore.SetGrant(ctx, id.RolePauser, f.pauser, true)
	require.NoError(t, err)

	f.svc, err = New(NewInMemoryStore(), access,
		WithAuditPublisher(publisher.NewStorePublisher(f.events)))
	require.NoError(t, err)
	return f
}

func mustAddr(t *testing.T, s string) id.Address {
	t.Helper()
	a, err := id.ParseAddress(s)
	require.NoError(t, err)
	return a
}

func (f *lifecycleFixture) state(t *testing.T) models.LifecycleState {
	t.Helper()
	state, err := f.svc.State(context.Background())
	require.NoError(t, err)
	return state
}

func TestService_PauseUnpause(t *testing.T) {
	ctx := context.Background()

	t.Run("pauser pauses and unpauses", func(t *testing.T) {
		f := newLifecycleFixture(t)

		require.NoError(t, f.svc.Pause(ctx, f.pauser))
		assert.Equal(t, models.StatePaused, f.state(t))

		require.NoError(t, f.svc.Unpause(ctx, f.pauser))
		assert.Equal(t, models.StateActive, f.state(t))

		events, err := f.events.ListRecent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, string(audit.EventPaused), events[0].Action)
		assert.Equal(t, string(audit.EventUnpaused), events[1].Action)
	})

	t.Run("double pause is an illegal transition", func(t *testing.T) {
		f := newLifecycleFixture(t)
		require.NoError(t, f.svc.Pause(ctx, f.pauser))

		err := f.svc.Pause(ctx, f.pauser)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("unpause while active is an illegal transition", func(t *testing.T) {
		f := newLifecycleFixture(t)

		err := f.svc.Unpause(ctx, f.pauser)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("caller without pauser role is rejected", func(t *testing.T) {
		f := newLifecycleFixture(t)

		err := f.svc.Pause(ctx, f.nobody)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.Equal(t, models.StateActive, f.state(t))
	})

	t.Run("admin pauses via the admin shortcut", func(t *testing.T) {
		f := newLifecycleFixture(t)

		require.NoError(t, f.svc.Pause(ctx, f.admin))
		assert.Equal(t, models.StatePaused, f.state(t))
	})
}

func TestService_Deactivate(t *testing.T) {
	ctx := context.Background()

	t.Run("requires the paused state first", func(t *testing.T) {
		f := newLifecycleFixture(t)

		err := f.svc.Deactivate(ctx, f.admin)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		assert.Equal(t, models.StateActive, f.state(t))
	})

	t.Run("deactivation is terminal", func(t *testing.T) {
		f := newLifecycleFixture(t)
		require.NoError(t, f.svc.Pause(ctx, f.pauser))
		require.NoError(t, f.svc.Deactivate(ctx, f.admin))
		assert.Equal(t, models.StateDeactivated, f.state(t))

		err := f.svc.Unpause(ctx, f.pauser)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		err = f.svc.Pause(ctx, f.pauser)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		assert.Equal(t, models.StateDeactivated, f.state(t))
	})

	t.Run("pauser alone cannot deactivate", func(t *testing.T) {
		f := newLifecycleFixture(t)
		require.NoError(t, f.svc.Pause(ctx, f.pauser))

		err := f.svc.Deactivate(ctx, f.pauser)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.Equal(t, models.StatePaused, f.state(t))
	})
}

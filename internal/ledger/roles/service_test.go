package roles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/audit"
	"custodia/pkg/platform/audit/publisher"
	auditmem "custodia/pkg/platform/audit/store/memory"
)

func mustAddr(t *testing.T, s string) id.Address {
	t.Helper()
	a, err := id.ParseAddress(s)
	require.NoError(t, err)
	return a
}

type rolesFixture struct {
	svc    *Service
	events *auditmem.InMemoryStore
	admin  id.Address
	alice  id.Address
	bob    id.Address
}

func newRolesFixture(t *testing.T) *rolesFixture {
	t.Helper()

	store := NewInMemoryStore()
	events := auditmem.NewInMemoryStore()
	svc, err := New(store, WithAuditPublisher(publisher.NewStorePublisher(events)))
	require.NoError(t, err)

	f := &rolesFixture{
		svc:    svc,
		events: events,
		admin:  mustAddr(t, "0x00000000000000000000000000000000000000ad"),
		alice:  mustAddr(t, "0x00000000000000000000000000000000000000a1"),
		bob:    mustAddr(t, "0x00000000000000000000000000000000000000b0"),
	}

	// Bootstrap the admin the way cmd/server does: a direct store write,
	// since no caller holds any role yet.
	_, err = store.SetGrant(context.Background(), id.RoleDefaultAdmin, f.admin, true)
	require.NoError(t, err)
	return f
}

func TestService_HasRole(t *testing.T) {
	ctx := context.Background()
	f := newRolesFixture(t)

	t.Run("direct grant", func(t *testing.T) {
		require.NoError(t, f.svc.GrantRole(ctx, f.admin, id.RoleMinter, f.alice))

		held, err := f.svc.HasRole(ctx, id.RoleMinter, f.alice)
		require.NoError(t, err)
		assert.True(t, held)
	})

	t.Run("missing grant", func(t *testing.T) {
		held, err := f.svc.HasRole(ctx, id.RoleBurner, f.alice)
		require.NoError(t, err)
		assert.False(t, held)
	})

	t.Run("zero address never holds a role", func(t *testing.T) {
		held, err := f.svc.HasRole(ctx, id.RoleDefaultAdmin, id.ZeroAddress)
		require.NoError(t, err)
		assert.False(t, held)
	})
}

func TestService_HasRole_AdminSatisfiesEveryRole(t *testing.T) {
	ctx := context.Background()
	f := newRolesFixture(t)

	for _, role := range []id.RoleID{
		id.RoleDefaultAdmin,
		id.RoleMinter,
		id.RoleBurner,
		id.RolePauser,
		id.RoleEnforcer,
		id.RoleERC20Enforcer,
		id.RoleSnapshooter,
		id.RoleDocument,
		id.RoleExtraInformation,
		id.RoleAllowlistManager,
		id.RoleDebt,
		id.RoleCrossChain,
	} {
		held, err := f.svc.HasRole(ctx, role, f.admin)
		require.NoError(t, err)
		assert.True(t, held, "admin must satisfy %s without a direct grant", role)
	}
}

func TestService_GrantRole(t *testing.T) {
	ctx := context.Background()

	t.Run("admin grants and event is emitted", func(t *testing.T) {
		f := newRolesFixture(t)

		require.NoError(t, f.svc.GrantRole(ctx, f.admin, id.RoleMinter, f.alice))

		held, err := f.svc.HasRole(ctx, id.RoleMinter, f.alice)
		require.NoError(t, err)
		assert.True(t, held)

		events, err := f.events.ListRecent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, string(audit.EventRoleGranted), events[0].Action)
		assert.Equal(t, id.RoleMinter.String(), events[0].Role)
		assert.Equal(t, f.alice, events[0].To)
	})

	t.Run("regranting a held role emits nothing", func(t *testing.T) {
		f := newRolesFixture(t)

		require.NoError(t, f.svc.GrantRole(ctx, f.admin, id.RoleMinter, f.alice))
		require.NoError(t, f.svc.GrantRole(ctx, f.admin, id.RoleMinter, f.alice))

		events, err := f.events.ListRecent(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})

	t.Run("non-admin caller is rejected", func(t *testing.T) {
		f := newRolesFixture(t)

		err := f.svc.GrantRole(ctx, f.bob, id.RoleMinter, f.alice)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

		held, err := f.svc.HasRole(ctx, id.RoleMinter, f.alice)
		require.NoError(t, err)
		assert.False(t, held)
	})

	t.Run("zero address account is rejected", func(t *testing.T) {
		f := newRolesFixture(t)

		err := f.svc.GrantRole(ctx, f.admin, id.RoleMinter, id.ZeroAddress)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestService_RevokeRole(t *testing.T) {
	ctx := context.Background()

	t.Run("admin revokes and event is emitted", func(t *testing.T) {
		f := newRolesFixture(t)
		require.NoError(t, f.svc.GrantRole(ctx, f.admin, id.RoleBurner, f.alice))

		require.NoError(t, f.svc.RevokeRole(ctx, f.admin, id.RoleBurner, f.alice))

		held, err := f.svc.HasRole(ctx, id.RoleBurner, f.alice)
		require.NoError(t, err)
		assert.False(t, held)

		events, err := f.events.ListRecent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, string(audit.EventRoleRevoked), events[1].Action)
	})

	t.Run("revoking an unheld role emits nothing", func(t *testing.T) {
		f := newRolesFixture(t)

		require.NoError(t, f.svc.RevokeRole(ctx, f.admin, id.RoleBurner, f.alice))

		events, err := f.events.ListRecent(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("non-admin caller is rejected", func(t *testing.T) {
		f := newRolesFixture(t)
		require.NoError(t, f.svc.GrantRole(ctx, f.admin, id.RoleBurner, f.alice))

		err := f.svc.RevokeRole(ctx, f.bob, id.RoleBurner, f.alice)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestService_RenounceRole(t *testing.T) {
	ctx := context.Background()

	t.Run("holder renounces own role", func(t *testing.T) {
		f := newRolesFixture(t)
		require.NoError(t, f.svc.GrantRole(ctx, f.admin, id.RolePauser, f.alice))

		require.NoError(t, f.svc.RenounceRole(ctx, f.alice, id.RolePauser, f.alice))

		held, err := f.svc.HasRole(ctx, id.RolePauser, f.alice)
		require.NoError(t, err)
		assert.False(t, held)
	})

	t.Run("cannot renounce for another account", func(t *testing.T) {
		f := newRolesFixture(t)
		require.NoError(t, f.svc.GrantRole(ctx, f.admin, id.RolePauser, f.alice))

		err := f.svc.RenounceRole(ctx, f.bob, id.RolePauser, f.alice)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

		held, err := f.svc.HasRole(ctx, id.RolePauser, f.alice)
		require.NoError(t, err)
		assert.True(t, held)
	})

	t.Run("admin cannot use revoke gating to bypass the self check", func(t *testing.T) {
		f := newRolesFixture(t)
		require.NoError(t, f.svc.GrantRole(ctx, f.admin, id.RolePauser, f.alice))

		err := f.svc.RenounceRole(ctx, f.admin, id.RolePauser, f.alice)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestService_RoleAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults to default admin", func(t *testing.T) {
		f := newRolesFixture(t)

		admin, err := f.svc.RoleAdmin(ctx, id.RoleMinter)
		require.NoError(t, err)
		assert.Equal(t, id.RoleDefaultAdmin, admin)
	})

	t.Run("configured admin role gates grants", func(t *testing.T) {
		f := newRolesFixture(t)
		require.NoError(t, f.svc.SetRoleAdmin(ctx, id.RoleMinter, id.RolePauser))
		require.NoError(t, f.svc.GrantRole(ctx, f.admin, id.RolePauser, f.bob))

		// bob holds pauser, which now administers minter.
		require.NoError(t, f.svc.GrantRole(ctx, f.bob, id.RoleMinter, f.alice))

		held, err := f.svc.HasRole(ctx, id.RoleMinter, f.alice)
		require.NoError(t, err)
		assert.True(t, held)
	})
}

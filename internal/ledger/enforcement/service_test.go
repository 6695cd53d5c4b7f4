package enforcement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodia/internal/ledger/roles"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/audit"
	"custodia/pkg/platform/audit/publisher"
	auditmem "custodia/pkg/platform/audit/store/memory"
)

type stubBalances struct {
	balances map[id.Address]id.Amount
}

func (s *stubBalances) BalanceOf(_ context.Context, account id.Address) (id.Amount, error) {
	return s.balances[account], nil
}

type enforcementFixture struct {
	svc      *Service
	events   *auditmem.InMemoryStore
	balances *stubBalances
	enforcer id.Address
	partial  id.Address
	nobody   id.Address
	holder   id.Address
}

func newEnforcementFixture(t *testing.T) *enforcementFixture {
	t.Helper()
	ctx := context.Background()

	roleStore := roles.NewInMemoryStore()
	access, err := roles.New(roleStore)
	require.NoError(t, err)

	f := &enforcementFixture{
		events:   auditmem.NewInMemoryStore(),
		balances: &stubBalances{balances: make(map[id.Address]id.Amount)},
		enforcer: mustAddr(t, "0x00000000000000000000000000000000000000e1"),
		partial:  mustAddr(t, "0x00000000000000000000000000000000000000e2"),
		nobody:   mustAddr(t, "0x000000000000000000000000000000000000000f"),
		holder:   mustAddr(t, "0x00000000000000000000000000000000000000a1"),
	}

	_, err = roleStore.SetGrant(ctx, id.RoleEnforcer, f.enforcer, true)
	require.NoError(t, err)
	_, err = roleStore.SetGrant(ctx, id.RoleERC20Enforcer, f.partial, true)
	require.NoError(t, err)

	f.svc, err = New(NewInMemoryStore(), access, f.balances,
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

func amountOf(t *testing.T, v uint64) id.Amount {
	t.Helper()
	return id.NewAmount(v)
}

func TestService_SetAddressFrozen(t *testing.T) {
	ctx := context.Background()

	t.Run("enforcer freezes and unfreezes", func(t *testing.T) {
		f := newEnforcementFixture(t)

		require.NoError(t, f.svc.SetAddressFrozen(ctx, f.enforcer, f.holder, true))
		frozen, err := f.svc.IsFrozen(ctx, f.holder)
		require.NoError(t, err)
		assert.True(t, frozen)

		require.NoError(t, f.svc.SetAddressFrozen(ctx, f.enforcer, f.holder, false))
		frozen, err = f.svc.IsFrozen(ctx, f.holder)
		require.NoError(t, err)
		assert.False(t, frozen)

		events, err := f.events.ListRecent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, string(audit.EventAddressFrozen), events[0].Action)
		assert.Equal(t, string(audit.EventAddressUnfrozen), events[1].Action)
	})

	t.Run("refreezing a frozen address emits nothing", func(t *testing.T) {
		f := newEnforcementFixture(t)

		require.NoError(t, f.svc.SetAddressFrozen(ctx, f.enforcer, f.holder, true))
		require.NoError(t, f.svc.SetAddressFrozen(ctx, f.enforcer, f.holder, true))

		events, err := f.events.ListRecent(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})

	t.Run("caller without enforcer role is rejected", func(t *testing.T) {
		f := newEnforcementFixture(t)

		err := f.svc.SetAddressFrozen(ctx, f.nobody, f.holder, true)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("zero address is rejected", func(t *testing.T) {
		f := newEnforcementFixture(t)

		err := f.svc.SetAddressFrozen(ctx, f.enforcer, id.ZeroAddress, true)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestService_BatchSetAddressFrozen(t *testing.T) {
	ctx := context.Background()

	t.Run("applies pairwise", func(t *testing.T) {
		f := newEnforcementFixture(t)
		other := mustAddr(t, "0x00000000000000000000000000000000000000a2")
		require.NoError(t, f.svc.SetAddressFrozen(ctx, f.enforcer, other, true))

		err := f.svc.BatchSetAddressFrozen(ctx, f.enforcer,
			[]id.Address{f.holder, other}, []bool{true, false})
		require.NoError(t, err)

		frozen, err := f.svc.IsFrozen(ctx, f.holder)
		require.NoError(t, err)
		assert.True(t, frozen)
		frozen, err = f.svc.IsFrozen(ctx, other)
		require.NoError(t, err)
		assert.False(t, frozen)
	})

	t.Run("length mismatch rejects the whole batch", func(t *testing.T) {
		f := newEnforcementFixture(t)

		err := f.svc.BatchSetAddressFrozen(ctx, f.enforcer,
			[]id.Address{f.holder}, []bool{true, false})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

		frozen, err := f.svc.IsFrozen(ctx, f.holder)
		require.NoError(t, err)
		assert.False(t, frozen, "no entry of a mismatched batch may be applied")
	})

	t.Run("zero address anywhere rejects before applying", func(t *testing.T) {
		f := newEnforcementFixture(t)

		err := f.svc.BatchSetAddressFrozen(ctx, f.enforcer,
			[]id.Address{f.holder, id.ZeroAddress}, []bool{true, true})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

		frozen, err := f.svc.IsFrozen(ctx, f.holder)
		require.NoError(t, err)
		assert.False(t, frozen)
	})
}

func TestService_FreezePartialTokens(t *testing.T) {
	ctx := context.Background()

	t.Run("freezes up to the balance", func(t *testing.T) {
		f := newEnforcementFixture(t)
		f.balances.balances[f.holder] = amountOf(t, 100)

		require.NoError(t, f.svc.FreezePartialTokens(ctx, f.partial, f.holder, amountOf(t, 60)))
		require.NoError(t, f.svc.FreezePartialTokens(ctx, f.partial, f.holder, amountOf(t, 40)))

		frozen, err := f.svc.FrozenTokens(ctx, f.holder)
		require.NoError(t, err)
		assert.True(t, frozen.Equal(amountOf(t, 100)))
	})

	t.Run("cannot freeze past the balance", func(t *testing.T) {
		f := newEnforcementFixture(t)
		f.balances.balances[f.holder] = amountOf(t, 100)
		require.NoError(t, f.svc.FreezePartialTokens(ctx, f.partial, f.holder, amountOf(t, 60)))

		err := f.svc.FreezePartialTokens(ctx, f.partial, f.holder, amountOf(t, 41))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInsufficientBalance))

		frozen, err := f.svc.FrozenTokens(ctx, f.holder)
		require.NoError(t, err)
		assert.True(t, frozen.Equal(amountOf(t, 60)))
	})

	t.Run("address enforcer role is not enough", func(t *testing.T) {
		f := newEnforcementFixture(t)
		f.balances.balances[f.holder] = amountOf(t, 100)

		err := f.svc.FreezePartialTokens(ctx, f.enforcer, f.holder, amountOf(t, 10))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestService_UnfreezePartialTokens(t *testing.T) {
	ctx := context.Background()

	t.Run("releases frozen tokens", func(t *testing.T) {
		f := newEnforcementFixture(t)
		f.balances.balances[f.holder] = amountOf(t, 100)
		require.NoError(t, f.svc.FreezePartialTokens(ctx, f.partial, f.holder, amountOf(t, 60)))

		require.NoError(t, f.svc.UnfreezePartialTokens(ctx, f.partial, f.holder, amountOf(t, 25)))

		frozen, err := f.svc.FrozenTokens(ctx, f.holder)
		require.NoError(t, err)
		assert.True(t, frozen.Equal(amountOf(t, 35)))
	})

	t.Run("cannot release more than frozen", func(t *testing.T) {
		f := newEnforcementFixture(t)
		f.balances.balances[f.holder] = amountOf(t, 100)
		require.NoError(t, f.svc.FreezePartialTokens(ctx, f.partial, f.holder, amountOf(t, 30)))

		err := f.svc.UnfreezePartialTokens(ctx, f.partial, f.holder, amountOf(t, 31))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestService_UnfreezeForTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("releases the minimum of frozen and requested", func(t *testing.T) {
		f := newEnforcementFixture(t)
		f.balances.balances[f.holder] = amountOf(t, 100)
		require.NoError(t, f.svc.FreezePartialTokens(ctx, f.partial, f.holder, amountOf(t, 40)))

		require.NoError(t, f.svc.UnfreezeForTransfer(ctx, f.enforcer, f.holder, amountOf(t, 70)))

		frozen, err := f.svc.FrozenTokens(ctx, f.holder)
		require.NoError(t, err)
		assert.True(t, frozen.IsZero())

		events, err := f.events.ListRecent(ctx, 10)
		require.NoError(t, err)
		last := events[len(events)-1]
		assert.Equal(t, string(audit.EventTokensUnfrozen), last.Action)
		assert.Equal(t, "40", last.Amount, "the event must carry the released amount, not the requested one")
	})

	t.Run("nothing frozen releases nothing and emits nothing", func(t *testing.T) {
		f := newEnforcementFixture(t)

		require.NoError(t, f.svc.UnfreezeForTransfer(ctx, f.enforcer, f.holder, amountOf(t, 70)))

		events, err := f.events.ListRecent(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

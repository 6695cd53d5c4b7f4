//go:build integration

package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodia/internal/ledger/enforcement"
	"custodia/internal/ledger/lifecycle"
	"custodia/internal/ledger/models"
	"custodia/internal/ledger/roles"
	"custodia/internal/ledger/token"
	"custodia/internal/storage"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/audit"
	auditpg "custodia/pkg/platform/audit/store/postgres"
	"custodia/pkg/platform/tx"
	"custodia/pkg/testutil/containers"
)

func mustAddr(t *testing.T, s string) id.Address {
	t.Helper()
	a, err := id.ParseAddress(s)
	require.NoError(t, err)
	return a
}

func TestPostgresRoleStore(t *testing.T) {
	ctx := context.Background()
	pg := containers.NewPostgresContainer(t, storage.Schema)
	store := roles.NewPostgresStore(pg.DB)

	alice := mustAddr(t, "0x00000000000000000000000000000000000000a1")

	held, err := store.HasGrant(ctx, id.RoleMinter, alice)
	require.NoError(t, err)
	assert.False(t, held)

	changed, err := store.SetGrant(ctx, id.RoleMinter, alice, true)
	require.NoError(t, err)
	assert.True(t, changed)

	// Idempotent re-grant.
	changed, err = store.SetGrant(ctx, id.RoleMinter, alice, true)
	require.NoError(t, err)
	assert.False(t, changed)

	held, err = store.HasGrant(ctx, id.RoleMinter, alice)
	require.NoError(t, err)
	assert.True(t, held)

	changed, err = store.SetGrant(ctx, id.RoleMinter, alice, false)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = store.SetGrant(ctx, id.RoleMinter, alice, false)
	require.NoError(t, err)
	assert.False(t, changed)

	_, ok, err := store.AdminOf(ctx, id.RoleMinter)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetAdmin(ctx, id.RoleMinter, id.RolePauser))
	admin, ok, err := store.AdminOf(ctx, id.RoleMinter)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id.RolePauser, admin)
}

func TestPostgresLifecycleStore(t *testing.T) {
	ctx := context.Background()
	pg := containers.NewPostgresContainer(t, storage.Schema)
	store := lifecycle.NewPostgresStore(pg.DB)

	// Empty table reads as active.
	state, err := store.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StateActive, state)

	require.NoError(t, store.SetState(ctx, models.StatePaused))
	state, err = store.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatePaused, state)

	require.NoError(t, store.SetState(ctx, models.StateDeactivated))
	state, err = store.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StateDeactivated, state)
}

func TestPostgresAccountStore(t *testing.T) {
	ctx := context.Background()
	pg := containers.NewPostgresContainer(t, storage.Schema)
	store := token.NewPostgresStore(pg.DB)

	alice := mustAddr(t, "0x00000000000000000000000000000000000000a1")
	bob := mustAddr(t, "0x00000000000000000000000000000000000000a2")

	balance, err := store.Balance(ctx, alice)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	require.NoError(t, store.SetBalance(ctx, alice, id.NewAmount(1000)))
	balance, err = store.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "1000", balance.String())

	// Zero balance deletes the row.
	require.NoError(t, store.SetBalance(ctx, alice, id.Amount{}))
	balance, err = store.Balance(ctx, alice)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	require.NoError(t, store.SetTotalSupply(ctx, id.NewAmount(5000)))
	supply, err := store.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, "5000", supply.String())

	require.NoError(t, store.SetAllowance(ctx, alice, bob, id.NewAmount(250)))
	allowance, err := store.Allowance(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, "250", allowance.String())

	require.NoError(t, store.SetMetadata(ctx, "Custody Token", "CSTD"))
	name, symbol, err := store.Metadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Custody Token", name)
	assert.Equal(t, "CSTD", symbol)

	// Metadata upsert must not clobber the supply.
	supply, err = store.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, "5000", supply.String())
}

func TestPostgresAuditStore(t *testing.T) {
	ctx := context.Background()
	pg := containers.NewPostgresContainer(t, storage.Schema)
	store := auditpg.New(pg.DB)

	minter := mustAddr(t, "0x00000000000000000000000000000000000000d1")
	alice := mustAddr(t, "0x00000000000000000000000000000000000000a1")
	bob := mustAddr(t, "0x00000000000000000000000000000000000000a2")

	base := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, store.Append(ctx, audit.Event{
		Timestamp: base,
		Actor:     minter,
		Action:    string(audit.EventMint),
		From:      id.ZeroAddress,
		To:        alice,
		Amount:    "1000",
	}))
	require.NoError(t, store.Append(ctx, audit.Event{
		Timestamp: base.Add(time.Second),
		Actor:     alice,
		Action:    string(audit.EventTransfer),
		From:      alice,
		To:        bob,
		Amount:    "400",
	}))

	events, err := store.ListByAccount(ctx, alice)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, string(audit.EventMint), events[0].Action)
	assert.Equal(t, "1000", events[0].Amount)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.Equal(t, string(audit.EventTransfer), events[1].Action)
	assert.Equal(t, alice, events[1].From)
	assert.Equal(t, bob, events[1].To)

	events, err = store.ListByAccount(ctx, bob)
	require.NoError(t, err)
	require.Len(t, events, 1)

	recent, err := store.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, string(audit.EventTransfer), recent[0].Action)
}

func TestRedisFreezeStore(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	store := enforcement.NewRedisStore(rc.Client)

	alice := mustAddr(t, "0x00000000000000000000000000000000000000a1")

	frozen, err := store.IsFrozen(ctx, alice)
	require.NoError(t, err)
	assert.False(t, frozen)

	changed, err := store.SetFrozen(ctx, alice, true)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = store.SetFrozen(ctx, alice, true)
	require.NoError(t, err)
	assert.False(t, changed)

	frozen, err = store.IsFrozen(ctx, alice)
	require.NoError(t, err)
	assert.True(t, frozen)

	changed, err = store.SetFrozen(ctx, alice, false)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = store.SetFrozen(ctx, alice, false)
	require.NoError(t, err)
	assert.False(t, changed)

	amount, err := store.FrozenAmount(ctx, alice)
	require.NoError(t, err)
	assert.True(t, amount.IsZero())

	require.NoError(t, store.SetFrozenAmount(ctx, alice, id.NewAmount(300)))
	amount, err = store.FrozenAmount(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "300", amount.String())

	require.NoError(t, store.SetFrozenAmount(ctx, alice, id.Amount{}))
	amount, err = store.FrozenAmount(ctx, alice)
	require.NoError(t, err)
	assert.True(t, amount.IsZero())
}

func TestSQLRunner(t *testing.T) {
	ctx := context.Background()
	pg := containers.NewPostgresContainer(t, storage.Schema)
	store := token.NewPostgresStore(pg.DB)
	runner := tx.NewSQLRunner(pg.DB)

	alice := mustAddr(t, "0x00000000000000000000000000000000000000a1")
	bob := mustAddr(t, "0x00000000000000000000000000000000000000b1")

	t.Run("commits the whole unit", func(t *testing.T) {
		err := runner.RunInTx(ctx, func(ctx context.Context) error {
			if err := store.SetBalance(ctx, alice, id.NewAmount(100)); err != nil {
				return err
			}
			return store.SetTotalSupply(ctx, id.NewAmount(100))
		})
		require.NoError(t, err)

		balance, err := store.Balance(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, "100", balance.String())
		supply, err := store.TotalSupply(ctx)
		require.NoError(t, err)
		assert.Equal(t, "100", supply.String())
	})

	t.Run("an error rolls back every preceding write", func(t *testing.T) {
		err := runner.RunInTx(ctx, func(ctx context.Context) error {
			if err := store.SetBalance(ctx, alice, id.NewAmount(40)); err != nil {
				return err
			}
			if err := store.SetBalance(ctx, bob, id.NewAmount(60)); err != nil {
				return err
			}
			return errors.New("credit rejected")
		})
		require.Error(t, err)

		balance, err := store.Balance(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, "100", balance.String(), "the debit must not survive the rollback")
		balance, err = store.Balance(ctx, bob)
		require.NoError(t, err)
		assert.True(t, balance.IsZero())
	})

	t.Run("nested calls join the outer transaction", func(t *testing.T) {
		err := runner.RunInTx(ctx, func(ctx context.Context) error {
			if err := store.SetBalance(ctx, bob, id.NewAmount(5)); err != nil {
				return err
			}
			return runner.RunInTx(ctx, func(ctx context.Context) error {
				return errors.New("inner failure")
			})
		})
		require.Error(t, err)

		balance, err := store.Balance(ctx, bob)
		require.NoError(t, err)
		assert.True(t, balance.IsZero(), "the outer transaction rolls back as one unit")
	})
}

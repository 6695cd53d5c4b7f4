package roles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "custodia/pkg/domain"
)

func TestInMemoryStore_SetGrant_ReportsChange(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	account := mustAddr(t, "0x00000000000000000000000000000000000000a1")

	changed, err := store.SetGrant(ctx, id.RoleMinter, account, true)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = store.SetGrant(ctx, id.RoleMinter, account, true)
	require.NoError(t, err)
	assert.False(t, changed, "regrant must not report a change")

	changed, err = store.SetGrant(ctx, id.RoleMinter, account, false)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = store.SetGrant(ctx, id.RoleMinter, account, false)
	require.NoError(t, err)
	assert.False(t, changed, "clearing an absent grant must not report a change")

	changed, err = store.SetGrant(ctx, id.RoleBurner, account, false)
	require.NoError(t, err)
	assert.False(t, changed, "clearing a grant for an unseen role must not report a change")
}

func TestInMemoryStore_AdminOf(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	_, ok, err := store.AdminOf(ctx, id.RoleMinter)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetAdmin(ctx, id.RoleMinter, id.RolePauser))

	admin, ok, err := store.AdminOf(ctx, id.RoleMinter)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id.RolePauser, admin)
}

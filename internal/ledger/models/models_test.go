package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

func TestLifecycleTransitions(t *testing.T) {
	tests := []struct {
		name string
		from LifecycleState
		to   LifecycleState
		ok   bool
	}{
		{"active can pause", StateActive, StatePaused, true},
		{"active cannot deactivate directly", StateActive, StateDeactivated, false},
		{"active cannot re-activate", StateActive, StateActive, false},
		{"paused can unpause", StatePaused, StateActive, true},
		{"paused can deactivate", StatePaused, StateDeactivated, true},
		{"paused cannot re-pause", StatePaused, StatePaused, false},
		{"deactivated is terminal for active", StateDeactivated, StateActive, false},
		{"deactivated is terminal for paused", StateDeactivated, StatePaused, false},
		{"deactivated is terminal for itself", StateDeactivated, StateDeactivated, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := tt.from.Transition(tt.to)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.to, next)
				return
			}
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
			assert.Equal(t, tt.from, next, "failed transition must not change state")
		})
	}
}

func TestParseLifecycleState(t *testing.T) {
	for _, state := range []LifecycleState{StateActive, StatePaused, StateDeactivated} {
		parsed, err := ParseLifecycleState(state.String())
		require.NoError(t, err)
		assert.Equal(t, state, parsed)
	}

	_, err := ParseLifecycleState("halted")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestRestrictionCodes(t *testing.T) {
	t.Run("zero means unrestricted", func(t *testing.T) {
		assert.False(t, CodeNone.Restricted())
		assert.Equal(t, "No restriction", CodeNone.Message())
	})

	t.Run("every reserved code has a distinct message", func(t *testing.T) {
		seen := make(map[string]RestrictionCode)
		for code := CodeNone; code <= CodeFromFrozen; code++ {
			msg := code.Message()
			assert.NotEqual(t, UnknownRestrictionMessage, msg, "code %d should be known", code)
			if prev, dup := seen[msg]; dup {
				t.Fatalf("codes %d and %d share message %q", prev, code, msg)
			}
			seen[msg] = code
		}
	})

	t.Run("unknown codes fall back", func(t *testing.T) {
		assert.Equal(t, UnknownRestrictionMessage, RestrictionCode(200).Message())
		assert.False(t, RestrictionCode(200).Known())
		assert.True(t, RestrictionCode(200).Restricted())
	})
}

func TestActiveBalance(t *testing.T) {
	t.Run("subtracts frozen from balance", func(t *testing.T) {
		assert.Equal(t, id.NewAmount(700), ActiveBalance(id.NewAmount(1000), id.NewAmount(300)))
	})

	t.Run("floors at zero when frozen exceeds balance", func(t *testing.T) {
		assert.True(t, ActiveBalance(id.NewAmount(100), id.NewAmount(300)).IsZero())
	})

	t.Run("account view agrees", func(t *testing.T) {
		acct := Account{Balance: id.NewAmount(50), FrozenAmount: id.NewAmount(20)}
		assert.Equal(t, id.NewAmount(30), acct.ActiveBalance())
	})
}

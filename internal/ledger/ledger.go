// Package ledger composes the role, lifecycle, enforcement, token, issuance,
// and validation services into a single facade.
//
// The facade owns the one lock in the system. Every mutating operation runs
// under the write lock, every query under the read lock, so each operation
// observes and produces a consistent state even though the services beneath
// are lock-free and call into each other freely.
//
// The facade also owns the transaction boundary: each mutation runs inside
// the configured tx.Runner, so on a SQL backend every store write of an
// operation commits or rolls back together.
package ledger

import (
	"context"
	"fmt"
	"sync"

	"custodia/internal/ledger/enforcement"
	"custodia/internal/ledger/issuance"
	"custodia/internal/ledger/lifecycle"
	"custodia/internal/ledger/models"
	"custodia/internal/ledger/ports"
	"custodia/internal/ledger/roles"
	"custodia/internal/ledger/token"
	"custodia/internal/ledger/validation"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/tx"
)

type Ledger struct {
	mu     sync.RWMutex
	runner tx.Runner

	roles       *roles.Service
	lifecycle   *lifecycle.Service
	enforcement *enforcement.Service
	token       *token.Service
	issuance    *issuance.Service
	validation  *validation.Engine
}

type Option func(*Ledger)

// WithTxRunner sets the transaction runner bracketing every mutation.
// SQL-backed deployments pass tx.NewSQLRunner; the default is a no-op for
// in-memory stores.
func WithTxRunner(r tx.Runner) Option {
	return func(l *Ledger) {
		if r != nil {
			l.runner = r
		}
	}
}

func New(r *roles.Service, l *lifecycle.Service, e *enforcement.Service, t *token.Service, i *issuance.Service, v *validation.Engine, opts ...Option) (*Ledger, error) {
	if r == nil || l == nil || e == nil || t == nil || i == nil || v == nil {
		return nil, fmt.Errorf("all ledger services are required")
	}
	led := &Ledger{
		runner:      tx.NopRunner{},
		roles:       r,
		lifecycle:   l,
		enforcement: e,
		token:       t,
		issuance:    i,
		validation:  v,
	}
	for _, opt := range opts {
		opt(led)
	}
	return led, nil
}

// mutate serializes a write under the facade lock and brackets it in the
// transaction runner.
func (l *Ledger) mutate(ctx context.Context, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.runner.RunInTx(ctx, fn)
}

// -----------------------------------------------------------------------------
// Token queries
// -----------------------------------------------------------------------------

func (l *Ledger) BalanceOf(ctx context.Context, account id.Address) (id.Amount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.token.BalanceOf(ctx, account)
}

func (l *Ledger) ActiveBalanceOf(ctx context.Context, account id.Address) (id.Amount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.token.ActiveBalanceOf(ctx, account)
}

func (l *Ledger) TotalSupply(ctx context.Context) (id.Amount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.token.TotalSupply(ctx)
}

func (l *Ledger) Allowance(ctx context.Context, owner, spender id.Address) (id.Amount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.token.Allowance(ctx, owner, spender)
}

func (l *Ledger) Name(ctx context.Context) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.token.Name(ctx)
}

func (l *Ledger) Symbol(ctx context.Context) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.token.Symbol(ctx)
}

func (l *Ledger) Decimals() uint8 {
	return l.token.Decimals()
}

// -----------------------------------------------------------------------------
// Token mutations
// -----------------------------------------------------------------------------

func (l *Ledger) Transfer(ctx context.Context, caller, to id.Address, amount id.Amount) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		return l.token.Transfer(ctx, caller, to, amount)
	})
}

func (l *Ledger) TransferFrom(ctx context.Context, caller, from, to id.Address, amount id.Amount) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		return l.token.TransferFrom(ctx, caller, from, to, amount)
	})
}

func (l *Ledger) Approve(ctx context.Context, caller, spender id.Address, amount id.Amount) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		return l.token.Approve(ctx, caller, spender, amount)
	})
}

func (l *Ledger) BatchTransfer(ctx context.Context, caller id.Address, recipients []id.Address, amounts []id.Amount) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		return l.token.BatchTransfer(ctx, caller, recipients, amounts)
	})
}

func (l *Ledger) ForcedTransfer(ctx context.Context, caller, from, to id.Address, amount id.Amount) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		return l.token.ForcedTransfer(ctx, caller, from, to, amount)
	})
}

func (l *Ledger) SetName(ctx context.Context, caller id.Address, name string) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		return l.token.SetName(ctx, caller, name)
	})
}

func (l *Ledger) SetSymbol(ctx context.Context, caller id.Address, symbol string) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		return l.token.SetSymbol(ctx, caller, symbol)
	})
}

// -----------------------------------------------------------------------------
// Issuance
// -----------------------------------------------------------------------------

func (l *Ledger) Mint(ctx context.Context, caller, to id.Address, amount id.Amount) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		return l.issuance.Mint(ctx, caller, to, amount)
	})
}

func (l *Ledger) BatchMint(ctx context.Context, caller id.Address, recipients []id.Address, amounts []id.Amount) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		return l.issuance.BatchMint(ctx, caller, recipients, amounts)
	})
}

func (l *Ledger) Burn(ctx context.Context, caller, from id.Address, amount id.Amount) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		return l.issuance.Burn(ctx, caller, from, amount)
	})
}

func (l *Ledger) BatchBurn(ctx context.Context, caller id.Address, holders []id.Address, amounts []id.Amount) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		return l.issuance.BatchBurn(ctx, caller, holders, amounts)
	})
}

func (l *Ledger) ForcedBurn(ctx context.Context, caller, from id.Address, amount id.Amount) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		return l.issuance.ForcedBurn(ctx, caller, from, amount)
	})
}

// -----------------------------------------------------------------------------
// Roles
// -----------------------------------------------------------------------------

func (l *Ledger) HasRole(ctx context.Context, role id.RoleID, account id.Address) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.roles.HasRole(ctx, role, account)
}

func (l *Ledger) RoleAdmin(ctx context.Context, role id.RoleID) (id.RoleID, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.roles.RoleAdmin(ctx, role)
}

func (l *Ledger) GrantRole(ctx context.Context, caller id.Address, role id.RoleID, account id.Address) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		return l.roles.GrantRole(ctx, caller, role, account)
	})
}

func (l *Ledger) RevokeRole(ctx context.Context, caller id.Address, role id.RoleID, account id.Address) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		return l.roles.RevokeRole(ctx, caller, role, account)
	})
}

func (l *Ledger) RenounceRole(ctx context.Context, caller id.Address, role id.RoleID, account id.Address) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		return l.roles.RenounceRole(ctx, caller, role, account)
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

func (l *Ledger) State(ctx context.Context) (models.LifecycleState, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lifecycle.State(ctx)
}

func (l *Ledger) Pause(ctx context.Context, caller id.Address) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		return l.lifecycle.Pause(ctx, caller)
	})
}

func (l *Ledger) Unpause(ctx context.Context, caller id.Address) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		return l.lifecycle.Unpause(ctx, caller)
	})
}

func (l *Ledger) Deactivate(ctx context.Context, caller id.Address) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		return l.lifecycle.Deactivate(ctx, caller)
	})
}

// -----------------------------------------------------------------------------
// Enforcement
// -----------------------------------------------------------------------------

func (l *Ledger) IsFrozen(ctx context.Context, account id.Address) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.enforcement.IsFrozen(ctx, account)
}

func (l *Ledger) FrozenTokens(ctx context.Context, account id.Address) (id.Amount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.enforcement.FrozenTokens(ctx, account)
}

func (l *Ledger) SetAddressFrozen(ctx context.Context, caller, account id.Address, frozen bool) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		return l.enforcement.SetAddressFrozen(ctx, caller, account, frozen)
	})
}

func (l *Ledger) BatchSetAddressFrozen(ctx context.Context, caller id.Address, accounts []id.Address, frozen []bool) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		return l.enforcement.BatchSetAddressFrozen(ctx, caller, accounts, frozen)
	})
}

func (l *Ledger) FreezePartialTokens(ctx context.Context, caller, account id.Address, amount id.Amount) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		return l.enforcement.FreezePartialTokens(ctx, caller, account, amount)
	})
}

func (l *Ledger) UnfreezePartialTokens(ctx context.Context, caller, account id.Address, amount id.Amount) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		return l.enforcement.UnfreezePartialTokens(ctx, caller, account, amount)
	})
}

// -----------------------------------------------------------------------------
// Validation
// -----------------------------------------------------------------------------

func (l *Ledger) DetectTransferRestriction(ctx context.Context, from, to id.Address, amount id.Amount) (models.RestrictionCode, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.validation.DetectTransferRestriction(ctx, from, to, amount)
}

func (l *Ledger) MessageForCode(ctx context.Context, code models.RestrictionCode) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.validation.MessageForCode(ctx, code)
}

func (l *Ledger) SetEngine(ctx context.Context, caller id.Address, kind validation.EngineKind, handle string, client ports.ExternalEngine) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		return l.validation.SetEngine(ctx, caller, kind, handle, client)
	})
}

func (l *Ledger) EngineHandle(kind validation.EngineKind) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.validation.EngineHandle(kind)
}

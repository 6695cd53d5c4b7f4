// Package ports defines shared interfaces for the ledger core.
// Interfaces are placed here when consumed by multiple services to avoid
// duplication; each service depends on the narrowest port it needs, and the
// concrete composition happens at construction time.
package ports

import (
	"context"

	"custodia/internal/ledger/models"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/audit"
)

// AuditPublisher emits audit events for security-relevant operations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// AccessControl answers role-membership questions for gating decisions.
//
// Implementations must preserve the super-admin shortcut: every check is
// really "role OR default admin".
type AccessControl interface {
	HasRole(ctx context.Context, role id.RoleID, account id.Address) (bool, error)
}

// PauseQuery exposes the contract lifecycle state to gating code.
type PauseQuery interface {
	State(ctx context.Context) (models.LifecycleState, error)
}

// EnforcementQuery exposes freeze facts to the transfer path and the
// validation engine.
type EnforcementQuery interface {
	IsFrozen(ctx context.Context, account id.Address) (bool, error)
	FrozenTokens(ctx context.Context, account id.Address) (id.Amount, error)
}

// Enforcement extends EnforcementQuery with the forced-operation primitive.
type Enforcement interface {
	EnforcementQuery

	// UnfreezeForTransfer releases min(frozen, amount) from the account's
	// frozen tokens, emitting an unfreeze event for the amount actually
	// released. Only forced operations call this.
	UnfreezeForTransfer(ctx context.Context, caller, account id.Address, amount id.Amount) error
}

// BalanceQuery exposes balances to services that must not depend on the
// whole token ledger (enforcement's freeze cap, the validation engine).
type BalanceQuery interface {
	BalanceOf(ctx context.Context, account id.Address) (id.Amount, error)
}

// TokenQuery extends BalanceQuery with the supply read that mint pre-checks
// need: a batch must prove the whole credit fits in 256 bits before any leg
// applies.
type TokenQuery interface {
	BalanceQuery
	TotalSupply(ctx context.Context) (id.Amount, error)
}

// TransferValidator computes the restriction code consulted by the token
// ledger's before-mutation hook and exposed directly to callers.
type TransferValidator interface {
	DetectTransferRestriction(ctx context.Context, from, to id.Address, amount id.Amount) (models.RestrictionCode, error)
	MessageForCode(ctx context.Context, code models.RestrictionCode) string
}

// ExternalEngine is the contract consumed from optional rule/debt engines.
// Engines are addressed by an opaque handle stored in the core and may be
// swapped by an admin at any time. Delegation is fail-closed: a call failure
// is treated as a restriction, never as permission.
type ExternalEngine interface {
	DetectTransferRestriction(ctx context.Context, from, to id.Address, amount id.Amount) (models.RestrictionCode, error)
	MessageForRestrictionCode(ctx context.Context, code models.RestrictionCode) (string, error)
}

// Minter is the mint primitive the issuance module drives.
type Minter interface {
	ApplyMint(ctx context.Context, to id.Address, amount id.Amount) error
}

// Burner is the burn primitive the issuance module drives.
type Burner interface {
	ApplyBurn(ctx context.Context, from id.Address, amount id.Amount) error
}

// -----------------------------------------------------------------------------
// Store ports
// -----------------------------------------------------------------------------

// RoleStore persists role grants and the role-admin hierarchy.
type RoleStore interface {
	// HasGrant reports direct membership, without the super-admin shortcut.
	HasGrant(ctx context.Context, role id.RoleID, account id.Address) (bool, error)

	// SetGrant writes membership and reports whether anything changed, so
	// the service can keep grant/revoke idempotent and emit events only on
	// change.
	SetGrant(ctx context.Context, role id.RoleID, account id.Address, granted bool) (changed bool, err error)

	// AdminOf returns the configured admin role, or ok=false when the role
	// uses the default admin.
	AdminOf(ctx context.Context, role id.RoleID) (admin id.RoleID, ok bool, err error)

	// SetAdmin configures the admin role for a role.
	SetAdmin(ctx context.Context, role, admin id.RoleID) error
}

// LifecycleStore persists the single lifecycle state value.
type LifecycleStore interface {
	State(ctx context.Context) (models.LifecycleState, error)
	SetState(ctx context.Context, state models.LifecycleState) error
}

// FreezeStore persists address freeze flags and partial frozen amounts.
type FreezeStore interface {
	IsFrozen(ctx context.Context, account id.Address) (bool, error)

	// SetFrozen writes the flag and reports whether it changed.
	SetFrozen(ctx context.Context, account id.Address, frozen bool) (changed bool, err error)

	FrozenAmount(ctx context.Context, account id.Address) (id.Amount, error)
	SetFrozenAmount(ctx context.Context, account id.Address, amount id.Amount) error
}

// AccountStore persists balances, allowances, supply, and token metadata.
type AccountStore interface {
	Balance(ctx context.Context, account id.Address) (id.Amount, error)
	SetBalance(ctx context.Context, account id.Address, balance id.Amount) error

	TotalSupply(ctx context.Context) (id.Amount, error)
	SetTotalSupply(ctx context.Context, supply id.Amount) error

	Allowance(ctx context.Context, owner, spender id.Address) (id.Amount, error)
	SetAllowance(ctx context.Context, owner, spender id.Address, amount id.Amount) error

	Metadata(ctx context.Context) (name, symbol string, err error)
	SetMetadata(ctx context.Context, name, symbol string) error
}

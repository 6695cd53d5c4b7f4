// Package enforcement manages address freezes and partial token freezes, the
// per-account compliance restraints the transfer path must honor.
package enforcement

import (
	"context"
	"fmt"
	"log/slog"

	"custodia/internal/ledger/metrics"
	"custodia/internal/ledger/ports"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/audit"
)

type Service struct {
	store          ports.FreezeStore
	access         ports.AccessControl
	balances       ports.BalanceQuery
	logger         *slog.Logger
	auditPublisher ports.AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store ports.FreezeStore, access ports.AccessControl, balances ports.BalanceQuery, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("freeze store is required")
	}
	if access == nil {
		return nil, fmt.Errorf("access control is required")
	}
	if balances == nil {
		return nil, fmt.Errorf("balance query is required")
	}
	svc := &Service{store: store, access: access, balances: balances}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

func (s *Service) IsFrozen(ctx context.Context, account id.Address) (bool, error) {
	frozen, err := s.store.IsFrozen(ctx, account)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read freeze flag")
	}
	return frozen, nil
}

func (s *Service) FrozenTokens(ctx context.Context, account id.Address) (id.Amount, error) {
	amount, err := s.store.FrozenAmount(ctx, account)
	if err != nil {
		return id.Amount{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read frozen amount")
	}
	return amount, nil
}

// SetAddressFrozen freezes or unfreezes an account wholesale. The caller must
// hold the enforcer role. Setting the flag to its current value is a no-op
// and emits no event.
func (s *Service) SetAddressFrozen(ctx context.Context, caller, account id.Address, frozen bool) error {
	if err := s.requireRole(ctx, caller, id.RoleEnforcer); err != nil {
		return err
	}
	if account.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "cannot freeze the zero address")
	}
	return s.setFrozen(ctx, caller, account, frozen)
}

// BatchSetAddressFrozen applies SetAddressFrozen pairwise. The slices must be
// the same length; a mismatch rejects the whole batch before any entry is
// applied.
func (s *Service) BatchSetAddressFrozen(ctx context.Context, caller id.Address, accounts []id.Address, frozen []bool) error {
	if err := s.requireRole(ctx, caller, id.RoleEnforcer); err != nil {
		return err
	}
	if len(accounts) != len(frozen) {
		return dErrors.Newf(dErrors.CodeInvalidInput,
			"batch length mismatch: %d accounts, %d flags", len(accounts), len(frozen))
	}
	for _, account := range accounts {
		if account.IsZero() {
			return dErrors.New(dErrors.CodeInvalidInput, "cannot freeze the zero address")
		}
	}
	for i, account := range accounts {
		if err := s.setFrozen(ctx, caller, account, frozen[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) setFrozen(ctx context.Context, caller, account id.Address, frozen bool) error {
	changed, err := s.store.SetFrozen(ctx, account, frozen)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write freeze flag")
	}
	if !changed {
		return nil
	}

	action := audit.EventAddressFrozen
	if !frozen {
		action = audit.EventAddressUnfrozen
	}
	if s.metrics != nil {
		if frozen {
			s.metrics.FrozenAddresses.Inc()
		} else {
			s.metrics.FrozenAddresses.Dec()
		}
	}
	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Actor:  caller,
		Action: string(action),
		To:     account,
	},
		"account", account.String(),
	)
	return nil
}

// FreezePartialTokens locks an additional amount of the account's balance.
// The caller must hold the partial-freeze enforcer role. The total frozen
// amount can never exceed the account's balance; the cap is checked here, at
// freeze time.
func (s *Service) FreezePartialTokens(ctx context.Context, caller, account id.Address, amount id.Amount) error {
	if err := s.requireRole(ctx, caller, id.RoleERC20Enforcer); err != nil {
		return err
	}
	if account.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "cannot freeze tokens of the zero address")
	}

	frozen, err := s.store.FrozenAmount(ctx, account)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read frozen amount")
	}
	next, err := frozen.Add(amount)
	if err != nil {
		return err
	}
	balance, err := s.balances.BalanceOf(ctx, account)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read balance")
	}
	if balance.Less(next) {
		return dErrors.Newf(dErrors.CodeInsufficientBalance,
			"cannot freeze %s: only %s held, %s already frozen", amount, balance, frozen)
	}

	if err := s.store.SetFrozenAmount(ctx, account, next); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write frozen amount")
	}
	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Actor:  caller,
		Action: string(audit.EventTokensFrozen),
		To:     account,
		Amount: amount.String(),
	},
		"account", account.String(),
		"amount", amount.String(),
	)
	return nil
}

// UnfreezePartialTokens releases a previously frozen amount. Releasing more
// than is frozen is rejected.
func (s *Service) UnfreezePartialTokens(ctx context.Context, caller, account id.Address, amount id.Amount) error {
	if err := s.requireRole(ctx, caller, id.RoleERC20Enforcer); err != nil {
		return err
	}

	frozen, err := s.store.FrozenAmount(ctx, account)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read frozen amount")
	}
	if frozen.Less(amount) {
		return dErrors.Newf(dErrors.CodeInvalidInput,
			"cannot unfreeze %s: only %s frozen", amount, frozen)
	}
	next, err := frozen.Sub(amount)
	if err != nil {
		return err
	}

	if err := s.store.SetFrozenAmount(ctx, account, next); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write frozen amount")
	}
	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Actor:  caller,
		Action: string(audit.EventTokensUnfrozen),
		To:     account,
		Amount: amount.String(),
	},
		"account", account.String(),
		"amount", amount.String(),
	)
	return nil
}

// UnfreezeForTransfer releases min(frozen, amount) ahead of a forced
// operation. No role check: callers are the already-gated forced transfer and
// forced burn paths. A release of zero emits nothing.
func (s *Service) UnfreezeForTransfer(ctx context.Context, caller, account id.Address, amount id.Amount) error {
	frozen, err := s.store.FrozenAmount(ctx, account)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read frozen amount")
	}
	released := frozen.Min(amount)
	if released.IsZero() {
		return nil
	}
	next, err := frozen.Sub(released)
	if err != nil {
		return err
	}
	if err := s.store.SetFrozenAmount(ctx, account, next); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write frozen amount")
	}
	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Actor:  caller,
		Action: string(audit.EventTokensUnfrozen),
		To:     account,
		Amount: released.String(),
	},
		"account", account.String(),
		"released", released.String(),
	)
	return nil
}

func (s *Service) requireRole(ctx context.Context, caller id.Address, role id.RoleID) error {
	held, err := s.access.HasRole(ctx, role, caller)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check caller role")
	}
	if !held {
		return dErrors.Newf(dErrors.CodeUnauthorized, "caller does not hold the %s role", role)
	}
	return nil
}

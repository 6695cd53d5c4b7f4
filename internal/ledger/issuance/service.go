// Package issuance gates the creation and destruction of tokens: mint, burn,
// and their batch and forced variants.
package issuance

import (
	"context"
	"fmt"
	"log/slog"

	"custodia/internal/ledger/metrics"
	"custodia/internal/ledger/models"
	"custodia/internal/ledger/ports"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/audit"
)

type Service struct {
	minter      ports.Minter
	burner      ports.Burner
	access      ports.AccessControl
	lifecycle   ports.PauseQuery
	enforcement ports.Enforcement
	balances    ports.TokenQuery

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

func New(minter ports.Minter, burner ports.Burner, access ports.AccessControl, lifecycle ports.PauseQuery, enforcement ports.Enforcement, balances ports.TokenQuery, opts ...Option) (*Service, error) {
	if minter == nil || burner == nil {
		return nil, fmt.Errorf("mint and burn primitives are required")
	}
	if access == nil {
		return nil, fmt.Errorf("access control is required")
	}
	if lifecycle == nil {
		return nil, fmt.Errorf("lifecycle query is required")
	}
	if enforcement == nil {
		return nil, fmt.Errorf("enforcement is required")
	}
	if balances == nil {
		return nil, fmt.Errorf("balance query is required")
	}
	svc := &Service{
		minter:      minter,
		burner:      burner,
		access:      access,
		lifecycle:   lifecycle,
		enforcement: enforcement,
		balances:    balances,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Mint creates tokens for the recipient. Minter role; the ledger must not be
// deactivated; the recipient must be a valid, unfrozen address. Minting to a
// frozen address is rejected outright rather than parked in frozen funds.
func (s *Service) Mint(ctx context.Context, caller, to id.Address, amount id.Amount) error {
	if err := s.requireRole(ctx, caller, id.RoleMinter); err != nil {
		return err
	}
	if err := s.checkMintable(ctx, to); err != nil {
		return err
	}
	if err := s.minter.ApplyMint(ctx, to, amount); err != nil {
		return err
	}
	s.emit(ctx, caller, audit.EventMint, id.ZeroAddress, to, amount)
	if s.metrics != nil {
		s.metrics.MintsTotal.Inc()
	}
	return nil
}

// BatchMint applies Mint pairwise, all-or-nothing: the whole batch is
// checked before any entry mints.
func (s *Service) BatchMint(ctx context.Context, caller id.Address, recipients []id.Address, amounts []id.Amount) error {
	if err := s.requireRole(ctx, caller, id.RoleMinter); err != nil {
		return err
	}
	if len(recipients) != len(amounts) {
		return dErrors.Newf(dErrors.CodeInvalidInput,
			"batch length mismatch: %d recipients, %d amounts", len(recipients), len(amounts))
	}
	var total id.Amount
	for i, to := range recipients {
		if err := s.checkMintable(ctx, to); err != nil {
			return err
		}
		next, err := total.Add(amounts[i])
		if err != nil {
			return err
		}
		total = next
	}
	// The supply credit is the only arithmetic in the apply loop that can
	// fail; proving supply+total fits keeps the batch all-or-nothing. Supply
	// bounds every balance, so no per-recipient credit can overflow either.
	supply, err := s.balances.TotalSupply(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read total supply")
	}
	if _, err := supply.Add(total); err != nil {
		return err
	}

	for i, to := range recipients {
		if err := s.minter.ApplyMint(ctx, to, amounts[i]); err != nil {
			return err
		}
		s.emit(ctx, caller, audit.EventMint, id.ZeroAddress, to, amounts[i])
	}
	if s.metrics != nil {
		s.metrics.MintsTotal.Add(float64(len(recipients)))
	}
	return nil
}

// Burn destroys tokens from the holder's active balance. Burner role; not
// deactivated; partially frozen tokens cannot be burned this way.
func (s *Service) Burn(ctx context.Context, caller, from id.Address, amount id.Amount) error {
	if err := s.requireRole(ctx, caller, id.RoleBurner); err != nil {
		return err
	}
	if err := s.checkBurnable(ctx, from, amount); err != nil {
		return err
	}
	if err := s.burner.ApplyBurn(ctx, from, amount); err != nil {
		return err
	}
	s.emit(ctx, caller, audit.EventBurn, from, id.ZeroAddress, amount)
	if s.metrics != nil {
		s.metrics.BurnsTotal.Inc()
	}
	return nil
}

// BatchBurn applies Burn pairwise, all-or-nothing, including a cumulative
// active-balance check per holder.
func (s *Service) BatchBurn(ctx context.Context, caller id.Address, holders []id.Address, amounts []id.Amount) error {
	if err := s.requireRole(ctx, caller, id.RoleBurner); err != nil {
		return err
	}
	if len(holders) != len(amounts) {
		return dErrors.Newf(dErrors.CodeInvalidInput,
			"batch length mismatch: %d holders, %d amounts", len(holders), len(amounts))
	}

	totals := make(map[id.Address]id.Amount, len(holders))
	for i, from := range holders {
		next, err := totals[from].Add(amounts[i])
		if err != nil {
			return err
		}
		totals[from] = next
	}
	for from, total := range totals {
		if err := s.checkBurnable(ctx, from, total); err != nil {
			return err
		}
	}

	for i, from := range holders {
		if err := s.burner.ApplyBurn(ctx, from, amounts[i]); err != nil {
			return err
		}
		s.emit(ctx, caller, audit.EventBurn, from, id.ZeroAddress, amounts[i])
	}
	if s.metrics != nil {
		s.metrics.BurnsTotal.Add(float64(len(holders)))
	}
	return nil
}

// ForcedBurn destroys tokens regardless of freezes, releasing frozen tokens
// first so the frozen <= balance invariant survives. Admin-only.
func (s *Service) ForcedBurn(ctx context.Context, caller, from id.Address, amount id.Amount) error {
	if err := s.requireRole(ctx, caller, id.RoleDefaultAdmin); err != nil {
		return err
	}
	if from.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "cannot burn from the zero address")
	}
	if err := s.requireNotDeactivated(ctx); err != nil {
		return err
	}

	balance, err := s.balances.BalanceOf(ctx, from)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read balance")
	}
	if balance.Less(amount) {
		return dErrors.Newf(dErrors.CodeInsufficientBalance,
			"balance %s is less than forced burn amount %s", balance, amount)
	}

	frozen, err := s.enforcement.FrozenTokens(ctx, from)
	if err != nil {
		return err
	}
	shortfall := amount.SaturatingSub(balance.SaturatingSub(frozen))
	if !shortfall.IsZero() {
		if err := s.enforcement.UnfreezeForTransfer(ctx, caller, from, shortfall); err != nil {
			return err
		}
	}

	if err := s.burner.ApplyBurn(ctx, from, amount); err != nil {
		return err
	}
	s.emit(ctx, caller, audit.EventForcedBurn, from, id.ZeroAddress, amount)
	if s.metrics != nil {
		s.metrics.ForcedOperationsTotal.WithLabelValues("forced_burn").Inc()
	}
	return nil
}

func (s *Service) checkMintable(ctx context.Context, to id.Address) error {
	if to.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "cannot mint to the zero address")
	}
	if err := s.requireNotDeactivated(ctx); err != nil {
		return err
	}
	frozen, err := s.enforcement.IsFrozen(ctx, to)
	if err != nil {
		return err
	}
	if frozen {
		return dErrors.Newf(dErrors.CodeConflict, "cannot mint to frozen address %s", to)
	}
	return nil
}

func (s *Service) checkBurnable(ctx context.Context, from id.Address, amount id.Amount) error {
	if from.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "cannot burn from the zero address")
	}
	if err := s.requireNotDeactivated(ctx); err != nil {
		return err
	}
	balance, err := s.balances.BalanceOf(ctx, from)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read balance")
	}
	frozen, err := s.enforcement.FrozenTokens(ctx, from)
	if err != nil {
		return err
	}
	if balance.SaturatingSub(frozen).Less(amount) {
		return dErrors.Newf(dErrors.CodeInsufficientBalance,
			"active balance %s is less than burn amount %s", balance.SaturatingSub(frozen), amount)
	}
	return nil
}

func (s *Service) requireNotDeactivated(ctx context.Context) error {
	state, err := s.lifecycle.State(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read lifecycle state")
	}
	if state == models.StateDeactivated {
		return dErrors.New(dErrors.CodeInvariantViolation, "ledger is deactivated")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, actor id.Address, action audit.AuditEvent, from, to id.Address, amount id.Amount) {
	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Actor:  actor,
		Action: string(action),
		From:   from,
		To:     to,
		Amount: amount.String(),
	},
		"amount", amount.String(),
	)
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

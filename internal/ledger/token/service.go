// Package token implements the core ledger: balances, allowances, supply,
// metadata, and the gated transfer paths.
package token

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"custodia/internal/ledger/metrics"
	"custodia/internal/ledger/models"
	"custodia/internal/ledger/ports"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/audit"
)

type Service struct {
	store       ports.AccountStore
	access      ports.AccessControl
	lifecycle   ports.PauseQuery
	enforcement ports.Enforcement

	// validator is attached after construction because the validation engine
	// reads balances through this service. SetValidator must be called before
	// any transfer is served; New-time wiring in cmd/server guarantees it.
	validator ports.TransferValidator

	decimals       uint8
	logger         *slog.Logger
	auditPublisher ports.AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
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

func WithDecimals(decimals uint8) Option {
	return func(s *Service) {
		s.decimals = decimals
	}
}

func New(store ports.AccountStore, access ports.AccessControl, lifecycle ports.PauseQuery, enforcement ports.Enforcement, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("account store is required")
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
	svc := &Service{
		store:       store,
		access:      access,
		lifecycle:   lifecycle,
		enforcement: enforcement,
		decimals:    18,
		tracer:      otel.Tracer("custodia/ledger/token"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// SetValidator attaches the transfer validator. Wiring-time only.
func (s *Service) SetValidator(v ports.TransferValidator) {
	s.validator = v
}

// storeBalanceReader answers balance queries straight from the account
// store. The enforcement service reads balances through it instead of the
// full token service, which would otherwise close a construction cycle.
type storeBalanceReader struct {
	store ports.AccountStore
}

func NewStoreBalanceReader(store ports.AccountStore) ports.BalanceQuery {
	return storeBalanceReader{store: store}
}

func (r storeBalanceReader) BalanceOf(ctx context.Context, account id.Address) (id.Amount, error) {
	return r.store.Balance(ctx, account)
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

func (s *Service) BalanceOf(ctx context.Context, account id.Address) (id.Amount, error) {
	balance, err := s.store.Balance(ctx, account)
	if err != nil {
		return id.Amount{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read balance")
	}
	return balance, nil
}

func (s *Service) TotalSupply(ctx context.Context) (id.Amount, error) {
	supply, err := s.store.TotalSupply(ctx)
	if err != nil {
		return id.Amount{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read total supply")
	}
	return supply, nil
}

func (s *Service) Allowance(ctx context.Context, owner, spender id.Address) (id.Amount, error) {
	allowance, err := s.store.Allowance(ctx, owner, spender)
	if err != nil {
		return id.Amount{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read allowance")
	}
	return allowance, nil
}

// ActiveBalanceOf returns the spendable portion of the balance: total minus
// partially frozen tokens.
func (s *Service) ActiveBalanceOf(ctx context.Context, account id.Address) (id.Amount, error) {
	balance, err := s.BalanceOf(ctx, account)
	if err != nil {
		return id.Amount{}, err
	}
	frozen, err := s.enforcement.FrozenTokens(ctx, account)
	if err != nil {
		return id.Amount{}, err
	}
	return balance.SaturatingSub(frozen), nil
}

func (s *Service) Name(ctx context.Context) (string, error) {
	name, _, err := s.metadata(ctx)
	return name, err
}

func (s *Service) Symbol(ctx context.Context) (string, error) {
	_, symbol, err := s.metadata(ctx)
	return symbol, err
}

func (s *Service) Decimals() uint8 {
	return s.decimals
}

func (s *Service) metadata(ctx context.Context) (string, string, error) {
	name, symbol, err := s.store.Metadata(ctx)
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to read token metadata")
	}
	return name, symbol, nil
}

// -----------------------------------------------------------------------------
// Metadata mutation
// -----------------------------------------------------------------------------

func (s *Service) SetName(ctx context.Context, caller id.Address, name string) error {
	return s.setMetadata(ctx, caller, name, audit.EventNameSet, true)
}

func (s *Service) SetSymbol(ctx context.Context, caller id.Address, symbol string) error {
	return s.setMetadata(ctx, caller, symbol, audit.EventSymbolSet, false)
}

func (s *Service) setMetadata(ctx context.Context, caller id.Address, value string, action audit.AuditEvent, isName bool) error {
	if err := s.requireRole(ctx, caller, id.RoleDefaultAdmin); err != nil {
		return err
	}
	if value == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "token metadata cannot be empty")
	}
	name, symbol, err := s.metadata(ctx)
	if err != nil {
		return err
	}
	if isName {
		name = value
	} else {
		symbol = value
	}
	if err := s.store.SetMetadata(ctx, name, symbol); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write token metadata")
	}
	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Actor:  caller,
		Action: string(action),
		Reason: value,
	},
		"value", value,
	)
	return nil
}

// -----------------------------------------------------------------------------
// Allowances
// -----------------------------------------------------------------------------

// Approve sets the spender's allowance over the caller's balance. Approvals
// are allowed while paused; only movement of tokens is gated.
func (s *Service) Approve(ctx context.Context, caller, spender id.Address, amount id.Amount) error {
	if spender.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "cannot approve the zero address")
	}
	if err := s.store.SetAllowance(ctx, caller, spender, amount); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write allowance")
	}
	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Actor:  caller,
		Action: string(audit.EventApproval),
		From:   caller,
		To:     spender,
		Amount: amount.String(),
	},
		"owner", caller.String(),
		"spender", spender.String(),
		"amount", amount.String(),
	)
	return nil
}

// -----------------------------------------------------------------------------
// Transfer paths
// -----------------------------------------------------------------------------

// Transfer moves tokens from the caller to the recipient, subject to the
// full restriction check.
func (s *Service) Transfer(ctx context.Context, caller, to id.Address, amount id.Amount) error {
	ctx, span := s.tracer.Start(ctx, "token.Transfer",
		trace.WithAttributes(attribute.String("amount", amount.String())))
	defer span.End()

	if err := s.checkRestriction(ctx, caller, to, amount); err != nil {
		return err
	}
	if err := s.update(ctx, caller, to, amount); err != nil {
		return err
	}
	s.emitTransfer(ctx, caller, caller, to, amount, audit.EventTransfer)
	if s.metrics != nil {
		s.metrics.TransfersTotal.WithLabelValues("transfer").Inc()
	}
	return nil
}

// TransferFrom moves tokens on behalf of the owner, consuming allowance.
// The allowance is decremented only after the transfer succeeds.
func (s *Service) TransferFrom(ctx context.Context, caller, from, to id.Address, amount id.Amount) error {
	ctx, span := s.tracer.Start(ctx, "token.TransferFrom",
		trace.WithAttributes(attribute.String("amount", amount.String())))
	defer span.End()

	allowance, err := s.Allowance(ctx, from, caller)
	if err != nil {
		return err
	}
	if allowance.Less(amount) {
		return dErrors.Newf(dErrors.CodeInsufficientAllowance,
			"allowance %s is less than transfer amount %s", allowance, amount)
	}

	if err := s.checkRestriction(ctx, from, to, amount); err != nil {
		return err
	}
	if err := s.update(ctx, from, to, amount); err != nil {
		return err
	}

	remaining, err := allowance.Sub(amount)
	if err != nil {
		return err
	}
	if err := s.store.SetAllowance(ctx, from, caller, remaining); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write allowance")
	}

	s.emitTransfer(ctx, caller, from, to, amount, audit.EventTransfer)
	if s.metrics != nil {
		s.metrics.TransfersTotal.WithLabelValues("transfer_from").Inc()
	}
	return nil
}

// BatchTransfer moves tokens from the caller to each recipient pairwise.
// The batch is all-or-nothing: every leg is validated before any leg is
// applied, including the cumulative spend against the caller's active
// balance, and the global operation lock keeps the pre-check valid through
// the apply phase.
func (s *Service) BatchTransfer(ctx context.Context, caller id.Address, recipients []id.Address, amounts []id.Amount) error {
	ctx, span := s.tracer.Start(ctx, "token.BatchTransfer",
		trace.WithAttributes(attribute.Int("legs", len(recipients))))
	defer span.End()

	if len(recipients) != len(amounts) {
		return dErrors.Newf(dErrors.CodeInvalidInput,
			"batch length mismatch: %d recipients, %d amounts", len(recipients), len(amounts))
	}

	var total id.Amount
	for i, to := range recipients {
		if err := s.checkRestriction(ctx, caller, to, amounts[i]); err != nil {
			return err
		}
		next, err := total.Add(amounts[i])
		if err != nil {
			return err
		}
		total = next
	}
	// Per-leg validation only sees the starting balance; the cumulative
	// check is what makes the batch honest.
	active, err := s.ActiveBalanceOf(ctx, caller)
	if err != nil {
		return err
	}
	if active.Less(total) {
		return s.reject(ctx, caller, caller, total, models.CodeInsufficientBalance)
	}

	for i, to := range recipients {
		if err := s.update(ctx, caller, to, amounts[i]); err != nil {
			return err
		}
		s.emitTransfer(ctx, caller, caller, to, amounts[i], audit.EventTransfer)
	}
	if s.metrics != nil {
		s.metrics.TransfersTotal.WithLabelValues("batch_transfer").Add(float64(len(recipients)))
	}
	return nil
}

// ForcedTransfer moves tokens regardless of freezes and restriction rules,
// releasing just enough frozen tokens to cover the shortfall. Admin-only.
// The ledger must not be deactivated.
func (s *Service) ForcedTransfer(ctx context.Context, caller, from, to id.Address, amount id.Amount) error {
	ctx, span := s.tracer.Start(ctx, "token.ForcedTransfer",
		trace.WithAttributes(attribute.String("amount", amount.String())))
	defer span.End()

	if err := s.requireRole(ctx, caller, id.RoleDefaultAdmin); err != nil {
		return err
	}
	if from.IsZero() || to.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "forced transfer requires non-zero addresses")
	}
	state, err := s.lifecycle.State(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read lifecycle state")
	}
	if state == models.StateDeactivated {
		return dErrors.New(dErrors.CodeInvariantViolation, "ledger is deactivated")
	}

	balance, err := s.BalanceOf(ctx, from)
	if err != nil {
		return err
	}
	if balance.Less(amount) {
		return dErrors.Newf(dErrors.CodeInsufficientBalance,
			"balance %s is less than forced transfer amount %s", balance, amount)
	}

	// Release only the shortfall, so the frozen <= balance invariant holds
	// after the balance drops.
	active, err := s.ActiveBalanceOf(ctx, from)
	if err != nil {
		return err
	}
	if active.Less(amount) {
		shortfall := amount.SaturatingSub(active)
		if err := s.enforcement.UnfreezeForTransfer(ctx, caller, from, shortfall); err != nil {
			return err
		}
	}

	if err := s.update(ctx, from, to, amount); err != nil {
		return err
	}
	s.emitTransfer(ctx, caller, from, to, amount, audit.EventForcedTransfer)
	if s.metrics != nil {
		s.metrics.ForcedOperationsTotal.WithLabelValues("forced_transfer").Inc()
	}
	return nil
}

// -----------------------------------------------------------------------------
// Mint/burn primitives (driven by the issuance module)
// -----------------------------------------------------------------------------

// ApplyMint credits freshly minted tokens. Gating lives in the issuance
// module; this primitive only keeps supply and balances consistent.
func (s *Service) ApplyMint(ctx context.Context, to id.Address, amount id.Amount) error {
	return s.update(ctx, id.ZeroAddress, to, amount)
}

// ApplyBurn debits burned tokens. Gating lives in the issuance module.
func (s *Service) ApplyBurn(ctx context.Context, from id.Address, amount id.Amount) error {
	return s.update(ctx, from, id.ZeroAddress, amount)
}

// -----------------------------------------------------------------------------
// Internals
// -----------------------------------------------------------------------------

// update is the single balance-mutation primitive. A zero from mints, a zero
// to burns, anything else transfers. Supply always equals the sum of
// balances because both sides move in the same call.
func (s *Service) update(ctx context.Context, from, to id.Address, amount id.Amount) error {
	if from.IsZero() && to.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "update requires at least one non-zero address")
	}

	if from.IsZero() {
		supply, err := s.TotalSupply(ctx)
		if err != nil {
			return err
		}
		next, err := supply.Add(amount)
		if err != nil {
			return err
		}
		if err := s.store.SetTotalSupply(ctx, next); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write total supply")
		}
	} else {
		balance, err := s.BalanceOf(ctx, from)
		if err != nil {
			return err
		}
		if balance.Less(amount) {
			return dErrors.Newf(dErrors.CodeInsufficientBalance,
				"balance %s is less than %s", balance, amount)
		}
		next, err := balance.Sub(amount)
		if err != nil {
			return err
		}
		if err := s.store.SetBalance(ctx, from, next); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write balance")
		}
	}

	if to.IsZero() {
		supply, err := s.TotalSupply(ctx)
		if err != nil {
			return err
		}
		next, err := supply.Sub(amount)
		if err != nil {
			return err
		}
		if err := s.store.SetTotalSupply(ctx, next); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write total supply")
		}
	} else {
		balance, err := s.BalanceOf(ctx, to)
		if err != nil {
			return err
		}
		next, err := balance.Add(amount)
		if err != nil {
			return err
		}
		if err := s.store.SetBalance(ctx, to, next); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write balance")
		}
	}
	return nil
}

// checkRestriction consults the validation engine and converts a non-zero
// code into a rejected transfer: audit event, metric, coded error. Zero
// addresses are rejected here rather than in the validator, because the
// validator reserves the zero-address convention for the mint and burn
// paths.
func (s *Service) checkRestriction(ctx context.Context, from, to id.Address, amount id.Amount) error {
	if from.IsZero() {
		return s.reject(ctx, from, to, amount, models.CodeInvalidSender)
	}
	if to.IsZero() {
		return s.reject(ctx, from, to, amount, models.CodeInvalidRecipient)
	}
	if s.validator == nil {
		return dErrors.New(dErrors.CodeInternal, "transfer validator is not wired")
	}
	code, err := s.validator.DetectTransferRestriction(ctx, from, to, amount)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "restriction check failed")
	}
	if !code.Restricted() {
		return nil
	}
	return s.reject(ctx, from, to, amount, code)
}

func (s *Service) reject(ctx context.Context, from, to id.Address, amount id.Amount, code models.RestrictionCode) error {
	message := code.Message()
	if s.validator != nil {
		message = s.validator.MessageForCode(ctx, code)
	}
	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action: string(audit.EventTransferRejected),
		From:   from,
		To:     to,
		Amount: amount.String(),
		Code:   uint8(code),
		Reason: message,
	},
		"code", uint8(code),
		"reason", message,
	)
	if s.metrics != nil {
		s.metrics.TransfersRejectedTotal.WithLabelValues(strconv.Itoa(int(code))).Inc()
	}
	return dErrors.Newf(dErrors.CodeTransferRestricted, "transfer restricted (%d): %s", uint8(code), message)
}

func (s *Service) emitTransfer(ctx context.Context, actor, from, to id.Address, amount id.Amount, action audit.AuditEvent) {
	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Actor:  actor,
		Action: string(action),
		From:   from,
		To:     to,
		Amount: amount.String(),
	},
		"from", from.String(),
		"to", to.String(),
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

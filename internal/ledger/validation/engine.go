// Package validation computes ERC-1404 style restriction codes for the
// transfer path, optionally delegating to external rule and debt engines.
package validation

//go:generate mockgen -destination=mocks/mocks.go -package=mocks custodia/internal/ledger/ports ExternalEngine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"custodia/internal/ledger/metrics"
	"custodia/internal/ledger/models"
	"custodia/internal/ledger/ports"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/audit"
	"custodia/pkg/platform/circuit"
)

// EngineKind names the delegation slots an admin can configure.
type EngineKind string

const (
	EngineRule     EngineKind = "rule"
	EngineDebt     EngineKind = "debt"
	EngineSnapshot EngineKind = "snapshot"
	EngineDocument EngineKind = "document"
)

// engineSlot pairs an opaque handle with its resolved client. Snapshot and
// document slots carry a handle only; nothing in the restriction path calls
// them.
type engineSlot struct {
	handle string
	client ports.ExternalEngine
}

type Engine struct {
	access      ports.AccessControl
	lifecycle   ports.PauseQuery
	enforcement ports.EnforcementQuery
	balances    ports.BalanceQuery

	rule     engineSlot
	debt     engineSlot
	snapshot engineSlot
	document engineSlot

	ruleBreaker *circuit.Breaker
	debtBreaker *circuit.Breaker

	logger         *slog.Logger
	auditPublisher ports.AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(e *Engine) {
		e.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func New(access ports.AccessControl, lifecycle ports.PauseQuery, enforcement ports.EnforcementQuery, balances ports.BalanceQuery, opts ...Option) (*Engine, error) {
	if access == nil {
		return nil, fmt.Errorf("access control is required")
	}
	if lifecycle == nil {
		return nil, fmt.Errorf("lifecycle query is required")
	}
	if enforcement == nil {
		return nil, fmt.Errorf("enforcement query is required")
	}
	if balances == nil {
		return nil, fmt.Errorf("balance query is required")
	}
	e := &Engine{
		access:      access,
		lifecycle:   lifecycle,
		enforcement: enforcement,
		balances:    balances,
		ruleBreaker: circuit.New("rule_engine"),
		debtBreaker: circuit.New("debt_engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// DetectTransferRestriction evaluates the restriction checks in a fixed
// order and returns the first code that fires. Mints (zero from) skip the
// lifecycle and sender checks; burns (zero to) are never restricted here
// because the burn path carries its own gating.
func (e *Engine) DetectTransferRestriction(ctx context.Context, from, to id.Address, amount id.Amount) (models.RestrictionCode, error) {
	code, err := e.detect(ctx, from, to, amount)
	if err != nil {
		return code, err
	}
	if e.metrics != nil {
		e.metrics.RestrictionChecks.WithLabelValues(strconv.Itoa(int(code))).Inc()
	}
	return code, nil
}

func (e *Engine) detect(ctx context.Context, from, to id.Address, amount id.Amount) (models.RestrictionCode, error) {
	if from.IsZero() {
		if to.IsZero() {
			return models.CodeInvalidSender, nil
		}
		frozen, err := e.enforcement.IsFrozen(ctx, to)
		if err != nil {
			return models.CodeNone, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read freeze flag")
		}
		if frozen {
			return models.CodeToFrozen, nil
		}
		return models.CodeNone, nil
	}
	if to.IsZero() {
		return models.CodeNone, nil
	}

	state, err := e.lifecycle.State(ctx)
	if err != nil {
		return models.CodeNone, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read lifecycle state")
	}
	if state == models.StateDeactivated {
		return models.CodeDeactivated, nil
	}
	if state == models.StatePaused {
		return models.CodePaused, nil
	}

	fromFrozen, err := e.enforcement.IsFrozen(ctx, from)
	if err != nil {
		return models.CodeNone, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read freeze flag")
	}
	if fromFrozen {
		return models.CodeFromFrozen, nil
	}
	toFrozen, err := e.enforcement.IsFrozen(ctx, to)
	if err != nil {
		return models.CodeNone, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read freeze flag")
	}
	if toFrozen {
		return models.CodeToFrozen, nil
	}

	balance, err := e.balances.BalanceOf(ctx, from)
	if err != nil {
		return models.CodeNone, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read balance")
	}
	frozenTokens, err := e.enforcement.FrozenTokens(ctx, from)
	if err != nil {
		return models.CodeNone, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read frozen amount")
	}
	if balance.SaturatingSub(frozenTokens).Less(amount) {
		return models.CodeInsufficientBalance, nil
	}

	if e.rule.client != nil {
		if restricted := e.consult(ctx, EngineRule, e.rule.client, e.ruleBreaker, from, to, amount); restricted {
			return models.CodeRuleEngine, nil
		}
	}
	if e.debt.client != nil {
		if restricted := e.consult(ctx, EngineDebt, e.debt.client, e.debtBreaker, from, to, amount); restricted {
			return models.CodeDebtEngine, nil
		}
	}
	return models.CodeNone, nil
}

// consult asks an external engine for its verdict. Fail-closed: any call
// error counts as a restriction. While the breaker is open every call is a
// probe; the engine's verdict is honored again only once the breaker closes.
func (e *Engine) consult(ctx context.Context, kind EngineKind, client ports.ExternalEngine, breaker *circuit.Breaker, from, to id.Address, amount id.Amount) bool {
	start := time.Now()
	code, err := client.DetectTransferRestriction(ctx, from, to, amount)
	if e.metrics != nil {
		e.metrics.EngineCallDurationMs.WithLabelValues(string(kind)).
			Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}

	if err != nil {
		_, change := breaker.RecordFailure()
		if change.Opened {
			e.logf(ctx, slog.LevelWarn, "engine breaker opened", "engine", string(kind))
			e.setBreakerGauge(kind, 1)
		}
		e.logf(ctx, slog.LevelWarn, "engine call failed, restricting transfer",
			"engine", string(kind), "error", err.Error())
		return true
	}

	usePrimary, change := breaker.RecordSuccess()
	if change.Closed {
		e.logf(ctx, slog.LevelInfo, "engine breaker closed", "engine", string(kind))
		e.setBreakerGauge(kind, 0)
	}
	if !usePrimary {
		return true
	}
	return code.Restricted()
}

// MessageForCode returns the human-readable message for a code. Unknown
// codes are delegated to the configured engines, which may define their own
// code space.
func (e *Engine) MessageForCode(ctx context.Context, code models.RestrictionCode) string {
	if code.Known() {
		return code.Message()
	}
	for _, slot := range []engineSlot{e.rule, e.debt} {
		if slot.client == nil {
			continue
		}
		msg, err := slot.client.MessageForRestrictionCode(ctx, code)
		if err == nil && msg != "" {
			return msg
		}
	}
	return models.UnknownRestrictionMessage
}

// -----------------------------------------------------------------------------
// Engine configuration
// -----------------------------------------------------------------------------

// SetEngine installs, replaces, or clears a delegation slot. Admin-only.
// Replacing an engine resets its breaker so the new engine starts clean.
func (e *Engine) SetEngine(ctx context.Context, caller id.Address, kind EngineKind, handle string, client ports.ExternalEngine) error {
	held, err := e.access.HasRole(ctx, id.RoleDefaultAdmin, caller)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check caller role")
	}
	if !held {
		return dErrors.New(dErrors.CodeUnauthorized, "caller does not hold the default admin role")
	}
	if handle == "" && client != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "engine handle is required")
	}
	if handle != "" && client == nil && (kind == EngineRule || kind == EngineDebt) {
		return dErrors.New(dErrors.CodeInvalidInput, "engine client is required")
	}

	var slot *engineSlot
	var action audit.AuditEvent
	switch kind {
	case EngineRule:
		slot, action = &e.rule, audit.EventRuleEngineSet
		e.ruleBreaker.Reset()
		e.setBreakerGauge(kind, 0)
	case EngineDebt:
		slot, action = &e.debt, audit.EventDebtEngineSet
		e.debtBreaker.Reset()
		e.setBreakerGauge(kind, 0)
	case EngineSnapshot:
		slot, action = &e.snapshot, audit.EventSnapshotEngineSet
	case EngineDocument:
		slot, action = &e.document, audit.EventDocumentEngineSet
	default:
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown engine kind %q", kind)
	}

	old := slot.handle
	slot.handle = handle
	slot.client = client

	ports.LogAudit(ctx, e.logger, e.auditPublisher, audit.Event{
		Actor:      caller,
		Action:     string(action),
		EngineKind: string(kind),
		OldEngine:  old,
		NewEngine:  handle,
	},
		"old_engine", old,
		"new_engine", handle,
	)
	return nil
}

// EngineHandle returns the configured handle for a slot, empty when unset.
func (e *Engine) EngineHandle(kind EngineKind) string {
	switch kind {
	case EngineRule:
		return e.rule.handle
	case EngineDebt:
		return e.debt.handle
	case EngineSnapshot:
		return e.snapshot.handle
	case EngineDocument:
		return e.document.handle
	default:
		return ""
	}
}

func (e *Engine) setBreakerGauge(kind EngineKind, v float64) {
	if e.metrics != nil {
		e.metrics.EngineBreakerOpen.WithLabelValues(string(kind)).Set(v)
	}
}

func (e *Engine) logf(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	if e.logger != nil {
		e.logger.Log(ctx, level, msg, attrs...)
	}
}

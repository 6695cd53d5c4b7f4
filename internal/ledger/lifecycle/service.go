// Package lifecycle manages the contract-wide pause and deactivation state.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"custodia/internal/ledger/models"
	"custodia/internal/ledger/ports"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/audit"
)

type Service struct {
	store          ports.LifecycleStore
	access         ports.AccessControl
	logger         *slog.Logger
	auditPublisher ports.AuditPublisher
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

func New(store ports.LifecycleStore, access ports.AccessControl, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("lifecycle store is required")
	}
	if access == nil {
		return nil, fmt.Errorf("access control is required")
	}
	svc := &Service{store: store, access: access}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// State returns the current lifecycle state.
func (s *Service) State(ctx context.Context) (models.LifecycleState, error) {
	state, err := s.store.State(ctx)
	if err != nil {
		return models.StateActive, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read lifecycle state")
	}
	return state, nil
}

// Pause halts transfers, mints, and burns. The caller must hold the pauser
// role. Pausing an already-paused ledger fails the transition check.
func (s *Service) Pause(ctx context.Context, caller id.Address) error {
	if err := s.requireRole(ctx, caller, id.RolePauser); err != nil {
		return err
	}
	return s.transition(ctx, caller, models.StatePaused, audit.EventPaused)
}

// Unpause resumes normal operation. Fails once the ledger is deactivated.
func (s *Service) Unpause(ctx context.Context, caller id.Address) error {
	if err := s.requireRole(ctx, caller, id.RolePauser); err != nil {
		return err
	}
	return s.transition(ctx, caller, models.StateActive, audit.EventUnpaused)
}

// Deactivate permanently retires the ledger. Admin-only, and the ledger must
// already be paused so shutdown is an explicit two-step action.
func (s *Service) Deactivate(ctx context.Context, caller id.Address) error {
	if err := s.requireRole(ctx, caller, id.RoleDefaultAdmin); err != nil {
		return err
	}
	return s.transition(ctx, caller, models.StateDeactivated, audit.EventDeactivated)
}

func (s *Service) transition(ctx context.Context, caller id.Address, next models.LifecycleState, action audit.AuditEvent) error {
	current, err := s.store.State(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read lifecycle state")
	}
	next, err = current.Transition(next)
	if err != nil {
		return err
	}
	if err := s.store.SetState(ctx, next); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write lifecycle state")
	}

	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Actor:  caller,
		Action: string(action),
	},
		"from_state", current.String(),
		"to_state", next.String(),
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

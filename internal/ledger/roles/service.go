// Package roles implements the access-control registry: role membership and
// the role-admin hierarchy that gates every privileged ledger operation.
package roles

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

// Service is the access-control registry.
//
// # Super-admin shortcut
//
// HasRole answers true when the account holds the requested role OR the
// default admin role. This is a deliberate design choice, not a bypass:
// callers relying on role exclusivity must be aware that every role check is
// really "role OR default admin". It cannot be disabled per role; a
// dedicated test pins the behavior.
type Service struct {
	store          ports.RoleStore
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

func New(store ports.RoleStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("role store is required")
	}
	svc := &Service{store: store}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// HasRole reports whether the account holds the role, where holding the
// default admin role satisfies every check.
func (s *Service) HasRole(ctx context.Context, role id.RoleID, account id.Address) (bool, error) {
	if account.IsZero() {
		return false, nil
	}
	held, err := s.store.HasGrant(ctx, role, account)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read role grant")
	}
	if held {
		return true, nil
	}
	if role == id.RoleDefaultAdmin {
		return false, nil
	}
	isAdmin, err := s.store.HasGrant(ctx, id.RoleDefaultAdmin, account)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read admin grant")
	}
	return isAdmin, nil
}

// RoleAdmin returns the role that administers the given role, defaulting to
// the default admin role for any role not explicitly configured.
func (s *Service) RoleAdmin(ctx context.Context, role id.RoleID) (id.RoleID, error) {
	admin, ok, err := s.store.AdminOf(ctx, role)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to read role admin")
	}
	if !ok {
		return id.RoleDefaultAdmin, nil
	}
	return admin, nil
}

// GrantRole grants the role to the account. The caller must hold the role's
// admin role. Granting an already-held role is a no-op and emits no event.
func (s *Service) GrantRole(ctx context.Context, caller id.Address, role id.RoleID, account id.Address) error {
	if err := s.requireRoleAdmin(ctx, caller, role); err != nil {
		return err
	}
	if account.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "cannot grant a role to the zero address")
	}

	changed, err := s.store.SetGrant(ctx, role, account, true)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write role grant")
	}
	if !changed {
		return nil
	}

	if s.metrics != nil {
		s.metrics.RoleGrantsTotal.WithLabelValues("grant").Inc()
	}
	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Actor:  caller,
		Action: string(audit.EventRoleGranted),
		To:     account,
		Role:   role.String(),
	},
		"role", role.String(),
		"account", account.String(),
	)
	return nil
}

// RevokeRole removes the role from the account, with the same gating as
// GrantRole. Revoking a role the account does not hold is a no-op.
func (s *Service) RevokeRole(ctx context.Context, caller id.Address, role id.RoleID, account id.Address) error {
	if err := s.requireRoleAdmin(ctx, caller, role); err != nil {
		return err
	}
	return s.clearGrant(ctx, caller, role, account)
}

// RenounceRole lets an account drop one of its own roles without admin
// involvement. The caller must be the account itself.
func (s *Service) RenounceRole(ctx context.Context, caller id.Address, role id.RoleID, account id.Address) error {
	if caller != account {
		return dErrors.New(dErrors.CodeUnauthorized, "can only renounce roles for self")
	}
	return s.clearGrant(ctx, caller, role, account)
}

func (s *Service) clearGrant(ctx context.Context, caller id.Address, role id.RoleID, account id.Address) error {
	changed, err := s.store.SetGrant(ctx, role, account, false)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear role grant")
	}
	if !changed {
		return nil
	}

	if s.metrics != nil {
		s.metrics.RoleGrantsTotal.WithLabelValues("revoke").Inc()
	}
	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Actor:  caller,
		Action: string(audit.EventRoleRevoked),
		To:     account,
		Role:   role.String(),
	},
		"role", role.String(),
		"account", account.String(),
	)
	return nil
}

// SetRoleAdmin configures which role administers another. This is a
// bootstrap-time operation wired at construction; it is not exposed through
// the public API surface.
func (s *Service) SetRoleAdmin(ctx context.Context, role, admin id.RoleID) error {
	if err := s.store.SetAdmin(ctx, role, admin); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to set role admin")
	}
	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action: string(audit.EventRoleAdminSet),
		Role:   role.String(),
	},
		"role", role.String(),
		"admin_role", admin.String(),
	)
	return nil
}

// requireRoleAdmin fails with CodeUnauthorized unless the caller satisfies
// the role's admin role.
func (s *Service) requireRoleAdmin(ctx context.Context, caller id.Address, role id.RoleID) error {
	admin, err := s.RoleAdmin(ctx, role)
	if err != nil {
		return err
	}
	held, err := s.HasRole(ctx, admin, caller)
	if err != nil {
		return err
	}
	if !held {
		return dErrors.Newf(dErrors.CodeUnauthorized, "caller does not hold admin role for %s", role)
	}
	return nil
}

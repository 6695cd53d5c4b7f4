// Package audit defines the ledger's audit event model. Every state-changing
// operation emits an event through a Publisher so off-chain indexers and
// compliance tooling can reconstruct the full mutation history.
package audit

import (
	"context"
	"time"

	id "custodia/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention.
	// Examples: transfers, mints, burns, forced operations.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring.
	// Examples: role changes, freezes, lifecycle transitions, engine swaps.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for operational visibility.
	// These can be sampled or aggregated with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key ledger actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// Actor is the authenticated caller that performed the action.
	Actor id.Address
	// Action is one of the AuditEvent constants.
	Action string
	// From and To carry the affected addresses; the zero address marks the
	// mint source and burn sink, matching the transfer event convention.
	From id.Address
	To   id.Address
	// Amount is the decimal token quantity, empty for non-monetary events.
	Amount string
	// Role carries the role identifier for role-grant events.
	Role string
	// Code carries the restriction code for rejected-transfer events.
	Code uint8
	// Reason is the human-readable cause, for rejections and freezes.
	Reason string
	// Engine fields record compliance-provider swaps for off-chain audit.
	EngineKind string
	OldEngine  string
	NewEngine  string
	// RequestID is the correlation ID from the request context.
	RequestID string
}

// Publisher emits audit events for security-relevant operations.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAccount(ctx context.Context, account id.Address) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

type AuditEvent string

const (
	// Token movement events
	EventTransfer       AuditEvent = "transfer"
	EventApproval       AuditEvent = "approval"
	EventMint           AuditEvent = "mint"
	EventBurn           AuditEvent = "burn"
	EventForcedTransfer AuditEvent = "forced_transfer"
	EventForcedBurn     AuditEvent = "forced_burn"

	// Access control events
	EventRoleGranted  AuditEvent = "role_granted"
	EventRoleRevoked  AuditEvent = "role_revoked"
	EventRoleAdminSet AuditEvent = "role_admin_set"

	// Lifecycle events
	EventPaused      AuditEvent = "paused"
	EventUnpaused    AuditEvent = "unpaused"
	EventDeactivated AuditEvent = "deactivated"

	// Enforcement events
	EventAddressFrozen   AuditEvent = "address_frozen"
	EventAddressUnfrozen AuditEvent = "address_unfrozen"
	EventTokensFrozen    AuditEvent = "tokens_frozen"
	EventTokensUnfrozen  AuditEvent = "tokens_unfrozen"

	// Validation events
	EventTransferRejected  AuditEvent = "transfer_rejected"
	EventRuleEngineSet     AuditEvent = "rule_engine_set"
	EventDebtEngineSet     AuditEvent = "debt_engine_set"
	EventSnapshotEngineSet AuditEvent = "snapshot_engine_set"
	EventDocumentEngineSet AuditEvent = "document_engine_set"

	// Metadata events
	EventNameSet   AuditEvent = "name_set"
	EventSymbolSet AuditEvent = "symbol_set"
)

// eventCategories maps each audit event to its category.
// Compliance: token movements, tamper-proof storage required.
// Security: control-plane changes, feed into SIEM and alerting.
// Operations: routine activity, can be sampled.
var eventCategories = map[AuditEvent]EventCategory{
	EventTransfer:       CategoryCompliance,
	EventMint:           CategoryCompliance,
	EventBurn:           CategoryCompliance,
	EventForcedTransfer: CategoryCompliance,
	EventForcedBurn:     CategoryCompliance,

	EventRoleGranted:       CategorySecurity,
	EventRoleRevoked:       CategorySecurity,
	EventRoleAdminSet:      CategorySecurity,
	EventPaused:            CategorySecurity,
	EventUnpaused:          CategorySecurity,
	EventDeactivated:       CategorySecurity,
	EventAddressFrozen:     CategorySecurity,
	EventAddressUnfrozen:   CategorySecurity,
	EventTokensFrozen:      CategorySecurity,
	EventTokensUnfrozen:    CategorySecurity,
	EventRuleEngineSet:     CategorySecurity,
	EventDebtEngineSet:     CategorySecurity,
	EventSnapshotEngineSet: CategorySecurity,
	EventDocumentEngineSet: CategorySecurity,

	EventApproval:         CategoryOperations,
	EventTransferRejected: CategoryOperations,
	EventNameSet:          CategoryOperations,
	EventSymbolSet:        CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

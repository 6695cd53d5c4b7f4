package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "custodia/pkg/domain"
	audit "custodia/pkg/platform/audit"
	txcontext "custodia/pkg/platform/tx"
)

// Store implements audit.Store on an outbox table. Append joins an ambient
// SQL transaction when the context carries one; in the server the table is
// filled by the background worker draining the audit channel. The payload
// column is self-contained JSON so an external relay can publish rows
// downstream without extra lookups.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type dbQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure published to Kafka.
// Field names match audit.Event for proper deserialization by consumers.
type outboxPayload struct {
	ID         string `json:"ID"`
	Category   string `json:"Category"`
	Timestamp  string `json:"Timestamp"`
	Actor      string `json:"Actor,omitempty"`
	Action     string `json:"Action"`
	From       string `json:"From,omitempty"`
	To         string `json:"To,omitempty"`
	Amount     string `json:"Amount,omitempty"`
	Role       string `json:"Role,omitempty"`
	Code       uint8  `json:"Code,omitempty"`
	Reason     string `json:"Reason,omitempty"`
	EngineKind string `json:"EngineKind,omitempty"`
	OldEngine  string `json:"OldEngine,omitempty"`
	NewEngine  string `json:"NewEngine,omitempty"`
	RequestID  string `json:"RequestID,omitempty"`
}

// Append writes an audit event to the outbox table for Kafka publishing.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	// Always derive category from action - eventCategories map is the
	// source of truth.
	category := audit.AuditEvent(event.Action).Category()

	payload := outboxPayload{
		ID:         eventID.String(),
		Category:   string(category),
		Timestamp:  event.Timestamp.Format(time.RFC3339Nano),
		Action:     event.Action,
		Amount:     event.Amount,
		Role:       event.Role,
		Code:       event.Code,
		Reason:     event.Reason,
		EngineKind: event.EngineKind,
		OldEngine:  event.OldEngine,
		NewEngine:  event.NewEngine,
		RequestID:  event.RequestID,
	}
	if !event.Actor.IsZero() {
		payload.Actor = event.Actor.String()
	}
	// From/To keep the zero address explicitly: it distinguishes mints and
	// burns from plain transfers.
	payload.From = event.From.String()
	payload.To = event.To.String()

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	aggregateType := "ledger"
	aggregateID := eventID.String()
	if !event.From.IsZero() {
		aggregateType = "account"
		aggregateID = event.From.String()
	} else if !event.To.IsZero() {
		aggregateType = "account"
		aggregateID = event.To.String()
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		eventID, aggregateType, aggregateID, event.Action, payloadBytes, event.Timestamp)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// ListByAccount returns events whose actor, source, or destination matches
// the account, oldest first.
func (s *Store) ListByAccount(ctx context.Context, account id.Address) ([]audit.Event, error) {
	query := `
		SELECT payload FROM outbox
		WHERE payload->>'Actor' = $1 OR payload->>'From' = $1 OR payload->>'To' = $1
		ORDER BY created_at ASC
	`
	return s.queryEvents(ctx, query, account.String())
}

// ListRecent returns the most recent N events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT payload FROM (
			SELECT payload, created_at FROM outbox
			ORDER BY created_at DESC
			LIMIT $1
		) recent ORDER BY created_at ASC
	`
	return s.queryEvents(ctx, query, limit)
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]audit.Event, error) {
	var querier dbQuerier = s.db
	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event, err := toEvent(raw)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func toEvent(raw []byte) (audit.Event, error) {
	var payload outboxPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return audit.Event{}, fmt.Errorf("unmarshal audit payload: %w", err)
	}

	event := audit.Event{
		Category:   audit.EventCategory(payload.Category),
		Action:     payload.Action,
		Amount:     payload.Amount,
		Role:       payload.Role,
		Code:       payload.Code,
		Reason:     payload.Reason,
		EngineKind: payload.EngineKind,
		OldEngine:  payload.OldEngine,
		NewEngine:  payload.NewEngine,
		RequestID:  payload.RequestID,
	}
	if ts, err := time.Parse(time.RFC3339Nano, payload.Timestamp); err == nil {
		event.Timestamp = ts
	}
	if payload.Actor != "" {
		_ = event.Actor.UnmarshalText([]byte(payload.Actor))
	}
	if payload.From != "" {
		_ = event.From.UnmarshalText([]byte(payload.From))
	}
	if payload.To != "" {
		_ = event.To.UnmarshalText([]byte(payload.To))
	}
	return event, nil
}

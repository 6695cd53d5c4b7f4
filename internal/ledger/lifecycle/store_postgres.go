package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"custodia/internal/ledger/models"
	txcontext "custodia/pkg/platform/tx"
)

// PostgresStore keeps the lifecycle state in a single-row table keyed by a
// constant id, so concurrent writers serialize on the row lock.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) State(ctx context.Context) (models.LifecycleState, error) {
	var raw string
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT state FROM lifecycle WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StateActive, nil
	}
	if err != nil {
		return models.StateActive, fmt.Errorf("query lifecycle state: %w", err)
	}
	return models.ParseLifecycleState(raw)
}

func (s *PostgresStore) SetState(ctx context.Context, state models.LifecycleState) error {
	query := `
		INSERT INTO lifecycle (id, state)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, state.String()); err != nil {
		return fmt.Errorf("set lifecycle state: %w", err)
	}
	return nil
}

package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "custodia/pkg/domain"
	txcontext "custodia/pkg/platform/tx"
)

// PostgresStore persists balances, allowances, supply, and metadata.
// Amounts are stored as NUMERIC(78,0) in their decimal string form, wide
// enough for any unsigned 256-bit value.
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

func (s *PostgresStore) Balance(ctx context.Context, account id.Address) (id.Amount, error) {
	return s.queryAmount(ctx,
		`SELECT balance::text FROM balances WHERE account = $1`, account.String())
}

func (s *PostgresStore) SetBalance(ctx context.Context, account id.Address, balance id.Amount) error {
	if balance.IsZero() {
		_, err := s.execer(ctx).ExecContext(ctx,
			`DELETE FROM balances WHERE account = $1`, account.String())
		if err != nil {
			return fmt.Errorf("delete balance: %w", err)
		}
		return nil
	}
	query := `
		INSERT INTO balances (account, balance)
		VALUES ($1, $2::numeric)
		ON CONFLICT (account) DO UPDATE SET balance = EXCLUDED.balance
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, account.String(), balance.String()); err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}

func (s *PostgresStore) TotalSupply(ctx context.Context) (id.Amount, error) {
	return s.queryAmount(ctx, `SELECT supply::text FROM token_state WHERE id = 1`)
}

func (s *PostgresStore) SetTotalSupply(ctx context.Context, supply id.Amount) error {
	query := `
		INSERT INTO token_state (id, supply)
		VALUES (1, $1::numeric)
		ON CONFLICT (id) DO UPDATE SET supply = EXCLUDED.supply
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, supply.String()); err != nil {
		return fmt.Errorf("set total supply: %w", err)
	}
	return nil
}

func (s *PostgresStore) Allowance(ctx context.Context, owner, spender id.Address) (id.Amount, error) {
	return s.queryAmount(ctx,
		`SELECT amount::text FROM allowances WHERE owner = $1 AND spender = $2`,
		owner.String(), spender.String())
}

func (s *PostgresStore) SetAllowance(ctx context.Context, owner, spender id.Address, amount id.Amount) error {
	if amount.IsZero() {
		_, err := s.execer(ctx).ExecContext(ctx,
			`DELETE FROM allowances WHERE owner = $1 AND spender = $2`,
			owner.String(), spender.String())
		if err != nil {
			return fmt.Errorf("delete allowance: %w", err)
		}
		return nil
	}
	query := `
		INSERT INTO allowances (owner, spender, amount)
		VALUES ($1, $2, $3::numeric)
		ON CONFLICT (owner, spender) DO UPDATE SET amount = EXCLUDED.amount
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, owner.String(), spender.String(), amount.String()); err != nil {
		return fmt.Errorf("set allowance: %w", err)
	}
	return nil
}

func (s *PostgresStore) Metadata(ctx context.Context) (string, string, error) {
	var name, symbol string
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT name, symbol FROM token_state WHERE id = 1`).Scan(&name, &symbol)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("query token metadata: %w", err)
	}
	return name, symbol, nil
}

func (s *PostgresStore) SetMetadata(ctx context.Context, name, symbol string) error {
	query := `
		INSERT INTO token_state (id, supply, name, symbol)
		VALUES (1, 0, $1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, symbol = EXCLUDED.symbol
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, name, symbol); err != nil {
		return fmt.Errorf("set token metadata: %w", err)
	}
	return nil
}

func (s *PostgresStore) queryAmount(ctx context.Context, query string, args ...any) (id.Amount, error) {
	var raw string
	err := s.execer(ctx).QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return id.Amount{}, nil
	}
	if err != nil {
		return id.Amount{}, fmt.Errorf("query amount: %w", err)
	}
	return id.ParseAmount(raw)
}

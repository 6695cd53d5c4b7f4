package roles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "custodia/pkg/domain"
	txcontext "custodia/pkg/platform/tx"
)

// PostgresStore persists role grants and the admin hierarchy in two tables.
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

func (s *PostgresStore) HasGrant(ctx context.Context, role id.RoleID, account id.Address) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM role_grants WHERE role = $1 AND account = $2)`
	var held bool
	err := s.execer(ctx).QueryRowContext(ctx, query, role.String(), account.String()).Scan(&held)
	if err != nil {
		return false, fmt.Errorf("query role grant: %w", err)
	}
	return held, nil
}

func (s *PostgresStore) SetGrant(ctx context.Context, role id.RoleID, account id.Address, granted bool) (bool, error) {
	if granted {
		query := `
			INSERT INTO role_grants (role, account)
			VALUES ($1, $2)
			ON CONFLICT (role, account) DO NOTHING
		`
		res, err := s.execer(ctx).ExecContext(ctx, query, role.String(), account.String())
		if err != nil {
			return false, fmt.Errorf("insert role grant: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("insert role grant: %w", err)
		}
		return n > 0, nil
	}

	res, err := s.execer(ctx).ExecContext(ctx,
		`DELETE FROM role_grants WHERE role = $1 AND account = $2`,
		role.String(), account.String())
	if err != nil {
		return false, fmt.Errorf("delete role grant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete role grant: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) AdminOf(ctx context.Context, role id.RoleID) (id.RoleID, bool, error) {
	var admin string
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT admin_role FROM role_admins WHERE role = $1`,
		role.String()).Scan(&admin)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query role admin: %w", err)
	}
	return id.RoleID(admin), true, nil
}

func (s *PostgresStore) SetAdmin(ctx context.Context, role, admin id.RoleID) error {
	query := `
		INSERT INTO role_admins (role, admin_role)
		VALUES ($1, $2)
		ON CONFLICT (role) DO UPDATE SET admin_role = EXCLUDED.admin_role
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, role.String(), admin.String()); err != nil {
		return fmt.Errorf("set role admin: %w", err)
	}
	return nil
}

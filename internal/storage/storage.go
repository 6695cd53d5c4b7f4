// Package storage owns the relational schema shared by the ledger's
// Postgres-backed stores.
package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var Schema string

// ApplySchema creates the ledger tables if they do not exist. The statements
// are idempotent, so running it on every boot is safe.
func ApplySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/campusiq/opsconsole/internal/ports"
	"github.com/campusiq/opsconsole/internal/registry"
)

// PostgresTxRunner implements TxRunner over database/sql transactions. The
// repositories handed to fn share a single *sql.Tx, so any error rolls back
// every write made inside fn.
type PostgresTxRunner struct {
	db  *sql.DB
	reg *registry.Registry
}

// NewPostgresTxRunner creates a transaction runner.
func NewPostgresTxRunner(db *sql.DB, reg *registry.Registry) *PostgresTxRunner {
	return &PostgresTxRunner{db: db, reg: reg}
}

// InTx runs fn inside a transaction and commits only if fn returns nil.
func (t *PostgresTxRunner) InTx(ctx context.Context, fn func(tx ports.Stores) error) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stores := ports.Stores{
		Entities:   NewPostgresEntityStore(tx, t.reg),
		Plans:      NewPostgresPlanRepository(tx),
		Executions: NewPostgresExecutionRepository(tx),
	}

	if err := fn(stores); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed (%v) after error: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

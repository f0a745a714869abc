package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/campusiq/opsconsole/internal/domain"
	"github.com/campusiq/opsconsole/internal/ports"
)

// PostgresExecutionRepository implements ExecutionRepository using
// PostgreSQL. Before/after snapshots are stored as JSONB and written exactly
// once at creation; the only mutable column is status.
type PostgresExecutionRepository struct {
	db dbtx
}

// NewPostgresExecutionRepository creates a PostgreSQL execution repository.
func NewPostgresExecutionRepository(db dbtx) ports.ExecutionRepository {
	return &PostgresExecutionRepository{db: db}
}

// Create saves a new execution record.
func (r *PostgresExecutionRepository) Create(ctx context.Context, execution *domain.Execution) error {
	query := `
		INSERT INTO executions (execution_id, plan_id, executed_by, before_state, after_state, status, rollback_of, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	beforeJSON, err := json.Marshal(execution.BeforeState)
	if err != nil {
		return fmt.Errorf("failed to marshal before state: %w", err)
	}

	afterJSON, err := json.Marshal(execution.AfterState)
	if err != nil {
		return fmt.Errorf("failed to marshal after state: %w", err)
	}

	var rollbackOf *string
	if execution.RollbackOf != "" {
		rollbackOf = &execution.RollbackOf
	}

	_, err = r.db.ExecContext(ctx, query,
		execution.ExecutionID,
		execution.PlanID,
		execution.ExecutedBy,
		beforeJSON,
		afterJSON,
		string(execution.Status),
		rollbackOf,
		execution.ExecutedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}

	return nil
}

// FindByID retrieves an execution by its ID.
func (r *PostgresExecutionRepository) FindByID(ctx context.Context, executionID string) (*domain.Execution, error) {
	query := `
		SELECT execution_id, plan_id, executed_by, before_state, after_state, status, rollback_of, executed_at
		FROM executions
		WHERE execution_id = $1
	`

	return r.scanOne(r.db.QueryRowContext(ctx, query, executionID))
}

// FindActiveByPlan returns the plan's execution still in executed state.
func (r *PostgresExecutionRepository) FindActiveByPlan(ctx context.Context, planID string) (*domain.Execution, error) {
	query := `
		SELECT execution_id, plan_id, executed_by, before_state, after_state, status, rollback_of, executed_at
		FROM executions
		WHERE plan_id = $1 AND status = 'executed'
	`

	return r.scanOne(r.db.QueryRowContext(ctx, query, planID))
}

// MarkRolledBack flips an executed record to rolled_back. The status guard
// lives in the WHERE clause so concurrent rollbacks cannot both succeed.
func (r *PostgresExecutionRepository) MarkRolledBack(ctx context.Context, executionID string) error {
	query := `UPDATE executions SET status = 'rolled_back' WHERE execution_id = $1 AND status = 'executed'`

	result, err := r.db.ExecContext(ctx, query, executionID)
	if err != nil {
		return fmt.Errorf("failed to mark execution rolled back: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if _, err := r.FindByID(ctx, executionID); err != nil {
			return err
		}
		return &domain.RollbackConflictError{ExecutionID: executionID, Reason: "execution already rolled back"}
	}

	return nil
}

func (r *PostgresExecutionRepository) scanOne(row *sql.Row) (*domain.Execution, error) {
	var execution domain.Execution
	var beforeJSON, afterJSON []byte
	var rollbackOf sql.NullString

	err := row.Scan(
		&execution.ExecutionID,
		&execution.PlanID,
		&execution.ExecutedBy,
		&beforeJSON,
		&afterJSON,
		&execution.Status,
		&rollbackOf,
		&execution.ExecutedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrExecutionNotFound
		}
		return nil, fmt.Errorf("failed to find execution: %w", err)
	}

	if err := json.Unmarshal(beforeJSON, &execution.BeforeState); err != nil {
		return nil, fmt.Errorf("failed to unmarshal before state: %w", err)
	}

	if err := json.Unmarshal(afterJSON, &execution.AfterState); err != nil {
		return nil, fmt.Errorf("failed to unmarshal after state: %w", err)
	}

	if rollbackOf.Valid {
		execution.RollbackOf = rollbackOf.String
	}

	return &execution, nil
}

package ports

import (
	"context"

	"github.com/campusiq/opsconsole/internal/domain"
)

// EntityRepository is the generic data store the console operates on.
// Entity names are canonical registry names; implementations resolve them
// to their backing tables. All filter predicates are ANDed.
type EntityRepository interface {
	// Count returns the number of rows matching the filters. Read-only.
	Count(ctx context.Context, entity string, filters domain.Filters) (int, error)

	// Select returns the rows matching the filters, fully serialized.
	Select(ctx context.Context, entity string, filters domain.Filters) ([]domain.Row, error)

	// SelectLimit is Select with a row cap, used for previews.
	SelectLimit(ctx context.Context, entity string, filters domain.Filters, limit int) ([]domain.Row, error)

	// Aggregate computes a numeric aggregate over rows matching the filters.
	Aggregate(ctx context.Context, entity string, filters domain.Filters, agg domain.Aggregate) (float64, error)

	// Insert creates one row from the given values and returns it with its
	// assigned id.
	Insert(ctx context.Context, entity string, values map[string]interface{}) (domain.Row, error)

	// Update applies values to every row matching the filters and returns
	// the updated rows.
	Update(ctx context.Context, entity string, filters domain.Filters, values map[string]interface{}) ([]domain.Row, error)

	// Delete removes every row matching the filters and returns the removed
	// rows as they were.
	Delete(ctx context.Context, entity string, filters domain.Filters) ([]domain.Row, error)

	// Restore re-inserts a previously captured row verbatim, id included.
	// Only the rollback engine uses it; rows come from persisted execution
	// snapshots, never from user input.
	Restore(ctx context.Context, entity string, row domain.Row) (domain.Row, error)
}

// PlanRepository persists plans.
type PlanRepository interface {
	Create(ctx context.Context, plan *domain.Plan) error
	FindByID(ctx context.Context, planID string) (*domain.Plan, error)

	// Update rewrites the mutable plan columns (status, impact, preview,
	// reason, updated_at).
	Update(ctx context.Context, plan *domain.Plan) error
}

// ExecutionRepository persists execution records. BeforeState/AfterState
// are written once at creation; only Status may change afterwards, and only
// from executed to rolled_back.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *domain.Execution) error
	FindByID(ctx context.Context, executionID string) (*domain.Execution, error)

	// FindActiveByPlan returns the plan's execution still in executed
	// state, or domain.ErrExecutionNotFound.
	FindActiveByPlan(ctx context.Context, planID string) (*domain.Execution, error)

	// MarkRolledBack flips an executed record to rolled_back. Fails if the
	// record is not in executed state.
	MarkRolledBack(ctx context.Context, executionID string) error
}

// AuditLog is the append-only audit trail. There is deliberately no update
// or delete on this surface.
type AuditLog interface {
	// Append records one event. Events are immutable once written.
	Append(ctx context.Context, event *domain.AuditEvent) error

	// Query returns events matching the filter, newest first.
	Query(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEvent, error)
}

// Stores bundles the repositories bound to one transaction.
type Stores struct {
	Entities   EntityRepository
	Plans      PlanRepository
	Executions ExecutionRepository
}

// TxRunner scopes a function to a single data-store transaction. The
// execution engine uses it to guarantee all-or-nothing application across
// every affected row: any error returned by fn rolls the transaction back
// entirely.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx Stores) error) error
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Row is a full serialization of one data-store row, keyed by column name.
type Row map[string]interface{}

// RowID is the column every registered entity is keyed by.
const RowID = "id"

// ID returns the row's primary key value, or nil if absent.
func (r Row) ID() interface{} {
	return r[RowID]
}

// Clone returns a shallow copy of the row. Values are scalars after
// serialization, so a shallow copy is a full copy in practice.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// CloneRows copies a row slice.
func CloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// ExecutionStatus is the state of an execution record.
type ExecutionStatus string

const (
	ExecutionExecuted   ExecutionStatus = "executed"
	ExecutionRolledBack ExecutionStatus = "rolled_back"
)

// Execution records the actual application of a plan's mutation, with full
// before/after snapshots of every affected row. BeforeState is immutable
// once written. A rollback produces a new Execution referencing the
// original via RollbackOf; at most one execution per plan is ever in the
// executed (non-rolled-back) state.
type Execution struct {
	ExecutionID string          `json:"execution_id"`
	PlanID      string          `json:"plan_id"`
	ExecutedBy  string          `json:"executed_by"`
	BeforeState []Row           `json:"before_state"`
	AfterState  []Row           `json:"after_state"`
	Status      ExecutionStatus `json:"status"`
	RollbackOf  string          `json:"rollback_of,omitempty"`
	ExecutedAt  time.Time       `json:"executed_at"`
}

// NewExecution creates an execution record for a plan.
func NewExecution(planID, executedBy string) *Execution {
	return &Execution{
		ExecutionID: "exec_" + uuid.NewString(),
		PlanID:      planID,
		ExecutedBy:  executedBy,
		Status:      ExecutionExecuted,
		ExecutedAt:  time.Now().UTC(),
	}
}

package domain

import (
	"errors"
	"fmt"
)

// Not-found sentinels.
var (
	ErrPlanNotFound      = errors.New("plan not found")
	ErrExecutionNotFound = errors.New("execution not found")
)

// ClarificationError halts the pipeline when intent confidence is below the
// threshold or the result is flagged ambiguous. It is recoverable: the
// question is surfaced to the user and the message can be re-submitted.
type ClarificationError struct {
	Question   string
	Confidence float64
}

func (e *ClarificationError) Error() string {
	return fmt.Sprintf("clarification needed: %s", e.Question)
}

// PermissionError rejects a plan terminally. It is never retried.
type PermissionError struct {
	Reason string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Reason)
}

// UnknownEntityError means a lookup named an entity absent from the
// registry. Registry contents are static configuration, so this is a
// configuration or programmer error.
type UnknownEntityError struct {
	Entity string
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("unknown entity: %q", e.Entity)
}

// ImpactConflictError aborts execution when the fresh row count inside the
// transaction no longer matches the impact count the plan was reviewed
// with. Recoverable by re-submitting.
type ImpactConflictError struct {
	PlanID   string
	Expected int
	Actual   int
}

func (e *ImpactConflictError) Error() string {
	return fmt.Sprintf("impact conflict for plan %s: expected %d rows, found %d", e.PlanID, e.Expected, e.Actual)
}

// ExecutionError wraps a transaction-level failure during mutation. The
// data-store transaction is rolled back and the plan is marked failed.
type ExecutionError struct {
	PlanID string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed for plan %s: %v", e.PlanID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// RollbackConflictError means an execution cannot be rolled back: it was
// already rolled back, never supported rollback, or the underlying rows
// diverged from its after-state since execution.
type RollbackConflictError struct {
	ExecutionID string
	Reason      string
}

func (e *RollbackConflictError) Error() string {
	return fmt.Sprintf("rollback conflict for execution %s: %s", e.ExecutionID, e.Reason)
}

// InvalidTransitionError reports an attempted backward or undefined plan
// status transition.
type InvalidTransitionError struct {
	PlanID string
	From   PlanStatus
	To     PlanStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("plan %s: invalid transition %s -> %s", e.PlanID, e.From, e.To)
}

package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/campusiq/opsconsole/internal/domain"
	"github.com/campusiq/opsconsole/internal/ports"
)

// DefaultLockTTL caps how long a plan lock outlives a crashed worker.
const DefaultLockTTL = 30 * time.Second

// ExecutionOutcome is what running a plan produced. Mutations carry an
// execution record with before/after snapshots; reads carry rows, analyses
// carry an aggregate value.
type ExecutionOutcome struct {
	Execution *domain.Execution `json:"execution,omitempty"`
	Rows      []domain.Row      `json:"rows,omitempty"`
	Value     *float64          `json:"value,omitempty"`
}

// Executor applies an executable plan. Mutations run inside a single
// data-store transaction with a fresh impact recount, so the rows the user
// reviewed are the rows that change, or nothing changes at all.
type Executor struct {
	tx      ports.TxRunner
	plans   ports.PlanRepository
	locker  ports.PlanLocker
	audit   ports.AuditLog
	log     *logrus.Logger
	lockTTL time.Duration
}

// NewExecutor creates an executor. A non-positive lockTTL falls back to
// DefaultLockTTL.
func NewExecutor(tx ports.TxRunner, plans ports.PlanRepository, locker ports.PlanLocker, audit ports.AuditLog, log *logrus.Logger, lockTTL time.Duration) *Executor {
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	return &Executor{tx: tx, plans: plans, locker: locker, audit: audit, log: log, lockTTL: lockTTL}
}

// Execute runs the plan on behalf of the actor. The plan must be in an
// executable status; the caller has already cleared confirmation or
// approval.
func (e *Executor) Execute(ctx context.Context, plan *domain.Plan, actor domain.Actor) (*ExecutionOutcome, error) {
	if !plan.Executable() {
		return nil, &domain.InvalidTransitionError{PlanID: plan.PlanID, From: plan.Status, To: domain.StatusExecuted}
	}

	release, err := e.locker.Acquire(ctx, plan.PlanID, e.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	outcome := &ExecutionOutcome{}
	originalStatus := plan.Status

	err = e.tx.InTx(ctx, func(tx ports.Stores) error {
		switch plan.Intent.Type {
		case domain.IntentRead, domain.IntentAnalyze:
			rows, err := tx.Entities.Select(ctx, plan.Intent.Entity, plan.Intent.Filters)
			if err != nil {
				return err
			}
			if plan.Intent.Type == domain.IntentAnalyze {
				agg := domain.Aggregate{Op: domain.AggCount}
				if plan.Intent.Aggregate != nil {
					agg = *plan.Intent.Aggregate
				}
				value, err := tx.Entities.Aggregate(ctx, plan.Intent.Entity, plan.Intent.Filters, agg)
				if err != nil {
					return err
				}
				outcome.Value = &value
			} else {
				outcome.Rows = rows
			}

			// Reads touch nothing, but the execution record is still written
			// with identical snapshots so the audit trail can reconstruct
			// what was inspected.
			execution := domain.NewExecution(plan.PlanID, actor.ID)
			execution.BeforeState = domain.CloneRows(rows)
			execution.AfterState = domain.CloneRows(rows)
			if err := tx.Executions.Create(ctx, execution); err != nil {
				return err
			}
			outcome.Execution = execution
		default:
			execution, err := e.mutate(ctx, tx, plan, actor)
			if err != nil {
				return err
			}
			outcome.Execution = execution
		}

		if err := plan.Transition(domain.StatusExecuted); err != nil {
			return err
		}
		return tx.Plans.Update(ctx, plan)
	})

	if err != nil {
		// The in-memory transition may have happened before the transaction
		// rolled back; reset so the failed transition is valid.
		plan.Status = originalStatus
		e.fail(ctx, plan, actor, err)
		var conflict *domain.ImpactConflictError
		if errors.As(err, &conflict) {
			return nil, err
		}
		return nil, &domain.ExecutionError{PlanID: plan.PlanID, Err: err}
	}

	event := domain.NewAuditEvent(actor, domain.StageExecuted)
	event.PlanID = plan.PlanID
	event.RiskLevel = plan.RiskLevel
	event.Entity = plan.Intent.Entity
	if outcome.Execution != nil {
		event.ExecutionID = outcome.Execution.ExecutionID
		event.Payload = map[string]interface{}{"affected_rows": len(outcome.Execution.BeforeState) + len(outcome.Execution.AfterState)}
	}
	if err := e.audit.Append(ctx, event); err != nil {
		e.log.WithError(err).WithField("plan_id", plan.PlanID).Error("failed to append audit event")
	}

	e.log.WithFields(logrus.Fields{
		"plan_id": plan.PlanID,
		"entity":  plan.Intent.Entity,
		"intent":  plan.Intent.Type,
		"risk":    plan.RiskLevel,
	}).Info("plan executed")

	return outcome, nil
}

// mutate applies a CREATE, UPDATE or DELETE inside the transaction and
// returns the execution record with its snapshots.
func (e *Executor) mutate(ctx context.Context, tx ports.Stores, plan *domain.Plan, actor domain.Actor) (*domain.Execution, error) {
	intent := plan.Intent
	execution := domain.NewExecution(plan.PlanID, actor.ID)

	if intent.Type != domain.IntentCreate {
		// The impact count the user reviewed must still hold; concurrent
		// writes between preview and execution abort the plan.
		count, err := tx.Entities.Count(ctx, intent.Entity, intent.Filters)
		if err != nil {
			return nil, err
		}
		if count != plan.ImpactCount {
			return nil, &domain.ImpactConflictError{PlanID: plan.PlanID, Expected: plan.ImpactCount, Actual: count}
		}

		before, err := tx.Entities.Select(ctx, intent.Entity, intent.Filters)
		if err != nil {
			return nil, err
		}
		execution.BeforeState = domain.CloneRows(before)
	}

	switch intent.Type {
	case domain.IntentCreate:
		row, err := tx.Entities.Insert(ctx, intent.Entity, intent.Values)
		if err != nil {
			return nil, err
		}
		execution.AfterState = []domain.Row{row}
	case domain.IntentUpdate:
		rows, err := tx.Entities.Update(ctx, intent.Entity, intent.Filters, intent.Values)
		if err != nil {
			return nil, err
		}
		execution.AfterState = domain.CloneRows(rows)
	case domain.IntentDelete:
		if _, err := tx.Entities.Delete(ctx, intent.Entity, intent.Filters); err != nil {
			return nil, err
		}
	}

	if err := tx.Executions.Create(ctx, execution); err != nil {
		return nil, err
	}
	return execution, nil
}

// fail marks the plan failed after the transaction rolled back and records
// the failure in the audit trail. Both writes are best effort: the original
// error is what the caller gets.
func (e *Executor) fail(ctx context.Context, plan *domain.Plan, actor domain.Actor, cause error) {
	if err := plan.Transition(domain.StatusFailed); err == nil {
		if err := e.plans.Update(ctx, plan); err != nil {
			e.log.WithError(err).WithField("plan_id", plan.PlanID).Error("failed to mark plan failed")
		}
	}

	event := domain.NewAuditEvent(actor, domain.StageExecutionFailed)
	event.PlanID = plan.PlanID
	event.RiskLevel = plan.RiskLevel
	event.Entity = plan.Intent.Entity
	event.Payload = map[string]interface{}{"error": cause.Error()}
	if err := e.audit.Append(ctx, event); err != nil {
		e.log.WithError(err).WithField("plan_id", plan.PlanID).Error("failed to append audit event")
	}

	e.log.WithError(cause).WithField("plan_id", plan.PlanID).Warn("plan execution failed")
}

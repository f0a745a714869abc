package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/campusiq/opsconsole/internal/domain"
	"github.com/campusiq/opsconsole/internal/ports"
)

// Rollbacker undoes an executed mutation from its snapshots. A rollback is
// itself an execution: it runs in one transaction, verifies the rows have
// not diverged since execution, and leaves its own audit trail.
type Rollbacker struct {
	tx         ports.TxRunner
	plans      ports.PlanRepository
	executions ports.ExecutionRepository
	locker     ports.PlanLocker
	audit      ports.AuditLog
	log        *logrus.Logger
	lockTTL    time.Duration
}

// NewRollbacker creates a rollback engine.
func NewRollbacker(tx ports.TxRunner, plans ports.PlanRepository, executions ports.ExecutionRepository, locker ports.PlanLocker, audit ports.AuditLog, log *logrus.Logger, lockTTL time.Duration) *Rollbacker {
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	return &Rollbacker{tx: tx, plans: plans, executions: executions, locker: locker, audit: audit, log: log, lockTTL: lockTTL}
}

// Rollback reverses the given execution and returns the reversal record.
func (r *Rollbacker) Rollback(ctx context.Context, executionID string, actor domain.Actor) (*domain.Execution, error) {
	original, err := r.executions.FindByID(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if original.Status != domain.ExecutionExecuted {
		return nil, &domain.RollbackConflictError{ExecutionID: executionID, Reason: "execution already rolled back"}
	}
	if original.RollbackOf != "" {
		return nil, &domain.RollbackConflictError{ExecutionID: executionID, Reason: "a rollback cannot be rolled back"}
	}

	plan, err := r.plans.FindByID(ctx, original.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.Intent.Type.Mutates() {
		return nil, &domain.RollbackConflictError{ExecutionID: executionID, Reason: "execution does not support rollback"}
	}

	release, err := r.locker.Acquire(ctx, plan.PlanID, r.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	reversal := domain.NewExecution(plan.PlanID, actor.ID)
	reversal.Status = domain.ExecutionRolledBack
	reversal.RollbackOf = original.ExecutionID
	reversal.BeforeState = domain.CloneRows(original.AfterState)
	reversal.AfterState = domain.CloneRows(original.BeforeState)

	err = r.tx.InTx(ctx, func(tx ports.Stores) error {
		if err := r.verifyUndiverged(ctx, tx, plan.Intent, original); err != nil {
			return err
		}
		if err := r.reverse(ctx, tx, plan.Intent, original); err != nil {
			return err
		}
		if err := tx.Executions.Create(ctx, reversal); err != nil {
			return err
		}
		return tx.Executions.MarkRolledBack(ctx, original.ExecutionID)
	})
	if err != nil {
		return nil, err
	}

	event := domain.NewAuditEvent(actor, domain.StageRolledBack)
	event.PlanID = plan.PlanID
	event.ExecutionID = reversal.ExecutionID
	event.RiskLevel = plan.RiskLevel
	event.Entity = plan.Intent.Entity
	event.Payload = map[string]interface{}{"rollback_of": original.ExecutionID}
	if err := r.audit.Append(ctx, event); err != nil {
		r.log.WithError(err).WithField("execution_id", reversal.ExecutionID).Error("failed to append audit event")
	}

	r.log.WithFields(logrus.Fields{
		"plan_id":      plan.PlanID,
		"execution_id": original.ExecutionID,
		"entity":       plan.Intent.Entity,
	}).Info("execution rolled back")

	return reversal, nil
}

// verifyUndiverged checks that every row the execution produced still looks
// exactly as the after-state recorded it. Any interleaved change makes the
// snapshot unsafe to restore.
func (r *Rollbacker) verifyUndiverged(ctx context.Context, tx ports.Stores, intent domain.Intent, original *domain.Execution) error {
	conflict := func(reason string) error {
		return &domain.RollbackConflictError{ExecutionID: original.ExecutionID, Reason: reason}
	}

	if intent.Type == domain.IntentDelete {
		// Deleted rows must still be gone.
		for _, row := range original.BeforeState {
			current, err := tx.Entities.Select(ctx, intent.Entity, domain.Filters{domain.RowID: domain.Eq(row.ID())})
			if err != nil {
				return err
			}
			if len(current) > 0 {
				return conflict(fmt.Sprintf("row %v was recreated after deletion", row.ID()))
			}
		}
		return nil
	}

	for _, expected := range original.AfterState {
		current, err := tx.Entities.Select(ctx, intent.Entity, domain.Filters{domain.RowID: domain.Eq(expected.ID())})
		if err != nil {
			return err
		}
		if len(current) != 1 {
			return conflict(fmt.Sprintf("row %v no longer exists", expected.ID()))
		}
		if !rowsEqual(current[0], expected) {
			return conflict(fmt.Sprintf("row %v changed since execution", expected.ID()))
		}
	}
	return nil
}

// reverse applies the inverse mutation from the snapshots.
func (r *Rollbacker) reverse(ctx context.Context, tx ports.Stores, intent domain.Intent, original *domain.Execution) error {
	switch intent.Type {
	case domain.IntentCreate:
		for _, row := range original.AfterState {
			if _, err := tx.Entities.Delete(ctx, intent.Entity, domain.Filters{domain.RowID: domain.Eq(row.ID())}); err != nil {
				return err
			}
		}
	case domain.IntentUpdate:
		after := make(map[string]domain.Row, len(original.AfterState))
		for _, row := range original.AfterState {
			after[fmt.Sprintf("%v", row.ID())] = row
		}
		for _, row := range original.BeforeState {
			// Only the fields the execution changed are written back.
			changed := after[fmt.Sprintf("%v", row.ID())]
			values := make(map[string]interface{})
			for field, value := range row {
				if field == domain.RowID {
					continue
				}
				if changed != nil && valuesEqual(value, changed[field]) {
					continue
				}
				values[field] = value
			}
			if len(values) == 0 {
				continue
			}
			if _, err := tx.Entities.Update(ctx, intent.Entity, domain.Filters{domain.RowID: domain.Eq(row.ID())}, values); err != nil {
				return err
			}
		}
	case domain.IntentDelete:
		for _, row := range original.BeforeState {
			if _, err := tx.Entities.Restore(ctx, intent.Entity, row); err != nil {
				return err
			}
		}
	}
	return nil
}

// rowsEqual compares two serialized rows field by field, coercing numerics
// so a value that round-tripped through JSON still matches.
func rowsEqual(a, b domain.Row) bool {
	if len(a) != len(b) {
		return false
	}
	for field, av := range a {
		bv, ok := b[field]
		if !ok {
			return false
		}
		if !valuesEqual(av, bv) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b interface{}) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

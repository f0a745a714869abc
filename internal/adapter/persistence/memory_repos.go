package persistence

import (
	"context"
	"sync"

	"github.com/campusiq/opsconsole/internal/domain"
	"github.com/campusiq/opsconsole/internal/ports"
)

// MemoryPlanRepository is the in-memory ports.PlanRepository.
type MemoryPlanRepository struct {
	mu    sync.RWMutex
	plans map[string]domain.Plan
}

// NewMemoryPlanRepository creates an empty plan store.
func NewMemoryPlanRepository() *MemoryPlanRepository {
	return &MemoryPlanRepository{plans: make(map[string]domain.Plan)}
}

// Create implements ports.PlanRepository.
func (r *MemoryPlanRepository) Create(_ context.Context, plan *domain.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[plan.PlanID] = *plan
	return nil
}

// FindByID implements ports.PlanRepository.
func (r *MemoryPlanRepository) FindByID(_ context.Context, planID string) (*domain.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	plan, ok := r.plans[planID]
	if !ok {
		return nil, domain.ErrPlanNotFound
	}
	out := plan
	return &out, nil
}

// Update implements ports.PlanRepository.
func (r *MemoryPlanRepository) Update(_ context.Context, plan *domain.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plans[plan.PlanID]; !ok {
		return domain.ErrPlanNotFound
	}
	r.plans[plan.PlanID] = *plan
	return nil
}

func (r *MemoryPlanRepository) snapshot() map[string]domain.Plan {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]domain.Plan, len(r.plans))
	for k, v := range r.plans {
		out[k] = v
	}
	return out
}

func (r *MemoryPlanRepository) restore(snap map[string]domain.Plan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans = snap
}

// MemoryExecutionRepository is the in-memory ports.ExecutionRepository.
type MemoryExecutionRepository struct {
	mu    sync.RWMutex
	execs map[string]domain.Execution
}

// NewMemoryExecutionRepository creates an empty execution store.
func NewMemoryExecutionRepository() *MemoryExecutionRepository {
	return &MemoryExecutionRepository{execs: make(map[string]domain.Execution)}
}

// Create implements ports.ExecutionRepository.
func (r *MemoryExecutionRepository) Create(_ context.Context, execution *domain.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *execution
	stored.BeforeState = domain.CloneRows(execution.BeforeState)
	stored.AfterState = domain.CloneRows(execution.AfterState)
	r.execs[execution.ExecutionID] = stored
	return nil
}

// FindByID implements ports.ExecutionRepository.
func (r *MemoryExecutionRepository) FindByID(_ context.Context, executionID string) (*domain.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.execs[executionID]
	if !ok {
		return nil, domain.ErrExecutionNotFound
	}
	out := exec
	out.BeforeState = domain.CloneRows(exec.BeforeState)
	out.AfterState = domain.CloneRows(exec.AfterState)
	return &out, nil
}

// FindActiveByPlan implements ports.ExecutionRepository.
func (r *MemoryExecutionRepository) FindActiveByPlan(_ context.Context, planID string) (*domain.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, exec := range r.execs {
		if exec.PlanID == planID && exec.Status == domain.ExecutionExecuted {
			out := exec
			out.BeforeState = domain.CloneRows(exec.BeforeState)
			out.AfterState = domain.CloneRows(exec.AfterState)
			return &out, nil
		}
	}
	return nil, domain.ErrExecutionNotFound
}

// MarkRolledBack implements ports.ExecutionRepository.
func (r *MemoryExecutionRepository) MarkRolledBack(_ context.Context, executionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	exec, ok := r.execs[executionID]
	if !ok {
		return domain.ErrExecutionNotFound
	}
	if exec.Status != domain.ExecutionExecuted {
		return &domain.RollbackConflictError{ExecutionID: executionID, Reason: "execution already rolled back"}
	}
	exec.Status = domain.ExecutionRolledBack
	r.execs[executionID] = exec
	return nil
}

func (r *MemoryExecutionRepository) snapshot() map[string]domain.Execution {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]domain.Execution, len(r.execs))
	for k, v := range r.execs {
		out[k] = v
	}
	return out
}

func (r *MemoryExecutionRepository) restore(snap map[string]domain.Execution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.execs = snap
}

// MemoryAuditLog is the in-memory ports.AuditLog. Its API surface enforces
// append-only structurally: there is nothing to update or delete.
type MemoryAuditLog struct {
	mu     sync.RWMutex
	events []domain.AuditEvent
}

// NewMemoryAuditLog creates an empty audit log.
func NewMemoryAuditLog() *MemoryAuditLog {
	return &MemoryAuditLog{}
}

// Append implements ports.AuditLog.
func (l *MemoryAuditLog) Append(_ context.Context, event *domain.AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, *event)
	return nil
}

// Query implements ports.AuditLog. Events are returned newest first.
func (l *MemoryAuditLog) Query(_ context.Context, filter domain.AuditFilter) ([]*domain.AuditEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*domain.AuditEvent
	for i := len(l.events) - 1; i >= 0; i-- {
		e := l.events[i]
		if filter.ActorID != "" && e.ActorID != filter.ActorID {
			continue
		}
		if filter.PlanID != "" && e.PlanID != filter.PlanID {
			continue
		}
		if filter.Stage != "" && e.Stage != filter.Stage {
			continue
		}
		if filter.RiskLevel != "" && e.RiskLevel != filter.RiskLevel {
			continue
		}
		if filter.Entity != "" && e.Entity != filter.Entity {
			continue
		}
		if filter.From != nil && e.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.CreatedAt.After(*filter.To) {
			continue
		}
		event := e
		out = append(out, &event)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// MemoryTxRunner implements ports.TxRunner over the in-memory stores with
// snapshot semantics: on error every store is restored, so a failed run
// leaves no partial writes, mirroring a database transaction rollback.
type MemoryTxRunner struct {
	mu         sync.Mutex
	Entities   *MemoryEntityStore
	Plans      *MemoryPlanRepository
	Executions *MemoryExecutionRepository
}

// NewMemoryTxRunner bundles the in-memory stores.
func NewMemoryTxRunner(entities *MemoryEntityStore, plans *MemoryPlanRepository, execs *MemoryExecutionRepository) *MemoryTxRunner {
	return &MemoryTxRunner{Entities: entities, Plans: plans, Executions: execs}
}

// InTx implements ports.TxRunner.
func (t *MemoryTxRunner) InTx(_ context.Context, fn func(tx ports.Stores) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entitySnap := t.Entities.snapshot()
	planSnap := t.Plans.snapshot()
	execSnap := t.Executions.snapshot()

	err := fn(ports.Stores{
		Entities:   t.Entities,
		Plans:      t.Plans,
		Executions: t.Executions,
	})
	if err != nil {
		t.Entities.restore(entitySnap)
		t.Plans.restore(planSnap)
		t.Executions.restore(execSnap)
		return err
	}
	return nil
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the acting user's role within the ERP.
type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
	RoleAdmin   Role = "admin"
)

// Actor identifies who submitted, confirmed, approved or rolled back a plan.
type Actor struct {
	ID           string `json:"id"`
	Role         Role   `json:"role"`
	DepartmentID string `json:"department_id,omitempty"`
}

// Scope is the ownership boundary an actor is confined to. StudentID binds a
// student to their own rows; DepartmentID binds a department-scoped role
// (faculty) to rows inside their department. Empty fields mean unrestricted.
type Scope struct {
	StudentID    string `json:"student_id,omitempty"`
	DepartmentID string `json:"department_id,omitempty"`
}

// RiskLevel governs whether a plan auto-executes, needs confirmation, or
// needs approval.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// PlanStatus is the plan state machine's current state.
type PlanStatus string

const (
	StatusClarificationRequired PlanStatus = "clarification_required"
	StatusRejected              PlanStatus = "rejected"
	StatusReady                 PlanStatus = "ready"
	StatusAwaitingConfirmation  PlanStatus = "awaiting_confirmation"
	StatusAwaitingApproval      PlanStatus = "awaiting_approval"
	StatusExecuted              PlanStatus = "executed"
	StatusFailed                PlanStatus = "failed"
)

// validTransitions encodes the forward-only state machine. A status absent
// from the map is terminal. clarification_required and rejected are entered
// only at plan creation and never re-entered.
var validTransitions = map[PlanStatus][]PlanStatus{
	StatusReady:                {StatusExecuted, StatusFailed},
	StatusAwaitingConfirmation: {StatusExecuted, StatusFailed},
	StatusAwaitingApproval:     {StatusExecuted, StatusFailed, StatusRejected},
}

// Terminal reports whether the status permits no further transitions.
func (s PlanStatus) Terminal() bool {
	return len(validTransitions[s]) == 0
}

// FieldChange records one field's old and new value for a proposed mutation.
type FieldChange struct {
	Field string      `json:"field"`
	Old   interface{} `json:"old"`
	New   interface{} `json:"new"`
}

// RowChange groups the proposed field changes for a single affected row.
type RowChange struct {
	RowID  interface{}   `json:"row_id"`
	Fields []FieldChange `json:"fields"`
}

// RollbackPlan declares whether and how an execution can be undone.
type RollbackPlan struct {
	SupportsRollback bool   `json:"supports_rollback"`
	Strategy         string `json:"strategy"`
}

// RollbackStrategySnapshot restores rows from the before-state snapshot
// captured at execution time.
const RollbackStrategySnapshot = "before_state_snapshot"

// Preview is the human-reviewable summary of what a plan would do.
// AffectedRows is bounded; it is a sample for review, not the full set.
type Preview struct {
	AffectedRows    []Row        `json:"affected_rows"`
	ProposedChanges []RowChange  `json:"proposed_changes,omitempty"`
	Rollback        RollbackPlan `json:"rollback_plan"`
}

// Plan is the unit of work: an interpreted command with its risk assessment
// and preview, prior to (or instead of) execution. A plan owns its embedded
// Intent and Preview exclusively.
type Plan struct {
	PlanID      string     `json:"plan_id"`
	ActorID     string     `json:"actor_id"`
	ActorRole   Role       `json:"actor_role"`
	Message     string     `json:"message"`
	Intent      Intent     `json:"intent"`
	ImpactCount int        `json:"impact_count"`
	RiskLevel   RiskLevel  `json:"risk_level"`
	Status      PlanStatus `json:"status"`
	Reason      string     `json:"reason,omitempty"`
	Preview     *Preview   `json:"preview,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewPlan creates a plan for the given actor and message. Status is set by
// the orchestrator once the pipeline stages have run.
func NewPlan(actor Actor, message string, intent Intent) *Plan {
	now := time.Now().UTC()
	return &Plan{
		PlanID:    "plan_" + uuid.NewString(),
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Message:   message,
		Intent:    intent,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the plan to a new status, enforcing the forward-only
// state machine.
func (p *Plan) Transition(to PlanStatus) error {
	for _, next := range validTransitions[p.Status] {
		if next == to {
			p.Status = to
			p.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return &InvalidTransitionError{PlanID: p.PlanID, From: p.Status, To: to}
}

// Executable reports whether the plan may be handed to the execution engine
// in its current state.
func (p *Plan) Executable() bool {
	switch p.Status {
	case StatusReady, StatusAwaitingConfirmation, StatusAwaitingApproval:
		return true
	}
	return false
}

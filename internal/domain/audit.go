package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditStage tags the pipeline stage transition an audit event records.
// The set is closed: stores persist the string value but the write surface
// only accepts these constants.
type AuditStage string

const (
	StageIntentExtracted        AuditStage = "intent_extracted"
	StageClarificationRequested AuditStage = "clarification_requested"
	StagePermissionDenied       AuditStage = "permission_denied"
	StagePlanCreated            AuditStage = "plan_created"
	StageApprovalRecorded       AuditStage = "approval_recorded"
	StageExecuted               AuditStage = "executed"
	StageExecutionFailed        AuditStage = "execution_failed"
	StageRolledBack             AuditStage = "rolled_back"
)

// AuditEvent is one append-only log line. Events reference plans and
// executions by id only and are never updated or deleted; creation-time
// ordering is preserved for compliance queries.
type AuditEvent struct {
	EventID     string                 `json:"event_id"`
	PlanID      string                 `json:"plan_id,omitempty"`
	ExecutionID string                 `json:"execution_id,omitempty"`
	ActorID     string                 `json:"actor_id"`
	ActorRole   Role                   `json:"actor_role"`
	Stage       AuditStage             `json:"stage"`
	RiskLevel   RiskLevel              `json:"risk_level,omitempty"`
	Entity      string                 `json:"entity,omitempty"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// NewAuditEvent creates an audit event for the given actor and stage.
func NewAuditEvent(actor Actor, stage AuditStage) *AuditEvent {
	return &AuditEvent{
		EventID:   "audit_" + uuid.NewString(),
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Stage:     stage,
		CreatedAt: time.Now().UTC(),
	}
}

// AuditFilter narrows an audit query. Zero fields are ignored.
type AuditFilter struct {
	ActorID   string     `json:"actor_id,omitempty"`
	PlanID    string     `json:"plan_id,omitempty"`
	Stage     AuditStage `json:"stage,omitempty"`
	RiskLevel RiskLevel  `json:"risk_level,omitempty"`
	Entity    string     `json:"entity,omitempty"`
	From      *time.Time `json:"from,omitempty"`
	To        *time.Time `json:"to,omitempty"`
	Limit     int        `json:"limit,omitempty"`
}

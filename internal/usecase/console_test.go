package usecase

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusiq/opsconsole/internal/adapter/persistence"
	"github.com/campusiq/opsconsole/internal/domain"
	"github.com/campusiq/opsconsole/internal/intent"
	"github.com/campusiq/opsconsole/internal/permission"
	"github.com/campusiq/opsconsole/internal/ports"
	"github.com/campusiq/opsconsole/internal/registry"
	"github.com/campusiq/opsconsole/internal/risk"
	"github.com/campusiq/opsconsole/internal/service/approval"
	"github.com/campusiq/opsconsole/internal/service/lock"
)

const testApprovalCode = "424242"

var (
	adminActor   = domain.Actor{ID: "admin_1", Role: domain.RoleAdmin}
	facultyActor = domain.Actor{ID: "fac_1", Role: domain.RoleFaculty, DepartmentID: "CSE"}
	studentActor = domain.Actor{ID: "stu_1", Role: domain.RoleStudent}
)

// scriptedExtractor returns a canned intent per message, standing in for
// the inference service.
type scriptedExtractor struct {
	intents map[string]domain.Intent
}

func (s scriptedExtractor) Extract(_ context.Context, input ports.ExtractorInput) (domain.Intent, error) {
	in, ok := s.intents[input.Message]
	if !ok {
		return domain.Intent{}, errors.New("no scripted intent for message")
	}
	return in, nil
}

type consoleHarness struct {
	console  *Console
	entities *persistence.MemoryEntityStore
	plans    *persistence.MemoryPlanRepository
	execs    *persistence.MemoryExecutionRepository
	audit    *persistence.MemoryAuditLog
}

func newHarness(t *testing.T, intents map[string]domain.Intent) *consoleHarness {
	t.Helper()

	reg := registry.Campus()
	entities := persistence.NewMemoryEntityStore(reg)
	require.NoError(t, entities.Seed("student",
		domain.Row{"roll_number": "CSE2301", "department": "CSE", "semester": 4, "section": "A", "cgpa": 8.4},
		domain.Row{"roll_number": "CSE2302", "department": "CSE", "semester": 4, "section": "A", "cgpa": 6.9},
		domain.Row{"roll_number": "ECE2301", "department": "ECE", "semester": 4, "section": "B", "cgpa": 7.8},
	))

	plans := persistence.NewMemoryPlanRepository()
	execs := persistence.NewMemoryExecutionRepository()
	audit := persistence.NewMemoryAuditLog()
	tx := persistence.NewMemoryTxRunner(entities, plans, execs)

	log := logrus.New()
	log.SetOutput(io.Discard)

	normalizer := intent.NewNormalizer(scriptedExtractor{intents: intents}, reg, 0.75)
	executor := NewExecutor(tx, plans, lock.NewMemoryLocker(), audit, log, 0)
	rollbacker := NewRollbacker(tx, plans, execs, lock.NewMemoryLocker(), audit, log, 0)

	console := NewConsole(ConsoleDeps{
		Normalizer:   normalizer,
		Registry:     reg,
		Gate:         permission.NewGate(permission.DefaultMatrix(reg.Names())),
		Scopes:       persistence.StaticScopeResolver{Students: map[string]string{studentActor.ID: "1"}},
		Classifier:   risk.NewClassifier(50),
		Previews:     NewPreviewBuilder(entities, DefaultMaxPreviewRows),
		Executor:     executor,
		Rollbacker:   rollbacker,
		Plans:        plans,
		Entities:     entities,
		Audit:        audit,
		SecondFactor: approval.StaticVerifier{Code: testApprovalCode},
		Log:          log,
	})

	return &consoleHarness{console: console, entities: entities, plans: plans, execs: execs, audit: audit}
}

func (h *consoleHarness) auditStages(t *testing.T, stage domain.AuditStage) []*domain.AuditEvent {
	t.Helper()
	events, err := h.audit.Query(context.Background(), domain.AuditFilter{Stage: stage})
	require.NoError(t, err)
	return events
}

func TestSubmitLowRiskReadAutoExecutes(t *testing.T) {
	h := newHarness(t, map[string]domain.Intent{
		"show CSE students": {
			Type:       domain.IntentRead,
			Entity:     "student",
			Filters:    domain.Filters{"department": domain.Eq("CSE")},
			Confidence: 0.92,
		},
	})
	ctx := context.Background()

	resp, err := h.console.Submit(ctx, facultyActor, SubmitRequest{Message: "show CSE students"})
	require.NoError(t, err)

	assert.Equal(t, domain.RiskLow, resp.Plan.RiskLevel)
	assert.Equal(t, domain.StatusExecuted, resp.Plan.Status)
	assert.Empty(t, resp.Question)
	require.NotNil(t, resp.Outcome)
	assert.Len(t, resp.Outcome.Rows, 2)
	require.NotNil(t, resp.Outcome.Execution, "reads still leave an execution record")
	assert.Equal(t, resp.Outcome.Execution.BeforeState, resp.Outcome.Execution.AfterState)

	assert.Len(t, h.auditStages(t, domain.StageIntentExtracted), 1)
	assert.Len(t, h.auditStages(t, domain.StagePlanCreated), 1)
	assert.Len(t, h.auditStages(t, domain.StageExecuted), 1)

	// Nothing changed, so there is nothing to undo.
	_, err = h.console.Rollback(ctx, facultyActor, resp.Outcome.Execution.ExecutionID)
	var conflict *domain.RollbackConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "execution does not support rollback", conflict.Reason)
}

func TestSubmitAnalyzeReturnsAggregate(t *testing.T) {
	h := newHarness(t, map[string]domain.Intent{
		"average cgpa of CSE students": {
			Type:       domain.IntentAnalyze,
			Entity:     "student",
			Filters:    domain.Filters{"department": domain.Eq("CSE")},
			Aggregate:  &domain.Aggregate{Op: domain.AggAvg, Field: "cgpa"},
			Confidence: 0.9,
		},
	})

	resp, err := h.console.Submit(context.Background(), adminActor, SubmitRequest{Message: "average cgpa of CSE students"})
	require.NoError(t, err)
	require.NotNil(t, resp.Outcome)
	require.NotNil(t, resp.Outcome.Value)
	assert.InDelta(t, 7.65, *resp.Outcome.Value, 0.001)
	require.NotNil(t, resp.Outcome.Execution)
	assert.Len(t, resp.Outcome.Execution.BeforeState, 2, "analysis snapshots the inspected rows")
	assert.Equal(t, resp.Outcome.Execution.BeforeState, resp.Outcome.Execution.AfterState)
}

func TestSubmitLowConfidenceHaltsForClarification(t *testing.T) {
	h := newHarness(t, map[string]domain.Intent{
		"do something with the records": {
			Type:       domain.IntentUpdate,
			Entity:     "student",
			Confidence: 0.4,
			Ambiguous:  true,
			Question:   "Which students should be updated, and to what values?",
		},
	})
	ctx := context.Background()

	resp, err := h.console.Submit(ctx, adminActor, SubmitRequest{Message: "do something with the records"})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusClarificationRequired, resp.Plan.Status)
	assert.Equal(t, "Which students should be updated, and to what values?", resp.Question)
	assert.Nil(t, resp.Outcome)

	stored, err := h.console.GetPlan(ctx, adminActor, resp.Plan.PlanID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClarificationRequired, stored.Status)
	assert.Len(t, h.auditStages(t, domain.StageClarificationRequested), 1)
}

func TestSubmitClarificationContinuation(t *testing.T) {
	h := newHarness(t, map[string]domain.Intent{
		"update the records": {
			Type:       domain.IntentUpdate,
			Entity:     "student",
			Confidence: 0.4,
			Ambiguous:  true,
			Question:   "Which students, and what should change?",
		},
		"update the records semester to 5 for CSE students": {
			Type:       domain.IntentUpdate,
			Entity:     "student",
			Filters:    domain.Filters{"department": domain.Eq("CSE")},
			Values:     map[string]interface{}{"semester": 5},
			Confidence: 0.9,
		},
	})
	ctx := context.Background()

	first, err := h.console.Submit(ctx, adminActor, SubmitRequest{Message: "update the records"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusClarificationRequired, first.Plan.Status)

	// Another actor cannot continue someone else's clarification.
	_, err = h.console.Submit(ctx, facultyActor, SubmitRequest{
		Message:       "semester to 5 for CSE students",
		ClarifiesPlan: first.Plan.PlanID,
	})
	assert.ErrorIs(t, err, domain.ErrPlanNotFound)

	second, err := h.console.Submit(ctx, adminActor, SubmitRequest{
		Message:       "semester to 5 for CSE students",
		ClarifiesPlan: first.Plan.PlanID,
	})
	require.NoError(t, err)
	assert.Equal(t, "update the records semester to 5 for CSE students", second.Plan.Message)
	assert.Equal(t, domain.StatusAwaitingConfirmation, second.Plan.Status)
	assert.NotEqual(t, first.Plan.PlanID, second.Plan.PlanID, "continuation produces a new plan")

	// Only clarification_required plans can be continued.
	_, err = h.console.Submit(ctx, adminActor, SubmitRequest{
		Message:       "again",
		ClarifiesPlan: second.Plan.PlanID,
	})
	var invalid *domain.InvalidTransitionError
	assert.ErrorAs(t, err, &invalid)
}

func TestSubmitPermissionDeniedRejectsPlan(t *testing.T) {
	h := newHarness(t, map[string]domain.Intent{
		"delete all user accounts": {
			Type:       domain.IntentDelete,
			Entity:     "user",
			Confidence: 0.95,
		},
	})
	ctx := context.Background()

	resp, err := h.console.Submit(ctx, studentActor, SubmitRequest{Message: "delete all user accounts"})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusRejected, resp.Plan.Status)
	assert.Equal(t, permission.ReasonRoleRestricted, resp.Plan.Reason)
	assert.Nil(t, resp.Outcome)
	assert.Len(t, h.auditStages(t, domain.StagePermissionDenied), 1)
}

func TestStudentUpdatePinnedToOwnStudentRow(t *testing.T) {
	h := newHarness(t, map[string]domain.Intent{
		"set my cgpa to 9.0": {
			Type:       domain.IntentUpdate,
			Entity:     "student",
			Filters:    domain.Filters{"id": domain.Eq(1)},
			Values:     map[string]interface{}{"cgpa": 9.0},
			Confidence: 0.9,
		},
		"set cgpa to 9.0 for student 2": {
			Type:       domain.IntentUpdate,
			Entity:     "student",
			Filters:    domain.Filters{"id": domain.Eq(2)},
			Values:     map[string]interface{}{"cgpa": 9.0},
			Confidence: 0.9,
		},
	})
	ctx := context.Background()

	// The account id maps to student row 1; a mutation pinned there passes.
	resp, err := h.console.Submit(ctx, studentActor, SubmitRequest{Message: "set my cgpa to 9.0"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusAwaitingConfirmation, resp.Plan.Status)

	decision, err := h.console.Confirm(ctx, studentActor, resp.Plan.PlanID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExecuted, decision.Plan.Status)

	rows, err := h.entities.Select(ctx, "student", domain.Filters{"id": domain.Eq(1)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 9.0, rows[0]["cgpa"])

	// A mutation aimed at someone else's row is rejected by the scope check.
	resp, err = h.console.Submit(ctx, studentActor, SubmitRequest{Message: "set cgpa to 9.0 for student 2"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, resp.Plan.Status)
	assert.Equal(t, permission.ReasonSelfScope, resp.Plan.Reason)
}

func TestMediumUpdateRequiresRequesterConfirmation(t *testing.T) {
	h := newHarness(t, map[string]domain.Intent{
		"move CSE students to semester 5": {
			Type:       domain.IntentUpdate,
			Entity:     "student",
			Filters:    domain.Filters{"department": domain.Eq("CSE")},
			Values:     map[string]interface{}{"semester": 5},
			Confidence: 0.9,
		},
	})
	ctx := context.Background()

	resp, err := h.console.Submit(ctx, adminActor, SubmitRequest{Message: "move CSE students to semester 5"})
	require.NoError(t, err)

	assert.Equal(t, domain.RiskMedium, resp.Plan.RiskLevel)
	assert.Equal(t, domain.StatusAwaitingConfirmation, resp.Plan.Status)
	assert.Equal(t, 2, resp.Plan.ImpactCount)
	assert.Nil(t, resp.Outcome)
	require.NotNil(t, resp.Plan.Preview)
	assert.Len(t, resp.Plan.Preview.AffectedRows, 2)
	assert.Len(t, resp.Plan.Preview.ProposedChanges, 2)
	assert.True(t, resp.Plan.Preview.Rollback.SupportsRollback)

	// Only the requester may confirm.
	other := domain.Actor{ID: "admin_2", Role: domain.RoleAdmin}
	_, err = h.console.Confirm(ctx, other, resp.Plan.PlanID)
	var denied *domain.PermissionError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "confirmation_restricted_to_requester", denied.Reason)

	decision, err := h.console.Confirm(ctx, adminActor, resp.Plan.PlanID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExecuted, decision.Plan.Status)
	require.NotNil(t, decision.Outcome.Execution)
	assert.Len(t, decision.Outcome.Execution.BeforeState, 2)
	assert.Len(t, decision.Outcome.Execution.AfterState, 2)

	rows, err := h.entities.Select(ctx, "student", domain.Filters{"department": domain.Eq("CSE")})
	require.NoError(t, err)
	for _, row := range rows {
		assert.Equal(t, 5, row["semester"])
	}

	// A confirmed plan cannot be confirmed again.
	_, err = h.console.Confirm(ctx, adminActor, resp.Plan.PlanID)
	var invalid *domain.InvalidTransitionError
	assert.ErrorAs(t, err, &invalid)
}

func TestHighDeleteRequiresSeniorApprovalWithSecondFactor(t *testing.T) {
	h := newHarness(t, map[string]domain.Intent{
		"delete ECE students": {
			Type:       domain.IntentDelete,
			Entity:     "student",
			Filters:    domain.Filters{"department": domain.Eq("ECE")},
			Confidence: 0.9,
		},
	})
	ctx := context.Background()

	resp, err := h.console.Submit(ctx, adminActor, SubmitRequest{Message: "delete ECE students"})
	require.NoError(t, err)
	assert.Equal(t, domain.RiskHigh, resp.Plan.RiskLevel)
	assert.Equal(t, domain.StatusAwaitingApproval, resp.Plan.Status)
	assert.Nil(t, resp.Outcome)

	var denied *domain.PermissionError

	// Approval is reserved for senior roles.
	_, err = h.console.Approve(ctx, facultyActor, ApprovalRequest{PlanID: resp.Plan.PlanID, Approved: true, SecondFactor: testApprovalCode})
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "approval_requires_senior_role", denied.Reason)

	// Approving without a valid second factor fails; the plan stays parked.
	_, err = h.console.Approve(ctx, adminActor, ApprovalRequest{PlanID: resp.Plan.PlanID, Approved: true, SecondFactor: "000000"})
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "second_factor_invalid", denied.Reason)

	stored, err := h.console.GetPlan(ctx, adminActor, resp.Plan.PlanID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingApproval, stored.Status)

	decision, err := h.console.Approve(ctx, adminActor, ApprovalRequest{PlanID: resp.Plan.PlanID, Approved: true, SecondFactor: testApprovalCode})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExecuted, decision.Plan.Status)
	require.NotNil(t, decision.Outcome.Execution)
	assert.Len(t, decision.Outcome.Execution.BeforeState, 1)
	assert.Empty(t, decision.Outcome.Execution.AfterState)

	remaining, err := h.entities.Count(ctx, "student", domain.Filters{"department": domain.Eq("ECE")})
	require.NoError(t, err)
	assert.Zero(t, remaining)

	assert.Len(t, h.auditStages(t, domain.StageApprovalRecorded), 1)
}

func TestRejectionIsTerminalAndNoSecondFactorRequired(t *testing.T) {
	h := newHarness(t, map[string]domain.Intent{
		"delete ECE students": {
			Type:       domain.IntentDelete,
			Entity:     "student",
			Filters:    domain.Filters{"department": domain.Eq("ECE")},
			Confidence: 0.9,
		},
	})
	ctx := context.Background()

	resp, err := h.console.Submit(ctx, adminActor, SubmitRequest{Message: "delete ECE students"})
	require.NoError(t, err)

	decision, err := h.console.Approve(ctx, adminActor, ApprovalRequest{PlanID: resp.Plan.PlanID, Approved: false})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, decision.Plan.Status)
	assert.Equal(t, "rejected_by_approver", decision.Plan.Reason)
	assert.Nil(t, decision.Outcome)

	// A rejected plan accepts no further decisions.
	var invalid *domain.InvalidTransitionError
	_, err = h.console.Approve(ctx, adminActor, ApprovalRequest{PlanID: resp.Plan.PlanID, Approved: true, SecondFactor: testApprovalCode})
	assert.ErrorAs(t, err, &invalid)

	count, err := h.entities.Count(ctx, "student", domain.Filters{"department": domain.Eq("ECE")})
	require.NoError(t, err)
	assert.Equal(t, 1, count, "rejected plans must not touch data")
}

func TestImpactConflictAbortsExecution(t *testing.T) {
	h := newHarness(t, map[string]domain.Intent{
		"move CSE students to semester 5": {
			Type:       domain.IntentUpdate,
			Entity:     "student",
			Filters:    domain.Filters{"department": domain.Eq("CSE")},
			Values:     map[string]interface{}{"semester": 5},
			Confidence: 0.9,
		},
	})
	ctx := context.Background()

	resp, err := h.console.Submit(ctx, adminActor, SubmitRequest{Message: "move CSE students to semester 5"})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Plan.ImpactCount)

	// A concurrent write lands between preview and confirmation.
	require.NoError(t, h.entities.Seed("student",
		domain.Row{"roll_number": "CSE2303", "department": "CSE", "semester": 4, "section": "B", "cgpa": 7.1},
	))

	_, err = h.console.Confirm(ctx, adminActor, resp.Plan.PlanID)
	var conflict *domain.ImpactConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 2, conflict.Expected)
	assert.Equal(t, 3, conflict.Actual)

	stored, err := h.plans.FindByID(ctx, resp.Plan.PlanID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)

	// Nothing was written and no execution record exists.
	rows, err := h.entities.Select(ctx, "student", domain.Filters{"department": domain.Eq("CSE")})
	require.NoError(t, err)
	for _, row := range rows {
		assert.Equal(t, 4, row["semester"])
	}
	_, err = h.execs.FindActiveByPlan(ctx, resp.Plan.PlanID)
	assert.ErrorIs(t, err, domain.ErrExecutionNotFound)
	assert.Len(t, h.auditStages(t, domain.StageExecutionFailed), 1)
}

func confirmedUpdate(t *testing.T, h *consoleHarness, message string) *domain.Execution {
	t.Helper()
	ctx := context.Background()
	resp, err := h.console.Submit(ctx, adminActor, SubmitRequest{Message: message})
	require.NoError(t, err)
	require.Equal(t, domain.StatusAwaitingConfirmation, resp.Plan.Status)
	decision, err := h.console.Confirm(ctx, adminActor, resp.Plan.PlanID)
	require.NoError(t, err)
	require.NotNil(t, decision.Outcome.Execution)
	return decision.Outcome.Execution
}

func TestRollbackRestoresUpdatedRows(t *testing.T) {
	h := newHarness(t, map[string]domain.Intent{
		"move CSE students to semester 5": {
			Type:       domain.IntentUpdate,
			Entity:     "student",
			Filters:    domain.Filters{"department": domain.Eq("CSE")},
			Values:     map[string]interface{}{"semester": 5},
			Confidence: 0.9,
		},
	})
	ctx := context.Background()
	execution := confirmedUpdate(t, h, "move CSE students to semester 5")

	reversal, err := h.console.Rollback(ctx, adminActor, execution.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, execution.ExecutionID, reversal.RollbackOf)
	assert.Equal(t, domain.ExecutionRolledBack, reversal.Status)

	rows, err := h.entities.Select(ctx, "student", domain.Filters{"department": domain.Eq("CSE")})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, 4, row["semester"])
	}

	original, err := h.execs.FindByID(ctx, execution.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionRolledBack, original.Status)
	assert.Len(t, h.auditStages(t, domain.StageRolledBack), 1)

	// A snapshot can only be applied once.
	_, err = h.console.Rollback(ctx, adminActor, execution.ExecutionID)
	var conflict *domain.RollbackConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestRollbackRestoresDeletedRows(t *testing.T) {
	h := newHarness(t, map[string]domain.Intent{
		"delete ECE students": {
			Type:       domain.IntentDelete,
			Entity:     "student",
			Filters:    domain.Filters{"department": domain.Eq("ECE")},
			Confidence: 0.9,
		},
	})
	ctx := context.Background()

	resp, err := h.console.Submit(ctx, adminActor, SubmitRequest{Message: "delete ECE students"})
	require.NoError(t, err)
	decision, err := h.console.Approve(ctx, adminActor, ApprovalRequest{PlanID: resp.Plan.PlanID, Approved: true, SecondFactor: testApprovalCode})
	require.NoError(t, err)
	execution := decision.Outcome.Execution
	deletedID := execution.BeforeState[0].ID()

	_, err = h.console.Rollback(ctx, adminActor, execution.ExecutionID)
	require.NoError(t, err)

	rows, err := h.entities.Select(ctx, "student", domain.Filters{"department": domain.Eq("ECE")})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, deletedID, rows[0].ID(), "restored row keeps its original id")
	assert.Equal(t, "ECE2301", rows[0]["roll_number"])
}

func TestRollbackDetectsDivergence(t *testing.T) {
	h := newHarness(t, map[string]domain.Intent{
		"move CSE students to semester 5": {
			Type:       domain.IntentUpdate,
			Entity:     "student",
			Filters:    domain.Filters{"department": domain.Eq("CSE")},
			Values:     map[string]interface{}{"semester": 5},
			Confidence: 0.9,
		},
	})
	ctx := context.Background()
	execution := confirmedUpdate(t, h, "move CSE students to semester 5")

	// Someone edits one of the affected rows after execution.
	_, err := h.entities.Update(ctx, "student",
		domain.Filters{"roll_number": domain.Eq("CSE2301")},
		map[string]interface{}{"semester": 6})
	require.NoError(t, err)

	_, err = h.console.Rollback(ctx, adminActor, execution.ExecutionID)
	var conflict *domain.RollbackConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Contains(t, conflict.Reason, "changed since execution")

	// The diverged state is left untouched and the execution stays active.
	original, err := h.execs.FindByID(ctx, execution.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionExecuted, original.Status)
}

func TestRollbackRestrictedToRequester(t *testing.T) {
	h := newHarness(t, map[string]domain.Intent{
		"move CSE students to semester 5": {
			Type:       domain.IntentUpdate,
			Entity:     "student",
			Filters:    domain.Filters{"department": domain.Eq("CSE")},
			Values:     map[string]interface{}{"semester": 5},
			Confidence: 0.9,
		},
	})
	ctx := context.Background()
	execution := confirmedUpdate(t, h, "move CSE students to semester 5")

	_, err := h.console.Rollback(ctx, facultyActor, execution.ExecutionID)
	var denied *domain.PermissionError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "rollback_restricted_to_requester", denied.Reason)
}

func TestGetPlanAndAuditScoping(t *testing.T) {
	h := newHarness(t, map[string]domain.Intent{
		"show CSE students": {
			Type:       domain.IntentRead,
			Entity:     "student",
			Filters:    domain.Filters{"department": domain.Eq("CSE")},
			Confidence: 0.92,
		},
	})
	ctx := context.Background()

	resp, err := h.console.Submit(ctx, facultyActor, SubmitRequest{Message: "show CSE students"})
	require.NoError(t, err)

	// Admins see every plan; other roles only their own.
	_, err = h.console.GetPlan(ctx, adminActor, resp.Plan.PlanID)
	require.NoError(t, err)
	_, err = h.console.GetPlan(ctx, studentActor, resp.Plan.PlanID)
	assert.ErrorIs(t, err, domain.ErrPlanNotFound)

	// Non-admins are confined to their own audit trail.
	events, err := h.console.QueryAudit(ctx, studentActor, domain.AuditFilter{ActorID: facultyActor.ID})
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = h.console.QueryAudit(ctx, facultyActor, domain.AuditFilter{})
	require.NoError(t, err)
	assert.NotEmpty(t, events)
	for _, event := range events {
		assert.Equal(t, facultyActor.ID, event.ActorID)
	}
}

package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/campusiq/opsconsole/internal/domain"
	"github.com/campusiq/opsconsole/internal/intent"
	"github.com/campusiq/opsconsole/internal/permission"
	"github.com/campusiq/opsconsole/internal/ports"
	"github.com/campusiq/opsconsole/internal/registry"
	"github.com/campusiq/opsconsole/internal/risk"
)

// SubmitRequest carries one natural-language instruction. ClarifiesPlan
// continues a plan parked at the clarification gate: the message is appended
// to that plan's original instruction and the pipeline runs again as a new
// plan.
type SubmitRequest struct {
	Message       string `json:"message" validate:"required,min=3,max=2000"`
	ClarifiesPlan string `json:"clarifies_plan,omitempty"`
}

// SubmitResponse is the pipeline's answer to a submission. Exactly one of
// three things happened: the plan needs clarification (Question is set), the
// plan auto-executed (Outcome is set), or the plan is parked waiting for
// confirmation or approval (neither is set; see Plan.Status).
type SubmitResponse struct {
	Plan     *domain.Plan      `json:"plan"`
	Question string            `json:"question,omitempty"`
	Outcome  *ExecutionOutcome `json:"outcome,omitempty"`
}

// ApprovalRequest is a senior reviewer's decision on a HIGH-risk plan.
type ApprovalRequest struct {
	PlanID       string `json:"plan_id" validate:"required"`
	Approved     bool   `json:"approved"`
	SecondFactor string `json:"second_factor,omitempty"`
}

// DecisionResponse is the result of confirming or deciding a parked plan.
type DecisionResponse struct {
	Plan    *domain.Plan      `json:"plan"`
	Outcome *ExecutionOutcome `json:"outcome,omitempty"`
}

// Console orchestrates the pipeline: intent, clarification gate, permission
// gate, impact, risk, preview, and the execution path the risk level
// dictates. Every stage transition lands in the audit trail.
type Console struct {
	normalizer   *intent.Normalizer
	registry     *registry.Registry
	gate         *permission.Gate
	scopes       ports.ScopeResolver
	classifier   *risk.Classifier
	previews     *PreviewBuilder
	executor     *Executor
	rollbacker   *Rollbacker
	plans        ports.PlanRepository
	entities     ports.EntityRepository
	audit        ports.AuditLog
	secondFactor ports.SecondFactorVerifier
	seniorRoles  map[domain.Role]bool
	log          *logrus.Logger
}

// ConsoleDeps bundles the console's collaborators.
type ConsoleDeps struct {
	Normalizer   *intent.Normalizer
	Registry     *registry.Registry
	Gate         *permission.Gate
	Scopes       ports.ScopeResolver
	Classifier   *risk.Classifier
	Previews     *PreviewBuilder
	Executor     *Executor
	Rollbacker   *Rollbacker
	Plans        ports.PlanRepository
	Entities     ports.EntityRepository
	Audit        ports.AuditLog
	SecondFactor ports.SecondFactorVerifier
	SeniorRoles  []domain.Role
	Log          *logrus.Logger
}

// NewConsole creates the orchestrator. An empty SeniorRoles list defaults to
// admin only.
func NewConsole(deps ConsoleDeps) *Console {
	senior := make(map[domain.Role]bool, len(deps.SeniorRoles))
	for _, role := range deps.SeniorRoles {
		senior[role] = true
	}
	if len(senior) == 0 {
		senior[domain.RoleAdmin] = true
	}
	return &Console{
		normalizer:   deps.Normalizer,
		registry:     deps.Registry,
		gate:         deps.Gate,
		scopes:       deps.Scopes,
		classifier:   deps.Classifier,
		previews:     deps.Previews,
		executor:     deps.Executor,
		rollbacker:   deps.Rollbacker,
		plans:        deps.Plans,
		entities:     deps.Entities,
		audit:        deps.Audit,
		secondFactor: deps.SecondFactor,
		seniorRoles:  senior,
		log:          deps.Log,
	}
}

// Submit runs the full pipeline on one instruction.
func (c *Console) Submit(ctx context.Context, actor domain.Actor, req SubmitRequest) (*SubmitResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, errors.New("message is required")
	}

	if req.ClarifiesPlan != "" {
		prior, err := c.plans.FindByID(ctx, req.ClarifiesPlan)
		if err != nil {
			return nil, err
		}
		if prior.ActorID != actor.ID {
			return nil, domain.ErrPlanNotFound
		}
		if prior.Status != domain.StatusClarificationRequired {
			return nil, &domain.InvalidTransitionError{PlanID: prior.PlanID, From: prior.Status, To: domain.StatusReady}
		}
		message = prior.Message + " " + message
	}

	parsed, err := c.normalizer.Normalize(ctx, message, actor.Role)
	if err != nil {
		return nil, err
	}

	c.appendAudit(ctx, actor, domain.StageIntentExtracted, func(e *domain.AuditEvent) {
		e.Entity = parsed.Entity
		e.Payload = map[string]interface{}{
			"intent":     parsed.Type,
			"confidence": parsed.Confidence,
		}
	})

	plan := domain.NewPlan(actor, message, parsed)

	if clarify := c.normalizer.Clarify(parsed); clarify != nil {
		plan.Status = domain.StatusClarificationRequired
		plan.Reason = clarify.Question
		if err := c.plans.Create(ctx, plan); err != nil {
			return nil, err
		}
		c.appendAudit(ctx, actor, domain.StageClarificationRequested, func(e *domain.AuditEvent) {
			e.PlanID = plan.PlanID
			e.Entity = parsed.Entity
			e.Payload = map[string]interface{}{
				"question":   clarify.Question,
				"confidence": clarify.Confidence,
			}
		})
		return &SubmitResponse{Plan: plan, Question: clarify.Question}, nil
	}

	schema, err := c.registry.Resolve(parsed.Entity)
	if err != nil {
		return nil, err
	}

	scope, err := c.scopes.Resolve(ctx, actor)
	if err != nil {
		return nil, err
	}

	if err := c.gate.Check(actor.Role, parsed, schema, scope); err != nil {
		var denied *domain.PermissionError
		if !errors.As(err, &denied) {
			return nil, err
		}
		plan.Status = domain.StatusRejected
		plan.Reason = denied.Reason
		if createErr := c.plans.Create(ctx, plan); createErr != nil {
			return nil, createErr
		}
		c.appendAudit(ctx, actor, domain.StagePermissionDenied, func(e *domain.AuditEvent) {
			e.PlanID = plan.PlanID
			e.Entity = schema.Name
			e.Payload = map[string]interface{}{"reason": denied.Reason}
		})
		return &SubmitResponse{Plan: plan}, nil
	}

	impact := 1
	if parsed.Type != domain.IntentCreate {
		impact, err = c.entities.Count(ctx, schema.Name, parsed.Filters)
		if err != nil {
			return nil, err
		}
	}
	plan.ImpactCount = impact
	plan.RiskLevel = c.classifier.Classify(parsed.Type, schema.Sensitive, impact)

	preview, err := c.previews.Build(ctx, parsed)
	if err != nil {
		return nil, err
	}
	plan.Preview = preview

	switch plan.RiskLevel {
	case domain.RiskHigh:
		plan.Status = domain.StatusAwaitingApproval
	case domain.RiskMedium:
		plan.Status = domain.StatusAwaitingConfirmation
	default:
		plan.Status = domain.StatusReady
	}

	if err := c.plans.Create(ctx, plan); err != nil {
		return nil, err
	}

	c.appendAudit(ctx, actor, domain.StagePlanCreated, func(e *domain.AuditEvent) {
		e.PlanID = plan.PlanID
		e.RiskLevel = plan.RiskLevel
		e.Entity = schema.Name
		e.Payload = map[string]interface{}{
			"impact_count": plan.ImpactCount,
			"status":       plan.Status,
		}
	})

	resp := &SubmitResponse{Plan: plan}

	if plan.Status == domain.StatusReady {
		outcome, err := c.executor.Execute(ctx, plan, actor)
		if err != nil {
			return nil, err
		}
		resp.Outcome = outcome
	}

	return resp, nil
}

// Confirm executes a MEDIUM-risk plan parked for user confirmation. Only the
// actor who submitted the plan may confirm it.
func (c *Console) Confirm(ctx context.Context, actor domain.Actor, planID string) (*DecisionResponse, error) {
	plan, err := c.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status != domain.StatusAwaitingConfirmation {
		return nil, &domain.InvalidTransitionError{PlanID: plan.PlanID, From: plan.Status, To: domain.StatusExecuted}
	}
	if plan.ActorID != actor.ID {
		return nil, &domain.PermissionError{Reason: "confirmation_restricted_to_requester"}
	}

	outcome, err := c.executor.Execute(ctx, plan, actor)
	if err != nil {
		return nil, err
	}
	return &DecisionResponse{Plan: plan, Outcome: outcome}, nil
}

// Approve records a senior reviewer's decision on a HIGH-risk plan. Approval
// requires a valid second factor; rejection does not.
func (c *Console) Approve(ctx context.Context, actor domain.Actor, req ApprovalRequest) (*DecisionResponse, error) {
	plan, err := c.plans.FindByID(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if plan.Status != domain.StatusAwaitingApproval {
		return nil, &domain.InvalidTransitionError{PlanID: plan.PlanID, From: plan.Status, To: domain.StatusExecuted}
	}
	if !c.seniorRoles[actor.Role] {
		return nil, &domain.PermissionError{Reason: "approval_requires_senior_role"}
	}
	secondFactorVerified := false
	if req.Approved {
		if !c.secondFactor.Verify(req.SecondFactor) {
			return nil, &domain.PermissionError{Reason: "second_factor_invalid"}
		}
		secondFactorVerified = true
	}

	c.appendAudit(ctx, actor, domain.StageApprovalRecorded, func(e *domain.AuditEvent) {
		e.PlanID = plan.PlanID
		e.RiskLevel = plan.RiskLevel
		e.Entity = plan.Intent.Entity
		e.Payload = map[string]interface{}{
			"approved":               req.Approved,
			"second_factor_verified": secondFactorVerified,
		}
	})

	if !req.Approved {
		if err := plan.Transition(domain.StatusRejected); err != nil {
			return nil, err
		}
		plan.Reason = "rejected_by_approver"
		if err := c.plans.Update(ctx, plan); err != nil {
			return nil, err
		}
		return &DecisionResponse{Plan: plan}, nil
	}

	outcome, err := c.executor.Execute(ctx, plan, actor)
	if err != nil {
		return nil, err
	}
	return &DecisionResponse{Plan: plan, Outcome: outcome}, nil
}

// Rollback reverses an executed plan. Admins may roll back any execution;
// other roles only executions of their own plans.
func (c *Console) Rollback(ctx context.Context, actor domain.Actor, executionID string) (*domain.Execution, error) {
	if actor.Role != domain.RoleAdmin {
		execution, err := c.rollbacker.executions.FindByID(ctx, executionID)
		if err != nil {
			return nil, err
		}
		plan, err := c.plans.FindByID(ctx, execution.PlanID)
		if err != nil {
			return nil, err
		}
		if plan.ActorID != actor.ID {
			return nil, &domain.PermissionError{Reason: "rollback_restricted_to_requester"}
		}
	}
	return c.rollbacker.Rollback(ctx, executionID, actor)
}

// GetPlan returns a plan. Non-admins only see their own plans.
func (c *Console) GetPlan(ctx context.Context, actor domain.Actor, planID string) (*domain.Plan, error) {
	plan, err := c.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleAdmin && plan.ActorID != actor.ID {
		return nil, domain.ErrPlanNotFound
	}
	return plan, nil
}

// QueryAudit returns audit events. Non-admins are confined to their own
// trail regardless of the filter they pass.
func (c *Console) QueryAudit(ctx context.Context, actor domain.Actor, filter domain.AuditFilter) ([]*domain.AuditEvent, error) {
	if actor.Role != domain.RoleAdmin {
		filter.ActorID = actor.ID
	}
	return c.audit.Query(ctx, filter)
}

// appendAudit writes one event, logging instead of failing the pipeline if
// the trail is unavailable.
func (c *Console) appendAudit(ctx context.Context, actor domain.Actor, stage domain.AuditStage, fill func(*domain.AuditEvent)) {
	event := domain.NewAuditEvent(actor, stage)
	fill(event)
	if err := c.audit.Append(ctx, event); err != nil {
		c.log.WithError(err).WithField("stage", stage).Error("failed to append audit event")
	}
}

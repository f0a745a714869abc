package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/campusiq/opsconsole/internal/domain"
	"github.com/campusiq/opsconsole/internal/ports"
)

// PostgresPlanRepository implements PlanRepository using PostgreSQL. The
// embedded intent and preview are stored as JSONB.
type PostgresPlanRepository struct {
	db dbtx
}

// NewPostgresPlanRepository creates a PostgreSQL plan repository.
func NewPostgresPlanRepository(db dbtx) ports.PlanRepository {
	return &PostgresPlanRepository{db: db}
}

// Create saves a new plan.
func (r *PostgresPlanRepository) Create(ctx context.Context, plan *domain.Plan) error {
	query := `
		INSERT INTO plans (plan_id, actor_id, actor_role, message, intent, impact_count, risk_level, status, reason, preview, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	intentJSON, err := json.Marshal(plan.Intent)
	if err != nil {
		return fmt.Errorf("failed to marshal intent: %w", err)
	}

	previewJSON, err := marshalPreview(plan.Preview)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		plan.PlanID,
		plan.ActorID,
		string(plan.ActorRole),
		plan.Message,
		intentJSON,
		plan.ImpactCount,
		string(plan.RiskLevel),
		string(plan.Status),
		plan.Reason,
		previewJSON,
		plan.CreatedAt,
		plan.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}

	return nil
}

// FindByID retrieves a plan by its ID.
func (r *PostgresPlanRepository) FindByID(ctx context.Context, planID string) (*domain.Plan, error) {
	query := `
		SELECT plan_id, actor_id, actor_role, message, intent, impact_count, risk_level, status, reason, preview, created_at, updated_at
		FROM plans
		WHERE plan_id = $1
	`

	var plan domain.Plan
	var intentJSON, previewJSON []byte
	var riskLevel sql.NullString

	err := r.db.QueryRowContext(ctx, query, planID).Scan(
		&plan.PlanID,
		&plan.ActorID,
		&plan.ActorRole,
		&plan.Message,
		&intentJSON,
		&plan.ImpactCount,
		&riskLevel,
		&plan.Status,
		&plan.Reason,
		&previewJSON,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to find plan: %w", err)
	}

	if err := json.Unmarshal(intentJSON, &plan.Intent); err != nil {
		return nil, fmt.Errorf("failed to unmarshal intent: %w", err)
	}

	if riskLevel.Valid {
		plan.RiskLevel = domain.RiskLevel(riskLevel.String)
	}

	if len(previewJSON) > 0 {
		var preview domain.Preview
		if err := json.Unmarshal(previewJSON, &preview); err != nil {
			return nil, fmt.Errorf("failed to unmarshal preview: %w", err)
		}
		plan.Preview = &preview
	}

	return &plan, nil
}

// Update rewrites the mutable plan columns.
func (r *PostgresPlanRepository) Update(ctx context.Context, plan *domain.Plan) error {
	query := `
		UPDATE plans
		SET impact_count = $2, risk_level = $3, status = $4, reason = $5, preview = $6, updated_at = $7
		WHERE plan_id = $1
	`

	previewJSON, err := marshalPreview(plan.Preview)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query,
		plan.PlanID,
		plan.ImpactCount,
		string(plan.RiskLevel),
		string(plan.Status),
		plan.Reason,
		previewJSON,
		plan.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrPlanNotFound
	}

	return nil
}

func marshalPreview(preview *domain.Preview) ([]byte, error) {
	if preview == nil {
		return nil, nil
	}
	out, err := json.Marshal(preview)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal preview: %w", err)
	}
	return out, nil
}

package usecase

import (
	"context"

	"github.com/campusiq/opsconsole/internal/domain"
	"github.com/campusiq/opsconsole/internal/ports"
)

// DefaultMaxPreviewRows bounds the affected-row sample attached to a plan.
const DefaultMaxPreviewRows = 20

// PreviewBuilder assembles the human-reviewable summary of what a plan would
// do: a bounded sample of affected rows, the proposed field changes, and the
// rollback declaration.
type PreviewBuilder struct {
	entities ports.EntityRepository
	maxRows  int
}

// NewPreviewBuilder creates a builder. A non-positive maxRows falls back to
// DefaultMaxPreviewRows.
func NewPreviewBuilder(entities ports.EntityRepository, maxRows int) *PreviewBuilder {
	if maxRows <= 0 {
		maxRows = DefaultMaxPreviewRows
	}
	return &PreviewBuilder{entities: entities, maxRows: maxRows}
}

// Build produces the preview for an intent. The affected-row sample is read
// outside any transaction; the execution engine re-validates the impact
// count before applying anything.
func (b *PreviewBuilder) Build(ctx context.Context, intent domain.Intent) (*domain.Preview, error) {
	preview := &domain.Preview{
		Rollback: domain.RollbackPlan{
			SupportsRollback: intent.Type.Mutates(),
		},
	}
	if preview.Rollback.SupportsRollback {
		preview.Rollback.Strategy = domain.RollbackStrategySnapshot
	}

	if intent.Type == domain.IntentCreate {
		fields := make([]domain.FieldChange, 0, len(intent.Values))
		for field, value := range intent.Values {
			fields = append(fields, domain.FieldChange{Field: field, Old: nil, New: value})
		}
		preview.ProposedChanges = []domain.RowChange{{RowID: nil, Fields: fields}}
		return preview, nil
	}

	rows, err := b.entities.SelectLimit(ctx, intent.Entity, intent.Filters, b.maxRows)
	if err != nil {
		return nil, err
	}
	preview.AffectedRows = rows

	switch intent.Type {
	case domain.IntentUpdate:
		for _, row := range rows {
			change := domain.RowChange{RowID: row.ID()}
			for field, value := range intent.Values {
				change.Fields = append(change.Fields, domain.FieldChange{
					Field: field,
					Old:   row[field],
					New:   value,
				})
			}
			preview.ProposedChanges = append(preview.ProposedChanges, change)
		}
	case domain.IntentDelete:
		for _, row := range rows {
			preview.ProposedChanges = append(preview.ProposedChanges, domain.RowChange{
				RowID: row.ID(),
			})
		}
	}

	return preview, nil
}

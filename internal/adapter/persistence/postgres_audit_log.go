package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/campusiq/opsconsole/internal/domain"
	"github.com/campusiq/opsconsole/internal/ports"
)

// PostgresAuditLog implements AuditLog using PostgreSQL. Only INSERT and
// SELECT statements exist here; the table additionally carries a trigger
// (see migrations) that rejects UPDATE and DELETE at the database level.
type PostgresAuditLog struct {
	db dbtx
}

// NewPostgresAuditLog creates a PostgreSQL audit log.
func NewPostgresAuditLog(db dbtx) ports.AuditLog {
	return &PostgresAuditLog{db: db}
}

// Append records one audit event.
func (l *PostgresAuditLog) Append(ctx context.Context, event *domain.AuditEvent) error {
	query := `
		INSERT INTO audit_events (event_id, plan_id, execution_id, actor_id, actor_role, stage, risk_level, entity, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	var payloadJSON []byte
	var err error

	if event.Payload != nil {
		payloadJSON, err = json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal audit payload: %w", err)
		}
	}

	_, err = l.db.ExecContext(ctx, query,
		event.EventID,
		nullableString(event.PlanID),
		nullableString(event.ExecutionID),
		event.ActorID,
		string(event.ActorRole),
		string(event.Stage),
		nullableString(string(event.RiskLevel)),
		nullableString(event.Entity),
		payloadJSON,
		event.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}

	return nil
}

// Query returns events matching the filter, newest first.
func (l *PostgresAuditLog) Query(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEvent, error) {
	query := `
		SELECT event_id, plan_id, execution_id, actor_id, actor_role, stage, risk_level, entity, payload, created_at
		FROM audit_events
		WHERE 1=1
	`

	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.ActorID != "" {
		conditions = append(conditions, fmt.Sprintf("actor_id = $%d", argIndex))
		args = append(args, filter.ActorID)
		argIndex++
	}

	if filter.PlanID != "" {
		conditions = append(conditions, fmt.Sprintf("plan_id = $%d", argIndex))
		args = append(args, filter.PlanID)
		argIndex++
	}

	if filter.Stage != "" {
		conditions = append(conditions, fmt.Sprintf("stage = $%d", argIndex))
		args = append(args, string(filter.Stage))
		argIndex++
	}

	if filter.RiskLevel != "" {
		conditions = append(conditions, fmt.Sprintf("risk_level = $%d", argIndex))
		args = append(args, string(filter.RiskLevel))
		argIndex++
	}

	if filter.Entity != "" {
		conditions = append(conditions, fmt.Sprintf("entity = $%d", argIndex))
		args = append(args, filter.Entity)
		argIndex++
	}

	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIndex))
		args = append(args, *filter.From)
		argIndex++
	}

	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIndex))
		args = append(args, *filter.To)
		argIndex++
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC, event_id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*domain.AuditEvent

	for rows.Next() {
		var event domain.AuditEvent
		var planID, executionID, riskLevel, entity sql.NullString
		var payloadJSON []byte

		err := rows.Scan(
			&event.EventID,
			&planID,
			&executionID,
			&event.ActorID,
			&event.ActorRole,
			&event.Stage,
			&riskLevel,
			&entity,
			&payloadJSON,
			&event.CreatedAt,
		)

		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}

		if planID.Valid {
			event.PlanID = planID.String
		}
		if executionID.Valid {
			event.ExecutionID = executionID.String
		}
		if riskLevel.Valid {
			event.RiskLevel = domain.RiskLevel(riskLevel.String)
		}
		if entity.Valid {
			event.Entity = entity.String
		}

		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &event.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit payload: %w", err)
			}
		}

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}

	return events, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

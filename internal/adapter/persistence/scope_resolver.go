package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/campusiq/opsconsole/internal/domain"
	"github.com/campusiq/opsconsole/internal/ports"
)

// PostgresScopeResolver derives an actor's ownership boundary from the users
// table. Students are pinned to their own student row; faculty to the
// department stored on their account. Admins get an unrestricted scope.
type PostgresScopeResolver struct {
	db dbtx
}

// NewPostgresScopeResolver creates a scope resolver backed by PostgreSQL.
func NewPostgresScopeResolver(db dbtx) ports.ScopeResolver {
	return &PostgresScopeResolver{db: db}
}

// Resolve implements ports.ScopeResolver.
func (r *PostgresScopeResolver) Resolve(ctx context.Context, actor domain.Actor) (domain.Scope, error) {
	switch actor.Role {
	case domain.RoleAdmin:
		return domain.Scope{}, nil
	case domain.RoleStudent:
		// The token subject is the account id; scope pinning works on the
		// student row, so resolve it through the ownership link.
		var studentID int64
		err := r.db.QueryRowContext(ctx, `SELECT id FROM students WHERE user_id = $1`, actor.ID).Scan(&studentID)
		if err != nil {
			if err == sql.ErrNoRows {
				return domain.Scope{}, fmt.Errorf("no student record for actor %s", actor.ID)
			}
			return domain.Scope{}, fmt.Errorf("failed to resolve scope: %w", err)
		}
		return domain.Scope{StudentID: strconv.FormatInt(studentID, 10)}, nil
	case domain.RoleFaculty:
		// The token claim is used when present; otherwise fall back to the
		// department on the account.
		if actor.DepartmentID != "" {
			return domain.Scope{DepartmentID: actor.DepartmentID}, nil
		}
		var departmentID sql.NullString
		err := r.db.QueryRowContext(ctx, `SELECT department_id FROM users WHERE id = $1`, actor.ID).Scan(&departmentID)
		if err != nil {
			if err == sql.ErrNoRows {
				return domain.Scope{}, fmt.Errorf("no account found for actor %s", actor.ID)
			}
			return domain.Scope{}, fmt.Errorf("failed to resolve scope: %w", err)
		}
		return domain.Scope{DepartmentID: departmentID.String}, nil
	default:
		return domain.Scope{}, fmt.Errorf("unknown role %q", actor.Role)
	}
}

// StaticScopeResolver resolves scopes without a data store. It backs the
// in-memory wiring and tests. Students maps an account id to its student
// row id; unmapped student accounts fall back to the account id itself.
type StaticScopeResolver struct {
	Students map[string]string
}

// Resolve implements ports.ScopeResolver.
func (s StaticScopeResolver) Resolve(_ context.Context, actor domain.Actor) (domain.Scope, error) {
	switch actor.Role {
	case domain.RoleStudent:
		if rowID, ok := s.Students[actor.ID]; ok {
			return domain.Scope{StudentID: rowID}, nil
		}
		return domain.Scope{StudentID: actor.ID}, nil
	case domain.RoleFaculty:
		return domain.Scope{DepartmentID: actor.DepartmentID}, nil
	default:
		return domain.Scope{}, nil
	}
}

// Package permission decides whether an actor may perform an intent. The
// gate is a pure function over (role, intent, entity, scope): no I/O, no
// side effects. A denial is terminal for the pipeline.
package permission

import (
	"fmt"

	"github.com/campusiq/opsconsole/internal/domain"
	"github.com/campusiq/opsconsole/internal/registry"
)

// Denial reasons, recorded on the rejected plan and in the audit trail.
const (
	ReasonRoleRestricted  = "role_restricted"
	ReasonDepartmentScope = "department_scope_restricted"
	ReasonSelfScope       = "self_scope_restricted"
)

// Matrix is the role permission table: for each role, the set of entities
// each intent type may touch. It is immutable configuration, injected so
// tests and deployments can swap it.
type Matrix map[domain.Role]map[domain.IntentType]map[string]bool

// Gate checks role permissions and scope isolation.
type Gate struct {
	matrix Matrix
}

// NewGate creates a gate over the given matrix.
func NewGate(matrix Matrix) *Gate {
	return &Gate{matrix: matrix}
}

// Check returns nil when the actor's role may perform the intent within its
// scope, or a *domain.PermissionError describing the denial. The scope
// check is a second mandatory predicate beyond the table lookup: a student
// acts only on rows tied to their own identity, a faculty member only
// inside their own department.
func (g *Gate) Check(role domain.Role, intent domain.Intent, schema registry.EntitySchema, scope domain.Scope) error {
	byIntent, ok := g.matrix[role]
	if !ok {
		return &domain.PermissionError{Reason: ReasonRoleRestricted}
	}
	if !byIntent[intent.Type][schema.Name] {
		return &domain.PermissionError{Reason: ReasonRoleRestricted}
	}

	switch role {
	case domain.RoleStudent:
		if intent.Type.Mutates() && !pinnedToStudent(intent.Filters, schema, scope.StudentID) {
			return &domain.PermissionError{Reason: ReasonSelfScope}
		}
	case domain.RoleFaculty:
		if target, ok := departmentTarget(intent.Filters); ok && scope.DepartmentID != "" && target != scope.DepartmentID {
			return &domain.PermissionError{Reason: ReasonDepartmentScope}
		}
	}

	return nil
}

// pinnedToStudent reports whether the filters restrict the operation to the
// student's own rows: the student's own record for the student entity, or
// rows carrying their student_id elsewhere.
func pinnedToStudent(filters domain.Filters, schema registry.EntitySchema, studentID string) bool {
	if studentID == "" {
		return false
	}
	field := "student_id"
	if schema.Name == "student" {
		field = domain.RowID
	}
	p, ok := filters[field]
	if !ok || p.Op != domain.OpEq {
		return false
	}
	return fmt.Sprintf("%v", p.Value) == studentID
}

// departmentTarget extracts the department an intent targets, if any.
func departmentTarget(filters domain.Filters) (string, bool) {
	for _, field := range []string{"department_id", "department"} {
		if p, ok := filters[field]; ok && p.Op == domain.OpEq {
			return fmt.Sprintf("%v", p.Value), true
		}
	}
	return "", false
}

package permission

import "github.com/campusiq/opsconsole/internal/domain"

// DefaultMatrix returns the shipped role permission table. Students read
// and analyze academic data and may update their own student record.
// Faculty additionally record attendance and maintain course and student
// academic fields. Admin may perform every intent on every entity.
func DefaultMatrix(entities []string) Matrix {
	all := entitySet(entities)

	return Matrix{
		domain.RoleStudent: {
			domain.IntentRead:    entitySet([]string{"student", "course", "department", "attendance"}),
			domain.IntentAnalyze: entitySet([]string{"attendance"}),
			domain.IntentUpdate:  entitySet([]string{"student"}),
		},
		domain.RoleFaculty: {
			domain.IntentRead:    entitySet([]string{"student", "course", "department", "attendance"}),
			domain.IntentAnalyze: entitySet([]string{"student", "course", "attendance"}),
			domain.IntentCreate:  entitySet([]string{"attendance"}),
			domain.IntentUpdate:  entitySet([]string{"student", "course", "attendance"}),
		},
		domain.RoleAdmin: {
			domain.IntentRead:    all,
			domain.IntentAnalyze: all,
			domain.IntentCreate:  all,
			domain.IntentUpdate:  all,
			domain.IntentDelete:  all,
		},
	}
}

func entitySet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}

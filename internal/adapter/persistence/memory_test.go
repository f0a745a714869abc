package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusiq/opsconsole/internal/domain"
	"github.com/campusiq/opsconsole/internal/ports"
	"github.com/campusiq/opsconsole/internal/registry"
)

func seededStore(t *testing.T) *MemoryEntityStore {
	t.Helper()
	store := NewMemoryEntityStore(registry.Campus())
	require.NoError(t, store.Seed("student",
		domain.Row{"roll_number": "CSE2301", "department": "CSE", "semester": 4, "section": "A", "cgpa": 8.4},
		domain.Row{"roll_number": "CSE2302", "department": "CSE", "semester": 4, "section": "A", "cgpa": 6.9},
		domain.Row{"roll_number": "ECE2301", "department": "ECE", "semester": 4, "section": "B", "cgpa": 7.8},
	))
	return store
}

func TestMemoryEntityStoreSelect(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	rows, err := store.Select(ctx, "student", domain.Filters{"department": domain.Eq("CSE")})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = store.Select(ctx, "student", domain.Filters{"cgpa": domain.Lt(7.0)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "CSE2302", rows[0]["roll_number"])

	count, err := store.Count(ctx, "student", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	limited, err := store.SelectLimit(ctx, "student", nil, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMemoryEntityStoreAliasedEntity(t *testing.T) {
	store := seededStore(t)

	rows, err := store.Select(context.Background(), "students", nil)
	require.NoError(t, err)
	assert.Len(t, rows, 3, "alias resolves to the same table")

	_, err = store.Select(context.Background(), "spaceship", nil)
	var unknown *domain.UnknownEntityError
	assert.ErrorAs(t, err, &unknown)
}

func TestMemoryEntityStoreMutations(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	row, err := store.Insert(ctx, "student", map[string]interface{}{"roll_number": "ME2201", "department": "ME", "semester": 6})
	require.NoError(t, err)
	assert.NotNil(t, row.ID())

	updated, err := store.Update(ctx, "student", domain.Filters{"department": domain.Eq("CSE")}, map[string]interface{}{"semester": 5})
	require.NoError(t, err)
	assert.Len(t, updated, 2)
	for _, r := range updated {
		assert.Equal(t, 5, r["semester"])
	}

	removed, err := store.Delete(ctx, "student", domain.Filters{"department": domain.Eq("ECE")})
	require.NoError(t, err)
	require.Len(t, removed, 1)

	count, err := store.Count(ctx, "student", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestMemoryEntityStoreRestore(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	removed, err := store.Delete(ctx, "student", domain.Filters{"roll_number": domain.Eq("CSE2301")})
	require.NoError(t, err)
	require.Len(t, removed, 1)

	restored, err := store.Restore(ctx, "student", removed[0])
	require.NoError(t, err)
	assert.Equal(t, removed[0].ID(), restored.ID(), "restore keeps the original id")

	rows, err := store.Select(ctx, "student", domain.Filters{"roll_number": domain.Eq("CSE2301")})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestMemoryEntityStoreAggregate(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	count, err := store.Aggregate(ctx, "student", nil, domain.Aggregate{Op: domain.AggCount})
	require.NoError(t, err)
	assert.Equal(t, 3.0, count)

	avg, err := store.Aggregate(ctx, "student", domain.Filters{"department": domain.Eq("CSE")}, domain.Aggregate{Op: domain.AggAvg, Field: "cgpa"})
	require.NoError(t, err)
	assert.InDelta(t, 7.65, avg, 0.001)

	max, err := store.Aggregate(ctx, "student", nil, domain.Aggregate{Op: domain.AggMax, Field: "cgpa"})
	require.NoError(t, err)
	assert.Equal(t, 8.4, max)
}

func TestMemoryTxRunnerRollsBackOnError(t *testing.T) {
	entities := seededStore(t)
	plans := NewMemoryPlanRepository()
	execs := NewMemoryExecutionRepository()
	runner := NewMemoryTxRunner(entities, plans, execs)
	ctx := context.Background()

	plan := domain.NewPlan(domain.Actor{ID: "u1", Role: domain.RoleAdmin}, "msg", domain.Intent{Type: domain.IntentDelete, Entity: "student"})
	require.NoError(t, plans.Create(ctx, plan))

	boom := errors.New("boom")
	err := runner.InTx(ctx, func(tx ports.Stores) error {
		if _, err := tx.Entities.Delete(ctx, "student", nil); err != nil {
			return err
		}
		plan.Status = domain.StatusExecuted
		if err := tx.Plans.Update(ctx, plan); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	count, err := entities.Count(ctx, "student", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "entity writes must be rolled back")

	stored, err := plans.FindByID(ctx, plan.PlanID)
	require.NoError(t, err)
	assert.NotEqual(t, domain.StatusExecuted, stored.Status, "plan writes must be rolled back")
}

func TestMemoryExecutionRepositoryLifecycle(t *testing.T) {
	repo := NewMemoryExecutionRepository()
	ctx := context.Background()

	exec := domain.NewExecution("plan_x", "u1")
	exec.BeforeState = []domain.Row{{"id": int64(1), "semester": 4}}
	exec.AfterState = []domain.Row{{"id": int64(1), "semester": 5}}
	require.NoError(t, repo.Create(ctx, exec))

	active, err := repo.FindActiveByPlan(ctx, "plan_x")
	require.NoError(t, err)
	assert.Equal(t, exec.ExecutionID, active.ExecutionID)

	require.NoError(t, repo.MarkRolledBack(ctx, exec.ExecutionID))

	_, err = repo.FindActiveByPlan(ctx, "plan_x")
	assert.ErrorIs(t, err, domain.ErrExecutionNotFound)

	var conflict *domain.RollbackConflictError
	err = repo.MarkRolledBack(ctx, exec.ExecutionID)
	assert.ErrorAs(t, err, &conflict, "a rolled back execution cannot be rolled back again")
}

func TestMemoryExecutionRepositorySnapshotsAreCopies(t *testing.T) {
	repo := NewMemoryExecutionRepository()
	ctx := context.Background()

	exec := domain.NewExecution("plan_x", "u1")
	exec.BeforeState = []domain.Row{{"id": int64(1), "semester": 4}}
	require.NoError(t, repo.Create(ctx, exec))

	// Mutating the caller's copy must not reach the stored snapshot.
	exec.BeforeState[0]["semester"] = 99

	stored, err := repo.FindByID(ctx, exec.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.BeforeState[0]["semester"])
}

func TestStaticScopeResolver(t *testing.T) {
	resolver := StaticScopeResolver{Students: map[string]string{"acct_9": "12"}}
	ctx := context.Background()

	scope, err := resolver.Resolve(ctx, domain.Actor{ID: "acct_9", Role: domain.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, "12", scope.StudentID, "student scope is the student row, not the account")

	scope, err = resolver.Resolve(ctx, domain.Actor{ID: "acct_x", Role: domain.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, "acct_x", scope.StudentID, "unmapped accounts fall back to the account id")

	scope, err = resolver.Resolve(ctx, domain.Actor{ID: "f1", Role: domain.RoleFaculty, DepartmentID: "ECE"})
	require.NoError(t, err)
	assert.Equal(t, "ECE", scope.DepartmentID)

	scope, err = resolver.Resolve(ctx, domain.Actor{ID: "a1", Role: domain.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, domain.Scope{}, scope)
}

func TestMemoryAuditLogQuery(t *testing.T) {
	log := NewMemoryAuditLog()
	ctx := context.Background()

	actorA := domain.Actor{ID: "a", Role: domain.RoleAdmin}
	actorB := domain.Actor{ID: "b", Role: domain.RoleStudent}

	for i := 0; i < 3; i++ {
		event := domain.NewAuditEvent(actorA, domain.StagePlanCreated)
		event.PlanID = "plan_1"
		event.Entity = "student"
		event.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Millisecond)
		require.NoError(t, log.Append(ctx, event))
	}
	denied := domain.NewAuditEvent(actorB, domain.StagePermissionDenied)
	denied.Entity = "salary_record"
	require.NoError(t, log.Append(ctx, denied))

	events, err := log.Query(ctx, domain.AuditFilter{ActorID: "a"})
	require.NoError(t, err)
	assert.Len(t, events, 3)

	events, err = log.Query(ctx, domain.AuditFilter{Stage: domain.StagePermissionDenied})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "b", events[0].ActorID)

	events, err = log.Query(ctx, domain.AuditFilter{ActorID: "a", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events, err = log.Query(ctx, domain.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, domain.StagePermissionDenied, events[0].Stage, "newest first")
}

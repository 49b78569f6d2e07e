package graph

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/taskplane/taskplane/shared/apperr"
	"github.com/taskplane/taskplane/shared/models"
	"github.com/taskplane/taskplane/shared/tenantctx"
)

type guardFixture struct {
	db    *gorm.DB
	guard *Guard
	brand uuid.UUID
	tc    tenantctx.TenantContext
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Task{}, &models.TaskDependency{}, &models.GraphRevision{}))

	brand := uuid.New()
	return &guardFixture{
		db:    db,
		guard: NewGuard(db, nil),
		brand: brand,
		tc: tenantctx.TenantContext{
			UserID:  uuid.New(),
			BrandID: brand,
			Role:    models.RoleMember,
		},
	}
}

func (f *guardFixture) newTask(t *testing.T, brandID uuid.UUID, title string) *models.Task {
	t.Helper()
	task := models.Task{BrandID: brandID, ProjectID: uuid.New(), Title: title}
	require.NoError(t, f.db.Create(&task).Error)
	return &task
}

func (f *guardFixture) set(taskID uuid.UUID, deps ...string) ([]uuid.UUID, error) {
	return f.guard.SetDependencies(context.Background(), f.tc, taskID, deps)
}

func (f *guardFixture) storedDeps(t *testing.T, taskID uuid.UUID) []uuid.UUID {
	t.Helper()
	var edges []models.TaskDependency
	require.NoError(t, f.db.Where("task_id = ?", taskID).Order("position").Find(&edges).Error)
	out := make([]uuid.UUID, len(edges))
	for i, e := range edges {
		out[i] = e.DependsOnID
	}
	return out
}

func TestSetDependenciesCommits(t *testing.T) {
	f := newGuardFixture(t)
	t1 := f.newTask(t, f.brand, "t1")
	t2 := f.newTask(t, f.brand, "t2")

	committed, err := f.set(t1.ID, t2.ID.String())
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{t2.ID}, committed)
	require.Equal(t, []uuid.UUID{t2.ID}, f.storedDeps(t, t1.ID))

	deps, err := f.guard.GetDependencies(context.Background(), f.tc, t1.ID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	require.Equal(t, t2.ID, deps[0].ID)
}

func TestSelfDependencyRejected(t *testing.T) {
	f := newGuardFixture(t)
	t1 := f.newTask(t, f.brand, "t1")
	t2 := f.newTask(t, f.brand, "t2")

	_, err := f.set(t1.ID, t2.ID.String())
	require.NoError(t, err)

	_, err = f.set(t1.ID, t1.ID.String())
	require.Error(t, err)
	require.Equal(t, apperr.CodeSelfDependency, apperr.CodeOf(err))
	// stored edges are untouched by the rejected call
	require.Equal(t, []uuid.UUID{t2.ID}, f.storedDeps(t, t1.ID))
}

func TestDirectCycleRejected(t *testing.T) {
	f := newGuardFixture(t)
	t1 := f.newTask(t, f.brand, "t1")
	t2 := f.newTask(t, f.brand, "t2")

	_, err := f.set(t1.ID, t2.ID.String())
	require.NoError(t, err)

	_, err = f.set(t2.ID, t1.ID.String())
	require.Error(t, err)
	require.Equal(t, apperr.CodeCircularDependency, apperr.CodeOf(err))
	require.Empty(t, f.storedDeps(t, t2.ID))
}

func TestTransitiveCycleRejected(t *testing.T) {
	// a cycle closed only through the transitive closure: A->B, B->C, C->A
	f := newGuardFixture(t)
	a := f.newTask(t, f.brand, "a")
	b := f.newTask(t, f.brand, "b")
	c := f.newTask(t, f.brand, "c")

	_, err := f.set(a.ID, b.ID.String())
	require.NoError(t, err)
	_, err = f.set(b.ID, c.ID.String())
	require.NoError(t, err)

	_, err = f.set(c.ID, a.ID.String())
	require.Error(t, err)
	require.Equal(t, apperr.CodeCircularDependency, apperr.CodeOf(err))
	require.Empty(t, f.storedDeps(t, c.ID))
}

func TestDiamondIsNotACycle(t *testing.T) {
	// A->B, A->C, B->D, C->D shares D without closing a cycle
	f := newGuardFixture(t)
	a := f.newTask(t, f.brand, "a")
	b := f.newTask(t, f.brand, "b")
	c := f.newTask(t, f.brand, "c")
	d := f.newTask(t, f.brand, "d")

	_, err := f.set(b.ID, d.ID.String())
	require.NoError(t, err)
	_, err = f.set(c.ID, d.ID.String())
	require.NoError(t, err)
	_, err = f.set(a.ID, b.ID.String(), c.ID.String())
	require.NoError(t, err)
}

func TestClearDependencies(t *testing.T) {
	f := newGuardFixture(t)
	t1 := f.newTask(t, f.brand, "t1")
	t2 := f.newTask(t, f.brand, "t2")

	_, err := f.set(t1.ID, t2.ID.String())
	require.NoError(t, err)

	committed, err := f.set(t1.ID)
	require.NoError(t, err)
	require.Empty(t, committed)

	deps, err := f.guard.GetDependencies(context.Background(), f.tc, t1.ID)
	require.NoError(t, err)
	require.Empty(t, deps)
}

func TestUnparseableIDsDropped(t *testing.T) {
	f := newGuardFixture(t)
	t1 := f.newTask(t, f.brand, "t1")
	t2 := f.newTask(t, f.brand, "t2")

	committed, err := f.set(t1.ID, "not-a-uuid", t2.ID.String(), "", t2.ID.String())
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{t2.ID}, committed)
}

func TestUnknownReferenceRejected(t *testing.T) {
	f := newGuardFixture(t)
	t1 := f.newTask(t, f.brand, "t1")
	ghost := uuid.New()

	_, err := f.set(t1.ID, ghost.String())
	require.Error(t, err)
	require.Equal(t, apperr.CodeInvalidReference, apperr.CodeOf(err))
	require.Empty(t, f.storedDeps(t, t1.ID))
}

func TestCrossBrandReferenceRejected(t *testing.T) {
	// a task in another brand is an invalid reference, not a usable node
	f := newGuardFixture(t)
	t1 := f.newTask(t, f.brand, "t1")
	foreign := f.newTask(t, uuid.New(), "foreign")

	_, err := f.set(t1.ID, foreign.ID.String())
	require.Error(t, err)
	require.Equal(t, apperr.CodeInvalidReference, apperr.CodeOf(err))
}

func TestCrossBrandTaskInvisible(t *testing.T) {
	f := newGuardFixture(t)
	t1 := f.newTask(t, f.brand, "t1")

	otherCtx := tenantctx.TenantContext{
		UserID:  uuid.New(),
		BrandID: uuid.New(),
		Role:    models.RoleOwner,
	}

	_, err := f.guard.SetDependencies(context.Background(), otherCtx, t1.ID, nil)
	require.Error(t, err)
	require.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	_, err = f.guard.GetDependencies(context.Background(), otherCtx, t1.ID)
	require.Error(t, err)
	require.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestAdminOverrideReachesAnyBrand(t *testing.T) {
	f := newGuardFixture(t)
	t1 := f.newTask(t, f.brand, "t1")
	t2 := f.newTask(t, f.brand, "t2")
	_, err := f.set(t1.ID, t2.ID.String())
	require.NoError(t, err)

	adminCtx := tenantctx.TenantContext{
		UserID:        uuid.New(),
		BrandID:       f.brand,
		AdminOverride: true,
	}

	deps, err := f.guard.GetDependencies(context.Background(), adminCtx, t1.ID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
}

func TestGetDependenciesSkipsDanglingRefs(t *testing.T) {
	f := newGuardFixture(t)
	t1 := f.newTask(t, f.brand, "t1")
	t2 := f.newTask(t, f.brand, "t2")
	t3 := f.newTask(t, f.brand, "t3")

	_, err := f.set(t1.ID, t2.ID.String(), t3.ID.String())
	require.NoError(t, err)

	// t3 moves out of the brand behind the guard's back; the read skips it
	// rather than erroring
	require.NoError(t, f.db.Model(&models.Task{}).Where("id = ?", t3.ID).Update("brand_id", uuid.New()).Error)

	deps, err := f.guard.GetDependencies(context.Background(), f.tc, t1.ID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	require.Equal(t, t2.ID, deps[0].ID)
}

func TestStaleVersionRetriesOnce(t *testing.T) {
	f := newGuardFixture(t)
	t1 := f.newTask(t, f.brand, "t1")
	t2 := f.newTask(t, f.brand, "t2")

	bumped := false
	f.guard.onValidated = func() {
		if bumped {
			return
		}
		bumped = true
		require.NoError(t, f.db.Model(&models.Task{}).
			Where("id = ?", t1.ID).
			Update("version", gorm.Expr("version + 1")).Error)
	}

	// first attempt loses the race, the internal retry commits
	committed, err := f.set(t1.ID, t2.ID.String())
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{t2.ID}, committed)
}

func TestPersistentConflictSurfaces(t *testing.T) {
	f := newGuardFixture(t)
	t1 := f.newTask(t, f.brand, "t1")
	t2 := f.newTask(t, f.brand, "t2")

	f.guard.onValidated = func() {
		require.NoError(t, f.db.Model(&models.Task{}).
			Where("id = ?", t1.ID).
			Update("version", gorm.Expr("version + 1")).Error)
	}

	_, err := f.set(t1.ID, t2.ID.String())
	require.Error(t, err)
	require.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))
	require.Empty(t, f.storedDeps(t, t1.ID))
}

func TestConcurrentEditCannotSneakInACycle(t *testing.T) {
	// while t2 -> [t1] is being validated (legal against the graph it read),
	// a competing writer commits t1 -> [t2]. That write touches neither t2's
	// row nor its version; the brand's graph revision is what must force the
	// retry, which re-validates against the fresh graph and rejects the cycle.
	f := newGuardFixture(t)
	t1 := f.newTask(t, f.brand, "t1")
	t2 := f.newTask(t, f.brand, "t2")

	raced := false
	f.guard.onValidated = func() {
		if raced {
			return
		}
		raced = true
		competing := NewGuard(f.db, nil)
		_, err := competing.SetDependencies(context.Background(), f.tc, t1.ID, []string{t2.ID.String()})
		require.NoError(t, err)
	}

	_, err := f.set(t2.ID, t1.ID.String())
	require.Error(t, err)
	require.Equal(t, apperr.CodeCircularDependency, apperr.CodeOf(err))

	// exactly one of the two writes survived and the stored graph is acyclic
	require.Equal(t, []uuid.UUID{t2.ID}, f.storedDeps(t, t1.ID))
	require.Empty(t, f.storedDeps(t, t2.ID))
}

func TestCompetingCommitOnPopulatedGraphForcesRetry(t *testing.T) {
	// same race against a brand that already has a revision row: the
	// compare-and-set on the existing revision is what must fail
	f := newGuardFixture(t)
	t1 := f.newTask(t, f.brand, "t1")
	t2 := f.newTask(t, f.brand, "t2")
	t3 := f.newTask(t, f.brand, "t3")
	_, err := f.set(t3.ID, t1.ID.String())
	require.NoError(t, err)

	raced := false
	f.guard.onValidated = func() {
		if raced {
			return
		}
		raced = true
		competing := NewGuard(f.db, nil)
		_, err := competing.SetDependencies(context.Background(), f.tc, t1.ID, []string{t2.ID.String()})
		require.NoError(t, err)
	}

	_, err = f.set(t2.ID, t1.ID.String())
	require.Error(t, err)
	require.Equal(t, apperr.CodeCircularDependency, apperr.CodeOf(err))
	require.Equal(t, []uuid.UUID{t2.ID}, f.storedDeps(t, t1.ID))
	require.Empty(t, f.storedDeps(t, t2.ID))
}

func TestEndToEndScenario(t *testing.T) {
	f := newGuardFixture(t)
	t1 := f.newTask(t, f.brand, "T1")
	t2 := f.newTask(t, f.brand, "T2")
	t3 := f.newTask(t, f.brand, "T3")

	committed, err := f.set(t1.ID, t2.ID.String())
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{t2.ID}, committed)

	_, err = f.set(t2.ID, t1.ID.String())
	require.Equal(t, apperr.CodeCircularDependency, apperr.CodeOf(err))
	require.Empty(t, f.storedDeps(t, t2.ID))

	_, err = f.set(t3.ID, t3.ID.String())
	require.Equal(t, apperr.CodeSelfDependency, apperr.CodeOf(err))

	// a user scoped to another brand sees none of these tasks
	stranger := tenantctx.TenantContext{UserID: uuid.New(), BrandID: uuid.New(), Role: models.RoleOwner}
	for _, id := range []uuid.UUID{t1.ID, t2.ID, t3.ID} {
		_, err := f.guard.GetDependencies(context.Background(), stranger, id)
		require.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	}
}

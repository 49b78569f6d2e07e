package isolation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/taskplane/taskplane/shared/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Task{}))
	return db
}

func seedTasks(t *testing.T, db *gorm.DB, brandID uuid.UUID, n int) []models.Task {
	t.Helper()
	projectID := uuid.New()
	tasks := make([]models.Task, 0, n)
	for i := 0; i < n; i++ {
		task := models.Task{BrandID: brandID, ProjectID: projectID, Title: "task"}
		require.NoError(t, db.Create(&task).Error)
		tasks = append(tasks, task)
	}
	return tasks
}

func TestBelongsToTenant(t *testing.T) {
	brandA := uuid.New()
	brandB := uuid.New()

	require.True(t, BelongsToTenant(brandA, brandA, false))
	require.False(t, BelongsToTenant(brandA, brandB, false))
	require.False(t, BelongsToTenant(uuid.Nil, brandA, false))

	// admin override passes unconditionally
	require.True(t, BelongsToTenant(brandA, brandB, true))
	require.True(t, BelongsToTenant(uuid.Nil, brandA, true))
}

func TestScopeQueryIdempotent(t *testing.T) {
	brandA := uuid.New()
	base := NewQuery(map[string]interface{}{"status": "pending"})

	once := ScopeQuery(base, brandA, false)
	twice := ScopeQuery(once, brandA, false)

	require.Equal(t, once, twice)
	require.Equal(t, once.Conditions(), twice.Conditions())
	require.Equal(t, brandA, once.BrandID())
}

func TestScopeQueryAddsBrandPredicate(t *testing.T) {
	brandA := uuid.New()

	q := ScopeQuery(NewQuery(nil), brandA, false)
	conds := q.Conditions()
	require.Equal(t, brandA, conds["brand_id"])
	require.True(t, q.Scoped())
}

func TestScopeQueryOverridePassesThrough(t *testing.T) {
	brandA := uuid.New()

	q := ScopeQuery(NewQuery(map[string]interface{}{"status": "pending"}), brandA, true)
	conds := q.Conditions()
	_, hasBrand := conds["brand_id"]
	require.False(t, hasBrand)
	require.True(t, q.Scoped())
}

func TestScopeQueryDoesNotMutateCallerMap(t *testing.T) {
	conds := map[string]interface{}{"status": "pending"}
	_ = ScopeQuery(NewQuery(conds), uuid.New(), false)
	require.Len(t, conds, 1)
}

func TestScopedQueryNeverReturnsForeignRows(t *testing.T) {
	db := openTestDB(t)
	brandA := uuid.New()
	brandB := uuid.New()
	seedTasks(t, db, brandA, 3)
	seedTasks(t, db, brandB, 2)

	var tasks []models.Task
	q := ScopeQuery(NewQuery(nil), brandB, false)
	require.NoError(t, q.Apply(db).Find(&tasks).Error)
	require.Len(t, tasks, 2)
	for _, task := range tasks {
		require.Equal(t, brandB, task.BrandID)
		// agreement with the post-fetch check
		require.True(t, BelongsToTenant(task.BrandID, brandB, false))
	}
}

func TestRescopingDifferentBrandMatchesNothing(t *testing.T) {
	db := openTestDB(t)
	brandA := uuid.New()
	brandB := uuid.New()
	seedTasks(t, db, brandA, 3)

	// a conjunction of two distinct brand predicates is unsatisfiable
	q := ScopeQuery(ScopeQuery(NewQuery(nil), brandA, false), brandB, false)

	var count int64
	require.NoError(t, q.Apply(db.Model(&models.Task{})).Count(&count).Error)
	require.Zero(t, count)
}

func TestScopePipelineFiltersBeforeLaterStages(t *testing.T) {
	db := openTestDB(t)
	brandA := uuid.New()
	brandB := uuid.New()
	seedTasks(t, db, brandA, 3)
	seedTasks(t, db, brandB, 2)

	type statusCount struct {
		Status string
		Count  int64
	}

	stages := []Stage{
		func(tx *gorm.DB) *gorm.DB {
			return tx.Select("status, count(*) as count").Group("status")
		},
	}

	var counts []statusCount
	tx := ApplyPipeline(db.Model(&models.Task{}), ScopePipeline(stages, brandA, false))
	require.NoError(t, tx.Find(&counts).Error)

	var total int64
	for _, sc := range counts {
		total += sc.Count
	}
	require.EqualValues(t, 3, total)
}

func TestScopePipelineOverridePassesThrough(t *testing.T) {
	stages := []Stage{func(tx *gorm.DB) *gorm.DB { return tx }}
	scoped := ScopePipeline(stages, uuid.New(), true)
	require.Len(t, scoped, 1)
}

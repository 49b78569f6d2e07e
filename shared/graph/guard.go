package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/taskplane/taskplane/shared/apperr"
	"github.com/taskplane/taskplane/shared/audit"
	"github.com/taskplane/taskplane/shared/isolation"
	"github.com/taskplane/taskplane/shared/models"
	"github.com/taskplane/taskplane/shared/tenantctx"
)

// Guard validates and commits edits to a task's depends-on edge set while
// keeping each brand's dependency graph acyclic. It persists no structure of
// its own; every call validates the proposed mutation against the current
// stored graph and replaces the task's edge rows all-or-nothing.
type Guard struct {
	db      *gorm.DB
	emitter audit.Emitter

	// invoked after validation, before the write; tests use it to race a
	// competing commit between the two I/O steps
	onValidated func()
}

// NewGuard creates a Guard over the task store. emitter may be nil when no
// audit trail is wired (tests).
func NewGuard(db *gorm.DB, emitter audit.Emitter) *Guard {
	return &Guard{db: db, emitter: emitter}
}

// SetDependencies replaces the full dependency set of taskID with the tasks
// named in proposedIDs and returns the committed set. Ids that do not parse
// are dropped; ids that parse but resolve to no task in the brand fail with
// INVALID_REFERENCE. An empty proposal clears all dependencies. The write is
// guarded two ways: the task's version column catches concurrent edits of
// the task itself, and the brand's graph revision catches any other edge-set
// replacement committed since validation, so a cycle check based on stale
// adjacency never reaches the store. Either conflict triggers one internal
// retry of the whole read-validate-write, then surfaces CONFLICT.
func (g *Guard) SetDependencies(ctx context.Context, tc tenantctx.TenantContext, taskID uuid.UUID, proposedIDs []string) ([]uuid.UUID, error) {
	proposed := parseProposed(proposedIDs)

	for _, dep := range proposed {
		if dep == taskID {
			return nil, apperr.New(apperr.CodeSelfDependency, "a task cannot depend on itself").
				WithDetail(taskID.String())
		}
	}

	const attempts = 2
	for attempt := 0; attempt < attempts; attempt++ {
		committed, err := g.setDependenciesOnce(ctx, tc, taskID, proposed)
		if err == nil {
			return committed, nil
		}
		if !errors.Is(err, errStaleVersion) {
			return nil, err
		}
	}

	return nil, apperr.New(apperr.CodeConflict, "task was modified concurrently, retry the request")
}

// errStaleVersion marks a lost optimistic-lock race inside one attempt,
// on either the task's version or the brand's graph revision
var errStaleVersion = errors.New("stale read before write")

func (g *Guard) setDependenciesOnce(ctx context.Context, tc tenantctx.TenantContext, taskID uuid.UUID, proposed []uuid.UUID) ([]uuid.UUID, error) {
	task, err := g.loadTask(ctx, tc, taskID)
	if err != nil {
		return nil, err
	}

	// dependencies live in the task's own brand regardless of override;
	// a reference outside it is an isolation violation, not a graph error
	brandID := task.BrandID

	// read before the adjacency: any edge-set replacement that commits after
	// this point fails the compare-and-set below and forces the retry
	revision, revisionFound, err := g.loadRevision(ctx, brandID)
	if err != nil {
		return nil, err
	}

	if err := g.resolveReferences(ctx, brandID, proposed); err != nil {
		return nil, err
	}

	adjacency, err := g.loadAdjacency(ctx, brandID)
	if err != nil {
		return nil, err
	}
	adjacency[taskID] = proposed

	if offender, cyclic := detectCycle(adjacency, taskID); cyclic {
		return nil, apperr.New(apperr.CodeCircularDependency, "proposed dependencies would create a cycle").
			WithDetail(offender.String())
	}

	if g.onValidated != nil {
		g.onValidated()
	}

	err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Task{}).
			Where("id = ? AND version = ?", task.ID, task.Version).
			Update("version", task.Version+1)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errStaleVersion
		}

		if err := g.bumpRevision(tx, brandID, revision, revisionFound); err != nil {
			return err
		}

		if err := tx.Where("task_id = ?", task.ID).Delete(&models.TaskDependency{}).Error; err != nil {
			return err
		}

		for i, dep := range proposed {
			edge := models.TaskDependency{
				BrandID:     brandID,
				TaskID:      task.ID,
				DependsOnID: dep,
				Position:    i,
			}
			if err := tx.Create(&edge).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if g.emitter != nil {
		g.emitter.Emit(audit.Event{
			Type:       audit.EventDependenciesChanged,
			ActorID:    tc.UserID,
			BrandID:    brandID,
			Override:   tc.AdminOverride,
			Detail:     fmt.Sprintf("task %s now depends on [%s]", task.ID, joinIDs(proposed)),
			OccurredAt: time.Now(),
		})
	}

	return proposed, nil
}

// GetDependencies returns the resolved prerequisite tasks of taskID in their
// stored order. Edges whose target no longer resolves inside the brand are
// skipped rather than failing the read.
func (g *Guard) GetDependencies(ctx context.Context, tc tenantctx.TenantContext, taskID uuid.UUID) ([]models.Task, error) {
	task, err := g.loadTask(ctx, tc, taskID)
	if err != nil {
		return nil, err
	}

	var deps []models.Task
	err = g.db.WithContext(ctx).
		Joins("JOIN task_dependencies ON task_dependencies.depends_on_id = tasks.id").
		Where("task_dependencies.task_id = ?", task.ID).
		Where("tasks.brand_id = ?", task.BrandID).
		Order("task_dependencies.position").
		Find(&deps).Error
	if err != nil {
		return nil, err
	}

	return deps, nil
}

// loadTask fetches the task through a scoped query so a cross-brand id is
// indistinguishable from a missing one.
func (g *Guard) loadTask(ctx context.Context, tc tenantctx.TenantContext, taskID uuid.UUID) (*models.Task, error) {
	q := isolation.ScopeQuery(isolation.NewQuery(map[string]interface{}{"id": taskID}), tc.BrandID, tc.AdminOverride)

	var task models.Task
	err := q.Apply(g.db.WithContext(ctx)).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "task not found").WithDetail(taskID.String())
		}
		return nil, err
	}

	if !isolation.BelongsToTenant(task.BrandID, tc.BrandID, tc.AdminOverride) {
		return nil, apperr.New(apperr.CodeResourceOutOfTenant, "task belongs to another brand").
			WithDetail(taskID.String())
	}

	return &task, nil
}

// resolveReferences verifies every proposed id names a live task in brandID
func (g *Guard) resolveReferences(ctx context.Context, brandID uuid.UUID, proposed []uuid.UUID) error {
	if len(proposed) == 0 {
		return nil
	}

	var found []uuid.UUID
	err := g.db.WithContext(ctx).Model(&models.Task{}).
		Where("brand_id = ?", brandID).
		Where("id IN ?", proposed).
		Pluck("id", &found).Error
	if err != nil {
		return err
	}

	known := make(map[uuid.UUID]struct{}, len(found))
	for _, id := range found {
		known[id] = struct{}{}
	}
	for _, id := range proposed {
		if _, ok := known[id]; !ok {
			return apperr.New(apperr.CodeInvalidReference, "dependency does not resolve to a task in this brand").
				WithDetail(id.String())
		}
	}
	return nil
}

// loadAdjacency builds the brand's current edge map, discarded after the call
func (g *Guard) loadAdjacency(ctx context.Context, brandID uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	var edges []models.TaskDependency
	err := g.db.WithContext(ctx).
		Where("brand_id = ?", brandID).
		Order("task_id, position").
		Find(&edges).Error
	if err != nil {
		return nil, err
	}

	adjacency := make(map[uuid.UUID][]uuid.UUID)
	for _, e := range edges {
		adjacency[e.TaskID] = append(adjacency[e.TaskID], e.DependsOnID)
	}
	return adjacency, nil
}

// loadRevision reads the brand's current graph revision. A brand that never
// had an edge-set committed has no row yet.
func (g *Guard) loadRevision(ctx context.Context, brandID uuid.UUID) (int64, bool, error) {
	var rev models.GraphRevision
	err := g.db.WithContext(ctx).Where("brand_id = ?", brandID).First(&rev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rev.Revision, true, nil
}

// bumpRevision advances the brand's graph revision from the value the caller
// validated under. A failed compare-and-set means another edge-set
// replacement committed in between, so the whole attempt is stale.
func (g *Guard) bumpRevision(tx *gorm.DB, brandID uuid.UUID, revision int64, found bool) error {
	if !found {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.GraphRevision{BrandID: brandID, Revision: 1})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errStaleVersion
		}
		return nil
	}

	res := tx.Model(&models.GraphRevision{}).
		Where("brand_id = ? AND revision = ?", brandID, revision).
		Update("revision", revision+1)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errStaleVersion
	}
	return nil
}

// parseProposed parses ids leniently: unparseable entries are dropped,
// duplicates collapse, first-seen order is kept.
func parseProposed(raw []string) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(raw))
	seen := make(map[uuid.UUID]struct{}, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(strings.TrimSpace(s))
		if err != nil || id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func joinIDs(ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ", ")
}

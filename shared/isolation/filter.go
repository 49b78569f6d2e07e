package isolation

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Query is an immutable set of query conditions that can only acquire a
// tenant predicate through ScopeQuery. Repositories take a Query, not a bare
// condition map, so an unscoped read cannot be written by accident.
type Query struct {
	conds      map[string]interface{}
	brandID    uuid.UUID
	scoped     bool
	override   bool
	impossible bool
}

// NewQuery builds a Query from plain equality conditions. The map is copied;
// the caller's map stays untouched.
func NewQuery(conds map[string]interface{}) Query {
	copied := make(map[string]interface{}, len(conds))
	for k, v := range conds {
		copied[k] = v
	}
	return Query{conds: copied}
}

// ScopeQuery conjoins a brand predicate into q. Under admin override the
// query passes through unscoped. Scoping twice with the same brand is a
// no-op; scoping an already-scoped query with a different brand yields a
// query that matches nothing, which is what a conjunction of two distinct
// brand predicates means.
func ScopeQuery(q Query, brandID uuid.UUID, adminOverride bool) Query {
	if adminOverride {
		q.override = true
		return q
	}
	if q.scoped {
		if q.brandID != brandID {
			q.impossible = true
		}
		return q
	}
	q.scoped = true
	q.brandID = brandID
	return q
}

// Scoped reports whether q carries a brand predicate or an explicit override
func (q Query) Scoped() bool {
	return q.scoped || q.override
}

// BrandID returns the brand the query is scoped to, uuid.Nil when unscoped
func (q Query) BrandID() uuid.UUID {
	if !q.scoped {
		return uuid.Nil
	}
	return q.brandID
}

// Conditions returns the effective equality conditions including the brand
// predicate. Used by tests and by repositories that build raw statements.
func (q Query) Conditions() map[string]interface{} {
	out := make(map[string]interface{}, len(q.conds)+1)
	for k, v := range q.conds {
		out[k] = v
	}
	if q.scoped && !q.override {
		out["brand_id"] = q.brandID
	}
	return out
}

// Apply attaches the query's conditions to a gorm statement
func (q Query) Apply(tx *gorm.DB) *gorm.DB {
	if q.impossible {
		// conjunction of two different brand predicates
		return tx.Where("1 = 0")
	}
	if len(q.conds) > 0 {
		tx = tx.Where(q.conds)
	}
	if q.scoped && !q.override {
		tx = tx.Where("brand_id = ?", q.brandID)
	}
	return tx
}

// Stage is one step of a staged query, gorm's scope function shape
type Stage func(*gorm.DB) *gorm.DB

// ScopePipeline prepends a brand filter stage so no downstream stage ever
// observes another brand's rows. Under admin override the pipeline passes
// through untouched.
func ScopePipeline(stages []Stage, brandID uuid.UUID, adminOverride bool) []Stage {
	if adminOverride {
		return stages
	}
	scoped := make([]Stage, 0, len(stages)+1)
	scoped = append(scoped, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("brand_id = ?", brandID)
	})
	return append(scoped, stages...)
}

// ApplyPipeline runs the stages over a gorm statement in order
func ApplyPipeline(tx *gorm.DB, stages []Stage) *gorm.DB {
	for _, stage := range stages {
		tx = stage(tx)
	}
	return tx
}

// BelongsToTenant authorizes access to a single already-fetched resource,
// used after lookup-by-id where the query could not be pre-scoped. It must
// agree with ScopeQuery: anything this rejects is unreachable through a
// scoped query as well.
func BelongsToTenant(resourceBrandID, brandID uuid.UUID, adminOverride bool) bool {
	if adminOverride {
		return true
	}
	return resourceBrandID != uuid.Nil && resourceBrandID == brandID
}

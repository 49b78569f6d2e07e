package access

import (
	"github.com/google/uuid"

	"github.com/taskplane/taskplane/shared/apperr"
	"github.com/taskplane/taskplane/shared/isolation"
	"github.com/taskplane/taskplane/shared/models"
	"github.com/taskplane/taskplane/shared/tenantctx"
)

// Action is the kind of operation being authorized
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
	// ActionManage covers brand settings and membership administration
	ActionManage Action = "manage"
)

// Resource is anything that belongs to a brand
type Resource interface {
	ResourceBrandID() uuid.UUID
}

// roleAllows is the role matrix consulted after the tenant check passed
func roleAllows(role models.Role, action Action) bool {
	switch action {
	case ActionRead, ActionWrite:
		return role.Valid()
	case ActionDelete:
		return role == models.RoleOwner || role == models.RoleManager
	case ActionManage:
		return role == models.RoleOwner
	}
	return false
}

// Authorize decides whether the caller may perform action on resource. The
// tenant check runs first and its denial is final: a permissive role never
// overrides a cross-brand mismatch. Admin override passes both checks but
// the effective brand stays explicit in the context for auditing.
func Authorize(tc tenantctx.TenantContext, action Action, resource Resource) error {
	if !isolation.BelongsToTenant(resource.ResourceBrandID(), tc.BrandID, tc.AdminOverride) {
		return apperr.New(apperr.CodeResourceOutOfTenant, "resource belongs to another brand")
	}

	if tc.AdminOverride {
		return nil
	}

	if !roleAllows(tc.Role, action) {
		return apperr.Newf(apperr.CodeForbidden, "role %q may not %s this resource", tc.Role, action)
	}

	return nil
}

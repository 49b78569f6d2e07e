package access

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/taskplane/taskplane/shared/apperr"
	"github.com/taskplane/taskplane/shared/models"
	"github.com/taskplane/taskplane/shared/tenantctx"
)

func taskIn(brandID uuid.UUID) *models.Task {
	return &models.Task{ID: uuid.New(), BrandID: brandID, ProjectID: uuid.New(), Title: "task"}
}

func ctxFor(brandID uuid.UUID, role models.Role) tenantctx.TenantContext {
	return tenantctx.TenantContext{UserID: uuid.New(), BrandID: brandID, Role: role}
}

func TestAuthorizeSameBrand(t *testing.T) {
	brandID := uuid.New()
	task := taskIn(brandID)

	require.NoError(t, Authorize(ctxFor(brandID, models.RoleMember), ActionRead, task))
	require.NoError(t, Authorize(ctxFor(brandID, models.RoleMember), ActionWrite, task))
	require.NoError(t, Authorize(ctxFor(brandID, models.RoleManager), ActionDelete, task))
	require.NoError(t, Authorize(ctxFor(brandID, models.RoleOwner), ActionManage, task))
}

func TestAuthorizeRoleMatrix(t *testing.T) {
	brandID := uuid.New()
	task := taskIn(brandID)

	err := Authorize(ctxFor(brandID, models.RoleMember), ActionDelete, task)
	require.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))

	err = Authorize(ctxFor(brandID, models.RoleManager), ActionManage, task)
	require.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))

	// a role not granted by any membership authorizes nothing
	err = Authorize(ctxFor(brandID, ""), ActionRead, task)
	require.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))
}

func TestIsolationBeatsRole(t *testing.T) {
	// an owner in brand A gets no access to brand B's resources; the tenant
	// denial is final regardless of how permissive the role is
	task := taskIn(uuid.New())
	tc := ctxFor(uuid.New(), models.RoleOwner)

	for _, action := range []Action{ActionRead, ActionWrite, ActionDelete, ActionManage} {
		err := Authorize(tc, action, task)
		require.Error(t, err)
		require.Equal(t, apperr.CodeResourceOutOfTenant, apperr.CodeOf(err))
	}
}

func TestAdminOverrideCrossesBrands(t *testing.T) {
	task := taskIn(uuid.New())
	tc := tenantctx.TenantContext{
		UserID:        uuid.New(),
		BrandID:       task.BrandID,
		AdminOverride: true,
	}

	require.NoError(t, Authorize(tc, ActionRead, task))
	require.NoError(t, Authorize(tc, ActionDelete, task))
}

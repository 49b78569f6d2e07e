package tenantctx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/taskplane/taskplane/shared/apperr"
	"github.com/taskplane/taskplane/shared/models"
)

func testIssuer() *Issuer {
	return NewIssuer([]byte("test-secret"), time.Hour)
}

func scopedClaims(globalAdmin bool) *models.CredentialClaims {
	brandID := uuid.New()
	return &models.CredentialClaims{
		UserID:      uuid.New(),
		Email:       "user@example.com",
		BrandID:     &brandID,
		Role:        models.RoleMember,
		GlobalAdmin: globalAdmin,
	}
}

func unscopedClaims(globalAdmin bool) *models.CredentialClaims {
	return &models.CredentialClaims{
		UserID:      uuid.New(),
		Email:       "user@example.com",
		GlobalAdmin: globalAdmin,
	}
}

func TestResolveScopedCredential(t *testing.T) {
	claims := scopedClaims(false)

	tc, err := Resolve(claims, false, uuid.Nil)
	require.NoError(t, err)
	require.Equal(t, claims.UserID, tc.UserID)
	require.Equal(t, *claims.BrandID, tc.BrandID)
	require.Equal(t, models.RoleMember, tc.Role)
	require.False(t, tc.AdminOverride)
}

func TestResolveUnscopedCredentialFails(t *testing.T) {
	_, err := Resolve(unscopedClaims(false), false, uuid.Nil)
	require.Error(t, err)
	require.Equal(t, apperr.CodeUnscopedSession, apperr.CodeOf(err))
}

func TestResolveOverrideRequiresCapability(t *testing.T) {
	_, err := Resolve(scopedClaims(false), true, uuid.New())
	require.Error(t, err)
	require.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))
}

func TestResolveOverrideRequiresExplicitBrand(t *testing.T) {
	_, err := Resolve(unscopedClaims(true), true, uuid.Nil)
	require.Error(t, err)
	require.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))
}

func TestResolveOverrideUsesRequestedBrand(t *testing.T) {
	claims := scopedClaims(true)
	requested := uuid.New()

	tc, err := Resolve(claims, true, requested)
	require.NoError(t, err)
	require.True(t, tc.AdminOverride)
	require.Equal(t, requested, tc.BrandID)
}

func TestResolveAdminWithoutFlagIsNormal(t *testing.T) {
	// capability alone never activates the override
	claims := scopedClaims(true)

	tc, err := Resolve(claims, false, uuid.New())
	require.NoError(t, err)
	require.False(t, tc.AdminOverride)
	require.Equal(t, *claims.BrandID, tc.BrandID)
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	issuer := testIssuer()
	brandID := uuid.New()
	user := models.User{ID: uuid.New(), Email: "user@example.com", GlobalAdmin: true}

	token, issued, err := issuer.Issue(&user, &brandID, models.RoleManager)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	verified, err := issuer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, issued.UserID, verified.UserID)
	require.Equal(t, brandID, *verified.BrandID)
	require.Equal(t, models.RoleManager, verified.Role)
	require.True(t, verified.GlobalAdmin)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	token, _, err := testIssuer().Issue(&models.User{ID: uuid.New()}, nil, "")
	require.NoError(t, err)

	other := NewIssuer([]byte("other-secret"), time.Hour)
	_, err = other.Verify(token)
	require.Error(t, err)
}

func openSwitchDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Brand{}, &models.Membership{}))
	return db
}

func seedBrandWithMember(t *testing.T, db *gorm.DB, status models.MembershipStatus, role models.Role) (*models.User, *models.Brand) {
	t.Helper()
	user := models.User{Email: uuid.New().String() + "@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&user).Error)

	brand := models.Brand{Name: "Acme", Slug: uuid.New().String(), Status: models.BrandStatusActive, OwnerID: user.ID}
	require.NoError(t, db.Create(&brand).Error)

	membership := models.Membership{UserID: user.ID, BrandID: brand.ID, Role: role, Status: status}
	require.NoError(t, db.Create(&membership).Error)

	return &user, &brand
}

func TestSwitchTenantIssuesScopedCredential(t *testing.T) {
	db := openSwitchDB(t)
	issuer := testIssuer()
	user, brand := seedBrandWithMember(t, db, models.MembershipStatusActive, models.RoleManager)

	switcher := NewSwitcher(db, issuer)
	claims := &models.CredentialClaims{UserID: user.ID, Email: user.Email}

	token, newClaims, err := switcher.SwitchTenant(context.Background(), claims, brand.ID)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, brand.ID, *newClaims.BrandID)
	// the role is snapshotted from the membership at switch time
	require.Equal(t, models.RoleManager, newClaims.Role)

	verified, err := issuer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, brand.ID, *verified.BrandID)
}

func TestSwitchTenantPendingMembershipFails(t *testing.T) {
	db := openSwitchDB(t)
	user, brand := seedBrandWithMember(t, db, models.MembershipStatusPending, models.RoleMember)

	switcher := NewSwitcher(db, testIssuer())
	claims := &models.CredentialClaims{UserID: user.ID, Email: user.Email}

	_, _, err := switcher.SwitchTenant(context.Background(), claims, brand.ID)
	require.Error(t, err)
	require.Equal(t, apperr.CodeNotAMember, apperr.CodeOf(err))
}

func TestSwitchTenantNoMembershipFails(t *testing.T) {
	db := openSwitchDB(t)
	_, brand := seedBrandWithMember(t, db, models.MembershipStatusActive, models.RoleMember)

	switcher := NewSwitcher(db, testIssuer())
	stranger := &models.CredentialClaims{UserID: uuid.New(), Email: "stranger@example.com"}

	_, _, err := switcher.SwitchTenant(context.Background(), stranger, brand.ID)
	require.Error(t, err)
	require.Equal(t, apperr.CodeNotAMember, apperr.CodeOf(err))
}

func TestSwitchTenantUnknownBrandFails(t *testing.T) {
	db := openSwitchDB(t)
	switcher := NewSwitcher(db, testIssuer())

	_, _, err := switcher.SwitchTenant(context.Background(), &models.CredentialClaims{UserID: uuid.New()}, uuid.New())
	require.Error(t, err)

	var e *apperr.Error
	require.True(t, errors.As(err, &e))
	require.Equal(t, apperr.CodeNotFound, e.Code)
}

func TestSwitchTenantSuspendedBrandFails(t *testing.T) {
	db := openSwitchDB(t)
	user, brand := seedBrandWithMember(t, db, models.MembershipStatusActive, models.RoleMember)
	require.NoError(t, db.Model(brand).Update("status", models.BrandStatusSuspended).Error)

	switcher := NewSwitcher(db, testIssuer())
	claims := &models.CredentialClaims{UserID: user.ID, Email: user.Email}

	_, _, err := switcher.SwitchTenant(context.Background(), claims, brand.ID)
	require.Error(t, err)
	require.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

package tenantctx

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskplane/taskplane/shared/apperr"
	"github.com/taskplane/taskplane/shared/isolation"
	"github.com/taskplane/taskplane/shared/models"
)

// TenantContext is the immutable per-request binding of a caller to exactly
// one brand. Under admin override BrandID is whatever the caller named
// explicitly; the override removes the filter, not the obligation to say
// which brand is being touched.
type TenantContext struct {
	UserID        uuid.UUID
	BrandID       uuid.UUID
	Role          models.Role
	AdminOverride bool
}

// Resolve derives the TenantContext for one request from verified credential
// claims. overrideRequested is the request's explicit override flag;
// requestedBrand is the brand named by the request, only consulted under
// override.
func Resolve(claims *models.CredentialClaims, overrideRequested bool, requestedBrand uuid.UUID) (TenantContext, error) {
	override, err := isolation.ResolveOverride(claims.GlobalAdmin, overrideRequested)
	if err != nil {
		return TenantContext{}, err
	}

	if override {
		if requestedBrand == uuid.Nil {
			return TenantContext{}, apperr.New(apperr.CodeInvalidInput, "admin override requires an explicit brand id")
		}
		return TenantContext{
			UserID:        claims.UserID,
			BrandID:       requestedBrand,
			Role:          claims.Role,
			AdminOverride: true,
		}, nil
	}

	if !claims.IsScoped() {
		return TenantContext{}, apperr.New(apperr.CodeUnscopedSession, "credential is not scoped to a brand")
	}

	return TenantContext{
		UserID:        claims.UserID,
		BrandID:       *claims.BrandID,
		Role:          claims.Role,
		AdminOverride: false,
	}, nil
}

// Switcher re-scopes credentials when a user moves between brands
type Switcher struct {
	db     *gorm.DB
	issuer *Issuer
}

// NewSwitcher creates a Switcher over the membership store
func NewSwitcher(db *gorm.DB, issuer *Issuer) *Switcher {
	return &Switcher{db: db, issuer: issuer}
}

// SwitchTenant issues a new credential scoped to targetBrand. The caller
// must hold an active membership there; pending invitations do not count.
// The role embedded in the new credential is the membership role at switch
// time.
func (s *Switcher) SwitchTenant(ctx context.Context, claims *models.CredentialClaims, targetBrand uuid.UUID) (string, *models.CredentialClaims, error) {
	var brand models.Brand
	err := s.db.WithContext(ctx).Where("id = ?", targetBrand).First(&brand).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, apperr.New(apperr.CodeNotFound, "brand not found")
		}
		return "", nil, err
	}
	if !brand.IsActive() {
		return "", nil, apperr.New(apperr.CodeNotFound, "brand not available")
	}

	var membership models.Membership
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND brand_id = ? AND status = ?", claims.UserID, targetBrand, models.MembershipStatusActive).
		First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, apperr.New(apperr.CodeNotAMember, "no active membership in target brand")
		}
		return "", nil, err
	}

	user := models.User{ID: claims.UserID, Email: claims.Email, GlobalAdmin: claims.GlobalAdmin}
	return s.issuer.Issue(&user, &targetBrand, membership.Role)
}

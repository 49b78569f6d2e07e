package main

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskplane/taskplane/shared/access"
	"github.com/taskplane/taskplane/shared/audit"
	"github.com/taskplane/taskplane/shared/isolation"
	"github.com/taskplane/taskplane/shared/middleware"
	"github.com/taskplane/taskplane/shared/models"
	"github.com/taskplane/taskplane/shared/utils"
)

// CreateBrandRequest represents the create brand request
type CreateBrandRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug" binding:"required"`
}

// UpdateBrandRequest represents the update brand request
type UpdateBrandRequest struct {
	Name   *string             `json:"name"`
	Status *models.BrandStatus `json:"status"`
}

// handleCreateBrand creates a brand; the caller becomes its owner with an
// active membership in the same transaction.
func handleCreateBrand(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := middleware.GetClaims(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Credential claims not found")
			return
		}

		var req CreateBrandRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		var existing models.Brand
		if err := db.Where("slug = ?", req.Slug).First(&existing).Error; err == nil {
			utils.BadRequestResponse(c, "Slug already exists")
			return
		}

		brand := models.Brand{
			Name:    req.Name,
			Slug:    req.Slug,
			Status:  models.BrandStatusActive,
			OwnerID: claims.UserID,
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&brand).Error; err != nil {
				return err
			}
			membership := models.Membership{
				UserID:  claims.UserID,
				BrandID: brand.ID,
				Role:    models.RoleOwner,
				Status:  models.MembershipStatusActive,
			}
			return tx.Create(&membership).Error
		})
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to create brand")
			return
		}

		utils.CreatedResponse(c, "Brand created successfully", brand)
	}
}

// handleGetBrands lists brands. By default the listing is scoped to the
// caller's active memberships. A global administrator may ask for the
// cross-tenant listing with the explicit override header; the capability
// alone never widens the result, and every override use lands on the audit
// trail.
func handleGetBrands(db *gorm.DB, emitter audit.Emitter) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := middleware.GetClaims(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Credential claims not found")
			return
		}

		overrideRequested := strings.EqualFold(c.GetHeader(middleware.HeaderOverride), "true")
		override, err := isolation.ResolveOverride(claims.GlobalAdmin, overrideRequested)
		if err != nil {
			utils.AppErrorResponse(c, err)
			return
		}

		var brands []models.Brand
		if override {
			if err := db.Find(&brands).Error; err != nil {
				utils.InternalServerErrorResponse(c, "Failed to fetch brands")
				return
			}
			if emitter != nil {
				emitter.Emit(audit.Event{
					Type:     audit.EventOverrideUsed,
					ActorID:  claims.UserID,
					Override: true,
					Detail:   "listed brands across all tenants",
				})
			}
		} else {
			err := db.Joins("JOIN memberships ON memberships.brand_id = brands.id AND memberships.deleted_at IS NULL").
				Where("memberships.user_id = ? AND memberships.status = ?", claims.UserID, models.MembershipStatusActive).
				Find(&brands).Error
			if err != nil {
				utils.InternalServerErrorResponse(c, "Failed to fetch brands")
				return
			}
		}

		utils.OKResponse(c, "Brands retrieved successfully", brands)
	}
}

// loadBrand fetches the brand named by the route and authorizes the action
// against the caller's tenant context. The tenant check runs before any role
// rule, so a cross-brand id fails RESOURCE_OUT_OF_TENANT regardless of role.
func loadBrand(c *gin.Context, db *gorm.DB, action access.Action) (*models.Brand, bool) {
	tc, err := middleware.GetTenantContext(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "Tenant context not found")
		return nil, false
	}

	brandID, err := uuid.Parse(c.Param("brand_id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid brand id")
		return nil, false
	}

	var brand models.Brand
	if err := db.Where("id = ?", brandID).First(&brand).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFoundResponse(c, "Brand not found")
		} else {
			utils.InternalServerErrorResponse(c, "Failed to fetch brand")
		}
		return nil, false
	}

	if err := access.Authorize(tc, action, &brand); err != nil {
		utils.AppErrorResponse(c, err)
		return nil, false
	}

	return &brand, true
}

// handleGetBrand returns one brand
func handleGetBrand(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		brand, ok := loadBrand(c, db, access.ActionRead)
		if !ok {
			return
		}
		utils.OKResponse(c, "Brand retrieved successfully", brand)
	}
}

// handleUpdateBrand updates brand settings
func handleUpdateBrand(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		brand, ok := loadBrand(c, db, access.ActionManage)
		if !ok {
			return
		}

		var req UpdateBrandRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		if req.Name != nil {
			brand.Name = *req.Name
		}
		if req.Status != nil {
			switch *req.Status {
			case models.BrandStatusActive, models.BrandStatusSuspended:
				brand.Status = *req.Status
			default:
				utils.BadRequestResponse(c, "Status must be 'active' or 'suspended'")
				return
			}
		}

		if err := db.Save(brand).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to update brand")
			return
		}

		utils.OKResponse(c, "Brand updated successfully", brand)
	}
}

// handleDeleteBrand soft-deletes the brand and everything it owns. The
// cascade runs in one transaction so no orphan stays reachable under any
// brand's filter.
func handleDeleteBrand(db *gorm.DB, emitter audit.Emitter) gin.HandlerFunc {
	return func(c *gin.Context) {
		brand, ok := loadBrand(c, db, access.ActionManage)
		if !ok {
			return
		}

		tc, err := middleware.GetTenantContext(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Tenant context not found")
			return
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(brand).Update("status", models.BrandStatusDeleted).Error; err != nil {
				return err
			}
			if err := tx.Where("brand_id = ?", brand.ID).Delete(&models.TaskDependency{}).Error; err != nil {
				return err
			}
			if err := tx.Where("brand_id = ?", brand.ID).Delete(&models.Task{}).Error; err != nil {
				return err
			}
			if err := tx.Where("brand_id = ?", brand.ID).Delete(&models.Project{}).Error; err != nil {
				return err
			}
			if err := tx.Where("brand_id = ?", brand.ID).Delete(&models.Membership{}).Error; err != nil {
				return err
			}
			return tx.Delete(brand).Error
		})
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to delete brand")
			return
		}

		if emitter != nil {
			emitter.Emit(audit.Event{
				Type:     audit.EventBrandDeleted,
				ActorID:  tc.UserID,
				BrandID:  brand.ID,
				Override: tc.AdminOverride,
				Detail:   "brand " + brand.Slug + " soft-deleted with cascade",
			})
		}

		utils.OKResponse(c, "Brand deleted successfully", nil)
	}
}

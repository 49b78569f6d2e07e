package main

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskplane/taskplane/shared/access"
	"github.com/taskplane/taskplane/shared/audit"
	"github.com/taskplane/taskplane/shared/middleware"
	"github.com/taskplane/taskplane/shared/models"
	"github.com/taskplane/taskplane/shared/utils"
)

// InviteRequest represents a membership invitation
type InviteRequest struct {
	Email string      `json:"email" binding:"required,email"`
	Role  models.Role `json:"role" binding:"required,oneof=manager member"`
}

// handleInviteMember creates a pending membership for the invited user.
// A user can hold at most one pending invitation per brand; inviting an
// active member is rejected. A declined invitation may be re-issued.
func handleInviteMember(db *gorm.DB, emitter audit.Emitter) gin.HandlerFunc {
	return func(c *gin.Context) {
		brand, ok := loadBrand(c, db, access.ActionManage)
		if !ok {
			return
		}
		tc, _ := middleware.GetTenantContext(c)

		var req InviteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format. Role must be 'manager' or 'member'")
			return
		}

		var invitee models.User
		if err := db.Where("email = ?", req.Email).First(&invitee).Error; err != nil {
			utils.NotFoundResponse(c, "No registered user with that email")
			return
		}

		var existing models.Membership
		err := db.Where("user_id = ? AND brand_id = ?", invitee.ID, brand.ID).First(&existing).Error
		switch {
		case err == nil && existing.Status == models.MembershipStatusPending:
			utils.BadRequestResponse(c, "User already has a pending invitation")
			return
		case err == nil && existing.Status == models.MembershipStatusActive:
			utils.BadRequestResponse(c, "User is already a member")
			return
		case err == nil:
			// declined earlier; re-issue
			existing.Role = req.Role
			existing.Status = models.MembershipStatusPending
			if err := db.Save(&existing).Error; err != nil {
				utils.InternalServerErrorResponse(c, "Failed to re-invite user")
				return
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			existing = models.Membership{
				UserID:  invitee.ID,
				BrandID: brand.ID,
				Role:    req.Role,
				Status:  models.MembershipStatusPending,
			}
			if err := db.Create(&existing).Error; err != nil {
				utils.InternalServerErrorResponse(c, "Failed to invite user")
				return
			}
		default:
			utils.InternalServerErrorResponse(c, "Failed to look up membership")
			return
		}

		if emitter != nil {
			emitter.Emit(audit.Event{
				Type:     audit.EventMembershipChanged,
				ActorID:  tc.UserID,
				BrandID:  brand.ID,
				Override: tc.AdminOverride,
				Detail:   "invited " + invitee.Email + " as " + string(req.Role),
			})
		}

		utils.CreatedResponse(c, "Invitation sent", existing)
	}
}

// handleAcceptInvite flips the caller's pending membership to active.
// Accepting an already-active membership is a no-op, not an error.
func handleAcceptInvite(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := middleware.GetClaims(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Credential claims not found")
			return
		}

		brandID, err := uuid.Parse(c.Param("brand_id"))
		if err != nil {
			utils.BadRequestResponse(c, "Invalid brand id")
			return
		}

		var membership models.Membership
		err = db.Where("user_id = ? AND brand_id = ?", claims.UserID, brandID).First(&membership).Error
		if err != nil {
			utils.NotFoundResponse(c, "No invitation for this brand")
			return
		}

		switch membership.Status {
		case models.MembershipStatusActive:
			utils.OKResponse(c, "Membership already active", membership)
			return
		case models.MembershipStatusPending:
			membership.Status = models.MembershipStatusActive
			if err := db.Save(&membership).Error; err != nil {
				utils.InternalServerErrorResponse(c, "Failed to accept invitation")
				return
			}
			utils.OKResponse(c, "Invitation accepted", membership)
		default:
			utils.NotFoundResponse(c, "No pending invitation for this brand")
		}
	}
}

// handleDeclineInvite marks the caller's pending invitation declined
func handleDeclineInvite(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := middleware.GetClaims(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Credential claims not found")
			return
		}

		brandID, err := uuid.Parse(c.Param("brand_id"))
		if err != nil {
			utils.BadRequestResponse(c, "Invalid brand id")
			return
		}

		res := db.Model(&models.Membership{}).
			Where("user_id = ? AND brand_id = ? AND status = ?", claims.UserID, brandID, models.MembershipStatusPending).
			Update("status", models.MembershipStatusDeclined)
		if res.Error != nil {
			utils.InternalServerErrorResponse(c, "Failed to decline invitation")
			return
		}
		if res.RowsAffected == 0 {
			utils.NotFoundResponse(c, "No pending invitation for this brand")
			return
		}

		utils.OKResponse(c, "Invitation declined", nil)
	}
}

// handleGetMembers lists the brand's memberships
func handleGetMembers(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		brand, ok := loadBrand(c, db, access.ActionRead)
		if !ok {
			return
		}

		var memberships []models.Membership
		if err := db.Preload("User").Where("brand_id = ?", brand.ID).Find(&memberships).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to fetch members")
			return
		}

		utils.OKResponse(c, "Members retrieved successfully", memberships)
	}
}

// handleRemoveMember removes a user from the brand
func handleRemoveMember(db *gorm.DB, emitter audit.Emitter) gin.HandlerFunc {
	return func(c *gin.Context) {
		brand, ok := loadBrand(c, db, access.ActionManage)
		if !ok {
			return
		}
		tc, _ := middleware.GetTenantContext(c)

		userID, err := uuid.Parse(c.Param("user_id"))
		if err != nil {
			utils.BadRequestResponse(c, "Invalid user id")
			return
		}

		if userID == brand.OwnerID {
			utils.BadRequestResponse(c, "The brand owner cannot be removed")
			return
		}

		res := db.Where("user_id = ? AND brand_id = ?", userID, brand.ID).Delete(&models.Membership{})
		if res.Error != nil {
			utils.InternalServerErrorResponse(c, "Failed to remove member")
			return
		}
		if res.RowsAffected == 0 {
			utils.NotFoundResponse(c, "User is not a member of this brand")
			return
		}

		if emitter != nil {
			emitter.Emit(audit.Event{
				Type:     audit.EventMembershipChanged,
				ActorID:  tc.UserID,
				BrandID:  brand.ID,
				Override: tc.AdminOverride,
				Detail:   "removed member " + userID.String(),
			})
		}

		utils.OKResponse(c, "Member removed", nil)
	}
}

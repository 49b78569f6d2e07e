package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/taskplane/taskplane/shared/audit"
	"github.com/taskplane/taskplane/shared/middleware"
	"github.com/taskplane/taskplane/shared/models"
	"github.com/taskplane/taskplane/shared/tenantctx"
	"github.com/taskplane/taskplane/shared/utils"
)

// RegisterRequest represents the registration request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest represents the login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// handleRegister creates a new user account
func handleRegister(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		var existing models.User
		if err := db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
			utils.BadRequestResponse(c, "Email already registered")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to hash password")
			return
		}

		user := models.User{
			Email:        req.Email,
			PasswordHash: string(hash),
		}
		if err := db.Create(&user).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to create user")
			return
		}

		utils.CreatedResponse(c, "User registered successfully", map[string]interface{}{
			"id":    user.ID,
			"email": user.Email,
		})
	}
}

// handleLogin authenticates a user and issues a tenant-unscoped credential.
// The caller switches into a brand afterwards to obtain a scoped one.
func handleLogin(db *gorm.DB, issuer *tenantctx.Issuer, sessionTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		var user models.User
		if err := db.Where("email = ?", req.Email).First(&user).Error; err != nil {
			utils.UnauthorizedResponse(c, "Invalid credentials")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			utils.UnauthorizedResponse(c, "Invalid credentials")
			return
		}

		token, claims, err := issuer.Issue(&user, nil, "")
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to issue credential")
			return
		}

		profile := models.UserProfile{
			UserID:      user.ID,
			Email:       user.Email,
			GlobalAdmin: user.GlobalAdmin,
		}
		session, err := utils.CreateTokenSession(token, profile, sessionTTL)
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to create session")
			return
		}

		go func() {
			now := time.Now()
			db.Model(&models.User{}).Where("id = ?", user.ID).Update("last_login_at", now)
		}()

		var memberships []models.Membership
		db.Preload("Brand").
			Where("user_id = ? AND status = ?", user.ID, models.MembershipStatusActive).
			Find(&memberships)

		utils.OKResponse(c, "Login successful", map[string]interface{}{
			"access_token": token,
			"token_type":   "Bearer",
			"expires_at":   claims.ExpiresAt.Time,
			"session_id":   session.SessionID,
			"user": map[string]interface{}{
				"id":           user.ID,
				"email":        user.Email,
				"global_admin": user.GlobalAdmin,
			},
			"memberships": memberships,
		})
	}
}

// handleSwitchBrand re-scopes the session to the target brand. The old
// credential stays signed but its session is revoked; the returned token is
// the one the client must use from here on.
func handleSwitchBrand(db *gorm.DB, issuer *tenantctx.Issuer, emitter audit.Emitter, sessionTTL time.Duration) gin.HandlerFunc {
	switcher := tenantctx.NewSwitcher(db, issuer)

	return func(c *gin.Context) {
		claims, err := middleware.GetClaims(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Credential claims not found")
			return
		}

		targetBrand, err := uuid.Parse(c.Param("brand_id"))
		if err != nil {
			utils.BadRequestResponse(c, "Invalid brand id")
			return
		}

		token, newClaims, err := switcher.SwitchTenant(c.Request.Context(), claims, targetBrand)
		if err != nil {
			utils.AppErrorResponse(c, err)
			return
		}

		profile := models.UserProfile{
			UserID:      newClaims.UserID,
			Email:       newClaims.Email,
			BrandID:     newClaims.BrandID,
			Role:        string(newClaims.Role),
			GlobalAdmin: newClaims.GlobalAdmin,
		}
		session, err := utils.CreateTokenSession(token, profile, sessionTTL)
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to create session")
			return
		}

		if old := middleware.GetBearer(c); old != "" {
			if err := utils.RevokeTokenSession(old); err != nil {
				logrus.WithField("user_id", claims.UserID).Warn("failed to revoke previous session")
			}
		}

		if emitter != nil {
			emitter.Emit(audit.Event{
				Type:    audit.EventTenantSwitched,
				ActorID: newClaims.UserID,
				BrandID: targetBrand,
				Detail:  "credential re-scoped, role " + string(newClaims.Role),
			})
		}

		utils.OKResponse(c, "Switched brand", map[string]interface{}{
			"access_token": token,
			"token_type":   "Bearer",
			"expires_at":   newClaims.ExpiresAt.Time,
			"session_id":   session.SessionID,
			"brand_id":     targetBrand,
			"role":         newClaims.Role,
		})
	}
}

// handleLogout revokes the current session
func handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := middleware.GetBearer(c); token != "" {
			_ = utils.RevokeTokenSession(token)
		}
		utils.OKResponse(c, "Logged out", nil)
	}
}

// handleGetMe returns the caller's profile and active memberships
func handleGetMe(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := middleware.GetClaims(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Credential claims not found")
			return
		}

		var memberships []models.Membership
		db.Preload("Brand").
			Where("user_id = ? AND status = ?", claims.UserID, models.MembershipStatusActive).
			Find(&memberships)

		utils.OKResponse(c, "Profile retrieved", map[string]interface{}{
			"id":           claims.UserID,
			"email":        claims.Email,
			"brand_id":     claims.BrandID,
			"role":         claims.Role,
			"global_admin": claims.GlobalAdmin,
			"memberships":  memberships,
		})
	}
}

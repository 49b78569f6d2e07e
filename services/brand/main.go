package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/taskplane/taskplane/shared/audit"
	"github.com/taskplane/taskplane/shared/config"
	"github.com/taskplane/taskplane/shared/middleware"
	"github.com/taskplane/taskplane/shared/models"
	"github.com/taskplane/taskplane/shared/tenantctx"
	"github.com/taskplane/taskplane/shared/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	if err := utils.InitRedis(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer utils.CloseRedis()

	db, err := config.ConnectDatabase()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := db.AutoMigrate(&models.Brand{}, &models.Membership{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	issuer, err := tenantctx.NewIssuerFromEnv()
	if err != nil {
		log.Fatal("Failed to initialize credential issuer:", err)
	}

	producer := audit.NewProducer(config.GetEnv("KAFKA_BROKER", "localhost:9092"))
	defer producer.Close()

	authMiddleware := middleware.NewAuthMiddleware(issuer, producer)

	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Brand service is healthy", nil)
	})

	brands := router.Group("/brands")
	brands.Use(authMiddleware.RequireAuth())
	{
		// creating a brand and handling one's own invitations work from an
		// unscoped credential
		brands.POST("/", handleCreateBrand(db))
		brands.POST("/:brand_id/members/accept", handleAcceptInvite(db))
		brands.POST("/:brand_id/members/decline", handleDeclineInvite(db))

		// scoped to the caller's memberships unless the admin override is
		// requested explicitly
		brands.GET("/", handleGetBrands(db, producer))

		// brand-scoped routes
		scoped := brands.Group("")
		scoped.Use(authMiddleware.RequireTenant())
		{
			scoped.GET("/:brand_id", handleGetBrand(db))
			scoped.PUT("/:brand_id", authMiddleware.RequireRole(models.RoleOwner), handleUpdateBrand(db))
			scoped.DELETE("/:brand_id", authMiddleware.RequireRole(models.RoleOwner), handleDeleteBrand(db, producer))
			scoped.GET("/:brand_id/members", handleGetMembers(db))
			scoped.POST("/:brand_id/members", authMiddleware.RequireRole(models.RoleOwner), handleInviteMember(db, producer))
			scoped.DELETE("/:brand_id/members/:user_id", authMiddleware.RequireRole(models.RoleOwner), handleRemoveMember(db, producer))
		}
	}

	port := os.Getenv("BRAND_SERVICE_PORT")
	if port == "" {
		port = "8002"
	}

	logrus.Infof("Brand service starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start brand service:", err)
	}
}

package main

import (
	"log"
	"os"
	"time"

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

	if err := db.AutoMigrate(&models.User{}, &models.Brand{}, &models.Membership{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	issuer, err := tenantctx.NewIssuerFromEnv()
	if err != nil {
		log.Fatal("Failed to initialize credential issuer:", err)
	}

	producer := audit.NewProducer(config.GetEnv("KAFKA_BROKER", "localhost:9092"))
	defer producer.Close()

	authMiddleware := middleware.NewAuthMiddleware(issuer, producer)
	sessionTTL := time.Hour

	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Auth service is healthy", nil)
	})

	auth := router.Group("/auth")
	{
		auth.POST("/register", handleRegister(db))
		auth.POST("/login", handleLogin(db, issuer, sessionTTL))

		authed := auth.Group("")
		authed.Use(authMiddleware.RequireAuth())
		{
			authed.POST("/switch/:brand_id", handleSwitchBrand(db, issuer, producer, sessionTTL))
			authed.POST("/logout", handleLogout())
			authed.GET("/me", handleGetMe(db))
		}
	}

	port := os.Getenv("AUTH_SERVICE_PORT")
	if port == "" {
		port = "8001"
	}

	logrus.Infof("Auth service starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start auth service:", err)
	}
}

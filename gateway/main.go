package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/taskplane/taskplane/shared/middleware"
	"github.com/taskplane/taskplane/shared/tenantctx"
	"github.com/taskplane/taskplane/shared/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	if err := utils.InitRedis(); err != nil {
		logrus.Warnf("Failed to connect to Redis, session checks disabled: %v", err)
	}

	issuer, err := tenantctx.NewIssuerFromEnv()
	if err != nil {
		log.Fatal("Failed to initialize credential issuer:", err)
	}

	// the gateway only gates requests; override auditing happens in the
	// services that resolve the tenant context
	authMiddleware := middleware.NewAuthMiddleware(issuer, nil)

	serviceClients := &ServiceClients{
		AuthService:  NewServiceClient(os.Getenv("AUTH_SERVICE_URL")),
		BrandService: NewServiceClient(os.Getenv("BRAND_SERVICE_URL")),
		TaskService:  NewServiceClient(os.Getenv("TASK_SERVICE_URL")),
	}

	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Brand-ID, X-Admin-Override")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "API Gateway is healthy", nil)
	})

	router.GET("/status", func(c *gin.Context) {
		utils.OKResponse(c, "Service status", serviceClients.GetServiceStatus())
	})

	auth := router.Group("/auth")
	{
		auth.POST("/register", serviceClients.AuthService.ProxyRequest)
		auth.POST("/login", serviceClients.AuthService.ProxyRequest)
		auth.POST("/switch/:brand_id", authMiddleware.RequireAuth(), serviceClients.AuthService.ProxyRequest)
		auth.POST("/logout", authMiddleware.RequireAuth(), serviceClients.AuthService.ProxyRequest)
		auth.GET("/me", authMiddleware.RequireAuth(), serviceClients.AuthService.ProxyRequest)
	}

	brands := router.Group("/brands")
	brands.Use(authMiddleware.RequireAuth())
	{
		brands.POST("/", serviceClients.BrandService.ProxyRequest)
		brands.GET("/", serviceClients.BrandService.ProxyRequest)
		brands.Any("/:brand_id", serviceClients.BrandService.ProxyRequest)
		brands.Any("/:brand_id/members", serviceClients.BrandService.ProxyRequest)
		brands.Any("/:brand_id/members/:user_id", serviceClients.BrandService.ProxyRequest)
		brands.POST("/:brand_id/members/accept", serviceClients.BrandService.ProxyRequest)
		brands.POST("/:brand_id/members/decline", serviceClients.BrandService.ProxyRequest)
	}

	projects := router.Group("/projects")
	projects.Use(authMiddleware.RequireAuth())
	{
		projects.Any("/", serviceClients.TaskService.ProxyRequest)
	}

	tasks := router.Group("/tasks")
	tasks.Use(authMiddleware.RequireAuth())
	{
		tasks.Any("/", serviceClients.TaskService.ProxyRequest)
		tasks.GET("/stats", serviceClients.TaskService.ProxyRequest)
		tasks.Any("/:id", serviceClients.TaskService.ProxyRequest)
		tasks.Any("/:id/dependencies", serviceClients.TaskService.ProxyRequest)
	}

	port := os.Getenv("API_GATEWAY_PORT")
	if port == "" {
		port = "8080"
	}

	logrus.Infof("API Gateway starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start API Gateway:", err)
	}
}

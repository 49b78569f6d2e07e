package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/taskplane/taskplane/shared/audit"
	"github.com/taskplane/taskplane/shared/config"
	"github.com/taskplane/taskplane/shared/graph"
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

	if err := db.AutoMigrate(&models.Project{}, &models.Task{}, &models.TaskDependency{}, &models.GraphRevision{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	issuer, err := tenantctx.NewIssuerFromEnv()
	if err != nil {
		log.Fatal("Failed to initialize credential issuer:", err)
	}

	producer := audit.NewProducer(config.GetEnv("KAFKA_BROKER", "localhost:9092"))
	defer producer.Close()

	authMiddleware := middleware.NewAuthMiddleware(issuer, producer)
	guard := graph.NewGuard(db, producer)

	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Task service is healthy", nil)
	})

	projects := router.Group("/projects")
	projects.Use(authMiddleware.RequireAuth(), authMiddleware.RequireTenant())
	{
		projects.POST("/", handleCreateProject(db))
		projects.GET("/", handleGetProjects(db))
	}

	tasks := router.Group("/tasks")
	tasks.Use(authMiddleware.RequireAuth(), authMiddleware.RequireTenant())
	{
		tasks.POST("/", handleCreateTask(db))
		tasks.GET("/", handleGetTasks(db))
		tasks.GET("/stats", handleTaskStats(db))
		tasks.GET("/:id", handleGetTask(db))
		tasks.PUT("/:id", handleUpdateTask(db))
		tasks.DELETE("/:id", handleDeleteTask(db))

		tasks.GET("/:id/dependencies", handleGetDependencies(guard))
		tasks.PUT("/:id/dependencies", ensureWriteAccess(db), handleSetDependencies(guard))
	}

	port := os.Getenv("TASK_SERVICE_PORT")
	if port == "" {
		port = "8003"
	}

	logrus.Infof("Task service starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start task service:", err)
	}
}

package main

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskplane/taskplane/shared/access"
	"github.com/taskplane/taskplane/shared/apperr"
	"github.com/taskplane/taskplane/shared/isolation"
	"github.com/taskplane/taskplane/shared/middleware"
	"github.com/taskplane/taskplane/shared/models"
	"github.com/taskplane/taskplane/shared/utils"
)

// CreateProjectRequest represents the create project request
type CreateProjectRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateTaskRequest represents the create task request
type CreateTaskRequest struct {
	ProjectID   string  `json:"project_id" binding:"required"`
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	AssigneeID  *string `json:"assignee_id"`
}

// UpdateTaskRequest represents the update task request
type UpdateTaskRequest struct {
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Status      *models.TaskStatus `json:"status"`
	AssigneeID  *string            `json:"assignee_id"`
}

// handleCreateProject creates a project in the caller's brand
func handleCreateProject(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, err := middleware.GetTenantContext(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Tenant context not found")
			return
		}

		var req CreateProjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		project := models.Project{BrandID: tc.BrandID, Name: req.Name}
		if err := access.Authorize(tc, access.ActionWrite, &project); err != nil {
			utils.AppErrorResponse(c, err)
			return
		}

		if err := db.Create(&project).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to create project")
			return
		}

		utils.CreatedResponse(c, "Project created successfully", project)
	}
}

// handleGetProjects lists the brand's projects through a scoped query
func handleGetProjects(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, err := middleware.GetTenantContext(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Tenant context not found")
			return
		}

		q := isolation.ScopeQuery(isolation.NewQuery(nil), tc.BrandID, tc.AdminOverride)

		var projects []models.Project
		if err := q.Apply(db).Order("created_at").Find(&projects).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to fetch projects")
			return
		}

		utils.OKResponse(c, "Projects retrieved successfully", projects)
	}
}

// handleCreateTask creates a task within a project of the caller's brand
func handleCreateTask(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, err := middleware.GetTenantContext(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Tenant context not found")
			return
		}

		var req CreateTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		projectID, err := uuid.Parse(req.ProjectID)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid project id")
			return
		}

		// the project must resolve inside the caller's brand
		pq := isolation.ScopeQuery(isolation.NewQuery(map[string]interface{}{"id": projectID}), tc.BrandID, tc.AdminOverride)
		var project models.Project
		if err := pq.Apply(db).First(&project).Error; err != nil {
			utils.NotFoundResponse(c, "Project not found")
			return
		}

		task := models.Task{
			BrandID:     project.BrandID,
			ProjectID:   project.ID,
			Title:       req.Title,
			Description: req.Description,
			Status:      models.TaskStatusPending,
		}
		if req.AssigneeID != nil {
			assigneeID, err := uuid.Parse(*req.AssigneeID)
			if err != nil {
				utils.BadRequestResponse(c, "Invalid assignee id")
				return
			}
			task.AssigneeID = &assigneeID
		}

		if err := access.Authorize(tc, access.ActionWrite, &task); err != nil {
			utils.AppErrorResponse(c, err)
			return
		}

		if err := db.Create(&task).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to create task")
			return
		}

		utils.CreatedResponse(c, "Task created successfully", task)
	}
}

// handleGetTasks lists tasks with optional project/status filters, always
// through a scoped query
func handleGetTasks(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, err := middleware.GetTenantContext(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Tenant context not found")
			return
		}

		conds := map[string]interface{}{}
		if projectID := c.Query("project_id"); projectID != "" {
			id, err := uuid.Parse(projectID)
			if err != nil {
				utils.BadRequestResponse(c, "Invalid project id")
				return
			}
			conds["project_id"] = id
		}
		if status := c.Query("status"); status != "" {
			conds["status"] = status
		}

		q := isolation.ScopeQuery(isolation.NewQuery(conds), tc.BrandID, tc.AdminOverride)

		var tasks []models.Task
		if err := q.Apply(db).Order("created_at").Find(&tasks).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to fetch tasks")
			return
		}

		utils.OKResponse(c, "Tasks retrieved successfully", tasks)
	}
}

// loadTask fetches one task by id and authorizes the action. Lookup by id
// cannot always be pre-scoped, so the belongs-to check inside Authorize is
// what rejects cross-brand access.
func loadTask(c *gin.Context, db *gorm.DB, action access.Action) (*models.Task, bool) {
	tc, err := middleware.GetTenantContext(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "Tenant context not found")
		return nil, false
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid task id")
		return nil, false
	}

	var task models.Task
	if err := db.Where("id = ?", taskID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFoundResponse(c, "Task not found")
		} else {
			utils.InternalServerErrorResponse(c, "Failed to fetch task")
		}
		return nil, false
	}

	if err := access.Authorize(tc, action, &task); err != nil {
		utils.AppErrorResponse(c, err)
		return nil, false
	}

	return &task, true
}

// handleGetTask returns one task
func handleGetTask(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		task, ok := loadTask(c, db, access.ActionRead)
		if !ok {
			return
		}
		utils.OKResponse(c, "Task retrieved successfully", task)
	}
}

// handleUpdateTask updates task fields. The version column guards against a
// concurrent edit invalidating what this write read.
func handleUpdateTask(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		task, ok := loadTask(c, db, access.ActionWrite)
		if !ok {
			return
		}

		var req UpdateTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		updates := map[string]interface{}{}
		if req.Title != nil {
			updates["title"] = *req.Title
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.Status != nil {
			updates["status"] = *req.Status
		}
		if req.AssigneeID != nil {
			assigneeID, err := uuid.Parse(*req.AssigneeID)
			if err != nil {
				utils.BadRequestResponse(c, "Invalid assignee id")
				return
			}
			updates["assignee_id"] = assigneeID
		}

		updated, err := applyTaskUpdate(db, task, updates)
		if err != nil {
			utils.AppErrorResponse(c, err)
			return
		}

		utils.OKResponse(c, "Task updated successfully", updated)
	}
}

// applyTaskUpdate commits updates against the version the task was read at.
// A lost race triggers one retry with a fresh read before CONFLICT surfaces,
// matching how dependency writes behave.
func applyTaskUpdate(db *gorm.DB, task *models.Task, updates map[string]interface{}) (*models.Task, error) {
	for attempt := 0; attempt < 2; attempt++ {
		updates["version"] = task.Version + 1
		res := db.Model(&models.Task{}).
			Where("id = ? AND version = ?", task.ID, task.Version).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}

		if res.RowsAffected > 0 {
			var updated models.Task
			if err := db.Where("id = ?", task.ID).First(&updated).Error; err != nil {
				return nil, err
			}
			return &updated, nil
		}

		var fresh models.Task
		if err := db.Where("id = ?", task.ID).First(&fresh).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.New(apperr.CodeNotFound, "task not found").WithDetail(task.ID.String())
			}
			return nil, err
		}
		task = &fresh
	}

	return nil, apperr.New(apperr.CodeConflict, "task was modified concurrently, retry the request")
}

// handleDeleteTask soft-deletes a task and removes every edge touching it
func handleDeleteTask(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		task, ok := loadTask(c, db, access.ActionDelete)
		if !ok {
			return
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("task_id = ? OR depends_on_id = ?", task.ID, task.ID).
				Delete(&models.TaskDependency{}).Error; err != nil {
				return err
			}
			return tx.Delete(task).Error
		})
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to delete task")
			return
		}

		utils.OKResponse(c, "Task deleted successfully", nil)
	}
}

// TaskStatusCount is one row of the per-status aggregation
type TaskStatusCount struct {
	Status models.TaskStatus `json:"status"`
	Count  int64             `json:"count"`
}

// handleTaskStats aggregates task counts per status. The brand filter is
// prepended to the pipeline so no later stage sees foreign rows.
func handleTaskStats(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, err := middleware.GetTenantContext(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Tenant context not found")
			return
		}

		stages := []isolation.Stage{}
		if projectID := c.Query("project_id"); projectID != "" {
			id, err := uuid.Parse(projectID)
			if err != nil {
				utils.BadRequestResponse(c, "Invalid project id")
				return
			}
			stages = append(stages, func(tx *gorm.DB) *gorm.DB {
				return tx.Where("project_id = ?", id)
			})
		}
		stages = append(stages, func(tx *gorm.DB) *gorm.DB {
			return tx.Select("status, count(*) as count").Group("status")
		})

		scoped := isolation.ScopePipeline(stages, tc.BrandID, tc.AdminOverride)

		var counts []TaskStatusCount
		tx := isolation.ApplyPipeline(db.Model(&models.Task{}), scoped)
		if err := tx.Find(&counts).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to aggregate tasks")
			return
		}

		utils.OKResponse(c, "Task stats retrieved successfully", counts)
	}
}

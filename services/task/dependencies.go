package main

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskplane/taskplane/shared/access"
	"github.com/taskplane/taskplane/shared/graph"
	"github.com/taskplane/taskplane/shared/middleware"
	"github.com/taskplane/taskplane/shared/utils"
)

// SetDependenciesRequest carries the full replacement edge set. An empty
// list clears all dependencies of the task.
type SetDependenciesRequest struct {
	Dependencies []string `json:"dependencies"`
}

// handleSetDependencies replaces a task's depends-on set through the graph
// guard, which enforces self-reference and acyclicity rules before anything
// is written.
func handleSetDependencies(guard *graph.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, err := middleware.GetTenantContext(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Tenant context not found")
			return
		}

		taskID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			utils.BadRequestResponse(c, "Invalid task id")
			return
		}

		var req SetDependenciesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		committed, err := guard.SetDependencies(c.Request.Context(), tc, taskID, req.Dependencies)
		if err != nil {
			utils.AppErrorResponse(c, err)
			return
		}

		utils.OKResponse(c, "Dependencies updated", map[string]interface{}{
			"task_id":      taskID,
			"dependencies": committed,
		})
	}
}

// handleGetDependencies returns the resolved prerequisite tasks in stored
// order, for "blocked by" display
func handleGetDependencies(guard *graph.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, err := middleware.GetTenantContext(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Tenant context not found")
			return
		}

		taskID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			utils.BadRequestResponse(c, "Invalid task id")
			return
		}

		deps, err := guard.GetDependencies(c.Request.Context(), tc, taskID)
		if err != nil {
			utils.AppErrorResponse(c, err)
			return
		}

		utils.OKResponse(c, "Dependencies retrieved", deps)
	}
}

// ensureWriteAccess pre-checks write access on the task before the guard
// runs, so role denials surface as FORBIDDEN rather than a graph error
func ensureWriteAccess(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := loadTask(c, db, access.ActionWrite); !ok {
			c.Abort()
			return
		}
		c.Next()
	}
}

package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/catalogmirror/internal/tasks"
)

// TasksController handles task queue endpoints.
type TasksController struct {
	client TaskStatuser
}

// NewTasksController creates a new TasksController.
func NewTasksController(client TaskStatuser) *TasksController {
	return &TasksController{client: client}
}

// GetTaskStatus handles GET /api/tasks/:id
// Returns the status of a queued phase request.
func (tc *TasksController) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("id")
	if taskID == "" {
		respondBadRequest(c, "task ID is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := tc.client.Status(ctx, taskID)
	if err != nil {
		respondInternalError(c, err, "task status")
		return
	}

	statusStr := tasks.StatusString(status)
	code := http.StatusOK
	if statusStr == "not_found" {
		code = http.StatusNotFound
	}

	c.JSON(code, gin.H{
		"id":     taskID,
		"status": statusStr,
	})
}

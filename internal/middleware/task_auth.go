package middleware

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskboard/internal/constants"
	apierrors "github.com/yukikurage/taskboard/internal/errors"
	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/services"
	"go.uber.org/zap"
)

// TaskLoader finds a task by id.
type TaskLoader interface {
	GetTask(id uint64) (*models.Task, error)
}

// LoadTask loads the task named by the :id parameter. A missing task is
// reported as 404 before any permission is checked.
func LoadTask(loader TaskLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			apierrors.NotFound(c, "Task not found")
			return
		}

		task, err := loader.GetTask(taskID)
		if err != nil {
			if errors.Is(err, services.ErrTaskNotFound) {
				apierrors.NotFound(c, "Task not found")
				return
			}
			zap.L().Error("failed to load task", zap.Uint64("task_id", taskID), zap.Error(err))
			apierrors.InternalError(c, "")
			return
		}

		c.Set(constants.ContextKeyTask, task)
		c.Next()
	}
}

// GetTask returns the task loaded by LoadTask
func GetTask(c *gin.Context) *models.Task {
	task, _ := c.Get(constants.ContextKeyTask)
	t, _ := task.(*models.Task)
	return t
}

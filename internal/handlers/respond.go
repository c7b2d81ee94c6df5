package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/taskboard/internal/errors"
	"github.com/yukikurage/taskboard/internal/middleware"
	"github.com/yukikurage/taskboard/internal/services"
	"github.com/yukikurage/taskboard/internal/validation"
	"go.uber.org/zap"
)

// respondServiceError maps service errors onto API errors. A denied
// action is 401 for anonymous requests and 403 otherwise.
func respondServiceError(c *gin.Context, err error) {
	if verr, ok := validation.As(err); ok {
		apierrors.UnprocessableEntity(c, verr)
		return
	}

	switch {
	case errors.Is(err, services.ErrNotPermitted):
		if middleware.GetActor(c) == nil {
			apierrors.Unauthorized(c, "")
			return
		}
		apierrors.Forbidden(c, "You are not allowed to perform this action")
	case errors.Is(err, services.ErrInvalidCredentials):
		apierrors.InvalidCredentials(c)
	case errors.Is(err, services.ErrUserNotFound):
		apierrors.NotFound(c, "User not found")
	case errors.Is(err, services.ErrTaskNotFound):
		apierrors.NotFound(c, "Task not found")
	case errors.Is(err, services.ErrAttachmentNotFound):
		apierrors.NotFound(c, "Attachment not found")
	default:
		zap.L().Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		apierrors.InternalError(c, "")
	}
}

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

// UserLoader finds a user by id.
type UserLoader interface {
	GetUser(id uint64) (*models.User, error)
}

// LoadUser loads the user named by the :id parameter, answering 404 when
// there is none.
func LoadUser(loader UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			apierrors.NotFound(c, "User not found")
			return
		}

		user, err := loader.GetUser(userID)
		if err != nil {
			if errors.Is(err, services.ErrUserNotFound) {
				apierrors.NotFound(c, "User not found")
				return
			}
			zap.L().Error("failed to load user", zap.Uint64("user_id", userID), zap.Error(err))
			apierrors.InternalError(c, "")
			return
		}

		c.Set(constants.ContextKeyUser, user)
		c.Next()
	}
}

// GetUser returns the user loaded by LoadUser
func GetUser(c *gin.Context) *models.User {
	user, _ := c.Get(constants.ContextKeyUser)
	u, _ := user.(*models.User)
	return u
}

package middleware

import (
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskboard/internal/constants"
	apierrors "github.com/yukikurage/taskboard/internal/errors"
	"github.com/yukikurage/taskboard/internal/models"
	"go.uber.org/zap"
)

// ActorResolver maps an auth token to its user. Unknown tokens resolve to
// nil without error.
type ActorResolver interface {
	ResolveActor(token string) (*models.User, error)
}

// ResolveActor loads the acting user from the session, the Authentication
// header or an Authorization bearer token, in that order. Requests without
// a known token continue anonymously.
func ResolveActor(resolver ActorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := requestToken(c)
		if token == "" {
			c.Next()
			return
		}

		actor, err := resolver.ResolveActor(token)
		if err != nil {
			zap.L().Error("failed to resolve actor", zap.Error(err))
			apierrors.InternalError(c, "")
			return
		}
		if actor != nil {
			c.Set(constants.ContextKeyActor, actor)
			c.Set(constants.ContextKeyUserID, actor.ID)
		}
		c.Next()
	}
}

func requestToken(c *gin.Context) string {
	session := sessions.Default(c)
	if token, ok := session.Get(constants.SessionKeyAuthToken).(string); ok && token != "" {
		return token
	}
	if token := c.GetHeader(constants.HeaderAuthentication); token != "" {
		return token
	}
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

// RequireActor rejects anonymous requests
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetActor(c) == nil {
			apierrors.Unauthorized(c, "")
			return
		}
		c.Next()
	}
}

// GetActor returns the acting user, or nil for anonymous requests
func GetActor(c *gin.Context) *models.User {
	actor, exists := c.Get(constants.ContextKeyActor)
	if !exists {
		return nil
	}
	user, _ := actor.(*models.User)
	return user
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (uint64, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return 0, false
	}

	switch v := userID.(type) {
	case uint64:
		return v, true
	case uint:
		return uint64(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}

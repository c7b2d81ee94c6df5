package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yukikurage/taskboard/internal/constants"
)

// RequestID tags each request with an id, reusing a well-formed incoming
// X-Request-ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(constants.HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		c.Set(constants.ContextKeyRequestID, id)
		c.Header(constants.HeaderRequestID, id)
		c.Next()
	}
}

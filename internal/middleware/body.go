package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/taskboard/internal/errors"
)

// BodyLimit rejects requests whose declared length exceeds n bytes and caps
// the body reader for the rest.
func BodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > n {
			apierrors.PayloadTooLarge(c)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

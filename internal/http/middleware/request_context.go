package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AttachRequestContext stamps every request with a request id used by
// response.RespondError's error envelope.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("request_id", uuid.New().String())
		c.Next()
	}
}

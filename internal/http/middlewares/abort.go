package middlewares

import (
	"github.com/gin-gonic/gin"
)

// abort writes the shared error envelope. Handlers use handlers.RespondError;
// middlewares sit below that package and write it themselves.
func abort(c *gin.Context, status int, code, message string, details gin.H) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if id := c.GetString(CtxRequestID); id != "" {
		body["requestId"] = id
	}
	if details != nil {
		body["details"] = details
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

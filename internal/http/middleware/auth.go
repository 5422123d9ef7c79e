// README: Caller identity middleware. The gateway in front of the API authenticates
// users and forwards the user id in X-User-ID.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rideshare/internal/types"
)

const (
	HeaderUserID = "X-User-ID"
	callerKey    = "caller_uid"
)

// Auth rejects requests without a caller id.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetHeader(HeaderUserID)
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + HeaderUserID})
			return
		}
		c.Set(callerKey, types.ID(uid))
		c.Next()
	}
}

func CallerUID(c *gin.Context) types.ID {
	v, _ := c.Get(callerKey)
	id, _ := v.(types.ID)
	return id
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const userIDKey = "userId"

// anonymousUserID is used when the caller sends no identity header. Stateless
// endpoints such as analyze-policy work without one; document history needs a
// stable X-Guest-Id from the client.
const anonymousUserID = "anonymous"

// Identity resolves the caller identity from the guest header and stores it
// in context.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusOK)
			c.Abort()
			return
		}

		guestID := strings.TrimSpace(c.GetHeader("X-Guest-Id"))
		if guestID != "" {
			c.Set(userIDKey, "guest:"+guestID)
		} else {
			c.Set(userIDKey, anonymousUserID)
		}
		c.Next()
	}
}

// UserIDFromContext fetches the user ID set by the identity middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

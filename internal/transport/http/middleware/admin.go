package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminTokenHeader carries the static operator token.
const AdminTokenHeader = "X-Access-Token"

// RequireAdmin always requires adminToken in AdminTokenHeader. When it runs
// after Auth, the user must also have the ADMIN role. An empty adminToken
// rejects every request.
func RequireAdmin(adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(AdminTokenHeader)
		if adminToken == "" || subtle.ConstantTimeCompare([]byte(got), []byte(adminToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": errForbidden})
			return
		}
		if _, authenticated := c.Get(userKey); authenticated {
			if user, ok := UserFrom(c); !ok || !user.IsAdmin() {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": errForbidden})
				return
			}
		}
		c.Next()
	}
}

package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderCronSecret carries the shared secret of scheduled callers.
const HeaderCronSecret = "X-Cron-Secret"

// CronSecret guards routes meant for schedulers. An empty secret leaves the
// route open.
func CronSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader(HeaderCronSecret)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "invalid cron secret")
			return
		}
		c.Next()
	}
}

package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"listingbot/pkg/logx"
)

// TokenAuth requires "Authorization: Bearer <token>". An empty token
// disables the check.
func TokenAuth(token string) gin.HandlerFunc {
	token = strings.TrimSpace(token)
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// RequestLog logs each request through logx.
func RequestLog(log logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []logx.Field{
			logx.String("method", c.Request.Method),
			logx.String("path", c.FullPath()),
			logx.Int("status", c.Writer.Status()),
			logx.Duration("dur", time.Since(start)),
			logx.String("ip", c.ClientIP()),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Warn("http request", fields...)
			return
		}
		log.Debug("http request", fields...)
	}
}

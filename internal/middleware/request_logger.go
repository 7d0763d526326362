// Package middleware holds gin middleware shared by the HTTP server.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/curatorapp/curator/internal/logger"
)

// RequestLogger logs every request with its status and duration. Health
// checks are skipped to keep probe noise out of the logs.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/api/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		logger.Debug("%s %s -> %d (%s)",
			c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start))
	}
}

// ErrorLogger surfaces errors attached to the gin context.
func ErrorLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		for _, err := range c.Errors {
			logger.Error("Request error on %s %s: %v",
				c.Request.Method, c.Request.URL.Path, err.Err)
		}
	}
}
